package main

import (
	"bytes"
	"math/big"
	"testing"

	"token_farm/internal/domain/entity"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "balances", "stake", "unstake"}, names)

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)

	stake, _, err := root.Find([]string{"stake"})
	require.NoError(t, err)
	assert.NotNil(t, stake.Flags().Lookup("units"))
	assert.Error(t, stake.Args(stake, nil))
	assert.NoError(t, stake.Args(stake, []string{"100"}))
}

func TestRootCmd_MissingConfig(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"balances", "--config", t.TempDir() + "/missing.yml"})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestPrintSteps(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	err := printSteps(cmd, []entity.TransactionStep{
		{ID: "a", Kind: entity.TxApprove, Amount: big.NewInt(250), Hash: "0xabc", Status: entity.TxSubmitted},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"kind": "approve"`)
	assert.Contains(t, buf.String(), `"amount": "250"`)
	assert.Contains(t, buf.String(), `"hash": "0xabc"`)
}

func TestPrintState(t *testing.T) {
	balances := entity.NewBalanceSnapshot()
	balances.Values[entity.StakedBalance] = "2500000000000000000"
	st := entity.ApplicationState{
		Account:   "0x00000000000000000000000000000000000000a1",
		NetworkID: 5777,
		Network:   entity.NetworkDefinition{ID: 5777, Name: "Ganache"},
		Contracts: map[entity.ContractRole]*entity.ContractHandle{
			entity.RoleFarm: {Name: "TokenFarm", Role: entity.RoleFarm},
		},
		Balances: balances,
		Notices:  []entity.Notice{{Level: entity.NoticeWarning, Message: "DaiToken contract not deployed to detected network."}},
	}

	var buf bytes.Buffer
	printState(&buf, st, 18)
	out := buf.String()
	assert.Contains(t, out, "Network: Ganache (5777)")
	assert.Contains(t, out, "2.5 TokenFarm")
	assert.Contains(t, out, "0 stakingToken")
	assert.Contains(t, out, "[warning] DaiToken contract not deployed to detected network.")
}

func TestBalancesCmd_WatchFlag(t *testing.T) {
	balances, _, err := newRootCmd().Find([]string{"balances"})
	require.NoError(t, err)
	assert.NotNil(t, balances.Flags().Lookup("watch"))
}
