package configloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	t.Setenv(EnvEthereumProvider, "")
	t.Setenv(EnvWeb3Provider, "")
	require.NoError(t, os.Unsetenv(EnvEthereumProvider))
	require.NoError(t, os.Unsetenv(EnvWeb3Provider))

	cfg, err := Parse([]byte("provider:\n  ethereum: http://127.0.0.1:7545\n"))
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:7545", cfg.Provider.Ethereum)
	require.Equal(t, "DaiToken", cfg.Contracts.StakingToken)
	require.Equal(t, "DappToken", cfg.Contracts.RewardToken)
	require.Equal(t, "TokenFarm", cfg.Contracts.Farm)
	require.EqualValues(t, 18, cfg.Contracts.Decimals)
	require.Equal(t, "src/abis", cfg.Artifacts.Dir)
	require.EqualValues(t, 15000, cfg.Provider.RPCCallTimeoutMs)
	require.False(t, cfg.Transactions.AwaitReceipt)
	require.Equal(t, 3, cfg.BalanceSync.MaxConcurrentRequests)
	require.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestParseEnvOverride(t *testing.T) {
	t.Setenv(EnvEthereumProvider, " http://wallet:8545 ")
	t.Setenv(EnvWeb3Provider, "http://legacy:8545")

	cfg, err := Parse([]byte("provider:\n  ethereum: http://ignored\n"))
	require.NoError(t, err)
	require.Equal(t, "http://wallet:8545", cfg.Provider.Ethereum)
	require.Equal(t, "http://legacy:8545", cfg.Provider.Web3)
}

func TestParseRejectsDuplicateArtifacts(t *testing.T) {
	_, err := Parse([]byte("contracts:\n  stakingToken: DaiToken\n  rewardToken: DaiToken\n"))
	require.ErrorContains(t, err, "DaiToken")
}

func TestParseRejectsBadBaseURL(t *testing.T) {
	_, err := Parse([]byte("artifacts:\n  baseURL: ftp://example.com\n"))
	require.ErrorContains(t, err, "http(s)")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
transactions:
  awaitReceipt: true
  receiptPollIntervalMs: 50
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.True(t, cfg.Transactions.AwaitReceipt)
	require.EqualValues(t, 50, cfg.Transactions.ReceiptPollIntervalMs)

	_, err = Load(filepath.Join(dir, "missing.yml"))
	require.ErrorContains(t, err, "failed to read config file")
}
