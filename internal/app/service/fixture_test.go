package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"token_farm/internal/app/port"
	"token_farm/internal/app/state"
	"token_farm/internal/domain/entity"
	"token_farm/internal/infrastructure/configloader"
	"token_farm/internal/infrastructure/network/client"
	"token_farm/internal/pkg/logger"
	"token_farm/internal/pkg/testutil/fakewallet"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
)

const testNetwork entity.NetworkID = 5777

var (
	testAccount = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	daiAddr     = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	dappAddr    = common.HexToAddress("0x00000000000000000000000000000000000000d2")
	farmAddr    = common.HexToAddress("0x00000000000000000000000000000000000000f1")
)

var contractNames = map[entity.ContractRole]string{
	entity.RoleStakingToken: "DaiToken",
	entity.RoleRewardToken:  "DappToken",
	entity.RoleFarm:         "TokenFarm",
}

var contractAddrs = map[entity.ContractRole]common.Address{
	entity.RoleStakingToken: daiAddr,
	entity.RoleRewardToken:  dappAddr,
	entity.RoleFarm:         farmAddr,
}

// testDescriptors returns the three descriptors, deployed on the test network
// except for the roles listed in absent.
func testDescriptors(t *testing.T, absent ...entity.ContractRole) map[entity.ContractRole]entity.ContractDescriptor {
	t.Helper()
	erc20, err := abi.JSON(strings.NewReader(fakewallet.ERC20ABI))
	require.NoError(t, err)
	farm, err := abi.JSON(strings.NewReader(fakewallet.TokenFarmABI))
	require.NoError(t, err)

	skip := map[entity.ContractRole]bool{}
	for _, role := range absent {
		skip[role] = true
	}

	out := make(map[entity.ContractRole]entity.ContractDescriptor, 3)
	for _, role := range entity.AllRoles {
		parsed := erc20
		if role == entity.RoleFarm {
			parsed = farm
		}
		networks := map[entity.NetworkID]entity.Deployment{
			// another network, to make sure the lookup is by id
			1: {Address: "0x00000000000000000000000000000000000000ee"},
		}
		if !skip[role] {
			networks[testNetwork] = entity.Deployment{Address: contractAddrs[role].Hex()}
		}
		out[role] = entity.ContractDescriptor{Name: contractNames[role], Role: role, ABI: parsed, Networks: networks}
	}
	return out
}

type txCount struct {
	kind    entity.TransactionKind
	outcome string
}

// recordingMetrics implements port.Metrics and keeps transaction counters.
type recordingMetrics struct {
	mu     sync.Mutex
	txs    map[txCount]int
	stages []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{txs: make(map[txCount]int)}
}

func (m *recordingMetrics) ObserveStartupStage(stage string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, stage)
}
func (m *recordingMetrics) IncBalanceQuery(entity.BalanceSlot, string) {}
func (m *recordingMetrics) IncTransaction(kind entity.TransactionKind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs[txCount{kind, outcome}]++
}
func (m *recordingMetrics) SetLoading(bool) {}

func (m *recordingMetrics) tx(kind entity.TransactionKind, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txs[txCount{kind, outcome}]
}

func (m *recordingMetrics) startupStages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.stages...)
}

// staticDescriptors implements port.DescriptorProvider.
type staticDescriptors struct {
	descriptors map[entity.ContractRole]entity.ContractDescriptor
	failures    map[entity.ContractRole]*entity.ArtifactLoadError
	calls       atomic.Int32
	// onLoad runs inside GetDescriptors, mid startup.
	onLoad func()
}

func (s *staticDescriptors) GetDescriptors(context.Context) (port.DescriptorSet, error) {
	s.calls.Add(1)
	if s.onLoad != nil {
		s.onLoad()
	}
	return port.DescriptorSet{Descriptors: s.descriptors, Failures: s.failures}, nil
}

type fixture struct {
	wallet   *fakewallet.Wallet
	store    *state.Store
	provider *client.EVMProvider
	metrics  *recordingMetrics
	log      port.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := fakewallet.New(testNetwork.String(), testAccount)
	w.Deploy(daiAddr, fakewallet.ERC20ABI)
	w.Deploy(dappAddr, fakewallet.ERC20ABI)
	w.Deploy(farmAddr, fakewallet.TokenFarmABI)

	log := logger.NewNop()
	m := newRecordingMetrics()
	p := client.NewEVMProvider(port.ProviderModern, "inproc://wallet", w.Dial(), 2*time.Second, nil)
	t.Cleanup(p.Close)

	return &fixture{
		wallet:   w,
		store:    state.NewStore(log, m),
		provider: p,
		metrics:  m,
		log:      log,
	}
}

// resolve binds the descriptors into the store the way startup does and
// clears the startup loading flag.
func (f *fixture) resolve(t *testing.T, absent ...entity.ContractRole) *ContractRegistry {
	t.Helper()
	f.store.SetAccount(entity.Account(testAccount.Hex()))
	registry := NewContractRegistry(f.store, f.log)
	registry.Resolve(context.Background(), testDescriptors(t, absent...), testNetwork, f.provider.Caller())
	f.store.SetLoading(false)
	return registry
}

func (f *fixture) synchronizer() *BalanceSynchronizer {
	return NewBalanceSynchronizer(f.store, configloader.BalanceSyncConfig{MaxConcurrentRequests: 3}, 18, f.metrics, f.log)
}

func (f *fixture) connector(env map[port.ProviderKind]string) *client.Connector {
	cfg := configloader.ProviderConfig{RPCCallTimeoutMs: 2000, ApprovalTimeoutMs: 2000, DialTimeoutMs: 2000}
	return client.NewConnector(mapEnvironment(env), cfg, nil).WithDialer(func(ctx context.Context, endpoint string) (*rpc.Client, error) {
		return f.wallet.Dial(), nil
	})
}

type mapEnvironment map[port.ProviderKind]string

func (m mapEnvironment) Lookup(kind port.ProviderKind) (string, bool) {
	v, ok := m[kind]
	return v, ok
}

func testTxConfig() configloader.TransactionsConfig {
	return configloader.TransactionsConfig{
		SkipConfirmations:     true,
		ReceiptPollIntervalMs: 10,
		ReceiptTimeoutMs:      2000,
		StepTTLMinutes:        5,
	}
}

func noticeMessages(st entity.ApplicationState) []string {
	out := make([]string, 0, len(st.Notices))
	for _, n := range st.Notices {
		out = append(out, n.Message)
	}
	return out
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

// recordingLogger implements port.Logger and keeps every entry.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *recordingLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *recordingLogger) levels(msg string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		if e.msg == msg {
			out = append(out, e.level)
		}
	}
	return out
}
