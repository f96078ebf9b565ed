package configloader

import (
	"fmt"
	"os"
	"strings"

	"token_farm/internal/domain/entity"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the injected provider endpoints.
const (
	EnvEthereumProvider = "TOKENFARM_ETHEREUM_PROVIDER"
	EnvWeb3Provider     = "TOKENFARM_WEB3_PROVIDER"
)

// Config is the top-level configuration structure.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	Provider     ProviderConfig     `yaml:"provider"`
	Artifacts    ArtifactsConfig    `yaml:"artifacts"`
	Contracts    ContractsConfig    `yaml:"contracts"`
	BalanceSync  BalanceSyncConfig  `yaml:"balanceSync"`
	Transactions TransactionsConfig `yaml:"transactions"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	ReadTimeout    int      `yaml:"readTimeout"`
	WriteTimeout   int      `yaml:"writeTimeout"`
	IdleTimeout    int      `yaml:"idleTimeout"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// ProviderConfig describes the injected wallet endpoints. Ethereum is the
// modern provider (account access is requested), Web3 the legacy one.
type ProviderConfig struct {
	Ethereum          string `yaml:"ethereum"`
	Web3              string `yaml:"web3"`
	RPCCallTimeoutMs  int64  `yaml:"rpcCallTimeoutMs"`
	ApprovalTimeoutMs int64  `yaml:"approvalTimeoutMs"`
	DialTimeoutMs     int64  `yaml:"dialTimeoutMs"`
}

// ArtifactsConfig tells where the build artifacts live: a local directory or
// an HTTP base URL serving <Name>.json.
type ArtifactsConfig struct {
	Dir                  string `yaml:"dir"`
	BaseURL              string `yaml:"baseURL"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
}

// ContractsConfig maps the three roles to artifact names.
type ContractsConfig struct {
	StakingToken string `yaml:"stakingToken"`
	RewardToken  string `yaml:"rewardToken"`
	Farm         string `yaml:"farm"`
	Decimals     uint8  `yaml:"decimals"`
}

// ArtifactNames returns the artifact name of each role.
func (c ContractsConfig) ArtifactNames() map[entity.ContractRole]string {
	return map[entity.ContractRole]string{
		entity.RoleStakingToken: c.StakingToken,
		entity.RoleRewardToken:  c.RewardToken,
		entity.RoleFarm:         c.Farm,
	}
}

// BalanceSyncConfig bounds the read fan-out.
type BalanceSyncConfig struct {
	MaxConcurrentRequests int `yaml:"maxConcurrentRequests"`
	RateLimit             int `yaml:"rateLimit"`
	BurstLimit            int `yaml:"burstLimit"`
}

// TransactionsConfig controls the orchestrator.
type TransactionsConfig struct {
	// AwaitReceipt makes the stake wait for the approval to be mined instead of
	// only acknowledged.
	AwaitReceipt bool `yaml:"awaitReceipt"`
	// SkipConfirmations disables receipt polling for acknowledged steps.
	SkipConfirmations     bool   `yaml:"skipConfirmations"`
	ReceiptPollIntervalMs int64  `yaml:"receiptPollIntervalMs"`
	ReceiptTimeoutMs      int64  `yaml:"receiptTimeoutMs"`
	StepTTLMinutes        int    `yaml:"stepTTLMinutes"`
	GasLimit              uint64 `yaml:"gasLimit"`
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads the YAML configuration file from the given path and unmarshals it.
func Load(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}
	logrus.Info("Configuration loaded successfully.")
	return cfg, nil
}

// Parse decodes YAML bytes, applies environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(&cfg)
	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv(EnvEthereumProvider); ok {
		cfg.Provider.Ethereum = strings.TrimSpace(v)
		logrus.Infof("Provider.Ethereum overridden by %s", EnvEthereumProvider)
	}
	if v, ok := os.LookupEnv(EnvWeb3Provider); ok {
		cfg.Provider.Web3 = strings.TrimSpace(v)
		logrus.Infof("Provider.Web3 overridden by %s", EnvWeb3Provider)
	}
}

// ApplyDefaults fills unset values.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 15
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Provider.RPCCallTimeoutMs <= 0 {
		cfg.Provider.RPCCallTimeoutMs = 15000
		logrus.Infof("Provider.RPCCallTimeoutMs not set, defaulting to %d ms", cfg.Provider.RPCCallTimeoutMs)
	}
	if cfg.Provider.ApprovalTimeoutMs <= 0 {
		// the user may take a while to approve in the wallet UI
		cfg.Provider.ApprovalTimeoutMs = 120000
	}
	if cfg.Provider.DialTimeoutMs <= 0 {
		cfg.Provider.DialTimeoutMs = 10000
	}

	if cfg.Artifacts.Dir == "" && cfg.Artifacts.BaseURL == "" {
		cfg.Artifacts.Dir = "src/abis"
		logrus.Infof("Artifacts.Dir not set, defaulting to %s", cfg.Artifacts.Dir)
	}
	if cfg.Artifacts.RequestTimeoutMillis <= 0 {
		cfg.Artifacts.RequestTimeoutMillis = 10000
	}

	if cfg.Contracts.StakingToken == "" {
		cfg.Contracts.StakingToken = "DaiToken"
	}
	if cfg.Contracts.RewardToken == "" {
		cfg.Contracts.RewardToken = "DappToken"
	}
	if cfg.Contracts.Farm == "" {
		cfg.Contracts.Farm = "TokenFarm"
	}
	if cfg.Contracts.Decimals == 0 {
		cfg.Contracts.Decimals = 18
	}

	if cfg.BalanceSync.MaxConcurrentRequests <= 0 {
		cfg.BalanceSync.MaxConcurrentRequests = 3
	}
	if cfg.BalanceSync.RateLimit <= 0 {
		cfg.BalanceSync.RateLimit = 20
	}
	if cfg.BalanceSync.BurstLimit <= 0 {
		cfg.BalanceSync.BurstLimit = cfg.BalanceSync.MaxConcurrentRequests
	}

	if cfg.Transactions.ReceiptPollIntervalMs <= 0 {
		cfg.Transactions.ReceiptPollIntervalMs = 1000
	}
	if cfg.Transactions.ReceiptTimeoutMs <= 0 {
		cfg.Transactions.ReceiptTimeoutMs = 10 * 60 * 1000
	}
	if cfg.Transactions.StepTTLMinutes <= 0 {
		cfg.Transactions.StepTTLMinutes = 30
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	names := map[string]string{}
	for role, name := range map[string]string{
		"stakingToken": c.Contracts.StakingToken,
		"rewardToken":  c.Contracts.RewardToken,
		"farm":         c.Contracts.Farm,
	} {
		if prev, dup := names[name]; dup {
			return fmt.Errorf("contracts.%s and contracts.%s both point to artifact %q", prev, role, name)
		}
		names[name] = role
	}
	if c.Artifacts.BaseURL != "" && !strings.HasPrefix(c.Artifacts.BaseURL, "http://") && !strings.HasPrefix(c.Artifacts.BaseURL, "https://") {
		return fmt.Errorf("artifacts.baseURL must be an http(s) URL, got %q", c.Artifacts.BaseURL)
	}
	return nil
}
