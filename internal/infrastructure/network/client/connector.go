package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"token_farm/internal/app/port"
	"token_farm/internal/domain/entity"
	"token_farm/internal/infrastructure/configloader"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// DialFunc opens an RPC connection to endpoint.
type DialFunc func(ctx context.Context, endpoint string) (*rpc.Client, error)

// Connector implements port.ProviderConnector. It prefers a modern provider
// (account access is requested) and falls back to a legacy one.
type Connector struct {
	env             port.Environment
	dial            DialFunc
	dialTimeout     time.Duration
	approvalTimeout time.Duration
	rpcCallTimeout  time.Duration
	logger          *zap.Logger
}

var _ port.ProviderConnector = (*Connector)(nil)

// NewConnector creates a Connector from the provider configuration.
func NewConnector(env port.Environment, cfg configloader.ProviderConfig, logger *zap.Logger) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{
		env:             env,
		dial:            rpc.DialContext,
		dialTimeout:     time.Duration(cfg.DialTimeoutMs) * time.Millisecond,
		approvalTimeout: time.Duration(cfg.ApprovalTimeoutMs) * time.Millisecond,
		rpcCallTimeout:  time.Duration(cfg.RPCCallTimeoutMs) * time.Millisecond,
		logger:          logger.Named("Connector"),
	}
}

// WithDialer replaces the RPC dialer.
func (c *Connector) WithDialer(dial DialFunc) *Connector {
	c.dial = dial
	return c
}

// Connect implements port.ProviderConnector.
func (c *Connector) Connect(ctx context.Context) (port.ChainProvider, error) {
	if endpoint, ok := c.env.Lookup(port.ProviderModern); ok {
		provider, err := c.open(ctx, port.ProviderModern, endpoint)
		if err != nil {
			return nil, err
		}
		approvalCtx, cancel := c.bounded(ctx, c.approvalTimeout)
		defer cancel()
		if _, err := provider.RequestAccounts(approvalCtx); err != nil {
			provider.Close()
			c.logger.Error("Account access request failed", zap.String("endpoint", endpoint), zap.Error(err))
			return nil, fmt.Errorf("%w: account access request: %w", entity.ErrProviderQueryFailed, err)
		}
		c.logger.Info("Connected to modern provider", zap.String("endpoint", endpoint))
		return provider, nil
	}

	if endpoint, ok := c.env.Lookup(port.ProviderLegacy); ok {
		provider, err := c.open(ctx, port.ProviderLegacy, endpoint)
		if err != nil {
			return nil, err
		}
		c.logger.Info("Connected to legacy provider", zap.String("endpoint", endpoint))
		return provider, nil
	}

	c.logger.Warn("No injected provider detected")
	return nil, entity.ErrNoProviderAvailable
}

func (c *Connector) open(ctx context.Context, kind port.ProviderKind, endpoint string) (*EVMProvider, error) {
	dialCtx, cancel := c.bounded(ctx, c.dialTimeout)
	defer cancel()

	rpcClient, err := c.dial(dialCtx, endpoint)
	if err != nil {
		c.logger.Error("Failed to dial provider", zap.String("kind", string(kind)), zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("%w: dial %s provider %s: %w", entity.ErrProviderQueryFailed, kind, endpoint, err)
	}
	return NewEVMProvider(kind, endpoint, rpcClient, c.rpcCallTimeout, c.logger), nil
}

func (c *Connector) bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// configEnvironment exposes the configured endpoints as injected providers.
type configEnvironment struct {
	endpoints map[port.ProviderKind]string
}

// NewConfigEnvironment builds a port.Environment from the provider config.
func NewConfigEnvironment(cfg configloader.ProviderConfig) port.Environment {
	return &configEnvironment{endpoints: map[port.ProviderKind]string{
		port.ProviderModern: strings.TrimSpace(cfg.Ethereum),
		port.ProviderLegacy: strings.TrimSpace(cfg.Web3),
	}}
}

func (e *configEnvironment) Lookup(kind port.ProviderKind) (string, bool) {
	v := e.endpoints[kind]
	return v, v != ""
}
