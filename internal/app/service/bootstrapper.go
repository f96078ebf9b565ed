package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"token_farm/internal/app/port"
	"token_farm/internal/domain/entity"
	"token_farm/internal/infrastructure/network/client"
	networkdefinition "token_farm/internal/infrastructure/network/definition"
)

// NoProviderNotice is shown when no wallet provider is injected.
const NoProviderNotice = "Non ethereum browser detected. You should consider trying to install metamask"

// Startup stages, in execution order.
const (
	StageConnect   = "connect"
	StageAccount   = "account"
	StageNetwork   = "network"
	StageArtifacts = "artifacts"
	StageContracts = "contracts"
	StageBalances  = "balances"
)

// Session is what a successful startup leaves behind.
type Session struct {
	Provider  port.ChainProvider
	Account   entity.Account
	NetworkID entity.NetworkID
	Network   entity.NetworkDefinition
	Contracts map[entity.ContractRole]ResolveResult
	Networks  *networkdefinition.NetworkDefinitionProvider
}

// Bootstrapper runs the startup sequence: connect, account, network,
// contracts, balances. Each stage runs only after the previous one succeeded.
type Bootstrapper struct {
	connector    port.ProviderConnector
	descriptors  port.DescriptorProvider
	store        port.StateStore
	registry     *ContractRegistry
	synchronizer *BalanceSynchronizer
	metrics      port.Metrics
	logger       port.Logger
}

// NewBootstrapper wires the startup dependencies.
func NewBootstrapper(
	connector port.ProviderConnector,
	descriptors port.DescriptorProvider,
	store port.StateStore,
	registry *ContractRegistry,
	synchronizer *BalanceSynchronizer,
	metrics port.Metrics,
	logger port.Logger,
) *Bootstrapper {
	return &Bootstrapper{
		connector:    connector,
		descriptors:  descriptors,
		store:        store,
		registry:     registry,
		synchronizer: synchronizer,
		metrics:      metrics,
		logger:       logger,
	}
}

// Start runs the sequence once. Loading is cleared when it returns, whether
// or not startup succeeded. A failed startup records StartupError and a
// blocking notice; the session is unusable afterwards.
func (b *Bootstrapper) Start(ctx context.Context) (session *Session, err error) {
	defer func() {
		if err != nil {
			b.store.SetStartupError(err)
			if session != nil && session.Provider != nil {
				session.Provider.Close()
			}
			session = nil
		}
		b.store.SetLoading(false)
	}()

	session = &Session{}

	if err = b.stage(StageConnect, func() error {
		provider, cerr := b.connector.Connect(ctx)
		if cerr != nil {
			return cerr
		}
		session.Provider = provider
		return nil
	}); err != nil {
		if errors.Is(err, entity.ErrNoProviderAvailable) {
			b.store.Notify(entity.NoticeBlocking, NoProviderNotice)
		} else {
			b.store.Notify(entity.NoticeBlocking, fmt.Sprintf("Could not connect to the wallet: %v", err))
		}
		return session, err
	}

	if err = b.stage(StageAccount, func() error {
		account, aerr := client.ResolveAccount(ctx, session.Provider)
		if aerr != nil {
			return aerr
		}
		session.Account = account
		b.store.SetAccount(account)
		return nil
	}); err != nil {
		b.store.Notify(entity.NoticeBlocking, fmt.Sprintf("Could not read the wallet account: %v", err))
		return session, err
	}

	if err = b.stage(StageNetwork, func() error {
		id, nerr := client.ResolveNetwork(ctx, session.Provider)
		if nerr != nil {
			return nerr
		}
		session.NetworkID = id
		return nil
	}); err != nil {
		b.store.Notify(entity.NoticeBlocking, fmt.Sprintf("Could not detect the network: %v", err))
		return session, err
	}

	var descriptors port.DescriptorSet
	if err = b.stage(StageArtifacts, func() error {
		var derr error
		descriptors, derr = b.descriptors.GetDescriptors(ctx)
		return derr
	}); err != nil {
		b.store.Notify(entity.NoticeBlocking, fmt.Sprintf("Could not load contract artifacts: %v", err))
		return session, err
	}

	session.Networks = networkdefinition.NewNetworkDefinitionProvider(b.logger, descriptors.Descriptors)
	session.Network = session.Networks.Lookup(session.NetworkID)
	b.store.SetNetwork(session.Network)
	b.logger.Info("Network detected",
		"network_id", session.NetworkID.String(),
		"name", session.Network.Name,
		"known_deployment", session.Networks.IsActive(session.NetworkID))

	_ = b.stage(StageContracts, func() error {
		session.Contracts = b.registry.Resolve(ctx, descriptors.Descriptors, session.NetworkID, session.Provider.Caller())
		for role, failure := range descriptors.Failures {
			session.Contracts[role] = b.registry.Unavailable(failure, session.NetworkID)
		}
		return nil
	})

	// Balance failures are per slot and already surfaced as notices.
	_ = b.nonFatalStage(StageBalances, func() error {
		_, serr := b.synchronizer.Sync(ctx, session.Account)
		return serr
	})

	b.logger.Info("Startup complete",
		"account", session.Account.String(),
		"network_id", session.NetworkID.String(),
		"provider", string(session.Provider.Kind()),
		"endpoint", session.Provider.Endpoint())
	return session, nil
}

func (b *Bootstrapper) stage(name string, fn func() error) error {
	return b.runStage(name, fn, b.logger.Error)
}

// nonFatalStage is a stage whose failure does not end startup.
func (b *Bootstrapper) nonFatalStage(name string, fn func() error) error {
	return b.runStage(name, fn, b.logger.Warn)
}

func (b *Bootstrapper) runStage(name string, fn func() error, logFailure func(msg string, args ...any)) error {
	started := time.Now()
	err := fn()
	b.metrics.ObserveStartupStage(name, time.Since(started))
	if err != nil {
		logFailure("Startup stage failed", "stage", name, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	b.logger.Debug("Startup stage complete", "stage", name, "duration", time.Since(started).String())
	return nil
}
