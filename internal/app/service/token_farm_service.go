package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"token_farm/internal/app/port"
	"token_farm/internal/domain/entity"
	"token_farm/internal/infrastructure/configloader"
	"token_farm/internal/pkg/utils"
)

// TokenFarmServiceImpl implements port.TokenFarmService. It owns the session
// built by the bootstrapper and the orchestrator bound to its provider.
type TokenFarmServiceImpl struct {
	bootstrapper *Bootstrapper
	synchronizer *BalanceSynchronizer
	store        port.StateStore
	metrics      port.Metrics
	logger       port.Logger
	cfg          configloader.TransactionsConfig

	mu           sync.RWMutex
	session      *Session
	orchestrator *TransactionOrchestrator
	closed       bool
}

var _ port.TokenFarmService = (*TokenFarmServiceImpl)(nil)

// ErrServiceClosed is returned by Start when Close ran first.
var ErrServiceClosed = errors.New("token farm service closed")

// NewTokenFarmService creates the service. Start must be called before any action.
func NewTokenFarmService(
	bootstrapper *Bootstrapper,
	synchronizer *BalanceSynchronizer,
	store port.StateStore,
	cfg configloader.TransactionsConfig,
	metrics port.Metrics,
	logger port.Logger,
) *TokenFarmServiceImpl {
	return &TokenFarmServiceImpl{
		bootstrapper: bootstrapper,
		synchronizer: synchronizer,
		store:        store,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
	}
}

// Start runs the startup sequence and arms the orchestrator. Confirmed
// transactions trigger a balance resync.
func (s *TokenFarmServiceImpl) Start(ctx context.Context) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrServiceClosed
	}

	session, err := s.bootstrapper.Start(ctx)
	if err != nil {
		return err
	}

	orchestrator := NewTransactionOrchestrator(session.Provider, s.store, s.cfg, s.metrics, s.logger)
	orchestrator.OnConfirmed(func(ctx context.Context, step entity.TransactionStep) {
		s.logger.Debug("Resyncing balances after confirmed transaction", "kind", string(step.Kind), "hash", step.Hash)
		if _, err := s.synchronizer.Sync(ctx, session.Account); err != nil {
			s.logger.Warn("Balance resync incomplete", "error", err)
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		orchestrator.Close()
		session.Provider.Close()
		s.logger.Warn("Service closed during startup, releasing provider")
		return ErrServiceClosed
	}
	s.session = session
	s.orchestrator = orchestrator
	return nil
}

// Session returns the active session, nil before a successful Start.
func (s *TokenFarmServiceImpl) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *TokenFarmServiceImpl) active() (*Session, *TransactionOrchestrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		if msg := s.store.Snapshot().StartupError; msg != "" {
			return nil, nil, fmt.Errorf("client not started: %s", msg)
		}
		return nil, nil, fmt.Errorf("client not started")
	}
	return s.session, s.orchestrator, nil
}

// State implements port.TokenFarmService.
func (s *TokenFarmServiceImpl) State() entity.ApplicationState {
	return s.store.Snapshot()
}

// Subscribe implements port.TokenFarmService.
func (s *TokenFarmServiceImpl) Subscribe() (<-chan entity.ApplicationState, func()) {
	return s.store.Subscribe()
}

// StakeTokens implements port.TokenFarmService.
func (s *TokenFarmServiceImpl) StakeTokens(ctx context.Context, amount, unit string) ([]entity.TransactionStep, error) {
	_, orchestrator, err := s.active()
	if err != nil {
		return nil, err
	}

	baseUnits := strings.TrimSpace(amount)
	if u := strings.ToLower(strings.TrimSpace(unit)); u != "" && u != "wei" {
		v, err := utils.ToBaseUnits(amount, u)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", entity.ErrInvalidAmount, err)
		}
		baseUnits = v.String()
	}
	return orchestrator.StakeTokens(ctx, baseUnits)
}

// UnstakeTokens implements port.TokenFarmService.
func (s *TokenFarmServiceImpl) UnstakeTokens(ctx context.Context) ([]entity.TransactionStep, error) {
	_, orchestrator, err := s.active()
	if err != nil {
		return nil, err
	}
	return orchestrator.UnstakeTokens(ctx)
}

// Sync implements port.TokenFarmService.
func (s *TokenFarmServiceImpl) Sync(ctx context.Context) (entity.BalanceSnapshot, error) {
	session, _, err := s.active()
	if err != nil {
		return entity.BalanceSnapshot{}, err
	}
	return s.synchronizer.Sync(ctx, session.Account)
}

// InFlight implements port.TokenFarmService.
func (s *TokenFarmServiceImpl) InFlight() []entity.TransactionStep {
	_, orchestrator, err := s.active()
	if err != nil {
		return []entity.TransactionStep{}
	}
	return orchestrator.InFlight()
}

// Close stops receipt watchers and releases the provider.
func (s *TokenFarmServiceImpl) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.orchestrator != nil {
		if phase := s.orchestrator.Phase(); phase != entity.PhaseIdle {
			s.logger.Warn("Closing while a transaction flow is running", "phase", string(phase))
		}
		s.orchestrator.Close()
	}
	if s.session != nil && s.session.Provider != nil {
		s.session.Provider.Close()
	}
	s.session = nil
	s.orchestrator = nil
}
