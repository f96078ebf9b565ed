package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"token_farm/internal/app/port"
	"token_farm/internal/domain/entity"
	"token_farm/internal/infrastructure/configloader"
	"token_farm/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Balance query outcomes reported to metrics.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

// balanceMethods maps a role to the single-address view method that reads the
// account's balance in that contract.
var balanceMethods = map[entity.ContractRole]string{
	entity.RoleStakingToken: "balanceOf",
	entity.RoleRewardToken:  "balanceOf",
	entity.RoleFarm:         "stakingBalance",
}

// BalanceSynchronizer reads the account's balance in every resolved contract
// and writes each value to its own slot.
type BalanceSynchronizer struct {
	store                 port.StateStore
	metrics               port.Metrics
	logger                port.Logger
	limiter               *rate.Limiter
	maxConcurrentRequests int
	decimals              uint8
}

// NewBalanceSynchronizer creates a synchronizer bounded by cfg.
func NewBalanceSynchronizer(
	store port.StateStore,
	cfg configloader.BalanceSyncConfig,
	decimals uint8,
	metrics port.Metrics,
	logger port.Logger,
) *BalanceSynchronizer {
	maxRoutines := cfg.MaxConcurrentRequests
	if maxRoutines <= 0 {
		maxRoutines = 1
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.BurstLimit
	if burst <= 0 {
		burst = maxRoutines
	}
	return &BalanceSynchronizer{
		store:                 store,
		metrics:               metrics,
		logger:                logger,
		limiter:               rate.NewLimiter(limit, burst),
		maxConcurrentRequests: maxRoutines,
		decimals:              decimals,
	}
}

// Sync queries every present handle concurrently. A failed query leaves its
// slot untouched and never affects the other queries; all failures are
// joined into the returned error. The snapshot is read back from the store.
func (s *BalanceSynchronizer) Sync(ctx context.Context, account entity.Account) (entity.BalanceSnapshot, error) {
	current := s.store.Snapshot()
	if !account.IsResolved() {
		s.logger.Debug("Skipping balance sync, account not resolved")
		return current.Balances, nil
	}
	if !common.IsHexAddress(account.String()) {
		return current.Balances, fmt.Errorf("%w: account %q is not an address", entity.ErrProviderQueryFailed, account)
	}
	holder := common.HexToAddress(account.String())

	s.logger.Debug("Synchronizing balances", "account", account.String(), "contracts", len(current.Contracts))

	var mu sync.Mutex
	var errs []error

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.maxConcurrentRequests)

	for _, role := range entity.AllRoles {
		handle := current.Contract(role)
		if handle == nil {
			continue
		}
		role := role
		eg.Go(func() error {
			if err := s.syncOne(egCtx, role, handle, holder); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			// Report as handled so sibling queries keep running.
			return nil
		})
	}
	_ = eg.Wait()

	snapshot := s.store.Snapshot().Balances
	if len(errs) > 0 {
		return snapshot, errors.Join(errs...)
	}
	return snapshot, nil
}

func (s *BalanceSynchronizer) syncOne(ctx context.Context, role entity.ContractRole, handle *entity.ContractHandle, holder common.Address) error {
	slot := entity.SlotForRole(role)
	method := balanceMethods[role]

	value, err := s.query(ctx, handle, method, holder)
	if err != nil {
		s.metrics.IncBalanceQuery(slot, outcomeError)
		s.logger.Error("Failed to load balance", "contract", handle.Name, "slot", string(slot), "error", err)
		s.store.Notify(entity.NoticeWarning, fmt.Sprintf("Failed to load %s balance.", handle.Name))
		return fmt.Errorf("%s.%s: %w", handle.Name, method, err)
	}

	raw := value.String()
	s.store.SetBalance(slot, raw)
	s.metrics.IncBalanceQuery(slot, outcomeSuccess)

	formatted, ferr := utils.FormatBaseUnits(raw, s.decimals)
	if ferr != nil {
		formatted = raw
	}
	s.logger.Debug("Balance fetched", "contract", handle.Name, "slot", string(slot), "value", raw, "formatted", formatted)
	return nil
}

func (s *BalanceSynchronizer) query(ctx context.Context, handle *entity.ContractHandle, method string, holder common.Address) (*big.Int, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", entity.ErrProviderTimeout, err)
	}
	if handle.Bound == nil {
		return nil, fmt.Errorf("%w: %s is not bound", entity.ErrContractUnavailable, handle.Name)
	}

	var out []interface{}
	if err := handle.Bound.Call(&bind.CallOpts{Context: ctx, From: holder}, &out, method, holder); err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", entity.ErrProviderQueryFailed, method, len(out))
	}
	value, ok := out[0].(*big.Int)
	if !ok || value == nil {
		return nil, fmt.Errorf("%w: %s returned %T", entity.ErrProviderQueryFailed, method, out[0])
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s returned negative balance", entity.ErrProviderQueryFailed, method)
	}
	return value, nil
}
