package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"token_farm/internal/app/port"
	"token_farm/internal/domain/entity"
	"token_farm/internal/infrastructure/configloader"
	"token_farm/internal/pkg/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Transaction outcomes reported to metrics.
const (
	outcomeSubmitted = "submitted"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
	outcomeTimeout   = "timeout"
	outcomeConfirmed = "confirmed"
	outcomeReverted  = "reverted"
)

// TransactionOrchestrator drives the approve → stake and unstake flows as an
// explicit state machine. Only one flow runs at a time.
type TransactionOrchestrator struct {
	provider port.ChainProvider
	store    port.StateStore
	metrics  port.Metrics
	logger   port.Logger
	cfg      configloader.TransactionsConfig

	// steps holds non-terminal steps; terminal ones are deleted.
	steps *cache.Cache

	mu    sync.Mutex
	phase entity.OrchestratorPhase

	onConfirmed func(ctx context.Context, step entity.TransactionStep)

	watchCtx    context.Context
	watchCancel context.CancelFunc
	watchers    sync.WaitGroup
	now         func() time.Time
}

// NewTransactionOrchestrator creates an idle orchestrator bound to provider.
func NewTransactionOrchestrator(
	provider port.ChainProvider,
	store port.StateStore,
	cfg configloader.TransactionsConfig,
	metrics port.Metrics,
	logger port.Logger,
) *TransactionOrchestrator {
	ttl := time.Duration(cfg.StepTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	watchCtx, watchCancel := context.WithCancel(context.Background())
	return &TransactionOrchestrator{
		provider:    provider,
		store:       store,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		steps:       cache.New(ttl, 10*time.Minute),
		phase:       entity.PhaseIdle,
		watchCtx:    watchCtx,
		watchCancel: watchCancel,
		now:         time.Now,
	}
}

// OnConfirmed registers a callback run after a step is mined successfully.
func (o *TransactionOrchestrator) OnConfirmed(fn func(ctx context.Context, step entity.TransactionStep)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onConfirmed = fn
}

// Phase returns the current state machine phase.
func (o *TransactionOrchestrator) Phase() entity.OrchestratorPhase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// StakeTokens approves the farm to move amount base units of the staking
// token, then stakes them. The stake is submitted only after the approval
// was acknowledged (or mined, with awaitReceipt). Any failure returns the
// machine to idle and clears loading.
func (o *TransactionOrchestrator) StakeTokens(ctx context.Context, amount string) ([]entity.TransactionStep, error) {
	value, err := utils.ParseBaseUnits(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrInvalidAmount, err)
	}

	snap := o.store.Snapshot()
	from, err := sender(snap)
	if err != nil {
		return nil, err
	}
	token, farm := snap.Contract(entity.RoleStakingToken), snap.Contract(entity.RoleFarm)
	if token == nil || farm == nil {
		return nil, fmt.Errorf("%w: staking requires the staking token and the farm", entity.ErrContractUnavailable)
	}

	if err := o.begin(entity.PhaseAwaitingApproval); err != nil {
		return nil, err
	}
	defer o.finish()

	o.logger.Info("Staking tokens", "amount", value.String(), "from", from.Hex())

	approveData, err := token.ABI.Pack("approve", farm.Address, value)
	if err != nil {
		return nil, fmt.Errorf("%w: pack approve: %w", entity.ErrTransactionSubmissionFailed, err)
	}
	approval, err := o.submit(ctx, entity.TxApprove, value, from, token, approveData)
	if err != nil {
		return []entity.TransactionStep{approval}, err
	}

	if o.cfg.AwaitReceipt {
		approval, err = o.awaitConfirmation(ctx, approval)
		if err != nil {
			return []entity.TransactionStep{approval}, err
		}
	} else {
		o.watch(approval)
	}

	o.transition(entity.PhaseAwaitingStake)

	stakeData, err := farm.ABI.Pack("stakeTokens", value)
	if err != nil {
		return []entity.TransactionStep{approval}, fmt.Errorf("%w: pack stakeTokens: %w", entity.ErrTransactionSubmissionFailed, err)
	}
	stake, err := o.submit(ctx, entity.TxStake, value, from, farm, stakeData)
	if err != nil {
		return []entity.TransactionStep{approval, stake}, err
	}
	o.watch(stake)

	return []entity.TransactionStep{approval, stake}, nil
}

// UnstakeTokens withdraws the whole staked balance.
func (o *TransactionOrchestrator) UnstakeTokens(ctx context.Context) ([]entity.TransactionStep, error) {
	snap := o.store.Snapshot()
	from, err := sender(snap)
	if err != nil {
		return nil, err
	}
	farm := snap.Contract(entity.RoleFarm)
	if farm == nil {
		return nil, fmt.Errorf("%w: unstaking requires the farm", entity.ErrContractUnavailable)
	}

	if err := o.begin(entity.PhaseAwaitingUnstake); err != nil {
		return nil, err
	}
	defer o.finish()

	o.logger.Info("Unstaking tokens", "from", from.Hex())

	data, err := farm.ABI.Pack("unstakeTokens")
	if err != nil {
		return nil, fmt.Errorf("%w: pack unstakeTokens: %w", entity.ErrTransactionSubmissionFailed, err)
	}
	step, err := o.submit(ctx, entity.TxUnstake, nil, from, farm, data)
	if err != nil {
		return []entity.TransactionStep{step}, err
	}
	o.watch(step)
	return []entity.TransactionStep{step}, nil
}

// InFlight returns the steps that have not reached a terminal state, oldest first.
func (o *TransactionOrchestrator) InFlight() []entity.TransactionStep {
	items := o.steps.Items()
	out := make([]entity.TransactionStep, 0, len(items))
	for _, item := range items {
		if step, ok := item.Object.(entity.TransactionStep); ok && !step.Status.IsTerminal() {
			out = append(out, step)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Close stops the receipt watchers and waits for them to exit.
func (o *TransactionOrchestrator) Close() {
	o.watchCancel()
	o.watchers.Wait()
}

func sender(snap entity.ApplicationState) (common.Address, error) {
	if !snap.Account.IsResolved() || !common.IsHexAddress(snap.Account.String()) {
		return common.Address{}, fmt.Errorf("%w: no active account", entity.ErrProviderQueryFailed)
	}
	return common.HexToAddress(snap.Account.String()), nil
}

func (o *TransactionOrchestrator) begin(phase entity.OrchestratorPhase) error {
	o.mu.Lock()
	if o.phase != entity.PhaseIdle {
		current := o.phase
		o.mu.Unlock()
		o.logger.Warn("Rejected action while busy", "phase", string(current), "requested", string(phase))
		return fmt.Errorf("%w: phase %s", entity.ErrOrchestratorBusy, current)
	}
	o.phase = phase
	o.mu.Unlock()

	o.store.SetLoading(true)
	o.store.SetPhase(phase)
	return nil
}

func (o *TransactionOrchestrator) transition(phase entity.OrchestratorPhase) {
	o.mu.Lock()
	o.phase = phase
	o.mu.Unlock()
	o.store.SetPhase(phase)
}

// finish returns to idle and clears loading on every exit path.
func (o *TransactionOrchestrator) finish() {
	o.transition(entity.PhaseIdle)
	o.store.SetLoading(false)
}

func (o *TransactionOrchestrator) submit(
	ctx context.Context,
	kind entity.TransactionKind,
	amount *big.Int,
	from common.Address,
	target *entity.ContractHandle,
	data []byte,
) (entity.TransactionStep, error) {
	now := o.now()
	step := entity.TransactionStep{
		ID:        uuid.NewString(),
		Kind:      kind,
		Amount:    amount,
		From:      entity.Account(from.Hex()),
		To:        target.Address.Hex(),
		Status:    entity.TxPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.steps.SetDefault(step.ID, step)

	hash, err := o.provider.SendTransaction(ctx, port.SendTxArgs{
		From: from,
		To:   target.Address,
		Data: data,
		Gas:  o.cfg.GasLimit,
	})
	if err != nil {
		outcome := outcomeFailed
		switch {
		case errors.Is(err, entity.ErrTransactionRejected):
			outcome = outcomeRejected
		case errors.Is(err, entity.ErrProviderTimeout):
			outcome = outcomeTimeout
		}
		o.metrics.IncTransaction(kind, outcome)
		step = o.fail(step, err)
		o.logger.Error("Transaction submission failed", "kind", string(kind), "contract", target.Name, "error", err)
		o.store.Notify(entity.NoticeWarning, fmt.Sprintf("%s transaction failed: %v", kind, err))
		return step, fmt.Errorf("%s: %w", kind, err)
	}

	step.Hash = hash.Hex()
	step.Status = entity.TxSubmitted
	step.UpdatedAt = o.now()
	o.steps.SetDefault(step.ID, step)
	o.metrics.IncTransaction(kind, outcomeSubmitted)
	o.logger.Info("Transaction acknowledged", "kind", string(kind), "hash", step.Hash, "contract", target.Name)
	return step, nil
}

func (o *TransactionOrchestrator) fail(step entity.TransactionStep, err error) entity.TransactionStep {
	step.Status = entity.TxFailed
	step.Error = err.Error()
	step.UpdatedAt = o.now()
	o.steps.Delete(step.ID)
	return step
}

func (o *TransactionOrchestrator) confirm(step entity.TransactionStep) entity.TransactionStep {
	step.Status = entity.TxConfirmed
	step.UpdatedAt = o.now()
	o.steps.Delete(step.ID)
	o.metrics.IncTransaction(step.Kind, outcomeConfirmed)
	o.logger.Info("Transaction confirmed", "kind", string(step.Kind), "hash", step.Hash)

	o.mu.Lock()
	cb := o.onConfirmed
	o.mu.Unlock()
	if cb != nil {
		cb(o.watchCtx, step)
	}
	return step
}

// awaitConfirmation blocks until the step is mined or the receipt timeout
// elapses.
func (o *TransactionOrchestrator) awaitConfirmation(ctx context.Context, step entity.TransactionStep) (entity.TransactionStep, error) {
	receipt, err := o.waitReceipt(ctx, common.HexToHash(step.Hash))
	if err == nil && receipt.Status != types.ReceiptStatusSuccessful {
		err = fmt.Errorf("%w: %s", entity.ErrTransactionReverted, step.Hash)
	}
	if errors.Is(err, context.Canceled) {
		// The transaction may still be mined; the step stays submitted.
		o.logger.Debug("Receipt tracking stopped", "kind", string(step.Kind), "hash", step.Hash)
		return step, fmt.Errorf("%s: %w", step.Kind, err)
	}
	if err != nil {
		if errors.Is(err, entity.ErrTransactionReverted) {
			o.metrics.IncTransaction(step.Kind, outcomeReverted)
		} else {
			o.metrics.IncTransaction(step.Kind, outcomeTimeout)
		}
		o.logger.Error("Transaction not confirmed", "kind", string(step.Kind), "hash", step.Hash, "error", err)
		o.store.Notify(entity.NoticeWarning, fmt.Sprintf("%s transaction failed: %v", step.Kind, err))
		return o.fail(step, err), fmt.Errorf("%s: %w", step.Kind, err)
	}
	return o.confirm(step), nil
}

// watch tracks an acknowledged step in the background.
func (o *TransactionOrchestrator) watch(step entity.TransactionStep) {
	if o.cfg.SkipConfirmations {
		return
	}
	o.watchers.Add(1)
	go func() {
		defer o.watchers.Done()
		if _, err := o.awaitConfirmation(o.watchCtx, step); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Debug("Receipt watcher finished with error", "hash", step.Hash, "error", err)
		}
	}()
}

func (o *TransactionOrchestrator) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	interval := time.Duration(o.cfg.ReceiptPollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	timeout := time.Duration(o.cfg.ReceiptTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		receipt, err := o.provider.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			lastErr = err
			o.logger.Debug("Receipt query failed, retrying", "hash", hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, fmt.Errorf("waiting for receipt %s: %w", hash.Hex(), ctx.Err())
			}
			if lastErr != nil {
				return nil, fmt.Errorf("%w: waiting for receipt %s: %w", entity.ErrProviderTimeout, hash.Hex(), lastErr)
			}
			return nil, fmt.Errorf("%w: waiting for receipt %s", entity.ErrProviderTimeout, hash.Hex())
		case <-ticker.C:
		}
	}
}
