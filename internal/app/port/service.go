package port

import (
	"context"

	"token_farm/internal/domain/entity"
)

// TokenFarmService is the entry point used by the presentation layers.
type TokenFarmService interface {
	// State returns the current application state.
	State() entity.ApplicationState

	// Subscribe delivers the state after each change until cancel is called.
	Subscribe() (<-chan entity.ApplicationState, func())

	// StakeTokens approves the farm and stakes amount, expressed in unit
	// ("" or "wei" for base units).
	StakeTokens(ctx context.Context, amount, unit string) ([]entity.TransactionStep, error)

	// UnstakeTokens withdraws the whole staked balance.
	UnstakeTokens(ctx context.Context) ([]entity.TransactionStep, error)

	// Sync re-reads every balance.
	Sync(ctx context.Context) (entity.BalanceSnapshot, error)

	// InFlight lists transaction steps that have not reached a terminal state.
	InFlight() []entity.TransactionStep
}
