package port

import "token_farm/internal/domain/entity"

// StateStore is the application state as seen by the services.
type StateStore interface {
	Notifier

	SetAccount(account entity.Account)
	SetNetwork(def entity.NetworkDefinition)
	SetContract(role entity.ContractRole, handle *entity.ContractHandle)
	SetBalance(slot entity.BalanceSlot, value string)
	SetLoading(loading bool)
	SetPhase(phase entity.OrchestratorPhase)
	SetStartupError(err error)

	// Snapshot returns a deep copy of the current state.
	Snapshot() entity.ApplicationState

	// Subscribe delivers the latest state after each mutation until cancel is called.
	Subscribe() (<-chan entity.ApplicationState, func())
}
