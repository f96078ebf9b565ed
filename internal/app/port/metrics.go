package port

import (
	"time"

	"token_farm/internal/domain/entity"
)

// Metrics records client-side telemetry.
type Metrics interface {
	ObserveStartupStage(stage string, d time.Duration)
	IncBalanceQuery(slot entity.BalanceSlot, outcome string)
	IncTransaction(kind entity.TransactionKind, outcome string)
	SetLoading(loading bool)
}
