package metrics

import (
	"time"

	"token_farm/internal/domain/entity"
)

// NopMetrics is a no-op implementation of port.Metrics.
// Use this when metrics collection is disabled.
type NopMetrics struct{}

// NewNopMetrics creates a new NopMetrics instance.
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

func (m *NopMetrics) ObserveStartupStage(stage string, d time.Duration)          {}
func (m *NopMetrics) IncBalanceQuery(slot entity.BalanceSlot, outcome string)    {}
func (m *NopMetrics) IncTransaction(kind entity.TransactionKind, outcome string) {}
func (m *NopMetrics) SetLoading(loading bool)                                    {}
