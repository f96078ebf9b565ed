package entity

import (
	"math/big"
	"time"
)

// TransactionKind is the contract call a step submits.
type TransactionKind string

const (
	TxApprove TransactionKind = "approve"
	TxStake   TransactionKind = "stake"
	TxUnstake TransactionKind = "unstake"
)

// TransactionStatus tracks a step from creation to a terminal state.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxSubmitted TransactionStatus = "submitted"
	TxConfirmed TransactionStatus = "confirmed"
	TxFailed    TransactionStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s TransactionStatus) IsTerminal() bool {
	return s == TxConfirmed || s == TxFailed
}

// TransactionStep is one unit of a multi-step write.
type TransactionStep struct {
	ID        string            `json:"id"`
	Kind      TransactionKind   `json:"kind"`
	Amount    *big.Int          `json:"-"`
	From      Account           `json:"from"`
	To        string            `json:"to"`
	Hash      string            `json:"hash,omitempty"`
	Status    TransactionStatus `json:"status"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// AmountString renders the amount, empty for steps without one.
func (t TransactionStep) AmountString() string {
	if t.Amount == nil {
		return ""
	}
	return t.Amount.String()
}

// OrchestratorPhase is the state of the transaction state machine.
type OrchestratorPhase string

const (
	PhaseIdle             OrchestratorPhase = "idle"
	PhaseAwaitingApproval OrchestratorPhase = "awaitingApproval"
	PhaseAwaitingStake    OrchestratorPhase = "awaitingStake"
	PhaseAwaitingUnstake  OrchestratorPhase = "awaitingUnstake"
)
