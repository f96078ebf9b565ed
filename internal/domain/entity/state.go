package entity

import "time"

// NoticeLevel tells the presentation layer how to show a notice.
type NoticeLevel string

const (
	NoticeBlocking NoticeLevel = "blocking"
	NoticeWarning  NoticeLevel = "warning"
	NoticeInfo     NoticeLevel = "info"
)

// Notice is a user-visible message.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// ApplicationState is the UI-facing aggregate. Values returned by the store are
// copies; mutating them has no effect on the store.
type ApplicationState struct {
	Account      Account
	NetworkID    NetworkID
	Network      NetworkDefinition
	Contracts    map[ContractRole]*ContractHandle
	Balances     BalanceSnapshot
	Loading      bool
	Phase        OrchestratorPhase
	Notices      []Notice
	StartupError string
}

// Contract returns the handle for role, or nil when the contract is absent.
func (s ApplicationState) Contract(role ContractRole) *ContractHandle {
	return s.Contracts[role]
}
