package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProviderAvailable means neither a modern nor a legacy provider was found.
	ErrNoProviderAvailable = errors.New("no ethereum provider available")
	// ErrProviderQueryFailed wraps a failed account or network query.
	ErrProviderQueryFailed = errors.New("provider query failed")
	// ErrProviderTimeout is returned when a provider call exceeds its deadline.
	ErrProviderTimeout = errors.New("provider call timed out")
	// ErrTransactionRejected means the wallet declined to sign or send.
	ErrTransactionRejected = errors.New("transaction rejected")
	// ErrTransactionSubmissionFailed covers node and transport failures on send.
	ErrTransactionSubmissionFailed = errors.New("transaction submission failed")
	// ErrTransactionReverted means a mined receipt reported failure.
	ErrTransactionReverted = errors.New("transaction reverted")
	// ErrInvalidAmount is returned for non-numeric or non-positive amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrOrchestratorBusy is returned when an action starts while another is running.
	ErrOrchestratorBusy = errors.New("another transaction is in progress")
	// ErrContractUnavailable means a required contract is not deployed on this network.
	ErrContractUnavailable = errors.New("contract unavailable on this network")
)

// ContractNotDeployedError reports a descriptor without a deployment entry for
// the active network. It is non-fatal.
type ContractNotDeployedError struct {
	Name      string
	NetworkID NetworkID
	Reason    string
}

func (e *ContractNotDeployedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s contract not deployed to network %s: %s", e.Name, e.NetworkID, e.Reason)
	}
	return fmt.Sprintf("%s contract not deployed to network %s", e.Name, e.NetworkID)
}

// ArtifactLoadError reports a role whose artifact could not be loaded or
// parsed. The other roles are unaffected.
type ArtifactLoadError struct {
	Role ContractRole
	Name string
	Err  error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("artifact %s for %s: %v", e.Name, e.Role, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error { return e.Err }
