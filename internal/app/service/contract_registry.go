package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"token_farm/internal/app/port"
	"token_farm/internal/domain/entity"
	networkdefinition "token_farm/internal/infrastructure/network/definition"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"golang.org/x/sync/errgroup"
)

// ResolveResult is the outcome of binding one descriptor. Exactly one of
// Handle and Err is set.
type ResolveResult struct {
	Role   entity.ContractRole
	Name   string
	Handle *entity.ContractHandle
	Err    error
}

// Absent reports whether the contract has no deployment on the network.
func (r ResolveResult) Absent() bool {
	var notDeployed *entity.ContractNotDeployedError
	return errors.As(r.Err, &notDeployed)
}

// ContractRegistry binds descriptors to the detected network and keeps the
// resulting handles for the session.
type ContractRegistry struct {
	store  port.StateStore
	logger port.Logger

	mu      sync.RWMutex
	handles map[entity.ContractRole]*entity.ContractHandle
}

// NewContractRegistry creates an empty registry.
func NewContractRegistry(store port.StateStore, logger port.Logger) *ContractRegistry {
	return &ContractRegistry{
		store:   store,
		logger:  logger,
		handles: make(map[entity.ContractRole]*entity.ContractHandle),
	}
}

// Resolve binds every descriptor concurrently. Each role gets its own result;
// a failing branch never blocks or cancels the others. A role that already
// has a handle is not bound again.
func (r *ContractRegistry) Resolve(
	ctx context.Context,
	descriptors map[entity.ContractRole]entity.ContractDescriptor,
	networkID entity.NetworkID,
	caller bind.ContractCaller,
) map[entity.ContractRole]ResolveResult {
	r.logger.Debug("Resolving contracts", "network_id", networkID.String(), "count", len(descriptors))

	results := make(map[entity.ContractRole]ResolveResult, len(descriptors))
	var mu sync.Mutex

	eg, _ := errgroup.WithContext(ctx)
	for role, descriptor := range descriptors {
		role, descriptor := role, descriptor
		eg.Go(func() error {
			res := r.resolveOne(role, descriptor, networkID, caller)
			mu.Lock()
			results[role] = res
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	resolved := 0
	for _, res := range results {
		if res.Handle != nil {
			resolved++
		}
	}
	r.logger.Info("Contract resolution complete", "resolved", resolved, "absent", len(results)-resolved)
	return results
}

func (r *ContractRegistry) resolveOne(
	role entity.ContractRole,
	descriptor entity.ContractDescriptor,
	networkID entity.NetworkID,
	caller bind.ContractCaller,
) ResolveResult {
	if existing := r.Handle(role); existing != nil && existing.NetworkID == networkID {
		return ResolveResult{Role: role, Name: existing.Name, Handle: existing}
	}

	handle, err := networkdefinition.Bind(descriptor, networkID, caller)
	if err != nil {
		var notDeployed *entity.ContractNotDeployedError
		if errors.As(err, &notDeployed) && notDeployed.Reason != "" {
			r.logger.Warn("Malformed deployment entry treated as not deployed",
				"contract", descriptor.Name, "network_id", networkID.String(), "reason", notDeployed.Reason)
		} else {
			r.logger.Warn("Contract not deployed to detected network", "contract", descriptor.Name, "network_id", networkID.String())
		}
		r.store.Notify(entity.NoticeWarning, fmt.Sprintf("%s contract not deployed to detected network.", descriptor.Name))
		return ResolveResult{Role: role, Name: descriptor.Name, Err: err}
	}

	r.mu.Lock()
	r.handles[role] = handle
	r.mu.Unlock()
	r.store.SetContract(role, handle)

	r.logger.Info("Contract resolved", "contract", handle.Name, "role", string(role), "address", handle.Address.Hex())
	return ResolveResult{Role: role, Name: descriptor.Name, Handle: handle}
}

// Unavailable records a role whose artifact could not be loaded. It is
// reported like a contract that is not deployed to the network.
func (r *ContractRegistry) Unavailable(failure *entity.ArtifactLoadError, networkID entity.NetworkID) ResolveResult {
	r.logger.Warn("Contract artifact unavailable", "contract", failure.Name, "role", string(failure.Role), "error", failure.Err)
	r.store.Notify(entity.NoticeWarning, fmt.Sprintf("%s contract not deployed to detected network.", failure.Name))
	return ResolveResult{
		Role: failure.Role,
		Name: failure.Name,
		Err: &entity.ContractNotDeployedError{
			Name:      failure.Name,
			NetworkID: networkID,
			Reason:    fmt.Sprintf("artifact unavailable: %v", failure.Err),
		},
	}
}

// Handle returns the handle for role, or nil when absent.
func (r *ContractRegistry) Handle(role entity.ContractRole) *entity.ContractHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handles[role]
}
