package client

import (
	"context"
	"fmt"

	"token_farm/internal/app/port"
	"token_farm/internal/domain/entity"
)

// ResolveNetwork returns the id of the network the provider is attached to.
// There is no retry; the error aborts startup.
func ResolveNetwork(ctx context.Context, provider port.ChainProvider) (entity.NetworkID, error) {
	id, err := provider.NetworkID(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve network: %w", err)
	}
	return id, nil
}

// ResolveAccount returns the first account the wallet exposes.
func ResolveAccount(ctx context.Context, provider port.ChainProvider) (entity.Account, error) {
	accounts, err := provider.Accounts(ctx)
	if err != nil {
		return entity.DefaultAccount, fmt.Errorf("resolve account: %w", err)
	}
	if len(accounts) == 0 {
		return entity.DefaultAccount, fmt.Errorf("resolve account: %w: wallet exposes no accounts", entity.ErrProviderQueryFailed)
	}
	return entity.Account(accounts[0].Hex()), nil
}
