package port

import (
	"context"

	"token_farm/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// SendTxArgs is the payload of eth_sendTransaction. The wallet behind the
// provider fills in nonce, gas and fees and signs.
type SendTxArgs struct {
	From common.Address
	To   common.Address
	Data []byte
	Gas  uint64
}

// ChainProvider is the session's connection to the wallet/node.
type ChainProvider interface {
	// Kind reports whether the provider was detected as modern or legacy.
	Kind() ProviderKind

	// Endpoint is the address the provider was reached at.
	Endpoint() string

	// Accounts enumerates the accounts the wallet exposes (eth_accounts).
	Accounts(ctx context.Context) ([]common.Address, error)

	// NetworkID returns the id of the attached network (net_version).
	NetworkID(ctx context.Context) (entity.NetworkID, error)

	// Caller is the read-only backend used by bound contracts.
	Caller() bind.ContractCaller

	// SendTransaction submits a write and returns once the wallet hands back
	// the transaction hash (submission acknowledgement, not mining).
	SendTransaction(ctx context.Context, args SendTxArgs) (common.Hash, error)

	// TransactionReceipt returns the receipt, or ethereum.NotFound while pending.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)

	Close()
}

// ProviderKind distinguishes wallet providers that require an explicit
// account access request from those that do not.
type ProviderKind string

const (
	ProviderModern ProviderKind = "ethereum"
	ProviderLegacy ProviderKind = "web3"
)

// Environment is the execution environment a provider is injected into.
type Environment interface {
	// Lookup returns the endpoint injected under kind, if any.
	Lookup(kind ProviderKind) (string, bool)
}

// ProviderConnector detects and wraps the injected provider.
type ProviderConnector interface {
	Connect(ctx context.Context) (ChainProvider, error)
}
