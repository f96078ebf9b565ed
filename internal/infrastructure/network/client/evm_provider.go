package client

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"token_farm/internal/app/port"
	"token_farm/internal/domain/entity"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// EVMProvider implements port.ChainProvider over a JSON-RPC wallet endpoint.
type EVMProvider struct {
	kind           port.ProviderKind
	endpoint       string
	rpcClient      *rpc.Client
	ethClient      *ethclient.Client
	rpcCallTimeout time.Duration
	logger         *zap.Logger
}

var _ port.ChainProvider = (*EVMProvider)(nil)

// NewEVMProvider wraps an already dialled RPC client.
func NewEVMProvider(kind port.ProviderKind, endpoint string, rpcClient *rpc.Client, rpcCallTimeout time.Duration, logger *zap.Logger) *EVMProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EVMProvider{
		kind:           kind,
		endpoint:       endpoint,
		rpcClient:      rpcClient,
		ethClient:      ethclient.NewClient(rpcClient),
		rpcCallTimeout: rpcCallTimeout,
		logger:         logger.Named("EVMProvider"),
	}
}

// Kind implements port.ChainProvider.
func (p *EVMProvider) Kind() port.ProviderKind {
	return p.kind
}

func (p *EVMProvider) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.rpcCallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.rpcCallTimeout)
}

// RequestAccounts asks the wallet for account access (eth_requestAccounts).
// The call blocks until the user answers in the wallet UI or ctx ends.
func (p *EVMProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.rpcClient.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, classifyQueryError("eth_requestAccounts", err)
	}
	p.logger.Debug("Account access granted", zap.Int("accounts", len(accounts)))
	return accounts, nil
}

// Accounts implements port.ChainProvider.
func (p *EVMProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	callCtx, cancel := p.callCtx(ctx)
	defer cancel()

	var accounts []common.Address
	if err := p.rpcClient.CallContext(callCtx, &accounts, "eth_accounts"); err != nil {
		return nil, classifyQueryError("eth_accounts", err)
	}
	return accounts, nil
}

// NetworkID implements port.ChainProvider.
func (p *EVMProvider) NetworkID(ctx context.Context) (entity.NetworkID, error) {
	callCtx, cancel := p.callCtx(ctx)
	defer cancel()

	id, err := p.ethClient.NetworkID(callCtx)
	if err != nil {
		return 0, classifyQueryError("net_version", err)
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("%w: net_version %s does not fit uint64", entity.ErrProviderQueryFailed, id)
	}
	return entity.NetworkID(id.Uint64()), nil
}

// Caller implements port.ChainProvider. Every call is bounded by the RPC timeout.
func (p *EVMProvider) Caller() bind.ContractCaller {
	return &boundedCaller{backend: p.ethClient, provider: p}
}

// SendTransaction implements port.ChainProvider.
func (p *EVMProvider) SendTransaction(ctx context.Context, args port.SendTxArgs) (common.Hash, error) {
	callCtx, cancel := p.callCtx(ctx)
	defer cancel()

	arg := map[string]interface{}{
		"from": args.From,
		"to":   args.To,
		"data": hexutil.Bytes(args.Data),
	}
	if args.Gas > 0 {
		arg["gas"] = hexutil.Uint64(args.Gas)
	}

	var hash common.Hash
	if err := p.rpcClient.CallContext(callCtx, &hash, "eth_sendTransaction", arg); err != nil {
		p.logger.Warn("eth_sendTransaction failed",
			zap.String("from", args.From.Hex()),
			zap.String("to", args.To.Hex()),
			zap.Error(err))
		return common.Hash{}, classifySendError(err)
	}
	p.logger.Debug("Transaction acknowledged", zap.String("hash", hash.Hex()), zap.String("to", args.To.Hex()))
	return hash, nil
}

// TransactionReceipt implements port.ChainProvider.
func (p *EVMProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	callCtx, cancel := p.callCtx(ctx)
	defer cancel()

	receipt, err := p.ethClient.TransactionReceipt(callCtx, hash)
	if err != nil {
		if err == ethereum.NotFound {
			return nil, err
		}
		return nil, classifyQueryError("eth_getTransactionReceipt", err)
	}
	return receipt, nil
}

// Endpoint implements port.ChainProvider.
func (p *EVMProvider) Endpoint() string {
	return p.endpoint
}

// Close implements port.ChainProvider.
func (p *EVMProvider) Close() {
	p.rpcClient.Close()
}

// boundedCaller applies the provider RPC timeout to bound-contract reads.
type boundedCaller struct {
	backend  bind.ContractCaller
	provider *EVMProvider
}

func (c *boundedCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	callCtx, cancel := c.provider.callCtx(ctx)
	defer cancel()
	code, err := c.backend.CodeAt(callCtx, contract, blockNumber)
	if err != nil {
		return nil, classifyQueryError("eth_getCode", err)
	}
	return code, nil
}

func (c *boundedCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	callCtx, cancel := c.provider.callCtx(ctx)
	defer cancel()
	out, err := c.backend.CallContract(callCtx, call, blockNumber)
	if err != nil {
		return nil, classifyQueryError("eth_call", err)
	}
	return out, nil
}
