// Package fakewallet is an in-process JSON-RPC wallet used by tests. It exposes
// the eth_/net_ methods an injected browser wallet serves and records every
// transaction it is asked to send.
package fakewallet

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// RPCError is returned to clients with a JSON-RPC error code.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string  { return e.Message }
func (e *RPCError) ErrorCode() int { return e.Code }

// UserRejected is what a wallet answers when the user clicks "Reject".
func UserRejected() error {
	return &RPCError{Code: 4001, Message: "MetaMask Tx Signature: User denied transaction signature."}
}

// SentTx is a transaction the wallet acknowledged or refused.
type SentTx struct {
	From   common.Address
	To     common.Address
	Data   []byte
	Method string
	Args   []interface{}
	Hash   common.Hash
}

type contract struct {
	abi     abi.ABI
	values  map[string]map[common.Address]*big.Int
	callErr error
}

// Wallet holds the fake chain state.
type Wallet struct {
	mu sync.Mutex

	netVersion string
	accounts   []common.Address
	accessErr  error
	contracts  map[common.Address]*contract
	sent       []SentTx
	receipts   map[common.Hash]*types.Receipt
	sendHook   func(SentTx) error
	autoMine   bool
	nonce      int64
	calls      int
}

// New returns a wallet attached to netVersion exposing accounts.
func New(netVersion string, accounts ...common.Address) *Wallet {
	return &Wallet{
		netVersion: netVersion,
		accounts:   accounts,
		contracts:  make(map[common.Address]*contract),
		receipts:   make(map[common.Hash]*types.Receipt),
	}
}

// Server builds an rpc.Server serving the wallet.
func (w *Wallet) Server() *rpc.Server {
	srv := rpc.NewServer()
	if err := srv.RegisterName("eth", &ethService{w: w}); err != nil {
		panic(err)
	}
	if err := srv.RegisterName("net", &netService{w: w}); err != nil {
		panic(err)
	}
	return srv
}

// Dial returns an in-process client connected to a fresh server.
func (w *Wallet) Dial() *rpc.Client {
	return rpc.DialInProc(w.Server())
}

// Deploy registers a contract at addr with its ABI JSON.
func (w *Wallet) Deploy(addr common.Address, abiJSON string) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic(err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.contracts[addr] = &contract{abi: parsed, values: make(map[string]map[common.Address]*big.Int)}
}

// SetValue sets the result of a single-address view method, e.g. balanceOf.
func (w *Wallet) SetValue(addr common.Address, method string, holder common.Address, v *big.Int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := w.contracts[addr]
	if c.values[method] == nil {
		c.values[method] = make(map[common.Address]*big.Int)
	}
	c.values[method][holder] = new(big.Int).Set(v)
}

// FailCalls makes every eth_call against addr fail with err (nil clears it).
func (w *Wallet) FailCalls(addr common.Address, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.contracts[addr].callErr = err
}

// DenyAccess makes eth_requestAccounts fail with err.
func (w *Wallet) DenyAccess(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accessErr = err
}

// OnSend installs a hook run for every eth_sendTransaction before it is
// acknowledged. A non-nil error refuses the transaction. The hook may block.
func (w *Wallet) OnSend(fn func(SentTx) error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sendHook = fn
}

// AutoMine makes every acknowledged transaction immediately mined successfully.
func (w *Wallet) AutoMine(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.autoMine = on
}

// Mine records a receipt for hash.
func (w *Wallet) Mine(hash common.Hash, success bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.receipts[hash] = newReceipt(hash, success)
}

// Sent returns the acknowledged transactions in submission order.
func (w *Wallet) Sent() []SentTx {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]SentTx, len(w.sent))
	copy(out, w.sent)
	return out
}

// Calls returns the number of eth_call requests served.
func (w *Wallet) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

func newReceipt(hash common.Hash, success bool) *types.Receipt {
	status := types.ReceiptStatusSuccessful
	if !success {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{
		Status:            status,
		TxHash:            hash,
		Logs:              []*types.Log{},
		BlockNumber:       big.NewInt(1),
		GasUsed:           50_000,
		CumulativeGasUsed: 50_000,
	}
}

type callArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Input hexutil.Bytes   `json:"input"`
	Data  hexutil.Bytes   `json:"data"`
	Gas   *hexutil.Uint64 `json:"gas"`
}

func (a callArgs) payload() []byte {
	if len(a.Input) > 0 {
		return a.Input
	}
	return a.Data
}

type ethService struct{ w *Wallet }

func (s *ethService) RequestAccounts() ([]common.Address, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.accessErr != nil {
		return nil, s.w.accessErr
	}
	return s.w.accounts, nil
}

func (s *ethService) Accounts() []common.Address {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.w.accounts
}

func (s *ethService) GetCode(addr common.Address, block string) (hexutil.Bytes, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if _, ok := s.w.contracts[addr]; ok {
		return hexutil.Bytes{0x60, 0x80}, nil
	}
	return hexutil.Bytes{}, nil
}

func (s *ethService) Call(args callArgs, block string) (hexutil.Bytes, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.w.calls++
	if args.To == nil {
		return nil, fmt.Errorf("missing to")
	}
	c, ok := s.w.contracts[*args.To]
	if !ok {
		return hexutil.Bytes{}, nil
	}
	if c.callErr != nil {
		return nil, c.callErr
	}
	data := args.payload()
	if len(data) < 4 {
		return nil, fmt.Errorf("calldata too short")
	}
	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("execution reverted: %v", err)
	}
	in, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("execution reverted: %v", err)
	}
	v := big.NewInt(0)
	if len(in) > 0 {
		if holder, ok := in[0].(common.Address); ok {
			if stored := c.values[method.Name][holder]; stored != nil {
				v = stored
			}
		}
	}
	return method.Outputs.Pack(v)
}

func (s *ethService) SendTransaction(args callArgs) (common.Hash, error) {
	s.w.mu.Lock()
	tx := SentTx{Data: args.payload()}
	if args.From != nil {
		tx.From = *args.From
	}
	if args.To != nil {
		tx.To = *args.To
		if c, ok := s.w.contracts[tx.To]; ok && len(tx.Data) >= 4 {
			if method, err := c.abi.MethodById(tx.Data[:4]); err == nil {
				tx.Method = method.Name
				tx.Args, _ = method.Inputs.Unpack(tx.Data[4:])
			}
		}
	}
	hook := s.w.sendHook
	s.w.mu.Unlock()

	if hook != nil {
		if err := hook(tx); err != nil {
			return common.Hash{}, err
		}
	}

	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.w.nonce++
	tx.Hash = common.BigToHash(big.NewInt(0xfa000 + s.w.nonce))
	s.w.sent = append(s.w.sent, tx)
	if s.w.autoMine {
		s.w.receipts[tx.Hash] = newReceipt(tx.Hash, true)
	}
	return tx.Hash, nil
}

func (s *ethService) GetTransactionReceipt(hash common.Hash) (*types.Receipt, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.w.receipts[hash], nil
}

type netService struct{ w *Wallet }

func (s *netService) Version() string {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.w.netVersion
}
