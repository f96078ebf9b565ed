package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"token_farm/internal/domain/entity"

	"github.com/ethereum/go-ethereum/rpc"
)

// EIP-1193 code for a request the user declined.
const userRejectedRequestCode = 4001

func isUserRejection(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedRequestCode {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user denied") ||
		strings.Contains(msg, "user rejected") ||
		strings.Contains(msg, "rejected by user") ||
		strings.Contains(msg, "request rejected")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "i/o timeout")
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || strings.Contains(strings.ToLower(err.Error()), "context canceled")
}

// cancelled keeps context.Canceled in the chain without a domain sentinel.
func cancelled(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", context.Canceled, err)
}

// classifySendError maps an eth_sendTransaction failure to the domain taxonomy.
// A cancelled call is returned unclassified.
func classifySendError(err error) error {
	switch {
	case isCancelled(err):
		return cancelled(err)
	case isTimeout(err):
		return fmt.Errorf("%w: %w", entity.ErrProviderTimeout, err)
	case isUserRejection(err):
		return fmt.Errorf("%w: %w", entity.ErrTransactionRejected, err)
	default:
		return fmt.Errorf("%w: %w", entity.ErrTransactionSubmissionFailed, err)
	}
}

// classifyQueryError maps a read failure to the domain taxonomy.
func classifyQueryError(method string, err error) error {
	switch {
	case isCancelled(err):
		return fmt.Errorf("%s: %w", method, cancelled(err))
	case isTimeout(err):
		return fmt.Errorf("%s: %w: %w", method, entity.ErrProviderTimeout, err)
	case isUserRejection(err):
		return fmt.Errorf("%s: %w: %w", method, entity.ErrTransactionRejected, err)
	default:
		return fmt.Errorf("%s: %w: %w", method, entity.ErrProviderQueryFailed, err)
	}
}
