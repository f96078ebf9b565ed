package entity

import (
	"strconv"
	"strings"
)

// DefaultAccount is the account value held before the provider exposes one.
const DefaultAccount Account = "0x0"

// Account is the single active address of the session.
type Account string

// String returns the address as text.
func (a Account) String() string {
	return string(a)
}

// IsResolved reports whether the account was set from the provider.
func (a Account) IsResolved() bool {
	return a != "" && a != DefaultAccount
}

// NetworkID identifies the chain the provider is attached to. It is the value
// returned by net_version and the key of every artifact's deployment table.
type NetworkID uint64

// String formats the id the way deployment tables key it.
func (n NetworkID) String() string {
	return strconv.FormatUint(uint64(n), 10)
}

// ParseNetworkID parses a deployment table key or a net_version result.
func ParseNetworkID(s string) (NetworkID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	return NetworkID(v), nil
}
