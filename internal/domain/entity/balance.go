package entity

// BalanceSlot names one account-scoped reading.
type BalanceSlot string

const (
	StakingTokenBalance BalanceSlot = "stakingTokenBalance"
	RewardTokenBalance  BalanceSlot = "rewardTokenBalance"
	StakedBalance       BalanceSlot = "stakingBalance"
)

// ZeroBalance is the default value of every slot.
const ZeroBalance = "0"

// SlotForRole maps a contract role to the balance it feeds.
func SlotForRole(role ContractRole) BalanceSlot {
	switch role {
	case RoleStakingToken:
		return StakingTokenBalance
	case RoleRewardToken:
		return RewardTokenBalance
	case RoleFarm:
		return StakedBalance
	}
	return ""
}

// BalanceSnapshot holds base-unit integer strings. A slot is authoritative only
// when Resolved reports true for it.
type BalanceSnapshot struct {
	Values   map[BalanceSlot]string `json:"values"`
	Resolved map[BalanceSlot]bool   `json:"resolved"`
}

// NewBalanceSnapshot returns a snapshot with every slot at zero.
func NewBalanceSnapshot() BalanceSnapshot {
	s := BalanceSnapshot{
		Values:   make(map[BalanceSlot]string, len(AllRoles)),
		Resolved: make(map[BalanceSlot]bool, len(AllRoles)),
	}
	for _, role := range AllRoles {
		slot := SlotForRole(role)
		s.Values[slot] = ZeroBalance
		s.Resolved[slot] = false
	}
	return s
}

// Clone returns a deep copy.
func (s BalanceSnapshot) Clone() BalanceSnapshot {
	out := BalanceSnapshot{
		Values:   make(map[BalanceSlot]string, len(s.Values)),
		Resolved: make(map[BalanceSlot]bool, len(s.Resolved)),
	}
	for k, v := range s.Values {
		out.Values[k] = v
	}
	for k, v := range s.Resolved {
		out.Resolved[k] = v
	}
	return out
}

// Get returns the slot value, "0" when unset.
func (s BalanceSnapshot) Get(slot BalanceSlot) string {
	if v, ok := s.Values[slot]; ok && v != "" {
		return v
	}
	return ZeroBalance
}
