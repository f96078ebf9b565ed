// Package state holds the UI-facing application state. Every mutation goes
// through a named setter that replaces one field under the store lock, and
// every read is a deep copy.
package state

import (
	"sync"
	"time"

	"token_farm/internal/app/port"
	"token_farm/internal/domain/entity"
)

// maxNotices bounds the notice list; the oldest entries are dropped first.
const maxNotices = 50

// Store implements port.Notifier.
type Store struct {
	mu      sync.RWMutex
	state   entity.ApplicationState
	subs    map[int]chan entity.ApplicationState
	nextSub int

	logger  port.Logger
	metrics port.Metrics
	now     func() time.Time
}

var _ port.Notifier = (*Store)(nil)

// NewStore returns a store in its initial state: default account, zero
// balances, no contracts, loading set.
func NewStore(log port.Logger, metrics port.Metrics) *Store {
	s := &Store{
		state: entity.ApplicationState{
			Account:   entity.DefaultAccount,
			Contracts: make(map[entity.ContractRole]*entity.ContractHandle),
			Balances:  entity.NewBalanceSnapshot(),
			Loading:   true,
			Phase:     entity.PhaseIdle,
		},
		subs:    make(map[int]chan entity.ApplicationState),
		logger:  log,
		metrics: metrics,
		now:     time.Now,
	}
	if metrics != nil {
		metrics.SetLoading(true)
	}
	return s
}

func (s *Store) update(fn func(st *entity.ApplicationState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	if len(s.subs) == 0 {
		return
	}
	snapshot := cloneState(s.state)
	for _, ch := range s.subs {
		// Sends never block; a slow subscriber only sees the latest state.
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

// SetAccount records the session account.
func (s *Store) SetAccount(account entity.Account) {
	s.update(func(st *entity.ApplicationState) { st.Account = account })
}

// SetNetwork records the detected network.
func (s *Store) SetNetwork(def entity.NetworkDefinition) {
	s.update(func(st *entity.ApplicationState) {
		st.NetworkID = def.ID
		st.Network = def
	})
}

// SetContract stores the handle for role. A nil handle marks the contract absent.
func (s *Store) SetContract(role entity.ContractRole, handle *entity.ContractHandle) {
	s.update(func(st *entity.ApplicationState) {
		contracts := make(map[entity.ContractRole]*entity.ContractHandle, len(st.Contracts)+1)
		for k, v := range st.Contracts {
			contracts[k] = v
		}
		if handle == nil {
			delete(contracts, role)
		} else {
			contracts[role] = handle
		}
		st.Contracts = contracts
	})
}

// SetBalance writes one slot and marks it authoritative. Other slots are untouched.
func (s *Store) SetBalance(slot entity.BalanceSlot, value string) {
	s.update(func(st *entity.ApplicationState) {
		balances := st.Balances.Clone()
		balances.Values[slot] = value
		balances.Resolved[slot] = true
		st.Balances = balances
	})
}

// SetLoading toggles the busy indicator.
func (s *Store) SetLoading(loading bool) {
	s.update(func(st *entity.ApplicationState) { st.Loading = loading })
	if s.metrics != nil {
		s.metrics.SetLoading(loading)
	}
}

// SetPhase records the transaction state machine phase.
func (s *Store) SetPhase(phase entity.OrchestratorPhase) {
	s.update(func(st *entity.ApplicationState) { st.Phase = phase })
}

// SetStartupError records the error that halted startup.
func (s *Store) SetStartupError(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.update(func(st *entity.ApplicationState) { st.StartupError = msg })
}

// PushNotice appends a user-visible notice.
func (s *Store) PushNotice(level entity.NoticeLevel, message string) {
	n := entity.Notice{Level: level, Message: message, At: s.now()}
	s.update(func(st *entity.ApplicationState) {
		notices := make([]entity.Notice, 0, len(st.Notices)+1)
		notices = append(notices, st.Notices...)
		notices = append(notices, n)
		if len(notices) > maxNotices {
			notices = notices[len(notices)-maxNotices:]
		}
		st.Notices = notices
	})
}

// Notify implements port.Notifier. Every notice is also logged at WARN.
func (s *Store) Notify(level entity.NoticeLevel, message string) {
	if s.logger != nil {
		s.logger.Warn("Notice", "level", string(level), "message", message)
	}
	s.PushNotice(level, message)
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() entity.ApplicationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state)
}

// Subscribe returns a channel receiving the state after each mutation, and a
// cancel func that closes it.
func (s *Store) Subscribe() (<-chan entity.ApplicationState, func()) {
	ch := make(chan entity.ApplicationState, 1)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func cloneState(st entity.ApplicationState) entity.ApplicationState {
	out := st
	out.Contracts = make(map[entity.ContractRole]*entity.ContractHandle, len(st.Contracts))
	for k, v := range st.Contracts {
		out.Contracts[k] = v
	}
	out.Balances = st.Balances.Clone()
	out.Notices = make([]entity.Notice, len(st.Notices))
	copy(out.Notices, st.Notices)
	return out
}
