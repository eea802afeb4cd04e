// Package session manages the single active wallet session: the in-memory
// observable store and the balance polling loop.
package session

import (
	"errors"
	"sync"

	domain "github.com/solsnap/walletcore/internal/app/domain/session"
	"github.com/solsnap/walletcore/internal/solana"
	"github.com/solsnap/walletcore/pkg/logger"
)

// ErrConnectInFlight reports a connect attempt while another is still
// running.
var ErrConnectInFlight = errors.New("connect already in flight")

// Store holds the active session and notifies subscribers on every change.
// Mutations are full atomic replacements of the affected fields; a reader
// never observes a half-applied update. The store is pure in-memory state:
// no network or storage side effects live here.
type Store struct {
	log *logger.Logger

	mu      sync.RWMutex
	current domain.Session
	subs    map[int]chan domain.Session
	nextSub int
}

// NewStore creates an empty session store.
func NewStore(log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewDefault("session")
	}
	return &Store{
		log:  log,
		subs: make(map[int]chan domain.Session),
	}
}

// Current returns a copy of the active session.
func (s *Store) Current() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSession(s.current)
}

// Subscribe registers an observer. The returned channel receives a session
// copy after every change; slow observers see only the most recent state.
// The cancel function releases the subscription.
func (s *Store) Subscribe() (<-chan domain.Session, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan domain.Session, 1)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// BeginConnect marks a connect attempt in flight, guarding re-entry.
func (s *Store) BeginConnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Connecting {
		return ErrConnectInFlight
	}
	s.current.Connecting = true
	s.notifyLocked()
	return nil
}

// EndConnect clears the in-flight flag after a failed connect.
func (s *Store) EndConnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current.Connecting {
		return
	}
	s.current.Connecting = false
	s.notifyLocked()
}

// CommitAuthorized atomically installs the authorized address and token,
// clearing the in-flight flag. The balance resets to unknown until the next
// refresh, keeping address and balance consistent as a pair.
func (s *Store) CommitAuthorized(addr solana.Address, authToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = domain.Session{
		Address:   &addr,
		AuthToken: authToken,
	}
	s.notifyLocked()
	s.log.WithField("address", addr.Short()).Info("session authorized")
}

// UpdateAuthToken replaces the session token after a re-authorization that
// issued a fresh one.
func (s *Store) UpdateAuthToken(authToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current.Connected() || authToken == "" || s.current.AuthToken == authToken {
		return
	}
	s.current.AuthToken = authToken
	s.notifyLocked()
}

// SetBalance records a fresh balance. Ignored while disconnected so the
// balance can never outlive its address.
func (s *Store) SetBalance(lamports uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current.Connected() {
		return
	}
	s.current.Lamports = &lamports
	s.notifyLocked()
}

// InvalidateBalance clears the known balance so the next poll refetches it,
// e.g. after a confirmed stake transfer.
func (s *Store) InvalidateBalance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Lamports == nil {
		return
	}
	s.current.Lamports = nil
	s.notifyLocked()
}

// Reset clears the session to its initial empty state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = domain.Session{}
	s.notifyLocked()
	s.log.Info("session reset")
}

// notifyLocked publishes the current session to all subscribers. The caller
// holds the write lock.
func (s *Store) notifyLocked() {
	snapshot := cloneSession(s.current)
	for _, ch := range s.subs {
		select {
		case ch <- snapshot:
		default:
			// Replace the stale pending value.
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

func cloneSession(s domain.Session) domain.Session {
	if s.Address != nil {
		addr := *s.Address
		s.Address = &addr
	}
	if s.Lamports != nil {
		lamports := *s.Lamports
		s.Lamports = &lamports
	}
	return s
}
