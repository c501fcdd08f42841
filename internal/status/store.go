// Package status holds the process-wide DacStatus record: one writer
// (the protocol engine, which resets it on accept and updates
// buffer_fullness on the hot per-frame path), read by the beacon and by
// the protocol engine when it builds each response.
package status

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/etherdreamd/internal/dacproto"
)

// Store is a single-writer-preferring lock around a DacStatus. Writers
// use a non-blocking try-acquire and skip the update on contention;
// readers do the same and fall back to a zeroed snapshot rather than
// blocking. Lock contention never stalls the beacon or the protocol
// engine's hot path; a stale buffer_fullness is an acceptable cost.
type Store struct {
	mu      sync.Mutex
	current dacproto.DacStatus
	logger  *log.Logger
}

// New returns a Store holding an all-zero DacStatus, the process's
// starting status.
func New(logger *log.Logger) *Store {
	return &Store{logger: logger}
}

// Reset clears the status to all-zero; called each time a new client
// is accepted, so every session starts from a fresh status.
func (s *Store) Reset() {
	s.Update(func(st *dacproto.DacStatus) {
		*st = dacproto.DacStatus{}
	})
}

// Update applies mutate to the status under a non-blocking try-acquire.
// If the lock is contended the update is silently skipped (logged at
// Debug) and the caller's stale status persists until the next attempt.
func (s *Store) Update(mutate func(*dacproto.DacStatus)) {
	if !s.mu.TryLock() {
		if s.logger != nil {
			s.logger.Debug("status update skipped, store contended")
		}
		return
	}
	defer s.mu.Unlock()

	mutate(&s.current)
}

// Snapshot returns a value copy of the current status. On lock
// contention it returns a zeroed DacStatus rather than blocking.
func (s *Store) Snapshot() dacproto.DacStatus {
	if !s.mu.TryLock() {
		if s.logger != nil {
			s.logger.Debug("status snapshot skipped, store contended")
		}
		return dacproto.DacStatus{}
	}
	defer s.mu.Unlock()

	return s.current
}
