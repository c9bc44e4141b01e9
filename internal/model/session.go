package model

import (
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
)

// State is the lifecycle state of one pairing session.
type State string

const (
	StateConnecting        State = "connecting"
	StateOpen              State = "open"
	StateClosedRecoverable State = "closed_recoverable"
	StateClosedUnauth      State = "closed_unauthorized"
	StateTerminated        State = "terminated"
)

// Session is one per-phone-number pairing session. Client and Container are
// owned by the service layer; the timer handles guard the deferred cleanup
// and reconnect actions so they can be cancelled outright when a state
// change invalidates them.
type Session struct {
	Phone     string
	Dir       string
	JID       string
	Client    *whatsmeow.Client
	Container *sqlstore.Container

	mu             sync.Mutex
	state          State
	registered     bool
	onboarded      bool
	cleanupTimer   *time.Timer
	reconnectTimer *time.Timer
}

func NewSession(phone, dir string) *Session {
	return &Session{
		Phone: phone,
		Dir:   dir,
		state: StateConnecting,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) SetState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Registered reports whether pairing completed at least once for this
// session (the account has stored credentials).
func (s *Session) Registered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registered
}

// MarkRegistered flags the session as registered and cancels any pending
// cleanup: a session that completed registration is never garbage-collected.
func (s *Session) MarkRegistered() {
	s.mu.Lock()
	s.registered = true
	if s.cleanupTimer != nil {
		s.cleanupTimer.Stop()
		s.cleanupTimer = nil
	}
	s.mu.Unlock()
}

// MarkOnboarded records that the post-registration action sequence ran.
// Returns false if it already had, so the sequence runs at most once even
// when the connection reopens later.
func (s *Session) MarkOnboarded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onboarded {
		return false
	}
	s.onboarded = true
	return true
}

// SetCleanupTimer replaces the pending cleanup timer. Starting a new grace
// window stops the previous one, so two overlapping windows can never both
// fire for the same number.
func (s *Session) SetCleanupTimer(t *time.Timer) {
	s.mu.Lock()
	if s.cleanupTimer != nil {
		s.cleanupTimer.Stop()
	}
	s.cleanupTimer = t
	s.mu.Unlock()
}

func (s *Session) StopCleanupTimer() {
	s.mu.Lock()
	if s.cleanupTimer != nil {
		s.cleanupTimer.Stop()
		s.cleanupTimer = nil
	}
	s.mu.Unlock()
}

func (s *Session) SetReconnectTimer(t *time.Timer) {
	s.mu.Lock()
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	s.reconnectTimer = t
	s.mu.Unlock()
}

func (s *Session) StopReconnectTimer() {
	s.mu.Lock()
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.mu.Unlock()
}

// StopTimers cancels every deferred action for this session.
func (s *Session) StopTimers() {
	s.StopCleanupTimer()
	s.StopReconnectTimer()
}
