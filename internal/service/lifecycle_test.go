package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wapair/config"
	"wapair/internal/model"
	"wapair/internal/registry"

	"go.mau.fi/whatsmeow/types/events"
)

func newTestManager(cfg *config.Config) *Manager {
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 3
	}
	if cfg.ReconnectBackoff == 0 {
		cfg.ReconnectBackoff = time.Millisecond
	}
	if cfg.CleanupGrace == 0 {
		cfg.CleanupGrace = 10 * time.Millisecond
	}
	return NewManager(cfg, registry.NewMemoryStore(), nil)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		evt  interface{}
		want Reason
	}{
		{"stream replaced", &events.StreamReplaced{}, ReasonConnectionClosed},
		{"disconnected", &events.Disconnected{}, ReasonConnectionLost},
		{"keepalive timeout", &events.KeepAliveTimeout{}, ReasonRestartRequired},
		{"logged out", &events.LoggedOut{}, ReasonUnauthorized},
		{"temporary ban", &events.TemporaryBan{}, ReasonTemporaryBan},
		{"client outdated", &events.ClientOutdated{}, ReasonClientOutdated},
		{"connected is not a closure", &events.Connected{}, Reason("")},
		{"unknown event", struct{}{}, Reason("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.evt); got != tt.want {
				t.Errorf("classify(%T) = %q, want %q", tt.evt, got, tt.want)
			}
		})
	}
}

func TestRecoverableClosesScheduleReconnect(t *testing.T) {
	m := newTestManager(&config.Config{MaxReconnects: 2, ReconnectBackoff: time.Millisecond})

	called := make(chan string, 4)
	m.reconnectFn = func(phone string) { called <- phone }

	sess := model.NewSession("628123456789", t.TempDir())

	m.onClosed(sess, ReasonConnectionLost)
	select {
	case phone := <-called:
		if phone != "628123456789" {
			t.Fatalf("reconnect scheduled for %q", phone)
		}
	case <-time.After(time.Second):
		t.Fatal("first reconnect never fired")
	}
	if got := m.attempts.Count("628123456789"); got != 1 {
		t.Fatalf("attempt count = %d, want 1", got)
	}
	if got := sess.State(); got != model.StateClosedRecoverable {
		t.Fatalf("state = %q, want %q", got, model.StateClosedRecoverable)
	}

	m.onClosed(sess, ReasonRestartRequired)
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("second reconnect never fired")
	}

	// Third close exceeds the budget: no reconnect, session terminated.
	m.onClosed(sess, ReasonConnectionClosed)
	select {
	case <-called:
		t.Fatal("reconnect fired past the maximum")
	case <-time.After(50 * time.Millisecond):
	}
	if got := sess.State(); got != model.StateTerminated {
		t.Fatalf("state after exhaustion = %q, want %q", got, model.StateTerminated)
	}
	if got := m.attempts.Count("628123456789"); got != 2 {
		t.Fatalf("counter after exhaustion = %d, want 2", got)
	}
}

func TestReconnectCounterNeverExceedsMaximum(t *testing.T) {
	m := newTestManager(&config.Config{MaxReconnects: 3, ReconnectBackoff: time.Millisecond})
	m.reconnectFn = func(string) {}

	sess := model.NewSession("628123456789", t.TempDir())

	for i := 0; i < 6; i++ {
		m.onClosed(sess, ReasonConnectionLost)
		if got := m.attempts.Count("628123456789"); got > 3 {
			t.Fatalf("counter reached %d after close %d, must never pass 3", got, i+1)
		}
	}
	if got := m.attempts.Count("628123456789"); got != 3 {
		t.Fatalf("final counter = %d, want 3", got)
	}

	// /status must report a value within the budget too.
	if got := m.Status().ReconnectAttempts["628123456789"]; got != 3 {
		t.Fatalf("status counter = %d, want 3", got)
	}
}

func TestOpenResetsAttempts(t *testing.T) {
	m := newTestManager(&config.Config{})
	sess := model.NewSession("628123456789", t.TempDir())

	m.attempts.Increment("628123456789")
	m.attempts.Increment("628123456789")

	m.onOpen(sess)

	if got := sess.State(); got != model.StateOpen {
		t.Fatalf("state = %q, want %q", got, model.StateOpen)
	}
	if got := m.attempts.Count("628123456789"); got != 0 {
		t.Fatalf("attempts after open = %d, want 0", got)
	}
}

func TestUnauthorizedCloseCleansUpUnregistered(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "628123456789")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "session.db"), []byte("creds"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := newTestManager(&config.Config{CleanupGrace: 10 * time.Millisecond})
	sess := model.NewSession("628123456789", dir)
	m.sessions["628123456789"] = sess

	m.onClosed(sess, ReasonUnauthorized)

	if got := sess.State(); got != model.StateClosedUnauth {
		t.Fatalf("state = %q, want %q", got, model.StateClosedUnauth)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session directory was never cleaned up")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, ok := m.GetSession("628123456789"); ok {
		t.Fatal("session still registered after cleanup")
	}
}

func TestRegistrationCancelsCleanup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "628123456789")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	m := newTestManager(&config.Config{CleanupGrace: 50 * time.Millisecond})
	sess := model.NewSession("628123456789", dir)
	m.sessions["628123456789"] = sess

	m.onClosed(sess, ReasonUnauthorized)

	// Pairing completes inside the grace window.
	sess.MarkRegistered()

	time.Sleep(200 * time.Millisecond)

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("session directory removed despite registration: %v", err)
	}
	if _, ok := m.GetSession("628123456789"); !ok {
		t.Fatal("registered session dropped from the registry")
	}
}

func TestUnauthorizedCloseKeepsRegisteredSession(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "628123456789")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	m := newTestManager(&config.Config{CleanupGrace: 10 * time.Millisecond})
	sess := model.NewSession("628123456789", dir)
	sess.MarkRegistered()
	m.sessions["628123456789"] = sess

	m.onClosed(sess, ReasonUnauthorized)
	time.Sleep(100 * time.Millisecond)

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("registered session directory removed after 401: %v", err)
	}
}

func TestTerminalCloseStopsSession(t *testing.T) {
	m := newTestManager(&config.Config{})
	called := make(chan string, 1)
	m.reconnectFn = func(phone string) { called <- phone }

	sess := model.NewSession("628123456789", t.TempDir())
	m.onClosed(sess, ReasonTemporaryBan)

	if got := sess.State(); got != model.StateTerminated {
		t.Fatalf("state = %q, want %q", got, model.StateTerminated)
	}
	select {
	case <-called:
		t.Fatal("reconnect scheduled for a banned session")
	case <-time.After(50 * time.Millisecond):
	}
	if got := m.attempts.Count("628123456789"); got != 0 {
		t.Fatalf("terminal close counted as a reconnect attempt: %d", got)
	}
}

func TestPairNumberValidation(t *testing.T) {
	m := newTestManager(&config.Config{MaxReconnects: 2})

	var gotPhone string
	m.pairFn = func(ctx context.Context, phone string) (*PairResult, error) {
		gotPhone = phone
		return &PairResult{Phone: phone, Code: "WXYZ-ABCD"}, nil
	}

	if _, err := m.PairNumber(context.Background(), "  +- "); !errors.Is(err, ErrPhoneRequired) {
		t.Fatalf("digit-free number: err = %v, want ErrPhoneRequired", err)
	}

	res, err := m.PairNumber(context.Background(), "+62 812-3456-789")
	if err != nil {
		t.Fatalf("PairNumber returned error: %v", err)
	}
	if gotPhone != "628123456789" {
		t.Fatalf("pair flow received %q, want sanitized digits", gotPhone)
	}
	if res.Code != "WXYZ-ABCD" {
		t.Fatalf("res.Code = %q", res.Code)
	}
}

func TestPairNumberRespectsAttemptBudget(t *testing.T) {
	m := newTestManager(&config.Config{MaxReconnects: 2})
	m.pairFn = func(ctx context.Context, phone string) (*PairResult, error) {
		t.Fatal("pair flow ran for an exhausted number")
		return nil, nil
	}

	m.attempts.Increment("628123456789")
	m.attempts.Increment("628123456789")

	if _, err := m.PairNumber(context.Background(), "628123456789"); !errors.Is(err, ErrTooManyReconnects) {
		t.Fatalf("err = %v, want ErrTooManyReconnects", err)
	}
}

func TestResetAttempts(t *testing.T) {
	m := newTestManager(&config.Config{})
	m.attempts.Increment("628123456789")

	if got := m.ResetAttempts("+62 812 3456 789"); got != "628123456789" {
		t.Fatalf("ResetAttempts returned %q", got)
	}
	if got := m.attempts.Count("628123456789"); got != 0 {
		t.Fatalf("count after reset = %d, want 0", got)
	}

	if got := m.ResetAttempts("---"); got != "" {
		t.Fatalf("ResetAttempts accepted a digit-free number: %q", got)
	}
}

func TestStatusReport(t *testing.T) {
	m := newTestManager(&config.Config{})
	m.attempts.Increment("628123456789")

	report := m.Status()
	if report.ActiveSocket {
		t.Fatal("ActiveSocket true with no client")
	}
	if report.ReconnectAttempts["628123456789"] != 1 {
		t.Fatalf("ReconnectAttempts = %v", report.ReconnectAttempts)
	}
}
