package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"wapair/config"
	"wapair/database"
	"wapair/internal/helper"
	"wapair/internal/model"
	"wapair/internal/registry"
	"wapair/internal/ws"

	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

var (
	ErrPhoneRequired     = errors.New("phone number required")
	ErrTooManyReconnects = errors.New("too many reconnects")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrPairingFailed     = errors.New("pairing failed")
)

// Manager owns the pairing sessions. At most one pairing flow runs at a
// time (pairMu); the session registry maps sanitized numbers to their
// session, and the attempt store carries the per-number reconnect counters.
type Manager struct {
	cfg      *config.Config
	attempts registry.AttemptStore
	Realtime ws.RealtimePublisher
	uploader *Uploader

	// pairMu serializes the whole pairing flow, including scheduled
	// reconnects. It is the only thing keeping two flows from writing the
	// same credential store at once.
	pairMu sync.Mutex

	sessionsLock sync.RWMutex
	sessions     map[string]*model.Session

	// Process-wide holder for the most recently created client, used only
	// for status reporting.
	active *model.Session

	// Indirections for tests.
	pairFn      func(ctx context.Context, phone string) (*PairResult, error)
	reconnectFn func(phone string)
}

// PairResult is the synchronous outcome of a pairing request. Everything
// that happens after it is returned (registration, onboarding, reconnects)
// is observable only via logs, /status and the realtime hub.
type PairResult struct {
	Phone             string
	Code              string
	AlreadyRegistered bool
	JID               string
}

func NewManager(cfg *config.Config, attempts registry.AttemptStore, realtime ws.RealtimePublisher) *Manager {
	m := &Manager{
		cfg:      cfg,
		attempts: attempts,
		Realtime: realtime,
		sessions: make(map[string]*model.Session),
	}
	m.pairFn = m.doPair
	m.reconnectFn = m.repair
	if cfg.UploadURL != "" {
		m.uploader = NewUploader(cfg.UploadURL)
	}
	return m
}

// PairNumber runs the synchronous part of the pairing flow for a raw phone
// number: sanitize, check the reconnect budget, load-or-create the session
// and either report "already registered" or request a fresh pairing code.
func (m *Manager) PairNumber(ctx context.Context, raw string) (*PairResult, error) {
	phone := helper.SanitizePhone(raw)
	if phone == "" {
		return nil, ErrPhoneRequired
	}

	m.pairMu.Lock()
	defer m.pairMu.Unlock()

	if m.attempts.Count(phone) >= m.cfg.MaxReconnects {
		return nil, fmt.Errorf("%w: %s", ErrTooManyReconnects, phone)
	}

	return m.pairFn(ctx, phone)
}

// doPair assumes pairMu is held.
func (m *Manager) doPair(ctx context.Context, phone string) (*PairResult, error) {
	sess, err := m.getOrCreateSession(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPairingFailed, err)
	}

	if sess.Client.Store.ID != nil {
		// Credentials already on disk; no pairing code needed.
		sess.MarkRegistered()
		if !sess.Client.IsConnected() {
			if err := sess.Client.Connect(); err != nil {
				log.Printf("service: reconnect of registered session %s failed: %v", phone, err)
			}
		}
		return &PairResult{
			Phone:             phone,
			AlreadyRegistered: true,
			JID:               sess.Client.Store.ID.String(),
		}, nil
	}

	sess.SetState(model.StateConnecting)
	if !sess.Client.IsConnected() {
		if err := sess.Client.Connect(); err != nil {
			return nil, fmt.Errorf("%w: connect: %v", ErrPairingFailed, err)
		}
	}

	code, err := sess.Client.PairPhone(ctx, phone, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
	if err != nil {
		log.Printf("service: pairing code request for %s rejected: %v", phone, err)
		return nil, fmt.Errorf("%w: %v", ErrPairingFailed, err)
	}

	formatted := helper.FormatPairingCode(code)
	log.Printf("service: ✓ pairing code issued for %s", phone)
	m.publish(ws.EventPairingCode, ws.SessionEventData{Phone: phone, State: string(sess.State())})

	return &PairResult{Phone: phone, Code: formatted}, nil
}

// getOrCreateSession loads the session for a number, creating the directory,
// credential store and client on first use. The event handler is attached
// before any connect so no notification is missed.
func (m *Manager) getOrCreateSession(ctx context.Context, phone string) (*model.Session, error) {
	m.sessionsLock.RLock()
	sess, ok := m.sessions[phone]
	m.sessionsLock.RUnlock()
	if ok {
		return sess, nil
	}

	dir := filepath.Join(m.cfg.SessionsDir, phone)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	container, err := database.OpenSessionStore(ctx, dir, m.cfg.SessionDatabaseURL, phone)
	if err != nil {
		return nil, err
	}

	device, err := m.resolveDevice(ctx, container, phone)
	if err != nil {
		return nil, err
	}

	store.DeviceProps.Os = proto.String("WAPair Gateway")

	clientLog := waLog.Stdout("Client-"+phone, "INFO", true)
	client := whatsmeow.NewClient(device, clientLog)
	// The lifecycle handler owns the retry policy.
	client.EnableAutoReconnect = false

	sess = model.NewSession(phone, dir)
	sess.Client = client
	sess.Container = container
	if device.ID != nil {
		sess.MarkRegistered()
		sess.JID = device.ID.String()
	}
	if hasOnboardMarker(dir) {
		sess.MarkOnboarded()
	}

	client.AddEventHandler(m.eventHandler(sess))

	m.sessionsLock.Lock()
	m.sessions[phone] = sess
	m.active = sess
	m.sessionsLock.Unlock()

	return sess, nil
}

// deviceStore is the slice of sqlstore.Container that device resolution
// needs.
type deviceStore interface {
	GetFirstDevice(ctx context.Context) (*store.Device, error)
	GetAllDevices(ctx context.Context) ([]*store.Device, error)
	NewDevice() *store.Device
}

// resolveDevice picks the credential record for a number. The per-number
// sqlite store holds at most one device, so the first one is it. The shared
// Postgres store holds every number's devices in one table, so the device
// must be matched by JID user part; anything else would hand one number
// another account's credentials.
func (m *Manager) resolveDevice(ctx context.Context, st deviceStore, phone string) (*store.Device, error) {
	if m.cfg.SessionDatabaseURL == "" {
		device, err := st.GetFirstDevice(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return st.NewDevice(), nil
			}
			return nil, fmt.Errorf("load device: %w", err)
		}
		return device, nil
	}

	devices, err := st.GetAllDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("load devices: %w", err)
	}
	for _, device := range devices {
		if device.ID != nil && device.ID.User == phone {
			return device, nil
		}
	}
	return st.NewDevice(), nil
}

// GetSession returns the in-memory session for a number, if any.
func (m *Manager) GetSession(phone string) (*model.Session, bool) {
	m.sessionsLock.RLock()
	defer m.sessionsLock.RUnlock()
	sess, ok := m.sessions[phone]
	return sess, ok
}

func (m *Manager) removeSession(phone string) {
	m.sessionsLock.Lock()
	if sess, ok := m.sessions[phone]; ok {
		delete(m.sessions, phone)
		if m.active == sess {
			m.active = nil
		}
	}
	m.sessionsLock.Unlock()
}

// repair is the scheduled-reconnect target: it re-runs the full pairing
// flow for a number under the same exclusive lock as /pair.
func (m *Manager) repair(phone string) {
	m.pairMu.Lock()
	defer m.pairMu.Unlock()

	res, err := m.doPair(context.Background(), phone)
	if err != nil {
		log.Printf("service: scheduled reconnect for %s failed: %v", phone, err)
		m.publish(ws.EventSessionError, ws.SessionEventData{
			Phone:  phone,
			Reason: err.Error(),
		})
		return
	}
	if res.AlreadyRegistered {
		log.Printf("service: ✓ reconnected registered session %s", phone)
	} else {
		// A fresh code can only reach the user through the realtime hub
		// at this point; the original HTTP request is long gone.
		log.Printf("service: reconnect for %s issued a new pairing code", phone)
	}
}

// BeginQRLogin starts a QR login for a number and returns the first QR code
// rendered as a PNG. Fallback path for devices where the pairing-code UI is
// unavailable.
func (m *Manager) BeginQRLogin(ctx context.Context, raw string) ([]byte, error) {
	phone := helper.SanitizePhone(raw)
	if phone == "" {
		return nil, ErrPhoneRequired
	}

	m.pairMu.Lock()
	defer m.pairMu.Unlock()

	if m.attempts.Count(phone) >= m.cfg.MaxReconnects {
		return nil, fmt.Errorf("%w: %s", ErrTooManyReconnects, phone)
	}

	sess, err := m.getOrCreateSession(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPairingFailed, err)
	}
	if sess.Client.Store.ID != nil {
		return nil, ErrAlreadyRegistered
	}

	qrChan, err := sess.Client.GetQRChannel(ctx)
	if err != nil {
		if errors.Is(err, whatsmeow.ErrQRStoreContainsID) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("%w: qr channel: %v", ErrPairingFailed, err)
	}
	if err := sess.Client.Connect(); err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrPairingFailed, err)
	}

	for {
		select {
		case evt, ok := <-qrChan:
			if !ok {
				return nil, fmt.Errorf("%w: qr channel closed", ErrPairingFailed)
			}
			if evt.Event == "code" {
				return qrcode.Encode(evt.Code, qrcode.Medium, 256)
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrPairingFailed, ctx.Err())
		}
	}
}

// ResumeSessions reconnects every registered session found under the
// sessions directory. Called once at startup.
func (m *Manager) ResumeSessions(ctx context.Context) error {
	entries, err := os.ReadDir(m.cfg.SessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read sessions dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		phone := helper.SanitizePhone(entry.Name())
		if phone == "" || phone != entry.Name() {
			continue
		}

		sess, err := m.getOrCreateSession(ctx, phone)
		if err != nil {
			log.Printf("service: failed to load session %s: %v", phone, err)
			continue
		}
		if !sess.Registered() {
			log.Printf("service: session %s has no credentials, skipping resume", phone)
			continue
		}
		if err := sess.Client.Connect(); err != nil {
			log.Printf("service: failed to reconnect session %s: %v", phone, err)
			continue
		}
		log.Printf("service: ✓ resumed session %s (%s)", phone, sess.JID)
	}
	return nil
}

// StatusReport is the /status payload.
type StatusReport struct {
	ActiveSocket      bool           `json:"active_socket"`
	ReconnectAttempts map[string]int `json:"reconnect_attempts"`
}

func (m *Manager) Status() StatusReport {
	m.sessionsLock.RLock()
	active := m.active
	m.sessionsLock.RUnlock()

	return StatusReport{
		ActiveSocket:      active != nil && active.Client != nil && active.Client.IsConnected(),
		ReconnectAttempts: m.attempts.All(),
	}
}

// ResetAttempts clears the reconnect counter for a number, the external
// intervention that unblocks a number stuck at the maximum.
func (m *Manager) ResetAttempts(raw string) string {
	phone := helper.SanitizePhone(raw)
	if phone == "" {
		return ""
	}
	m.attempts.Reset(phone)
	return phone
}

// Shutdown disconnects every live client and cancels pending timers.
func (m *Manager) Shutdown() {
	m.sessionsLock.Lock()
	defer m.sessionsLock.Unlock()

	for phone, sess := range m.sessions {
		sess.StopTimers()
		if sess.Client != nil {
			sess.Client.Disconnect()
		}
		delete(m.sessions, phone)
	}
	m.active = nil
}

func (m *Manager) publish(event string, data ws.SessionEventData) {
	if m.Realtime == nil {
		return
	}
	m.Realtime.Publish(ws.WsEvent{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}
