package service

import (
	"log"
	"os"
	"time"

	"wapair/config"
	"wapair/internal/helper"
	"wapair/internal/model"
	"wapair/internal/ws"

	"go.mau.fi/whatsmeow/types/events"
)

// Reason labels why a connection closed. The recoverable set drives the
// retry policy; everything else either ends the session or tears it down.
type Reason string

const (
	ReasonConnectionClosed Reason = "connection_closed"
	ReasonConnectionLost   Reason = "connection_lost"
	ReasonRestartRequired  Reason = "restart_required"
	ReasonUnauthorized     Reason = "unauthorized"
	ReasonTemporaryBan     Reason = "temporary_ban"
	ReasonClientOutdated   Reason = "client_outdated"
	ReasonUnknown          Reason = "unknown"
)

var recoverable = map[Reason]bool{
	ReasonConnectionClosed: true,
	ReasonConnectionLost:   true,
	ReasonRestartRequired:  true,
}

// classify maps a raw client event to a close reason, or "" for events that
// are not closures.
func classify(evt interface{}) Reason {
	switch evt.(type) {
	case *events.StreamReplaced:
		return ReasonConnectionClosed
	case *events.Disconnected:
		return ReasonConnectionLost
	case *events.KeepAliveTimeout:
		return ReasonRestartRequired
	case *events.LoggedOut:
		return ReasonUnauthorized
	case *events.TemporaryBan:
		return ReasonTemporaryBan
	case *events.ClientOutdated:
		return ReasonClientOutdated
	}
	return ""
}

// eventHandler builds the per-session whatsmeow event callback. It must be
// attached before the first Connect.
func (m *Manager) eventHandler(sess *model.Session) func(interface{}) {
	return func(rawEvt interface{}) {
		switch evt := rawEvt.(type) {
		case *events.PairSuccess:
			sess.JID = evt.ID.String()
			sess.MarkRegistered()
			if got := helper.ExtractPhoneFromJID(sess.JID); got != sess.Phone {
				log.Printf("lifecycle: paired JID %s does not match requested number %s", sess.JID, sess.Phone)
			}
			log.Printf("lifecycle: ✓ %s paired as %s", sess.Phone, evt.ID)

		case *events.Connected:
			m.onOpen(sess)

		default:
			if reason := classify(rawEvt); reason != "" {
				m.onClosed(sess, reason)
			}
		}
	}
}

func (m *Manager) onOpen(sess *model.Session) {
	sess.SetState(model.StateOpen)
	sess.StopTimers()

	if sess.Client != nil && sess.Client.Store.ID != nil {
		sess.JID = sess.Client.Store.ID.String()
		sess.MarkRegistered()
	}

	// A healthy open wipes the retry history for this number.
	m.attempts.Reset(sess.Phone)

	log.Printf("lifecycle: ✓ session %s open (%s)", sess.Phone, sess.JID)
	m.publish(ws.EventSessionOpen, ws.SessionEventData{
		Phone: sess.Phone,
		State: string(model.StateOpen),
	})

	if config.OnboardEnabled && sess.Registered() && sess.MarkOnboarded() {
		go m.runOnboarding(sess)
	}
}

func (m *Manager) onClosed(sess *model.Session, reason Reason) {
	log.Printf("lifecycle: session %s closed (%s)", sess.Phone, reason)

	switch {
	case reason == ReasonUnauthorized:
		sess.SetState(model.StateClosedUnauth)
		m.publish(ws.EventSessionClosed, ws.SessionEventData{
			Phone:  sess.Phone,
			State:  string(model.StateClosedUnauth),
			Reason: string(reason),
		})
		if !sess.Registered() {
			m.scheduleCleanup(sess)
		}

	case recoverable[reason]:
		sess.SetState(model.StateClosedRecoverable)
		m.scheduleReconnect(sess, reason)

	default:
		// Bans and forced upgrades are not retried.
		sess.SetState(model.StateTerminated)
		sess.StopTimers()
		m.publish(ws.EventSessionClosed, ws.SessionEventData{
			Phone:  sess.Phone,
			State:  string(model.StateTerminated),
			Reason: string(reason),
		})
	}
}

// scheduleReconnect counts the attempt and arms the backoff timer, or gives
// up once the number has exhausted its budget. The budget check comes
// before the increment so the stored counter never passes the maximum.
func (m *Manager) scheduleReconnect(sess *model.Session, reason Reason) {
	if used := m.attempts.Count(sess.Phone); used >= m.cfg.MaxReconnects {
		sess.SetState(model.StateTerminated)
		sess.StopTimers()
		log.Printf("lifecycle: session %s exhausted its %d reconnects, giving up", sess.Phone, m.cfg.MaxReconnects)
		m.publish(ws.EventReconnectExhausted, ws.SessionEventData{
			Phone:   sess.Phone,
			State:   string(model.StateTerminated),
			Reason:  string(reason),
			Attempt: used,
		})
		return
	}

	attempt := m.attempts.Increment(sess.Phone)

	log.Printf("lifecycle: session %s reconnect %d/%d in %s (%s)",
		sess.Phone, attempt, m.cfg.MaxReconnects, m.cfg.ReconnectBackoff, reason)
	m.publish(ws.EventReconnectScheduled, ws.SessionEventData{
		Phone:   sess.Phone,
		State:   string(model.StateClosedRecoverable),
		Reason:  string(reason),
		Attempt: attempt,
	})

	phone := sess.Phone
	sess.SetReconnectTimer(time.AfterFunc(m.cfg.ReconnectBackoff, func() {
		m.reconnectFn(phone)
	}))
}

// scheduleCleanup arms the grace-period timer for an unauthorized session.
// Completing registration cancels it (MarkRegistered stops the timer), so a
// session that pairs within the window is left alone.
func (m *Manager) scheduleCleanup(sess *model.Session) {
	log.Printf("lifecycle: session %s unauthorized, cleanup in %s unless it registers", sess.Phone, m.cfg.CleanupGrace)
	sess.SetCleanupTimer(time.AfterFunc(m.cfg.CleanupGrace, func() {
		m.cleanupSession(sess)
	}))
}

// cleanupSession removes an abandoned session's credentials and registry
// entry. It re-checks registration so a pairing that landed after the timer
// was armed but before it fired is never wiped.
func (m *Manager) cleanupSession(sess *model.Session) {
	if sess.Registered() {
		return
	}

	log.Printf("lifecycle: cleaning up abandoned session %s", sess.Phone)
	sess.StopTimers()
	if sess.Client != nil {
		sess.Client.Disconnect()
	}
	if err := os.RemoveAll(sess.Dir); err != nil {
		log.Printf("lifecycle: failed to remove session dir %s: %v", sess.Dir, err)
	}
	m.removeSession(sess.Phone)
	m.attempts.Reset(sess.Phone)

	m.publish(ws.EventSessionCleanup, ws.SessionEventData{
		Phone: sess.Phone,
		State: string(model.StateTerminated),
	})
}
