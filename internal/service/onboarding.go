package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wapair/database"
	"wapair/internal/helper"
	"wapair/internal/model"
	"wapair/internal/ws"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"
)

// runOnboarding walks a freshly registered session through the welcome
// sequence: greeting message to the account's own chat, credential file
// upload, and the derived session ID quoted back onto the greeting. Every
// step failure is logged and ends the sequence; nothing here surfaces to
// the HTTP caller.
func (m *Manager) runOnboarding(sess *model.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if sess.Client == nil {
		m.onboardingFailed(sess, fmt.Errorf("no client attached"))
		return
	}
	self, err := helper.ParseJID(sess.Phone)
	if err != nil {
		m.onboardingFailed(sess, err)
		return
	}

	// Let the new device finish its post-pair sync before we push messages.
	time.Sleep(m.cfg.SettleDelay)

	greeting, err := m.sendGreeting(ctx, sess, self)
	if err != nil {
		m.onboardingFailed(sess, fmt.Errorf("greeting: %w", err))
		return
	}
	log.Printf("onboarding: ✓ greeting sent to %s", sess.Phone)

	if m.uploader == nil {
		log.Printf("onboarding: no upload endpoint configured, skipping session ID for %s", sess.Phone)
		writeOnboardMarker(sess.Dir)
		m.publish(ws.EventOnboardingDone, ws.SessionEventData{
			Phone: sess.Phone,
			State: string(sess.State()),
		})
		return
	}

	time.Sleep(m.cfg.SettleDelay)

	sessionID, err := m.deliverSessionID(ctx, sess, self, greeting)
	if err != nil {
		m.onboardingFailed(sess, fmt.Errorf("session ID delivery: %w", err))
		return
	}

	log.Printf("onboarding: ✓ session %s onboarded (%s)", sess.Phone, sessionID)
	writeOnboardMarker(sess.Dir)
	m.publish(ws.EventOnboardingDone, ws.SessionEventData{
		Phone:     sess.Phone,
		State:     string(sess.State()),
		SessionID: sessionID,
	})
}

// onboardingFailed logs the failure and surfaces it to realtime listeners.
// Onboarding is never retried within a process run.
func (m *Manager) onboardingFailed(sess *model.Session, err error) {
	log.Printf("onboarding: session %s failed: %v", sess.Phone, err)
	m.publish(ws.EventSessionError, ws.SessionEventData{
		Phone:  sess.Phone,
		State:  string(sess.State()),
		Reason: err.Error(),
	})
}

// The marker file makes the once-only onboarding survive restarts; without
// it every resumed session would get the full greeting sequence again.
const onboardedMarker = ".onboarded"

func writeOnboardMarker(dir string) {
	if err := os.WriteFile(filepath.Join(dir, onboardedMarker), nil, 0o644); err != nil {
		log.Printf("onboarding: failed to write marker in %s: %v", dir, err)
	}
}

func hasOnboardMarker(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, onboardedMarker))
	return err == nil
}

// sendGreeting pushes the welcome message into the account's own chat,
// with the configured image attached when one is set. Returns the sent
// message and its ID so the session ID can quote it later.
func (m *Manager) sendGreeting(ctx context.Context, sess *model.Session, self types.JID) (*sentMessage, error) {
	var msg *waE2E.Message

	if m.cfg.GreetingImageURL != "" {
		imageMsg, err := m.buildImageMessage(ctx, sess, m.cfg.GreetingImageURL, m.cfg.GreetingMessage)
		if err != nil {
			// Fall back to plain text rather than dropping the greeting.
			log.Printf("onboarding: greeting image failed, sending text only: %v", err)
			msg = &waE2E.Message{Conversation: proto.String(m.cfg.GreetingMessage)}
		} else {
			msg = &waE2E.Message{ImageMessage: imageMsg}
		}
	} else {
		msg = &waE2E.Message{Conversation: proto.String(m.cfg.GreetingMessage)}
	}

	resp, err := sess.Client.SendMessage(ctx, self, msg)
	if err != nil {
		return nil, err
	}
	return &sentMessage{ID: resp.ID, Message: msg}, nil
}

type sentMessage struct {
	ID      types.MessageID
	Message *waE2E.Message
}

// buildImageMessage fetches an image over HTTP, uploads it to the media
// servers and assembles the resulting ImageMessage.
func (m *Manager) buildImageMessage(ctx context.Context, sess *model.Session, imageURL, caption string) (*waE2E.ImageMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	httpResp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %d", httpResp.StatusCode)
	}
	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	uploaded, err := sess.Client.Upload(ctx, data, whatsmeow.MediaImage)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	mimetype := httpResp.Header.Get("Content-Type")
	if mimetype == "" {
		mimetype = "image/jpeg"
	}

	return &waE2E.ImageMessage{
		URL:           &uploaded.URL,
		DirectPath:    &uploaded.DirectPath,
		MediaKey:      uploaded.MediaKey,
		FileEncSHA256: uploaded.FileEncSHA256,
		FileSHA256:    uploaded.FileSHA256,
		FileLength:    &uploaded.FileLength,
		Mimetype:      proto.String(mimetype),
		Caption:       proto.String(caption),
	}, nil
}

// deliverSessionID uploads the credential file, derives the session ID from
// the returned location and sends it into the self chat as a reply quoting
// the greeting.
func (m *Manager) deliverSessionID(ctx context.Context, sess *model.Session, self types.JID, greeting *sentMessage) (string, error) {
	if m.cfg.SessionDatabaseURL != "" {
		return "", fmt.Errorf("shared database sessions have no file to upload")
	}

	credFile := database.CredentialFile(sess.Dir)
	if _, err := os.Stat(credFile); err != nil {
		return "", fmt.Errorf("credential file: %w", err)
	}

	location, err := m.uploader.Upload(ctx, credFile)
	if err != nil {
		return "", fmt.Errorf("upload credentials: %w", err)
	}

	sessionID := SessionID(m.cfg.SessionIDPrefix, location)

	reply := &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(sessionID),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID:      proto.String(string(greeting.ID)),
				Participant:   proto.String(self.String()),
				QuotedMessage: greeting.Message,
			},
		},
	}
	if _, err := sess.Client.SendMessage(ctx, self, reply); err != nil {
		return "", fmt.Errorf("send session id: %w", err)
	}
	return sessionID, nil
}

// SessionID derives the user-facing session ID from an upload location:
// the configured prefix joined to the last path segment of the URL.
func SessionID(prefix, location string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(location), "/")
	idx := strings.LastIndex(trimmed, "/")
	suffix := trimmed
	if idx >= 0 {
		suffix = trimmed[idx+1:]
	}
	return prefix + suffix
}
