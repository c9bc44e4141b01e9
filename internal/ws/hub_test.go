package ws

import (
	"testing"
	"time"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil)
	hub.Register(client)

	hub.Publish(WsEvent{
		Event: EventSessionOpen,
		Data:  SessionEventData{Phone: "628123456789", State: "open"},
	})

	select {
	case evt := <-client.send:
		if evt.Event != EventSessionOpen {
			t.Fatalf("event = %q, want %q", evt.Event, EventSessionOpen)
		}
		if evt.Timestamp.IsZero() {
			t.Fatal("Publish did not stamp the event")
		}
		data, ok := evt.Data.(SessionEventData)
		if !ok {
			t.Fatalf("data type = %T", evt.Data)
		}
		if data.Phone != "628123456789" {
			t.Fatalf("data = %+v", data)
		}
	case <-time.After(time.Second):
		t.Fatal("event never reached the client")
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil)
	hub.Register(client)
	hub.Unregister(client)

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-client.send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("send channel never closed")
		}
	}
}
