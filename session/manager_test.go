package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voicecore/bus"
	"voicecore/netstatus"
	"voicecore/registry"
	"voicecore/reqtracker"
	"voicecore/transport"
	"voicecore/voicecfg"
	"voicecore/wire"
)

// newFakeServer upgrades one connection and runs handle on it in its own
// goroutine, giving tests full control over what frames are sent back.
func newFakeServer(t *testing.T, handle func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go handle(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws://" + strings.TrimPrefix(srv.URL, "http://")
}

func newTestManager(t *testing.T, url string) *Manager {
	t.Helper()
	cfg := voicecfg.Default()
	cfg.ConnectionTimeout = 2 * time.Second
	cfg.LivenessInterval = time.Hour

	monitor := netstatus.New(10 * time.Millisecond)
	tr := transport.New(cfg, monitor)
	reg := registry.New()
	tracker := reqtracker.New(cfg.RequestMaxPending, time.Hour)
	t.Cleanup(tracker.Close)
	b := bus.New()

	m := New(tr, reg, tracker, b)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tr.Connect(ctx, url); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return m
}

func sendAckFrame(t *testing.T, conn *websocket.Conn, eventID, sessionID string) {
	t.Helper()
	payload, _ := json.Marshal(wire.AckEnvelope{Success: true})
	raw, err := wire.Encode(wire.Message{EventType: "voicechat.audio.start", EventID: eventID, SessionID: sessionID, Payload: payload})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	conn.WriteMessage(websocket.BinaryMessage, raw)
}

func TestConnectionAckLatchesSessionID(t *testing.T) {
	url := newFakeServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		payload, _ := json.Marshal(wire.ConnectionAckPayload{SessionID: "S1"})
		raw, _ := wire.Encode(wire.Message{EventType: "connection.ack", EventID: "e0", Payload: payload})
		conn.WriteMessage(websocket.BinaryMessage, raw)
		conn.ReadMessage()
	})

	m := newTestManager(t, url)

	deadline := time.Now().Add(2 * time.Second)
	for m.SessionID() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if m.SessionID() != "S1" {
		t.Fatalf("SessionID() = %q, want S1", m.SessionID())
	}
}

func TestSendWithAckSettlesOnMatchingAck(t *testing.T) {
	var serverConn *websocket.Conn
	connReady := make(chan struct{})

	url := newFakeServer(t, func(conn *websocket.Conn) {
		serverConn = conn
		close(connReady)

		payload, _ := json.Marshal(wire.ConnectionAckPayload{SessionID: "S1"})
		raw, _ := wire.Encode(wire.Message{EventType: "connection.ack", EventID: "e0", Payload: payload})
		conn.WriteMessage(websocket.BinaryMessage, raw)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := wire.Decode(data)
			if err != nil {
				continue
			}
			sendAckFrame(t, conn, msg.EventID, "S1")
		}
	})

	m := newTestManager(t, url)
	<-connReady

	deadline := time.Now().Add(2 * time.Second)
	for m.SessionID() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := m.SendWithAck(ctx, "voicechat.audio.start", []byte(`{"samplingRate":16000}`), time.Second)
	if err != nil {
		t.Fatalf("SendWithAck: %v", err)
	}
	if msg == nil {
		t.Fatal("expected a matched ack message")
	}
}

func TestSendWithoutSessionFails(t *testing.T) {
	url := newFakeServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.ReadMessage()
	})
	m := newTestManager(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := m.SendWithAck(ctx, "voicechat.audio.start", nil, time.Second); err != ErrSessionNotEstablished {
		t.Fatalf("err = %v, want ErrSessionNotEstablished", err)
	}
}
