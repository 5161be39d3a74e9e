// Package session composes the transport client, codec, handler registry,
// and request tracker into the session manager (C6): it owns the session
// identifier, decodes and routes inbound frames, and exposes send /
// send-with-ack to callers.
package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"voicecore/bus"
	"voicecore/ids"
	"voicecore/registry"
	"voicecore/reqtracker"
	"voicecore/transport"
	"voicecore/wire"
)

const connectionAckEventType = "connection.ack"

// Manager is the Session Manager (C6).
type Manager struct {
	transport *transport.Client
	registry  *registry.Registry
	tracker   *reqtracker.Tracker
	bus       *bus.Bus

	mu        sync.RWMutex
	sessionID string
}

// New wires a Manager around the given components and installs the
// transport callbacks. tr, reg, and tracker are owned by this Manager for
// the lifetime of the session, per the shared-resource discipline: external
// components reach them only through Manager's methods.
func New(tr *transport.Client, reg *registry.Registry, tracker *reqtracker.Tracker, b *bus.Bus) *Manager {
	m := &Manager{transport: tr, registry: reg, tracker: tracker, bus: b}
	tr.SetOnState(m.handleState)
	tr.SetOnData(m.handleData)
	return m
}

// Transport returns the owned transport client, for callers (notably the
// orchestrator) that need to inspect connection state directly.
func (m *Manager) Transport() *transport.Client {
	return m.transport
}

// SessionID returns the currently latched session id, or "" if none.
func (m *Manager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

func (m *Manager) setSessionID(id string) {
	m.mu.Lock()
	m.sessionID = id
	m.mu.Unlock()
}

func (m *Manager) clearSessionID() {
	m.mu.Lock()
	m.sessionID = ""
	m.mu.Unlock()
}

// Register installs handler for eventType, delegating to the owned
// registry.
func (m *Manager) Register(eventType string, handler registry.Handler) {
	m.registry.Register(eventType, handler)
}

// RegisterError installs handler for baseEventType's error fallback,
// delegating to the owned registry.
func (m *Manager) RegisterError(baseEventType string, handler registry.Handler) {
	m.registry.RegisterError(baseEventType, handler)
}

// Unregister removes the handler for eventType.
func (m *Manager) Unregister(eventType string) {
	m.registry.Unregister(eventType)
}

// Send encodes event and hands it to the transport, fire-and-forget. It
// fails with ErrSessionNotEstablished if no session_id has been latched
// yet.
func (m *Manager) Send(ctx context.Context, eventType string, payload []byte) error {
	msg, err := m.buildOutbound(eventType, payload)
	if err != nil {
		return err
	}
	raw, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	return m.transport.Send(ctx, raw)
}

// SendWithAck registers the request before encoding and returns the matched
// acknowledgment message, or an error (request-timeout, tracker-limit,
// tracker-cleared, cancelled, or a transport send failure).
func (m *Manager) SendWithAck(ctx context.Context, eventType string, payload []byte, timeout time.Duration) (*wire.Message, error) {
	msg, err := m.buildOutbound(eventType, payload)
	if err != nil {
		return nil, err
	}

	resultCh := m.tracker.Track(msg.EventID, eventType, timeout)

	raw, err := wire.Encode(msg)
	if err != nil {
		m.tracker.Cancel(msg.EventID)
		return nil, err
	}
	if err := m.transport.Send(ctx, raw); err != nil {
		m.tracker.Cancel(msg.EventID)
		return nil, err
	}

	select {
	case res := <-resultCh:
		return res.Message, res.Err
	case <-ctx.Done():
		m.tracker.Cancel(msg.EventID)
		return nil, ctx.Err()
	}
}

func (m *Manager) buildOutbound(eventType string, payload []byte) (wire.Message, error) {
	sessionID := m.SessionID()
	if sessionID == "" {
		return wire.Message{}, ErrSessionNotEstablished
	}
	return wire.Message{
		EventType: eventType,
		EventID:   ids.NewEventID(),
		SessionID: sessionID,
		Payload:   payload,
	}, nil
}

// Disconnect tears down the transport and drops the session, rejecting all
// pending tracked requests with tracker-cleared.
func (m *Manager) Disconnect(clear bool) {
	m.transport.Disconnect(clear)
	m.tracker.Clear()
	m.clearSessionID()
}

func (m *Manager) handleState(s transport.State) {
	m.bus.PublishConnectionState(s)
	if s == transport.StateDisconnected || s == transport.StateError {
		m.clearSessionID()
	}
}

func (m *Manager) handleData(raw []byte) {
	msg, err := wire.Decode(raw)
	if err != nil {
		log.Printf("[session] decode-error: %v", err)
		return
	}
	if msg.EventType == "" {
		log.Printf("[session] dropping frame with empty event_type")
		return
	}

	if msg.EventType == connectionAckEventType {
		var payload wire.ConnectionAckPayload
		if err := json.Unmarshal(msg.Payload, &payload); err == nil && payload.SessionID != "" {
			m.setSessionID(payload.SessionID)
			m.bus.PublishConnectionAck(payload.SessionID)
		}
	}

	if msg.EventID != "" && wire.IsAck(msg.Payload) {
		if m.tracker.MatchAck(msg.EventID, &msg) {
			return
		}
		// No pending entry matched: an unsolicited ack, not an error.
		// Fall through to handler routing (preserved by design, see notes
		// on the open question about orphan acknowledgments).
	}

	m.registry.Route(raw, msg.EventType, &msg)
}
