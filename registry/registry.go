// Package registry routes decoded wire messages to handlers by event type,
// with the *.error fallback chain described in the wire protocol: an error
// event first tries its own exact handler, then the base event's registered
// error handler, then a primary wildcard, before being reported unhandled.
package registry

import (
	"log"
	"strings"
	"sync"

	"github.com/samber/lo"

	"voicecore/wire"
)

// Handler processes one decoded message. raw is the original frame bytes
// (handlers that need a second look at bytes the decoder didn't surface can
// use it); msg is the already-decoded structure, so handlers never decode
// twice. A returned error is logged by the registry and does not propagate.
type Handler func(raw []byte, msg *wire.Message) error

const wildcardErrorKey = "error"
const errorSuffix = ".error"

// Registry is the handler registry (C4). Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	primary map[string]Handler
	errs    map[string]Handler
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		primary: make(map[string]Handler),
		errs:    make(map[string]Handler),
	}
}

// Register installs handler for eventType in the primary map. Registering an
// already-registered event type replaces the existing handler; this
// replace-on-write behavior is load-bearing for callers that re-install
// their full handler set after rebuilding the owning session.
func (r *Registry) Register(eventType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary[eventType] = handler
}

// RegisterError installs handler for baseEventType in the error map, used
// when routing an event type of the form "<baseEventType>.error".
func (r *Registry) RegisterError(baseEventType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[baseEventType] = handler
}

// Unregister removes any primary handler for eventType. It is a no-op if
// none is registered.
func (r *Registry) Unregister(eventType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.primary, eventType)
}

// Registered returns the currently registered primary event types, for
// callers that want to diff their desired handler set against what is
// installed (see the session-rebuild shadow-map pattern).
func (r *Registry) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.primary)
}

// Route dispatches a decoded message to the appropriate handler and reports
// whether it was handled. Handler errors are logged and still count as
// handled, so a failing handler never causes duplicate routing attempts.
func (r *Registry) Route(raw []byte, eventType string, msg *wire.Message) (handled bool) {
	h := r.resolve(eventType)
	if h == nil {
		log.Printf("[registry] unhandled-event: no handler for %q", eventType)
		return false
	}
	if err := h(raw, msg); err != nil {
		log.Printf("[registry] handler-exception: event %q: %v", eventType, err)
	}
	return true
}

func (r *Registry) resolve(eventType string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if strings.HasSuffix(eventType, errorSuffix) {
		if h, ok := r.primary[eventType]; ok {
			return h
		}
		base := strings.TrimSuffix(eventType, errorSuffix)
		if h, ok := r.errs[base]; ok {
			return h
		}
		if h, ok := r.primary[wildcardErrorKey]; ok {
			return h
		}
		return nil
	}

	if h, ok := r.primary[eventType]; ok {
		return h
	}
	return nil
}
