// Package netstatus provides a debounced online/offline signal to the
// transport client, so flapping connectivity doesn't thrash the reconnect
// state machine.
package netstatus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bep/debounce"
)

const defaultDebounce = 500 * time.Millisecond

// Monitor is a single boolean observable: online or offline. Transitions
// are debounced before subscribers are notified. The initial value is
// online, matching the platform-signal-unavailable default.
type Monitor struct {
	online     atomic.Bool
	debouncer  func(func())
	pendingVal atomic.Bool

	mu   sync.Mutex
	subs []func(online bool)
}

// New returns a Monitor debouncing transitions by delay. A delay <= 0 uses
// the default of 500ms.
func New(delay time.Duration) *Monitor {
	if delay <= 0 {
		delay = defaultDebounce
	}
	m := &Monitor{
		debouncer: debounce.New(delay),
	}
	m.online.Store(true)
	return m
}

// Online reports the current (debounced) connectivity state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Subscribe registers fn to be called, synchronously, whenever the debounced
// state changes.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// SetOnline reports a raw connectivity signal from the platform. Rapid
// flapping is collapsed: only the last value within the debounce window is
// applied, and it is broadcast only if it differs from the current state.
func (m *Monitor) SetOnline(online bool) {
	m.pendingVal.Store(online)
	m.debouncer(func() {
		val := m.pendingVal.Load()
		if m.online.Swap(val) == val {
			return
		}
		m.mu.Lock()
		subs := append([]func(online bool){}, m.subs...)
		m.mu.Unlock()
		for _, fn := range subs {
			fn(val)
		}
	})
}
