// Package reqtracker tracks outstanding request ids awaiting a server
// acknowledgment: duplicate-key coalescing, per-request timeouts, a bounded
// pending count with oldest-entry eviction, and a periodic sweep that
// catches any entry whose timer failed to fire.
package reqtracker

import (
	"container/list"
	"log"
	"sync"
	"time"

	"voicecore/wire"
)

// Result is what a tracked request settles with: either the matched
// acknowledgment message, or an error from the taxonomy in errors.go.
type Result struct {
	Message *wire.Message
	Err     error
}

// group holds every Track() call sharing one event_id. The first Track call
// for an event_id creates the group (and its timer and capacity-order
// entry); subsequent duplicate Track calls for the same event_id just add a
// listener that settles alongside the original, per the duplicate-key rule.
type group struct {
	eventID     string
	eventType   string
	submittedAt time.Time
	timeout     time.Duration
	deadline    time.Time
	timer       *time.Timer
	listeners   []chan Result
	settled     bool
	elem        *list.Element // this group's node in Tracker.order
}

// Tracker is the request/acknowledgment tracker (C5). Safe for concurrent
// use.
type Tracker struct {
	mu       sync.Mutex
	groups   map[string]*group
	order    *list.List // oldest at Front, newest at Back
	capacity int

	sweepInterval time.Duration
	stopSweep     chan struct{}
	sweepDone     chan struct{}
	closeOnce     sync.Once
}

// New returns a Tracker with the given capacity bound and sweep interval,
// and starts its background sweep goroutine.
func New(capacity int, sweepInterval time.Duration) *Tracker {
	t := &Tracker{
		groups:        make(map[string]*group),
		order:         list.New(),
		capacity:      capacity,
		sweepInterval: sweepInterval,
		stopSweep:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
	go t.sweepLoop()
	return t
}

// Track registers eventID as awaiting acknowledgment and returns a channel
// that receives exactly one Result when it settles (matched ack, timeout,
// cancel, clear, or capacity eviction). The channel is buffered so a
// settlement never blocks on a receiver that isn't listening yet.
func (t *Tracker) Track(eventID, eventType string, timeout time.Duration) <-chan Result {
	ch := make(chan Result, 1)

	t.mu.Lock()
	if g, ok := t.groups[eventID]; ok && !g.settled {
		// Duplicate key: ride along with the original's settlement.
		g.listeners = append(g.listeners, ch)
		t.mu.Unlock()
		return ch
	}

	g := &group{
		eventID:     eventID,
		eventType:   eventType,
		submittedAt: time.Now(),
		timeout:     timeout,
		deadline:    time.Now().Add(timeout),
		listeners:   []chan Result{ch},
	}
	g.elem = t.order.PushBack(g)
	t.groups[eventID] = g

	g.timer = time.AfterFunc(timeout, func() {
		t.settle(eventID, Result{Err: ErrRequestTimeout})
	})

	var evicted *group
	if t.capacity > 0 && len(t.groups) > t.capacity {
		if front := t.order.Front(); front != nil {
			evicted = front.Value.(*group)
		}
	}
	t.mu.Unlock()

	if evicted != nil {
		t.settle(evicted.eventID, Result{Err: ErrTrackerLimit})
	}

	return ch
}

// MatchAck settles the pending entry for eventID, if any, with msg. It
// returns false (and settles nothing) if no pending entry matches eventID —
// the caller should then fall through to normal handler routing, since an
// ack with no matching pending request is treated as an unsolicited
// notification, not an error.
func (t *Tracker) MatchAck(eventID string, msg *wire.Message) bool {
	return t.settle(eventID, Result{Message: msg})
}

// Cancel settles the pending entry for eventID, if any, with ErrCancelled.
func (t *Tracker) Cancel(eventID string) {
	t.settle(eventID, Result{Err: ErrCancelled})
}

// Clear settles every pending entry with ErrTrackerCleared, e.g. on
// disconnect.
func (t *Tracker) Clear() {
	t.mu.Lock()
	ids := make([]string, 0, len(t.groups))
	for id := range t.groups {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for _, id := range ids {
		t.settle(id, Result{Err: ErrTrackerCleared})
	}
}

// Close clears every pending entry and stops the sweep goroutine. Safe to
// call more than once.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		close(t.stopSweep)
		<-t.sweepDone
	})
	t.Clear()
}

// Len returns the current number of distinct pending event ids.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.groups)
}

// settle is the single path by which a group transitions to settled,
// guaranteeing exactly-once delivery: the timer is stopped before any
// listener is notified, so a race between MatchAck and the timeout timer
// can never double-settle.
func (t *Tracker) settle(eventID string, result Result) bool {
	t.mu.Lock()
	g, ok := t.groups[eventID]
	if !ok || g.settled {
		t.mu.Unlock()
		return false
	}
	g.settled = true
	delete(t.groups, eventID)
	if g.elem != nil {
		t.order.Remove(g.elem)
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	listeners := g.listeners
	t.mu.Unlock()

	for _, ch := range listeners {
		ch <- result
	}
	return true
}

func (t *Tracker) sweepLoop() {
	defer close(t.sweepDone)
	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopSweep:
			return
		case <-ticker.C:
			t.sweepStaleEntries()
		}
	}
}

func (t *Tracker) sweepStaleEntries() {
	now := time.Now()
	t.mu.Lock()
	var stale []string
	for id, g := range t.groups {
		if now.Sub(g.submittedAt) > 2*g.timeout {
			stale = append(stale, id)
		}
	}
	t.mu.Unlock()

	for _, id := range stale {
		if t.settle(id, Result{Err: ErrRequestTimeout}) {
			log.Printf("[reqtracker] sweep evicted stale entry %q past 2x timeout", id)
		}
	}
}
