// Package bus implements the process-wide event broadcaster (C9): a
// single-writer, multi-subscriber fan-out of internal notifications
// (connection state, session id, response lifecycle, errors). Delivery is
// synchronous, in subscribe order; a panicking subscriber is recovered,
// logged, and does not prevent later subscribers on the same channel from
// running.
package bus

import (
	"log"
	"sync"

	"voicecore/transport"
)

// Bus is one instance of the broadcaster. Most programs use Default(), but
// tests and multi-session hosts may construct independent instances with
// New().
type Bus struct {
	mu sync.Mutex

	state         []func(transport.State)
	ack           []func(sessionID string)
	respStart     []func(utteranceID string)
	respChunk     []func(utteranceID string, sampleRate int)
	respComplete  []func(utteranceID string)
	respInterrupt []func(utteranceID string)
	respStop      []func()
	errored       []func(code, message string)
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{}
}

var (
	defaultOnce sync.Once
	defaultBus  *Bus
)

// Default returns the process-wide singleton Bus, constructing it on first
// use.
func Default() *Bus {
	defaultOnce.Do(func() { defaultBus = New() })
	return defaultBus
}

func (b *Bus) OnConnectionState(fn func(transport.State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = append(b.state, fn)
}

func (b *Bus) OnConnectionAck(fn func(sessionID string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ack = append(b.ack, fn)
}

func (b *Bus) OnResponseStart(fn func(utteranceID string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.respStart = append(b.respStart, fn)
}

func (b *Bus) OnResponseChunk(fn func(utteranceID string, sampleRate int)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.respChunk = append(b.respChunk, fn)
}

func (b *Bus) OnResponseComplete(fn func(utteranceID string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.respComplete = append(b.respComplete, fn)
}

func (b *Bus) OnResponseInterrupt(fn func(utteranceID string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.respInterrupt = append(b.respInterrupt, fn)
}

func (b *Bus) OnResponseStop(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.respStop = append(b.respStop, fn)
}

func (b *Bus) OnError(fn func(code, message string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errored = append(b.errored, fn)
}

func (b *Bus) PublishConnectionState(s transport.State) {
	b.mu.Lock()
	subs := append([]func(transport.State){}, b.state...)
	b.mu.Unlock()
	for _, fn := range subs {
		dispatch("connection_state", func() { fn(s) })
	}
}

func (b *Bus) PublishConnectionAck(sessionID string) {
	b.mu.Lock()
	subs := append([]func(string){}, b.ack...)
	b.mu.Unlock()
	for _, fn := range subs {
		dispatch("connection_ack", func() { fn(sessionID) })
	}
}

func (b *Bus) PublishResponseStart(utteranceID string) {
	b.mu.Lock()
	subs := append([]func(string){}, b.respStart...)
	b.mu.Unlock()
	for _, fn := range subs {
		dispatch("response_start", func() { fn(utteranceID) })
	}
}

func (b *Bus) PublishResponseChunk(utteranceID string, sampleRate int) {
	b.mu.Lock()
	subs := append([]func(string, int){}, b.respChunk...)
	b.mu.Unlock()
	for _, fn := range subs {
		dispatch("response_chunk", func() { fn(utteranceID, sampleRate) })
	}
}

func (b *Bus) PublishResponseComplete(utteranceID string) {
	b.mu.Lock()
	subs := append([]func(string){}, b.respComplete...)
	b.mu.Unlock()
	for _, fn := range subs {
		dispatch("response_complete", func() { fn(utteranceID) })
	}
}

func (b *Bus) PublishResponseInterrupt(utteranceID string) {
	b.mu.Lock()
	subs := append([]func(string){}, b.respInterrupt...)
	b.mu.Unlock()
	for _, fn := range subs {
		dispatch("response_interrupt", func() { fn(utteranceID) })
	}
}

func (b *Bus) PublishResponseStop() {
	b.mu.Lock()
	subs := append([]func(){}, b.respStop...)
	b.mu.Unlock()
	for _, fn := range subs {
		dispatch("response_stop", fn)
	}
}

func (b *Bus) PublishError(code, message string) {
	b.mu.Lock()
	subs := append([]func(string, string){}, b.errored...)
	b.mu.Unlock()
	for _, fn := range subs {
		dispatch("error", func() { fn(code, message) })
	}
}

// dispatch invokes fn, recovering and logging any panic so one subscriber's
// failure never stops delivery to the rest.
func dispatch(channel string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[bus] subscriber on %q panicked: %v", channel, r)
		}
	}()
	fn()
}
