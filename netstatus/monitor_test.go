package netstatus

import (
	"testing"
	"time"
)

func TestDefaultsOnline(t *testing.T) {
	m := New(20 * time.Millisecond)
	if !m.Online() {
		t.Fatalf("expected Monitor to default to online")
	}
}

func TestDebouncesFlapping(t *testing.T) {
	m := New(30 * time.Millisecond)
	var transitions []bool
	m.Subscribe(func(online bool) { transitions = append(transitions, online) })

	m.SetOnline(false)
	m.SetOnline(true)
	m.SetOnline(false)
	m.SetOnline(true)

	time.Sleep(100 * time.Millisecond)

	// The flapping settles back on the initial online state, so the
	// debounced value never changes and no subscriber is notified.
	if len(transitions) != 0 {
		t.Fatalf("transitions = %v, want none (final value equals initial online state)", transitions)
	}
}

func TestNotifiesOnRealTransition(t *testing.T) {
	m := New(20 * time.Millisecond)
	done := make(chan bool, 1)
	m.Subscribe(func(online bool) { done <- online })

	m.SetOnline(false)

	select {
	case online := <-done:
		if online {
			t.Fatalf("expected offline notification")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for transition")
	}
}
