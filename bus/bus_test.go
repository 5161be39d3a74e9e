package bus

import (
	"testing"

	"voicecore/transport"
)

func TestPublishDeliversInSubscribeOrder(t *testing.T) {
	b := New()
	var order []int
	b.OnConnectionState(func(s transport.State) { order = append(order, 1) })
	b.OnConnectionState(func(s transport.State) { order = append(order, 2) })
	b.OnConnectionState(func(s transport.State) { order = append(order, 3) })

	b.PublishConnectionState(transport.StateConnected)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("order = %v, want [1 2 3]", order)
	}
}

func TestPanickingSubscriberDoesNotStopOthers(t *testing.T) {
	b := New()
	secondRan := false
	b.OnError(func(code, msg string) { panic("boom") })
	b.OnError(func(code, msg string) { secondRan = true })

	b.PublishError("x", "y")

	if !secondRan {
		t.Fatalf("expected second subscriber to run despite first panicking")
	}
}

func TestDefaultIsSingleton(t *testing.T) {
	if Default() != Default() {
		t.Fatalf("expected Default() to return the same instance")
	}
}
