package reqtracker

import (
	"errors"
	"testing"
	"time"

	"voicecore/wire"
)

func TestMatchAckSettlesExactlyOnce(t *testing.T) {
	tr := New(100, time.Hour)
	defer tr.Close()

	ch := tr.Track("e1", "audio.start", time.Minute)
	msg := &wire.Message{EventID: "e1"}
	if !tr.MatchAck("e1", msg) {
		t.Fatalf("expected MatchAck to find the pending entry")
	}

	select {
	case res := <-ch:
		if res.Err != nil || res.Message != msg {
			t.Fatalf("unexpected result: %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for settlement")
	}

	if tr.MatchAck("e1", msg) {
		t.Fatalf("expected second MatchAck to find nothing (already settled)")
	}
}

func TestMatchAckWithNoPendingReturnsFalse(t *testing.T) {
	tr := New(100, time.Hour)
	defer tr.Close()
	if tr.MatchAck("nope", &wire.Message{}) {
		t.Fatalf("expected no match for unknown event id")
	}
}

func TestDuplicateKeySettlesAlongsideOriginal(t *testing.T) {
	tr := New(100, time.Hour)
	defer tr.Close()

	ch1 := tr.Track("e1", "audio.start", time.Minute)
	ch2 := tr.Track("e1", "audio.start", time.Minute)

	msg := &wire.Message{EventID: "e1"}
	tr.MatchAck("e1", msg)

	for _, ch := range []<-chan Result{ch1, ch2} {
		select {
		case res := <-ch:
			if res.Message != msg {
				t.Fatalf("expected both listeners to receive the same message")
			}
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	}
}

func TestTimeoutSettlesWithRequestTimeout(t *testing.T) {
	tr := New(100, time.Hour)
	defer tr.Close()

	ch := tr.Track("e1", "audio.start", 30*time.Millisecond)
	select {
	case res := <-ch:
		if !errors.Is(res.Err, ErrRequestTimeout) {
			t.Fatalf("err = %v, want ErrRequestTimeout", res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for timeout settlement")
	}
	if tr.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after timeout", tr.Len())
	}
}

func TestCapacityBoundEvictsOldest(t *testing.T) {
	tr := New(2, time.Hour)
	defer tr.Close()

	ch1 := tr.Track("e1", "t", time.Minute)
	tr.Track("e2", "t", time.Minute)
	tr.Track("e3", "t", time.Minute) // should evict e1

	select {
	case res := <-ch1:
		if !errors.Is(res.Err, ErrTrackerLimit) {
			t.Fatalf("err = %v, want ErrTrackerLimit", res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for eviction")
	}

	if got := tr.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2 (never exceeds capacity)", got)
	}
}

func TestClearRejectsAll(t *testing.T) {
	tr := New(100, time.Hour)
	defer tr.Close()

	ch := tr.Track("e1", "t", time.Minute)
	tr.Clear()

	select {
	case res := <-ch:
		if !errors.Is(res.Err, ErrTrackerCleared) {
			t.Fatalf("err = %v, want ErrTrackerCleared", res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestCancel(t *testing.T) {
	tr := New(100, time.Hour)
	defer tr.Close()

	ch := tr.Track("e1", "t", time.Minute)
	tr.Cancel("e1")

	select {
	case res := <-ch:
		if !errors.Is(res.Err, ErrCancelled) {
			t.Fatalf("err = %v, want ErrCancelled", res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestSweepCatchesStaleEntry(t *testing.T) {
	tr := New(100, 20*time.Millisecond)
	defer tr.Close()

	// Stopping the entry's own timer simulates a lost timer firing; the
	// sweep (running every 20ms) should still catch the entry once it is
	// older than 2x its 10ms timeout.
	ch := tr.Track("e1", "t", 10*time.Millisecond)
	tr.mu.Lock()
	tr.groups["e1"].timer.Stop()
	tr.mu.Unlock()

	select {
	case res := <-ch:
		if !errors.Is(res.Err, ErrRequestTimeout) {
			t.Fatalf("err = %v, want ErrRequestTimeout", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sweep")
	}
}
