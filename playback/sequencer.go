// Package playback implements the audio playback sequencer (C8): a
// time-ordered chunk queue keyed by (utterance_id, arrival_sequence),
// single-active-utterance playback, and a copy-on-enqueue contract that
// defends against transport-buffer aliasing. Conceptually grounded on the
// teacher's internal/jitter buffer (per-stream priming/draining discipline,
// stale-stream pruning) but restructured: the teacher tolerates loss via
// PLC on a real-time per-sender ring; this sequencer instead guarantees
// gap-free, exactly-ordered playback of one utterance at a time via an
// explicit priority queue and preemption on utterance switch.
package playback

import (
	"container/heap"
	"encoding/binary"
	"log"
	"math"
	"sync"
	"sync/atomic"
)

const (
	minSampleRate = 1
	maxSampleRate = 192000
)

// Sequencer is the Playback Sequencer (C8).
type Sequencer struct {
	sink AudioSink

	mu         sync.Mutex
	queue      chunkHeap
	active     string
	processing bool
	destroyed  bool

	seqCounter atomic.Uint64
}

// New returns a Sequencer that drives sink.
func New(sink AudioSink) *Sequencer {
	return &Sequencer{sink: sink}
}

// PlayChunk enqueues audioBytes (PCM16LE) for utteranceID at sampleRate. If
// utteranceID differs from the currently active utterance, Stop is invoked
// first, discarding any queued chunks of the prior utterance before the new
// one is adopted. audioBytes is copied immediately; the caller's buffer may
// be reused or mutated right after this call returns.
func (s *Sequencer) PlayChunk(audioBytes []byte, sampleRate int, utteranceID string) error {
	if sampleRate <= 0 || sampleRate > maxSampleRate {
		return ErrInvalidSampleRate
	}
	aligned := alignedCopy(audioBytes)
	if len(aligned) == 0 {
		return ErrInvalidAudioPayload
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	preempting := s.active != "" && s.active != utteranceID
	if preempting {
		s.stopLocked()
	}
	s.active = utteranceID

	chunk := &queuedChunk{
		audio:       aligned,
		utteranceID: utteranceID,
		sampleRate:  sampleRate,
		seq:         s.seqCounter.Add(1),
	}
	heap.Push(&s.queue, chunk)

	needStart := !s.processing
	if needStart {
		s.processing = true
	}
	s.mu.Unlock()

	// Cancelling outstanding sources happens outside the lock: it may block
	// on platform calls and must not be able to deadlock against another
	// PlayChunk/Stop call waiting on s.mu.
	if preempting {
		s.sink.CancelAll()
	}

	if needStart {
		go s.runLoop()
	}
	return nil
}

// alignedCopy materialises an independent, contiguous copy of raw starting
// at offset 0 (defending against sliced buffer views), dropping a trailing
// odd byte with a warning.
func alignedCopy(raw []byte) []byte {
	n := len(raw)
	if n%2 != 0 {
		log.Printf("[playback] odd-length audio payload (%d bytes); dropping trailing byte", n)
		n--
	}
	if n <= 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, raw[:n])
	return out
}

func (s *Sequencer) runLoop() {
	for {
		s.mu.Lock()
		if s.destroyed || s.queue.Len() == 0 {
			s.processing = false
			s.mu.Unlock()
			return
		}
		chunk := heap.Pop(&s.queue).(*queuedChunk)
		active := s.active
		s.mu.Unlock()

		if chunk.utteranceID != active {
			continue
		}

		samples, err := decodeToFloat32(chunk.audio)
		if err != nil {
			log.Printf("[playback] dropping invalid chunk for utterance %q: %v", chunk.utteranceID, err)
			continue
		}

		if err := s.sink.EnsureReady(); err != nil {
			log.Printf("[playback] audio-context-suspended: %v", err)
			continue
		}

		done := s.sink.Play(samples, chunk.sampleRate)
		<-done // errors from already-finished/cancelled sources are swallowed
	}
}

// Stop cancels all in-flight audio, empties the queue, clears the active
// utterance, and marks the sequencer idle. It is synchronous and
// idempotent.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	s.sink.CancelAll()
}

func (s *Sequencer) stopLocked() {
	s.active = ""
	s.queue = nil
}

// Destroy releases the sequencer's audio resources. It is terminal: no
// further chunks will be scheduled afterward.
func (s *Sequencer) Destroy() error {
	s.mu.Lock()
	s.destroyed = true
	s.queue = nil
	s.active = ""
	s.mu.Unlock()
	s.sink.CancelAll()
	return s.sink.Close()
}

func decodeToFloat32(pcm []byte) ([]float32, error) {
	if len(pcm) == 0 || len(pcm)%2 != 0 {
		return nil, ErrInvalidAudioPayload
	}
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		f := float32(v) / 32768
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, ErrInvalidAudioPayload
		}
		out[i] = f
	}
	return out, nil
}
