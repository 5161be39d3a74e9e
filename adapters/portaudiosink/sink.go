// Package portaudiosink is a concrete playback.AudioSink backed by
// github.com/gordonklaus/portaudio. Grounded on the teacher's
// AudioEngine.Start/playbackLoop (device resolution, Pa_OpenStream
// parameter shape) and Stop (stop-before-close sequencing so a goroutine
// mid-Write is never freed out from under itself), but reduced to a single
// blocking-write-per-call model: the sequencer already serializes playback
// one buffer at a time, so there is no mixing/jitter-buffer stage here.
package portaudiosink

import (
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"

	"voicecore/playback"
)

// Sink plays PCM audio via PortAudio, one buffer at a time.
type Sink struct {
	deviceID int // -1 selects the platform default output device

	mu         sync.Mutex
	stream     *boundStream
	streamRate int
	suspended  bool

	cancelMu sync.Mutex
	cancel   chan struct{}
}

// writeBufferSamples is the fixed chunk size writeAll feeds PortAudio per
// call; independent of the sequencer's incoming chunk sizes.
const writeBufferSamples = 512

// New returns a Sink that writes to deviceID, or the default output device
// if deviceID is negative.
func New(deviceID int) *Sink {
	return &Sink{deviceID: deviceID}
}

var _ playback.AudioSink = (*Sink)(nil)

// EnsureReady implements playback.AudioSink. PortAudio streams in this
// adapter are opened lazily, per sample rate, on first Play; EnsureReady
// only reports and clears a suspension recorded by a failed Play, so the
// next Play tries to open the stream again.
func (s *Sink) EnsureReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suspended {
		s.suspended = false
		return playback.ErrAudioContextSuspended
	}
	return nil
}

// Play writes samples to the output device at sampleRate, opening (or
// reopening, if the rate changed) a stream as needed. The returned channel
// receives once the write completes, is cancelled, or fails.
func (s *Sink) Play(samples []float32, sampleRate int) <-chan error {
	done := make(chan error, 1)

	stream, err := s.streamFor(sampleRate)
	if err != nil {
		s.mu.Lock()
		s.suspended = true
		s.mu.Unlock()
		done <- fmt.Errorf("%w: %v", playback.ErrAudioContextSuspended, err)
		return done
	}

	s.cancelMu.Lock()
	cancel := make(chan struct{})
	s.cancel = cancel
	s.cancelMu.Unlock()

	go func() {
		select {
		case <-cancel:
			done <- nil
			return
		default:
		}
		if err := stream.writeAll(samples); err != nil {
			select {
			case <-cancel:
				done <- nil
			default:
				log.Printf("[portaudiosink] write: %v", err)
				done <- err
			}
			return
		}
		done <- nil
	}()

	return done
}

// CancelAll implements playback.AudioSink: it signals the in-flight Play
// goroutine (if any) that its result should be treated as a benign
// cancellation rather than surfaced as an error.
func (s *Sink) CancelAll() {
	s.cancelMu.Lock()
	if s.cancel != nil {
		close(s.cancel)
		s.cancel = nil
	}
	s.cancelMu.Unlock()
}

// Close releases the output stream, if open.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	return err
}

func (s *Sink) streamFor(sampleRate int) (*boundStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil && s.streamRate == sampleRate {
		return s.stream, nil
	}
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	dev, err := resolveOutputDevice(devices, s.deviceID)
	if err != nil {
		return nil, err
	}

	buf := make([]float32, writeBufferSamples)
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: len(buf),
	}
	raw, err := portaudio.OpenStream(params, &buf)
	if err != nil {
		return nil, err
	}
	if err := raw.Start(); err != nil {
		raw.Close()
		return nil, err
	}

	bound := &boundStream{Stream: raw, buf: &buf}
	s.stream = bound
	s.streamRate = sampleRate
	return bound, nil
}

func resolveOutputDevice(devices []*portaudio.DeviceInfo, idx int) (*portaudio.DeviceInfo, error) {
	if idx >= 0 && idx < len(devices) {
		return devices[idx], nil
	}
	return portaudio.DefaultOutputDevice()
}

// boundStream pairs a PortAudio stream with the float32 buffer it was
// opened against, so writeAll can chunk an arbitrarily long sample slice
// into the fixed-size writes PortAudio expects.
type boundStream struct {
	*portaudio.Stream
	buf *[]float32
}

func (b *boundStream) writeAll(samples []float32) error {
	for len(samples) > 0 {
		n := copy(*b.buf, samples)
		if n < len(*b.buf) {
			for i := n; i < len(*b.buf); i++ {
				(*b.buf)[i] = 0
			}
		}
		if err := b.Write(); err != nil {
			return err
		}
		samples = samples[n:]
	}
	return nil
}
