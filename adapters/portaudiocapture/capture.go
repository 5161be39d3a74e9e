// Package portaudiocapture is a concrete capture.Capturer backed by
// github.com/gordonklaus/portaudio. Grounded on the teacher's
// AudioEngine.Start/captureLoop (device resolution, Pa_OpenStream parameter
// shape, the Stop/Start/Close sequencing discipline required to avoid
// freeing a native stream object a goroutine may still be touching), but
// stripped down to raw PCM16LE capture: no Opus encoding, no
// AEC/AGC/VAD/noise-gate processing, since those are explicit non-goals of
// this core.
package portaudiocapture

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"voicecore/capture"
)

// deviceReadSamples is the size of the raw buffer PortAudio fills per Read;
// it is independent of frameSize, the fixed block size delivered to the
// caller (capture.FixedFramer reassembles one into the other).
const deviceReadSamples = 512

// Capturer captures microphone audio via PortAudio and delivers fixed-size
// PCM16LE frames of frameSize samples each, reassembled from PortAudio's
// own buffering granularity by a capture.FixedFramer. Zero value is not
// usable; construct with New.
type Capturer struct {
	deviceID  int // -1 selects the platform default input device
	frameSize int

	mu     sync.Mutex
	stream *portaudio.Stream
	wg     sync.WaitGroup

	running atomic.Bool
}

// New returns a Capturer that reads from deviceID (or the default input
// device if negative) and delivers frames of frameSize samples.
func New(deviceID, frameSize int) *Capturer {
	return &Capturer{deviceID: deviceID, frameSize: frameSize}
}

// Start implements capture.Capturer. The returned actualRate reflects
// whatever the device actually opened at, which may differ from
// requestedRate.
func (c *Capturer) Start(onFrame capture.OnFrame, requestedRate int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running.Load() {
		return 0, capture.ErrAlreadyCapturing
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return 0, fmt.Errorf("portaudiocapture: list devices: %w", err)
	}
	dev, err := resolveDevice(devices, c.deviceID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", capture.ErrNoDevice, err)
	}

	buf := make([]float32, deviceReadSamples)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(requestedRate),
		FramesPerBuffer: len(buf),
	}

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", capture.ErrNoDevice, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return 0, fmt.Errorf("%w: %v", capture.ErrNoDevice, err)
	}

	actualRate := requestedRate
	if info := stream.Info(); info != nil && info.SampleRate > 0 {
		actualRate = int(info.SampleRate)
	}

	c.stream = stream
	c.running.Store(true)

	c.wg.Add(1)
	go c.captureLoop(stream, buf, actualRate, onFrame)

	return actualRate, nil
}

func resolveDevice(devices []*portaudio.DeviceInfo, idx int) (*portaudio.DeviceInfo, error) {
	if idx >= 0 && idx < len(devices) {
		return devices[idx], nil
	}
	return portaudio.DefaultInputDevice()
}

func (c *Capturer) captureLoop(stream *portaudio.Stream, buf []float32, sampleRate int, onFrame capture.OnFrame) {
	defer c.wg.Done()

	// Frames reach onFrame through a small buffered queue drained by its own
	// goroutine; when the consumer falls behind, new frames are dropped.
	frames := make(chan capture.Frame, 4)
	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		for fr := range frames {
			onFrame(fr)
		}
	}()
	defer func() { close(frames); <-delivered }()

	framer := capture.NewFixedFramer(c.frameSize, sampleRate, func(fr capture.Frame) {
		select {
		case frames <- fr:
		default:
			log.Printf("[portaudiocapture] consumer busy; dropping frame")
		}
	})

	for c.running.Load() {
		if err := stream.Read(); err != nil {
			if c.running.Load() {
				log.Printf("[portaudiocapture] read: %v", err)
			}
			return
		}
		framer.Push(buf)
	}
}

// Stop halts capture. Matching the teacher's Stop/Close sequencing: the
// stream is stopped (unblocking any in-flight Read) and the capture
// goroutine is waited out before the native stream object is closed.
func (c *Capturer) Stop() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}

	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream != nil {
		stream.Stop()
	}

	c.wg.Wait()

	c.mu.Lock()
	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
	}
	c.mu.Unlock()
	return nil
}
