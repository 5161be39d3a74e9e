// Package capture defines the microphone capture contract (C7): fixed-count
// PCM16LE frames at the device's actual sample rate. The interesting
// engineering here is the contract itself, not platform code — concrete
// device backends live outside this package (see adapters/).
package capture

import "errors"

var (
	ErrPermissionDenied  = errors.New("permission-denied")
	ErrNoDevice          = errors.New("no-device")
	ErrAlreadyCapturing  = errors.New("already-capturing")
)

// Frame is a fixed-count block of signed 16-bit samples, mono,
// little-endian, at the actual sample rate reported by Start. Frame size is
// constant for the lifetime of a capture session.
type Frame struct {
	Samples    []int16
	SampleRate int
}

// OnFrame receives one Frame at a time. It is allowed to suspend; a
// Capturer implementation must not block indefinitely on a slow consumer —
// if the consumer rejects a frame (e.g. a full non-blocking queue), the
// frame is dropped and logged rather than stalling capture.
type OnFrame func(Frame)

// Capturer acquires microphone access and delivers fixed-size PCM16LE
// frames to onFrame until Stop is called. requestedRate is a hint; the
// device's actual rate (which may differ) is returned.
type Capturer interface {
	Start(onFrame OnFrame, requestedRate int) (actualRate int, err error)
	Stop() error
}
