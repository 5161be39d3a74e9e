package reqtracker

import "errors"

// Sentinel errors matching the error taxonomy kinds a pending request can
// settle with when it does not settle via a matched acknowledgment.
var (
	ErrRequestTimeout = errors.New("request-timeout")
	ErrTrackerLimit   = errors.New("tracker-limit")
	ErrTrackerCleared = errors.New("tracker-cleared")
	ErrCancelled      = errors.New("cancelled")
)
