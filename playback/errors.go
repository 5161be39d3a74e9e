package playback

import "errors"

var (
	ErrInvalidSampleRate     = errors.New("invalid-sample-rate")
	ErrInvalidAudioPayload   = errors.New("invalid-audio-payload")
	ErrAudioContextSuspended = errors.New("audio-context-suspended")
)
