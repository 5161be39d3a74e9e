// Package ids mints identifiers whose lexicographic order equals
// chronological order, as required for event and utterance ids (spec-level
// requirement: arrival order must be recoverable by sorting the id alone).
package ids

import "github.com/rs/xid"

// NewEventID returns a fresh time-ordered identifier for an outbound event.
func NewEventID() string {
	return xid.New().String()
}

// NewUtteranceID returns a fresh time-ordered identifier for a playback
// utterance. Distinct from NewEventID only in name: both rely on the same
// xid guarantee, but keeping separate constructors lets call sites document
// intent and lets either be swapped independently later.
func NewUtteranceID() string {
	return xid.New().String()
}
