package transport

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL accepts a bare host:port, a voice:// scheme link, or a full
// ws(s):// URL and returns a canonical ws(s):// URL suitable for dialing.
// Adapted from the teacher's normalizeServerAddr, generalized from a
// bespoke host:port canonicalizer into a full URL normalizer because the
// transport here dials a URL, not a host:port pair.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("transport: server address is required")
	}

	if strings.HasPrefix(s, "voice://") {
		s = "ws://" + strings.TrimPrefix(s, "voice://")
	}

	if !strings.Contains(s, "://") {
		s = "ws://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("transport: invalid server address: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("transport: invalid server address: missing host")
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("transport: unsupported scheme %q", u.Scheme)
	}

	return u.String(), nil
}
