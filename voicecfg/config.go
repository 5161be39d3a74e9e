// Package voicecfg loads the configuration knobs shared by every core
// component. Defaults mirror the values named in the wire protocol section;
// every knob can be overridden by a VOICECORE_-prefixed environment
// variable, following the same construction-time-only loading discipline
// the teacher's internal/config package uses for local device prefs.
package voicecfg

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable knob read at construction.
type Config struct {
	ConnectionTimeout    time.Duration
	MaxReconnectAttempts int
	ReconnectDelays      []time.Duration
	LivenessInterval     time.Duration

	RequestDefaultTimeout time.Duration
	RequestMaxPending     int
	TrackerSweepInterval  time.Duration

	CaptureBufferSamples int
	DefaultSampleRate    int
	DefaultLanguage      string

	ConnectionWaiterTimeout time.Duration
}

// Default returns the configuration named throughout the wire protocol
// section: connection-timeout 30s, max-reconnect-attempts 6, reconnect
// delays 2/5/10s (the last repeating), liveness-interval 30s,
// request-default-timeout 30s, request-max-pending 100,
// tracker-sweep-interval 60s, capture-buffer-samples 4096,
// default-sample-rate 16kHz, default-language en-US.
func Default() Config {
	return Config{
		ConnectionTimeout:       30 * time.Second,
		MaxReconnectAttempts:    6,
		ReconnectDelays:         []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second},
		LivenessInterval:        30 * time.Second,
		RequestDefaultTimeout:   30 * time.Second,
		RequestMaxPending:       100,
		TrackerSweepInterval:    60 * time.Second,
		CaptureBufferSamples:    4096,
		DefaultSampleRate:       16000,
		DefaultLanguage:         "en-US",
		ConnectionWaiterTimeout: 30 * time.Second,
	}
}

// Load reads Default() overlaid with any VOICECORE_-prefixed environment
// variables present (e.g. VOICECORE_MAX_RECONNECT_ATTEMPTS,
// VOICECORE_REQUEST_MAX_PENDING). Unset variables leave the default in
// place. Load never errors, like the teacher's config.Load(): a numeric
// variable that is set but does not parse as a number is read as 0 for
// that knob, not rejected or replaced by the default.
func Load() Config {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("VOICECORE")
	v.AutomaticEnv()

	if v.IsSet("CONNECTION_TIMEOUT_SECONDS") {
		cfg.ConnectionTimeout = time.Duration(v.GetInt("CONNECTION_TIMEOUT_SECONDS")) * time.Second
	}
	if v.IsSet("MAX_RECONNECT_ATTEMPTS") {
		cfg.MaxReconnectAttempts = v.GetInt("MAX_RECONNECT_ATTEMPTS")
	}
	if v.IsSet("LIVENESS_INTERVAL_SECONDS") {
		cfg.LivenessInterval = time.Duration(v.GetInt("LIVENESS_INTERVAL_SECONDS")) * time.Second
	}
	if v.IsSet("REQUEST_DEFAULT_TIMEOUT_SECONDS") {
		cfg.RequestDefaultTimeout = time.Duration(v.GetInt("REQUEST_DEFAULT_TIMEOUT_SECONDS")) * time.Second
	}
	if v.IsSet("REQUEST_MAX_PENDING") {
		cfg.RequestMaxPending = v.GetInt("REQUEST_MAX_PENDING")
	}
	if v.IsSet("TRACKER_SWEEP_INTERVAL_SECONDS") {
		cfg.TrackerSweepInterval = time.Duration(v.GetInt("TRACKER_SWEEP_INTERVAL_SECONDS")) * time.Second
	}
	if v.IsSet("CAPTURE_BUFFER_SAMPLES") {
		cfg.CaptureBufferSamples = v.GetInt("CAPTURE_BUFFER_SAMPLES")
	}
	if v.IsSet("DEFAULT_SAMPLE_RATE") {
		cfg.DefaultSampleRate = v.GetInt("DEFAULT_SAMPLE_RATE")
	}
	if v.IsSet("DEFAULT_LANGUAGE") {
		cfg.DefaultLanguage = v.GetString("DEFAULT_LANGUAGE")
	}
	if v.IsSet("CONNECTION_WAITER_TIMEOUT_SECONDS") {
		cfg.ConnectionWaiterTimeout = time.Duration(v.GetInt("CONNECTION_WAITER_TIMEOUT_SECONDS")) * time.Second
	}

	return cfg
}
