package voicecfg

import (
	"os"
	"testing"
	"time"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	cfg := Default()
	if cfg.MaxReconnectAttempts != 6 {
		t.Errorf("MaxReconnectAttempts = %d, want 6", cfg.MaxReconnectAttempts)
	}
	if cfg.RequestMaxPending != 100 {
		t.Errorf("RequestMaxPending = %d, want 100", cfg.RequestMaxPending)
	}
	if cfg.CaptureBufferSamples != 4096 {
		t.Errorf("CaptureBufferSamples = %d, want 4096", cfg.CaptureBufferSamples)
	}
	if cfg.DefaultSampleRate != 16000 {
		t.Errorf("DefaultSampleRate = %d, want 16000", cfg.DefaultSampleRate)
	}
	if len(cfg.ReconnectDelays) != 3 {
		t.Fatalf("ReconnectDelays = %v, want 3 entries", cfg.ReconnectDelays)
	}
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	os.Setenv("VOICECORE_MAX_RECONNECT_ATTEMPTS", "9")
	defer os.Unsetenv("VOICECORE_MAX_RECONNECT_ATTEMPTS")

	cfg := Load()
	if cfg.MaxReconnectAttempts != 9 {
		t.Fatalf("MaxReconnectAttempts = %d, want 9 from env override", cfg.MaxReconnectAttempts)
	}
	if cfg.RequestDefaultTimeout != 30*time.Second {
		t.Errorf("unrelated knob changed: RequestDefaultTimeout = %v", cfg.RequestDefaultTimeout)
	}
}
