package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("default addr = %q", cfg.Server.Addr)
	}
	if cfg.Limits.DailyMessages != 100 {
		t.Fatalf("default daily limit = %d", cfg.Limits.DailyMessages)
	}
	if cfg.Limits.SilenceTimeout != 1500*time.Millisecond {
		t.Fatalf("default silence timeout = %v", cfg.Limits.SilenceTimeout)
	}
	if cfg.Store.SQLitePath == "" {
		t.Fatalf("sqlite path must default to a local file")
	}
}

func TestLoadServerAddrForms(t *testing.T) {
	t.Setenv("PORT", "9000")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}

	t.Setenv("PORT", "127.0.0.1:9100")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9100" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoadRejectsBadLimit(t *testing.T) {
	t.Setenv("DAILY_MESSAGE_LIMIT", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-positive limit")
	}

	t.Setenv("DAILY_MESSAGE_LIMIT", "abc")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-numeric limit")
	}
}

func TestSpeechEnabledByKey(t *testing.T) {
	cfg := loadSpeechConfig()
	if cfg.Enabled {
		t.Fatalf("speech should be disabled without a key")
	}

	t.Setenv("SPEECH_API_KEY", "sk-test")
	t.Setenv("SPEECH_TIMEOUT", "5")
	cfg = loadSpeechConfig()
	if !cfg.Enabled {
		t.Fatalf("speech should enable when a key is present")
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("timeout = %v", cfg.Timeout)
	}
	if cfg.STTModel != "whisper-1" || cfg.TTSVoice != "nova" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestAIEnabled(t *testing.T) {
	var c AIConfig
	if c.Enabled() {
		t.Fatalf("empty config must be disabled")
	}
	c.Model = "m"
	if c.Enabled() {
		t.Fatalf("model without credentials must be disabled")
	}
	c.APIKey = "k"
	if !c.Enabled() {
		t.Fatalf("model plus api key must be enabled")
	}
}
