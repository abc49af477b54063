package config

import (
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("PANIC_API_URL", "https://api.batsignal.example")
	// デフォルトパス解決を環境に依存させない
	t.Setenv("STATE_FILE", filepath.Join(t.TempDir(), "state.json"))
}

func TestLoad_AllRequiredVarsSet_ReturnsConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.APIBaseURL != "https://api.batsignal.example" {
		t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, "https://api.batsignal.example")
	}
}

func TestLoad_MissingRequiredVar_ReturnsError(t *testing.T) {
	t.Setenv("PANIC_API_URL", "")

	if _, err := Load(); err == nil {
		t.Error("expected error for missing PANIC_API_URL, got nil")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v, want %v", cfg.HTTPTimeout, 10*time.Second)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
	if cfg.LoginRatePerMin != 10 {
		t.Errorf("LoginRatePerMin = %d, want 10", cfg.LoginRatePerMin)
	}
	if cfg.AdvisoryFeedURL != "" {
		t.Errorf("AdvisoryFeedURL = %q, want empty", cfg.AdvisoryFeedURL)
	}
}

func TestLoad_OverriddenValues(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("HTTP_TIMEOUT", "30s")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOGIN_RATE_LIMIT", "5")
	t.Setenv("ADVISORY_FEED_URL", "https://alerts.example/feed.xml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want 30s", cfg.HTTPTimeout)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.LoginRatePerMin != 5 {
		t.Errorf("LoginRatePerMin = %d, want 5", cfg.LoginRatePerMin)
	}
	if cfg.AdvisoryFeedURL != "https://alerts.example/feed.xml" {
		t.Errorf("AdvisoryFeedURL = %q", cfg.AdvisoryFeedURL)
	}
}

// TestLoad_InvalidOptionalValues_FallBackToDefaults はパース不能な任意項目が
// デフォルト値へフォールバックすることを検証する。
func TestLoad_InvalidOptionalValues_FallBackToDefaults(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("HTTP_TIMEOUT", "not-a-duration")
	t.Setenv("LOGIN_RATE_LIMIT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v, want default 10s", cfg.HTTPTimeout)
	}
	if cfg.LoginRatePerMin != 10 {
		t.Errorf("LoginRatePerMin = %d, want default 10", cfg.LoginRatePerMin)
	}
}

func TestLoad_ExplicitStateFile(t *testing.T) {
	setRequiredEnvVars(t)
	path := filepath.Join(t.TempDir(), "custom", "state.json")
	t.Setenv("STATE_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.StateFile != path {
		t.Errorf("StateFile = %q, want %q", cfg.StateFile, path)
	}
}
