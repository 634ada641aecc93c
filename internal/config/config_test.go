package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != DefaultListen || cfg.RefreshCron != DefaultRefreshCron {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestLoad_NormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("listen: 0.0.0.0:9000\nnotion:\n  timeout: nonsense\nlog:\n  level: trace\nbasic_auth:\n  username: \"\"\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Notion.Timeout != DefaultTimeout || cfg.NotionTimeout() != 15*time.Second {
		t.Errorf("Timeout = %q", cfg.Notion.Timeout)
	}
	if cfg.Notion.Version != DefaultNotionVer {
		t.Errorf("Version = %q", cfg.Notion.Version)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.BasicAuth != nil {
		t.Errorf("empty basic auth kept: %+v", cfg.BasicAuth)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Timezone = "Europe/Berlin"
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	cfg.Credential = "secret_should_not_be_written"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if strings.Contains(string(raw), "secret_should_not_be_written") {
		t.Error("credential written to config file")
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Timezone != "Europe/Berlin" || got.BasicAuth == nil || got.BasicAuth.Username != "u" {
		t.Errorf("round trip lost fields: %+v", got)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("NOTIONCAL_LISTEN", ":7070")
	t.Setenv("NOTIONCAL_STATE_PATH", "/tmp/x.db")
	t.Setenv("NOTIONCAL_LOG_LEVEL", "debug")
	t.Setenv("NOTIONCAL_CREDENTIAL", "secret_abcdefghijklmnopqrstu")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Listen != ":7070" || cfg.StatePath != "/tmp/x.db" || cfg.Log.Level != "debug" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Credential != "secret_abcdefghijklmnopqrstu" {
		t.Errorf("Credential = %q", cfg.Credential)
	}
	if cfg.CaptureURL() != "http://:7070/calendar" {
		t.Errorf("CaptureURL = %q", cfg.CaptureURL())
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Not/AZone"
	loc, err := cfg.Location()
	if err == nil {
		t.Error("expected error for unknown zone")
	}
	if loc != time.Local {
		t.Errorf("fallback = %v", loc)
	}
}
