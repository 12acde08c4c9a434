// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxConcurrent != 2 {
		t.Errorf("expected default max_concurrent 2, got %d", cfg.MaxConcurrent)
	}
	if cfg.SessionTimeoutMinutes != 30 {
		t.Errorf("expected default session timeout 30, got %d", cfg.SessionTimeoutMinutes)
	}
	if cfg.SweepSchedule != "@every 5m" {
		t.Errorf("unexpected sweep schedule %q", cfg.SweepSchedule)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected defaults written to disk: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("POSTCLAW_DATA_DIR", "/tmp/override")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("expected env token, got %q", cfg.Telegram.Token)
	}
	if cfg.DataDir != "/tmp/override" {
		t.Errorf("expected env data dir, got %q", cfg.DataDir)
	}
	if cfg.PostsDir != "/tmp/override/posts" {
		t.Errorf("expected posts dir under data dir, got %q", cfg.PostsDir)
	}
}

func TestSetAndGetValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("POSTCLAW_DATA_DIR", "")
	t.Setenv("POSTCLAW_POSTS_DIR", "")

	if err := SetValue(path, "log_level", "debug"); err != nil {
		t.Fatal(err)
	}
	val, err := GetValue(path, "log_level")
	if err != nil {
		t.Fatal(err)
	}
	if val != "debug" {
		t.Errorf("expected debug, got %v", val)
	}

	if err := SetValue(path, "http.enabled", "true"); err != nil {
		t.Fatal(err)
	}
	val, err = GetValue(path, "http.enabled")
	if err != nil {
		t.Fatal(err)
	}
	if val != true {
		t.Errorf("expected true, got %v", val)
	}

	if err := SetValue(path, "no.such.key", "x"); err == nil {
		t.Error("expected unknown key to fail")
	}
}

func TestMaskSecrets(t *testing.T) {
	flat := map[string]any{
		"telegram.token": "1234567890abcdef",
		"log_level":      "info",
	}
	masked := MaskSecrets(flat)
	if masked["telegram.token"] != "***cdef" {
		t.Errorf("expected masked token, got %v", masked["telegram.token"])
	}
	if masked["log_level"] != "info" {
		t.Errorf("non-secret should pass through, got %v", masked["log_level"])
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	nested := map[string]any{
		"telegram": map[string]any{"token": "x"},
		"http":     map[string]any{"enabled": true, "listen": ":8387"},
		"data_dir": "/tmp/pc",
	}
	flat := Flatten(nested)
	if flat["telegram.token"] != "x" {
		t.Errorf("expected flattened token, got %v", flat["telegram.token"])
	}
	back := Unflatten(flat)
	tg, ok := back["telegram"].(map[string]any)
	if !ok || tg["token"] != "x" {
		t.Errorf("round trip lost telegram.token: %v", back)
	}
}
