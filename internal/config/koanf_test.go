// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/dropscout/internal/scheduler"
)

// setRequiredEnv points CONFIG_PATH at an empty temp dir and sets the
// minimum variables Load needs.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("TWITCH_ACCESS_TOKEN", "tok")
	t.Setenv("DISCORD_BOT_TOKEN", "bot")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poll.Interval != 30*time.Minute {
		t.Errorf("Poll.Interval = %s, want 30m", cfg.Poll.Interval)
	}
	if cfg.Poll.NotifyOnBoot {
		t.Error("NotifyOnBoot should default to false")
	}
	if !cfg.Digest.Enabled || cfg.Digest.Schedule != scheduler.DefaultDigestSchedule {
		t.Errorf("Digest = %+v", cfg.Digest)
	}
	if cfg.Dispatch.SuppressTTL != 24*time.Hour {
		t.Errorf("SuppressTTL = %s", cfg.Dispatch.SuppressTTL)
	}
	if cfg.API.Enabled || cfg.NATS.Enabled {
		t.Error("API and NATS should be disabled by default")
	}
	if cfg.Twitch.AccessToken != "tok" || cfg.Discord.BotToken != "bot" {
		t.Errorf("tokens not loaded from env: %+v %+v", cfg.Twitch.AccessToken, cfg.Discord.BotToken)
	}
	if len(cfg.Twitch.TokenURLs) == 0 {
		t.Error("default token URLs missing")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLL_INTERVAL", "5m")
	t.Setenv("NOTIFY_ON_BOOT", "true")
	t.Setenv("DIGEST_SCHEDULE", "30 18 * * 5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATA_DIR", "/tmp/ds")
	t.Setenv("TWITCH_TOKEN_URLS", "https://a.example/token, https://b.example/token,")
	t.Setenv("HOME_UNRELATED_VAR", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poll.Interval != 5*time.Minute || !cfg.Poll.NotifyOnBoot {
		t.Errorf("Poll = %+v", cfg.Poll)
	}
	if cfg.Digest.Schedule != "30 18 * * 5" {
		t.Errorf("Digest.Schedule = %q", cfg.Digest.Schedule)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if cfg.Storage.Path != "/tmp/ds" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	want := []string{"https://a.example/token", "https://b.example/token"}
	if len(cfg.Twitch.TokenURLs) != 2 || cfg.Twitch.TokenURLs[0] != want[0] || cfg.Twitch.TokenURLs[1] != want[1] {
		t.Errorf("TokenURLs = %v, want %v", cfg.Twitch.TokenURLs, want)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
twitch:
  access_token: from-file
discord:
  dry_run: true
poll:
  interval: 10m
api:
  enabled: true
  addr: 127.0.0.1:9999
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("POLL_INTERVAL", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Twitch.AccessToken != "from-file" || !cfg.Discord.DryRun {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Poll.Interval != 2*time.Minute {
		t.Errorf("env should override file: Poll.Interval = %s", cfg.Poll.Interval)
	}
	if !cfg.API.Enabled || cfg.API.Addr != "127.0.0.1:9999" {
		t.Errorf("API = %+v", cfg.API)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLL_INTERVAL", "10s")

	if _, err := Load(); err == nil {
		t.Fatal("Load accepted a 10s poll interval")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"TWITCH_ACCESS_TOKEN", "twitch.access_token"},
		{"DISCORD_BOT_TOKEN", "discord.bot_token"},
		{"DRY_RUN", "discord.dry_run"},
		{"DATA_DIR", "storage.path"},
		{"nats_url", "nats.url"},
		{"PATH", ""},
		{"GOPATH", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.key); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestProcessSliceFields_KeepsYAMLLists(t *testing.T) {
	k := koanf.New(".")
	if err := k.Set("twitch.token_urls", []interface{}{"https://a.example"}); err != nil {
		t.Fatal(err)
	}
	if err := processSliceFields(k); err != nil {
		t.Fatal(err)
	}
	if got, ok := k.Get("twitch.token_urls").([]interface{}); !ok || len(got) != 1 {
		t.Errorf("YAML list was rewritten: %#v", k.Get("twitch.token_urls"))
	}
}
