// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Twitch.AccessToken = "tok"
	cfg.Discord.BotToken = "bot"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults with tokens", func(*Config) {}, ""},
		{"missing access token", func(c *Config) { c.Twitch.AccessToken = "" }, "twitch.access_token is required"},
		{"bad dashboard hash", func(c *Config) { c.Twitch.DashboardHash = "abc" }, "twitch.dashboard_hash"},
		{"bad gql url", func(c *Config) { c.Twitch.GQLURL = "not a url" }, "twitch.gql_url"},
		{"missing bot token", func(c *Config) { c.Discord.BotToken = "" }, "DISCORD_BOT_TOKEN"},
		{"dry run without bot token", func(c *Config) {
			c.Discord.BotToken = ""
			c.Discord.DryRun = true
		}, ""},
		{"poll below minimum", func(c *Config) { c.Poll.Interval = 30 * time.Second }, "POLL_INTERVAL"},
		{"bad digest cron", func(c *Config) { c.Digest.Schedule = "0 0 * *" }, "DIGEST_SCHEDULE"},
		{"bad cron ignored when digest off", func(c *Config) {
			c.Digest.Enabled = false
			c.Digest.Schedule = "nope"
		}, ""},
		{"no storage path", func(c *Config) { c.Storage.Path = "" }, "STORAGE_PATH"},
		{"in-memory storage", func(c *Config) {
			c.Storage.Path = ""
			c.Storage.InMemory = true
		}, ""},
		{"gc ratio out of range", func(c *Config) { c.Storage.GCRatio = 1.5 }, "storage.gc_ratio"},
		{"nats without url", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = ""
		}, "NATS_URL"},
		{"api bad addr", func(c *Config) {
			c.API.Enabled = true
			c.API.Addr = "localhost"
		}, "API_ADDR"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"search limit zero", func(c *Config) { c.Search.Limit = 0 }, "search.limit"},
		{"max delay below base", func(c *Config) {
			c.Dispatch.BaseDelay = time.Minute
			c.Dispatch.MaxDelay = time.Second
		}, "dispatch.max_delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestAccessors(t *testing.T) {
	cfg := validConfig()
	cfg.Twitch.RetryAttempts = 7
	cfg.Dispatch.Parallelism = 9
	cfg.Poll.NotifyOnBoot = true
	cfg.NATS.SubjectPrefix = "drops"

	if got := cfg.TwitchFetcherConfig(); got.RateLimitAttempts != 7 || got.AccessToken != "tok" {
		t.Errorf("TwitchFetcherConfig = %+v", got)
	}
	if got := cfg.DeliveryConfig(); got.Gate.Parallelism != 9 {
		t.Errorf("DeliveryConfig.Gate = %+v", got.Gate)
	}
	if got := cfg.SchedulerConfig(); !got.NotifyOnBoot || got.PollInterval != 30*time.Minute {
		t.Errorf("SchedulerConfig = %+v", got)
	}
	if got := cfg.EventsConfig(); got.SubjectPrefix != "drops" {
		t.Errorf("EventsConfig = %+v", got)
	}
	if got := cfg.EngineConfig(); got.SearchLimit != 5 || got.MinScore != 45 {
		t.Errorf("EngineConfig = %+v", got)
	}
	if got := cfg.LoggerConfig(); got.Level != "info" || got.Output == nil {
		t.Errorf("LoggerConfig = %+v", got)
	}

	// Mutating the copy must not leak back into the config.
	tw := cfg.TwitchFetcherConfig()
	tw.TokenURLs[0] = "changed"
	if cfg.Twitch.TokenURLs[0] == "changed" {
		t.Error("TwitchFetcherConfig shares the TokenURLs backing array")
	}
}
