// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/dropscout/internal/delivery"
	"github.com/tomtom215/dropscout/internal/engine"
	"github.com/tomtom215/dropscout/internal/events"
	"github.com/tomtom215/dropscout/internal/scheduler"
	"github.com/tomtom215/dropscout/internal/twitch"
)

// DefaultConfigPaths lists config file locations in priority order.
// The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/dropscout/config.yaml",
	"/etc/dropscout/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	tw := twitch.DefaultConfig()
	dl := delivery.DefaultConfig()
	ev := events.DefaultConfig()
	en := engine.DefaultConfig()

	return &Config{
		Twitch: TwitchConfig{
			ClientID:        tw.ClientID,
			UserAgent:       tw.UserAgent,
			GQLURL:          tw.GQLURL,
			ValidateURL:     tw.ValidateURL,
			TokenURLs:       tw.TokenURLs,
			DashboardHash:   tw.DashboardHash,
			DetailsHash:     tw.DetailsHash,
			RequestTimeout:  tw.RequestTimeout,
			DetailBatchSize: tw.DetailBatchSize,
			RetryAttempts:   tw.RateLimitAttempts,
			RetryBaseDelay:  tw.RateLimitBaseDelay,
			RetryMaxDelay:   tw.RateLimitMaxDelay,
			BreakerFailures: tw.BreakerFailures,
			BreakerTimeout:  tw.BreakerTimeout,
			RevalidateEvery: tw.RevalidateEvery,
		},
		Discord: DiscordConfig{
			APIBase: delivery.DefaultDiscordAPIBase,
			Timeout: 30 * time.Second,
		},
		Poll: PollConfig{
			Interval:     30 * time.Minute,
			CycleTimeout: 10 * time.Minute,
		},
		Digest: DigestConfig{
			Enabled:  true,
			Schedule: scheduler.DefaultDigestSchedule,
		},
		Dispatch: DispatchConfig{
			MaxRetries:        dl.MaxRetries,
			BaseDelay:         dl.BaseDelay,
			MaxDelay:          dl.MaxDelay,
			SendTimeout:       dl.SendTimeout,
			Parallelism:       dl.Gate.Parallelism,
			GlobalRate:        dl.Gate.GlobalRate,
			GlobalBurst:       dl.Gate.GlobalBurst,
			DomainConcurrency: dl.Gate.DomainConcurrency,
			DomainRate:        dl.Gate.DomainRate,
			DomainBurst:       dl.Gate.DomainBurst,
			SuppressCapacity:  10000,
			SuppressTTL:       24 * time.Hour,
		},
		Search: SearchConfig{
			MinScore: en.MinScore,
			Limit:    en.SearchLimit,
		},
		Storage: StorageConfig{
			Path:       "/data/dropscout",
			GCInterval: 10 * time.Minute,
			GCRatio:    0.5,
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           ev.URL,
			SubjectPrefix: ev.SubjectPrefix,
			ClientName:    ev.ClientName,
			MaxReconnects: ev.MaxReconnects,
			ReconnectWait: ev.ReconnectWait,
		},
		API: APIConfig{
			Enabled:           false,
			Addr:              "127.0.0.1:8089",
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
			StaleAfter:        2 * time.Hour,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load builds the configuration from three layers, lowest priority first:
// struct defaults, the YAML config file (optional), environment variables.
// The result is validated before it is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := FindConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// TWITCH_ACCESS_TOKEN -> twitch.access_token
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// FindConfigFile returns the file Load reads, or "" when there is none.
func FindConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are read as comma-separated lists when set from env.
var sliceConfigPaths = []string{
	"twitch.token_urls",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	"twitch_access_token":      "twitch.access_token",
	"twitch_refresh_token":     "twitch.refresh_token",
	"twitch_client_id":         "twitch.client_id",
	"twitch_user_agent":        "twitch.user_agent",
	"twitch_gql_url":           "twitch.gql_url",
	"twitch_validate_url":      "twitch.validate_url",
	"twitch_token_urls":        "twitch.token_urls",
	"twitch_dashboard_hash":    "twitch.dashboard_hash",
	"twitch_details_hash":      "twitch.details_hash",
	"twitch_request_timeout":   "twitch.request_timeout",
	"twitch_detail_batch_size": "twitch.detail_batch_size",
	"twitch_breaker_failures":  "twitch.breaker_failures",
	"twitch_breaker_timeout":   "twitch.breaker_timeout",

	"discord_bot_token": "discord.bot_token",
	"discord_api_base":  "discord.api_base",
	"discord_timeout":   "discord.timeout",
	"dry_run":           "discord.dry_run",

	"poll_interval":        "poll.interval",
	"notify_on_boot":       "poll.notify_on_boot",
	"poll_cycle_timeout":   "poll.cycle_timeout",
	"digest_enabled":       "digest.enabled",
	"digest_schedule":      "digest.schedule",
	"dispatch_retries":     "dispatch.max_retries",
	"dispatch_global_rate": "dispatch.global_rate",
	"dispatch_parallelism": "dispatch.parallelism",
	"suppress_ttl":         "dispatch.suppress_ttl",

	"search_min_score": "search.min_score",
	"search_limit":     "search.limit",

	"data_dir":            "storage.path",
	"storage_path":        "storage.path",
	"storage_in_memory":   "storage.in_memory",
	"storage_sync_writes": "storage.sync_writes",

	"nats_enabled":        "nats.enabled",
	"nats_url":            "nats.url",
	"nats_subject_prefix": "nats.subject_prefix",

	"api_enabled":    "api.enabled",
	"api_addr":       "api.addr",
	"api_rate_limit": "api.rate_limit_requests",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc returns "" for unmapped keys so unrelated environment
// variables never reach the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile invokes callback whenever the file at path changes.
// Callers reload with Load and guard the swap themselves.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
