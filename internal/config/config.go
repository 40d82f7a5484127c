// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package config

import (
	"os"
	"time"

	"github.com/tomtom215/dropscout/internal/api"
	"github.com/tomtom215/dropscout/internal/delivery"
	"github.com/tomtom215/dropscout/internal/engine"
	"github.com/tomtom215/dropscout/internal/events"
	"github.com/tomtom215/dropscout/internal/logging"
	"github.com/tomtom215/dropscout/internal/scheduler"
	"github.com/tomtom215/dropscout/internal/storage"
	"github.com/tomtom215/dropscout/internal/twitch"
)

// Config holds all application configuration.
type Config struct {
	Twitch     TwitchConfig     `koanf:"twitch"`
	Discord    DiscordConfig    `koanf:"discord"`
	Poll       PollConfig       `koanf:"poll"`
	Digest     DigestConfig     `koanf:"digest"`
	Dispatch   DispatchConfig   `koanf:"dispatch"`
	Search     SearchConfig     `koanf:"search"`
	Storage    StorageConfig    `koanf:"storage"`
	NATS       NATSConfig       `koanf:"nats"`
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// TwitchConfig holds the upstream catalog client settings.
type TwitchConfig struct {
	AccessToken     string        `koanf:"access_token" validate:"required"`
	RefreshToken    string        `koanf:"refresh_token"`
	ClientID        string        `koanf:"client_id" validate:"required"`
	UserAgent       string        `koanf:"user_agent"`
	GQLURL          string        `koanf:"gql_url" validate:"required,url"`
	ValidateURL     string        `koanf:"validate_url" validate:"required,url"`
	TokenURLs       []string      `koanf:"token_urls" validate:"dive,url"`
	DashboardHash   string        `koanf:"dashboard_hash" validate:"required,gql_hash"`
	DetailsHash     string        `koanf:"details_hash" validate:"required,gql_hash"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	DetailBatchSize int           `koanf:"detail_batch_size" validate:"gte=1,lte=35"`
	RetryAttempts   int           `koanf:"retry_attempts" validate:"gte=1,lte=10"`
	RetryBaseDelay  time.Duration `koanf:"retry_base_delay" validate:"gt=0"`
	RetryMaxDelay   time.Duration `koanf:"retry_max_delay" validate:"gtefield=RetryBaseDelay"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
	RevalidateEvery time.Duration `koanf:"revalidate_every" validate:"gt=0"`
}

// DiscordConfig holds the notification transport settings.
type DiscordConfig struct {
	BotToken string        `koanf:"bot_token"`
	APIBase  string        `koanf:"api_base" validate:"required,url"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
	// DryRun logs every delivery instead of posting it.
	DryRun bool `koanf:"dry_run"`
}

// PollConfig controls the catalog refresh loop.
type PollConfig struct {
	Interval     time.Duration `koanf:"interval"`
	NotifyOnBoot bool          `koanf:"notify_on_boot"`
	CycleTimeout time.Duration `koanf:"cycle_timeout" validate:"gte=0"`
}

// DigestConfig controls the weekly digest.
type DigestConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Schedule string `koanf:"schedule"`
}

// DispatchConfig controls notification delivery.
type DispatchConfig struct {
	MaxRetries        int           `koanf:"max_retries" validate:"gte=0,lte=10"`
	BaseDelay         time.Duration `koanf:"base_delay" validate:"gt=0"`
	MaxDelay          time.Duration `koanf:"max_delay" validate:"gtefield=BaseDelay"`
	SendTimeout       time.Duration `koanf:"send_timeout" validate:"gt=0"`
	Parallelism       int           `koanf:"parallelism" validate:"gte=1,lte=64"`
	GlobalRate        float64       `koanf:"global_rate" validate:"gt=0"`
	GlobalBurst       int           `koanf:"global_burst" validate:"gte=1"`
	DomainConcurrency int           `koanf:"domain_concurrency" validate:"gte=1"`
	DomainRate        float64       `koanf:"domain_rate" validate:"gt=0"`
	DomainBurst       int           `koanf:"domain_burst" validate:"gte=1"`
	SuppressCapacity  int           `koanf:"suppress_capacity" validate:"gte=0"`
	SuppressTTL       time.Duration `koanf:"suppress_ttl" validate:"gte=0"`
}

// SearchConfig tunes fuzzy game search.
type SearchConfig struct {
	MinScore float64 `koanf:"min_score" validate:"gte=0,lte=400"`
	Limit    int     `koanf:"limit" validate:"gte=1,lte=25"`
}

// StorageConfig holds the badger settings.
type StorageConfig struct {
	Path       string        `koanf:"path"`
	InMemory   bool          `koanf:"in_memory"`
	SyncWrites bool          `koanf:"sync_writes"`
	GCInterval time.Duration `koanf:"gc_interval" validate:"gte=0"`
	GCRatio    float64       `koanf:"gc_ratio" validate:"gt=0,lt=1"`
}

// NATSConfig controls the optional lifecycle event stream.
type NATSConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	SubjectPrefix string        `koanf:"subject_prefix"`
	ClientName    string        `koanf:"client_name"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait" validate:"gte=0"`
}

// APIConfig controls the optional admin API.
type APIConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Addr              string        `koanf:"addr"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gte=0"`
	StaleAfter        time.Duration `koanf:"stale_after" validate:"gte=0"`
	ReadTimeout       time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig holds suture tree settings.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// TwitchFetcherConfig returns the catalog client configuration.
func (c *Config) TwitchFetcherConfig() twitch.Config {
	t := c.Twitch
	return twitch.Config{
		GQLURL:             t.GQLURL,
		ValidateURL:        t.ValidateURL,
		TokenURLs:          append([]string(nil), t.TokenURLs...),
		ClientID:           t.ClientID,
		UserAgent:          t.UserAgent,
		DashboardHash:      t.DashboardHash,
		DetailsHash:        t.DetailsHash,
		AccessToken:        t.AccessToken,
		RefreshToken:       t.RefreshToken,
		RequestTimeout:     t.RequestTimeout,
		DetailBatchSize:    t.DetailBatchSize,
		RateLimitAttempts:  t.RetryAttempts,
		RateLimitBaseDelay: t.RetryBaseDelay,
		RateLimitMaxDelay:  t.RetryMaxDelay,
		BreakerFailures:    t.BreakerFailures,
		BreakerTimeout:     t.BreakerTimeout,
		RevalidateEvery:    t.RevalidateEvery,
	}
}

// DiscordSenderConfig returns the Discord transport configuration.
func (c *Config) DiscordSenderConfig() delivery.DiscordConfig {
	return delivery.DiscordConfig{
		APIBase:  c.Discord.APIBase,
		BotToken: c.Discord.BotToken,
		Timeout:  c.Discord.Timeout,
	}
}

// DeliveryConfig returns the dispatch manager configuration.
func (c *Config) DeliveryConfig() delivery.Config {
	d := c.Dispatch
	return delivery.Config{
		MaxRetries:  d.MaxRetries,
		BaseDelay:   d.BaseDelay,
		MaxDelay:    d.MaxDelay,
		SendTimeout: d.SendTimeout,
		Gate: delivery.GateConfig{
			Parallelism:       d.Parallelism,
			GlobalRate:        d.GlobalRate,
			GlobalBurst:       d.GlobalBurst,
			DomainConcurrency: d.DomainConcurrency,
			DomainRate:        d.DomainRate,
			DomainBurst:       d.DomainBurst,
		},
	}
}

// SchedulerConfig returns the poll and digest loop configuration.
func (c *Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		PollInterval:   c.Poll.Interval,
		NotifyOnBoot:   c.Poll.NotifyOnBoot,
		DigestEnabled:  c.Digest.Enabled,
		DigestSchedule: c.Digest.Schedule,
		CycleTimeout:   c.Poll.CycleTimeout,
	}
}

// StorageDBConfig returns the badger configuration.
func (c *Config) StorageDBConfig() storage.Config {
	return storage.Config{
		Path:       c.Storage.Path,
		InMemory:   c.Storage.InMemory,
		SyncWrites: c.Storage.SyncWrites,
		GCInterval: c.Storage.GCInterval,
		GCRatio:    c.Storage.GCRatio,
	}
}

// EventsConfig returns the NATS publisher configuration.
func (c *Config) EventsConfig() events.Config {
	return events.Config{
		URL:           c.NATS.URL,
		SubjectPrefix: c.NATS.SubjectPrefix,
		ClientName:    c.NATS.ClientName,
		MaxReconnects: c.NATS.MaxReconnects,
		ReconnectWait: c.NATS.ReconnectWait,
	}
}

// APIRouterConfig returns the admin API router configuration.
func (c *Config) APIRouterConfig() api.Config {
	return api.Config{
		RateLimitRequests: c.API.RateLimitRequests,
		RateLimitWindow:   c.API.RateLimitWindow,
		StaleAfter:        c.API.StaleAfter,
	}
}

// EngineConfig returns the engine configuration.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		SearchLimit: c.Search.Limit,
		MinScore:    c.Search.MinScore,
	}
}

// LoggerConfig returns the zerolog configuration. Output goes to stderr.
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		Caller:    c.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	}
}
