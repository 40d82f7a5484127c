// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package twitch

import "time"

// Upstream defaults.
const (
	DefaultGQLURL      = "https://gql.twitch.tv/gql"
	DefaultValidateURL = "https://id.twitch.tv/oauth2/validate"

	// AndroidClientID is the first-party client ID accepted by the persisted
	// drops operations.
	AndroidClientID = "kd1unb4b3q4t58fwlpcbzcbnm76a8fp"

	DefaultUserAgent = "Dalvik/2.1.0 (Linux; U; Android 16; SM-S911B Build/TP1A.220624.014) " +
		"tv.twitch.android.app/25.3.0/2503006"
)

// DefaultTokenURLs are tried in order when refreshing an access token.
var DefaultTokenURLs = []string{
	"https://id.twitch.tv/oauth2/token",
	"https://passport.twitch.tv/oauth2/token",
}

// Config configures the catalog fetcher.
type Config struct {
	GQLURL      string
	ValidateURL string
	TokenURLs   []string
	ClientID    string
	UserAgent   string

	// DashboardHash and DetailsHash are the persisted query hashes. Twitch
	// rotates them occasionally; they are configurable so a rotation is a
	// config change.
	DashboardHash string
	DetailsHash   string

	AccessToken  string
	RefreshToken string

	// RequestTimeout bounds each HTTP exchange.
	RequestTimeout time.Duration

	// DetailBatchSize is the number of DropCampaignDetails operations per request.
	DetailBatchSize int

	// RateLimitAttempts is how many times one request is sent while the
	// upstream keeps answering 429.
	RateLimitAttempts  int
	RateLimitBaseDelay time.Duration
	RateLimitMaxDelay  time.Duration

	// BreakerFailures consecutive transient failures open the circuit for
	// BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// RevalidateEvery is how long a validated token is trusted before the
	// validate endpoint is consulted again.
	RevalidateEvery time.Duration
}

// DefaultConfig returns production defaults. Tokens are left empty.
func DefaultConfig() Config {
	return Config{
		GQLURL:             DefaultGQLURL,
		ValidateURL:        DefaultValidateURL,
		TokenURLs:          append([]string(nil), DefaultTokenURLs...),
		ClientID:           AndroidClientID,
		UserAgent:          DefaultUserAgent,
		DashboardHash:      DefaultDashboardHash,
		DetailsHash:        DefaultDetailsHash,
		RequestTimeout:     30 * time.Second,
		DetailBatchSize:    20,
		RateLimitAttempts:  5,
		RateLimitBaseDelay: time.Second,
		RateLimitMaxDelay:  16 * time.Second,
		BreakerFailures:    5,
		BreakerTimeout:     2 * time.Minute,
		RevalidateEvery:    time.Hour,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.GQLURL == "" {
		c.GQLURL = d.GQLURL
	}
	if c.ValidateURL == "" {
		c.ValidateURL = d.ValidateURL
	}
	if len(c.TokenURLs) == 0 {
		c.TokenURLs = d.TokenURLs
	}
	if c.ClientID == "" {
		c.ClientID = d.ClientID
	}
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.DashboardHash == "" {
		c.DashboardHash = d.DashboardHash
	}
	if c.DetailsHash == "" {
		c.DetailsHash = d.DetailsHash
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.DetailBatchSize <= 0 {
		c.DetailBatchSize = d.DetailBatchSize
	}
	if c.RateLimitAttempts <= 0 {
		c.RateLimitAttempts = d.RateLimitAttempts
	}
	if c.RateLimitBaseDelay <= 0 {
		c.RateLimitBaseDelay = d.RateLimitBaseDelay
	}
	if c.RateLimitMaxDelay <= 0 {
		c.RateLimitMaxDelay = d.RateLimitMaxDelay
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = d.BreakerFailures
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = d.BreakerTimeout
	}
	if c.RevalidateEvery <= 0 {
		c.RevalidateEvery = d.RevalidateEvery
	}
	return c
}
