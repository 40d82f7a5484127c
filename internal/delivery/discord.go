// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/dropscout/internal/models"
)

// DefaultDiscordAPIBase is the Discord REST root.
const DefaultDiscordAPIBase = "https://discord.com/api/v10"

// DiscordConfig configures the Discord REST transport.
type DiscordConfig struct {
	APIBase   string
	BotToken  string
	UserAgent string
	Timeout   time.Duration
}

// DiscordSender posts messages through the Discord REST API.
//
// A destination without a channel resolves to the guild's system channel,
// looked up once per guild and cached.
type DiscordSender struct {
	cfg    DiscordConfig
	client *http.Client
	logger zerolog.Logger

	mu             sync.RWMutex
	systemChannels map[string]string
}

// NewDiscordSender creates a Discord sender. httpClient may be nil.
func NewDiscordSender(cfg DiscordConfig, httpClient *http.Client, logger *zerolog.Logger) *DiscordSender {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultDiscordAPIBase
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = "DiscordBot (https://github.com/tomtom215/dropscout, 1.0)"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &DiscordSender{
		cfg:            cfg,
		client:         httpClient,
		logger:         logger.With().Str("component", "discord-sender").Logger(),
		systemChannels: make(map[string]string),
	}
}

type guildResponse struct {
	ID              string  `json:"id"`
	SystemChannelID *string `json:"system_channel_id"`
}

type rateLimitResponse struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

// Send implements Sender.
func (s *DiscordSender) Send(ctx context.Context, dest models.Destination, content *Content) error {
	channelID := dest.ChannelID
	if dest.IsDefault() {
		id, err := s.systemChannel(ctx, dest.GuildID)
		if err != nil {
			return err
		}
		channelID = id
	}

	payload, err := json.Marshal(content)
	if err != nil {
		return models.NewFatal("send", fmt.Errorf("marshal message: %w", err))
	}

	status, header, body, err := s.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", payload)
	if err != nil {
		return err
	}
	if status >= 200 && status < 300 {
		return nil
	}

	// A deleted system channel must be looked up again next time.
	if dest.IsDefault() && status == http.StatusNotFound {
		s.forgetSystemChannel(dest.GuildID)
	}
	return classifyStatus("send", status, header, body)
}

// systemChannel resolves and caches a guild's system channel.
func (s *DiscordSender) systemChannel(ctx context.Context, guildID string) (string, error) {
	s.mu.RLock()
	id, ok := s.systemChannels[guildID]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	status, header, body, err := s.do(ctx, http.MethodGet, "/guilds/"+guildID, nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", classifyStatus("resolve-channel", status, header, body)
	}

	var g guildResponse
	if err := json.Unmarshal(body, &g); err != nil {
		return "", models.NewTransient("resolve-channel", fmt.Errorf("decode guild: %w", err))
	}
	if g.SystemChannelID == nil || *g.SystemChannelID == "" {
		return "", models.NewFatal("resolve-channel", fmt.Errorf("guild %s: %w", guildID, models.ErrNoDestination))
	}

	s.mu.Lock()
	s.systemChannels[guildID] = *g.SystemChannelID
	s.mu.Unlock()
	s.logger.Debug().Str("guild_id", guildID).Str("channel_id", *g.SystemChannelID).Msg("Resolved system channel")
	return *g.SystemChannelID, nil
}

func (s *DiscordSender) forgetSystemChannel(guildID string) {
	s.mu.Lock()
	delete(s.systemChannels, guildID)
	s.mu.Unlock()
}

func (s *DiscordSender) do(ctx context.Context, method, path string, payload []byte) (int, http.Header, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.cfg.APIBase+path, reader)
	if err != nil {
		return 0, nil, nil, models.NewFatal("send", fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Bot "+s.cfg.BotToken)
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, nil, models.NewTransient("send", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return 0, nil, nil, models.NewTransient("send", fmt.Errorf("read response: %w", err))
	}
	return resp.StatusCode, resp.Header, body, nil
}

// classifyStatus maps a non-success Discord answer onto the error taxonomy.
func classifyStatus(op string, status int, header http.Header, body []byte) error {
	detail := fmt.Errorf("discord returned %d: %s", status, TruncateContent(string(body), 200))
	switch {
	case status == http.StatusTooManyRequests:
		return &models.TransientError{Op: op, Err: detail, RetryAfter: retryAfter(header, body)}
	case status >= 500:
		return models.NewTransient(op, detail)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return models.NewFatal(op, fmt.Errorf("not permitted: %w", detail))
	case status == http.StatusNotFound:
		return models.NewFatal(op, fmt.Errorf("unknown channel or guild: %w", detail))
	case status == http.StatusRequestEntityTooLarge:
		return models.NewFatal(op, fmt.Errorf("message too large: %w", detail))
	default:
		return models.NewFatal(op, detail)
	}
}

// retryAfter reads the wait from the JSON body, falling back to headers.
func retryAfter(header http.Header, body []byte) time.Duration {
	var rl rateLimitResponse
	if err := json.Unmarshal(body, &rl); err == nil && rl.RetryAfter > 0 {
		return time.Duration(rl.RetryAfter * float64(time.Second))
	}
	for _, h := range []string{"X-RateLimit-Reset-After", "Retry-After"} {
		if v := header.Get(h); v != "" {
			if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
				return time.Duration(secs * float64(time.Second))
			}
		}
	}
	return 0
}

var (
	_ Sender = (*DiscordSender)(nil)
	_ Sender = (*LogSender)(nil)
)
