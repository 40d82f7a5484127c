// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package twitch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/dropscout/internal/metrics"
	"github.com/tomtom215/dropscout/internal/models"
)

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 16 << 20

// authSchemes are tried in order. Some tokens are only accepted under one.
var authSchemes = []string{"OAuth", "Bearer"}

var (
	errAuthRejected        = errors.New("authorization rejected under every scheme")
	errPersistedQuery      = errors.New("persisted query not found")
	errMissingUserContext  = errors.New("response has no user context")
	errUndecodableResponse = errors.New("undecodable response body")
)

// Client performs authenticated GQL exchanges with the upstream.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  zerolog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client, logger *zerolog.Logger) *Client {
	cfg = cfg.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		breaker: newBreaker(cfg),
		logger:  logger.With().Str("component", "twitch-client").Logger(),
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// response is a fully read HTTP response.
type response struct {
	status int
	header http.Header
	body   []byte
}

// GQL posts payload (one operation object or a batch array) and returns the
// raw response body. Authorization schemes are tried in order; a scheme is
// abandoned on 401/403, PersistedQueryNotFound or a null currentUser.
func (c *Client) GQL(ctx context.Context, op, token string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, models.NewFatal(op, fmt.Errorf("marshal payload: %w", err))
	}

	return c.execute(op, func() ([]byte, error) {
		var lastErr error
		for _, scheme := range authSchemes {
			resp, err := c.send(ctx, op, func() (*http.Request, error) {
				req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GQLURL, bytes.NewReader(body))
				if err != nil {
					return nil, err
				}
				c.setHeaders(req, scheme, token)
				req.Header.Set("Content-Type", "application/json")
				return req, nil
			})
			if err != nil {
				return nil, err
			}

			switch {
			case resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden:
				lastErr = fmt.Errorf("%w (last status %d)", errAuthRejected, resp.status)
				c.logger.Debug().Str("op", op).Str("scheme", scheme).Int("status", resp.status).Msg("GQL auth rejected, trying next scheme")
				continue
			case resp.status >= 500:
				if envelopeError(resp.body) == errPersistedQuery {
					lastErr = errPersistedQuery
					continue
				}
				return nil, models.NewTransient(op, fmt.Errorf("upstream status %d", resp.status))
			case resp.status >= 400:
				return nil, models.NewFatal(op, fmt.Errorf("upstream status %d: %s", resp.status, truncate(resp.body, 200)))
			}

			if !json.Valid(resp.body) {
				return nil, models.NewTransient(op, errUndecodableResponse)
			}
			if envErr := envelopeError(resp.body); envErr != nil {
				lastErr = envErr
				c.logger.Debug().Str("op", op).Str("scheme", scheme).Err(envErr).Msg("GQL response unusable, trying next scheme")
				continue
			}
			return resp.body, nil
		}
		return nil, models.NewFatal(op, lastErr)
	})
}

// Get performs an authenticated GET (used for token validation). The body is
// returned for any status; the caller interprets it.
func (c *Client) Get(ctx context.Context, op, url, scheme, token string) (int, []byte, error) {
	var status int
	body, err := c.execute(op, func() ([]byte, error) {
		resp, err := c.send(ctx, op, func() (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			c.setHeaders(req, scheme, token)
			return req, nil
		})
		if err != nil {
			return nil, err
		}
		status = resp.status
		if resp.status >= 500 {
			return nil, models.NewTransient(op, fmt.Errorf("upstream status %d", resp.status))
		}
		return resp.body, nil
	})
	return status, body, err
}

// PostForm posts a form body (used for token refresh).
func (c *Client) PostForm(ctx context.Context, op, url string, form string) (int, []byte, error) {
	var status int
	body, err := c.execute(op, func() ([]byte, error) {
		resp, err := c.send(ctx, op, func() (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(form))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("User-Agent", c.cfg.UserAgent)
			return req, nil
		})
		if err != nil {
			return nil, err
		}
		status = resp.status
		if resp.status >= 500 {
			return nil, models.NewTransient(op, fmt.Errorf("upstream status %d", resp.status))
		}
		return resp.body, nil
	})
	return status, body, err
}

func (c *Client) setHeaders(req *http.Request, scheme, token string) {
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Client-Id", c.cfg.ClientID)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Origin", "https://www.twitch.tv")
	req.Header.Set("Referer", "https://www.twitch.tv/")
	req.Header.Set("Accept-Language", "en-US")
	if token != "" {
		req.Header.Set("Authorization", scheme+" "+token)
	}
}

// send performs one logical request, resending while the upstream answers
// 429. Delays grow from RateLimitBaseDelay doubling up to RateLimitMaxDelay;
// a Retry-After header wins. Network failures are transient.
func (c *Client) send(ctx context.Context, op string, build func() (*http.Request, error)) (*response, error) {
	for attempt := 1; ; attempt++ {
		req, err := build()
		if err != nil {
			return nil, models.NewFatal(op, fmt.Errorf("build request: %w", err))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			metrics.RecordUpstreamRequest(op, 0)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, models.NewTransient(op, err)
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
		metrics.RecordUpstreamRequest(op, resp.StatusCode)
		if readErr != nil {
			return nil, models.NewTransient(op, fmt.Errorf("read body: %w", readErr))
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
		}

		delay := c.rateLimitDelay(attempt, resp.Header)
		if attempt >= c.cfg.RateLimitAttempts {
			return nil, &models.TransientError{Op: op, Err: errors.New("rate limited"), RetryAfter: delay}
		}
		c.logger.Warn().
			Str("op", op).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Upstream rate limited, backing off")
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// rateLimitDelay returns the wait before resending attempt+1.
func (c *Client) rateLimitDelay(attempt int, header http.Header) time.Duration {
	if ra := header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.ParseFloat(ra, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
		if at, err := http.ParseTime(ra); err == nil {
			if d := time.Until(at); d > 0 {
				return d
			}
			return 0
		}
	}
	delay := c.cfg.RateLimitBaseDelay << uint(attempt-1)
	if delay > c.cfg.RateLimitMaxDelay || delay <= 0 {
		delay = c.cfg.RateLimitMaxDelay
	}
	return delay
}

// gqlEnvelope is the common shape of a GQL response element.
type gqlEnvelope struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// envelopeError inspects a response (object or batch array) for conditions
// that warrant trying the next auth scheme.
func envelopeError(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	var envs []gqlEnvelope
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &envs); err != nil {
			return nil
		}
	} else {
		var env gqlEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil
		}
		envs = []gqlEnvelope{env}
	}

	for _, env := range envs {
		for _, e := range env.Errors {
			if e.Message == "PersistedQueryNotFound" || e.Message == "service error" {
				return errPersistedQuery
			}
		}
		if raw, ok := env.Data["currentUser"]; ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return errMissingUserContext
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
