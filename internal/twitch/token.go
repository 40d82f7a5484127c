// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/dropscout/internal/models"
)

var (
	errNoCredentials = errors.New("no access token and no refresh token configured")
	errForeignClient = errors.New("token was issued to a different client")
	errTokenInvalid  = errors.New("token rejected by validate endpoint")
)

// Credentials is a validated access token and the login it belongs to.
type Credentials struct {
	AccessToken string
	Login       string
}

type validateResponse struct {
	ClientID  string `json:"client_id"`
	Login     string `json:"login"`
	UserID    string `json:"user_id"`
	ExpiresIn int    `json:"expires_in"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenSource keeps the access/refresh pair valid. Rotated pairs live in
// memory only.
type TokenSource struct {
	client *Client
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	mu          sync.Mutex
	access      string
	refresh     string
	login       string
	validatedAt time.Time
}

// NewTokenSource creates a token source seeded from cfg.
func NewTokenSource(client *Client, logger *zerolog.Logger) *TokenSource {
	return &TokenSource{
		client:  client,
		cfg:     client.cfg,
		logger:  logger.With().Str("component", "twitch-token").Logger(),
		now:     time.Now,
		access:  client.cfg.AccessToken,
		refresh: client.cfg.RefreshToken,
	}
}

// Credentials returns a usable token, validating or refreshing as needed.
// A transient validation failure is returned as is; every other dead end
// (rejected token, failed refresh) is a FatalError.
func (ts *TokenSource) Credentials(ctx context.Context) (Credentials, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.login != "" && ts.now().Sub(ts.validatedAt) < ts.cfg.RevalidateEvery {
		return Credentials{AccessToken: ts.access, Login: ts.login}, nil
	}

	var causes []error
	if ts.access != "" {
		info, err := ts.validate(ctx, ts.access)
		if err == nil {
			ts.accept(ts.access, ts.refresh, info)
			return Credentials{AccessToken: ts.access, Login: ts.login}, nil
		}
		if models.IsTransient(err) || ctx.Err() != nil {
			return Credentials{}, err
		}
		causes = append(causes, err)
	}

	if ts.refresh == "" {
		if len(causes) == 0 {
			causes = append(causes, errNoCredentials)
		}
		return Credentials{}, models.NewFatal("token", errors.Join(causes...))
	}

	pair, err := ts.refreshPair(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Credentials{}, ctx.Err()
		}
		return Credentials{}, models.NewFatal("token", errors.Join(append(causes, err)...))
	}
	info, err := ts.validate(ctx, pair.AccessToken)
	if err != nil {
		if models.IsTransient(err) {
			return Credentials{}, err
		}
		return Credentials{}, models.NewFatal("token", fmt.Errorf("refreshed token: %w", err))
	}
	next := pair.RefreshToken
	if next == "" {
		next = ts.refresh
	}
	ts.accept(pair.AccessToken, next, info)
	ts.logger.Info().Str("login", ts.login).Msg("Access token refreshed")
	return Credentials{AccessToken: ts.access, Login: ts.login}, nil
}

// Invalidate forces revalidation on the next call.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	ts.login = ""
	ts.mu.Unlock()
}

func (ts *TokenSource) accept(access, refresh string, info validateResponse) {
	ts.access = access
	ts.refresh = refresh
	ts.login = info.Login
	ts.validatedAt = ts.now()
}

// validate checks token under each auth scheme.
func (ts *TokenSource) validate(ctx context.Context, token string) (validateResponse, error) {
	for _, scheme := range authSchemes {
		status, body, err := ts.client.Get(ctx, "validate", ts.cfg.ValidateURL, scheme, token)
		if err != nil {
			return validateResponse{}, err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			continue
		}
		if status != http.StatusOK {
			return validateResponse{}, fmt.Errorf("validate: unexpected status %d", status)
		}
		var info validateResponse
		if err := json.Unmarshal(body, &info); err != nil {
			return validateResponse{}, models.NewTransient("validate", fmt.Errorf("decode: %w", err))
		}
		if info.ClientID != "" && info.ClientID != ts.cfg.ClientID {
			return validateResponse{}, fmt.Errorf("%w (%s)", errForeignClient, info.ClientID)
		}
		if info.Login == "" {
			return validateResponse{}, fmt.Errorf("%w: no login in response", errTokenInvalid)
		}
		return info, nil
	}
	return validateResponse{}, errTokenInvalid
}

// refreshPair tries each token endpoint in order.
func (ts *TokenSource) refreshPair(ctx context.Context) (refreshResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {ts.refresh},
		"client_id":     {ts.cfg.ClientID},
	}.Encode()

	var causes []error
	for _, endpoint := range ts.cfg.TokenURLs {
		status, body, err := ts.client.PostForm(ctx, "refresh", endpoint, form)
		if err != nil {
			causes = append(causes, fmt.Errorf("%s: %w", endpoint, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if status >= 400 {
			causes = append(causes, fmt.Errorf("%s: status %d: %s", endpoint, status, truncate(body, 200)))
			continue
		}
		var pair refreshResponse
		if err := json.Unmarshal(body, &pair); err != nil || pair.AccessToken == "" {
			causes = append(causes, fmt.Errorf("%s: response carries no access_token", endpoint))
			continue
		}
		return pair, nil
	}
	return refreshResponse{}, fmt.Errorf("refresh failed: %w", errors.Join(causes...))
}
