// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package events publishes campaign and dispatch domain events to NATS.
//
// Subjects are <prefix>.campaign.appeared, <prefix>.campaign.disappeared and
// <prefix>.dispatch.dropped. Payloads are JSON envelopes. Publishing is best
// effort: failures are logged and counted but never returned to the cycle
// that produced the event.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/dropscout/internal/delivery"
	"github.com/tomtom215/dropscout/internal/logging"
	"github.com/tomtom215/dropscout/internal/metrics"
	"github.com/tomtom215/dropscout/internal/models"
)

// SchemaVersion is bumped on breaking payload changes.
const SchemaVersion = 1

// Event names, appended to the subject prefix.
const (
	EventCampaignAppeared    = "campaign.appeared"
	EventCampaignDisappeared = "campaign.disappeared"
	EventDispatchDropped     = "dispatch.dropped"
)

// Envelope wraps every published payload.
type Envelope struct {
	SchemaVersion int       `json:"schema_version"`
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
	Data          any       `json:"data"`
}

// CampaignData is the payload of the campaign events.
type CampaignData struct {
	Campaign models.Campaign `json:"campaign"`
}

// DropData is the payload of dispatch.dropped.
type DropData struct {
	Destination string        `json:"destination"`
	CampaignID  string        `json:"campaign_id,omitempty"`
	Reason      models.Reason `json:"reason"`
	DropReason  string        `json:"drop_reason"`
	Attempts    int           `json:"attempts"`
	Error       string        `json:"error,omitempty"`
}

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Config holds NATS settings.
type Config struct {
	URL           string
	SubjectPrefix string
	ClientName    string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns the default NATS settings.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "dropscout",
		ClientName:    "dropscout",
		MaxReconnects: 10,
		ReconnectWait: time.Second,
	}
}

// Publisher emits domain events.
type Publisher struct {
	conn   Conn
	prefix string
	logger zerolog.Logger
	now    func() time.Time

	closeOnce sync.Once
	closer    func()
}

// Connect dials NATS and returns a publisher that owns the connection.
// The client retries the initial connect in the background.
func Connect(cfg Config, logger *zerolog.Logger) (*Publisher, error) {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.ClientName == "" {
		cfg.ClientName = def.ClientName
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = def.MaxReconnects
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = def.ReconnectWait
	}

	log := logger.With().Str("component", "events").Logger()
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ClientName),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	p := NewPublisher(nc, cfg.SubjectPrefix, logger)
	p.closer = func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return p, nil
}

// NewPublisher wraps an existing connection. An empty prefix uses "dropscout".
func NewPublisher(conn Conn, prefix string, logger *zerolog.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultConfig().SubjectPrefix
	}
	return &Publisher{
		conn:   conn,
		prefix: prefix,
		logger: logger.With().Str("component", "events").Logger(),
		now:    time.Now,
	}
}

// Subject returns the full subject for an event name.
func (p *Publisher) Subject(event string) string {
	return p.prefix + "." + event
}

// CampaignsAppeared publishes one event per campaign.
func (p *Publisher) CampaignsAppeared(ctx context.Context, campaigns []models.Campaign) {
	for _, c := range campaigns {
		p.publish(ctx, EventCampaignAppeared, CampaignData{Campaign: c})
	}
}

// CampaignsDisappeared publishes one event per campaign.
func (p *Publisher) CampaignsDisappeared(ctx context.Context, campaigns []models.Campaign) {
	for _, c := range campaigns {
		p.publish(ctx, EventCampaignDisappeared, CampaignData{Campaign: c})
	}
}

// DispatchDropped publishes a dropped obligation. Its signature matches
// delivery.WithDropHook.
func (p *Publisher) DispatchDropped(ctx context.Context, r delivery.Result) {
	data := DropData{
		Destination: r.Obligation.Destination.String(),
		CampaignID:  r.Obligation.CampaignID,
		Reason:      r.Obligation.Reason,
		DropReason:  r.DropReason,
		Attempts:    r.Attempts,
	}
	if r.Err != nil {
		data.Error = r.Err.Error()
	}
	p.publish(ctx, EventDispatchDropped, data)
}

// Close drains the owned connection, if any.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.closer != nil {
			p.closer()
		}
	})
}

func (p *Publisher) publish(ctx context.Context, event string, data any) {
	env := Envelope{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		Type:          event,
		CorrelationID: logging.CorrelationIDFromContext(ctx),
		OccurredAt:    p.now().UTC(),
		Data:          data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		p.fail(ctx, event, fmt.Errorf("marshal %s: %w", event, err))
		return
	}
	if err := p.conn.Publish(p.Subject(event), body); err != nil {
		p.fail(ctx, event, err)
		return
	}
	metrics.EventsPublished.WithLabelValues(event, "success").Inc()
}

func (p *Publisher) fail(ctx context.Context, event string, err error) {
	metrics.EventsPublished.WithLabelValues(event, "error").Inc()
	p.logger.Warn().Err(err).
		Str("event", event).
		Str("correlation_id", logging.CorrelationIDFromContext(ctx)).
		Msg("Event publish failed")
}
