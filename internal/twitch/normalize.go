// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package twitch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dropscout/internal/models"
)

// rawCampaign is the upstream campaign record. Overview and detail responses
// share this shape; details carry timeBasedDrops.
type rawCampaign struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	StartAt        string    `json:"startAt"`
	EndAt          string    `json:"endAt"`
	Game           *rawGame  `json:"game"`
	TimeBasedDrops []rawDrop `json:"timeBasedDrops"`
}

type rawGame struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Slug        string `json:"slug"`
	BoxArtURL   string `json:"boxArtURL"`
}

type rawDrop struct {
	BenefitEdges []rawBenefitEdge `json:"benefitEdges"`
}

type rawBenefitEdge struct {
	Benefit *rawBenefit `json:"benefit"`
}

type rawBenefit struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ImageAssetURL string `json:"imageAssetURL"`
}

// fill copies fields missing from r out of the detail record d.
func (r *rawCampaign) fill(d *rawCampaign) {
	if d == nil {
		return
	}
	if r.Name == "" {
		r.Name = d.Name
	}
	if r.StartAt == "" {
		r.StartAt = d.StartAt
	}
	if r.EndAt == "" {
		r.EndAt = d.EndAt
	}
	if len(r.TimeBasedDrops) == 0 {
		r.TimeBasedDrops = d.TimeBasedDrops
	}
	switch {
	case r.Game == nil:
		r.Game = d.Game
	case d.Game != nil:
		g := *r.Game
		if g.Name == "" {
			g.Name = d.Game.Name
		}
		if g.DisplayName == "" {
			g.DisplayName = d.Game.DisplayName
		}
		if g.Slug == "" {
			g.Slug = d.Game.Slug
		}
		if g.BoxArtURL == "" {
			g.BoxArtURL = d.Game.BoxArtURL
		}
		r.Game = &g
	}
}

var (
	errNotObject      = errors.New("record is not a campaign object")
	errMissingID      = errors.New("missing id")
	errMissingGame    = errors.New("missing game name")
	errUnknownStatus  = errors.New("unknown status")
	errBadTime        = errors.New("unparsable time")
	errEndBeforeStart = errors.New("end precedes start")
	errDuplicateID    = errors.New("duplicate id")
)

// decodeRecord decodes one overview element. Non-objects fail.
func decodeRecord(raw json.RawMessage) (rawCampaign, error) {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return rawCampaign{}, errNotObject
	}
	var rc rawCampaign
	if err := json.Unmarshal(raw, &rc); err != nil {
		return rawCampaign{}, fmt.Errorf("%w: %v", errNotObject, err)
	}
	return rc, nil
}

// mapStatus converts the upstream status, promoting ACTIVE campaigns that have
// not started yet to upcoming.
func mapStatus(status string, start time.Time, now time.Time) (models.CampaignStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "ACTIVE":
		if start.After(now) {
			return models.StatusUpcoming, nil
		}
		return models.StatusActive, nil
	case "EXPIRED":
		return models.StatusEnded, nil
	case "UPCOMING":
		return models.StatusUpcoming, nil
	default:
		return "", fmt.Errorf("%w %q", errUnknownStatus, status)
	}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q", errBadTime, s)
	}
	return t.UTC(), nil
}

// toCampaign converts a merged record.
func toCampaign(rc rawCampaign, now time.Time) (models.Campaign, error) {
	id := strings.TrimSpace(rc.ID)
	if id == "" {
		return models.Campaign{}, errMissingID
	}
	if rc.Game == nil {
		return models.Campaign{}, errMissingGame
	}
	game := strings.TrimSpace(rc.Game.DisplayName)
	if game == "" {
		game = strings.TrimSpace(rc.Game.Name)
	}
	if game == "" {
		return models.Campaign{}, errMissingGame
	}

	start, err := parseTime(rc.StartAt)
	if err != nil {
		return models.Campaign{}, err
	}
	end, err := parseTime(rc.EndAt)
	if err != nil {
		return models.Campaign{}, err
	}
	if end.Before(start) {
		return models.Campaign{}, errEndBeforeStart
	}
	status, err := mapStatus(rc.Status, start, now)
	if err != nil {
		return models.Campaign{}, err
	}

	return models.Campaign{
		ID:        id,
		Name:      strings.TrimSpace(rc.Name),
		Game:      game,
		GameSlug:  rc.Game.Slug,
		BoxArtURL: rc.Game.BoxArtURL,
		Benefits:  collectBenefits(rc.TimeBasedDrops),
		StartsAt:  start,
		EndsAt:    end,
		Status:    status,
	}, nil
}

// collectBenefits flattens benefits across drops, keeping the first record of
// each benefit ID.
func collectBenefits(drops []rawDrop) []models.Benefit {
	var out []models.Benefit
	seen := make(map[string]struct{})
	for _, d := range drops {
		for _, edge := range d.BenefitEdges {
			b := edge.Benefit
			if b == nil || b.ID == "" {
				continue
			}
			if _, dup := seen[b.ID]; dup {
				continue
			}
			seen[b.ID] = struct{}{}
			name := strings.TrimSpace(b.Name)
			if name == "" {
				name = "Unknown"
			}
			out = append(out, models.Benefit{ID: b.ID, Name: name, ImageURL: b.ImageAssetURL})
		}
	}
	return out
}

// Rejection describes one dropped upstream record.
type Rejection struct {
	Index int
	ID    string
	Err   error
}

// Normalize converts raw overview records into campaigns. details fills
// fields the overview lacks, keyed by campaign ID. Each record is judged on
// its own: malformed ones are rejected and the rest survive.
func Normalize(records []json.RawMessage, details map[string]*rawCampaign, now time.Time) ([]models.Campaign, []Rejection) {
	out := make([]models.Campaign, 0, len(records))
	var rejected []Rejection
	seen := make(map[string]struct{}, len(records))

	for i, raw := range records {
		rc, err := decodeRecord(raw)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, Err: err})
			continue
		}
		rc.fill(details[rc.ID])

		c, err := toCampaign(rc, now)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, ID: rc.ID, Err: err})
			continue
		}
		if _, dup := seen[c.ID]; dup {
			rejected = append(rejected, Rejection{Index: i, ID: c.ID, Err: errDuplicateID})
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out, rejected
}
