// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package scheduler

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"time"
)

// DefaultDigestSchedule fires every Monday at 00:00.
const DefaultDigestSchedule = "0 0 * * 1"

// field is a bitset of allowed values for one cron position.
type field uint64

func (f field) has(v int) bool { return f&(1<<uint(v)) != 0 }

func (f field) count() int { return bits.OnesCount64(uint64(f)) }

func span(lo, hi, step int) field {
	var f field
	for v := lo; v <= hi; v += step {
		f |= 1 << uint(v)
	}
	return f
}

type bounds struct {
	name   string
	lo, hi int
}

var fieldBounds = [5]bounds{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 7},
}

// Schedule is a parsed five-field cron expression:
// minute hour day-of-month month day-of-week.
//
// Accepted per field: *, n, n-m, lists (a,b,c) and steps (*/s, n/s, n-m/s).
// Day-of-week 7 is Sunday, same as 0. When both day fields are restricted,
// a day matching either one qualifies.
type Schedule struct {
	expr   string
	minute field
	hour   field
	dom    field
	month  field
	dow    field
	loc    *time.Location
}

// ParseCron parses expr, evaluating it in UTC.
func ParseCron(expr string) (*Schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return nil, fmt.Errorf("cron %q: want 5 fields, got %d", expr, len(parts))
	}

	var sets [5]field
	for i, p := range parts {
		f, err := parseCronField(p, fieldBounds[i])
		if err != nil {
			return nil, fmt.Errorf("cron %q: %w", expr, err)
		}
		sets[i] = f
	}

	dow := sets[4]
	if dow.has(7) {
		dow = (dow &^ (1 << 7)) | 1
	}

	return &Schedule{
		expr:   expr,
		minute: sets[0],
		hour:   sets[1],
		dom:    sets[2],
		month:  sets[3],
		dow:    dow,
		loc:    time.UTC,
	}, nil
}

// In returns a copy of the schedule evaluated in loc.
func (s *Schedule) In(loc *time.Location) *Schedule {
	c := *s
	if loc != nil {
		c.loc = loc
	}
	return &c
}

func (s *Schedule) String() string { return s.expr }

// Next returns the first matching minute strictly after t, or the zero time
// if none exists within five years (e.g. "0 0 31 2 *").
func (s *Schedule) Next(t time.Time) time.Time {
	t = t.In(s.loc).Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(5, 0, 0)

	for t.Before(limit) {
		if !s.month.has(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, s.loc)
			continue
		}
		if !s.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, s.loc)
			continue
		}
		if !s.hour.has(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, s.loc)
			continue
		}
		if !s.minute.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

func (s *Schedule) dayMatches(t time.Time) bool {
	domAny := s.dom.count() == 31
	dowAny := s.dow.count() == 7
	domOK := s.dom.has(t.Day())
	dowOK := s.dow.has(int(t.Weekday()))

	switch {
	case domAny && dowAny:
		return true
	case domAny:
		return dowOK
	case dowAny:
		return domOK
	default:
		return domOK || dowOK
	}
}

func parseCronField(text string, b bounds) (field, error) {
	var f field
	for _, item := range strings.Split(text, ",") {
		part, err := parseCronItem(item, b)
		if err != nil {
			return 0, fmt.Errorf("%s field: %w", b.name, err)
		}
		f |= part
	}
	return f, nil
}

func parseCronItem(item string, b bounds) (field, error) {
	rangePart, stepPart, hasStep := strings.Cut(item, "/")
	step := 1
	if hasStep {
		n, err := strconv.Atoi(stepPart)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("bad step %q", stepPart)
		}
		step = n
	}

	lo, hi := b.lo, b.hi
	switch {
	case rangePart == "*":
	case strings.Contains(rangePart, "-"):
		a, z, _ := strings.Cut(rangePart, "-")
		var err error
		if lo, err = cronValue(a, b); err != nil {
			return 0, err
		}
		if hi, err = cronValue(z, b); err != nil {
			return 0, err
		}
		if lo > hi {
			return 0, fmt.Errorf("empty range %q", rangePart)
		}
	default:
		v, err := cronValue(rangePart, b)
		if err != nil {
			return 0, err
		}
		lo = v
		if !hasStep {
			hi = v
		}
	}
	return span(lo, hi, step), nil
}

func cronValue(s string, b bounds) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad value %q", s)
	}
	if v < b.lo || v > b.hi {
		return 0, fmt.Errorf("value %d outside %d-%d", v, b.lo, b.hi)
	}
	return v, nil
}
