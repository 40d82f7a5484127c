// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package config

import (
	"fmt"
	"net"

	"github.com/tomtom215/dropscout/internal/scheduler"
	"github.com/tomtom215/dropscout/internal/validation"
)

// Validate checks field constraints first, then rules spanning fields.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if err := c.validateDiscord(); err != nil {
		return err
	}
	if err := c.validatePoll(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	return c.validateAPI()
}

func (c *Config) validateDiscord() error {
	if c.Discord.DryRun {
		return nil
	}
	if c.Discord.BotToken == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN is required unless DRY_RUN=true")
	}
	return nil
}

func (c *Config) validatePoll() error {
	if c.Poll.Interval < scheduler.MinPollInterval {
		return fmt.Errorf("POLL_INTERVAL must be at least %s, got %s", scheduler.MinPollInterval, c.Poll.Interval)
	}
	if !c.Digest.Enabled {
		return nil
	}
	if _, err := scheduler.ParseCron(c.Digest.Schedule); err != nil {
		return fmt.Errorf("DIGEST_SCHEDULE: %w", err)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("STORAGE_PATH is required unless STORAGE_IN_MEMORY=true")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_ENABLED=true")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if !c.API.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.API.Addr); err != nil {
		return fmt.Errorf("API_ADDR %q: %w", c.API.Addr, err)
	}
	return nil
}
