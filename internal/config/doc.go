// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

/*
Package config loads and validates DropScout configuration.

# Sources

Configuration is layered with koanf, lowest priority first:

  - Struct defaults (defaultConfig)
  - A YAML file: $CONFIG_PATH, ./config.yaml, ./config.yml, /etc/dropscout/config.yaml
  - Environment variables from an explicit allow list (envMappings)

Environment variables not in the allow list are ignored.

# Common Variables

  - TWITCH_ACCESS_TOKEN: OAuth token for the Twitch GraphQL API (required)
  - DISCORD_BOT_TOKEN: Discord bot token (required unless DRY_RUN=true)
  - POLL_INTERVAL: catalog refresh period (default: 30m, minimum: 1m)
  - NOTIFY_ON_BOOT: notify for the first fetch after startup (default: false)
  - DIGEST_SCHEDULE: weekly digest cron in UTC (default: 0 0 * * 1)
  - DATA_DIR: badger directory (default: /data/dropscout)
  - NATS_ENABLED, NATS_URL: lifecycle event stream (default: disabled)
  - API_ENABLED, API_ADDR: admin API (default: disabled, 127.0.0.1:8089)
  - LOG_LEVEL, LOG_FORMAT: zerolog level and json or console output

# Validation

Field constraints are declared with validator tags and checked through the
validation package. Rules spanning several fields live in config_validate.go.

Accessors such as TwitchFetcherConfig and DeliveryConfig translate sections
into the option structs of each subsystem, so those packages never import
config.
*/
package config
