// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package services

import (
	"context"
	"fmt"
)

// Lifecycle is a component with its own background loop.
//
// Satisfied by *scheduler.Scheduler and *storage.DB.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
}

// LifecycleService adapts Start/Stop to suture's Serve:
//  1. Start(ctx) spawns the component loop
//  2. Serve blocks until ctx is canceled
//  3. Stop() waits for the loop to drain
//
// A Start failure is returned at once so suture applies its backoff.
type LifecycleService struct {
	component Lifecycle
	name      string
}

// NewLifecycleService wraps component under name.
func NewLifecycleService(name string, component Lifecycle) *LifecycleService {
	return &LifecycleService{component: component, name: name}
}

// Serve implements suture.Service.
func (s *LifecycleService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()

	if err := s.component.Stop(); err != nil {
		return fmt.Errorf("%s stop failed: %w", s.name, err)
	}
	return ctx.Err()
}

// String names the service in suture events.
func (s *LifecycleService) String() string {
	return s.name
}
