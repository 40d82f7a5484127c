// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type fakeHTTPServer struct {
	listenErr   error
	shutdownErr error
	started     chan struct{}
	stop        chan struct{}
	shutdowns   atomic.Int32
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	f.started <- struct{}{}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	close(f.stop)
	return f.shutdownErr
}

var _ suture.Service = (*HTTPServerService)(nil)

func TestHTTPServerService_GracefulShutdown(t *testing.T) {
	srv := newFakeHTTPServer()
	svc := NewHTTPServerService("admin-api", srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-srv.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if srv.shutdowns.Load() != 1 {
		t.Errorf("Shutdown called %d times", srv.shutdowns.Load())
	}
}

func TestHTTPServerService_ListenFailure(t *testing.T) {
	srv := newFakeHTTPServer()
	srv.listenErr = errors.New("address in use")
	svc := NewHTTPServerService("", srv, 0)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, srv.listenErr) {
		t.Fatalf("Serve() = %v, want wrapped listen error", err)
	}
	if svc.String() != "http-server" || svc.shutdownTimeout != 10*time.Second {
		t.Errorf("defaults not applied: %q %s", svc.String(), svc.shutdownTimeout)
	}
}

func TestHTTPServerService_ShutdownError(t *testing.T) {
	srv := newFakeHTTPServer()
	srv.shutdownErr = errors.New("deadline")
	svc := NewHTTPServerService("admin-api", srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	<-srv.started
	cancel()

	if err := <-done; !errors.Is(err, srv.shutdownErr) {
		t.Errorf("Serve() = %v, want shutdown error", err)
	}
}

type fakeLifecycle struct {
	startErr error
	started  atomic.Int32
	stopped  atomic.Int32
	running  chan struct{}
}

func (f *fakeLifecycle) Start(context.Context) error {
	f.started.Add(1)
	if f.startErr != nil {
		return f.startErr
	}
	f.running <- struct{}{}
	return nil
}

func (f *fakeLifecycle) Stop() error {
	f.stopped.Add(1)
	return nil
}

func TestLifecycleService(t *testing.T) {
	t.Run("start then stop on cancel", func(t *testing.T) {
		comp := &fakeLifecycle{running: make(chan struct{}, 1)}
		svc := NewLifecycleService("scheduler", comp)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()

		<-comp.running
		if comp.stopped.Load() != 0 {
			t.Fatal("stopped before cancel")
		}
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v", err)
		}
		if comp.stopped.Load() != 1 {
			t.Errorf("Stop called %d times", comp.stopped.Load())
		}
		if svc.String() != "scheduler" {
			t.Errorf("String() = %q", svc.String())
		}
	})

	t.Run("start failure returns immediately", func(t *testing.T) {
		comp := &fakeLifecycle{startErr: errors.New("already running")}
		err := NewLifecycleService("storage-gc", comp).Serve(context.Background())
		if !errors.Is(err, comp.startErr) {
			t.Errorf("Serve() = %v", err)
		}
		if comp.stopped.Load() != 0 {
			t.Error("Stop called after failed Start")
		}
	})
}
