// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

/*
Package supervisor runs DropScout's long-lived services under suture v4.

# Tree

	dropscout
	├── data-layer
	│   └── storage-gc      badger value log GC (LifecycleService)
	├── engine-layer
	│   └── scheduler       poll and digest loops (LifecycleService)
	└── api-layer
	    └── admin-api       read-only HTTP API, if API_ENABLED (HTTPServerService)

Each layer is its own supervisor with independent failure counting. A
service that keeps failing is restarted with backoff; it does not take
down its siblings.

# Logging

Supervisor events (service panics, restarts, backoff) are emitted through
sutureslog on a *slog.Logger. main bridges that logger to zerolog with
logging.NewSlogLogger so every line shares one format.

# Shutdown

Canceling the Serve context stops the tree. Each service gets
TreeConfig.ShutdownTimeout to return; UnstoppedServiceReport lists the ones
that did not.

The services subpackage holds the suture adapters.
*/
package supervisor
