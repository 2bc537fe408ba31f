// Package mcdash provides an embeddable live dashboard for a Minecraft
// server, fed by a dashboard backend that serves /config and one or more
// status endpoints.
//
// mcdash polls the backend's configuration and status sources on
// independent timers, merges the primary status with optional secondary
// sources field by field, and serves the result as JSON, Server-Sent Events
// and an embedded web page.
//
// # Quick Start
//
//	d, _ := mcdash.New(mcdash.WithUpstream("http://backend:8000"))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	d.Start(ctx) // blocks until ctx is cancelled
//
// # Sources
//
// The primary source defaults to /status. Secondary sources may override
// selected fields of the primary record:
//
//	ext, _ := mcdash.NewSource("mcsrvstat", "/status-mcsrvstat",
//	    mcdash.WithShape(mcdash.ShapeMCSrvStat),
//	    mcdash.WithTimeout(3*time.Second),
//	)
//	d, err := mcdash.New(
//	    mcdash.WithUpstream(backend),
//	    mcdash.WithSecondary(ext),
//	    mcdash.WithMergeFields("latency", "identity", "players"),
//	)
//
// A failed primary makes the view show its error. Failed secondaries are
// logged and left out of the merge.
//
// # Modes
//
// The backend's /config selects the mode on every refresh. Offline wins over
// mock, mock wins over live:
//
//   - Live: sources are fetched from the backend
//   - Mock: a fixed record with random 5-500ms latency, no network I/O
//   - Offline: every source reports the offline record
//
// A mode or polling interval change restarts the status timers. Results
// from timers that were replaced are discarded.
//
// # Architecture
//
// mcdash consists of several internal packages (under internal/):
//
//   - internal/mode: mode resolution
//   - internal/status: canonical record, results and error kinds
//   - internal/source: source adapters and response normalizers
//   - internal/poller: upstream HTTP client and keyed repeating timers
//   - internal/remoteconfig: /config snapshot and change detection
//   - internal/merge: field-level merge policy
//   - internal/aggregate: the controller owning all aggregation state
//   - internal/store: latest snapshot with pub/sub for real-time updates
//   - internal/server: HTTP server with JSON API and Server-Sent Events
//   - dashboard: embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package mcdash
