// Package server provides the HTTP surface of the dashboard.
//
// It handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML dashboard at "/"
//   - REST API: JSON endpoint at "/api/view" for the current snapshot
//   - Server-Sent Events: Real-time snapshots at "/api/sse"
//   - Health: "/healthz" always answers {"status":"ok"} while the process runs
//   - Toggle: "/api/toggle" switches external overrides on or off at runtime
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
