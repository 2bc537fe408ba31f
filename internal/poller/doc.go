// Package poller provides the transport and timing primitives of the
// status engine.
//
// The main components are:
//
//   - [Client]: HTTP client that fetches JSON documents relative to the
//     upstream base URL, with per-request timeouts and a 1MB body limit
//   - [Scheduler]: keyed, cancellable repeating timers; one per polled
//     entity (configuration, primary status, each secondary status)
//
// Users of the mcdash library should not need to interact with this
// package directly. Configuration is done through the main mcdash package.
package poller
