// Package store holds the published dashboard snapshot and fans it out to
// subscribers.
//
// The main components are:
//
//   - [Store]: Interface defining publish and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Snapshot]: The complete published state of the dashboard
//
// The aggregation controller is the only publisher. Subscribers receive
// snapshots via channels with non-blocking sends (slow subscribers will
// miss snapshots rather than block the controller).
package store
