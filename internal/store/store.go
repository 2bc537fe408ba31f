package store

import (
	"time"

	"github.com/jpalmerr/mcdash/internal/merge"
	"github.com/jpalmerr/mcdash/internal/mode"
	"github.com/jpalmerr/mcdash/internal/remoteconfig"
	"github.com/jpalmerr/mcdash/internal/status"
)

// Snapshot is the published state of the dashboard.
//
// Snapshot is the storage representation consumed by the REST API, SSE
// stream and view callbacks. A snapshot is never modified after it is
// published.
type Snapshot struct {
	// View is the merged status of the primary and secondary sources.
	View merge.View `json:"view"`

	// Loading is true until the primary source has settled once.
	Loading bool `json:"loading"`

	// Error is the latest primary failure. A later primary success clears it.
	Error *status.Error `json:"error"`

	// Mode is the polling mode the view was produced under.
	Mode mode.Mode `json:"mode"`

	// Config is the configuration snapshot in effect.
	Config remoteconfig.Configuration `json:"config"`

	// PreferExternal reports whether secondaries may override the record.
	PreferExternal bool `json:"prefer_external"`

	// Sources holds the latest outcome per source name.
	Sources map[string]SourceStatus `json:"sources"`

	// Sequence increases by one on every publish, starting at 1.
	Sequence uint64 `json:"sequence"`

	// PublishedAt is set by the store on publish.
	PublishedAt time.Time `json:"published_at"`
}

// SourceStatus summarizes the last result of one source.
type SourceStatus struct {
	Outcome     string        `json:"outcome"`
	Error       *status.Error `json:"error,omitempty"`
	CompletedAt time.Time     `json:"completed_at"`
}

// SourceStatusOf summarizes a result.
func SourceStatusOf(r status.Result) SourceStatus {
	return SourceStatus{
		Outcome:     r.Outcome.String(),
		Error:       r.Err,
		CompletedAt: r.CompletedAt,
	}
}

// Store defines the interface for publishing and subscribing to snapshots.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// Publish stamps the snapshot with the next sequence number and the
	// publish time, makes it current and notifies all subscribers.
	Publish(snap Snapshot) Snapshot

	// Current returns the latest snapshot and whether one was published.
	Current() (Snapshot, bool)

	// Subscribe returns a channel that receives published snapshots.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
