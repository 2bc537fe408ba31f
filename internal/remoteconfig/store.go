package remoteconfig

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jpalmerr/mcdash/internal/status"
)

// ConfigPath is the upstream endpoint serving the configuration.
const ConfigPath = "/config"

// Fetcher is the transport capability the store depends on.
type Fetcher interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

var errNoFetcher = errors.New("no config fetcher configured")

// Change reports which parts of the configuration differ from the
// previous snapshot.
type Change struct {
	// Mode is set when the resolved polling mode changed.
	Mode bool

	// Interval is set when the polling interval changed.
	Interval bool

	// Other is set when anything else changed (titles, address, links).
	Other bool
}

// Reschedule reports whether status timers must be restarted.
func (c Change) Reschedule() bool {
	return c.Mode || c.Interval
}

// Any reports whether anything changed.
func (c Change) Any() bool {
	return c.Mode || c.Interval || c.Other
}

// Store holds the current configuration snapshot.
//
// Current and Loaded are safe for concurrent use. Refresh calls are
// serialized.
type Store struct {
	fetcher Fetcher
	logger  *slog.Logger

	refreshMu sync.Mutex
	current   atomic.Pointer[Configuration]
	loaded    atomic.Bool
}

// NewStore creates a store holding the built-in defaults.
func NewStore(fetcher Fetcher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{fetcher: fetcher, logger: logger}
	defaults := Defaults()
	s.current.Store(&defaults)
	return s
}

// Current returns the current snapshot.
func (s *Store) Current() Configuration {
	return *s.current.Load()
}

// Loaded reports whether at least one refresh attempt has completed.
func (s *Store) Loaded() bool {
	return s.loaded.Load()
}

// Refresh fetches /config and replaces the snapshot on success.
//
// On failure the previous snapshot is kept and a [status.ConfigFetch]
// error is returned. Either way the store is marked loaded.
func (s *Store) Refresh(ctx context.Context) (Configuration, Change, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	defer s.loaded.Store(true)

	prev := s.Current()

	next, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("config refresh failed, keeping previous configuration",
			"error", err,
			"polling_interval", prev.PollingInterval,
		)
		return prev, Change{}, &status.Error{Kind: status.ConfigFetch, Source: "config", Err: err}
	}

	change := diff(prev, next)
	s.current.Store(&next)

	if change.Any() {
		s.logger.Info("configuration changed",
			"mode", next.Mode().String(),
			"polling_interval", next.PollingInterval,
			"reschedule", change.Reschedule(),
		)
	}
	return next, change, nil
}

func (s *Store) fetch(ctx context.Context) (Configuration, error) {
	if s.fetcher == nil {
		return Configuration{}, errNoFetcher
	}
	body, err := s.fetcher.Get(ctx, ConfigPath)
	if err != nil {
		return Configuration{}, err
	}
	return Decode(body)
}

func diff(prev, next Configuration) Change {
	c := Change{
		Mode:     prev.Mode() != next.Mode(),
		Interval: prev.PollingInterval != next.PollingInterval,
	}
	// flag edits that leave the resolved mode alone, e.g. toggling mock
	// while offline, count as other changes
	flags := prev.MockMode != next.MockMode || prev.SimulateOffline != next.SimulateOffline
	c.Other = !sameDisplay(prev, next) || (flags && !c.Mode)
	return c
}

func sameDisplay(a, b Configuration) bool {
	a.MockMode, a.SimulateOffline, a.PollingInterval = false, false, 0
	b.MockMode, b.SimulateOffline, b.PollingInterval = false, false, 0
	return a.Equal(b)
}
