// Package aggregate drives the polling engine: it refreshes configuration,
// schedules one timer per source, merges settled results and publishes
// snapshots.
//
// A single goroutine, [Controller.Run], owns all mutable state. Timer
// goroutines only fetch and hand their results to it over a channel, so no
// locks guard the aggregation state.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync/atomic"
	"time"

	"github.com/jpalmerr/mcdash/internal/merge"
	"github.com/jpalmerr/mcdash/internal/mode"
	"github.com/jpalmerr/mcdash/internal/poller"
	"github.com/jpalmerr/mcdash/internal/remoteconfig"
	"github.com/jpalmerr/mcdash/internal/source"
	"github.com/jpalmerr/mcdash/internal/status"
	"github.com/jpalmerr/mcdash/internal/store"
)

// DefaultConfigInterval is how often /config is refreshed.
const DefaultConfigInterval = 5 * time.Second

// configKey is the scheduler key of the configuration timer. Source names
// may not use it.
const configKey = "config"

var (
	// ErrAlreadyRunning is returned when Run is called more than once.
	ErrAlreadyRunning = errors.New("controller already running")

	// ErrNotRunning is returned by SetPreferExternal outside Run.
	ErrNotRunning = errors.New("controller not running")
)

// State is the controller lifecycle state.
type State int32

const (
	Uninitialized State = iota
	ConfigLoading
	Polling
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case ConfigLoading:
		return "config_loading"
	case Polling:
		return "polling"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Poller is a source the controller schedules.
type Poller interface {
	Name() string
	Role() source.Role
	Poll(ctx context.Context, m mode.Mode) status.Result
}

// Config wires a [Controller].
type Config struct {
	// Configs supplies the remote configuration. Required.
	Configs *remoteconfig.Store

	// Sources holds exactly one primary and any number of secondaries.
	Sources []Poller

	// Store receives every published snapshot. Required.
	Store store.Store

	// Toggle parameterizes the merge.
	Toggle merge.Toggle

	// ConfigInterval is the /config refresh cadence. Zero means
	// DefaultConfigInterval.
	ConfigInterval time.Duration

	// OnPublish, if set, is called on the controller goroutine after every
	// publish. It must not block.
	OnPublish func(store.Snapshot)

	Logger *slog.Logger
}

// event is what timer goroutines send to the controller loop.
type event struct {
	// configuration refresh
	config  *remoteconfig.Configuration
	change  remoteconfig.Change
	loadErr error

	// status result
	epoch  uint64
	result status.Result
	role   source.Role

	// presentation toggle
	preferExternal *bool
}

// Controller reconciles configuration and source results into snapshots.
type Controller struct {
	configs        *remoteconfig.Store
	primary        Poller
	secondaries    []Poller
	store          store.Store
	toggle         merge.Toggle
	configInterval time.Duration
	onPublish      func(store.Snapshot)
	logger         *slog.Logger

	sched  *poller.Scheduler
	events chan event
	done   chan struct{}
	state  atomic.Int32

	// owned by the Run goroutine
	cfg            remoteconfig.Configuration
	mode           mode.Mode
	epoch          uint64
	primaryResult  status.Result
	primarySettled bool
	secondary      map[string]status.Result
	sources        map[string]store.SourceStatus
	loading        bool
	lastErr        *status.Error
}

// New validates cfg and creates a [Controller].
func New(cfg Config) (*Controller, error) {
	if cfg.Configs == nil {
		return nil, errors.New("config store is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("snapshot store is required")
	}

	c := &Controller{
		configs:        cfg.Configs,
		store:          cfg.Store,
		toggle:         cfg.Toggle,
		configInterval: cfg.ConfigInterval,
		onPublish:      cfg.OnPublish,
		logger:         cfg.Logger,
		events:         make(chan event),
		done:           make(chan struct{}),
		secondary:      make(map[string]status.Result),
		sources:        make(map[string]store.SourceStatus),
		loading:        true,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.configInterval <= 0 {
		c.configInterval = DefaultConfigInterval
	}

	seen := make(map[string]bool, len(cfg.Sources))
	for _, src := range cfg.Sources {
		name := src.Name()
		if name == configKey {
			return nil, fmt.Errorf("source name %q is reserved", configKey)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate source name: %q", name)
		}
		seen[name] = true

		if src.Role() == source.Primary {
			if c.primary != nil {
				return nil, fmt.Errorf("more than one primary source: %q and %q", c.primary.Name(), name)
			}
			c.primary = src
			continue
		}
		c.secondaries = append(c.secondaries, src)
	}
	if c.primary == nil {
		return nil, errors.New("a primary source is required")
	}

	c.sched = poller.NewScheduler(c.logger)
	return c, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Run starts the configuration timer and processes events until ctx is
// cancelled. On return every timer has stopped and nothing further is
// published.
func (c *Controller) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(Uninitialized), int32(ConfigLoading)) {
		return ErrAlreadyRunning
	}
	defer c.teardown()

	if ctx.Err() != nil {
		return nil
	}

	if err := c.sched.Schedule(configKey, c.configInterval, c.refreshConfig); err != nil {
		return fmt.Errorf("scheduling config refresh: %w", err)
	}
	c.logger.Info("aggregation started",
		"primary", c.primary.Name(),
		"secondaries", len(c.secondaries),
		"config_interval", c.configInterval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			// select picks randomly when both are ready
			if ctx.Err() != nil {
				return nil
			}
			switch {
			case ev.config != nil:
				c.handleConfig(ev)
			case ev.preferExternal != nil:
				c.handleToggle(*ev.preferExternal)
			default:
				c.handleResult(ev)
			}
		}
	}
}

func (c *Controller) teardown() {
	c.sched.Stop()
	c.state.Store(int32(Stopped))
	close(c.done)
	c.logger.Info("aggregation stopped")
}

// send delivers ev unless the timer's context is cancelled first.
func (c *Controller) send(ctx context.Context, ev event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

// SetPreferExternal flips whether secondaries may override the primary
// record. The view is re-merged and republished from the results already
// held; no source is polled again.
func (c *Controller) SetPreferExternal(ctx context.Context, prefer bool) error {
	switch c.State() {
	case ConfigLoading, Polling:
	default:
		return ErrNotRunning
	}
	select {
	case c.events <- event{preferExternal: &prefer}:
		return nil
	case <-c.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshConfig is the configuration timer action.
func (c *Controller) refreshConfig(ctx context.Context) {
	cfg, change, err := c.configs.Refresh(ctx)
	if ctx.Err() != nil {
		return
	}
	c.send(ctx, event{config: &cfg, change: change, loadErr: err})
}

// pollAction binds a source to the mode and epoch it was scheduled under.
func (c *Controller) pollAction(src Poller, m mode.Mode, epoch uint64) poller.Action {
	return func(ctx context.Context) {
		res := src.Poll(ctx, m)
		if ctx.Err() != nil {
			// replaced or stopped mid-fetch
			return
		}
		c.send(ctx, event{epoch: epoch, result: res, role: src.Role()})
	}
}

func (c *Controller) handleConfig(ev event) {
	first := c.State() == ConfigLoading
	c.cfg = *ev.config

	if !first && !ev.change.Any() {
		return
	}

	if first || ev.change.Reschedule() {
		modeChanged := !first && c.mode != c.cfg.Mode()
		c.mode = c.cfg.Mode()
		c.epoch++
		if modeChanged {
			// old-mode results must not merge into the new mode's view
			c.primaryResult = status.Result{}
			c.primarySettled = false
			clear(c.secondary)
		}
		if err := c.scheduleSources(); err != nil {
			c.logger.Error("failed to schedule sources", "error", err)
			return
		}
		c.state.Store(int32(Polling))
	}

	if !first && !c.primarySettled {
		// the last published view stands until the new mode's primary settles
		return
	}
	c.publish()
}

func (c *Controller) handleToggle(prefer bool) {
	if c.toggle.PreferExternal == prefer {
		return
	}
	c.toggle.PreferExternal = prefer
	c.logger.Info("presentation toggle changed", "prefer_external", prefer)

	if c.primarySettled {
		c.publish()
	}
}

func (c *Controller) scheduleSources() error {
	interval := c.cfg.PollingInterval
	for _, src := range append([]Poller{c.primary}, c.secondaries...) {
		if err := c.sched.Schedule(src.Name(), interval, c.pollAction(src, c.mode, c.epoch)); err != nil {
			return fmt.Errorf("scheduling %q: %w", src.Name(), err)
		}
	}
	c.logger.Info("status polling scheduled",
		"mode", c.mode.String(),
		"interval", interval.String(),
		"epoch", c.epoch,
	)
	return nil
}

func (c *Controller) handleResult(ev event) {
	res := ev.result
	if ev.epoch != c.epoch {
		c.logger.Debug("discarding stale result", "source", res.Source, "epoch", ev.epoch, "current_epoch", c.epoch)
		return
	}
	c.sources[res.Source] = store.SourceStatusOf(res)

	if res.Outcome == status.Failed {
		c.logger.Warn("source poll failed",
			"source", res.Source,
			"kind", string(res.Err.Kind),
			"error", res.Err.Err,
		)
	}

	if ev.role == source.Primary {
		c.primaryResult = res
		c.primarySettled = true
		c.loading = false
		switch res.Outcome {
		case status.Failed:
			c.lastErr = res.Err
		case status.Succeeded:
			c.lastErr = nil
		}
		c.publish()
		return
	}

	c.secondary[res.Source] = res
	if c.primarySettled {
		c.publish()
	}
}

func (c *Controller) publish() {
	var view merge.View
	if c.primarySettled {
		view = merge.Merge(c.primaryResult, c.secondary, c.toggle)
	}

	snap := c.store.Publish(store.Snapshot{
		View:           view,
		Loading:        c.loading,
		Error:          c.lastErr,
		Mode:           c.mode,
		Config:         c.cfg,
		PreferExternal: c.toggle.PreferExternal,
		Sources:        maps.Clone(c.sources),
	})

	if c.onPublish != nil {
		c.onPublish(snap)
	}
}
