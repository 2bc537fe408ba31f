package mcdash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/mcdash/dashboard"
	"github.com/jpalmerr/mcdash/internal/aggregate"
	"github.com/jpalmerr/mcdash/internal/merge"
	"github.com/jpalmerr/mcdash/internal/poller"
	"github.com/jpalmerr/mcdash/internal/remoteconfig"
	"github.com/jpalmerr/mcdash/internal/server"
	"github.com/jpalmerr/mcdash/internal/source"
	"github.com/jpalmerr/mcdash/internal/store"
)

const (
	defaultPort           = 8080
	defaultRequestTimeout = 10 * time.Second

	// reservedName keys the configuration timer
	reservedName = "config"
)

// ErrNotRunning is returned by [Dashboard.SetPreferExternal] when the
// dashboard is not started.
var ErrNotRunning = errors.New("dashboard not running")

// Dashboard polls the upstream configuration and status sources, merges
// them into one view and serves it.
//
// A Dashboard is created with [New] and run with [Dashboard.Start]:
//
//	d, err := mcdash.New(mcdash.WithUpstream("http://backend:8000"))
//	if err != nil {
//	    slog.Error("failed to create dashboard", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	d.Start(ctx) // blocks until ctx is cancelled
type Dashboard struct {
	upstream       string
	headers        map[string]string
	requestTimeout time.Duration
	primary        Source
	secondaries    []Source
	configInterval time.Duration
	toggle         merge.Toggle
	port           int
	logger         *slog.Logger
	viewCallbacks  []func(View)

	// set while Start runs
	running atomic.Pointer[aggregate.Controller]
}

// New creates a [Dashboard] with the given options.
//
// [WithUpstream] is required. Other options default to:
//   - Primary source: "primary" at /status
//   - No secondary sources
//   - Config refresh: every 5 seconds
//   - Merge: prefer external latency and identity
//   - Port: 8080
//
// Returns an error if an option is invalid, the upstream is missing or two
// sources share a name.
func New(opts ...Option) (*Dashboard, error) {
	cfg := &dashConfig{
		requestTimeout: defaultRequestTimeout,
		primary:        defaultPrimary(),
		configInterval: aggregate.DefaultConfigInterval,
		toggle:         merge.DefaultToggle(),
		port:           defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.upstream == "" {
		return nil, errors.New("upstream URL is required")
	}
	if cfg.primary.name == "" {
		return nil, errors.New("primary source must be created with NewSource")
	}

	// names key the scheduler timers and merge precedence
	seen := map[string]bool{reservedName: true}
	if cfg.primary.name == reservedName {
		return nil, fmt.Errorf("source name %q is reserved", reservedName)
	}
	seen[cfg.primary.name] = true
	for _, s := range cfg.secondaries {
		if s.name == "" {
			return nil, errors.New("secondary source must be created with NewSource")
		}
		if s.name == reservedName {
			return nil, fmt.Errorf("source name %q is reserved", reservedName)
		}
		if seen[s.name] {
			return nil, fmt.Errorf("duplicate source name: %q", s.name)
		}
		seen[s.name] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dashboard{
		upstream:       cfg.upstream,
		headers:        cfg.headers,
		requestTimeout: cfg.requestTimeout,
		primary:        cfg.primary,
		secondaries:    cfg.secondaries,
		configInterval: cfg.configInterval,
		toggle:         cfg.toggle,
		port:           cfg.port,
		logger:         logger,
		viewCallbacks:  cfg.viewCallbacks,
	}, nil
}

// Start begins polling and serving the dashboard.
//
// Start blocks until ctx is cancelled. While running:
//
//   - /config is fetched immediately, then every config interval
//   - status sources are polled at the interval /config specifies, in the
//     mode it selects (live, mock or offline)
//   - every merged view is published to the HTTP API, SSE clients and
//     registered callbacks
//   - the dashboard is available at http://localhost:<port>
//
// Returns nil on graceful shutdown, or an error if the HTTP server cannot
// start.
func (d *Dashboard) Start(ctx context.Context) error {
	d.logger.Info("mcdash starting",
		"upstream", d.upstream,
		"primary", d.primary.path,
		"secondaries", len(d.secondaries),
	)
	d.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", d.port))

	if ctx.Err() != nil {
		return nil
	}

	client, err := poller.NewClient(d.upstream,
		poller.WithHeaders(d.headers),
		poller.WithRequestTimeout(d.requestTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create upstream client: %w", err)
	}
	defer client.Close()

	pollers, err := d.adapters(client)
	if err != nil {
		return err
	}

	snapshots := store.NewMemoryStore()
	ctrl, err := aggregate.New(aggregate.Config{
		Configs:        remoteconfig.NewStore(client, d.logger),
		Sources:        pollers,
		Store:          snapshots,
		Toggle:         d.toggle,
		ConfigInterval: d.configInterval,
		OnPublish:      d.dispatch,
		Logger:         d.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ctrl.Run(runCtx); err != nil {
			d.logger.Error("aggregation failed", "error", err)
		}
	}()

	d.running.Store(ctrl)

	// Run returns only after every timer has stopped
	cleanup := func() {
		d.running.CompareAndSwap(ctrl, nil)
		stop()
		wg.Wait()
	}

	httpServer := server.NewServer(snapshots, d.port, dashboard.Assets, d.logger,
		server.WithToggler(ctrl),
	)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	cleanup()
	d.logger.Info("mcdash stopped")
	return nil
}

// SetPreferExternal switches secondary overrides on or off while the
// dashboard runs, like the dashboard page's Internal/External switch. The
// current results are re-merged and published at once.
func (d *Dashboard) SetPreferExternal(ctx context.Context, prefer bool) error {
	ctrl := d.running.Load()
	if ctrl == nil {
		return ErrNotRunning
	}
	if err := ctrl.SetPreferExternal(ctx, prefer); err != nil {
		if errors.Is(err, aggregate.ErrNotRunning) {
			return ErrNotRunning
		}
		return err
	}
	return nil
}

// adapters builds one source adapter per configured source.
func (d *Dashboard) adapters(client *poller.Client) ([]aggregate.Poller, error) {
	specs := make([]source.Spec, 0, 1+len(d.secondaries))
	specs = append(specs, d.primary.spec(source.Primary))
	for _, s := range d.secondaries {
		specs = append(specs, s.spec(source.Secondary))
	}

	pollers := make([]aggregate.Poller, 0, len(specs))
	for _, spec := range specs {
		a, err := source.New(spec, client, source.WithLogger(d.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create source %q: %w", spec.Name, err)
		}
		pollers = append(pollers, a)
	}
	return pollers, nil
}

// dispatch hands a published snapshot to the view callbacks.
func (d *Dashboard) dispatch(snap store.Snapshot) {
	for _, cb := range d.viewCallbacks {
		// each callback gets its own copy
		invokeCallbackSafe(cb, viewOf(snap), d.logger)
	}
}

// Upstream returns the configured upstream base URL.
func (d *Dashboard) Upstream() string {
	return d.upstream
}

// Sources returns the primary source followed by the secondaries.
//
// The returned slice is a copy; each [Source] is immutable.
func (d *Dashboard) Sources() []Source {
	return append([]Source{d.primary}, d.secondaries...)
}

// Headers returns a copy of the headers sent upstream.
func (d *Dashboard) Headers() map[string]string {
	return maps.Clone(d.headers)
}

// Precedence returns the secondary precedence order, lowest first.
func (d *Dashboard) Precedence() []string {
	if d.toggle.Precedence == nil {
		return slices.Clone(merge.DefaultPrecedence)
	}
	return slices.Clone(d.toggle.Precedence)
}

// Port returns the configured HTTP port for the dashboard server.
func (d *Dashboard) Port() int {
	return d.port
}

// ConfigInterval returns how often /config is refreshed.
func (d *Dashboard) ConfigInterval() time.Duration {
	return d.configInterval
}

// invokeCallbackSafe calls a view callback with panic recovery.
// Panics are logged with a correlation id and do not propagate.
func invokeCallbackSafe(cb func(View), v View, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("view callback panicked",
				"panic", r,
				"sequence", v.Sequence,
				"correlation_id", uuid.NewString(),
			)
		}
	}()
	cb(v)
}
