// Package source implements the per-upstream source adapters.
//
// An [Adapter] fetches one status document and normalizes its
// source-specific shape into a canonical [status.Record]. Depending on the
// active [mode.Mode] it may instead synthesize a mock record or report the
// canonical offline record without touching the network.
//
// Adapters never panic or return errors past Poll: every failure degrades
// to a [status.Failure] result.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/mcdash/internal/mode"
	"github.com/jpalmerr/mcdash/internal/status"
)

// Fetcher is the transport capability adapters depend on.
type Fetcher interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// Role distinguishes the primary source from secondaries. Only primary
// failures are surfaced to consumers.
type Role int

const (
	Primary Role = iota
	Secondary
)

func (r Role) String() string {
	if r == Primary {
		return "primary"
	}
	return "secondary"
}

// fetchKind maps a role to the error kind reported for transport failures.
func (r Role) fetchKind() status.ErrorKind {
	if r == Primary {
		return status.PrimaryStatusFetch
	}
	return status.SecondaryStatusFetch
}

// Spec describes one adapter.
type Spec struct {
	// Name identifies the source in results, logs and merge precedence.
	Name string

	// Path is fetched relative to the upstream base URL, e.g. "/status".
	// An empty path means the source is not configured and polls as skipped.
	Path string

	// Shape selects the normalizer, see [ShapeStatus] and [ShapeMCSrvStat].
	Shape Shape

	// Role marks the adapter as primary or secondary.
	Role Role

	// Timeout bounds a single live fetch. Zero leaves it to the fetcher.
	Timeout time.Duration
}

// Adapter polls a single upstream source.
//
// Adapter holds no per-poll state; concurrent Poll calls are safe.
type Adapter struct {
	spec      Spec
	fetcher   Fetcher
	normalize Normalizer
	latency   func() int
	logger    *slog.Logger
}

// Option configures an [Adapter].
type Option func(*Adapter)

// WithLatencySampler replaces the mock latency sampler. Used by tests to
// make mock records deterministic.
func WithLatencySampler(fn func() int) Option {
	return func(a *Adapter) {
		if fn != nil {
			a.latency = fn
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an [Adapter]. fetcher may be nil, in which case live polls
// report [status.Skipped].
//
// Returns an error if the name is empty or the shape is unknown.
func New(spec Spec, fetcher Fetcher, opts ...Option) (*Adapter, error) {
	if spec.Name == "" {
		return nil, errors.New("source name cannot be empty")
	}
	normalize, err := NormalizerFor(spec.Shape)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", spec.Name, err)
	}

	a := &Adapter{
		spec:      spec,
		fetcher:   fetcher,
		normalize: normalize,
		latency:   MockLatency,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name returns the source name.
func (a *Adapter) Name() string {
	return a.spec.Name
}

// Role returns whether the adapter is the primary source.
func (a *Adapter) Role() Role {
	return a.spec.Role
}

// Poll produces one result for the given mode.
//
// Offline and Mock return synchronously without I/O. Live fetches and
// normalizes; any failure, including a panic in the normalizer, becomes a
// [status.Failure].
func (a *Adapter) Poll(ctx context.Context, m mode.Mode) (result status.Result) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			a.logger.Error("source adapter panic",
				"correlation_id", correlationID,
				"source", a.spec.Name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			result = status.Failure(a.spec.Name, a.spec.Role.fetchKind(),
				fmt.Errorf("adapter panic (correlation_id: %s)", correlationID))
		}
	}()

	switch m {
	case mode.Offline:
		return status.Success(a.spec.Name, status.Offline())
	case mode.Mock:
		return status.Success(a.spec.Name, a.mockRecord())
	default:
		return a.pollLive(ctx)
	}
}

func (a *Adapter) pollLive(ctx context.Context) status.Result {
	if a.fetcher == nil || a.spec.Path == "" {
		return status.Skip(a.spec.Name)
	}

	if a.spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.spec.Timeout)
		defer cancel()
	}

	start := time.Now()
	body, err := a.fetcher.Get(ctx, a.spec.Path)
	if err != nil {
		return status.Failure(a.spec.Name, a.spec.Role.fetchKind(), err)
	}

	rec, err := a.normalize(body)
	if err != nil {
		return status.Failure(a.spec.Name, status.Decode, err)
	}

	a.logger.Debug("source polled",
		"source", a.spec.Name,
		"path", a.spec.Path,
		"online", rec.Online,
		"fetch_ms", time.Since(start).Milliseconds(),
	)
	return status.Success(a.spec.Name, rec)
}
