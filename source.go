package mcdash

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jpalmerr/mcdash/internal/source"
)

// Shape names the JSON layout a status source answers with.
type Shape string

const (
	// ShapeStatus is the layout served by the dashboard backend's /status
	// endpoint (flat players, version and motd groups).
	ShapeStatus Shape = Shape(source.ShapeStatus)

	// ShapeMCSrvStat is the mcsrvstat.us v3 layout (players.list, motd.clean
	// and motd.html line arrays, debug block).
	ShapeMCSrvStat Shape = Shape(source.ShapeMCSrvStat)
)

const (
	minSourceTimeout = 100 * time.Millisecond
	maxSourceTimeout = 2 * time.Minute
)

// Source is an immutable description of one status source on the upstream.
//
// Sources are created with [NewSource] and passed to [WithPrimary] or
// [WithSecondary]. Once created a Source cannot be modified.
type Source struct {
	name    string
	path    string
	shape   Shape
	timeout time.Duration
}

// SourceOption configures a [Source] during construction.
//
// Built-in options: [WithShape], [WithTimeout].
type SourceOption func(*Source) error

// WithShape selects the normalizer used for the source's responses.
// Defaults to [ShapeStatus].
//
// Returns an error for an unknown shape.
func WithShape(shape Shape) SourceOption {
	return func(s *Source) error {
		if _, err := source.NormalizerFor(source.Shape(shape)); err != nil {
			return err
		}
		s.shape = shape
		return nil
	}
}

// WithTimeout bounds a single fetch of this source.
//
// Without it the upstream request timeout applies (see [WithRequestTimeout]).
// Returns an error if the timeout is outside 100ms to 2m.
func WithTimeout(d time.Duration) SourceOption {
	return func(s *Source) error {
		if d < minSourceTimeout || d > maxSourceTimeout {
			return fmt.Errorf("source timeout must be between %v and %v, got %v", minSourceTimeout, maxSourceTimeout, d)
		}
		s.timeout = d
		return nil
	}
}

// NewSource creates a [Source] fetched from path on the upstream.
//
// The name identifies the source in logs, snapshots and merge precedence
// (see [WithPrecedence]). The path must start with "/".
//
// Example:
//
//	ext, err := mcdash.NewSource("mcsrvstat", "/status-mcsrvstat",
//	    mcdash.WithShape(mcdash.ShapeMCSrvStat),
//	    mcdash.WithTimeout(3*time.Second),
//	)
func NewSource(name, path string, opts ...SourceOption) (Source, error) {
	if strings.TrimSpace(name) == "" {
		return Source{}, errors.New("source name is required")
	}
	if !strings.HasPrefix(path, "/") {
		return Source{}, fmt.Errorf("source %q: path must start with \"/\", got %q", name, path)
	}

	s := Source{name: name, path: path, shape: ShapeStatus}
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return Source{}, fmt.Errorf("source %q: %w", name, err)
		}
	}
	return s, nil
}

// Name returns the source name.
func (s Source) Name() string { return s.name }

// Path returns the path fetched relative to the upstream base URL.
func (s Source) Path() string { return s.path }

// Shape returns the response layout.
func (s Source) Shape() Shape { return s.shape }

// Timeout returns the per-fetch timeout, or zero if unset.
func (s Source) Timeout() time.Duration { return s.timeout }

// spec converts s to the adapter description for the given role.
func (s Source) spec(role source.Role) source.Spec {
	return source.Spec{
		Name:    s.name,
		Path:    s.path,
		Shape:   source.Shape(s.shape),
		Role:    role,
		Timeout: s.timeout,
	}
}

// defaultPrimary mirrors the backend's /status endpoint.
func defaultPrimary() Source {
	return Source{name: "primary", path: "/status", shape: ShapeStatus}
}
