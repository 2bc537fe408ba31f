package mcdash

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"github.com/jpalmerr/mcdash/internal/merge"
)

// dashConfig holds mutable state during Dashboard construction.
type dashConfig struct {
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
}

// Option configures a [Dashboard] during construction.
//
// Options return an error if validation fails; [New] reports the first one.
type Option func(*dashConfig) error

// WithUpstream sets the base URL of the dashboard backend serving /config
// and the status endpoints. Required.
//
// Example:
//
//	d, err := mcdash.New(mcdash.WithUpstream("http://backend:8000"))
//
// Returns an error unless the URL is absolute http or https.
func WithUpstream(baseURL string) Option {
	return func(cfg *dashConfig) error {
		u, err := url.Parse(baseURL)
		if err != nil {
			return fmt.Errorf("invalid upstream URL: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("upstream URL must be absolute http or https, got %q", baseURL)
		}
		cfg.upstream = baseURL
		return nil
	}
}

// WithHeaders adds HTTP headers sent with every upstream request.
//
// Accepts variadic key-value pairs. Returns an error if an odd number of
// arguments is provided.
func WithHeaders(keyValues ...string) Option {
	return func(cfg *dashConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		if cfg.headers == nil {
			cfg.headers = make(map[string]string, len(keyValues)/2)
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithRequestTimeout sets the default timeout of a single upstream request.
// It applies to fetches without a source timeout; a source [WithTimeout]
// replaces it, longer or shorter. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *dashConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithPrimary replaces the primary status source. Defaults to a source
// named "primary" reading /status in [ShapeStatus].
//
// The primary decides the view: when it fails the dashboard shows its
// error and no record.
func WithPrimary(s Source) Option {
	return func(cfg *dashConfig) error {
		cfg.primary = s
		return nil
	}
}

// WithSecondary adds a secondary status source.
//
// Secondary sources may override selected fields of the primary record
// (see [WithMergeFields]). Their failures never reach the view.
//
// Example:
//
//	ext, _ := mcdash.NewSource("mcsrvstat", "/status-mcsrvstat",
//	    mcdash.WithShape(mcdash.ShapeMCSrvStat))
//	d, err := mcdash.New(
//	    mcdash.WithUpstream(backend),
//	    mcdash.WithSecondary(ext),
//	)
func WithSecondary(s Source) Option {
	return func(cfg *dashConfig) error {
		cfg.secondaries = append(cfg.secondaries, s)
		return nil
	}
}

// WithConfigInterval sets how often /config is refreshed. Defaults to
// 5 seconds. The status polling interval itself comes from /config.
//
// Returns an error if the duration is zero or negative.
func WithConfigInterval(d time.Duration) Option {
	return func(cfg *dashConfig) error {
		if d <= 0 {
			return errors.New("config interval must be positive")
		}
		cfg.configInterval = d
		return nil
	}
}

// WithPreferExternal enables or disables secondary overrides. Enabled by
// default; when disabled the view is the primary record as reported.
func WithPreferExternal(prefer bool) Option {
	return func(cfg *dashConfig) error {
		cfg.toggle.PreferExternal = prefer
		return nil
	}
}

// WithMergeFields selects which fields secondary sources may override.
//
// Valid names are "latency", "identity", "online", "players", "version",
// "motd", "software", "extra" and "all". Defaults to latency and identity.
//
// Returns an error for an unknown field name.
func WithMergeFields(fields ...string) Option {
	return func(cfg *dashConfig) error {
		fs, err := merge.ParseFieldSet(fields)
		if err != nil {
			return err
		}
		cfg.toggle.Fields = fs
		return nil
	}
}

// WithPrecedence orders secondary sources from lowest to highest priority.
// When several secondaries supply a field, the last successful one in this
// order wins. Secondaries not listed rank below every listed one.
//
// Defaults to "external", "mcsrvstat", "mcsrvstatus".
func WithPrecedence(names ...string) Option {
	return func(cfg *dashConfig) error {
		cfg.toggle.Precedence = slices.Clone(names)
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *dashConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *dashConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithViewCallback registers a function called with every published [View].
//
// Multiple callbacks run in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. They run on the goroutine that
// aggregates results, so a slow callback delays every later update.
// Panics are recovered and logged.
//
// Example:
//
//	d, err := mcdash.New(
//	    mcdash.WithUpstream(backend),
//	    mcdash.WithViewCallback(func(v mcdash.View) {
//	        if v.Error != nil {
//	            log.Printf("ALERT: %v", v.Error)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithViewCallback(cb func(View)) Option {
	return func(cfg *dashConfig) error {
		if cb == nil {
			return nil
		}
		cfg.viewCallbacks = append(cfg.viewCallbacks, cb)
		return nil
	}
}
