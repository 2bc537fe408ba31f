package config

import (
	"fmt"
	"sort"

	"github.com/jpalmerr/mcdash"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The returned options cover the upstream, sources, merge policy, port and
// config interval. Callers append their own (logger, callbacks) before
// passing them to [mcdash.New].
func BuildOptions(cfg *Config) ([]mcdash.Option, error) {
	opts := []mcdash.Option{
		mcdash.WithUpstream(cfg.Upstream.BaseURL),
		mcdash.WithPort(cfg.Port),
		mcdash.WithConfigInterval(cfg.ConfigInterval.Duration()),
	}

	if cfg.Upstream.Timeout != 0 {
		opts = append(opts, mcdash.WithRequestTimeout(cfg.Upstream.Timeout.Duration()))
	}
	if len(cfg.Upstream.Headers) > 0 {
		opts = append(opts, mcdash.WithHeaders(mapToKeyValuePairs(cfg.Upstream.Headers)...))
	}

	primary, err := buildSource(cfg.Primary)
	if err != nil {
		return nil, err
	}
	opts = append(opts, mcdash.WithPrimary(primary))

	for _, sc := range cfg.Sources {
		s, err := buildSource(sc)
		if err != nil {
			return nil, err
		}
		opts = append(opts, mcdash.WithSecondary(s))
	}

	if cfg.Merge.PreferExternal != nil {
		opts = append(opts, mcdash.WithPreferExternal(*cfg.Merge.PreferExternal))
	}
	if len(cfg.Merge.Fields) > 0 {
		opts = append(opts, mcdash.WithMergeFields(cfg.Merge.Fields...))
	}
	if len(cfg.Merge.Precedence) > 0 {
		opts = append(opts, mcdash.WithPrecedence(cfg.Merge.Precedence...))
	}

	return opts, nil
}

// buildSource converts a single SourceConfig to an SDK Source.
func buildSource(sc SourceConfig) (mcdash.Source, error) {
	var opts []mcdash.SourceOption

	if sc.Shape != "" {
		opts = append(opts, mcdash.WithShape(mcdash.Shape(sc.Shape)))
	}
	if sc.Timeout != 0 {
		opts = append(opts, mcdash.WithTimeout(sc.Timeout.Duration()))
	}

	s, err := mcdash.NewSource(sc.Name, sc.Path, opts...)
	if err != nil {
		return mcdash.Source{}, fmt.Errorf("building source: %w", err)
	}
	return s, nil
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
