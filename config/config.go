// Package config provides YAML configuration parsing for mcdash.
//
// This package enables running mcdash as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//	config_interval: 5s
//
//	upstream:
//	  base_url: ${MCDASH_BACKEND:-http://localhost:8000}
//	  timeout: 10s
//	  headers:
//	    Authorization: Bearer ${BACKEND_TOKEN}
//
//	primary:
//	  path: /status
//
//	sources:
//	  - /status-mcsrvstat
//	  - name: external
//	    path: /status-external
//	    shape: status
//	    timeout: 3s
//
//	merge:
//	  prefer_external: true
//	  fields: [latency, identity]
//	  precedence: [external, mcsrvstat]
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/mcdash/internal/merge"
)

// Defaults applied by [Parse].
const (
	DefaultPort           = 8080
	DefaultConfigInterval = 5 * time.Second
	DefaultPrimaryPath    = "/status"
)

// Shape names accepted for a source.
const (
	ShapeStatus    = "status"
	ShapeMCSrvStat = "mcsrvstat"
)

// minConfigInterval keeps a misconfigured file from hammering /config.
const minConfigInterval = 1 * time.Second

// Config is the root configuration structure for mcdash.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// ConfigInterval is how often the upstream /config is refreshed.
	// The status polling interval itself comes from /config.
	// Defaults to 5s.
	ConfigInterval Duration `yaml:"config_interval"`

	// Upstream is the dashboard backend. Required.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Primary is the status source that decides the view.
	// Defaults to /status in the status shape.
	Primary SourceConfig `yaml:"primary"`

	// Sources are optional secondary status sources.
	Sources []SourceConfig `yaml:"sources"`

	// Merge controls how secondary sources override the primary record.
	Merge MergeConfig `yaml:"merge"`
}

// UpstreamConfig locates the dashboard backend.
type UpstreamConfig struct {
	// BaseURL is the backend root, e.g. http://backend:8000.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	BaseURL string `yaml:"base_url"`

	// Timeout is the default per-request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Headers are sent with every upstream request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`
}

// SourceConfig describes one status source.
//
// It supports two formats in YAML:
//
// Shorthand path, with name and shape derived from it:
//
//	sources:
//	  - /status-mcsrvstat      # name "mcsrvstat", shape "mcsrvstat"
//	  - /status-external       # name "external", shape "status"
//
// Structured object:
//
//	sources:
//	  - name: external
//	    path: /status-external
//	    shape: status
//	    timeout: 3s
type SourceConfig struct {
	Name    string
	Path    string
	Shape   string
	Timeout Duration
}

// UnmarshalYAML implements yaml.Unmarshaler for SourceConfig.
func (s *SourceConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var path string
		if err := node.Decode(&path); err != nil {
			return err
		}
		s.Path = strings.TrimSpace(path)
		return nil
	case yaml.MappingNode:
		// temporary struct to avoid infinite recursion
		var raw struct {
			Name    string   `yaml:"name"`
			Path    string   `yaml:"path"`
			Shape   string   `yaml:"shape"`
			Timeout Duration `yaml:"timeout"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		*s = SourceConfig{Name: raw.Name, Path: raw.Path, Shape: raw.Shape, Timeout: raw.Timeout}
		return nil
	}
	return fmt.Errorf("source must be a path or object, got %v", node.Kind)
}

// derive fills the name and shape a shorthand path implies.
func (s *SourceConfig) derive() {
	if s.Name == "" {
		name := strings.Trim(s.Path, "/")
		name = strings.TrimPrefix(name, "status-")
		s.Name = strings.ReplaceAll(name, "/", "-")
	}
	if s.Shape == "" {
		if s.Name == ShapeMCSrvStat {
			s.Shape = ShapeMCSrvStat
		} else {
			s.Shape = ShapeStatus
		}
	}
}

// MergeConfig mirrors the merge options of the SDK.
type MergeConfig struct {
	// PreferExternal enables secondary overrides. Defaults to true.
	PreferExternal *bool `yaml:"prefer_external"`

	// Fields secondaries may override. Defaults to latency and identity.
	Fields []string `yaml:"fields"`

	// Precedence orders secondaries from lowest to highest priority.
	Precedence []string `yaml:"precedence"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
// Group 1 is the name, group 2 the ":-default" suffix, group 3 the default.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		sub := envVarPattern.FindStringSubmatch(match)
		name := sub[1]
		hasDefault := sub[2] != ""

		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		if hasDefault {
			return sub[3]
		}
		firstErr = fmt.Errorf("environment variable %q is not set", name)
		return match
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the upstream base URL and header
// values. Defaults are applied for Port, ConfigInterval and the primary
// source.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ForUpstream returns a validated configuration with every default applied
// for the given backend. It backs running without a config file.
func ForUpstream(baseURL string) (*Config, error) {
	cfg := Config{Upstream: UpstreamConfig{BaseURL: baseURL}}
	cfg.applyDefaults()
	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ConfigInterval == 0 {
		c.ConfigInterval = Duration(DefaultConfigInterval)
	}
	if c.Primary.Path == "" {
		c.Primary.Path = DefaultPrimaryPath
	}
	if c.Primary.Name == "" {
		c.Primary.Name = "primary"
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.ConfigInterval.Duration() < minConfigInterval {
		return fmt.Errorf("config_interval must be at least %s, got %s", minConfigInterval, c.ConfigInterval.Duration())
	}

	if err := c.Upstream.expandAndValidate(); err != nil {
		return err
	}

	if err := validateSource(&c.Primary, "primary"); err != nil {
		return err
	}

	seen := map[string]bool{c.Primary.Name: true}
	for i := range c.Sources {
		s := &c.Sources[i]
		s.derive()
		if err := validateSource(s, fmt.Sprintf("sources[%d]", i)); err != nil {
			return err
		}
		if seen[s.Name] {
			return fmt.Errorf("sources[%d] (%s): duplicate source name", i, s.Name)
		}
		seen[s.Name] = true
	}

	if _, err := merge.ParseFieldSet(c.Merge.Fields); err != nil {
		return fmt.Errorf("merge.fields: %w", err)
	}

	return nil
}

func (u *UpstreamConfig) expandAndValidate() error {
	if u.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	expanded, err := expandEnvVars(u.BaseURL)
	if err != nil {
		return fmt.Errorf("upstream.base_url: %w", err)
	}
	u.BaseURL = expanded

	parsed, err := url.Parse(u.BaseURL)
	if err != nil {
		return fmt.Errorf("upstream.base_url: invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("upstream.base_url: scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("upstream.base_url: host is required")
	}

	for k, v := range u.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("upstream.headers[%s]: %w", k, err)
		}
		u.Headers[k] = expanded
	}

	if u.Timeout < 0 {
		return fmt.Errorf("upstream.timeout cannot be negative, got %s", u.Timeout.Duration())
	}
	return nil
}

// validateSource checks a source after defaults and derivation.
func validateSource(s *SourceConfig, context string) error {
	if s.Shape == "" {
		s.Shape = ShapeStatus
	}
	if s.Name == "" {
		return fmt.Errorf("%s: name is required", context)
	}
	if s.Name == "config" {
		return fmt.Errorf("%s: source name \"config\" is reserved", context)
	}
	if !strings.HasPrefix(s.Path, "/") {
		return fmt.Errorf("%s (%s): path must start with \"/\", got %q", context, s.Name, s.Path)
	}
	if s.Shape != ShapeStatus && s.Shape != ShapeMCSrvStat {
		return fmt.Errorf("%s (%s): unknown shape %q (expected %q or %q)", context, s.Name, s.Shape, ShapeStatus, ShapeMCSrvStat)
	}
	if s.Timeout != 0 {
		if d := s.Timeout.Duration(); d < 100*time.Millisecond || d > 2*time.Minute {
			return fmt.Errorf("%s (%s): timeout must be between 100ms and 2m, got %s", context, s.Name, d)
		}
	}
	return nil
}
