package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jpalmerr/mcdash/config"
)

// envPrefix namespaces environment overrides, e.g. MCDASH_LOG_LEVEL.
const envPrefix = "MCDASH"

// settings resolves the command's flags, falling back to MCDASH_*
// environment variables for flags left unset.
func settings(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	return v, nil
}

// newLogger creates the CLI logger writing to w.
func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (expected json or text)", format)
	}
}

// loadConfig reads the config file named by --config, or builds one from
// --upstream when no file is given. --upstream and --port override the file.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	path := v.GetString("config")
	upstream := v.GetString("upstream")

	var cfg *config.Config
	var err error
	switch {
	case path != "":
		cfg, err = config.Load(path)
	case upstream != "":
		cfg, err = config.ForUpstream(upstream)
	default:
		return nil, fmt.Errorf("either --config or --upstream is required")
	}
	if err != nil {
		return nil, err
	}

	if upstream != "" {
		cfg.Upstream.BaseURL = upstream
	}
	if port := v.GetInt("port"); port != 0 {
		cfg.Port = port
	}
	return cfg, nil
}
