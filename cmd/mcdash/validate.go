package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/mcdash/internal/merge"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an mcdash configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  mcdash validate -c mcdash.yaml
  MCDASH_CONFIG=/etc/mcdash/mcdash.yaml mcdash validate`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	v, err := settings(cmd)
	if err != nil {
		return err
	}
	if v.GetString("config") == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// validated by Parse
	fields, _ := merge.ParseFieldSet(cfg.Merge.Fields)
	prefer := cfg.Merge.PreferExternal == nil || *cfg.Merge.PreferExternal

	names := make([]string, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		names = append(names, fmt.Sprintf("%s (%s, %s)", s.Name, s.Path, s.Shape))
	}
	secondaries := "none"
	if len(names) > 0 {
		secondaries = strings.Join(names, ", ")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Upstream:        %s\n", cfg.Upstream.BaseURL)
	fmt.Fprintf(out, "  Port:            %d\n", cfg.Port)
	fmt.Fprintf(out, "  Config interval: %s\n", cfg.ConfigInterval.Duration())
	fmt.Fprintf(out, "  Primary:         %s (%s, %s)\n", cfg.Primary.Name, cfg.Primary.Path, cfg.Primary.Shape)
	fmt.Fprintf(out, "  Secondaries:     %s\n", secondaries)
	fmt.Fprintf(out, "  Merge:           prefer_external=%t fields=%s\n", prefer, fields)

	return nil
}
