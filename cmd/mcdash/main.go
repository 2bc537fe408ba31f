// Package main is the entry point for the mcdash CLI.
//
// mcdash can be embedded as a library (SDK) or run as a standalone binary
// configured by a YAML file, flags and MCDASH_* environment variables.
//
// Usage:
//
//	mcdash serve -c mcdash.yaml                     # Start the dashboard
//	mcdash serve --upstream http://backend:8000     # Start without a config file
//	mcdash validate -c mcdash.yaml                  # Validate configuration
//	mcdash version                                  # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd only displays help; functionality lives in subcommands.
var rootCmd = &cobra.Command{
	Use:   "mcdash",
	Short: "A live status dashboard for a Minecraft server",
	Long: `mcdash is a live status dashboard for a Minecraft server.

It polls a dashboard backend's /config and status endpoints, merges the
primary status with optional secondary sources and serves the result as a
web page with Server-Sent Events for live updates.

Quick start:
  1. Run: mcdash serve --upstream http://localhost:8000
  2. Open http://localhost:8080 in your browser

Every flag can also be set through the environment, e.g. MCDASH_UPSTREAM,
MCDASH_PORT or MCDASH_LOG_LEVEL.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this mcdash binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "mcdash %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "json", "log format: json or text")

	rootCmd.AddCommand(versionCmd)
}
