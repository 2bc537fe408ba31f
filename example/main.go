package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/mcdash"
)

func main() {
	// start mock backend (see mock_server.go)
	go StartMockBackend(":9999")
	time.Sleep(100 * time.Millisecond)

	mcsrvstat, err := mcdash.NewSource("mcsrvstat", "/status-mcsrvstat",
		mcdash.WithShape(mcdash.ShapeMCSrvStat),
		mcdash.WithTimeout(3*time.Second),
	)
	if err != nil {
		slog.Error("failed to create source", "error", err)
		os.Exit(1)
	}

	d, err := mcdash.New(
		mcdash.WithUpstream("http://localhost:9999"),
		mcdash.WithSecondary(mcsrvstat),
		mcdash.WithMergeFields("latency", "identity"),
		mcdash.WithPort(8080),
		mcdash.WithViewCallback(func(v mcdash.View) {
			if v.Error != nil {
				slog.Warn("view published", "sequence", v.Sequence, "error", v.Error.Error())
				return
			}
			if v.Record != nil {
				slog.Info("view published", "sequence", v.Sequence, "mode", v.Mode, "online", v.Record.Online)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create dashboard", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   mcdash Demo                                         ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Sources:                                            ║")
	fmt.Println("  ║   • /status (primary, goes offline now and then)      ║")
	fmt.Println("  ║   • /status-mcsrvstat (secondary)                     ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Start(ctx); err != nil {
		slog.Error("mcdash error", "error", err)
		os.Exit(1)
	}
}
