// Standalone mock dashboard backend for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver -mode offline
//
// Then in another terminal:
//
//	go run ./cmd/mcdash serve -c example/config.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
)

func main() {
	addr := flag.String("addr", ":9999", "listen address")
	modeFlag := flag.String("mode", "live", "backend mode: live, mock or offline")
	flag.Parse()

	cfg := map[string]any{
		"polling_interval": 5000,
		"page_title":       "Survival",
		"header_title":     "Survival SMP",
		"server_address":   "play.example.net",
	}
	switch *modeFlag {
	case "live":
	case "mock":
		cfg["use_mock_data"] = true
	case "offline":
		cfg["simulate_offline"] = true
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *modeFlag)
		os.Exit(2)
	}

	fmt.Printf("Mock backend starting on %s (mode %s)\n", *addr, *modeFlag)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	http.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cfg)
	})
	http.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"online":  true,
			"latency": 55,
			"players": map[string]any{"online": 1, "max": 20, "sample": []map[string]string{{"name": "Steve"}}},
			"version": map[string]any{"name": "1.21.1", "protocol": 767},
			"motd":    map[string]string{"plain": "Welcome to Survival"},
		})
	})
	http.HandleFunc("/status-mcsrvstat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"online":   true,
			"hostname": "play.example.net",
			"players":  map[string]any{"online": 1, "max": 20},
		})
	})

	if err := http.ListenAndServe(*addr, nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
