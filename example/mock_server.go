package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// mockBackend plays the dashboard backend: /config, /status and
// /status-mcsrvstat. The primary toggles offline every 30-60 seconds so
// the dashboard shows both states.
type mockBackend struct {
	mu           sync.Mutex
	online       bool
	nextChangeAt time.Time
}

// StartMockBackend serves the mock backend on addr.
// Call this in a goroutine before starting the dashboard.
func StartMockBackend(addr string) {
	b := &mockBackend{
		online:       true,
		nextChangeAt: time.Now().Add(time.Duration(30+rand.Intn(31)) * time.Second),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"use_mock_data":    false,
			"simulate_offline": false,
			"polling_interval": 5000,
			"page_title":       "Survival",
			"header_title":     "Survival SMP",
			"server_address":   "play.example.net",
			"frontend_links": []map[string]string{
				{"title": "Map", "url": "https://map.example.net"},
			},
		})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		// simulate small latency variance
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

		if !b.isOnline() {
			http.Error(w, "server unreachable", http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]any{
			"online":  true,
			"latency": 40 + rand.Intn(30),
			"players": map[string]any{
				"online": 2,
				"max":    20,
				"sample": []map[string]string{
					{"name": "Steve", "id": "8667ba71-b85a-4004-af54-457a9734eed7"},
					{"name": "Alex", "id": "ec561538-f3fd-461d-aff5-086b22154bce"},
				},
			},
			"version": map[string]any{"name": "1.21.1", "protocol": 767},
			"motd":    map[string]string{"plain": "Welcome to Survival"},
		})
	})
	mux.HandleFunc("/status-mcsrvstat", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"online":   true,
			"ip":       "203.0.113.10",
			"port":     25565,
			"hostname": "play.example.net",
			"version":  "Paper 1.21.1",
			"protocol": map[string]any{"version": 767, "name": "1.21.1"},
			"players":  map[string]any{"online": 2, "max": 20},
			"motd":     map[string]any{"clean": []string{"Welcome to Survival"}},
		})
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock backend error", "error", err)
	}
}

// isOnline flips the primary state when its scheduled change is due.
func (b *mockBackend) isOnline() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if time.Now().After(b.nextChangeAt) {
		b.online = !b.online
		b.nextChangeAt = time.Now().Add(time.Duration(30+rand.Intn(31)) * time.Second)
		slog.Info("status change", "online", b.online)
	}
	return b.online
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
