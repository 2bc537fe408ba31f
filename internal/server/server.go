package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jpalmerr/mcdash/internal/remoteconfig"
	"github.com/jpalmerr/mcdash/internal/store"
)

const (
	// sseWriteTimeout bounds one snapshot write to a stream client.
	// Must not exceed shutdownTimeout.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	// placeholders in index.html replaced with the configured titles
	pageTitlePlaceholder   = "{{.PageTitle}}"
	headerTitlePlaceholder = "{{.HeaderTitle}}"
)

// Server exposes published snapshots over HTTP:
//
//   - GET /: the embedded dashboard page, titled from the upstream config
//   - GET /api/view: the latest snapshot as JSON
//   - GET /api/sse: a Server-Sent Events stream of snapshots
//   - GET /healthz: liveness, independent of upstream health
//   - POST /api/toggle: flips the presentation toggle, when a [Toggler] is set
//
// It shuts down when the context given to [Server.Start] is cancelled.
type Server struct {
	store      store.Store
	port       int
	httpServer *http.Server
	assets     fs.FS
	toggler    Toggler
	logger     *slog.Logger
}

// Toggler switches whether secondary sources may override the primary
// record. The change shows up in the next published snapshot.
type Toggler interface {
	SetPreferExternal(ctx context.Context, prefer bool) error
}

// Option configures a [Server].
type Option func(*Server)

// WithToggler routes POST /api/toggle to t.
func WithToggler(t Toggler) Option {
	return func(s *Server) {
		s.toggler = t
	}
}

// NewServer returns a [Server] reading snapshots from st. assets may be nil,
// in which case / is not routed.
func NewServer(st store.Store, port int, assets fs.FS, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		store:  st,
		port:   port,
		assets: assets,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/view", s.handleView)
	mux.HandleFunc("/api/sse", s.handleSSE)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.toggler != nil {
		mux.HandleFunc("/api/toggle", s.handleToggle)
	}

	if s.assets != nil {
		mux.HandleFunc("/", s.handleDashboard)
	}
	return mux
}

// Start binds the port and serves in the background. It returns once the
// listener is open, or the bind error. Cancelling ctx drains open streams
// and shuts the server down within shutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so SSE handlers exit on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// current returns the latest snapshot, or a loading placeholder carrying
// the default configuration before the first publish.
func (s *Server) current() store.Snapshot {
	if snap, ok := s.store.Current(); ok {
		return snap
	}
	return store.Snapshot{Loading: true, Config: remoteconfig.Defaults()}
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// titles come from upstream config; escape them before templating
	cfg := s.current().Config
	rendered := strings.NewReplacer(
		pageTitlePlaceholder, html.EscapeString(orDefault(cfg.PageTitle)),
		headerTitlePlaceholder, html.EscapeString(orDefault(cfg.HeaderTitle)),
	).Replace(string(content))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

func orDefault(title string) string {
	if title == "" {
		return remoteconfig.DefaultTitle
	}
	return title
}

// handleView returns the current snapshot as JSON.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(s.current()); err != nil {
		s.logger.Error("failed to encode view response", "error", err)
	}
}

// toggleRequest is the body of POST /api/toggle.
type toggleRequest struct {
	PreferExternal *bool `json:"prefer_external"`
}

// handleToggle applies {"prefer_external": bool}. It answers 202 since the
// new view arrives through /api/view and the stream.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil || req.PreferExternal == nil {
		http.Error(w, `body must be {"prefer_external": true|false}`, http.StatusBadRequest)
		return
	}

	if err := s.toggler.SetPreferExternal(r.Context(), *req.PreferExternal); err != nil {
		s.logger.Warn("failed to apply toggle", "error", err)
		http.Error(w, "toggle unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]bool{"prefer_external": *req.PreferExternal})
}

// handleHealth reports liveness. It does not depend on upstream health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// handleSSE writes the current snapshot, then every later one, as
// "data: <json>" events. Each write carries a deadline so a stalled client
// cannot pin the handler past shutdown.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// send the current snapshot first so clients render immediately
	initial := s.current()
	if data, err := json.Marshal(initial); err == nil {
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			// already sent as the initial snapshot
			if snap.Sequence != 0 && snap.Sequence <= initial.Sequence {
				continue
			}
			data, err := json.Marshal(snap)
			if err != nil {
				s.logger.Warn("failed to encode snapshot", "error", err)
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// client gone or server shutting down (BaseContext)
			return
		}
	}
}
