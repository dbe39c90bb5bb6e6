package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/getmockd/qiufen/pkg/config"
	"github.com/getmockd/qiufen/pkg/logging"
	"github.com/getmockd/qiufen/pkg/mockgen"
	"github.com/getmockd/qiufen/pkg/operation"
	"github.com/getmockd/qiufen/pkg/schema"
)

// Routes served next to the GraphQL path.
const (
	OperationsPath = "/__qiufen/operations"
	HealthPath     = "/__qiufen/health"
	MetricsPath    = "/__qiufen/metrics"
)

// DefaultShutdownTimeout bounds Stop when the caller's context has no
// deadline.
const DefaultShutdownTimeout = 5 * time.Second

// State is the lifecycle state of a Server.
type State int

// Server states.
const (
	StateStopped State = iota
	StateStarting
	StateListening
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	}
	return "stopped"
}

// Server is one mock server instance bound to one address.
type Server struct {
	log *slog.Logger

	mu         sync.RWMutex
	state      State
	listener   net.Listener
	httpServer *http.Server
	exec       *Executor
	subs       *SubscriptionHandler
	metrics    *metrics
	startedAt  time.Time
	done       chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a stopped server.
func New(opts ...Option) *Server {
	s := &Server{log: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Addr returns the bound address, or "" when not listening.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Executor returns the executor of the running instance, or nil.
func (s *Server) Executor() *Executor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exec
}

// Start builds the generator from cfg, binds cfg's address and serves in
// the background. The schema and catalog are shared read-only by every
// request until Stop.
func (s *Server) Start(cfg *config.Config, sch *schema.Schema, cat *operation.Catalog) (err error) {
	if cfg == nil {
		return errors.New("server: nil config")
	}
	if sch == nil {
		return errors.New("server: nil schema")
	}

	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.state = StateStarting
	s.mu.Unlock()

	defer func() {
		if err != nil {
			s.mu.Lock()
			s.state = StateStopped
			s.mu.Unlock()
		}
	}()

	addr := cfg.Addr()
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &AddressInvalidError{Addr: addr, Reason: "port must be between 1 and 65535"}
	}

	opts, err := cfg.GeneratorOptions()
	if err != nil {
		return err
	}
	opts = append(opts, mockgen.WithLogger(s.log))
	gen := mockgen.New(sch, opts...)
	s.warnUnknownOverrides(cfg, sch)

	exec, err := NewExecutor(gen, cat, s.log)
	if err != nil {
		return err
	}

	m := newMetrics()
	subs := NewSubscriptionHandler(exec, StreamConfig{
		Events:   cfg.Subscription.Events,
		Interval: cfg.Subscription.IntervalDuration(),
	}, m, s.log)

	path := cfg.Path
	if path == "" {
		path = config.DefaultPath
	}
	mux := http.NewServeMux()
	mux.Handle(path, NewHandler(exec, subs, m, s.log))
	mux.HandleFunc(OperationsPath, s.handleOperations)
	mux.HandleFunc(HealthPath, s.handleHealth)
	mux.Handle(MetricsPath, m.handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if isAddrInUse(err) {
			return &PortInUseError{Addr: addr, Err: err}
		}
		return &AddressInvalidError{Addr: addr, Reason: err.Error()}
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan struct{})

	s.mu.Lock()
	s.listener = ln
	s.httpServer = srv
	s.exec = exec
	s.subs = subs
	s.metrics = m
	s.startedAt = time.Now()
	s.done = done
	s.state = StateListening
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("mock server stopped unexpectedly", "addr", ln.Addr().String(), "error", err)
		}
	}()

	s.log.Info("mock server listening",
		"addr", ln.Addr().String(),
		"path", path,
		"types", len(sch.TypeNames()),
		"operations", exec.Catalog().Len(),
	)
	return nil
}

// Stop shuts the server down and releases the port. Stopping a stopped
// server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		return nil
	}
	srv, subs, done := s.httpServer, s.subs, s.done
	s.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultShutdownTimeout)
		defer cancel()
	}

	// Hijacked WebSocket connections are not tracked by Shutdown.
	subs.CloseAll("server shutting down")
	err := srv.Shutdown(ctx)
	if err != nil {
		_ = srv.Close()
	}
	<-done

	s.mu.Lock()
	s.state = StateStopped
	s.listener = nil
	s.httpServer = nil
	s.exec = nil
	s.subs = nil
	s.metrics = nil
	s.done = nil
	s.mu.Unlock()

	s.log.Info("mock server stopped")
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	exec := s.Executor()
	if exec == nil {
		http.Error(w, "server not running", http.StatusServiceUnavailable)
		return
	}
	setCORSHeaders(w)
	writeJSON(w, exec.Catalog().Entries())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	state, started := s.state, s.startedAt
	var conns int
	if s.subs != nil {
		conns = s.subs.ConnectionCount()
	}
	s.mu.RUnlock()

	writeJSON(w, map[string]interface{}{
		"status":        state.String(),
		"uptime":        time.Since(started).Round(time.Second).String(),
		"subscriptions": conns,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// warnUnknownOverrides logs override keys that name no schema type or
// field. They are kept; they simply never match.
func (s *Server) warnUnknownOverrides(cfg *config.Config, sch *schema.Schema) {
	keys := make([]string, 0, len(cfg.Overrides))
	for k := range cfg.Overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		typeName, fieldName, hasField := strings.Cut(key, ".")
		if sch.Type(typeName) == nil && !schema.IsBuiltinScalar(typeName) {
			s.log.Warn("override references unknown type", "key", key)
			continue
		}
		if hasField && sch.Field(typeName, fieldName) == nil {
			s.log.Warn("override references unknown field", "key", key)
		}
	}
}
