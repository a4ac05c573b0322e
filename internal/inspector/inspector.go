// Package inspector is a development-time debugging endpoint. It records
// outgoing HTTP traffic through a network interceptor and exposes dump
// plugins and inspector modules over a local HTTP server.
package inspector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mtlprog/chatboot/internal/database"
	"github.com/mtlprog/chatboot/internal/middleware"
)

const defaultHistorySize = 256

var (
	// ErrInvalidConfig is returned when a Config cannot build an Inspector.
	ErrInvalidConfig = errors.New("invalid inspector config")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("inspector already started")
)

// Env is what plugin and module providers can reach into.
// DB is supplied by the caller; Store and Registry are filled in by New.
type Env struct {
	DB       *database.DB
	Store    *Store
	Registry *prometheus.Registry
}

// Config configures the inspector.
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:8089".
	Addr string
	// Token, if set, is required as a Bearer token on every route but /healthz.
	Token string
	// HistorySize bounds the number of recorded exchanges.
	HistorySize int

	Env              Env
	DumperPlugins    DumperPluginsProvider
	InspectorModules InspectorModulesProvider
}

// Validate checks that the config can build an Inspector.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr is required", ErrInvalidConfig)
	}
	if c.DumperPlugins == nil {
		return fmt.Errorf("%w: dumper plugins provider is required", ErrInvalidConfig)
	}
	if c.InspectorModules == nil {
		return fmt.Errorf("%w: inspector modules provider is required", ErrInvalidConfig)
	}
	if c.HistorySize < 0 {
		return fmt.Errorf("%w: history size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Inspector holds the recorded traffic, the registered plugins and modules,
// and the HTTP server exposing them.
type Inspector struct {
	cfg         Config
	env         Env
	interceptor *NetworkInterceptor
	auth        *middleware.AuthMiddleware

	plugins map[string]DumperPlugin
	modules map[string]InspectorModule

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	serveErr chan error
}

// New builds an Inspector without listening.
func New(cfg Config) (*Inspector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	size := cfg.HistorySize
	if size == 0 {
		size = defaultHistorySize
	}
	store, err := NewStore(size)
	if err != nil {
		return nil, err
	}

	env := cfg.Env
	env.Store = store
	env.Registry = newRegistry()

	in := &Inspector{
		cfg: cfg,
		env: env,
		interceptor: &NetworkInterceptor{
			store:   store,
			metrics: newMetrics(env.Registry),
			now:     time.Now,
		},
		auth:    middleware.NewAuthMiddleware(cfg.Token),
		plugins: make(map[string]DumperPlugin),
		modules: make(map[string]InspectorModule),
	}

	for _, p := range cfg.DumperPlugins(env) {
		name := p.Name()
		if !validName(name) {
			return nil, fmt.Errorf("%w: invalid plugin name %q", ErrInvalidConfig, name)
		}
		if _, dup := in.plugins[name]; dup {
			return nil, fmt.Errorf("%w: duplicate plugin %q", ErrInvalidConfig, name)
		}
		in.plugins[name] = p
	}

	for _, m := range cfg.InspectorModules(env) {
		domain := m.Domain()
		if !validName(domain) {
			return nil, fmt.Errorf("%w: invalid module domain %q", ErrInvalidConfig, domain)
		}
		if _, dup := in.modules[domain]; dup {
			return nil, fmt.Errorf("%w: duplicate module %q", ErrInvalidConfig, domain)
		}
		in.modules[domain] = m
	}

	return in, nil
}

func validName(s string) bool {
	return s != "" && !strings.ContainsAny(s, "/ ?#")
}

// Interceptor returns the network interceptor feeding this inspector.
func (in *Inspector) Interceptor() *NetworkInterceptor {
	return in.interceptor
}

// Store returns the recorded traffic.
func (in *Inspector) Store() *Store {
	return in.env.Store
}

// Plugins returns the registered dump plugin names, sorted.
func (in *Inspector) Plugins() []string {
	return sortedKeys(in.plugins)
}

// Modules returns the registered inspector module domains, sorted.
func (in *Inspector) Modules() []string {
	return sortedKeys(in.modules)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Handler returns the inspector's HTTP routes.
func (in *Inspector) Handler() http.Handler {
	mux := http.NewServeMux()
	in.RegisterRoutes(mux)
	return mux
}

// Start binds the listen address and serves in the background.
// Bind errors are returned synchronously.
func (in *Inspector) Start(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.server != nil {
		return ErrAlreadyStarted
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", in.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", in.cfg.Addr, err)
	}

	in.listener = ln
	in.serveErr = make(chan error, 1)
	in.server = &http.Server{
		Handler:           in.Handler(),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv, errCh := in.server, in.serveErr
	go func() {
		slog.Info("starting inspector", "server_addr", "http://"+ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("inspector server error", "error", err)
			errCh <- err
		}
		close(errCh)
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (in *Inspector) Addr() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.listener != nil {
		return in.listener.Addr().String()
	}
	return in.cfg.Addr
}

// Shutdown stops the server. It is safe to call on a nil or unstarted Inspector.
func (in *Inspector) Shutdown(ctx context.Context) error {
	if in == nil {
		return nil
	}

	in.mu.Lock()
	server, serveErr := in.server, in.serveErr
	in.server, in.listener, in.serveErr = nil, nil, nil
	in.mu.Unlock()

	if server == nil {
		return nil
	}

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("inspector shutdown failed: %w", err)
	}
	if err := <-serveErr; err != nil {
		return fmt.Errorf("inspector server error: %w", err)
	}

	slog.Info("inspector stopped")
	return nil
}

// Initializer builds and starts an Inspector.
type Initializer struct{}

// Initialize builds an Inspector from cfg and starts serving it.
func (Initializer) Initialize(ctx context.Context, cfg Config) (*Inspector, error) {
	in, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := in.Start(ctx); err != nil {
		return nil, err
	}
	return in, nil
}
