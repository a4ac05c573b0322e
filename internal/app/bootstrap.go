// Package app is the single initialization phase of the process. It brings
// up the database, the debug inspector and the shared HTTP client, in that
// order, and hands the resulting handles to callers explicitly.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mtlprog/chatboot/internal/database"
	"github.com/mtlprog/chatboot/internal/httpclient"
	"github.com/mtlprog/chatboot/internal/inspector"
)

// ErrAlreadyBootstrapped is returned when Run is called more than once.
var ErrAlreadyBootstrapped = errors.New("application already bootstrapped")

// DatabaseInitializer establishes the database handle from its configuration.
type DatabaseInitializer interface {
	Init(ctx context.Context, cfg database.Config) (*database.DB, error)
}

// InspectorInitializer activates the debug inspector.
type InspectorInitializer interface {
	Initialize(ctx context.Context, cfg inspector.Config) (*inspector.Inspector, error)
}

// ClientAccessor returns the shared HTTP client, constructing it on first use.
type ClientAccessor interface {
	Client() *httpclient.Client
}

// InspectorSettings are the runtime knobs of the debug inspector.
type InspectorSettings struct {
	Addr        string
	Token       string
	HistorySize int
}

// Config is everything Run needs besides its collaborators.
type Config struct {
	Database  database.Config
	Inspector InspectorSettings
}

// Deps are the collaborators Run drives.
type Deps struct {
	Database   DatabaseInitializer
	Inspector  InspectorInitializer
	HTTPClient ClientAccessor
}

// DefaultDeps wires the production initializers.
func DefaultDeps(dataDir string, httpCfg httpclient.Config, userAgent string) Deps {
	return Deps{
		Database:   database.Initializer{DataDir: dataDir},
		Inspector:  inspector.Initializer{},
		HTTPClient: httpclient.NewProvider(httpCfg, httpclient.UserAgent(userAgent)),
	}
}

// Bootstrap runs the initialization sequence once.
type Bootstrap struct {
	cfg  Config
	deps Deps
	ran  atomic.Bool
}

// New creates a Bootstrap.
func New(cfg Config, deps Deps) *Bootstrap {
	return &Bootstrap{cfg: cfg, deps: deps}
}

// Run initializes the database, activates the inspector, and appends the
// inspector's network interceptor to the shared HTTP client. A failure in
// any step releases what was already initialized and is returned; callers
// are expected to abort startup.
func (b *Bootstrap) Run(ctx context.Context) (*Application, error) {
	if !b.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyBootstrapped
	}
	started := time.Now()

	db, err := b.deps.Database.Init(ctx, b.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	slog.Info("database initialized",
		"driver", b.cfg.Database.Driver(),
		"version", b.cfg.Database.Version,
		"log_level", b.cfg.Database.LogLevel.String(),
	)

	ins, err := b.deps.Inspector.Initialize(ctx, inspector.Config{
		Addr:             b.cfg.Inspector.Addr,
		Token:            b.cfg.Inspector.Token,
		HistorySize:      b.cfg.Inspector.HistorySize,
		Env:              inspector.Env{DB: db},
		DumperPlugins:    inspector.DefaultDumperPlugins,
		InspectorModules: inspector.DefaultInspectorModules,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize inspector: %w", err)
	}

	client := b.deps.HTTPClient.Client()
	client.AddNetworkInterceptor(ins.Interceptor())

	slog.Info("bootstrap completed",
		"inspector_addr", ins.Addr(),
		"network_interceptors", len(client.NetworkInterceptors()),
		"duration", time.Since(started),
	)

	return &Application{
		DB:         db,
		Inspector:  ins,
		HTTPClient: client,
	}, nil
}
