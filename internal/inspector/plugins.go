package inspector

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/mtlprog/chatboot/internal/buildinfo"
)

// DumperPlugin writes a plain-text report, like a command run against the live process.
type DumperPlugin interface {
	Name() string
	Dump(ctx context.Context, w io.Writer, args []string) error
}

// DumperPluginsProvider returns the dump plugins to expose.
type DumperPluginsProvider func(env Env) []DumperPlugin

// DefaultDumperPlugins exposes the database, network and build plugins.
func DefaultDumperPlugins(env Env) []DumperPlugin {
	plugins := []DumperPlugin{
		networkPlugin{store: env.Store},
		buildPlugin{},
	}
	if env.DB != nil {
		plugins = append([]DumperPlugin{databasePlugin{env: env}}, plugins...)
	}
	return plugins
}

type databasePlugin struct {
	env Env
}

func (databasePlugin) Name() string { return "database" }

func (p databasePlugin) Dump(ctx context.Context, w io.Writer, _ []string) error {
	db := p.env.DB
	cfg := db.Config()

	fmt.Fprintf(w, "driver:    %s\n", db.Driver())
	if db.Path() != "" {
		fmt.Fprintf(w, "path:      %s\n", db.Path())
	}
	fmt.Fprintf(w, "version:   %d\n", db.SchemaVersion())
	fmt.Fprintf(w, "log level: %s\n", cfg.LogLevel)

	tables, err := db.Tables(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	fmt.Fprintln(w, "tables:")
	for _, t := range tables {
		fmt.Fprintf(w, "  %s\n", t)
	}
	return nil
}

type networkPlugin struct {
	store *Store
}

func (networkPlugin) Name() string { return "network" }

// Dump lists recent exchanges. An optional first argument limits the count.
func (p networkPlugin) Dump(_ context.Context, w io.Writer, args []string) error {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid limit %q", args[0])
		}
		limit = n
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tMETHOD\tSTATUS\tDURATION\tURL")
	for _, e := range p.store.Recent(limit) {
		status := strconv.Itoa(e.Status)
		if e.Error != "" {
			status = "ERR"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.Format(time.RFC3339), e.Method, status, e.Duration.Round(time.Millisecond), e.URL)
	}
	return tw.Flush()
}

type buildPlugin struct{}

func (buildPlugin) Name() string { return "build" }

func (buildPlugin) Dump(_ context.Context, w io.Writer, _ []string) error {
	_, err := fmt.Fprintln(w, buildinfo.String())
	return err
}
