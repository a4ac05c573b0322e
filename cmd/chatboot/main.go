package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mtlprog/chatboot/internal/app"
	"github.com/mtlprog/chatboot/internal/buildinfo"
	"github.com/mtlprog/chatboot/internal/config"
	"github.com/mtlprog/chatboot/internal/database"
	"github.com/mtlprog/chatboot/internal/httpclient"
	"github.com/mtlprog/chatboot/internal/logger"
	"github.com/mtlprog/chatboot/internal/service"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "chatboot",
		Usage:   "Rocket.Chat client bootstrap with a local debug inspector",
		Version: buildinfo.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Value:   config.DefaultDataDir,
				Usage:   "Directory for file-backed databases",
				EnvVars: []string{"DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "database-name",
				Aliases: []string{"d"},
				Value:   config.DefaultDatabaseName,
				Usage:   "SQLite file name or PostgreSQL URL",
				EnvVars: []string{"DATABASE_NAME"},
			},
			&cli.StringFlag{
				Name:    "database-log-level",
				Value:   config.DefaultDatabaseLogLevel,
				Usage:   "Database log level (none, basic, full)",
				EnvVars: []string{"DATABASE_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "inspector-addr",
				Usage:   "Debug inspector listen address (default " + config.DefaultInspectorAddr + " for serve, ephemeral otherwise)",
				EnvVars: []string{"INSPECTOR_ADDR"},
			},
			&cli.StringFlag{
				Name:    "inspector-token",
				Usage:   "Bearer token required by the debug inspector",
				EnvVars: []string{"INSPECTOR_TOKEN"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Initialize and keep the debug inspector running until interrupted",
				Action: runServe,
			},
			{
				Name:  "server-info",
				Usage: "Check a server's version and remember it",
				Flags: []cli.Flag{serverFlag(true)},
				Action: func(c *cli.Context) error {
					return withApplication(c, runServerInfo)
				},
			},
			{
				Name:  "servers",
				Usage: "List checked servers",
				Action: func(c *cli.Context) error {
					return withApplication(c, runServers)
				},
			},
			{
				Name:  "login",
				Usage: "Log in to a server and store the account and token",
				Flags: []cli.Flag{
					serverFlag(true),
					&cli.StringFlag{
						Name:    "username",
						Aliases: []string{"u"},
						Usage:   "Username or email",
					},
					&cli.StringFlag{
						Name:    "password",
						Usage:   "Password",
						EnvVars: []string{"ROCKETCHAT_PASSWORD"},
					},
					&cli.BoolFlag{
						Name:  "ldap",
						Usage: "Authenticate via LDAP even if the server does not advertise it",
					},
					&cli.StringFlag{
						Name:  "cas-token",
						Usage: "CAS credential token; replaces username and password",
					},
					&cli.StringFlag{
						Name:  "oauth-token",
						Usage: "OAuth credential token; replaces username and password",
					},
					&cli.StringFlag{
						Name:    "oauth-secret",
						Usage:   "OAuth credential secret",
						EnvVars: []string{"ROCKETCHAT_OAUTH_SECRET"},
					},
				},
				Action: func(c *cli.Context) error {
					return withApplication(c, runLogin)
				},
			},
			{
				Name:  "whoami",
				Usage: "Verify the stored session (current server unless --server is given)",
				Flags: []cli.Flag{serverFlag(false)},
				Action: func(c *cli.Context) error {
					return withApplication(c, runWhoami)
				},
			},
			{
				Name:  "logout",
				Usage: "Revoke and forget the stored session (current server unless --server is given)",
				Flags: []cli.Flag{serverFlag(false)},
				Action: func(c *cli.Context) error {
					return withApplication(c, runLogout)
				},
			},
			{
				Name:  "accounts",
				Usage: "List stored accounts",
				Action: func(c *cli.Context) error {
					return withApplication(c, runAccounts)
				},
			},
		},
		Action: runServe,
	}
}

func serverFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "server",
		Aliases:  []string{"s"},
		Value:    config.DefaultServerURL,
		Usage:    "Rocket.Chat server URL",
		EnvVars:  []string{"ROCKETCHAT_SERVER"},
		Required: required,
	}
}

// inspectorAddr keeps the well-known port for serve and gives one-shot
// commands an ephemeral one unless an address was set explicitly.
func inspectorAddr(flagValue string, serve bool) string {
	switch {
	case flagValue != "":
		return flagValue
	case serve:
		return config.DefaultInspectorAddr
	default:
		return config.CommandInspectorAddr
	}
}

// bootstrap runs the initialization phase. Nothing else touches the database
// or the HTTP client before it returns.
func bootstrap(c *cli.Context, serve bool) (*app.Application, error) {
	logLevel, err := database.ParseLogLevel(c.String("database-log-level"))
	if err != nil {
		return nil, err
	}

	cfg := app.Config{
		Database: database.Config{
			Name:     c.String("database-name"),
			Version:  config.DefaultDatabaseVersion,
			LogLevel: logLevel,
		},
		Inspector: app.InspectorSettings{
			Addr:        inspectorAddr(c.String("inspector-addr"), serve),
			Token:       c.String("inspector-token"),
			HistorySize: config.DefaultInspectorHistory,
		},
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = config.HTTPTimeout

	deps := app.DefaultDeps(c.String("data-dir"), httpCfg, buildinfo.UserAgent())

	return app.New(cfg, deps).Run(c.Context)
}

func withApplication(c *cli.Context, fn func(*cli.Context, *app.Application) error) error {
	application, err := bootstrap(c, false)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer closeApplication(application)

	return fn(c, application)
}

func closeApplication(application *app.Application) {
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := application.Close(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}

func runServe(c *cli.Context) error {
	application, err := bootstrap(c, true)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer closeApplication(application)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	slog.Info("ready", "inspector_addr", "http://"+application.Inspector.Addr())

	select {
	case <-done:
		slog.Info("shutting down")
	case <-c.Context.Done():
	}

	return nil
}

func runServerInfo(c *cli.Context, application *app.Application) error {
	check, err := application.ServerService().Check(c.Context, c.String("server"))
	if err != nil {
		return fmt.Errorf("check server: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "%s\t%s\t%s (required %s, recommended %s)\n",
		check.Server.URL, check.Server.Version, check.Status, check.Required.Full, check.Recommended.Full)
	if check.PreviousVersion != "" && check.PreviousVersion != check.Server.Version {
		fmt.Fprintf(c.App.Writer, "previously %s\n", check.PreviousVersion)
	}
	return nil
}

func runServers(c *cli.Context, application *app.Application) error {
	servers, err := application.ServerService().Servers(c.Context)
	if err != nil {
		return fmt.Errorf("list servers: %w", err)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVER\tVERSION\tCHECKED")
	for _, s := range servers {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.URL, s.Version, s.CheckedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func runLogin(c *cli.Context, application *app.Application) error {
	account, err := application.LoginService().Login(c.Context, service.LoginRequest{
		Server:          c.String("server"),
		UsernameOrEmail: c.String("username"),
		Password:        c.String("password"),
		LDAP:            c.Bool("ldap"),
		CASToken:        c.String("cas-token"),
		OAuthToken:      c.String("oauth-token"),
		OAuthSecret:     c.String("oauth-secret"),
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "logged in as %s on %s\n", account.Username, account.ServerURL)
	return nil
}

func runWhoami(c *cli.Context, application *app.Application) error {
	account, err := application.LoginService().Whoami(c.Context, c.String("server"))
	if err != nil {
		return fmt.Errorf("whoami: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "%s on %s\n", account.Username, account.ServerURL)
	return nil
}

func runLogout(c *cli.Context, application *app.Application) error {
	if err := application.LoginService().Logout(c.Context, c.String("server")); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	fmt.Fprintln(c.App.Writer, "logged out")
	return nil
}

func runAccounts(c *cli.Context, application *app.Application) error {
	accounts, err := application.LoginService().Accounts(c.Context)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVER\tUSERNAME\tAVATAR")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.ServerURL, a.Username, a.AvatarURL)
	}
	return tw.Flush()
}
