package config

import "time"

const (
	// DefaultDatabaseName is the local database file (or a postgres:// URL).
	DefaultDatabaseName = "rocketchat.db"

	// DefaultDatabaseVersion is the schema version the binary was built for.
	DefaultDatabaseVersion = 3

	// DefaultDatabaseLogLevel is the database log verbosity (none, basic, full).
	DefaultDatabaseLogLevel = "none"

	// DefaultDataDir is where file-backed databases are created.
	DefaultDataDir = "."

	// DefaultInspectorAddr is the listen address of the debug inspector for
	// the long-running serve command.
	// It binds to loopback only; the inspector exposes request history.
	DefaultInspectorAddr = "127.0.0.1:8089"

	// CommandInspectorAddr is used by one-shot commands so they can run
	// next to a serve process without fighting over its port.
	CommandInspectorAddr = "127.0.0.1:0"

	// DefaultInspectorHistory is the number of network exchanges kept in memory.
	DefaultInspectorHistory = 256

	// DefaultServerURL is empty; must be provided via flag or environment.
	DefaultServerURL = ""
)

const (
	// RequiredServerVersion is the oldest Rocket.Chat server we can talk to.
	RequiredServerVersion = "0.62.0"

	// RecommendedServerVersion is the oldest server without known issues.
	RecommendedServerVersion = "0.65.0"
)

const (
	// HTTPTimeout bounds a whole request including reading the body.
	HTTPTimeout = 30 * time.Second

	// ShutdownTimeout bounds graceful shutdown of the inspector.
	ShutdownTimeout = 10 * time.Second
)
