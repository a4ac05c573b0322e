// Package buildinfo carries values stamped at link time with -ldflags "-X".
package buildinfo

import "fmt"

// Link-time values. Local builds keep the placeholders.
var (
	// Version is the release tag, also used in the User-Agent.
	Version = "dev"
	// Commit is the VCS revision the binary was built from.
	Commit = "none"
	// Date is the build timestamp.
	Date = "unknown"
)

// String describes the build in one line.
func String() string {
	return fmt.Sprintf("chatboot %s (commit=%s, date=%s)", Version, Commit, Date)
}

// UserAgent is the User-Agent sent by the shared HTTP client.
func UserAgent() string {
	return "chatboot/" + Version
}
