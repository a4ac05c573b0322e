package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Version is a distilled Rocket.Chat server version such as "0.65.0-rc.1".
type Version struct {
	Major   int
	Minor   int
	Update  int
	Release string
	Full    string
}

// ParseVersion splits "major.minor.update-release". Missing or non-numeric
// components read as zero, so ParseVersion never fails.
func ParseVersion(s string) Version {
	v := Version{Full: s}

	core, release, found := strings.Cut(strings.TrimSpace(s), "-")
	if found {
		v.Release = release
	}

	parts := strings.Split(core, ".")
	v.Major = versionPart(parts, 0)
	v.Minor = versionPart(parts, 1)
	v.Update = versionPart(parts, 2)

	return v
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return n
}

// AtLeast reports whether v is the same as or newer than min.
// The release suffix is ignored.
func (v Version) AtLeast(min Version) bool {
	if v.Major != min.Major {
		return v.Major > min.Major
	}
	if v.Minor != min.Minor {
		return v.Minor > min.Minor
	}
	return v.Update >= min.Update
}

// String returns the numeric form of the version.
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Update)
	if v.Release != "" {
		s += "-" + v.Release
	}
	return s
}

// VersionStatus classifies a server against the supported version range.
type VersionStatus string

const (
	VersionSupported   VersionStatus = "supported"
	VersionOutdated    VersionStatus = "outdated"
	VersionUnsupported VersionStatus = "unsupported"
)

// ClassifyVersion compares a server version with the required and recommended minimums.
func ClassifyVersion(v, required, recommended Version) VersionStatus {
	switch {
	case !v.AtLeast(required):
		return VersionUnsupported
	case !v.AtLeast(recommended):
		return VersionOutdated
	default:
		return VersionSupported
	}
}

// ServerInfo is what a server reports about itself.
type ServerInfo struct {
	URL     string
	Version Version
}

// Server is a known server as persisted locally.
type Server struct {
	URL       string
	Version   string
	CheckedAt time.Time
}

// ServerCheck is the outcome of checking a server's version.
type ServerCheck struct {
	Server          Server
	PreviousVersion string
	Status          VersionStatus
	Required        Version
	Recommended     Version
}
