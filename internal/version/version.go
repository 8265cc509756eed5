// Package version exposes build metadata injected via ldflags:
//
//	go build -ldflags "-X github.com/tgrayson/streamtv/internal/version.Version=x.y.z \
//	                   -X github.com/tgrayson/streamtv/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/tgrayson/streamtv/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"fmt"
	"runtime"
)

// Injected at build time. Defaults cover plain `go build` runs.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// ApplicationName is the canonical name of this program.
const ApplicationName = "streamtv"

// Info is the structured form served by the version endpoint and the
// --json flag of the version command.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns the long one-line form with commit and build details.
func String() string {
	info := GetInfo()
	if shortCommit() != "" {
		return fmt.Sprintf("%s version %s (commit: %s, built: %s, %s, %s)",
			ApplicationName, info.Version, shortCommit(), info.Date, info.GoVersion, info.Platform)
	}
	return fmt.Sprintf("%s version %s (%s, %s)", ApplicationName, info.Version, info.GoVersion, info.Platform)
}

// Short returns the compact form used for --version and log fields.
func Short() string {
	if shortCommit() != "" {
		return fmt.Sprintf("%s %s (%s)", ApplicationName, Version, shortCommit())
	}
	return fmt.Sprintf("%s %s", ApplicationName, Version)
}

func shortCommit() string {
	if Commit == "unknown" || len(Commit) < 8 {
		return ""
	}
	return Commit[:8]
}
