package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/steve/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/steve/internal/version.Commit=abc123
//	  -X github.com/soyeahso/steve/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("steve %s (commit: %s, built: %s, %s/%s)",
		Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// Fields returns the build metadata as a flat map for JSON responses.
func Fields() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  short(Commit),
		"built":   Date,
	}
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
