// Package buildinfo holds version information injected at link time:
//
//	go build -ldflags "-X github.com/knitfamily/knit/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/knitfamily/knit/pkg/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	    -X github.com/knitfamily/knit/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/knit
package buildinfo

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the short git SHA.
	Commit = "none"
	// Date is the UTC build timestamp.
	Date = "unknown"
)

// Info is the JSON form served by the HTTP API.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// Get returns the build information of the running binary.
func Get() Info {
	return Info{Version: Version, Commit: Commit, Date: Date, GoVersion: runtime.Version()}
}

// Template returns the cobra version template.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s (%s, built %s)\n", Version, Commit, Date)
}
