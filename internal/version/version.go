// Package version carries build metadata injected with -ldflags:
//
//	go build -ldflags "-X github.com/banshee-data/gimbal/internal/version.Version=1.2.0"
package version

import "fmt"

var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String describes the running binary, e.g. "gimbal v1.2.0 (abc123, built 2024-05-01)".
func String(app string) string {
	return fmt.Sprintf("%s v%s (%s, built %s)", app, Version, GitSHA, BuildTime)
}
