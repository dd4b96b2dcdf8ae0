package version

import "fmt"

// Set through -ldflags "-X price-frame-monitor/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// UserAgent identifies pricemon in outgoing HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("pricemon/%s", Version)
}

// String renders the build information printed by the version command.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s\n", Version, Commit, BuildDate)
}
