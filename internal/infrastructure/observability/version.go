package observability

import "fmt"

// Binary versioning for logs, /health and the version command.
// Values are overwritten via -ldflags during build.
var (
	Version = "dev"  // release version
	Commit  = "none" // short commit
	Date    = ""     // ISO8601 UTC build time
)

// VersionString renders all three build values on one line.
func VersionString() string {
	s := fmt.Sprintf("echohook %s (commit %s", Version, Commit)
	if Date != "" {
		s += ", built " + Date
	}
	return s + ")"
}
