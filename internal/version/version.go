// Package version carries build metadata injected at link time.
package version

import "runtime"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies bob in outgoing HTTP requests.
func UserAgent() string {
	return "bob/" + Version
}

func String() string {
	return "bob " + Version + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}
