// Package version carries the build identity, stamped at link time
// with -ldflags "-X".
package version

// A binary built without ldflags identifies as a dev build.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the version with its commit, for startup logs.
func String() string {
	return Version + " (" + Commit + ")"
}
