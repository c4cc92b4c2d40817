// Package version holds build information.
package version

// Version is the build version, set with -ldflags "-X .../internal/version.Version=vX.Y.Z".
var Version = "v0.1.0-dev"

// BuildTime is the build timestamp, set with -ldflags.
var BuildTime = "unknown"

// String returns "Version (BuildTime)".
func String() string {
	return Version + " (" + BuildTime + ")"
}
