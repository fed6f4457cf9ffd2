// Package version holds the application version, overridable at build time
// via -ldflags "-X .../internal/version.Version=v1.2.3".
package version

// Version is the current application version.
var Version = "dev"
