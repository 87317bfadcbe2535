// Package version carries the build identity stamped into the binary.
package version

// Set via ldflags at build time, e.g.
// -ldflags "-X github.com/scholarsys/paperscout/pkg/version.version=v0.3.1"
//
//nolint:gochecknoglobals // ldflags injection targets
var (
	version = "dev"
	buildID = "dev"
)

// Version returns the release version.
func Version() string {
	return version
}

// BuildID returns the build identifier.
func BuildID() string {
	return buildID
}

// Full returns the version with its build ID.
func Full() string {
	return version + " (build: " + buildID + ")"
}
