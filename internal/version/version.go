// Package version exposes the build metadata stamped into the binary.
package version

import (
	"fmt"
	"runtime"
)

// Stamped at link time via -ldflags; the zero build is "dev".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info is a point-in-time snapshot of the build metadata.
type Info struct {
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	Platform  string
}

// Get combines the stamped values with the toolchain and target platform.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string { return i.Version }

// Full renders every field on one line for the version command.
func (i Info) Full() string {
	return fmt.Sprintf("%s (%s) built %s %s %s",
		i.Version, i.Commit, i.BuildDate, i.GoVersion, i.Platform)
}
