// Package version exposes the framework version for identification in
// outbound requests and telemetry.
package version

import "runtime/debug"

// Version is overridable at build time with -ldflags.
var Version = "dev"

const modulePath = "github.com/mardiros/aioli"

// Current returns the framework version: the build-time override if set,
// otherwise the module version recorded in the build info.
func Current() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			if dep.Path == modulePath && dep.Version != "" {
				return dep.Version
			}
		}
	}
	return Version
}

// UserAgent returns the default User-Agent value for outbound requests.
func UserAgent() string {
	return "aioli/" + Current()
}
