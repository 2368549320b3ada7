package cli

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// version is set with -ldflags "-X github.com/brimdata/edgeql/cli.version=...".
var version string

// Version reports the edgeql version followed by the VCS revision and the
// Go toolchain the binary was built with when the build info records them.
func Version() string {
	v, rev := version, ""
	if info, ok := debug.ReadBuildInfo(); ok {
		if v == "" {
			v = info.Main.Version
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 12 {
				rev = s.Value[:12]
			}
		}
	}
	if v == "" {
		v = "unknown"
	}
	if rev != "" {
		v = fmt.Sprintf("%s (%s)", v, rev)
	}
	return fmt.Sprintf("%s %s", v, runtime.Version())
}
