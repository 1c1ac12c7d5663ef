// Package version identifies the running adapter build. The same identity is
// reported to editors in the DAP initialize response and by `ffdebug version`.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const (
	name          = "ffdebug"
	defaultModule = "pkt.systems/ffdebug"
	unknown       = "v0.0.0-unknown"
)

// buildVersion is set via -ldflags "-X pkt.systems/ffdebug/internal/version.buildVersion=...".
var buildVersion = ""

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Build describes the adapter binary.
type Build struct {
	Version   string
	Module    string
	GoVersion string
	// Dirty marks a build from a modified checkout.
	Dirty bool
}

// Read collects the build identity. An ldflags version wins over module
// metadata, which wins over a pseudo-version derived from VCS stamps.
func Read() Build {
	b := Build{Version: unknown, Module: defaultModule, GoVersion: "unknown"}
	info, ok := readBuildInfo()
	if ok {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			b.Module = path
		}
		if info.GoVersion != "" {
			b.GoVersion = info.GoVersion
		}
	}
	switch {
	case strings.TrimSpace(buildVersion) != "":
		b.Version, b.Dirty = splitDirty(buildVersion)
	case ok && info.Main.Version != "" && info.Main.Version != "(devel)":
		b.Version, b.Dirty = splitDirty(info.Main.Version)
	case ok:
		if v, dirty := fromVCS(info.Settings); v != "" {
			b.Version, b.Dirty = v, dirty
		}
	}
	return b
}

// Current returns the adapter version without a dirty marker.
func Current() string {
	return Read().Version
}

// String renders the build as one line, e.g.
// "ffdebug v0.3.0+dirty (pkt.systems/ffdebug, go1.25.2)".
func (b Build) String() string {
	v := b.Version
	if b.Dirty {
		v += "+dirty"
	}
	return name + " " + v + " (" + b.Module + ", " + b.GoVersion + ")"
}

func splitDirty(v string) (string, bool) {
	v = strings.TrimSpace(v)
	clean := strings.TrimSuffix(v, "+dirty")
	return clean, clean != v
}

// fromVCS builds a Go pseudo-version from the vcs.* build settings.
func fromVCS(settings []debug.BuildSetting) (string, bool) {
	vcs := make(map[string]string, len(settings))
	for _, s := range settings {
		vcs[s.Key] = s.Value
	}
	rev, stamp := vcs["vcs.revision"], vcs["vcs.time"]
	if rev == "" || stamp == "" {
		return "", false
	}
	at, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return "", false
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return "v0.0.0-" + at.UTC().Format("20060102150405") + "-" + rev, vcs["vcs.modified"] == "true"
}
