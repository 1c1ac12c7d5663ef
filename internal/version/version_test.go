package version

import (
	"runtime/debug"
	"testing"
	"time"
)

func withBuildInfo(t *testing.T, info *debug.BuildInfo, ldflags string) {
	t.Helper()
	oldRead, oldVersion := readBuildInfo, buildVersion
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	buildVersion = ldflags
	t.Cleanup(func() { readBuildInfo, buildVersion = oldRead, oldVersion })
}

func TestReadPrefersLinkerVersion(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{
		GoVersion: "go1.25.2",
		Main:      debug.Module{Path: "pkt.systems/ffdebug", Version: "v0.9.0"},
	}, "v1.2.3+dirty")

	b := Read()
	if b.Version != "v1.2.3" || !b.Dirty {
		t.Fatalf("unexpected build %+v", b)
	}
	if got := Current(); got != "v1.2.3" {
		t.Fatalf("Current = %q", got)
	}
	if got, want := b.String(), "ffdebug v1.2.3+dirty (pkt.systems/ffdebug, go1.25.2)"; got != want {
		t.Fatalf("String = %q, want %q", got, want)
	}
}

func TestReadModuleVersion(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{
		GoVersion: "go1.25.2",
		Main:      debug.Module{Path: "example.com/fork", Version: "v0.4.1"},
	}, "")

	b := Read()
	if b.Version != "v0.4.1" || b.Dirty || b.Module != "example.com/fork" {
		t.Fatalf("unexpected build %+v", b)
	}
}

func TestReadPseudoVersionFromVCS(t *testing.T) {
	ts := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Path: "pkt.systems/ffdebug", Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "1234567890abcdef"},
			{Key: "vcs.time", Value: ts.Format(time.RFC3339)},
			{Key: "vcs.modified", Value: "true"},
		},
	}, "")

	b := Read()
	if want := "v0.0.0-20250102030405-1234567890ab"; b.Version != want || !b.Dirty {
		t.Fatalf("Read = %+v, want %s dirty", b, want)
	}
}

func TestReadWithoutBuildInfo(t *testing.T) {
	withBuildInfo(t, nil, "")
	b := Read()
	if b.Version != unknown || b.Module != defaultModule || b.GoVersion != "unknown" {
		t.Fatalf("unexpected fallback build %+v", b)
	}
}
