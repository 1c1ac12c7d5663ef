package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureWritesUserJS(t *testing.T) {
	temp := t.TempDir()
	dir := filepath.Join(temp, "profile")
	prefs, err := ParsePrefs([]string{"browser.shell.checkDefaultBrowser=false", "app.update.interval=0", "browser.startup.homepage=about:blank"})
	if err != nil {
		t.Fatalf("ParsePrefs: %v", err)
	}
	created, err := Ensure(dir, "", TemplateData{Port: 6001, Prefs: prefs})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !created {
		t.Fatalf("expected directory to be created")
	}
	raw, err := os.ReadFile(filepath.Join(dir, UserJS))
	if err != nil {
		t.Fatalf("read user.js: %v", err)
	}
	text := string(raw)
	for _, want := range []string{
		`user_pref("devtools.debugger.remote-enabled", true);`,
		`user_pref("devtools.chrome.enabled", true);`,
		`user_pref("devtools.debugger.prompt-connection", false);`,
		`user_pref("devtools.debugger.remote-port", 6001);`,
		`user_pref("browser.shell.checkDefaultBrowser", false);`,
		`user_pref("app.update.interval", 0);`,
		`user_pref("browser.startup.homepage", "about:blank");`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("user.js missing %q:\n%s", want, text)
		}
	}
}

func TestEnsureLeavesExistingProfile(t *testing.T) {
	dir := t.TempDir()
	created, err := Ensure(dir, "", TemplateData{Port: 6000})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if created {
		t.Fatalf("expected existing directory to be reused")
	}
	if _, err := os.Stat(filepath.Join(dir, UserJS)); !os.IsNotExist(err) {
		t.Fatalf("expected no user.js in existing profile, got %v", err)
	}
}

func TestEnsureCopiesSkel(t *testing.T) {
	temp := t.TempDir()
	skel := filepath.Join(temp, "skel")
	if err := os.MkdirAll(filepath.Join(skel, "chrome"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(skel, "chrome", "userChrome.css"), []byte("/* css */"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(skel, "port.txt.tmpl"), []byte("{{ .Port }}"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	dir := filepath.Join(temp, "profile")
	if _, err := Ensure(dir, skel, TemplateData{Port: 7000}); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "chrome", "userChrome.css")); err != nil {
		t.Fatalf("skel file: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "port.txt"))
	if err != nil || string(raw) != "7000" {
		t.Fatalf("rendered template = %q, %v", raw, err)
	}
}

func TestParsePrefsRejectsMalformed(t *testing.T) {
	for _, entry := range []string{"novalue", "=x", " = 1", `a"b=1`, "a\nb=1", `a\b=1`, "a b=1"} {
		if _, err := ParsePrefs([]string{entry}); err == nil {
			t.Fatalf("expected error for %q", entry)
		}
	}
}
