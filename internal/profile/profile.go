// Package profile prepares browser profile directories that start the
// remote-debugging server without prompting.
package profile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"unicode"
)

// UserJS is the preference file the browser reads at startup.
const UserJS = "user.js"

// Pref is one user_pref line.
type Pref struct {
	Name  string
	Value string
}

// TemplateData supplies values for rendering user.js and skel templates.
type TemplateData struct {
	Port  int
	Prefs []Pref
}

const userJSTemplate = `// Generated by ffdebug.
user_pref("devtools.debugger.remote-enabled", true);
user_pref("devtools.chrome.enabled", true);
user_pref("devtools.debugger.prompt-connection", false);
user_pref("devtools.debugger.remote-port", {{ .Port }});
{{- range .Prefs }}
user_pref("{{ .Name }}", {{ .Value }});
{{- end }}
`

// ParsePrefs converts "name=value" entries into prefs. Booleans and integers
// are written bare; anything else becomes a quoted string.
func ParsePrefs(entries []string) ([]Pref, error) {
	out := make([]Pref, 0, len(entries))
	for _, entry := range entries {
		name, value, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("profile pref %q: expected name=value", entry)
		}
		if !validPrefName(name) {
			return nil, fmt.Errorf("profile pref %q: name must not contain quotes, backslashes, spaces or control characters", entry)
		}
		out = append(out, Pref{Name: name, Value: prefLiteral(strings.TrimSpace(value))})
	}
	return out, nil
}

// validPrefName reports whether name can sit inside user_pref("...") as is.
func validPrefName(name string) bool {
	for _, r := range name {
		if r == '"' || r == '\\' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func prefLiteral(value string) string {
	if value == "true" || value == "false" {
		return value
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return value
	}
	if unquoted, err := strconv.Unquote(value); err == nil {
		value = unquoted
	}
	return strconv.Quote(value)
}

// Ensure creates dir when absent, seeds it from skelDir and writes user.js.
// An existing directory is left untouched. It reports whether dir was created.
func Ensure(dir, skelDir string, data TemplateData) (bool, error) {
	if strings.TrimSpace(dir) == "" {
		return false, errors.New("profile directory is required")
	}
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("profile path is not a directory: %s", dir)
		}
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return false, err
	}
	if err := Populate(dir, skelDir, data); err != nil {
		return true, err
	}
	return true, nil
}

// Populate copies skelDir into dir and writes user.js.
func Populate(dir, skelDir string, data TemplateData) error {
	if err := CopySkel(skelDir, dir, data); err != nil {
		return err
	}
	rendered, err := renderTemplate(UserJS, []byte(userJSTemplate), data)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, UserJS), rendered, 0o600)
}

// CopySkel copies a skel directory into a destination, rendering .tmpl files.
func CopySkel(skelDir, destDir string, data TemplateData) error {
	if strings.TrimSpace(skelDir) == "" {
		return nil
	}
	info, err := os.Stat(skelDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return nil
	}
	return filepath.WalkDir(skelDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == skelDir {
			return nil
		}
		rel, err := filepath.Rel(skelDir, p)
		if err != nil {
			return err
		}
		if name := d.Name(); name == ".gitkeep" || name == ".keep" {
			return nil
		}
		target := filepath.Join(destDir, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o700)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
			return err
		}
		if strings.HasSuffix(target, ".tmpl") {
			raw, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			rendered, err := renderTemplate(p, raw, data)
			if err != nil {
				return err
			}
			return os.WriteFile(strings.TrimSuffix(target, ".tmpl"), rendered, 0o600)
		}
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()
		dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return err
		}
		if _, err := io.Copy(dst, src); err != nil {
			_ = dst.Close()
			return err
		}
		return dst.Close()
	})
}

func renderTemplate(name string, raw []byte, data TemplateData) ([]byte, error) {
	tpl, err := template.New(filepath.Base(name)).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf strings.Builder
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render template %s: %w", name, err)
	}
	return []byte(buf.String()), nil
}
