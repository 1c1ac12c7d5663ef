package schema

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultPort is the browser's default remote-debugging port.
const DefaultPort = 9223

// DefaultHost is the interface the browser's debugger server listens on.
const DefaultHost = "127.0.0.1"

// DefaultDialTimeout bounds connection attempts to a starting browser.
const DefaultDialTimeout = 20 * time.Second

// LaunchConfig is the editor-supplied launch request.
type LaunchConfig struct {
	// Program is a local script/page path or a URL.
	Program     string `json:"program"`
	StopOnEntry bool   `json:"stopOnEntry,omitempty"`
	// WebRoot is the local directory served at the program URL's origin.
	WebRoot string `json:"webRoot,omitempty"`
	// RuntimeExecutable is the browser binary; when empty the session only attaches.
	RuntimeExecutable string   `json:"runtimeExecutable,omitempty"`
	RuntimeArgs       []string `json:"runtimeArgs,omitempty"`
	Host              string   `json:"host,omitempty"`
	Port              int      `json:"port,omitempty"`
	// ProfileDir is created when absent and primed with debugger prefs.
	ProfileDir string `json:"profileDir,omitempty"`
	// ProfileSkel seeds newly created profiles; .tmpl files are rendered.
	ProfileSkel   string        `json:"profileSkel,omitempty"`
	ProfilePrefs  []string      `json:"profilePrefs,omitempty"`
	IgnoreSources []string      `json:"ignoreSources,omitempty"`
	LogEnabled    bool          `json:"logEnabled,omitempty"`
	DialTimeout   time.Duration `json:"-"`
}

// NormalizeLaunchConfig fills unset fields from defaults and validates the result.
func NormalizeLaunchConfig(cfg LaunchConfig, defaults LaunchConfig) (LaunchConfig, error) {
	cfg.Program = strings.TrimSpace(cfg.Program)
	if cfg.Program == "" {
		return LaunchConfig{}, fmt.Errorf("%w: program is required", ErrConfiguration)
	}
	if cfg.RuntimeExecutable == "" {
		cfg.RuntimeExecutable = defaults.RuntimeExecutable
	}
	if len(cfg.RuntimeArgs) == 0 {
		cfg.RuntimeArgs = defaults.RuntimeArgs
	}
	if cfg.ProfileDir == "" {
		cfg.ProfileDir = defaults.ProfileDir
	}
	if cfg.ProfileSkel == "" {
		cfg.ProfileSkel = defaults.ProfileSkel
	}
	cfg.ProfilePrefs = append(append([]string(nil), defaults.ProfilePrefs...), cfg.ProfilePrefs...)
	cfg.IgnoreSources = append(append([]string(nil), defaults.IgnoreSources...), cfg.IgnoreSources...)
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaults.Port
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return LaunchConfig{}, fmt.Errorf("%w: port %d out of range", ErrConfiguration, cfg.Port)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	cfg.LogEnabled = cfg.LogEnabled || defaults.LogEnabled
	return cfg, nil
}

// Address returns the browser debugger server address.
func (c LaunchConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
