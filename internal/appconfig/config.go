package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/ffdebug/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	Debugger      DebuggerConfig `mapstructure:"debugger" yaml:"debugger"`
	DAP           DAPConfig      `mapstructure:"dap" yaml:"dap"`
	Browser       BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Sources       SourcesConfig  `mapstructure:"sources" yaml:"sources"`
	Logging       LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// DebuggerConfig locates the browser's remote-debugging server.
type DebuggerConfig struct {
	Host                  string `mapstructure:"host" yaml:"host"`
	Port                  int    `mapstructure:"port" yaml:"port"`
	DialTimeoutSeconds    int    `mapstructure:"dial_timeout_seconds" yaml:"dial_timeout_seconds"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// DAPConfig configures the editor-facing adapter.
type DAPConfig struct {
	// Addr is the TCP listen address used by `dap --listen` when no address
	// is given on the command line.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// BrowserConfig configures a browser spawned by the adapter.
type BrowserConfig struct {
	RuntimeExecutable string   `mapstructure:"runtime_executable" yaml:"runtime_executable"`
	Args              []string `mapstructure:"args" yaml:"args"`
	ProfileDir        string   `mapstructure:"profile_dir" yaml:"profile_dir"`
	ProfileSkel       string   `mapstructure:"profile_skel" yaml:"profile_skel"`
	// ProfilePrefs are extra user.js prefs as name=value.
	ProfilePrefs []string `mapstructure:"profile_prefs" yaml:"profile_prefs"`
}

// SourcesConfig filters the sources the browser reports.
type SourcesConfig struct {
	Ignore []string `mapstructure:"ignore" yaml:"ignore"`
}

// LoggingConfig controls diagnostics.
type LoggingConfig struct {
	// ProtocolTrace mirrors protocol diagnostics to the editor console.
	ProtocolTrace bool `mapstructure:"protocol_trace" yaml:"protocol_trace"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Debugger: DebuggerConfig{
			Host:                  schema.DefaultHost,
			Port:                  schema.DefaultPort,
			DialTimeoutSeconds:    int(schema.DefaultDialTimeout / time.Second),
			RequestTimeoutSeconds: 0,
		},
		DAP: DAPConfig{
			Addr: "127.0.0.1:4711",
		},
		Browser: BrowserConfig{
			RuntimeExecutable: "",
			Args:              []string{},
			ProfileDir:        "",
			ProfileSkel:       "",
			ProfilePrefs:      []string{},
		},
		Sources: SourcesConfig{
			Ignore: []string{},
		},
		Logging: LoggingConfig{
			ProtocolTrace: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ffdebug", "config.yaml"), nil
}

// LaunchDefaults returns the launch settings editors may leave unset.
func (c Config) LaunchDefaults() schema.LaunchConfig {
	return schema.LaunchConfig{
		RuntimeExecutable: c.Browser.RuntimeExecutable,
		RuntimeArgs:       append([]string(nil), c.Browser.Args...),
		Host:              c.Debugger.Host,
		Port:              c.Debugger.Port,
		ProfileDir:        c.Browser.ProfileDir,
		ProfileSkel:       c.Browser.ProfileSkel,
		ProfilePrefs:      append([]string(nil), c.Browser.ProfilePrefs...),
		IgnoreSources:     append([]string(nil), c.Sources.Ignore...),
		LogEnabled:        c.Logging.ProtocolTrace,
		DialTimeout:       time.Duration(c.Debugger.DialTimeoutSeconds) * time.Second,
	}
}

// RequestTimeout bounds editor requests; zero means no bound.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Debugger.RequestTimeoutSeconds) * time.Second
}
