package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/ffdebug/internal/profile"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FFDEBUG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("debugger.host", cfg.Debugger.Host)
	v.SetDefault("debugger.port", cfg.Debugger.Port)
	v.SetDefault("debugger.dial_timeout_seconds", cfg.Debugger.DialTimeoutSeconds)
	v.SetDefault("debugger.request_timeout_seconds", cfg.Debugger.RequestTimeoutSeconds)
	v.SetDefault("dap.addr", cfg.DAP.Addr)
	v.SetDefault("browser.runtime_executable", cfg.Browser.RuntimeExecutable)
	v.SetDefault("browser.args", cfg.Browser.Args)
	v.SetDefault("browser.profile_dir", cfg.Browser.ProfileDir)
	v.SetDefault("browser.profile_skel", cfg.Browser.ProfileSkel)
	v.SetDefault("browser.profile_prefs", cfg.Browser.ProfilePrefs)
	v.SetDefault("sources.ignore", cfg.Sources.Ignore)
	v.SetDefault("logging.protocol_trace", cfg.Logging.ProtocolTrace)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else if !v.IsSet("config_version") {
		return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
	}
	if v.GetInt("config_version") != CurrentConfigVersion {
		return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Debugger.Port <= 0 || cfg.Debugger.Port > 65535 {
		return fmt.Errorf("debugger.port %d out of range", cfg.Debugger.Port)
	}
	if cfg.Debugger.DialTimeoutSeconds < 0 {
		return fmt.Errorf("debugger.dial_timeout_seconds must not be negative")
	}
	if cfg.Debugger.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("debugger.request_timeout_seconds must not be negative")
	}
	if _, err := profile.ParsePrefs(cfg.Browser.ProfilePrefs); err != nil {
		return fmt.Errorf("browser.profile_prefs: %w", err)
	}
	for _, pattern := range cfg.Sources.Ignore {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("sources.ignore pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Browser.RuntimeExecutable = expandEnv(cfg.Browser.RuntimeExecutable)
	cfg.Browser.ProfileDir = expandEnv(cfg.Browser.ProfileDir)
	cfg.Browser.ProfileSkel = expandEnv(cfg.Browser.ProfileSkel)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
