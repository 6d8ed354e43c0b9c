package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix for all config keys.
const EnvPrefix = "ROOMCHAT"

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		// Config file is optional, only error if explicitly specified
		if l.configFile != "" {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Viper's Unmarshal doesn't properly merge env vars for nested structs.
	l.applyEnvOverrides(cfg)

	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// expandPaths expands ~ in all path-related config fields.
func expandPaths(cfg *Config) {
	cfg.Global.DataDir = expandTilde(cfg.Global.DataDir)
	cfg.Global.ConfigDir = expandTilde(cfg.Global.ConfigDir)
	cfg.Logging.File = expandTilde(cfg.Logging.File)
	cfg.Transcript.Path = expandTilde(cfg.Transcript.Path)
}

// setupViper configures Viper with defaults and environment bindings.
func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "roomchat"))
	}

	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "roomchat"))
	}

	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.setDefaults(cfg)

	// Explicitly bind environment variables (Viper's Unmarshal has issues without this)
	bindEnvVars(v)

	v.AutomaticEnv()
}

// setDefaults sets all default values in Viper.
func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	v.SetDefault("global.data_dir", cfg.Global.DataDir)
	v.SetDefault("global.config_dir", cfg.Global.ConfigDir)

	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.history_path", cfg.API.HistoryPath)
	v.SetDefault("api.live_base_url", cfg.API.LiveBaseURL)
	v.SetDefault("api.live_path", cfg.API.LivePath)
	v.SetDefault("api.request_timeout", cfg.API.RequestTimeout)
	v.SetDefault("api.handshake_timeout", cfg.API.HandshakeTimeout)
	v.SetDefault("api.authenticate_channel", cfg.API.AuthenticateChannel)

	v.SetDefault("identity.name", cfg.Identity.Name)
	v.SetDefault("identity.token", cfg.Identity.Token)

	v.SetDefault("reconnect.enabled", cfg.Reconnect.Enabled)
	v.SetDefault("reconnect.initial", cfg.Reconnect.Initial)
	v.SetDefault("reconnect.max", cfg.Reconnect.Max)
	v.SetDefault("reconnect.max_attempts", cfg.Reconnect.MaxAttempts)

	v.SetDefault("chat.max_messages", cfg.Chat.MaxMessages)
	v.SetDefault("chat.optimistic_echo", cfg.Chat.OptimisticEcho)
	v.SetDefault("chat.echo_window", cfg.Chat.EchoWindow)

	v.SetDefault("transcript.enabled", cfg.Transcript.Enabled)
	v.SetDefault("transcript.path", cfg.Transcript.Path)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)

	v.SetDefault("tui.theme", cfg.TUI.Theme)
	v.SetDefault("tui.show_timestamps", cfg.TUI.ShowTimestamps)

	v.SetDefault("serve.addr", cfg.Serve.Addr)
}

// loadConfigFile attempts to load the configuration file.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}

	return nil
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Set sets a Viper value by key. Used by the CLI to apply flag overrides.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// Settings returns every resolved setting as a nested map, after defaults,
// file values and environment overrides are merged.
func (l *Loader) Settings() map[string]interface{} {
	return l.v.AllSettings()
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// bindEnvVars binds ROOMCHAT_* environment variables for config keys.
func bindEnvVars(v *viper.Viper) {
	envBindings := []string{
		"global.data_dir",
		"global.config_dir",
		"api.base_url",
		"api.history_path",
		"api.live_base_url",
		"api.live_path",
		"api.request_timeout",
		"api.handshake_timeout",
		"api.authenticate_channel",
		"identity.name",
		"identity.token",
		"reconnect.enabled",
		"reconnect.initial",
		"reconnect.max",
		"reconnect.max_attempts",
		"chat.max_messages",
		"chat.optimistic_echo",
		"chat.echo_window",
		"transcript.enabled",
		"transcript.path",
		"logging.level",
		"logging.format",
		"logging.file",
		"logging.enable_caller",
		"tui.theme",
		"tui.show_timestamps",
		"serve.addr",
	}

	for _, key := range envBindings {
		envVar := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, envVar)
	}
}

// applyEnvOverrides manually applies overrides to the config struct for
// string fields that Unmarshal may miss when a config file is present.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	v := l.v

	if base := v.GetString("api.base_url"); base != "" {
		cfg.API.BaseURL = base
	}
	if live := v.GetString("api.live_base_url"); live != "" {
		cfg.API.LiveBaseURL = live
	}
	if name := v.GetString("identity.name"); name != "" {
		cfg.Identity.Name = name
	}
	if token := v.GetString("identity.token"); token != "" {
		cfg.Identity.Token = token
	}
	if dataDir := v.GetString("global.data_dir"); dataDir != "" {
		cfg.Global.DataDir = dataDir
	}
	if configDir := v.GetString("global.config_dir"); configDir != "" {
		cfg.Global.ConfigDir = configDir
	}
	if level := v.GetString("logging.level"); level != "" && level != "info" {
		cfg.Logging.Level = level
	}
	if format := v.GetString("logging.format"); format != "" && format != "console" {
		cfg.Logging.Format = format
	}
	if file := v.GetString("logging.file"); file != "" {
		cfg.Logging.File = file
	}
}
