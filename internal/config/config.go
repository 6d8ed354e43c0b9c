// Package config handles roomchat configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RoomPlaceholder is substituted with the room id in endpoint templates.
const RoomPlaceholder = "{room}"

// Config is the root configuration structure for roomchat.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Backend endpoints
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Local identity used to tag outgoing messages
	Identity IdentityConfig `yaml:"identity" mapstructure:"identity"`

	// Live channel reconnection
	Reconnect ReconnectConfig `yaml:"reconnect" mapstructure:"reconnect"`

	// Message store behaviour
	Chat ChatConfig `yaml:"chat" mapstructure:"chat"`

	// Local transcript archive
	Transcript TranscriptConfig `yaml:"transcript" mapstructure:"transcript"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`

	// Development backend
	Serve ServeConfig `yaml:"serve" mapstructure:"serve"`
}

// GlobalConfig contains global settings.
type GlobalConfig struct {
	// DataDir is where roomchat stores its data (default: ~/.local/share/roomchat).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config and context files are stored (default: ~/.config/roomchat).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// APIConfig describes how to reach the chat backend.
type APIConfig struct {
	// BaseURL is the REST API origin, e.g. http://127.0.0.1:8000.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// HistoryPath is the history endpoint path template; must contain {room}.
	HistoryPath string `yaml:"history_path" mapstructure:"history_path"`

	// LiveBaseURL is the WebSocket origin. Derived from BaseURL when empty.
	LiveBaseURL string `yaml:"live_base_url" mapstructure:"live_base_url"`

	// LivePath is the live channel path template; must contain {room}.
	LivePath string `yaml:"live_path" mapstructure:"live_path"`

	// RequestTimeout bounds the history fetch.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`

	// HandshakeTimeout bounds the live channel handshake.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" mapstructure:"handshake_timeout"`

	// AuthenticateChannel sends the credential on the live channel handshake.
	AuthenticateChannel bool `yaml:"authenticate_channel" mapstructure:"authenticate_channel"`
}

// IdentityConfig holds the local display identity and credential.
type IdentityConfig struct {
	Name  string `yaml:"name" mapstructure:"name"`
	Token string `yaml:"token" mapstructure:"token"`
}

// ReconnectConfig controls live channel reconnection after an abrupt drop.
type ReconnectConfig struct {
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`
	Initial     time.Duration `yaml:"initial" mapstructure:"initial"`
	Max         time.Duration `yaml:"max" mapstructure:"max"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ChatConfig controls the message store.
type ChatConfig struct {
	// MaxMessages caps retained live messages (0 = unlimited).
	MaxMessages int `yaml:"max_messages" mapstructure:"max_messages"`

	// OptimisticEcho renders sent messages before the server echo arrives.
	OptimisticEcho bool `yaml:"optimistic_echo" mapstructure:"optimistic_echo"`

	// EchoWindow is how long a pending message may wait for its echo.
	EchoWindow time.Duration `yaml:"echo_window" mapstructure:"echo_window"`
}

// TranscriptConfig controls the sqlite transcript archive.
type TranscriptConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path. The TUI discards logs when unset.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// Theme is the color theme (default, high-contrast).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// ShowTimestamps shows message timestamps when present.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`
}

// ServeConfig configures the development backend.
type ServeConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`

	// Tokens maps accepted credentials to identities. Empty accepts any non-empty token.
	Tokens map[string]string `yaml:"tokens" mapstructure:"tokens"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "roomchat"),
			ConfigDir: filepath.Join(homeDir, ".config", "roomchat"),
		},
		API: APIConfig{
			BaseURL:          "http://127.0.0.1:8000",
			HistoryPath:      "/api/chat/rooms/{room}/messages/",
			LivePath:         "/ws/chat/{room}/",
			RequestTimeout:   15 * time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
		Reconnect: ReconnectConfig{
			Enabled:     false,
			Initial:     2 * time.Second,
			Max:         30 * time.Second,
			MaxAttempts: 5,
		},
		Chat: ChatConfig{
			MaxMessages:    2000,
			OptimisticEcho: false,
			EchoWindow:     5 * time.Second,
		},
		Transcript: TranscriptConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		TUI: TUIConfig{
			Theme:          "default",
			ShowTimestamps: true,
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:8000",
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validateHTTPURL("api.base_url", c.API.BaseURL, "http", "https"); err != nil {
		return err
	}
	if c.API.LiveBaseURL != "" {
		if err := validateHTTPURL("api.live_base_url", c.API.LiveBaseURL, "ws", "wss"); err != nil {
			return err
		}
	}
	if !strings.Contains(c.API.HistoryPath, RoomPlaceholder) {
		return fmt.Errorf("api.history_path must contain %s", RoomPlaceholder)
	}
	if !strings.Contains(c.API.LivePath, RoomPlaceholder) {
		return fmt.Errorf("api.live_path must contain %s", RoomPlaceholder)
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be positive")
	}
	if c.API.HandshakeTimeout <= 0 {
		return fmt.Errorf("api.handshake_timeout must be positive")
	}

	if c.Reconnect.Enabled {
		if c.Reconnect.Initial < 100*time.Millisecond {
			return fmt.Errorf("reconnect.initial must be at least 100ms")
		}
		if c.Reconnect.Max < c.Reconnect.Initial {
			return fmt.Errorf("reconnect.max must not be less than reconnect.initial")
		}
		if c.Reconnect.MaxAttempts < 1 {
			return fmt.Errorf("reconnect.max_attempts must be at least 1")
		}
	}

	if c.Chat.MaxMessages < 0 {
		return fmt.Errorf("chat.max_messages must not be negative")
	}
	if c.Chat.OptimisticEcho && c.Chat.EchoWindow <= 0 {
		return fmt.Errorf("chat.echo_window must be positive when optimistic_echo is enabled")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be one of console, json")
	}

	switch c.TUI.Theme {
	case "default", "high-contrast":
	default:
		return fmt.Errorf("tui.theme must be one of default, high-contrast")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// TranscriptPath returns the full transcript database path.
func (c *Config) TranscriptPath() string {
	if c.Transcript.Path != "" {
		return c.Transcript.Path
	}
	return filepath.Join(c.Global.DataDir, "transcript.db")
}

// ContextPath returns the session context file path.
func (c *Config) ContextPath() string {
	return filepath.Join(c.Global.ConfigDir, "context.yaml")
}

// HistoryURL returns the history endpoint for roomID.
func (c *Config) HistoryURL(roomID string) string {
	return joinEndpoint(c.API.BaseURL, c.API.HistoryPath, roomID)
}

// LiveURL returns the live channel URL for roomID.
func (c *Config) LiveURL(roomID string) string {
	return joinEndpoint(c.LiveBase(), c.API.LivePath, roomID)
}

// LiveBase returns the WebSocket origin, deriving it from the REST origin when unset.
func (c *Config) LiveBase() string {
	if c.API.LiveBaseURL != "" {
		return c.API.LiveBaseURL
	}
	base := c.API.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

func joinEndpoint(base, template, roomID string) string {
	path := strings.ReplaceAll(template, RoomPlaceholder, url.PathEscape(roomID))
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func validateHTTPURL(key, raw string, schemes ...string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	for _, scheme := range schemes {
		if u.Scheme == scheme && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be an absolute %s URL", key, strings.Join(schemes, "/"))
}
