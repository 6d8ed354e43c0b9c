package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Context is the CLI session context: the identity the user logged in as and
// the credential the backend issued. The CLI shell reads it and passes the
// values to the chat module explicitly.
type Context struct {
	// Identity is the display identity used to tag outgoing messages.
	Identity string `yaml:"identity,omitempty"`
	// Token is the backend credential sent as "Authorization: Token <value>".
	Token string `yaml:"token,omitempty"`
	// LastRoom is the most recently joined room.
	LastRoom string `yaml:"last_room,omitempty"`
	// UpdatedAt is when the context was last modified.
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// IsEmpty returns true if no context is set.
func (c *Context) IsEmpty() bool {
	return c.Identity == "" && c.Token == ""
}

// HasCredential returns true if a credential is stored.
func (c *Context) HasCredential() bool {
	return c.Token != ""
}

// SetLogin records identity and credential.
func (c *Context) SetLogin(identity, token string) {
	c.Identity = identity
	c.Token = token
	c.UpdatedAt = time.Now()
}

// SetRoom records the last joined room.
func (c *Context) SetRoom(roomID string) {
	c.LastRoom = roomID
	c.UpdatedAt = time.Now()
}

// Clear removes all context.
func (c *Context) Clear() {
	c.Identity = ""
	c.Token = ""
	c.LastRoom = ""
	c.UpdatedAt = time.Now()
}

// String returns a human-readable representation of the context.
// The credential is never printed.
func (c *Context) String() string {
	if c.IsEmpty() {
		return "(no context set)"
	}
	out := fmt.Sprintf("identity:%s", orDash(c.Identity))
	if c.HasCredential() {
		out += " token:set"
	} else {
		out += " token:unset"
	}
	if c.LastRoom != "" {
		out += " room:" + c.LastRoom
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// ContextStore manages loading and saving context.
type ContextStore struct {
	path string
	mu   sync.RWMutex
}

// NewContextStore creates a new context store.
// If path is empty, uses the default path (~/.config/roomchat/context.yaml).
func NewContextStore(path string) *ContextStore {
	if path == "" {
		homeDir, _ := os.UserHomeDir()
		path = filepath.Join(homeDir, ".config", "roomchat", "context.yaml")
	}
	return &ContextStore{path: path}
}

// Path returns the context file path.
func (s *ContextStore) Path() string {
	return s.path
}

// Load reads the context from disk.
// Returns an empty context if the file doesn't exist.
func (s *ContextStore) Load() (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := &Context{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ctx, nil
		}
		return nil, fmt.Errorf("failed to read context file: %w", err)
	}

	if err := yaml.Unmarshal(data, ctx); err != nil {
		return nil, fmt.Errorf("failed to parse context file: %w", err)
	}

	return ctx, nil
}

// Save writes the context to disk. The file holds a credential, so it is
// written owner-only.
func (s *ContextStore) Save(ctx *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}

	data, err := yaml.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to serialize context: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write context file: %w", err)
	}

	return nil
}

// Clear removes the context file.
func (s *ContextStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove context file: %w", err)
	}
	return nil
}
