package chat

import (
	"context"
	"sync"
)

// Client tracks the single active room. Entering a room tears down the
// previous session first, so no state crosses rooms.
type Client struct {
	opts Options

	mu      sync.Mutex
	current *Session
}

// NewClient returns a client that builds sessions from opts.
func NewClient(opts Options) *Client {
	return &Client{opts: opts}
}

// Enter closes the current session, if any, and opens roomID.
func (c *Client) Enter(ctx context.Context, roomID string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		_ = c.current.Close()
		c.current = nil
	}
	s, err := OpenSession(ctx, roomID, c.opts)
	if err != nil {
		return nil, err
	}
	c.current = s
	return s, nil
}

// Current returns the active session or nil.
func (c *Client) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Leave closes the active session.
func (c *Client) Leave() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	err := c.current.Close()
	c.current = nil
	return err
}
