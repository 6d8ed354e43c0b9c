// Package chat implements the room chat core: history loading, the live
// channel client, and the message store that merges both into one ordered view.
package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Source records where a message entered the store.
type Source int

const (
	SourceHistory Source = iota
	SourceLive
	SourceLocal
)

func (s Source) String() string {
	switch s {
	case SourceHistory:
		return "history"
	case SourceLive:
		return "live"
	case SourceLocal:
		return "local"
	default:
		return "unknown"
	}
}

// ChatMessage is one rendered chat line.
type ChatMessage struct {
	Sender    string     `json:"sender"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`

	// Source and Seq are assigned by the store and are not part of any wire format.
	Source Source `json:"-"`
	Seq    uint64 `json:"-"`

	// LocalID and Pending are set for optimistic local echoes only.
	LocalID string    `json:"-"`
	Pending bool      `json:"-"`
	SentAt  time.Time `json:"-"`
}

// HasTimestamp reports whether the server supplied a creation time.
func (m ChatMessage) HasTimestamp() bool {
	return m.Timestamp != nil && !m.Timestamp.IsZero()
}

// Identity is the local user as seen by the chat core. Both values are
// supplied by the hosting shell; the core never looks them up itself.
type Identity struct {
	// Name is the display identity used to tag outgoing messages.
	Name string
	// Token is the credential for the history endpoint.
	Token string
}

// MaxIdentityLength is the longest display identity, in runes, the backend
// echoes back unchanged.
const MaxIdentityLength = 32

// Validate checks that Name is echoed back verbatim by the backend, which
// IsOwn and optimistic echo matching depend on. An empty Name is valid.
func (id Identity) Validate() error {
	if id.Name == "" {
		return nil
	}
	if strings.TrimSpace(id.Name) != id.Name {
		return fmt.Errorf("%w: leading or trailing whitespace", ErrInvalidIdentity)
	}
	if utf8.RuneCountInString(id.Name) > MaxIdentityLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidIdentity, MaxIdentityLength)
	}
	for _, r := range id.Name {
		if unicode.IsControl(r) || strings.ContainsRune("<>&", r) {
			return fmt.Errorf("%w: %q not allowed", ErrInvalidIdentity, r)
		}
	}
	return nil
}

// IsOwn reports whether m was authored by this identity.
func (id Identity) IsOwn(m ChatMessage) bool {
	return id.Name != "" && m.Sender == id.Name
}

// outboundFrame is what the client writes on the live channel.
type outboundFrame struct {
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

// inboundFrame is what the server pushes on the live channel. The wire field
// "message" maps to ChatMessage.Content.
type inboundFrame struct {
	Sender    *string `json:"sender"`
	Message   *string `json:"message"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// historyItem is one element of the history endpoint's JSON array.
type historyItem struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (h historyItem) toMessage() ChatMessage {
	return ChatMessage{
		Sender:    h.Sender,
		Content:   h.Content,
		Timestamp: parseTimestamp(h.Timestamp),
		Source:    SourceHistory,
	}
}

// decodeInbound parses a live frame. Frames missing either field are malformed.
func decodeInbound(data []byte) (ChatMessage, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return ChatMessage{}, &FrameError{Raw: truncateRaw(data), Err: err}
	}
	if frame.Sender == nil || frame.Message == nil {
		return ChatMessage{}, &FrameError{Raw: truncateRaw(data), Err: errMissingFrameField}
	}
	return ChatMessage{
		Sender:    *frame.Sender,
		Content:   *frame.Message,
		Timestamp: parseTimestamp(frame.Timestamp),
		Source:    SourceLive,
	}, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp accepts ISO 8601 values as produced by common backends.
// Zoneless values are UTC. Unparseable values yield nil.
func parseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}

func truncateRaw(data []byte) string {
	const max = 120
	if len(data) <= max {
		return string(data)
	}
	return string(data[:max]) + "..."
}
