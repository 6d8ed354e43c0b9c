package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tOgg1/roomchat/internal/logging"
)

const (
	defaultRequestTimeout = 15 * time.Second
	maxHistoryBody        = 16 << 20
)

// HistoryLoader fetches the persisted message log of a room, oldest first.
type HistoryLoader interface {
	Load(ctx context.Context, roomID string) ([]ChatMessage, error)
}

// HistoryLoaderFunc adapts a function to HistoryLoader.
type HistoryLoaderFunc func(ctx context.Context, roomID string) ([]ChatMessage, error)

func (f HistoryLoaderFunc) Load(ctx context.Context, roomID string) ([]ChatMessage, error) {
	return f(ctx, roomID)
}

// HTTPHistoryConfig configures an HTTPHistoryLoader.
type HTTPHistoryConfig struct {
	// URLFor maps a room id to the history endpoint URL.
	URLFor func(roomID string) string
	// Token is sent as "Authorization: Token <Token>".
	Token   string
	Client  *http.Client
	Timeout time.Duration
}

// HTTPHistoryLoader loads history from the REST endpoint. It never retries.
type HTTPHistoryLoader struct {
	urlFor  func(string) string
	token   string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPHistoryLoader builds a loader from cfg.
func NewHTTPHistoryLoader(cfg HTTPHistoryConfig) *HTTPHistoryLoader {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HTTPHistoryLoader{
		urlFor:  cfg.URLFor,
		token:   strings.TrimSpace(cfg.Token),
		client:  client,
		timeout: timeout,
	}
}

// Load issues one GET for the room's history. A missing room id or
// credential fails before any request is made.
func (l *HTTPHistoryLoader) Load(ctx context.Context, roomID string) ([]ChatMessage, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, ErrEmptyRoom
	}
	if l.token == "" {
		return nil, ErrUnauthenticated
	}
	if l.urlFor == nil {
		return nil, fmt.Errorf("history endpoint not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	endpoint := l.urlFor(roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token "+l.token)

	logger := logging.WithRoom("history", roomID)
	logger.Debug().Str("url", logging.Redact(endpoint)).Msg("fetching history")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		logger.Warn().Int("status", resp.StatusCode).Msg("history request rejected")
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var items []historyItem
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxHistoryBody)).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	out := make([]ChatMessage, 0, len(items))
	for _, item := range items {
		out = append(out, item.toMessage())
	}
	logger.Debug().Int("count", len(out)).Msg("history loaded")
	return out, nil
}
