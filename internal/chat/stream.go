package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tOgg1/roomchat/internal/logging"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeTimeout            = 10 * time.Second
)

// ConnState is the live channel connection state.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StreamConfig configures a LiveStream.
type StreamConfig struct {
	RoomID   string
	URL      string
	Identity Identity
	Dialer   Dialer

	HandshakeTimeout time.Duration
	// Authenticate sends the identity token on the handshake.
	Authenticate bool
	Reconnect    ReconnectPolicy

	// OnMessage receives every decoded inbound message in transport order.
	OnMessage func(ChatMessage)
	// OnState receives every state transition; err is set for failures.
	OnState func(state ConnState, err error)
}

// LiveStream owns one duplex connection to a room's live channel. It is the
// only writer of its ConnState.
type LiveStream struct {
	cfg    StreamConfig
	logger zerolog.Logger

	mu     sync.Mutex
	state  ConnState
	conn   Conn
	closed bool
	cancel context.CancelFunc

	// notifyMu serialises callbacks with Close so nothing is delivered after
	// Close returns.
	notifyMu sync.Mutex
	writeMu  sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// NewLiveStream returns a stream in StateConnecting. Call Start to dial.
func NewLiveStream(cfg StreamConfig) *LiveStream {
	if cfg.Dialer == nil {
		cfg.Dialer = WebsocketDialer{}
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &LiveStream{
		cfg:    cfg,
		logger: logging.WithRoom("stream", cfg.RoomID),
		state:  StateConnecting,
		done:   make(chan struct{}),
	}
}

// Start dials in the background and returns immediately.
func (s *LiveStream) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.closed || s.cancel != nil {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(ctx)
}

// State returns the current connection state.
func (s *LiveStream) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the background goroutine has exited.
func (s *LiveStream) Done() <-chan struct{} {
	return s.done
}

// Send transmits content tagged with the local identity. It is rejected
// with ErrNotOpen unless the channel is open; nothing is queued.
func (s *LiveStream) Send(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed || s.state != StateOpen || s.conn == nil {
		s.mu.Unlock()
		return ErrNotOpen
	}
	conn := s.conn
	s.mu.Unlock()

	data, err := encodeFrame(outboundFrame{Message: content, Sender: s.cfg.Identity.Name})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close tears the stream down. It is idempotent; the underlying connection
// is closed exactly once and no callback fires after Close returns.
func (s *LiveStream) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.notifyMu.Lock()
		s.mu.Lock()
		s.closed = true
		conn := s.conn
		s.conn = nil
		prev := s.state
		s.state = StateClosed
		cancel := s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if conn != nil {
			s.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "leaving room"))
			s.writeMu.Unlock()
			closeErr = conn.Close()
		}
		if prev != StateClosed && s.cfg.OnState != nil {
			s.cfg.OnState(StateClosed, nil)
		}
		s.notifyMu.Unlock()

		if cancel == nil {
			// Never started: nothing will close done.
			close(s.done)
		}
		s.logger.Debug().Msg("live stream closed")
	})
	return closeErr
}

func (s *LiveStream) run(ctx context.Context) {
	defer close(s.done)

	attempt := 0
	for {
		opened, err := s.connectAndRead(ctx)
		if s.isClosed() || ctx.Err() != nil {
			return
		}
		if opened {
			attempt = 0
		}
		s.logger.Warn().Err(err).Msg("live channel dropped")
		s.transition(StateClosed, err)

		if !s.cfg.Reconnect.allows(attempt) {
			return
		}
		delay := s.cfg.Reconnect.Delay(attempt)
		attempt++
		s.logger.Info().Dur("delay", delay).Int("attempt", attempt).Msg("reconnecting live channel")
		if sleepWithContext(ctx, delay) != nil {
			return
		}
		if !s.transition(StateConnecting, nil) {
			return
		}
	}
}

// connectAndRead dials, then reads until the connection fails.
func (s *LiveStream) connectAndRead(ctx context.Context) (opened bool, err error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	conn, err := s.cfg.Dialer.Dial(dialCtx, s.cfg.URL, s.handshakeHeader())
	cancel()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return false, nil
	}
	s.conn = conn
	s.mu.Unlock()

	if !s.transition(StateOpen, nil) {
		return false, nil
	}
	s.logger.Debug().Msg("live channel open")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.releaseConn(conn)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, fmt.Errorf("server closed channel: %w", err)
			}
			return true, err
		}

		msg, err := decodeInbound(data)
		if err != nil {
			var frameErr *FrameError
			if errors.As(err, &frameErr) {
				s.logger.Warn().Str("frame", frameErr.Raw).Err(frameErr.Err).Msg("dropping malformed frame")
			}
			continue
		}
		if !s.deliver(msg) {
			return true, nil
		}
	}
}

// releaseConn closes conn unless Close already took ownership of it.
func (s *LiveStream) releaseConn(conn Conn) {
	s.mu.Lock()
	owned := s.conn == conn
	if owned {
		s.conn = nil
	}
	s.mu.Unlock()
	if owned {
		_ = conn.Close()
	}
}

func (s *LiveStream) deliver(msg ChatMessage) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if s.isClosed() {
		return false
	}
	if s.cfg.OnMessage != nil {
		s.cfg.OnMessage(msg)
	}
	return true
}

// transition moves to state and notifies, unless the stream was closed.
func (s *LiveStream) transition(state ConnState, err error) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.state = state
	s.mu.Unlock()

	if s.cfg.OnState != nil {
		s.cfg.OnState(state, err)
	}
	return true
}

func (s *LiveStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *LiveStream) handshakeHeader() http.Header {
	if !s.cfg.Authenticate || s.cfg.Identity.Token == "" {
		return nil
	}
	h := http.Header{}
	h.Set("Authorization", "Token "+s.cfg.Identity.Token)
	return h
}
