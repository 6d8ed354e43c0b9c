package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/roomchat/internal/logging"
)

const (
	defaultUpdateBuffer = 64
	recordTimeout       = 2 * time.Second
)

// Recorder archives live messages as they arrive.
type Recorder interface {
	Record(ctx context.Context, roomID string, m ChatMessage) error
}

// Options configures how sessions are built.
type Options struct {
	Identity Identity

	// History loads the persisted log. Nil skips history.
	History HistoryLoader

	// LiveURL maps a room id to its live channel URL.
	LiveURL             func(roomID string) string
	Dialer              Dialer
	HandshakeTimeout    time.Duration
	AuthenticateChannel bool
	Reconnect           ReconnectPolicy

	MaxMessages    int
	OptimisticEcho bool
	EchoWindow     time.Duration

	Recorder     Recorder
	UpdateBuffer int
}

// HistoryState is the progress of the history load.
type HistoryState int

const (
	HistoryPending HistoryState = iota
	HistoryLoaded
	HistoryFailed
)

func (s HistoryState) String() string {
	switch s {
	case HistoryPending:
		return "pending"
	case HistoryLoaded:
		return "loaded"
	case HistoryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// HistoryStatus is the user-visible history outcome.
type HistoryStatus struct {
	State HistoryState
	Err   error
	Count int
}

// UpdateKind classifies session updates.
type UpdateKind int

const (
	UpdateMessages UpdateKind = iota
	UpdateHistory
	UpdateConnection
)

// Update tells the view to re-read session state.
type Update struct {
	Kind   UpdateKind
	RoomID string
	State  ConnState
	Err    error
}

// Session is the client-side state of one room: its store, its live stream
// and its history load. A Session is never reused for another room.
type Session struct {
	roomID string
	opts   Options
	store  *Store
	stream *LiveStream
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	updates chan Update
	done    chan struct{}

	mu         sync.Mutex
	closed     bool
	history    HistoryStatus
	historyGen uint64
	connErr    error
	closeOnce  sync.Once
}

// OpenSession enters roomID: the live channel starts dialing and the history
// load starts, concurrently. Neither waits for the other.
func OpenSession(ctx context.Context, roomID string, opts Options) (*Session, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, ErrEmptyRoom
	}
	buffer := opts.UpdateBuffer
	if buffer <= 0 {
		buffer = defaultUpdateBuffer
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		roomID:  roomID,
		opts:    opts,
		store:   NewStore(WithMaxLive(opts.MaxMessages), WithEchoWindow(opts.EchoWindow)),
		logger:  logging.WithRoom("session", roomID),
		ctx:     sctx,
		cancel:  cancel,
		updates: make(chan Update, buffer),
		done:    make(chan struct{}),
	}

	liveURL := ""
	if opts.LiveURL != nil {
		liveURL = opts.LiveURL(roomID)
	}
	s.stream = NewLiveStream(StreamConfig{
		RoomID:           roomID,
		URL:              liveURL,
		Identity:         opts.Identity,
		Dialer:           opts.Dialer,
		HandshakeTimeout: opts.HandshakeTimeout,
		Authenticate:     opts.AuthenticateChannel,
		Reconnect:        opts.Reconnect,
		OnMessage:        s.onLive,
		OnState:          s.onState,
	})

	s.stream.Start(sctx)
	s.loadHistory()
	s.logger.Debug().Str("identity", opts.Identity.Name).Msg("entered room")
	return s, nil
}

// RoomID returns the room this session belongs to.
func (s *Session) RoomID() string {
	return s.roomID
}

// Identity returns the local identity.
func (s *Session) Identity() Identity {
	return s.opts.Identity
}

// IsOwn reports whether m was sent by the local identity.
func (s *Session) IsOwn(m ChatMessage) bool {
	return s.opts.Identity.IsOwn(m)
}

// Messages returns the ordered message sequence.
func (s *Session) Messages() []ChatMessage {
	return s.store.Messages()
}

// Store exposes the session's message store.
func (s *Session) Store() *Store {
	return s.store
}

// State returns the live channel state.
func (s *Session) State() ConnState {
	return s.stream.State()
}

// ConnErr returns the error behind the last transition to StateClosed, if any.
func (s *Session) ConnErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connErr
}

// History returns the history load status.
func (s *Session) History() HistoryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

// Updates delivers change notifications. Notifications are dropped when the
// buffer is full; the view always re-reads the full state.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Done is closed when the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// ReloadHistory refetches history. The result replaces the history portion.
func (s *Session) ReloadHistory() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	s.loadHistory()
	return nil
}

// Send transmits content on the live channel. Without optimistic echo the
// message appears only once the server echoes it back.
func (s *Session) Send(content string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	if !s.opts.OptimisticEcho {
		return s.stream.Send(content)
	}
	if s.stream.State() != StateOpen {
		return ErrNotOpen
	}

	pending := s.store.AddPending(s.opts.Identity.Name, content)
	s.publish(Update{Kind: UpdateMessages})
	if err := s.stream.Send(content); err != nil {
		s.store.DropPending(pending.LocalID)
		s.publish(Update{Kind: UpdateMessages})
		return err
	}
	return nil
}

// Close leaves the room: the in-flight history load is abandoned and the
// live channel is closed. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.historyGen++
		s.mu.Unlock()

		s.cancel()
		err = s.stream.Close()
		close(s.done)
		s.logger.Debug().Msg("left room")
	})
	return err
}

func (s *Session) loadHistory() {
	s.mu.Lock()
	s.historyGen++
	gen := s.historyGen
	s.history = HistoryStatus{State: HistoryPending}
	s.mu.Unlock()
	s.publish(Update{Kind: UpdateHistory})

	loader := s.opts.History
	if loader == nil {
		s.applyHistory(gen, nil, nil)
		return
	}
	go func() {
		msgs, err := loader.Load(s.ctx, s.roomID)
		s.applyHistory(gen, msgs, err)
	}()
}

// applyHistory installs a history result unless the session moved on: it
// was closed, or a newer load superseded this one.
func (s *Session) applyHistory(gen uint64, msgs []ChatMessage, err error) {
	s.mu.Lock()
	if s.closed || gen != s.historyGen {
		s.mu.Unlock()
		s.logger.Debug().Msg("discarding stale history result")
		return
	}
	if err != nil {
		s.history = HistoryStatus{State: HistoryFailed, Err: err}
		s.mu.Unlock()
		s.logger.Warn().Str("error", logging.Redact(err.Error())).Msg("history load failed")
		s.publish(Update{Kind: UpdateHistory, Err: err})
		return
	}
	s.store.ReplaceHistory(msgs)
	s.history = HistoryStatus{State: HistoryLoaded, Count: len(msgs)}
	s.mu.Unlock()

	s.publish(Update{Kind: UpdateHistory})
	s.publish(Update{Kind: UpdateMessages})
}

func (s *Session) onLive(m ChatMessage) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	stored, _ := s.store.AppendLive(m)
	s.mu.Unlock()

	if s.opts.Recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := s.opts.Recorder.Record(ctx, s.roomID, stored); err != nil {
			s.logger.Warn().Err(err).Msg("transcript record failed")
		}
		cancel()
	}
	s.publish(Update{Kind: UpdateMessages})
}

func (s *Session) onState(state ConnState, err error) {
	s.mu.Lock()
	if state == StateClosed {
		s.connErr = err
	} else if state == StateOpen {
		s.connErr = nil
	}
	s.mu.Unlock()
	s.publish(Update{Kind: UpdateConnection, State: state, Err: err})
}

func (s *Session) publish(u Update) {
	u.RoomID = s.roomID
	select {
	case s.updates <- u:
	default:
	}
}
