package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultEchoWindow = 5 * time.Second

// Store is the ordered message list of one room. The visible sequence is the
// history portion followed by the live portion; history never interleaves
// with live messages.
type Store struct {
	mu sync.Mutex

	history []ChatMessage
	live    []ChatMessage

	nextSeq uint64
	version uint64

	maxLive    int
	echoWindow time.Duration
	now        func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxLive caps the retained live portion. Zero means unlimited.
func WithMaxLive(n int) StoreOption {
	return func(s *Store) {
		if n >= 0 {
			s.maxLive = n
		}
	}
}

// WithEchoWindow sets how long a pending local message can be confirmed by its echo.
func WithEchoWindow(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.echoWindow = d
		}
	}
}

// WithClock overrides the store clock.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		echoWindow: defaultEchoWindow,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReplaceHistory installs msgs as the history portion, discarding any
// previously loaded history. Live messages are kept after it.
func (s *Store) ReplaceHistory(msgs []ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		m.Source = SourceHistory
		m.Pending = false
		m.Seq = s.takeSeq()
		history = append(history, m)
	}
	s.history = history
	s.version++
}

// AppendLive adds a message received on the live channel. When it is the
// echo of a pending local message, that entry is confirmed in place and
// appended is false.
func (s *Store) AppendLive(m ChatMessage) (stored ChatMessage, appended bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.matchPending(m); idx >= 0 {
		confirmed := s.live[idx]
		confirmed.Pending = false
		confirmed.Source = SourceLive
		confirmed.Timestamp = m.Timestamp
		s.live[idx] = confirmed
		s.version++
		return confirmed, false
	}

	m.Source = SourceLive
	m.Pending = false
	m.Seq = s.takeSeq()
	s.live = append(s.live, m)
	s.trimLocked()
	s.version++
	return m, true
}

// AddPending appends an optimistic local echo for a message being sent.
func (s *Store) AddPending(sender, content string) ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := ChatMessage{
		Sender:  sender,
		Content: content,
		Source:  SourceLocal,
		Seq:     s.takeSeq(),
		LocalID: uuid.NewString(),
		Pending: true,
		SentAt:  s.now(),
	}
	s.live = append(s.live, m)
	s.trimLocked()
	s.version++
	return m
}

// DropPending removes a pending entry, used when the send that created it failed.
func (s *Store) DropPending(localID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.live {
		if m.Pending && m.LocalID == localID {
			s.live = append(s.live[:i], s.live[i+1:]...)
			s.version++
			return true
		}
	}
	return false
}

// matchPending returns the index of the oldest pending entry that m echoes,
// or -1. Entries older than the echo window no longer match.
func (s *Store) matchPending(m ChatMessage) int {
	now := s.now()
	for i, p := range s.live {
		if !p.Pending {
			continue
		}
		if p.Sender != m.Sender || p.Content != m.Content {
			continue
		}
		if now.Sub(p.SentAt) > s.echoWindow {
			continue
		}
		return i
	}
	return -1
}

func (s *Store) trimLocked() {
	if s.maxLive <= 0 || len(s.live) <= s.maxLive {
		return
	}
	drop := len(s.live) - s.maxLive
	copy(s.live, s.live[drop:])
	s.live = s.live[:s.maxLive]
}

func (s *Store) takeSeq() uint64 {
	s.nextSeq++
	return s.nextSeq
}

// Messages returns a copy of the ordered sequence: history, then live.
func (s *Store) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ChatMessage, 0, len(s.history)+len(s.live))
	out = append(out, s.history...)
	out = append(out, s.live...)
	return out
}

// Len returns the total number of messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history) + len(s.live)
}

// HistoryLen returns the size of the history portion.
func (s *Store) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// LiveLen returns the size of the live portion.
func (s *Store) LiveLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Version increases on every mutation.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}
