package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stateLog struct {
	mu     sync.Mutex
	states []ConnState
}

func (l *stateLog) add(s ConnState, _ error) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) count(s ConnState) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, st := range l.states {
		if st == s {
			n++
		}
	}
	return n
}

func newTestStream(t *testing.T, dialer Dialer, log *messageLog, states *stateLog, mutate func(*StreamConfig)) *LiveStream {
	t.Helper()
	cfg := StreamConfig{
		RoomID:   "7",
		URL:      "ws://chat.test/ws/chat/7/",
		Identity: Identity{Name: "alice", Token: "tok"},
		Dialer:   dialer,
	}
	if log != nil {
		cfg.OnMessage = log.add
	}
	if states != nil {
		cfg.OnState = states.add
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s := NewLiveStream(cfg)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLiveStreamDeliversInOrderAndDropsMalformed(t *testing.T) {
	conn := newFakeConn()
	log := &messageLog{}
	s := newTestStream(t, newFakeDialer(conn), log, nil, nil)
	require.Equal(t, StateConnecting, s.State())

	s.Start(context.Background())
	eventually(t, func() bool { return s.State() == StateOpen }, "stream should open")

	conn.push(`{"sender":"bob","message":"first","timestamp":"2024-03-01T10:00:00Z"}`)
	conn.push(`not json`)
	conn.push(`{"sender":"bob"}`)
	conn.push(`{"sender":"carol","message":"second"}`)

	eventually(t, func() bool { return log.len() == 2 }, "two valid frames")
	msgs := log.snapshot()
	require.Equal(t, []string{"bob: first", "carol: second"}, contents(msgs))
	require.True(t, msgs[0].HasTimestamp())
	require.False(t, msgs[1].HasTimestamp())
	require.Equal(t, SourceLive, msgs[0].Source)
	require.Equal(t, StateOpen, s.State(), "malformed frames do not close the channel")
}

func TestLiveStreamSendRejectedUntilOpen(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(conn)
	dialer.gate = make(chan struct{})
	s := newTestStream(t, dialer, nil, nil, nil)

	s.Start(context.Background())
	require.ErrorIs(t, s.Send("hello"), ErrNotOpen)
	require.Equal(t, StateConnecting, s.State())

	close(dialer.gate)
	eventually(t, func() bool { return s.State() == StateOpen }, "stream should open")
	require.NoError(t, s.Send("hello"))
	require.Equal(t, []string{`{"message":"hello","sender":"alice"}`}, conn.written())
}

func TestLiveStreamSendKeepsMarkupUnescaped(t *testing.T) {
	conn := newFakeConn()
	s := newTestStream(t, newFakeDialer(conn), nil, nil, nil)
	s.Start(context.Background())
	eventually(t, func() bool { return s.State() == StateOpen }, "stream should open")

	require.NoError(t, s.Send(`<b>hi</b> & "you"`))
	require.Equal(t, []string{`{"message":"<b>hi</b> & \"you\"","sender":"alice"}`}, conn.written())
	require.ErrorIs(t, s.Send("   "), ErrEmptyMessage)
}

func TestLiveStreamCloseIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	log := &messageLog{}
	states := &stateLog{}
	s := newTestStream(t, newFakeDialer(conn), log, states, nil)
	s.Start(context.Background())
	eventually(t, func() bool { return s.State() == StateOpen }, "stream should open")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	waitClosed(t, s.Done())

	require.Equal(t, 1, conn.closes())
	require.Equal(t, StateClosed, s.State())
	require.Equal(t, 1, states.count(StateClosed))
	require.ErrorIs(t, s.Send("late"), ErrNotOpen)

	conn.push(`{"sender":"bob","message":"after close"}`)
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, log.len())
}

func TestLiveStreamCloseDuringHandshake(t *testing.T) {
	dialer := newFakeDialer()
	dialer.gate = make(chan struct{})
	states := &stateLog{}
	s := newTestStream(t, dialer, nil, states, nil)
	s.Start(context.Background())
	eventually(t, func() bool { return dialer.dials() == 1 }, "dial should start")

	require.NoError(t, s.Close())
	waitClosed(t, s.Done())
	require.Equal(t, StateClosed, s.State())
	require.Equal(t, 1, states.count(StateClosed))
	require.Zero(t, states.count(StateOpen))
}

func TestLiveStreamCloseWithoutStart(t *testing.T) {
	s := newTestStream(t, newFakeDialer(), nil, nil, nil)
	require.NoError(t, s.Close())
	waitClosed(t, s.Done())

	s.Start(context.Background())
	require.Equal(t, StateClosed, s.State())
}

func TestLiveStreamDropWithoutReconnect(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(conn)
	states := &stateLog{}
	s := newTestStream(t, dialer, nil, states, nil)
	s.Start(context.Background())
	eventually(t, func() bool { return s.State() == StateOpen }, "stream should open")

	conn.breakConn()
	waitClosed(t, s.Done())
	require.Equal(t, StateClosed, s.State())
	require.Equal(t, 1, dialer.dials())
	require.Equal(t, 1, conn.closes())
	require.ErrorIs(t, s.Send("x"), ErrNotOpen)
}

func TestLiveStreamDialFailureCloses(t *testing.T) {
	dialer := newFakeDialer()
	dialer.err = errors.New("handshake rejected (403 Forbidden)")
	s := newTestStream(t, dialer, nil, nil, nil)
	s.Start(context.Background())
	waitClosed(t, s.Done())
	require.Equal(t, StateClosed, s.State())
}

func TestLiveStreamReconnectsAfterDrop(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := newFakeDialer(first, second)
	log := &messageLog{}
	states := &stateLog{}
	s := newTestStream(t, dialer, log, states, func(cfg *StreamConfig) {
		cfg.Reconnect = ReconnectPolicy{Enabled: true, Initial: 5 * time.Millisecond, Max: 10 * time.Millisecond, MaxAttempts: 3}
	})
	s.Start(context.Background())
	eventually(t, func() bool { return s.State() == StateOpen }, "stream should open")

	first.breakConn()
	eventually(t, func() bool { return dialer.dials() == 2 && s.State() == StateOpen }, "stream should reopen")
	require.Equal(t, 2, states.count(StateOpen))
	require.GreaterOrEqual(t, states.count(StateClosed), 1)

	second.push(`{"sender":"bob","message":"back"}`)
	eventually(t, func() bool { return log.len() == 1 }, "message after reconnect")
}

func TestLiveStreamHandshakeHeader(t *testing.T) {
	plain := newFakeDialer(newFakeConn())
	s := newTestStream(t, plain, nil, nil, nil)
	s.Start(context.Background())
	eventually(t, func() bool { return s.State() == StateOpen }, "stream should open")
	require.Nil(t, plain.header(0))

	authed := newFakeDialer(newFakeConn())
	s2 := newTestStream(t, authed, nil, nil, func(cfg *StreamConfig) { cfg.Authenticate = true })
	s2.Start(context.Background())
	eventually(t, func() bool { return s2.State() == StateOpen }, "stream should open")
	require.Equal(t, "Token tok", authed.header(0).Get("Authorization"))
}

func TestReconnectPolicyDelay(t *testing.T) {
	p := ReconnectPolicy{Enabled: true, Initial: time.Second, Max: 5 * time.Second, MaxAttempts: 3}
	require.Equal(t, time.Second, p.Delay(0))
	require.Equal(t, 2*time.Second, p.Delay(1))
	require.Equal(t, 4*time.Second, p.Delay(2))
	require.Equal(t, 5*time.Second, p.Delay(3))
	require.Equal(t, 5*time.Second, p.Delay(10))

	require.True(t, p.allows(2))
	require.False(t, p.allows(3))
	require.False(t, ReconnectPolicy{}.allows(0))
}
