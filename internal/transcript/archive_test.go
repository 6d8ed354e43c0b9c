package transcript

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/roomchat/internal/chat"
)

var _ chat.Recorder = (*Archive)(nil)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "nested", "transcript.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestArchiveRecordAndList(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, a.Record(ctx, "7", chat.ChatMessage{Sender: "alice", Content: "first", Timestamp: &ts}))
	require.NoError(t, a.Record(ctx, "7", chat.ChatMessage{Sender: "bob", Content: "second"}))
	require.NoError(t, a.Record(ctx, "8", chat.ChatMessage{Sender: "carol", Content: "elsewhere"}))

	entries, err := a.List(ctx, "7", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "first", entries[0].Content)
	require.Equal(t, ts, *entries[0].Timestamp)
	require.Nil(t, entries[1].Timestamp)
	require.False(t, entries[1].ReceivedAt.IsZero())
	require.Equal(t, "bob", entries[1].Message().Sender)

	rooms, err := a.Rooms(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"7", "8"}, rooms)
}

func TestArchiveListLimitKeepsNewest(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	for _, content := range []string{"a", "b", "c", "d"} {
		require.NoError(t, a.Record(ctx, "7", chat.ChatMessage{Sender: "x", Content: content}))
	}

	entries, err := a.List(ctx, "7", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "c", entries[0].Content)
	require.Equal(t, "d", entries[1].Content)
}

func TestArchiveRejectsEmptyRoom(t *testing.T) {
	a := openTestArchive(t)
	require.ErrorIs(t, a.Record(context.Background(), "", chat.ChatMessage{}), chat.ErrEmptyRoom)
	_, err := a.List(context.Background(), " ", 0)
	require.ErrorIs(t, err, chat.ErrEmptyRoom)
}

func TestArchiveReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.db")
	a, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, a.Record(context.Background(), "7", chat.ChatMessage{Sender: "alice", Content: "kept"}))
	require.NoError(t, a.Close())

	b, err := Open(path)
	require.NoError(t, err)
	defer b.Close()
	entries, err := b.List(context.Background(), "7", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
