// Package transcript keeps a local sqlite archive of live room messages.
package transcript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tOgg1/roomchat/internal/chat"
)

// Entry is one archived message.
type Entry struct {
	ID         int64
	RoomID     string
	Sender     string
	Content    string
	Timestamp  *time.Time
	ReceivedAt time.Time
}

// Message converts e back into a chat message.
func (e Entry) Message() chat.ChatMessage {
	return chat.ChatMessage{
		Sender:    e.Sender,
		Content:   e.Content,
		Timestamp: e.Timestamp,
		Source:    chat.SourceLive,
	}
}

// Archive is a sqlite-backed transcript. It satisfies chat.Recorder.
type Archive struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the archive at path.
func Open(path string) (*Archive, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("transcript path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to transcript database: %w", err)
	}

	a := &Archive{db: db, now: time.Now}
	if err := a.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *Archive) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transcript_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			sent_at TEXT,
			received_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS transcript_room_idx ON transcript_messages(room_id, id)`,
	}
	for _, stmt := range statements {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize transcript schema: %w", err)
		}
	}
	return nil
}

// Record appends m to the room's transcript.
func (a *Archive) Record(ctx context.Context, roomID string, m chat.ChatMessage) error {
	if a == nil || a.db == nil {
		return errors.New("transcript unavailable")
	}
	if strings.TrimSpace(roomID) == "" {
		return chat.ErrEmptyRoom
	}

	var sentAt any
	if m.HasTimestamp() {
		sentAt = m.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO transcript_messages (room_id, sender, content, sent_at, received_at)
		VALUES (?, ?, ?, ?, ?)
	`, roomID, m.Sender, m.Content, sentAt, a.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}
	return nil
}

// List returns the newest limit entries of a room, oldest first. A
// non-positive limit returns everything.
func (a *Archive) List(ctx context.Context, roomID string, limit int) ([]Entry, error) {
	if a == nil || a.db == nil {
		return nil, errors.New("transcript unavailable")
	}
	if strings.TrimSpace(roomID) == "" {
		return nil, chat.ErrEmptyRoom
	}

	query := `
		SELECT id, room_id, sender, content, sent_at, received_at
		FROM transcript_messages
		WHERE room_id = ?
		ORDER BY id DESC`
	args := []any{roomID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			sentRaw     sql.NullString
			receivedRaw string
		)
		if err := rows.Scan(&e.ID, &e.RoomID, &e.Sender, &e.Content, &sentRaw, &receivedRaw); err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		e.Timestamp = parseNullableTime(sentRaw)
		if received, err := time.Parse(time.RFC3339Nano, receivedRaw); err == nil {
			e.ReceivedAt = received
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Rooms lists rooms that have archived messages.
func (a *Archive) Rooms(ctx context.Context) ([]string, error) {
	if a == nil || a.db == nil {
		return nil, errors.New("transcript unavailable")
	}
	rows, err := a.db.QueryContext(ctx, `SELECT DISTINCT room_id FROM transcript_messages ORDER BY room_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript rooms: %w", err)
	}
	defer rows.Close()

	var rooms []string
	for rows.Next() {
		var room string
		if err := rows.Scan(&room); err != nil {
			return nil, fmt.Errorf("failed to scan transcript room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return nil
	}
	return &parsed
}
