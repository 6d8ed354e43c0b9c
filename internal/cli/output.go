package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tOgg1/roomchat/internal/chat"
)

// IsJSONOutput reports whether --json was given.
func IsJSONOutput() bool {
	return jsonOutput
}

// IsJSONLOutput reports whether --jsonl was given.
func IsJSONLOutput() bool {
	return jsonlOutput
}

// IsQuiet reports whether --quiet was given.
func IsQuiet() bool {
	return quiet
}

// WriteOutput writes v as indented JSON, or one JSON line per call with --jsonl.
func WriteOutput(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if !IsJSONLOutput() {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// messageRecord is the machine-readable form of a chat message.
type messageRecord struct {
	Room      string     `json:"room"`
	Sender    string     `json:"sender"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Source    string     `json:"source"`
	Own       bool       `json:"own"`
}

func toRecord(roomID string, id chat.Identity, m chat.ChatMessage) messageRecord {
	return messageRecord{
		Room:      roomID,
		Sender:    m.Sender,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		Source:    m.Source.String(),
		Own:       id.IsOwn(m),
	}
}

// writeMessageLine prints one message as "[time] sender: content".
func writeMessageLine(w io.Writer, id chat.Identity, m chat.ChatMessage) error {
	prefix := ""
	if m.Timestamp != nil {
		prefix = "[" + m.Timestamp.Local().Format("15:04:05") + "] "
	}
	marker := ""
	if id.IsOwn(m) {
		marker = "*"
	}
	_, err := fmt.Fprintf(w, "%s%s%s: %s\n", prefix, marker, terminalSafe(m.Sender), terminalSafe(m.Content))
	return err
}

// terminalSafe drops control characters and indents continuation lines.
func terminalSafe(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	return strings.ReplaceAll(s, "\n", "\n  ")
}

// writeMessageStream prints msgs for a stream: one compact JSON object per
// line when any JSON output is requested, text otherwise.
func writeMessageStream(w io.Writer, roomID string, id chat.Identity, msgs []chat.ChatMessage) error {
	if !IsJSONOutput() && !IsJSONLOutput() {
		return writeMessages(w, roomID, id, msgs)
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, m := range msgs {
		if err := enc.Encode(toRecord(roomID, id, m)); err != nil {
			return err
		}
	}
	return nil
}

// writeMessages prints msgs in the selected output format.
func writeMessages(w io.Writer, roomID string, id chat.Identity, msgs []chat.ChatMessage) error {
	switch {
	case IsJSONLOutput():
		for _, m := range msgs {
			if err := WriteOutput(w, toRecord(roomID, id, m)); err != nil {
				return err
			}
		}
		return nil
	case IsJSONOutput():
		records := make([]messageRecord, 0, len(msgs))
		for _, m := range msgs {
			records = append(records, toRecord(roomID, id, m))
		}
		return WriteOutput(w, records)
	default:
		for _, m := range msgs {
			if err := writeMessageLine(w, id, m); err != nil {
				return err
			}
		}
		return nil
	}
}
