package roomtui

import (
	"strings"
	"unicode"

	"github.com/tOgg1/roomchat/internal/chat"
	"github.com/tOgg1/roomchat/internal/roomtui/styles"
)

func renderMessages(s styles.MessageStyles, identity chat.Identity, msgs []chat.ChatMessage, width int, showTimestamps bool) string {
	if len(msgs) == 0 {
		return s.Theme.Muted().Render("  no messages yet")
	}
	blocks := make([]string, 0, len(msgs))
	for _, m := range msgs {
		blocks = append(blocks, s.Render(styles.Line{
			Sender:    displayText(m.Sender),
			Body:      displayText(m.Content),
			Timestamp: m.Timestamp,
			Own:       identity.IsOwn(m),
			Pending:   m.Pending,
		}, width, showTimestamps))
	}
	return strings.Join(blocks, "\n")
}

// displayText drops control characters so remote content cannot drive the
// terminal. Text is otherwise shown verbatim; markup is not interpreted.
func displayText(raw string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
}
