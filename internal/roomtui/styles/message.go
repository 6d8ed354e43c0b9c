package styles

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

const (
	// OwnMarker prefixes messages authored by the local identity.
	OwnMarker   = "▸ "
	otherMarker = "  "
	bodyIndent  = "    "
)

// Line is one message to render.
type Line struct {
	Sender    string
	Body      string
	Timestamp *time.Time
	Own       bool
	Pending   bool
}

// MessageStyles contains pre-built styles for message rendering.
type MessageStyles struct {
	Theme   Theme
	Senders *SenderColorMapper

	Own       lipgloss.Style
	OwnBody   lipgloss.Style
	Body      lipgloss.Style
	Timestamp lipgloss.Style
	Pending   lipgloss.Style
}

// NewMessageStyles builds a reusable style set for messages.
func NewMessageStyles(theme Theme) MessageStyles {
	return MessageStyles{
		Theme:     theme,
		Senders:   NewSenderColorMapper(theme.SenderPalette),
		Own:       lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Message.Own)).Bold(true),
		OwnBody:   lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Message.Own)),
		Body:      lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Base.Foreground)),
		Timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Base.Muted)),
		Pending:   lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Message.Pending)).Italic(true),
	}
}

// Render renders a header line followed by the wrapped body. Own messages
// carry OwnMarker and the own colour; others use their sender colour.
func (s MessageStyles) Render(line Line, width int, showTimestamp bool) string {
	sender := strings.TrimSpace(line.Sender)
	if sender == "" {
		sender = "unknown"
	}

	var header strings.Builder
	if line.Own {
		header.WriteString(s.Own.Render(OwnMarker + sender))
	} else {
		header.WriteString(otherMarker + s.Senders.Foreground(sender).Render(sender))
	}
	if showTimestamp && line.Timestamp != nil && !line.Timestamp.IsZero() {
		header.WriteString(" " + s.Timestamp.Render(line.Timestamp.Local().Format("15:04:05")))
	}
	if line.Pending {
		header.WriteString(" " + s.Pending.Render("sending..."))
	}

	bodyStyle := s.Body
	if line.Own {
		bodyStyle = s.OwnBody
	}
	wrapped := WrapBody(line.Body, width-len(bodyIndent))
	parts := strings.Split(wrapped, "\n")
	out := make([]string, 0, len(parts)+1)
	out = append(out, header.String())
	for _, part := range parts {
		out = append(out, bodyIndent+bodyStyle.Render(part))
	}
	return strings.Join(out, "\n")
}

// WrapBody wraps each line of body at width.
func WrapBody(body string, width int) string {
	if width <= 0 {
		return body
	}
	parts := strings.Split(body, "\n")
	for i := range parts {
		parts[i] = wordwrap.String(parts[i], width)
	}
	return strings.Join(parts, "\n")
}
