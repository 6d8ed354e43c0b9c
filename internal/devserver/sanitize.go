package devserver

import (
	"bytes"
	"encoding/json"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/tOgg1/roomchat/internal/chat"
)

var senderPolicy = bluemonday.StrictPolicy()

// sanitizeSender strips markup from a sender name and bounds its length.
// Names that pass chat.Identity.Validate come back unchanged.
func sanitizeSender(sender string) string {
	cleaned := senderPolicy.Sanitize(html.UnescapeString(sender))
	cleaned = strings.TrimSpace(html.UnescapeString(cleaned))
	for utf8.RuneCountInString(cleaned) > chat.MaxIdentityLength {
		_, size := utf8.DecodeLastRuneInString(cleaned)
		cleaned = cleaned[:len(cleaned)-size]
	}
	if cleaned == "" {
		return "anon"
	}
	return cleaned
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
