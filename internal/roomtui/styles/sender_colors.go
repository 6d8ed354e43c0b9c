package styles

import (
	"hash/fnv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// SenderColorPalette is a curated ANSI 256 palette for stable sender colors.
// Red and green are left for connection state.
var SenderColorPalette = []string{
	"33", "39", "45", "69", "75", "81", "87", "99",
	"111", "117", "123", "147", "153", "159", "183", "189",
}

// SenderColorMapper resolves deterministic per-sender styles and caches them.
type SenderColorMapper struct {
	palette []string

	mu         sync.RWMutex
	fgCache    map[string]lipgloss.Style
	colorCache map[string]string
}

// NewSenderColorMapper returns a mapper over palette, or the default palette when empty.
func NewSenderColorMapper(palette []string) *SenderColorMapper {
	if len(palette) == 0 {
		palette = SenderColorPalette
	}
	return &SenderColorMapper{
		palette:    append([]string(nil), palette...),
		fgCache:    make(map[string]lipgloss.Style, 64),
		colorCache: make(map[string]string, 64),
	}
}

// Foreground returns a cached bold foreground style for sender.
func (m *SenderColorMapper) Foreground(sender string) lipgloss.Style {
	key := normalizeSender(sender)

	m.mu.RLock()
	if style, ok := m.fgCache[key]; ok {
		m.mu.RUnlock()
		return style
	}
	m.mu.RUnlock()

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.ColorCode(key))).Bold(true)

	m.mu.Lock()
	m.fgCache[key] = style
	m.mu.Unlock()
	return style
}

// ColorCode returns the ANSI-256 color code selected for sender.
func (m *SenderColorMapper) ColorCode(sender string) string {
	key := normalizeSender(sender)

	m.mu.RLock()
	if code, ok := m.colorCache[key]; ok {
		m.mu.RUnlock()
		return code
	}
	m.mu.RUnlock()

	code := m.palette[hashToPalette(key, len(m.palette))]

	m.mu.Lock()
	m.colorCache[key] = code
	m.mu.Unlock()
	return code
}

func normalizeSender(sender string) string {
	normalized := strings.ToLower(strings.TrimSpace(sender))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

func hashToPalette(key string, n int) int {
	if n == 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
