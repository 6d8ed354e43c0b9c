package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// BaseColors defines global UI colors.
type BaseColors struct {
	Background string
	Foreground string
	Muted      string
	Accent     string
	Border     string
}

// MessageColors defines colors for message origin.
type MessageColors struct {
	Own     string
	Other   string
	System  string
	Pending string
}

// StatusColors defines colors for the live channel state.
type StatusColors struct {
	Open       string
	Connecting string
	Closed     string
	Error      string
}

// ChromeColors defines non-content UI colors.
type ChromeColors struct {
	Header string
	Footer string
	Input  string
}

// Theme defines the room view style tokens.
type Theme struct {
	Name          string
	BorderStyle   string   // "rounded", "sharp", "double", "hidden"
	SenderPalette []string // ANSI-256 codes for sender identity colors

	Base    BaseColors
	Message MessageColors
	Status  StatusColors
	Chrome  ChromeColors
}

// Themes lists available palettes by name.
var Themes = map[string]Theme{
	"default":       DefaultTheme,
	"high-contrast": HighContrastTheme,
}

// Lookup returns the named theme, falling back to DefaultTheme.
func Lookup(name string) Theme {
	if theme, ok := Themes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return theme
	}
	return DefaultTheme
}

// Muted returns the muted text style.
func (t Theme) Muted() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Base.Muted))
}

// Header returns the header bar style.
func (t Theme) Header() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Chrome.Header)).Bold(true)
}

// Footer returns the help line style.
func (t Theme) Footer() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Chrome.Footer))
}

// Banner returns the error banner style.
func (t Theme) Banner() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Status.Error)).Bold(true)
}

// Notice returns the informational banner style.
func (t Theme) Notice() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Message.System))
}

// StatusStyle colours a connection state label.
func (t Theme) StatusStyle(state string) lipgloss.Style {
	color := t.Status.Closed
	switch state {
	case "open":
		color = t.Status.Open
	case "connecting":
		color = t.Status.Connecting
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
}

// InputStyle frames the compose box.
func (t Theme) InputStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		BorderStyle(borderFor(t.BorderStyle)).
		BorderForeground(lipgloss.Color(t.Chrome.Input))
}

func borderFor(name string) lipgloss.Border {
	switch name {
	case "double":
		return lipgloss.DoubleBorder()
	case "sharp":
		return lipgloss.NormalBorder()
	case "hidden":
		return lipgloss.HiddenBorder()
	default:
		return lipgloss.RoundedBorder()
	}
}
