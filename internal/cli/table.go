package cli

import (
	"bufio"
	"io"
	"os"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	tablePadding = 2
	// minLastColumn keeps the last column readable on narrow terminals.
	minLastColumn = 12
	ellipsis      = "…"
)

type column struct {
	Header string
	// MaxWidth caps the column in display cells; 0 means unbounded.
	MaxWidth int
}

// writeTable writes left-aligned columns sized to their widest cell. Cells
// wider than their column are cut with an ellipsis. When width is positive
// the last column shrinks so each row fits in width cells.
func writeTable(out io.Writer, width int, columns []column, rows [][]string) error {
	if len(columns) == 0 {
		return nil
	}

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = runewidth.StringWidth(c.Header)
	}
	for _, row := range rows {
		for i := range columns {
			if i < len(row) {
				widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
			}
		}
	}
	for i, c := range columns {
		if c.MaxWidth > 0 && widths[i] > c.MaxWidth {
			widths[i] = c.MaxWidth
		}
	}
	if width > 0 {
		last := len(widths) - 1
		used := 0
		for _, w := range widths[:last] {
			used += w + tablePadding
		}
		if remaining := width - used; remaining < widths[last] {
			widths[last] = max(remaining, minLastColumn)
		}
	}

	writer := bufio.NewWriter(out)
	writeRow := func(row []string) {
		for i := range columns {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cell = runewidth.Truncate(cell, widths[i], ellipsis)
			if i < len(columns)-1 {
				cell = runewidth.FillRight(cell, widths[i]+tablePadding)
			}
			_, _ = writer.WriteString(cell)
		}
		_ = writer.WriteByte('\n')
	}

	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = c.Header
	}
	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}
	return writer.Flush()
}

// tableWidth returns the terminal width behind out, or 0 when out is not a
// terminal.
func tableWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
