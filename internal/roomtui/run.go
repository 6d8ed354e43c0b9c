package roomtui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the full-screen room view and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	model := NewModel(ctx, opts)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := program.Run()
	if opts.Client != nil {
		_ = opts.Client.Leave()
	}
	return err
}
