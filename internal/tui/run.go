package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/retribution/retctl/internal/core"
)

// Run shows the terminal UI until the operator quits or ctx is cancelled.
func Run(ctx context.Context, engine *core.Engine) error {
	p := tea.NewProgram(New(ctx, engine), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
