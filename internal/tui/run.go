package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"restaurant_live/internal/store"
	"restaurant_live/service"
)

// Run: mounts the view: starts the controller, runs the program until the user quits or ctx ends,
// then stops the controller.
func Run(ctx context.Context, ctl *service.SyncController, form *service.FormManager, st *store.Store, opts ...tea.ProgramOption) error {
	changes, unsubscribe := Watch(st)
	defer unsubscribe()

	if err := ctl.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sync: %w", err)
	}
	defer ctl.Stop()

	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(New(ctx, ctl, form, st, changes), opts...)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to run terminal view: %w", err)
	}
	return nil
}
