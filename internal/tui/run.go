package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Veraticus/spice-ledger/internal/model"
	tea "github.com/charmbracelet/bubbletea"
)

// Options control where the review screen reads and draws.
type Options struct {
	Input     io.Reader
	Output    io.Writer
	AltScreen bool
}

// Review shows candidates full screen and returns the ones the user chose to
// track. A quit without saving returns nil and no error.
func Review(ctx context.Context, candidates []model.RecurringCandidate, opts Options) ([]model.RecurringCandidate, error) {
	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}
	if opts.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}

	final, err := tea.NewProgram(NewReviewModel(candidates), programOpts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("review screen failed: %w", err)
	}

	m, ok := final.(ReviewModel)
	if !ok {
		return nil, fmt.Errorf("review screen returned %T", final)
	}
	return m.Accepted(), nil
}
