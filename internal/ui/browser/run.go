package browser

import (
	"context"
	"includecut/internal/core/config"
	"includecut/internal/engine/floors"
	"log/slog"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the browser. Changes to any of watch mark every row stale.
func Run(ctx context.Context, svc Service, candidates []floors.Candidate, opts Options, watch []string) error {
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}
	m := NewModel(ctx, svc, candidates, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	watcher := config.NewWatcher(watch, config.DefaultDebounce, func(path string) {
		p.Send(StaleMsg{Path: path})
	})
	if err := watcher.Start(ctx); err != nil {
		slog.Warn("edge list watcher unavailable, rows will not go stale on edits", "error", err)
	} else {
		defer watcher.Stop()
	}

	_, err := p.Run()
	return err
}
