package worker

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Worker is a long-running loop that exits when its context is cancelled.
type Worker interface {
	Start(ctx context.Context) error
}

// Manager supervises a set of workers. The first worker to fail stops the
// rest.
type Manager struct {
	workers []Worker
}

func NewManager(ws ...Worker) *Manager {
	return &Manager{workers: ws}
}

// Start runs every worker until ctx is cancelled or one of them fails, and
// returns once all of them have exited.
func (m *Manager) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range m.workers {
		g.Go(func() error {
			if err := w.Start(gctx); err != nil {
				slog.Error("manager: worker stopped", "worker", i, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
