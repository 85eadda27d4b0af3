package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"popsim/internal/cache"
	"popsim/internal/model"
	"popsim/internal/progress"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunFunc is the body of a background run. It returns the id of the stored
// result and the number of items it processed.
type RunFunc func(ctx context.Context, runID string, rep progress.Reporter) (resultID string, total int, err error)

// Runner executes long operations in the background. Each run gets an id,
// publishes its progress on the bus and ends with exactly one terminal event.
type Runner struct {
	bus    *progress.Bus
	runs   cache.RunCache
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates a runner publishing to bus and recording status in runs
func NewRunner(bus *progress.Bus, runs cache.RunCache, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		bus:    bus,
		runs:   runs,
		logger: logger.Named("runner"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches fn and returns its run id immediately
func (r *Runner) Start(kind model.RunKind, fn RunFunc) string {
	runID := uuid.New().String()
	r.setStatus(&model.RunStatus{
		RunID:     runID,
		Kind:      kind,
		State:     model.RunRunning,
		Stage:     progress.StagePrepare,
		UpdatedAt: time.Now(),
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		rep := r.bus.ForRun(runID, kind)
		logger := r.logger.With(zap.String("run_id", runID), zap.String("kind", string(kind)))

		start := time.Now()
		resultID, total, err := fn(r.ctx, runID, rep)
		if err != nil {
			logger.Error("run failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
			rep.Fail(err)
			return
		}
		logger.Info("run completed", zap.String("result_id", resultID), zap.Duration("elapsed", time.Since(start)))
		rep.Done(resultID, total)
	}()
	return runID
}

// Status returns the cached status of a run or an ErrNotFound error
func (r *Runner) Status(ctx context.Context, runID string) (*model.RunStatus, error) {
	status, err := r.runs.GetStatus(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run status: %w", err)
	}
	if status == nil {
		return nil, notFound("run", runID)
	}
	return status, nil
}

// Recent returns the most recently updated runs
func (r *Runner) Recent(ctx context.Context, limit int) ([]*model.RunStatus, error) {
	return r.runs.Recent(ctx, limit)
}

// Wait blocks until every started run has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels running work and waits for it, or for ctx to expire
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) setStatus(status *model.RunStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.runs.SetStatus(ctx, status); err != nil {
		r.logger.Warn("failed to cache run status", zap.String("run_id", status.RunID), zap.Error(err))
	}
}

// StatusHandler records every event as the run's latest status. Subscribe it
// through progress.Async since each event is a cache write.
func StatusHandler(runs cache.RunCache, logger *zap.Logger) progress.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(e progress.Event) {
		status := &model.RunStatus{
			RunID:     e.RunID,
			Kind:      e.Kind,
			State:     model.RunRunning,
			Stage:     e.Stage,
			Current:   e.Current,
			Total:     e.Total,
			ResultID:  e.ResultID,
			Error:     e.Error,
			UpdatedAt: e.At,
		}
		switch e.Stage {
		case progress.StageDone:
			status.State = model.RunCompleted
		case progress.StageFailed:
			status.State = model.RunFailed
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := runs.SetStatus(ctx, status); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("failed to cache run status", zap.String("run_id", e.RunID), zap.Error(err))
		}
	}
}
