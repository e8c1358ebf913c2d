package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/english-mastery/backend/logger"
)

// TaskRunner executes deferred work outside the request that scheduled
// it. Tasks get a context detached from the caller's cancellation, run at
// most `concurrency` at a time, and never propagate panics.
type TaskRunner struct {
	sem chan struct{}
	wg  sync.WaitGroup
	log *logger.Logger
}

func NewTaskRunner(concurrency int, log *logger.Logger) *TaskRunner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &TaskRunner{
		sem: make(chan struct{}, concurrency),
		log: log.With("component", "TaskRunner"),
	}
}

// Go schedules fn and returns immediately.
func (r *TaskRunner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	taskCtx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.sem <- struct{}{}
		defer func() { <-r.sem }()

		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("task panicked", "task", name, "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
			}
		}()

		if err := fn(taskCtx); err != nil {
			r.log.Error("task failed", "task", name, "error", err)
		}
	}()
}

// Wait blocks until every scheduled task has finished.
func (r *TaskRunner) Wait() {
	r.wg.Wait()
}
