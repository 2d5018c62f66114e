// Package river runs experiment-task batches from a riverqueue-based host.
package river

import (
	"context"
	"errors"
	"fmt"

	rq "github.com/riverqueue/river"

	"github.com/manipulab/objectkit/tasks"
)

// TaskBatchArgs runs a bounded claim batch against the experiment task
// table. Schedule it periodically from the host's river client (e.g. every
// minute), or enqueue it on-demand when you need backfill.
type TaskBatchArgs struct {
	Limit int `json:"limit"`

	// WorkerID is recorded as the claimant on each task. Defaults to a
	// per-job id so claims stay attributable when several batch jobs run.
	WorkerID string `json:"worker_id"`
}

func (TaskBatchArgs) Kind() string { return "objectkit_experiment_task_batch" }

// Runner executes one claimed task. Implemented by the host application.
type Runner interface {
	Run(ctx context.Context, task *tasks.Task) error
}

// BatchWorker drains up to Limit claims through the task repo, reporting
// each task COMPLETE or ERROR from the Runner's result.
type BatchWorker struct {
	rq.WorkerDefaults[TaskBatchArgs]

	repo   *tasks.Repo
	runner Runner
}

func NewBatchWorker(repo *tasks.Repo, runner Runner) (*BatchWorker, error) {
	if repo == nil {
		return nil, fmt.Errorf("task repo is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	return &BatchWorker{repo: repo, runner: runner}, nil
}

func (w *BatchWorker) Work(ctx context.Context, job *rq.Job[TaskBatchArgs]) error {
	limit := job.Args.Limit
	if limit <= 0 {
		limit = 10
	}
	workerID := job.Args.WorkerID
	if workerID == "" {
		workerID = fmt.Sprintf("river-job-%d", job.ID)
	}

	for i := 0; i < limit; i++ {
		t, err := w.repo.AcquireNext(ctx, workerID)
		if err != nil {
			return err
		}
		if t == nil {
			return nil
		}
		if runErr := w.runner.Run(ctx, t); runErr != nil {
			if failErr := w.repo.Fail(ctx, t.ID); failErr != nil {
				return errors.Join(runErr, failErr)
			}
			// The failure is recorded on the task row; keep draining.
			continue
		}
		if err := w.repo.Complete(ctx, t.ID); err != nil {
			return err
		}
	}
	return nil
}
