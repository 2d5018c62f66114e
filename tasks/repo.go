// Package tasks coordinates the shared experiment work table.
//
// Many independent worker processes call AcquireNext concurrently; each
// PENDING row is handed to exactly one of them. All serialization is
// delegated to Postgres row-level locking — the coordinator keeps no
// in-process lock and no cross-call state.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manipulab/objectkit/query"
)

// ClaimError wraps a store-side failure during the atomic claim step. The
// claim is a single statement, so a failed call leaves no partial
// transition; callers may retry.
type ClaimError struct {
	Err error
}

func (e *ClaimError) Error() string { return fmt.Sprintf("claim task: %v", e.Err) }
func (e *ClaimError) Unwrap() error { return e.Err }

type Repo struct {
	pool   *pgxpool.Pool
	schema string
}

func NewRepo(pool *pgxpool.Pool, schema string) *Repo {
	return &Repo{pool: pool, schema: schema}
}

// Enqueue inserts a new PENDING task and returns its id.
func (r *Repo) Enqueue(ctx context.Context, taskType string, payload []byte) (int64, error) {
	if taskType == "" {
		return 0, fmt.Errorf("taskType is required")
	}
	q := fmt.Sprintf(`
		INSERT INTO %s.experiment_task (task_type, task_payload)
		VALUES (@type, @payload)
		RETURNING task_id
	`, r.schema)
	var id int64
	err := r.pool.QueryRow(ctx, q, pgx.NamedArgs{"type": taskType, "payload": payload}).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("enqueue task: %w", err)
	}
	return id, nil
}

// AcquireNext claims the oldest PENDING task for workerID, transitioning it
// to RUNNING and recording the claimant and claim time. It returns (nil, nil)
// when no task is eligible — a normal outcome, not a failure.
//
// Select-and-transition is one conditional UPDATE: the subselect locks the
// candidate row with FOR UPDATE SKIP LOCKED, so a row locked by a concurrent
// claimant is skipped rather than waited on, and two callers can never
// return the same task. Aborting the statement (context cancellation,
// disconnect) rolls the whole claim back, leaving the row PENDING.
func (r *Repo) AcquireNext(ctx context.Context, workerID string) (*Task, error) {
	if workerID == "" {
		return nil, &ClaimError{Err: errors.New("workerID is required")}
	}

	t := &Task{}
	d := t.Bind()
	readCols := d.ReadColumns()

	q := fmt.Sprintf(`
		UPDATE %s.experiment_task SET
			status = 'RUNNING',
			claimed_by = @worker,
			claimed_at = now()
		WHERE task_id = (
			SELECT task_id FROM %s.experiment_task
			WHERE status = 'PENDING'
			ORDER BY task_id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		) AND status = 'PENDING'
		RETURNING %s
	`, r.schema, r.schema, strings.Join(readCols, ", "))

	err := r.pool.QueryRow(ctx, q, pgx.NamedArgs{"worker": workerID}).Scan(d.ReadDests()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &ClaimError{Err: err}
	}
	return t, nil
}

// Complete reports a RUNNING task finished successfully.
func (r *Repo) Complete(ctx context.Context, taskID int64) error {
	return r.transition(ctx, taskID, StatusRunning, StatusComplete)
}

// Fail reports a RUNNING task finished with an error.
func (r *Repo) Fail(ctx context.Context, taskID int64) error {
	return r.transition(ctx, taskID, StatusRunning, StatusError)
}

// Requeue returns a RUNNING task to PENDING and clears its claim. This is
// the administrative recovery path for tasks whose worker died; it is never
// invoked automatically.
func (r *Repo) Requeue(ctx context.Context, taskID int64) error {
	q := fmt.Sprintf(`
		UPDATE %s.experiment_task SET
			status = 'PENDING',
			claimed_by = NULL,
			claimed_at = NULL
		WHERE task_id = @id AND status = 'RUNNING'
	`, r.schema)
	tag, err := r.pool.Exec(ctx, q, pgx.NamedArgs{"id": taskID})
	if err != nil {
		return fmt.Errorf("requeue task %d: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("requeue task %d: not RUNNING", taskID)
	}
	return nil
}

func (r *Repo) transition(ctx context.Context, taskID int64, from, to Status) error {
	q := fmt.Sprintf(`
		UPDATE %s.experiment_task SET status = @to
		WHERE task_id = @id AND status = @from
	`, r.schema)
	tag, err := r.pool.Exec(ctx, q, pgx.NamedArgs{"id": taskID, "from": from, "to": to})
	if err != nil {
		return fmt.Errorf("transition task %d to %s: %w", taskID, to, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transition task %d to %s: not %s", taskID, to, from)
	}
	return nil
}

// ByStatus lists tasks in the given state, oldest first.
func (r *Repo) ByStatus(ctx context.Context, status Status) ([]*Task, error) {
	return query.List[Task](ctx, r.pool, r.schema, &Task{}, query.And(query.Eq("status", status)))
}

// CountByStatus returns the number of tasks in the given state.
func (r *Repo) CountByStatus(ctx context.Context, status Status) (int64, error) {
	return query.Count[Task](ctx, r.pool, r.schema, &Task{}, query.And(query.Eq("status", status)))
}
