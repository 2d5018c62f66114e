package tasks

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/manipulab/objectkit/migrations"
)

// integrationPool connects to the database named by OBJECTKIT_TEST_URL and
// rebuilds the given schema from the embedded migrations. Everything runs in
// one Exec batch so the search_path applies on a single connection.
func integrationPool(t *testing.T, schema string) (context.Context, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("OBJECTKIT_TEST_URL")
	if dsn == "" {
		t.Skip("OBJECTKIT_TEST_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	t.Cleanup(pool.Close)

	var ddl strings.Builder
	fmt.Fprintf(&ddl, "DROP SCHEMA IF EXISTS %s CASCADE;\nCREATE SCHEMA %s;\nSET search_path = %s, public;\n",
		schema, schema, schema)
	for _, name := range []string{"0001_objects.sql", "0002_experiment_tasks.sql"} {
		b, err := fs.ReadFile(migrations.Postgres, name)
		if err != nil {
			t.Fatalf("read migration %s: %v", name, err)
		}
		ddl.Write(b)
		ddl.WriteString("\n")
	}
	if _, err := pool.Exec(ctx, ddl.String()); err != nil {
		t.Fatalf("setup schema %s: %v", schema, err)
	}
	return ctx, pool
}

func insertPending(t *testing.T, ctx context.Context, pool *pgxpool.Pool, schema string, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		_, err := pool.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s.experiment_task (task_id, task_type)
			OVERRIDING SYSTEM VALUE VALUES ($1, 'grasp_experiment')
		`, schema), id)
		if err != nil {
			t.Fatalf("insert task %d: %v", id, err)
		}
	}
}

func TestAcquireNext_Integration_ClaimOrderAndDrain(t *testing.T) {
	const schema = "tq_order"
	ctx, pool := integrationPool(t, schema)
	repo := NewRepo(pool, schema)

	insertPending(t, ctx, pool, schema, 10, 11, 12)

	// Two concurrent callers get the two oldest tasks, one each.
	results := make(chan *Task, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			task, err := repo.AcquireNext(ctx, fmt.Sprintf("worker-%d", n))
			if err != nil {
				t.Errorf("AcquireNext: %v", err)
				return
			}
			results <- task
		}(i)
	}
	wg.Wait()
	close(results)

	got := map[int64]bool{}
	for task := range results {
		if task == nil {
			t.Fatalf("expected both concurrent claims to succeed")
		}
		if got[task.ID] {
			t.Fatalf("task %d claimed twice", task.ID)
		}
		got[task.ID] = true
		if task.Status != StatusRunning {
			t.Fatalf("claimed task %d status = %s", task.ID, task.Status)
		}
		if task.ClaimedBy == nil || task.ClaimedAt == nil {
			t.Fatalf("claimed task %d missing claim attribution: %+v", task.ID, task)
		}
	}
	if !got[10] || !got[11] {
		t.Fatalf("expected tasks 10 and 11 claimed first, got %v", got)
	}

	// Task 12 is still pending and goes to the next caller.
	task, err := repo.AcquireNext(ctx, "worker-3")
	if err != nil {
		t.Fatalf("AcquireNext: %v", err)
	}
	if task == nil || task.ID != 12 {
		t.Fatalf("expected task 12, got %+v", task)
	}

	// Queue drained: empty result, not an error.
	task, err = repo.AcquireNext(ctx, "worker-4")
	if err != nil {
		t.Fatalf("AcquireNext on empty queue: %v", err)
	}
	if task != nil {
		t.Fatalf("expected no task, got %+v", task)
	}
}

func TestAcquireNext_Integration_NoDoubleClaim(t *testing.T) {
	const schema = "tq_race"
	ctx, pool := integrationPool(t, schema)
	repo := NewRepo(pool, schema)

	const pending = 5
	const callers = 8
	ids := make([]int64, pending)
	for i := range ids {
		ids[i] = int64(100 + i)
	}
	insertPending(t, ctx, pool, schema, ids...)

	results := make(chan *Task, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			task, err := repo.AcquireNext(ctx, fmt.Sprintf("worker-%d", n))
			if err != nil {
				t.Errorf("AcquireNext: %v", err)
				return
			}
			results <- task
		}(i)
	}
	wg.Wait()
	close(results)

	claimed := map[int64]bool{}
	empty := 0
	for task := range results {
		if task == nil {
			empty++
			continue
		}
		if claimed[task.ID] {
			t.Fatalf("task %d claimed twice", task.ID)
		}
		claimed[task.ID] = true
	}
	if len(claimed) != pending {
		t.Fatalf("expected %d distinct claims, got %d", pending, len(claimed))
	}
	if empty != callers-pending {
		t.Fatalf("expected %d empty results, got %d", callers-pending, empty)
	}
}

func TestAcquireNext_Integration_AbortLeavesPending(t *testing.T) {
	const schema = "tq_abort"
	ctx, pool := integrationPool(t, schema)
	repo := NewRepo(pool, schema)

	insertPending(t, ctx, pool, schema, 1)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := repo.AcquireNext(cancelled, "worker-1"); err == nil {
		t.Fatalf("expected error from aborted claim")
	}

	// The aborted claim left no partial transition.
	task, err := repo.AcquireNext(ctx, "worker-2")
	if err != nil {
		t.Fatalf("AcquireNext after abort: %v", err)
	}
	if task == nil || task.ID != 1 {
		t.Fatalf("expected task 1 still claimable, got %+v", task)
	}
}

func TestRepo_Integration_Lifecycle(t *testing.T) {
	const schema = "tq_life"
	ctx, pool := integrationPool(t, schema)
	repo := NewRepo(pool, schema)

	id, err := repo.Enqueue(ctx, "grasp_experiment", []byte("scaled_model_id=4"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	task, err := repo.AcquireNext(ctx, "worker-1")
	if err != nil {
		t.Fatalf("AcquireNext: %v", err)
	}
	if task == nil || task.ID != id {
		t.Fatalf("expected task %d, got %+v", id, task)
	}
	if string(task.Payload) != "scaled_model_id=4" {
		t.Fatalf("payload = %q", task.Payload)
	}

	// Completing twice must fail: the task is no longer RUNNING.
	if err := repo.Complete(ctx, task.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := repo.Complete(ctx, task.ID); err == nil {
		t.Fatalf("expected second Complete to fail")
	}

	// Requeue applies only to RUNNING tasks.
	if err := repo.Requeue(ctx, task.ID); err == nil {
		t.Fatalf("expected Requeue of COMPLETE task to fail")
	}

	// Fail path plus explicit recovery.
	id2, err := repo.Enqueue(ctx, "grasp_experiment", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	task2, err := repo.AcquireNext(ctx, "worker-2")
	if err != nil || task2 == nil || task2.ID != id2 {
		t.Fatalf("AcquireNext: %v %+v", err, task2)
	}
	if err := repo.Requeue(ctx, task2.ID); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	task2b, err := repo.AcquireNext(ctx, "worker-3")
	if err != nil || task2b == nil || task2b.ID != id2 {
		t.Fatalf("re-claim after Requeue: %v %+v", err, task2b)
	}
	if task2b.ClaimedBy == nil || *task2b.ClaimedBy != "worker-3" {
		t.Fatalf("re-claim attribution = %+v", task2b.ClaimedBy)
	}
	if err := repo.Fail(ctx, task2b.ID); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	byStatus, err := repo.ByStatus(ctx, StatusError)
	if err != nil {
		t.Fatalf("ByStatus: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != id2 {
		t.Fatalf("ByStatus(ERROR) = %+v", byStatus)
	}

	// Idempotent read: repeated counts agree on an unmodified table.
	n1, err := repo.CountByStatus(ctx, StatusComplete)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	n2, err := repo.CountByStatus(ctx, StatusComplete)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if n1 != 1 || n1 != n2 {
		t.Fatalf("CountByStatus = %d, %d; want 1, 1", n1, n2)
	}
}
