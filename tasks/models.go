package tasks

import (
	"time"

	"github.com/manipulab/objectkit/entity"
)

// Status is the lifecycle state of an experiment task.
//
// PENDING -> RUNNING happens exactly once per claim, via Repo.AcquireNext.
// RUNNING -> COMPLETE/ERROR is reported by the worker that holds the claim.
// RUNNING -> PENDING is an explicit administrative recovery (Repo.Requeue),
// never automatic.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusRunning  Status = "RUNNING"
	StatusComplete Status = "COMPLETE"
	StatusError    Status = "ERROR"
)

// Task is one pending experiment in the shared work table. Payload is opaque
// to the coordinator; workers interpret it by Type.
type Task struct {
	ID        int64
	Type      string
	Payload   []byte
	Status    Status
	ClaimedBy *string
	ClaimedAt *time.Time
	CreatedAt time.Time
}

// Bind exposes the task row to the query package. Status and claim columns
// are read-only: transitions go through Repo methods so the claim invariants
// hold.
func (t *Task) Bind() *entity.Descriptor {
	return entity.NewDescriptor("experiment_task",
		entity.Col("task_id", &t.ID).Key(),
		entity.Col("task_type", &t.Type).Read().Write(),
		entity.Col("task_payload", &t.Payload).Read().Write(),
		entity.Col("status", &t.Status).Read(),
		entity.Col("claimed_by", &t.ClaimedBy).Read(),
		entity.Col("claimed_at", &t.ClaimedAt).Read(),
		entity.Col("created_at", &t.CreatedAt).Read(),
	)
}
