// Package tasks implements a background-task executor: four strict-priority
// FIFO queues drained by an auto-scaling worker pool, with retry/timeout
// policy and cooperative cancellation.
//
// Scaling decisions use the weighted queue depth sampled on a ticker; the
// pool only grows or shrinks once several consecutive samples confirm a
// sustained condition, and every worker loop is cancellation-aware.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Priority is the scheduling priority of a task. Lower numeric value runs
// first; CRITICAL always preempts HIGH/NORMAL/LOW in worker selection.
type Priority int

const (
	Critical Priority = iota
	High
	Normal
	Low

	numPriorities = 4
)

func (p Priority) String() string {
	switch p {
	case Critical:
		return "CRITICAL"
	case High:
		return "HIGH"
	case Normal:
		return "NORMAL"
	case Low:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// weight is used by the auto-scale controller's weighted queue-depth
// sample: CRITICAL counts for 4, HIGH for 3, NORMAL for 2, LOW for 1.
func (p Priority) weight() int {
	switch p {
	case Critical:
		return 4
	case High:
		return 3
	case Normal:
		return 2
	default:
		return 1
	}
}

// State is a task's lifecycle state.
type State int

const (
	Queued State = iota
	Running
	Succeeded
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Queued:
		return "QUEUED"
	case Running:
		return "RUNNING"
	case Succeeded:
		return "SUCCEEDED"
	case Failed:
		return "FAILED"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Func is the callable submitted to the executor.
type Func func(ctx context.Context, args []any) (any, error)

// Task is one unit of submitted work. mu guards the mutable fields below
// it, since Handle.Cancel and the worker loop may touch them concurrently.
type Task struct {
	ID         string
	fn         Func
	Args       []any
	Priority   Priority
	MaxRetries int
	RetryCount int
	Timeout    time.Duration
	EnqueuedAt time.Time

	mu     sync.Mutex
	State  State
	Result any
	Err    error

	cancel context.CancelFunc
	done   chan struct{}
}

func (t *Task) state() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.State
}

// finish transitions the task to a terminal state exactly once and closes
// done. Returns false if the task was already terminal (e.g. cancelled
// concurrently), in which case the caller must not act on its result.
func (t *Task) finish(state State, result any, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State == Succeeded || t.State == Failed || t.State == Cancelled {
		return false
	}
	t.State = state
	t.Result = result
	t.Err = err
	close(t.done)
	return true
}

func newTask(fn Func, args []any, priority Priority, maxRetries int, timeout time.Duration) *Task {
	return &Task{
		ID:         uuid.NewString(),
		fn:         fn,
		Args:       args,
		Priority:   priority,
		MaxRetries: maxRetries,
		Timeout:    timeout,
		EnqueuedAt: time.Now(),
		State:      Queued,
		done:       make(chan struct{}),
	}
}
