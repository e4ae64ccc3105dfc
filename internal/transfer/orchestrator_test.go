package transfer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openradlabs/dicom-transfer/internal/models"
)

type fixedScheduler struct {
	deferNow bool
	nextSlot time.Time
}

func (s fixedScheduler) MustRunLater(now time.Time) bool { return s.deferNow }
func (s fixedScheduler) NextSlot(now time.Time) time.Time {
	return s.nextSlot
}

func makeTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{ID: uuid.New()}
	}
	return tasks
}

// scriptedRunner returns per-task outcomes keyed by task ID and counts
// invocations.
type scriptedRunner struct {
	mu       sync.Mutex
	outcomes map[uuid.UUID]Outcome
	calls    int
}

func (r *scriptedRunner) run(ctx context.Context, task Task) Outcome {
	r.mu.Lock()
	r.calls++
	out, ok := r.outcomes[task.ID]
	r.mu.Unlock()
	if !ok {
		out = Outcome{Status: models.TaskStatusSuccess}
	}
	out.Task = task.ID
	return out
}

func TestRunAggregatesAllSuccess(t *testing.T) {
	o := &Orchestrator{Workers: 2, Log: zerolog.Nop()}
	tasks := makeTasks(3)
	runner := &scriptedRunner{}

	result := o.Run(context.Background(), Job{ID: uuid.New()}, tasks, runner.run)

	assert.Equal(t, models.JobStatusSuccess, result.Status)
	assert.Equal(t, 3, runner.calls)
	assert.Len(t, result.Outcomes, 3)
}

func TestRunMixedOutcomesYieldWarning(t *testing.T) {
	o := &Orchestrator{Workers: 2, Log: zerolog.Nop()}
	tasks := makeTasks(2)
	runner := &scriptedRunner{outcomes: map[uuid.UUID]Outcome{
		tasks[1].ID: {Status: models.TaskStatusFailure, Message: "study not found"},
	}}

	result := o.Run(context.Background(), Job{ID: uuid.New()}, tasks, runner.run)

	assert.Equal(t, models.JobStatusWarning, result.Status)
	assert.Equal(t, "Some transfer tasks failed", result.Message)
}

func TestRunAllFailuresYieldFailure(t *testing.T) {
	o := &Orchestrator{Workers: 1, Log: zerolog.Nop()}
	tasks := makeTasks(2)
	runner := &scriptedRunner{outcomes: map[uuid.UUID]Outcome{
		tasks[0].ID: {Status: models.TaskStatusFailure},
		tasks[1].ID: {Status: models.TaskStatusFailure},
	}}

	result := o.Run(context.Background(), Job{ID: uuid.New()}, tasks, runner.run)

	assert.Equal(t, models.JobStatusFailure, result.Status)
}

func TestRunEmptyJobSucceeds(t *testing.T) {
	o := &Orchestrator{Workers: 1, Log: zerolog.Nop()}

	result := o.Run(context.Background(), Job{ID: uuid.New()}, nil, (&scriptedRunner{}).run)

	assert.Equal(t, models.JobStatusSuccess, result.Status)
	assert.Equal(t, "Nothing to transfer", result.Message)
}

func TestRunDefersToScheduler(t *testing.T) {
	resumeAt := time.Now().Add(4 * time.Hour)
	o := &Orchestrator{
		Workers:   2,
		Scheduler: fixedScheduler{deferNow: true, nextSlot: resumeAt},
		Log:       zerolog.Nop(),
	}
	runner := &scriptedRunner{}

	result := o.Run(context.Background(), Job{ID: uuid.New()}, makeTasks(3), runner.run)

	assert.True(t, result.Deferred)
	assert.Equal(t, models.JobStatusPending, result.Status)
	assert.Equal(t, resumeAt, result.ResumeAt)
	assert.Zero(t, runner.calls, "deferred jobs must not dispatch any task")
}

func TestRunHaltCancelsRemainingTasks(t *testing.T) {
	o := &Orchestrator{Workers: 1, Log: zerolog.Nop()}
	tasks := makeTasks(5)

	// Whichever task runs first fails hard; with a single worker the
	// cancellation lands before any other task starts.
	var calls int
	runner := func(ctx context.Context, task Task) Outcome {
		calls++
		return Outcome{Task: task.ID, Status: models.TaskStatusFailure, Halt: true}
	}

	result := o.Run(context.Background(), Job{ID: uuid.New()}, tasks, runner)

	assert.Equal(t, 1, calls)
	canceled := 0
	for _, out := range result.Outcomes {
		if out.Status == models.TaskStatusCanceled {
			canceled++
		}
	}
	assert.Equal(t, 4, canceled)
	assert.Equal(t, models.JobStatusFailure, result.Status)
}

func TestRunOutcomesKeepTaskOrder(t *testing.T) {
	o := &Orchestrator{Workers: 4, Log: zerolog.Nop()}
	tasks := makeTasks(8)
	runner := &scriptedRunner{}

	result := o.Run(context.Background(), Job{ID: uuid.New()}, tasks, runner.run)

	require.Len(t, result.Outcomes, len(tasks))
	for i, out := range result.Outcomes {
		assert.Equal(t, tasks[i].ID, out.Task)
	}
}

func TestAggregateCanceledOnly(t *testing.T) {
	result := aggregate([]Outcome{
		{Status: models.TaskStatusCanceled},
		{Status: models.TaskStatusCanceled},
	})
	assert.Equal(t, models.JobStatusCanceled, result.Status)
}
