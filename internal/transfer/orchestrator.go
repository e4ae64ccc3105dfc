package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openradlabs/dicom-transfer/internal/models"
)

// Scheduler decides whether a batch may run now. The calendar logic
// behind it lives with the caller.
type Scheduler interface {
	MustRunLater(now time.Time) bool
	NextSlot(now time.Time) time.Time
}

// TaskRunner executes a single task. The orchestrator stays decoupled
// from the Executor through it.
type TaskRunner func(ctx context.Context, task Task) Outcome

// JobResult is the aggregated outcome of a batch run.
type JobResult struct {
	Status   models.JobStatus
	Message  string
	Deferred bool
	ResumeAt time.Time
	Outcomes []Outcome
}

// Orchestrator fans a job's tasks out over a bounded worker pool and
// aggregates their outcomes.
type Orchestrator struct {
	Workers   int
	Scheduler Scheduler
	Log       zerolog.Logger
}

// Run executes all tasks and aggregates. The scheduler decision is
// consumed before any work is dispatched; a deferred job returns
// untouched with its resume time. A task asking for a halt cancels
// every task not yet started.
func (o *Orchestrator) Run(ctx context.Context, job Job, tasks []Task, run TaskRunner) JobResult {
	now := time.Now()
	if o.Scheduler != nil && o.Scheduler.MustRunLater(now) {
		resumeAt := o.Scheduler.NextSlot(now)
		o.Log.Info().
			Str("job_id", job.ID.String()).
			Time("resume_at", resumeAt).
			Msg("Job deferred by scheduler")
		return JobResult{
			Status:   models.JobStatusPending,
			Message:  "deferred to the next allowed time slot",
			Deferred: true,
			ResumeAt: resumeAt,
		}
	}

	workers := o.Workers
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.Log.Info().
		Str("job_id", job.ID.String()).
		Int("tasks", len(tasks)).
		Int("workers", workers).
		Msg("Starting batch job")

	sem := make(chan struct{}, workers)
	outcomes := make([]Outcome, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				outcomes[i] = Outcome{
					Task:    task.ID,
					Status:  models.TaskStatusCanceled,
					Message: "job canceled before the task started",
				}
				return
			}
			outcome := run(ctx, task)
			if outcome.Halt {
				o.Log.Error().
					Str("task_id", task.ID.String()).
					Msg("Task requested a halt, canceling remaining tasks")
				cancel()
			}
			outcomes[i] = outcome
		}(i, task)
	}
	wg.Wait()

	return aggregate(outcomes)
}

// aggregate derives the job status from two independent facts: did
// anything succeed, did anything fail.
func aggregate(outcomes []Outcome) JobResult {
	var hasSuccess, hasFailure, hasCanceled bool
	for _, out := range outcomes {
		switch out.Status {
		case models.TaskStatusSuccess, models.TaskStatusWarning:
			hasSuccess = true
		case models.TaskStatusFailure:
			hasFailure = true
		case models.TaskStatusCanceled:
			hasCanceled = true
		}
	}

	result := JobResult{Outcomes: outcomes}
	switch {
	case hasSuccess && hasFailure:
		result.Status = models.JobStatusWarning
		result.Message = "Some transfer tasks failed"
	case hasSuccess:
		result.Status = models.JobStatusSuccess
		result.Message = "All transfer tasks succeeded"
	case hasFailure:
		result.Status = models.JobStatusFailure
		result.Message = "All transfer tasks failed"
	case hasCanceled:
		result.Status = models.JobStatusCanceled
		result.Message = "Job canceled"
	default:
		result.Status = models.JobStatusSuccess
		result.Message = "Nothing to transfer"
	}
	return result
}
