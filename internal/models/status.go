package models

// TaskStatus is the final status of a single transfer task.
type TaskStatus string

const (
	TaskStatusSuccess  TaskStatus = "SUCCESS"
	TaskStatusWarning  TaskStatus = "WARNING"
	TaskStatusFailure  TaskStatus = "FAILURE"
	TaskStatusCanceled TaskStatus = "CANCELED"
)

// JobStatus is the aggregated status of a batch job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusSuccess    JobStatus = "SUCCESS"
	JobStatusWarning    JobStatus = "WARNING"
	JobStatusFailure    JobStatus = "FAILURE"
	JobStatusCanceled   JobStatus = "CANCELED"
)
