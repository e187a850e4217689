// internal/process/job.go
package process

import (
	"time"

	"github.com/tendant/simple-mediaboard/pkg/schema"
)

// JobStatus represents the lifecycle state of an ingest job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusValidating JobStatus = "validating"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
)

// Job tracks one ingest request and the lifecycle events it produced.
// A Job is owned by a single goroutine.
type Job struct {
	ID          string
	Kind        string
	Status      JobStatus
	Error       string
	FailureType schema.FailureType
	StartTime   time.Time
	Lifecycle   []schema.IngestLifecycleEvent

	now func() time.Time
}

func NewJob(kind, id string) *Job {
	return &Job{
		ID:     id,
		Kind:   kind,
		Status: JobStatusPending,
		now:    time.Now,
	}
}

// Enter records a transition into stage and returns the event for it.
// Completed and failed stages are recorded through Succeed and Fail.
func (j *Job) Enter(stage schema.ProcessingStage) schema.IngestLifecycleEvent {
	if j.StartTime.IsZero() {
		j.StartTime = j.now()
	}
	switch stage {
	case schema.StageValidation:
		j.Status = JobStatusValidating
	default:
		j.Status = JobStatusProcessing
	}
	return j.record(stage, nil, "")
}

func (j *Job) Succeed() schema.IngestLifecycleEvent {
	j.Status = JobStatusSucceeded
	return j.record(schema.StageCompleted, nil, "")
}

// Fail marks the job failed and classifies err.
func (j *Job) Fail(err error) schema.IngestLifecycleEvent {
	j.Status = JobStatusFailed
	j.FailureType = schema.ClassifyError(err)
	if err != nil {
		j.Error = err.Error()
	}
	return j.record(schema.StageFailed, err, j.FailureType)
}

// Duration returns the milliseconds elapsed since the job first entered a stage.
func (j *Job) Duration() int64 {
	if j.StartTime.IsZero() {
		return 0
	}
	return j.now().Sub(j.StartTime).Milliseconds()
}

// Done builds the result event for the job's current state.
func (j *Job) Done(art *schema.StoredArtifact, reused bool) schema.IngestDone {
	return schema.IngestDone{
		ID:               j.ID,
		Kind:             j.Kind,
		Artifact:         art,
		Reused:           reused,
		ProcessingTimeMs: j.Duration(),
		Lifecycle:        j.Lifecycle,
		Error:            j.Error,
		FailureType:      j.FailureType,
		HappenedAt:       j.now().Unix(),
	}
}

func (j *Job) record(stage schema.ProcessingStage, err error, failureType schema.FailureType) schema.IngestLifecycleEvent {
	if j.StartTime.IsZero() {
		j.StartTime = j.now()
	}
	event := schema.IngestLifecycleEvent{
		JobID:      j.ID,
		Kind:       j.Kind,
		Stage:      stage,
		HappenedAt: j.now().Unix(),
	}

	switch stage {
	case schema.StageProcessing:
		event.ProcessingStart = j.StartTime.UnixMilli()
	case schema.StageCompleted, schema.StageFailed:
		event.ProcessingStart = j.StartTime.UnixMilli()
		event.ProcessingEnd = j.now().UnixMilli()
	}

	if err != nil {
		event.Error = err.Error()
		event.FailureType = failureType
	}

	j.Lifecycle = append(j.Lifecycle, event)
	return event
}
