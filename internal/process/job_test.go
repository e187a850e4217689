package process

import (
	"errors"
	"testing"
	"time"

	"github.com/tendant/simple-mediaboard/pkg/schema"
)

func fixedClock(t0 time.Time, step time.Duration) func() time.Time {
	now := t0
	return func() time.Time {
		cur := now
		now = now.Add(step)
		return cur
	}
}

func TestNewJobIsPending(t *testing.T) {
	job := NewJob("upload", "job-1")

	if job.Kind != "upload" || job.ID != "job-1" {
		t.Fatalf("unexpected job identity: %+v", job)
	}
	if job.Status != JobStatusPending {
		t.Fatalf("job status not pending: %v", job.Status)
	}
	if job.Duration() != 0 {
		t.Fatalf("duration before start: %d", job.Duration())
	}
}

func TestJobLifecycleSuccess(t *testing.T) {
	job := NewJob("upload", "job-2")
	job.now = fixedClock(time.UnixMilli(1_700_000_000_000), 10*time.Millisecond)

	job.Enter(schema.StageValidation)
	if job.Status != JobStatusValidating {
		t.Fatalf("status after validation: %v", job.Status)
	}
	job.Enter(schema.StageCollision)
	processing := job.Enter(schema.StageProcessing)
	if processing.ProcessingStart != 1_700_000_000_000 {
		t.Fatalf("processing start: %d", processing.ProcessingStart)
	}
	done := job.Succeed()

	if job.Status != JobStatusSucceeded {
		t.Fatalf("status: %v", job.Status)
	}
	if done.ProcessingEnd <= done.ProcessingStart {
		t.Fatalf("end %d not after start %d", done.ProcessingEnd, done.ProcessingStart)
	}

	want := []schema.ProcessingStage{schema.StageValidation, schema.StageCollision, schema.StageProcessing, schema.StageCompleted}
	if len(job.Lifecycle) != len(want) {
		t.Fatalf("lifecycle length: got %d want %d", len(job.Lifecycle), len(want))
	}
	for i, stage := range want {
		if job.Lifecycle[i].Stage != stage {
			t.Fatalf("lifecycle[%d] = %s, want %s", i, job.Lifecycle[i].Stage, stage)
		}
		if job.Lifecycle[i].JobID != "job-2" || job.Lifecycle[i].Kind != "upload" {
			t.Fatalf("lifecycle[%d] identity: %+v", i, job.Lifecycle[i])
		}
	}
}

func TestJobFailClassifiesError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want schema.FailureType
	}{
		{"validation", schema.NewValidationError(schema.ErrPayloadTooLarge, "validate", "too big"), schema.FailureTypeValidation},
		{"processing", schema.NewProcessingError(schema.ErrMetadataStripFailed, "execute", "status 1", nil), schema.FailureTypePermanent},
		{"transient", errors.New("connection refused"), schema.FailureTypeRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob("upload", "job-3")
			event := job.Fail(tt.err)

			if job.Status != JobStatusFailed {
				t.Fatalf("job status not failed: %v", job.Status)
			}
			if job.FailureType != tt.want || event.FailureType != tt.want {
				t.Fatalf("failure type: job %q event %q, want %q", job.FailureType, event.FailureType, tt.want)
			}
			if job.Error == "" || event.Error != job.Error {
				t.Fatalf("error not recorded: job %q event %q", job.Error, event.Error)
			}
		})
	}
}

func TestJobDone(t *testing.T) {
	job := NewJob("embed", "job-4")
	job.now = fixedClock(time.Unix(1_700_000_000, 0), 250*time.Millisecond)
	job.Enter(schema.StageProcessing)
	job.Succeed()

	art := &schema.StoredArtifact{File: "<iframe></iframe>", Embed: true}
	done := job.Done(art, false)

	if done.ID != "job-4" || done.Kind != "embed" {
		t.Fatalf("unexpected identity: %+v", done)
	}
	if done.Artifact != art {
		t.Fatal("artifact not attached")
	}
	if done.ProcessingTimeMs <= 0 {
		t.Fatalf("processing time not recorded: %d", done.ProcessingTimeMs)
	}
	if len(done.Lifecycle) != 2 || done.Error != "" {
		t.Fatalf("unexpected lifecycle or error: %+v", done)
	}
}
