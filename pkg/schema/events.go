// pkg/schema/events.go
package schema

// IngestRequest is the job payload consumed by the worker. Exactly one of
// Path or EmbedURL is set.
type IngestRequest struct {
	ID         string `json:"id"`
	Path       string `json:"path,omitempty"`
	Filename   string `json:"filename,omitempty"`
	EmbedURL   string `json:"embed_url,omitempty"`
	Spoiler    bool   `json:"spoiler,omitempty"`
	AllowEmpty bool   `json:"allow_empty,omitempty"`
	HappenedAt int64  `json:"happened_at"`
}

type ProcessingStage string

const (
	StageValidation ProcessingStage = "validation"
	StageCollision  ProcessingStage = "collision"
	StageProcessing ProcessingStage = "processing"
	StageCompleted  ProcessingStage = "completed"
	StageFailed     ProcessingStage = "failed"
)

type FailureType string

const (
	FailureTypeRetryable  FailureType = "retryable"
	FailureTypePermanent  FailureType = "permanent"
	FailureTypeValidation FailureType = "validation"
)

type IngestLifecycleEvent struct {
	JobID           string          `json:"job_id"`
	Kind            string          `json:"kind"`
	Stage           ProcessingStage `json:"stage"`
	ProcessingStart int64           `json:"processing_start,omitempty"`
	ProcessingEnd   int64           `json:"processing_end,omitempty"`
	Error           string          `json:"error,omitempty"`
	FailureType     FailureType     `json:"failure_type,omitempty"`
	HappenedAt      int64           `json:"happened_at"`
}

type IngestDone struct {
	ID               string                 `json:"id"`
	Kind             string                 `json:"kind"`
	Artifact         *StoredArtifact        `json:"artifact,omitempty"`
	Reused           bool                   `json:"reused"`
	ProcessingTimeMs int64                  `json:"processing_time_ms"`
	Lifecycle        []IngestLifecycleEvent `json:"lifecycle,omitempty"`
	Error            string                 `json:"error,omitempty"`
	FailureType      FailureType            `json:"failure_type,omitempty"`
	HappenedAt       int64                  `json:"happened_at"`
}
