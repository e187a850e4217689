package schema

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUploadTransport            = errors.New("upload transport error")
	ErrUnsupportedMediaType       = errors.New("unsupported media type")
	ErrPayloadTooLarge            = errors.New("payload too large")
	ErrMetadataStripFailed        = errors.New("metadata strip failed")
	ErrUnsupportedStoredMediaType = errors.New("unsupported stored media type")
	ErrUnsupportedEmbedHost       = errors.New("unsupported embed host")
)

// IngestError is returned for every failure in the ingest taxonomy. Kind is
// one of the sentinels above; Err carries an optional underlying cause.
type IngestError struct {
	Kind   error
	Op     string
	Detail string
	Status int
	Err    error
}

func (e *IngestError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IngestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// FailureType classifies the error for lifecycle events.
func (e *IngestError) FailureType() FailureType {
	if e.Status >= 400 && e.Status < 500 {
		return FailureTypeValidation
	}
	return FailureTypePermanent
}

// NewValidationError builds a 400-class IngestError.
func NewValidationError(kind error, op, detail string) *IngestError {
	return &IngestError{Kind: kind, Op: op, Detail: detail, Status: http.StatusBadRequest}
}

// NewProcessingError builds a 500-class IngestError.
func NewProcessingError(kind error, op, detail string, cause error) *IngestError {
	return &IngestError{Kind: kind, Op: op, Detail: detail, Status: http.StatusInternalServerError, Err: cause}
}

// ClassifyError maps any error onto a FailureType. Errors outside the ingest
// taxonomy (decode, network, storage) are treated as retryable.
func ClassifyError(err error) FailureType {
	if err == nil {
		return ""
	}
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.FailureType()
	}
	return FailureTypeRetryable
}
