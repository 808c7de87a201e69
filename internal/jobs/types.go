package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeClassifyStatement parses and classifies one uploaded statement.
	JobTypeClassifyStatement JobType = "classify_statement"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed. Failed jobs are not retried;
	// the user uploads the statement again.
	JobStatusFailed JobStatus = "failed"
)

// ClassifyStatementJob represents one statement upload being turned into
// a session's classified set.
type ClassifyStatementJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Type is always JobTypeClassifyStatement for now.
	Type JobType `json:"type"`

	// SessionID is the session whose data the job replaces on success.
	SessionID string `json:"session_id"`

	// Filename is the uploaded file name or source URI, for display.
	Filename string `json:"filename,omitempty"`

	// Source is a path or gs:// URI to load the statement from when Raw is empty.
	Source string `json:"source,omitempty"`

	// Encoding is the statement's character encoding; empty means the default.
	Encoding string `json:"encoding,omitempty"`

	// Raw holds uploaded statement bytes. Never serialized or stored.
	Raw []byte `json:"-"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Progress is the classified fraction, from 0 to 1.
	Progress float64 `json:"progress"`

	// Records is the number of transactions in the statement, once parsed.
	Records int `json:"records"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// ErrorKind is the failure class (parse, classification, oracle,
	// configuration) when known.
	ErrorKind string `json:"error_kind,omitempty"`
}

// Publisher enqueues jobs.
type Publisher interface {
	// PublishClassifyStatement enqueues a statement classification job.
	PublishClassifyStatement(ctx context.Context, job *ClassifyStatementJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer runs queued jobs.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// ProgressFunc reports the completed fraction of a running job.
type ProgressFunc func(fraction float64)

// JobHandler processes a job. It may set job.Records; a returned error
// marks the job failed.
type JobHandler func(ctx context.Context, job *ClassifyStatementJob, report ProgressFunc) error

// JobStore keeps job state for status polling.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ClassifyStatementJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ClassifyStatementJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ClassifyStatementJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error

	// UpdateProgress records the completed fraction of a running job.
	UpdateProgress(ctx context.Context, jobID string, fraction float64) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// SessionID filters jobs by session.
	SessionID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
