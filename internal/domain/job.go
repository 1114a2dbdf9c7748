package domain

import (
	"encoding/json"
	"time"
)

type JobKind string

const (
	JobKindEmailTriage JobKind = "email_triage"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// Job is the canonical async unit processed by the triage worker.
type Job struct {
	ID           string
	Kind         JobKind
	OwnerID      string
	Payload      json.RawMessage
	Status       JobStatus
	Result       json.RawMessage
	ErrorMessage string
	Attempts     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// QueueMessage is the transport format sent to queue backends.
type QueueMessage struct {
	JobID       string          `json:"job_id"`
	Kind        JobKind         `json:"kind"`
	OwnerID     string          `json:"owner_id"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	RequestedAt time.Time       `json:"requested_at"`
}

type JobListItem struct {
	JobID     string
	Kind      JobKind
	Status    JobStatus
	Emails    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type JobListFilter struct {
	OwnerID  string
	Status   JobStatus
	Page     int
	PageSize int
}

// TriagePayload is the payload of an email_triage job.
type TriagePayload struct {
	Emails        []EmailMessage `json:"emails"`
	SuggestTasks  bool           `json:"suggest_tasks"`
	RequestedByID string         `json:"requested_by_id,omitempty"`
}

// TriageResult is stored on the job once the worker is done.
type TriageResult struct {
	Items       []TriageItem `json:"items"`
	AIAvailable bool         `json:"ai_available"`
	CompletedAt time.Time    `json:"completed_at"`
}

type TriageItem struct {
	EmailID        string           `json:"email_id"`
	Classification Classification   `json:"classification"`
	Tasks          []TaskSuggestion `json:"tasks,omitempty"`
}
