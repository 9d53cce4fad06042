package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a sweep job
type JobStatus string

// Job lifecycle states. Transitions are forward-only:
// pending -> running -> {completed, failed}; pending/running -> cancelled.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status is a terminal state
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the forward-only state machine allows
// moving from s to next.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusCancelled || next == JobStatusFailed
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed || next == JobStatusCancelled
	}
	return false
}

// Job represents one parameter-sweep invocation
type Job struct {
	ID                uuid.UUID         `json:"id"`
	Status            JobStatus         `json:"status"`
	Grid              GridSpec          `json:"parameters"`
	ProgressPercent   int               `json:"progress_percent"`
	CreatedAt         time.Time         `json:"created_at"`
	StartedAt         *time.Time        `json:"started_at,omitempty"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	ErrorMessage      string            `json:"error_message,omitempty"`
	RunID             *uuid.UUID        `json:"run_id,omitempty"`
	TotalCombinations int               `json:"total_combinations"`
	CompletedCount    int               `json:"completed_count"`
	FailedCount       int               `json:"failed_count"`
	WebhookURL        string            `json:"webhook_url,omitempty"`
	WebhookHeaders    map[string]string `json:"webhook_headers,omitempty"`
	WebhookSentAt     *time.Time        `json:"webhook_sent_at,omitempty"`
	WebhookStatus     int               `json:"webhook_status,omitempty"`
}

// Clone returns a deep copy safe to hand out across goroutines
func (j *Job) Clone() *Job {
	c := *j
	if j.RunID != nil {
		runID := *j.RunID
		c.RunID = &runID
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.WebhookSentAt != nil {
		t := *j.WebhookSentAt
		c.WebhookSentAt = &t
	}
	if j.WebhookHeaders != nil {
		c.WebhookHeaders = make(map[string]string, len(j.WebhookHeaders))
		for k, v := range j.WebhookHeaders {
			c.WebhookHeaders[k] = v
		}
	}
	c.Grid = j.Grid.Clone()
	return &c
}

// ProgressEvent is a single checkpoint on a job's progress stream
type ProgressEvent struct {
	Percent   int       `json:"percent"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Terminal  bool      `json:"terminal"`
	Status    JobStatus `json:"status,omitempty"`
}
