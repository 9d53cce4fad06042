// Package registry tracks sweep job state. It is the single source of truth
// for status queries and enforces the forward-only lifecycle state machine.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ColeMorton/trading-sub010/internal/metrics"
	"github.com/ColeMorton/trading-sub010/internal/models"
)

// TerminalHook is invoked exactly once per job, synchronously, after a
// terminal status has been recorded. Wiring installs the webhook notifier
// and broadcaster close here.
type TerminalHook func(job *models.Job)

// Store defines the job registry surface consumed by the executor and the
// HTTP layer.
type Store interface {
	Submit(spec models.GridSpec, webhookURL string, webhookHeaders map[string]string) (*models.Job, error)
	Get(id uuid.UUID) (*models.Job, error)
	RequestCancel(id uuid.UUID) error
	IsCancelRequested(id uuid.UUID) bool
	Transition(id uuid.UUID, next models.JobStatus, mutate func(job *models.Job)) (*models.Job, error)
	Update(id uuid.UUID, mutate func(job *models.Job)) (*models.Job, error)
	Running() []*models.Job
}

// entry wraps one job with its own lock so jobs never contend with each other
type entry struct {
	mu              sync.Mutex
	job             *models.Job
	cancelRequested bool
}

// Registry is an in-memory, concurrency-safe job store
type Registry struct {
	mu           sync.RWMutex
	jobs         map[uuid.UUID]*entry
	terminalHook TerminalHook
	logger       *logrus.Logger
}

// NewRegistry creates a new job registry
func NewRegistry(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		jobs:   make(map[uuid.UUID]*entry),
		logger: logger,
	}
}

// SetTerminalHook installs the hook invoked after each terminal transition
func (r *Registry) SetTerminalHook(hook TerminalHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminalHook = hook
}

// Submit validates the grid specification and creates a pending job.
// Validation failures reject the submission before any job record exists.
func (r *Registry) Submit(spec models.GridSpec, webhookURL string, webhookHeaders map[string]string) (*models.Job, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:             uuid.New(),
		Status:         models.JobStatusPending,
		Grid:           spec.Clone(),
		CreatedAt:      time.Now().UTC(),
		WebhookURL:     webhookURL,
		WebhookHeaders: webhookHeaders,
	}

	r.mu.Lock()
	r.jobs[job.ID] = &entry{job: job}
	r.mu.Unlock()

	metrics.RecordJobSubmitted()
	r.logger.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"instruments": len(spec.Instruments),
		"strategies":  len(spec.Strategies),
	}).Info("Sweep job submitted")

	return job.Clone(), nil
}

// Get retrieves a snapshot of a job
func (r *Registry) Get(id uuid.UUID) (*models.Job, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone(), nil
}

// RequestCancel sets the cooperative cancellation flag. It is idempotent
// and a no-op once the job is terminal.
func (r *Registry) RequestCancel(id uuid.UUID) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()

	if e.job.Status.IsTerminal() || e.cancelRequested {
		e.mu.Unlock()
		return nil
	}
	e.cancelRequested = true

	// A pending job has no executor observing the flag yet, so it is
	// cancelled directly here.
	var snapshot *models.Job
	if e.job.Status == models.JobStatusPending {
		snapshot = r.applyTransition(e, models.JobStatusCancelled, nil)
	}
	e.mu.Unlock()

	if snapshot != nil {
		r.fireTerminalHook(snapshot)
	}

	r.logger.WithField("job_id", id).Info("Job cancellation requested")
	return nil
}

// IsCancelRequested reports whether cancellation was requested for the job
func (r *Registry) IsCancelRequested(id uuid.UUID) bool {
	e, err := r.entry(id)
	if err != nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelRequested
}

// Transition moves a job to the next lifecycle state, applying mutate under
// the entry lock. Only the executor calls this. Terminal transitions fire
// the terminal hook after the new status is recorded.
func (r *Registry) Transition(id uuid.UUID, next models.JobStatus, mutate func(job *models.Job)) (*models.Job, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	current := e.job.Status
	if !current.CanTransitionTo(next) {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, current, next)
	}
	snapshot := r.applyTransition(e, next, mutate)
	e.mu.Unlock()

	if next.IsTerminal() {
		r.fireTerminalHook(snapshot)
	}
	return snapshot, nil
}

// applyTransition mutates the job under an already-held entry lock.
func (r *Registry) applyTransition(e *entry, next models.JobStatus, mutate func(job *models.Job)) *models.Job {
	now := time.Now().UTC()
	e.job.Status = next

	switch next {
	case models.JobStatusRunning:
		e.job.StartedAt = &now
		metrics.UpdateRunningJobs(1)
	case models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelled:
		e.job.CompletedAt = &now
		metrics.UpdateRunningJobs(-1)
		metrics.RecordJobTerminal(string(next))
	}
	if next == models.JobStatusCompleted {
		e.job.ProgressPercent = 100
	}

	if mutate != nil {
		mutate(e.job)
	}

	snapshot := e.job.Clone()

	r.logger.WithFields(logrus.Fields{
		"job_id": e.job.ID,
		"status": next,
	}).Info("Job status transition")

	return snapshot
}

// fireTerminalHook runs the installed hook outside any entry lock so the
// hook can make blocking calls (webhook delivery, broadcaster close).
func (r *Registry) fireTerminalHook(job *models.Job) {
	r.mu.RLock()
	hook := r.terminalHook
	r.mu.RUnlock()
	if hook != nil {
		hook(job)
	}
}

// Update applies a non-transition mutation (progress, counters, webhook
// outcome) under the entry lock and returns a fresh snapshot.
func (r *Registry) Update(id uuid.UUID, mutate func(job *models.Job)) (*models.Job, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	mutate(e.job)
	return e.job.Clone(), nil
}

// Running returns snapshots of all non-terminal jobs
func (r *Registry) Running() []*models.Job {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.jobs))
	for _, e := range r.jobs {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var running []*models.Job
	for _, e := range entries {
		e.mu.Lock()
		if !e.job.Status.IsTerminal() {
			running = append(running, e.job.Clone())
		}
		e.mu.Unlock()
	}
	return running
}

func (r *Registry) entry(id uuid.UUID) (*entry, error) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, models.ErrNotFound
	}
	return e, nil
}
