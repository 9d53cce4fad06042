package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ColeMorton/trading-sub010/internal/broadcast"
	"github.com/ColeMorton/trading-sub010/internal/models"
	"github.com/ColeMorton/trading-sub010/internal/registry"
	"github.com/ColeMorton/trading-sub010/internal/repository"
	"github.com/ColeMorton/trading-sub010/internal/webhook"
)

// NewTerminalHook builds the registry hook that runs on every terminal
// transition: it closes the job's progress topic with one final event, then
// makes the single webhook delivery attempt when a URL was supplied. The
// hook runs after the registry has recorded the terminal status, so a
// subscriber seeing the terminal event can never observe a stale status.
func NewTerminalHook(
	reg registry.Store,
	broadcaster broadcast.Publisher,
	notifier *webhook.Notifier,
	results repository.SweepResultRepository,
	selections repository.BestSelectionRepository,
	logger *logrus.Logger,
) registry.TerminalHook {
	if logger == nil {
		logger = logrus.New()
	}

	return func(job *models.Job) {
		broadcaster.Close(job.ID, terminalEvent(job))

		if job.WebhookURL == "" {
			return
		}

		delivery := notifier.Notify(job, resultSummary(job, results, selections))
		_, err := reg.Update(job.ID, func(j *models.Job) {
			j.WebhookSentAt = &delivery.AttemptedAt
			j.WebhookStatus = delivery.StatusCode
		})
		if err != nil {
			logger.WithField("job_id", job.ID).WithError(err).Warn("Recording webhook outcome failed")
		}
	}
}

func terminalEvent(job *models.Job) models.ProgressEvent {
	var message string
	switch job.Status {
	case models.JobStatusCompleted:
		message = fmt.Sprintf("%d/%d combinations evaluated", job.CompletedCount, job.TotalCombinations)
	case models.JobStatusCancelled:
		message = "job cancelled"
	default:
		message = job.ErrorMessage
	}
	return models.ProgressEvent{
		Percent:   job.ProgressPercent,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Terminal:  true,
		Status:    job.Status,
	}
}

// resultSummary builds the compact digest attached to webhook payloads.
// Jobs that never created a run carry none.
func resultSummary(job *models.Job, results repository.SweepResultRepository, selections repository.BestSelectionRepository) *webhook.ResultSummary {
	if job.RunID == nil {
		return nil
	}
	summary := &webhook.ResultSummary{
		TotalCombinations: job.TotalCombinations,
		CompletedCount:    job.CompletedCount,
		FailedCount:       job.FailedCount,
		Instruments:       append([]string(nil), job.Grid.Instruments...),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, total, err := results.GetByRun(ctx, *job.RunID, repository.ResultFilter{Limit: 1}); err == nil {
		summary.PersistedResults = total
	}
	if job.Status == models.JobStatusCompleted {
		if best, err := selections.GetBestPerInstrument(ctx, *job.RunID); err == nil {
			summary.BestPerInstrument = best
		}
	}
	return summary
}
