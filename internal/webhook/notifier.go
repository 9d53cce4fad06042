// Package webhook delivers terminal job notifications. Delivery is a single
// POST attempt; the outcome is recorded on the job, never retried.
package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/ColeMorton/trading-sub010/internal/metrics"
	"github.com/ColeMorton/trading-sub010/internal/models"
)

// Delivery records the outcome of one webhook attempt
type Delivery struct {
	AttemptedAt time.Time
	StatusCode  int
	Err         error
}

// Payload is the JSON body posted on terminal state
type Payload struct {
	Job           *models.Job    `json:"job"`
	RunID         *uuid.UUID     `json:"run_id,omitempty"`
	ResultSummary *ResultSummary `json:"result_summary,omitempty"`
}

// ResultSummary is the compact per-run digest attached when a run exists
type ResultSummary struct {
	TotalCombinations int      `json:"total_combinations"`
	CompletedCount    int      `json:"completed_count"`
	FailedCount       int      `json:"failed_count"`
	PersistedResults  int      `json:"persisted_results"`
	Instruments       []string `json:"instruments,omitempty"`

	// BestPerInstrument is attached only on completed jobs, after the
	// selection pass has run.
	BestPerInstrument []*models.BestSelection `json:"best_per_instrument,omitempty"`
}

// Notifier posts terminal job notifications over HTTP
type Notifier struct {
	client *retryablehttp.Client
	logger *logrus.Logger
}

// NewNotifier creates a notifier with the given request timeout. The
// underlying client is configured for exactly one attempt.
func NewNotifier(timeout time.Duration, logger *logrus.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}

	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = timeout
	client.RetryMax = 0
	client.Logger = log.New(io.Discard, "", 0)

	return &Notifier{client: client, logger: logger}
}

// Notify delivers the terminal payload to the job's webhook URL with any
// submitted custom headers attached verbatim. It returns the delivery
// record; a non-2xx response is reported through StatusCode, not as err.
func (n *Notifier) Notify(job *models.Job, summary *ResultSummary) Delivery {
	delivery := Delivery{AttemptedAt: time.Now().UTC()}
	start := time.Now()

	body, err := json.Marshal(Payload{
		Job:           job,
		RunID:         job.RunID,
		ResultSummary: summary,
	})
	if err != nil {
		delivery.Err = fmt.Errorf("marshaling webhook payload: %w", err)
		metrics.RecordWebhookDelivery("error", time.Since(start).Seconds())
		return delivery
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, job.WebhookURL, bytes.NewReader(body))
	if err != nil {
		delivery.Err = fmt.Errorf("building webhook request: %w", err)
		metrics.RecordWebhookDelivery("error", time.Since(start).Seconds())
		return delivery
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range job.WebhookHeaders {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		delivery.Err = err
		metrics.RecordWebhookDelivery("error", time.Since(start).Seconds())
		n.logger.WithFields(logrus.Fields{
			"job_id": job.ID,
			"url":    job.WebhookURL,
		}).WithError(err).Warn("Webhook delivery failed")
		return delivery
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	delivery.StatusCode = resp.StatusCode
	metrics.RecordWebhookDelivery("sent", time.Since(start).Seconds())
	n.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"status": resp.StatusCode,
	}).Info("Webhook delivered")
	return delivery
}
