package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColeMorton/trading-sub010/internal/models"
)

func newTestNotifier() *Notifier {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewNotifier(2*time.Second, logger)
}

func terminalJob(url string) *models.Job {
	runID := uuid.New()
	return &models.Job{
		ID:         uuid.New(),
		Status:     models.JobStatusCompleted,
		RunID:      &runID,
		WebhookURL: url,
		WebhookHeaders: map[string]string{
			"X-Signature": "abc123",
		},
	}
}

func TestNotifyPostsTerminalPayload(t *testing.T) {
	var received Payload
	var gotSignature, gotContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Signature")
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	job := terminalJob(server.URL)
	delivery := newTestNotifier().Notify(job, &ResultSummary{
		TotalCombinations: 40,
		CompletedCount:    40,
		PersistedResults:  38,
	})

	require.NoError(t, delivery.Err)
	assert.Equal(t, http.StatusOK, delivery.StatusCode)
	assert.False(t, delivery.AttemptedAt.IsZero())

	// custom headers attached verbatim
	assert.Equal(t, "abc123", gotSignature)
	assert.Equal(t, "application/json", gotContentType)

	require.NotNil(t, received.Job)
	assert.Equal(t, job.ID, received.Job.ID)
	assert.Equal(t, models.JobStatusCompleted, received.Job.Status)
	require.NotNil(t, received.RunID)
	assert.Equal(t, *job.RunID, *received.RunID)
	require.NotNil(t, received.ResultSummary)
	assert.Equal(t, 38, received.ResultSummary.PersistedResults)
}

func TestNotifyRecordsNon2xxStatusWithoutError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	delivery := newTestNotifier().Notify(terminalJob(server.URL), nil)

	require.NoError(t, delivery.Err)
	assert.Equal(t, http.StatusBadRequest, delivery.StatusCode)
}

func TestNotifyMakesExactlyOneAttempt(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	delivery := newTestNotifier().Notify(terminalJob(server.URL), nil)

	// a 500 is normally retryable, but delivery policy is one shot
	assert.Equal(t, int64(1), attempts.Load())
	assert.Equal(t, http.StatusInternalServerError, delivery.StatusCode)
}

func TestNotifyUnreachableTargetReturnsError(t *testing.T) {
	delivery := newTestNotifier().Notify(terminalJob("http://127.0.0.1:1/hook"), nil)

	require.Error(t, delivery.Err)
	assert.Zero(t, delivery.StatusCode)
	assert.False(t, delivery.AttemptedAt.IsZero())
}
