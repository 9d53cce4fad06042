package metrics

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
}

func TestRecordJobSubmitted(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordJobSubmitted()
	})
}

func TestRecordJobTerminal(t *testing.T) {
	InitRegistry()

	for _, status := range []string{"completed", "failed", "cancelled"} {
		assert.NotPanics(t, func() {
			RecordJobTerminal(status)
		})
	}
}

func TestRecordEvaluation(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordEvaluation("success", 0.02)
		RecordEvaluation("error", 0.01)
	})
}

func TestUpdateRunningJobs(t *testing.T) {
	InitRegistry()

	tests := []struct {
		name  string
		delta float64
	}{
		{"increment", 1},
		{"decrement", -1},
		{"zero", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdateRunningJobs(tt.delta)
			})
		})
	}
}

func TestRecordWebhookDelivery(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordWebhookDelivery("sent", 0.15)
		RecordWebhookDelivery("error", 10.0)
	})
}

func TestRecordSelection(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordSelection("top_3_all_match")
		RecordSelection("highest_score_fallback")
	})
}

func TestMetricsHandler(t *testing.T) {
	InitRegistry()

	handler := Handler()
	assert.NotNil(t, handler)
	assert.Implements(t, (*http.Handler)(nil), handler)
}

func BenchmarkRecordEvaluation(b *testing.B) {
	InitRegistry()

	for i := 0; i < b.N; i++ {
		RecordEvaluation("success", 0.02)
	}
}
