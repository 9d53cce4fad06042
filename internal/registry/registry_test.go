package registry

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColeMorton/trading-sub010/internal/models"
)

func newTestRegistry() *Registry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewRegistry(logger)
}

func validGrid() models.GridSpec {
	return models.GridSpec{
		Instruments: []string{"BTC-USD"},
		Strategies: []models.StrategyGrid{
			{
				Type: models.StrategySMACross,
				Fast: models.ParamRange{Min: 5, Max: 10, Step: 5},
				Slow: models.ParamRange{Min: 20, Max: 30, Step: 10},
			},
		},
	}
}

func TestSubmitCreatesPendingJob(t *testing.T) {
	r := newTestRegistry()

	job, err := r.Submit(validGrid(), "", nil)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Zero(t, job.ProgressPercent)
	assert.False(t, job.CreatedAt.IsZero())
}

func TestSubmitRejectsInvalidGrid(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name   string
		mutate func(*models.GridSpec)
	}{
		{"no instruments", func(g *models.GridSpec) { g.Instruments = nil }},
		{"no strategies", func(g *models.GridSpec) { g.Strategies = nil }},
		{"unknown strategy type", func(g *models.GridSpec) { g.Strategies[0].Type = "donchian" }},
		{"zero step", func(g *models.GridSpec) { g.Strategies[0].Fast.Step = 0 }},
		{"min above max", func(g *models.GridSpec) { g.Strategies[0].Fast.Min = 50 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := validGrid()
			tt.mutate(&grid)

			_, err := r.Submit(grid, "", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestGetUnknownJob(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Get(uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestTransitionLifecycle(t *testing.T) {
	r := newTestRegistry()

	job, err := r.Submit(validGrid(), "", nil)
	require.NoError(t, err)

	running, err := r.Transition(job.ID, models.JobStatusRunning, nil)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, running.Status)
	require.NotNil(t, running.StartedAt)

	done, err := r.Transition(job.ID, models.JobStatusCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Equal(t, 100, done.ProgressPercent)
	require.NotNil(t, done.CompletedAt)
}

func TestTransitionRejectsBackwardMoves(t *testing.T) {
	r := newTestRegistry()

	job, err := r.Submit(validGrid(), "", nil)
	require.NoError(t, err)

	_, err = r.Transition(job.ID, models.JobStatusRunning, nil)
	require.NoError(t, err)
	_, err = r.Transition(job.ID, models.JobStatusCompleted, nil)
	require.NoError(t, err)

	for _, next := range []models.JobStatus{
		models.JobStatusPending,
		models.JobStatusRunning,
		models.JobStatusFailed,
		models.JobStatusCancelled,
	} {
		_, err = r.Transition(job.ID, next, nil)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	}
}

func TestTransitionRejectsPendingToCompleted(t *testing.T) {
	r := newTestRegistry()

	job, err := r.Submit(validGrid(), "", nil)
	require.NoError(t, err)

	_, err = r.Transition(job.ID, models.JobStatusCompleted, nil)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestRequestCancelPendingJob(t *testing.T) {
	r := newTestRegistry()

	var hooked []*models.Job
	r.SetTerminalHook(func(job *models.Job) {
		hooked = append(hooked, job)
	})

	job, err := r.Submit(validGrid(), "", nil)
	require.NoError(t, err)

	require.NoError(t, r.RequestCancel(job.ID))

	got, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, got.Status)

	require.Len(t, hooked, 1)
	assert.Equal(t, models.JobStatusCancelled, hooked[0].Status)
}

func TestRequestCancelIsIdempotent(t *testing.T) {
	r := newTestRegistry()

	job, err := r.Submit(validGrid(), "", nil)
	require.NoError(t, err)
	_, err = r.Transition(job.ID, models.JobStatusRunning, nil)
	require.NoError(t, err)

	require.NoError(t, r.RequestCancel(job.ID))
	require.NoError(t, r.RequestCancel(job.ID))
	assert.True(t, r.IsCancelRequested(job.ID))

	// running jobs stay running until the executor observes the flag
	got, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, got.Status)
}

func TestRequestCancelAfterTerminalIsNoOp(t *testing.T) {
	r := newTestRegistry()

	hookCalls := 0
	r.SetTerminalHook(func(job *models.Job) { hookCalls++ })

	job, err := r.Submit(validGrid(), "", nil)
	require.NoError(t, err)
	_, err = r.Transition(job.ID, models.JobStatusRunning, nil)
	require.NoError(t, err)
	_, err = r.Transition(job.ID, models.JobStatusCompleted, nil)
	require.NoError(t, err)

	require.NoError(t, r.RequestCancel(job.ID))

	got, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 1, hookCalls)
}

func TestTerminalHookReceivesSnapshot(t *testing.T) {
	r := newTestRegistry()

	var hooked *models.Job
	r.SetTerminalHook(func(job *models.Job) { hooked = job })

	job, err := r.Submit(validGrid(), "", nil)
	require.NoError(t, err)
	_, err = r.Transition(job.ID, models.JobStatusRunning, nil)
	require.NoError(t, err)
	_, err = r.Transition(job.ID, models.JobStatusFailed, func(j *models.Job) {
		j.ErrorMessage = "no successful evaluations"
	})
	require.NoError(t, err)

	require.NotNil(t, hooked)
	assert.Equal(t, models.JobStatusFailed, hooked.Status)
	assert.Equal(t, "no successful evaluations", hooked.ErrorMessage)
}

func TestUpdateProgress(t *testing.T) {
	r := newTestRegistry()

	job, err := r.Submit(validGrid(), "", nil)
	require.NoError(t, err)

	updated, err := r.Update(job.ID, func(j *models.Job) {
		j.TotalCombinations = 40
		j.CompletedCount = 10
		j.ProgressPercent = 25
	})
	require.NoError(t, err)
	assert.Equal(t, 25, updated.ProgressPercent)
	assert.Equal(t, 10, updated.CompletedCount)
}

func TestRunningExcludesTerminalJobs(t *testing.T) {
	r := newTestRegistry()

	a, err := r.Submit(validGrid(), "", nil)
	require.NoError(t, err)
	b, err := r.Submit(validGrid(), "", nil)
	require.NoError(t, err)

	_, err = r.Transition(a.ID, models.JobStatusRunning, nil)
	require.NoError(t, err)
	_, err = r.Transition(b.ID, models.JobStatusRunning, nil)
	require.NoError(t, err)
	_, err = r.Transition(b.ID, models.JobStatusCompleted, nil)
	require.NoError(t, err)

	running := r.Running()
	require.Len(t, running, 1)
	assert.Equal(t, a.ID, running[0].ID)
}

func TestConcurrentUpdatesAreSafe(t *testing.T) {
	r := newTestRegistry()

	job, err := r.Submit(validGrid(), "", nil)
	require.NoError(t, err)
	_, err = r.Transition(job.ID, models.JobStatusRunning, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Update(job.ID, func(j *models.Job) {
				j.CompletedCount++
			})
		}()
	}
	wg.Wait()

	got, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 32, got.CompletedCount)
}
