package query

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ColeMorton/trading-sub010/internal/models"
	"github.com/ColeMorton/trading-sub010/internal/repository"
)

type mockRunRepo struct{ mock.Mock }

func (m *mockRunRepo) Create(ctx context.Context, run *models.SweepRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SweepRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SweepRun), args.Error(1)
}

func (m *mockRunRepo) List(ctx context.Context, limit int) ([]*models.SweepRun, int, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]*models.SweepRun)
	return runs, args.Int(1), args.Error(2)
}

type mockResultRepo struct{ mock.Mock }

func (m *mockResultRepo) InsertBatch(ctx context.Context, results []*models.SweepResult) error {
	return m.Called(ctx, results).Error(0)
}

func (m *mockResultRepo) GetByRun(ctx context.Context, runID uuid.UUID, filter repository.ResultFilter) ([]*models.SweepResult, int, error) {
	args := m.Called(ctx, runID, filter)
	results, _ := args.Get(0).([]*models.SweepResult)
	return results, args.Int(1), args.Error(2)
}

func (m *mockResultRepo) GetRanked(ctx context.Context, runID uuid.UUID, instrumentID, strategyTypeID int64) ([]*models.SweepResult, error) {
	args := m.Called(ctx, runID, instrumentID, strategyTypeID)
	results, _ := args.Get(0).([]*models.SweepResult)
	return results, args.Error(1)
}

func (m *mockResultRepo) GetPairs(ctx context.Context, runID uuid.UUID) ([]repository.ResultPair, error) {
	args := m.Called(ctx, runID)
	pairs, _ := args.Get(0).([]repository.ResultPair)
	return pairs, args.Error(1)
}

type mockSelectionRepo struct{ mock.Mock }

func (m *mockSelectionRepo) Upsert(ctx context.Context, selection *models.BestSelection) error {
	return m.Called(ctx, selection).Error(0)
}

func (m *mockSelectionRepo) GetBest(ctx context.Context, runID uuid.UUID, instrument string) (*models.BestSelection, error) {
	args := m.Called(ctx, runID, instrument)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BestSelection), args.Error(1)
}

func (m *mockSelectionRepo) GetBestPerInstrument(ctx context.Context, runID uuid.UUID) ([]*models.BestSelection, error) {
	args := m.Called(ctx, runID)
	selections, _ := args.Get(0).([]*models.BestSelection)
	return selections, args.Error(1)
}

type facadeMocks struct {
	runs       *mockRunRepo
	results    *mockResultRepo
	selections *mockSelectionRepo
}

func newTestService() (*Service, *facadeMocks) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	m := &facadeMocks{
		runs:       &mockRunRepo{},
		results:    &mockResultRepo{},
		selections: &mockSelectionRepo{},
	}
	svc := NewService(&repository.Repositories{
		SweepRun:      m.runs,
		SweepResult:   m.results,
		BestSelection: m.selections,
	}, logger)
	return svc, m
}

func TestListRunsReturnsPage(t *testing.T) {
	svc, m := newTestService()
	runs := []*models.SweepRun{{ID: uuid.New()}, {ID: uuid.New()}}
	m.runs.On("List", mock.Anything, 2).Return(runs, 9, nil)

	page, err := svc.ListRuns(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 9, page.Total)
	assert.Equal(t, 2, page.Limit)
	m.runs.AssertExpectations(t)
}

func TestListRunsClampsLimit(t *testing.T) {
	svc, m := newTestService()
	m.runs.On("List", mock.Anything, defaultLimit).Return(nil, 0, nil).Once()
	m.runs.On("List", mock.Anything, maxLimit).Return(nil, 0, nil).Once()

	page, err := svc.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)

	_, err = svc.ListRuns(context.Background(), 50000)
	require.NoError(t, err)
	m.runs.AssertExpectations(t)
}

func TestGetResultsUnknownRun(t *testing.T) {
	svc, m := newTestService()
	runID := uuid.New()
	m.runs.On("GetByID", mock.Anything, runID).Return(nil, models.ErrNotFound)

	_, err := svc.GetResults(context.Background(), runID, "", 10, 0)
	assert.ErrorIs(t, err, models.ErrNotFound)
	m.results.AssertNotCalled(t, "GetByRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetResultsPassesFilterAndPagination(t *testing.T) {
	svc, m := newTestService()
	runID := uuid.New()
	m.runs.On("GetByID", mock.Anything, runID).Return(&models.SweepRun{ID: runID}, nil)

	expected := repository.ResultFilter{Instrument: "BTC-USD", Limit: 25, Offset: 50}
	m.results.On("GetByRun", mock.Anything, runID, expected).
		Return([]*models.SweepResult{{ID: 1}}, 120, nil)

	page, err := svc.GetResults(context.Background(), runID, "BTC-USD", 25, 50)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 120, page.Total)
	assert.Equal(t, 25, page.Limit)
	assert.Equal(t, 50, page.Offset)
	m.results.AssertExpectations(t)
}

func TestGetResultsEmptyPageIsNotNil(t *testing.T) {
	svc, m := newTestService()
	runID := uuid.New()
	m.runs.On("GetByID", mock.Anything, runID).Return(&models.SweepRun{ID: runID}, nil)
	m.results.On("GetByRun", mock.Anything, runID, mock.Anything).Return(nil, 0, nil)

	page, err := svc.GetResults(context.Background(), runID, "", 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestGetBestWithAndWithoutInstrument(t *testing.T) {
	svc, m := newTestService()
	runID := uuid.New()
	m.runs.On("GetByID", mock.Anything, runID).Return(&models.SweepRun{ID: runID}, nil)

	overall := &models.BestSelection{ID: 1, ConfidenceScore: 100}
	m.selections.On("GetBest", mock.Anything, runID, "").Return(overall, nil).Once()
	m.selections.On("GetBest", mock.Anything, runID, "ETH-USD").
		Return(&models.BestSelection{ID: 2}, nil).Once()

	got, err := svc.GetBest(context.Background(), runID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)

	got, err = svc.GetBest(context.Background(), runID, "ETH-USD")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ID)
	m.selections.AssertExpectations(t)
}

func TestGetBestPerInstrument(t *testing.T) {
	svc, m := newTestService()
	runID := uuid.New()
	m.runs.On("GetByID", mock.Anything, runID).Return(&models.SweepRun{ID: runID}, nil)
	m.selections.On("GetBestPerInstrument", mock.Anything, runID).
		Return([]*models.BestSelection{{ID: 1}, {ID: 2}}, nil)

	selections, err := svc.GetBestPerInstrument(context.Background(), runID)
	require.NoError(t, err)
	assert.Len(t, selections, 2)
}
