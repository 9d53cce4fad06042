// Package query is the read-side façade over the sweep result store.
package query

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ColeMorton/trading-sub010/internal/models"
	"github.com/ColeMorton/trading-sub010/internal/repository"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Page is the standard paginated list response. Total is the count of all
// matching rows, not the count returned, so clients can paginate.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Service answers result queries for runs, results and selections
type Service struct {
	runs       repository.SweepRunRepository
	results    repository.SweepResultRepository
	selections repository.BestSelectionRepository
	logger     *logrus.Logger
}

// NewService creates the query façade
func NewService(repos *repository.Repositories, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		runs:       repos.SweepRun,
		results:    repos.SweepResult,
		selections: repos.BestSelection,
		logger:     logger,
	}
}

// ListRuns returns the most recent runs, newest first
func (s *Service) ListRuns(ctx context.Context, limit int) (*Page[*models.SweepRun], error) {
	limit = clampLimit(limit)
	runs, total, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return &Page[*models.SweepRun]{Items: emptyNotNil(runs), Total: total, Limit: limit}, nil
}

// GetResults returns one page of a run's results ranked by score descending,
// optionally filtered to a single instrument.
func (s *Service) GetResults(ctx context.Context, runID uuid.UUID, instrument string, limit, offset int) (*Page[*models.SweepResult], error) {
	if _, err := s.runs.GetByID(ctx, runID); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	results, total, err := s.results.GetByRun(ctx, runID, repository.ResultFilter{
		Instrument: instrument,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching results for run %s: %w", runID, err)
	}
	return &Page[*models.SweepResult]{Items: emptyNotNil(results), Total: total, Limit: limit, Offset: offset}, nil
}

// GetBest returns the curated selection for a run. With an instrument it is
// that instrument's pick; without one it is the single overall-best row.
func (s *Service) GetBest(ctx context.Context, runID uuid.UUID, instrument string) (*models.BestSelection, error) {
	if _, err := s.runs.GetByID(ctx, runID); err != nil {
		return nil, err
	}
	return s.selections.GetBest(ctx, runID, instrument)
}

// GetBestPerInstrument returns one selection per instrument present in the run
func (s *Service) GetBestPerInstrument(ctx context.Context, runID uuid.UUID) ([]*models.BestSelection, error) {
	if _, err := s.runs.GetByID(ctx, runID); err != nil {
		return nil, err
	}
	selections, err := s.selections.GetBestPerInstrument(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("fetching selections for run %s: %w", runID, err)
	}
	return emptyNotNil(selections), nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// emptyNotNil keeps JSON list fields as [] instead of null
func emptyNotNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
