package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ColeMorton/trading-sub010/internal/models"
)

// SweepRunRepository defines sweep run persistence
type SweepRunRepository interface {
	Create(ctx context.Context, run *models.SweepRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SweepRun, error)
	List(ctx context.Context, limit int) ([]*models.SweepRun, int, error)
}

// InstrumentRepository defines instrument reference data access
type InstrumentRepository interface {
	GetOrCreate(ctx context.Context, symbol string) (*models.Instrument, error)
	GetBySymbol(ctx context.Context, symbol string) (*models.Instrument, error)
}

// StrategyTypeRepository defines strategy type reference data access
type StrategyTypeRepository interface {
	GetOrCreate(ctx context.Context, name string) (*models.StrategyType, error)
}

// MetricTagRepository defines the metric classification vocabulary and links
type MetricTagRepository interface {
	GetOrCreate(ctx context.Context, name string) (*models.MetricTypeTag, error)
	Link(ctx context.Context, resultID, tagID int64) error
	GetTagsForResult(ctx context.Context, resultID int64) ([]*models.MetricTypeTag, error)
}

// ResultFilter narrows sweep result queries
type ResultFilter struct {
	Instrument string
	Limit      int
	Offset     int
}

// SweepResultRepository defines sweep result persistence
type SweepResultRepository interface {
	InsertBatch(ctx context.Context, results []*models.SweepResult) error
	GetByRun(ctx context.Context, runID uuid.UUID, filter ResultFilter) ([]*models.SweepResult, int, error)
	GetRanked(ctx context.Context, runID uuid.UUID, instrumentID, strategyTypeID int64) ([]*models.SweepResult, error)
	GetPairs(ctx context.Context, runID uuid.UUID) ([]ResultPair, error)
}

// ResultPair is one distinct (instrument, strategy type) present in a run
type ResultPair struct {
	InstrumentID   int64
	StrategyTypeID int64
}

// BestSelectionRepository defines curated selection persistence
type BestSelectionRepository interface {
	Upsert(ctx context.Context, selection *models.BestSelection) error
	GetBest(ctx context.Context, runID uuid.UUID, instrument string) (*models.BestSelection, error)
	GetBestPerInstrument(ctx context.Context, runID uuid.UUID) ([]*models.BestSelection, error)
}
