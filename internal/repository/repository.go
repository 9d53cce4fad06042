package repository

import (
	"fmt"

	"github.com/ColeMorton/trading-sub010/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	SweepRun      SweepRunRepository
	Instrument    InstrumentRepository
	StrategyType  StrategyTypeRepository
	MetricTag     MetricTagRepository
	SweepResult   SweepResultRepository
	BestSelection BestSelectionRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		SweepRun:      NewPostgresSweepRunRepository(db),
		Instrument:    NewPostgresInstrumentRepository(db),
		StrategyType:  NewPostgresStrategyTypeRepository(db),
		MetricTag:     NewPostgresMetricTagRepository(db),
		SweepResult:   NewPostgresSweepResultRepository(db),
		BestSelection: NewPostgresBestSelectionRepository(db),
	}, nil
}
