package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SweepRun groups all results produced by one job execution
type SweepRun struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	JobID        uuid.UUID       `db:"job_id" json:"job_id"`
	GridSnapshot json.RawMessage `db:"grid_snapshot" json:"grid_snapshot"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Instrument is a reference entity created on first use
type Instrument struct {
	ID     int64  `db:"id" json:"id"`
	Symbol string `db:"symbol" json:"symbol"`
}

// StrategyType is a reference entity created on first use
type StrategyType struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// MetricTypeTag names a classification applied to results (many-to-many)
type MetricTypeTag struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// SweepResult is one evaluated parameter combination.
//
// The headline metrics used for ranking and selection are first-class
// columns; the remaining performance fields travel as an opaque JSON bag.
type SweepResult struct {
	ID             int64      `db:"id" json:"id"`
	RunID          uuid.UUID  `db:"run_id" json:"run_id"`
	InstrumentID   int64      `db:"instrument_id" json:"instrument_id"`
	StrategyTypeID int64      `db:"strategy_type_id" json:"strategy_type_id"`
	Instrument     string     `db:"-" json:"instrument,omitempty"`
	StrategyType   string     `db:"-" json:"strategy_type,omitempty"`

	FastPeriod   int  `db:"fast_period" json:"fast_period"`
	SlowPeriod   int  `db:"slow_period" json:"slow_period"`
	SignalPeriod *int `db:"signal_period" json:"signal_period,omitempty"`

	Score          float64 `db:"score" json:"score"`
	SharpeRatio    float64 `db:"sharpe_ratio" json:"sharpe_ratio"`
	TotalReturnPct float64 `db:"total_return_pct" json:"total_return_pct"`
	WinRatePct     float64 `db:"win_rate_pct" json:"win_rate_pct"`
	TotalTrades    int     `db:"total_trades" json:"total_trades"`
	MaxDrawdownPct float64 `db:"max_drawdown_pct" json:"max_drawdown_pct"`
	ProfitFactor   float64 `db:"profit_factor" json:"profit_factor"`

	Metrics   json.RawMessage `db:"metrics" json:"metrics,omitempty"`
	TagNames  []string        `db:"-" json:"tags,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// ParamKey returns the parameter tuple identity used for uniqueness within
// a (run, instrument, strategy) scope.
func (r *SweepResult) ParamKey() string {
	signal := -1
	if r.SignalPeriod != nil {
		signal = *r.SignalPeriod
	}
	return fmt.Sprintf("%d/%d/%d", r.FastPeriod, r.SlowPeriod, signal)
}

// SameParams reports whether two results share an identical parameter tuple
func (r *SweepResult) SameParams(other *SweepResult) bool {
	if r.FastPeriod != other.FastPeriod || r.SlowPeriod != other.SlowPeriod {
		return false
	}
	if (r.SignalPeriod == nil) != (other.SignalPeriod == nil) {
		return false
	}
	if r.SignalPeriod != nil && *r.SignalPeriod != *other.SignalPeriod {
		return false
	}
	return true
}

// BestSelection is the curated pick for one (run, instrument, strategy type).
// A denormalized snapshot of the winning parameters and headline metrics is
// kept so readers never need a join to reconstruct history.
type BestSelection struct {
	ID               int64     `db:"id" json:"id"`
	RunID            uuid.UUID `db:"run_id" json:"run_id"`
	InstrumentID     int64     `db:"instrument_id" json:"instrument_id"`
	StrategyTypeID   int64     `db:"strategy_type_id" json:"strategy_type_id"`
	Instrument       string    `db:"-" json:"instrument,omitempty"`
	StrategyType     string    `db:"-" json:"strategy_type,omitempty"`
	SelectedResultID int64     `db:"selected_result_id" json:"selected_result_id"`

	AlgorithmCode          string  `db:"algorithm_code" json:"algorithm_code"`
	ConfidenceScore        float64 `db:"confidence_score" json:"confidence_score"`
	AlternativesConsidered int     `db:"alternatives_considered" json:"alternatives_considered"`

	FastPeriod     int     `db:"fast_period" json:"fast_period"`
	SlowPeriod     int     `db:"slow_period" json:"slow_period"`
	SignalPeriod   *int    `db:"signal_period" json:"signal_period,omitempty"`
	Score          float64 `db:"score" json:"score"`
	SharpeRatio    float64 `db:"sharpe_ratio" json:"sharpe_ratio"`
	TotalReturnPct float64 `db:"total_return_pct" json:"total_return_pct"`
	WinRatePct     float64 `db:"win_rate_pct" json:"win_rate_pct"`
	TotalTrades    int     `db:"total_trades" json:"total_trades"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
