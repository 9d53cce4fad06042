package sweep

import (
	"context"
	"fmt"
)

// Evaluation is the outcome of backtesting a single parameter combination.
type Evaluation struct {
	Score          float64
	SharpeRatio    float64
	TotalReturnPct float64
	WinRatePct     float64
	TotalTrades    int
	MaxDrawdownPct float64
	ProfitFactor   float64

	// Metrics is the full metric bag keyed by metric name. It is stored
	// opaquely alongside the headline columns above.
	Metrics map[string]float64

	// MetricType is an optional comma-separated classification annotation,
	// e.g. "momentum,trend_following". The persister resolves each label
	// against the tag vocabulary.
	MetricType string
}

// Evaluator runs a backtest for one parameter combination. Implementations
// must be safe for concurrent use by multiple workers.
type Evaluator interface {
	Evaluate(ctx context.Context, combo Combination, minTrades int) (*Evaluation, error)
}

// EvaluationError wraps a failed combination so the executor can aggregate
// failures without losing which tuple produced them.
type EvaluationError struct {
	Combo Combination
	Err   error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation failed for %s %s fast=%d slow=%d: %v",
		e.Combo.Instrument, e.Combo.StrategyType, e.Combo.FastPeriod, e.Combo.SlowPeriod, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
