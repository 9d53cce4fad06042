// Package backtest provides the built-in crossover strategy evaluator used
// by the sweep executor. Price data is synthetic and deterministic per
// symbol, so identical submissions produce identical results.
package backtest

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/ColeMorton/trading-sub010/internal/models"
	"github.com/ColeMorton/trading-sub010/internal/sweep"
)

const (
	seriesCacheTTL     = 30 * time.Minute
	seriesCacheCleanup = 10 * time.Minute
)

// Evaluator backtests one parameter combination per call. Safe for
// concurrent use; the per-symbol series cache keeps repeated combinations
// on one instrument from regenerating the series.
type Evaluator struct {
	series *gocache.Cache
	logger *logrus.Logger
}

// NewEvaluator creates the default evaluator
func NewEvaluator(logger *logrus.Logger) *Evaluator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Evaluator{
		series: gocache.New(seriesCacheTTL, seriesCacheCleanup),
		logger: logger,
	}
}

// Evaluate runs the combination's strategy over the instrument's series and
// returns the full metric set. Combinations whose simulation produces fewer
// trades than minTrades fail the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, combo sweep.Combination, minTrades int) (*sweep.Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sim, err := Simulate(e.pricesFor(combo.Instrument), combo.StrategyType, combo.FastPeriod, combo.SlowPeriod, combo.SignalPeriod)
	if err != nil {
		return nil, err
	}

	m := CalculateMetrics(sim)
	if minTrades > 0 && m.TotalTrades < minTrades {
		return nil, fmt.Errorf("%d trades below minimum %d", m.TotalTrades, minTrades)
	}

	return &sweep.Evaluation{
		Score:          m.Score,
		SharpeRatio:    m.SharpeRatio,
		TotalReturnPct: m.TotalReturnPct,
		WinRatePct:     m.WinRatePct,
		TotalTrades:    m.TotalTrades,
		MaxDrawdownPct: m.MaxDrawdownPct,
		ProfitFactor:   m.ProfitFactor,
		Metrics:        m.ToBag(),
		MetricType:     classify(combo.StrategyType, m),
	}, nil
}

func (e *Evaluator) pricesFor(symbol string) []float64 {
	if cached, ok := e.series.Get(symbol); ok {
		return cached.([]float64)
	}
	prices := GenerateSeries(symbol)
	e.series.Set(symbol, prices, gocache.DefaultExpiration)
	return prices
}

// classify annotates the evaluation with classification labels derived from
// the strategy family and the shape of its results.
func classify(strategyType string, m Metrics) string {
	tags := "trend_following"
	if strategyType == models.StrategyMACD {
		tags = "momentum"
	}
	if m.SharpeRatio >= 1.0 {
		tags += ",high_sharpe"
	}
	if m.MaxDrawdownPct <= 15 && m.TotalTrades > 0 {
		tags += ",low_drawdown"
	}
	return tags
}
