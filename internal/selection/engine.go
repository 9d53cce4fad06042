// Package selection picks the best parameter combination for each
// (run, instrument, strategy type) group. The algorithm is a pure function
// of the ranked result set so every decision is reproducible and auditable.
package selection

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ColeMorton/trading-sub010/internal/models"
)

// Algorithm codes recorded verbatim on each selection
const (
	AlgoTop3AllMatch     = "top_3_all_match"
	AlgoTop2BothMatch    = "top_2_both_match"
	AlgoTop5ThreeOfFive  = "top_5_3_of_5"
	AlgoTop8FiveOfEight  = "top_8_5_of_8"
	AlgoHighestScore     = "highest_score_fallback"
	AlgoInsufficientData = "insufficient_data"
)

// Engine implements the windowed-agreement selection cascade
type Engine struct {
	logger *logrus.Logger
}

// NewEngine creates a selection engine
func NewEngine(logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{logger: logger}
}

// Select picks the best result from the group's results, which must already
// be ranked by score descending. It returns nil when the group is empty.
// Re-running on the same input yields an identical selection.
func (e *Engine) Select(runID uuid.UUID, instrumentID, strategyTypeID int64, ranked []*models.SweepResult) *models.BestSelection {
	if len(ranked) == 0 {
		return nil
	}

	winner, algorithm, confidence, considered := e.decide(ranked)

	sel := &models.BestSelection{
		RunID:                  runID,
		InstrumentID:           instrumentID,
		StrategyTypeID:         strategyTypeID,
		SelectedResultID:       winner.ID,
		AlgorithmCode:          algorithm,
		ConfidenceScore:        confidence,
		AlternativesConsidered: considered,
		FastPeriod:             winner.FastPeriod,
		SlowPeriod:             winner.SlowPeriod,
		SignalPeriod:           winner.SignalPeriod,
		Score:                  winner.Score,
		SharpeRatio:            winner.SharpeRatio,
		TotalReturnPct:         winner.TotalReturnPct,
		WinRatePct:             winner.WinRatePct,
		TotalTrades:            winner.TotalTrades,
		CreatedAt:              time.Now().UTC(),
	}

	e.logger.WithFields(logrus.Fields{
		"run_id":     runID,
		"instrument": instrumentID,
		"strategy":   strategyTypeID,
		"algorithm":  algorithm,
		"confidence": confidence,
	}).Debug("Best parameters selected")

	return sel
}

// decide walks the window cascade and returns the winning result, the
// algorithm code used, the confidence score and how many candidates were
// examined.
func (e *Engine) decide(ranked []*models.SweepResult) (*models.SweepResult, string, float64, int) {
	if len(ranked) < 2 {
		return ranked[0], AlgoInsufficientData, 0, len(ranked)
	}

	// window 3: unanimous agreement
	if len(ranked) >= 3 && allMatch(ranked[:3]) {
		return ranked[0], AlgoTop3AllMatch, 100, 3
	}

	// window 2: both agree
	if allMatch(ranked[:2]) {
		return ranked[0], AlgoTop2BothMatch, 100, 2
	}

	// window 5: plurality of at least 3
	if len(ranked) >= 5 {
		if winner, matches := pluralityWinner(ranked[:5]); matches >= 3 {
			frac := float64(matches) / 5
			conf := 60 + 20*(frac-0.6)/0.4
			return winner, AlgoTop5ThreeOfFive, conf, 5
		}
	}

	// window 8: plurality of at least 5
	if len(ranked) >= 8 {
		if winner, matches := pluralityWinner(ranked[:8]); matches >= 5 {
			frac := float64(matches) / 8
			conf := 62.5 + 12.5*(frac-0.625)/0.375
			return winner, AlgoTop8FiveOfEight, conf, 8
		}
	}

	// fallback: the highest score wins, confidence proportional to its lead
	top, runnerUp := ranked[0], ranked[1]
	lead := top.Score - runnerUp.Score
	var conf float64
	if lead > 0 {
		denom := math.Max(math.Abs(top.Score), 1e-9)
		conf = 50 * math.Min(1, lead/denom)
	}
	return top, AlgoHighestScore, conf, len(ranked)
}

// allMatch reports whether every result in the window shares one tuple
func allMatch(window []*models.SweepResult) bool {
	for _, r := range window[1:] {
		if !r.SameParams(window[0]) {
			return false
		}
	}
	return true
}

// pluralityWinner finds the parameter tuple occurring most often in the
// window and returns its best-ranked result plus the occurrence count. Ties
// between tuples are broken by the highest individual score, which is the
// first-ranked occurrence since the window is ordered by score descending.
func pluralityWinner(window []*models.SweepResult) (*models.SweepResult, int) {
	counts := make(map[string]int, len(window))
	first := make(map[string]*models.SweepResult, len(window))

	for _, r := range window {
		key := r.ParamKey()
		counts[key]++
		if _, ok := first[key]; !ok {
			first[key] = r
		}
	}

	var winner *models.SweepResult
	best := 0
	for _, r := range window {
		key := r.ParamKey()
		if counts[key] > best {
			best = counts[key]
			winner = first[key]
		}
	}
	return winner, best
}
