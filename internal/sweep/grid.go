package sweep

import (
	"github.com/ColeMorton/trading-sub010/internal/models"
)

// Combination is a single point of the parameter grid: one instrument, one
// strategy type and one parameter tuple.
type Combination struct {
	Index        int
	Instrument   string
	StrategyType string
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod *int
}

// ExpandGrid enumerates every combination of the grid in a fixed order:
// instruments in submission order, then strategies in submission order, then
// fast, slow and signal periods ascending. Tuples where the fast period is
// not strictly below the slow period are skipped, so the expansion can be
// smaller than the product of the range sizes.
func ExpandGrid(spec models.GridSpec) []Combination {
	var combos []Combination
	idx := 0

	for _, instrument := range spec.Instruments {
		for _, strat := range spec.Strategies {
			fasts := strat.Fast.Values()
			slows := strat.Slow.Values()

			var signals []int
			if strat.RequiresSignal() && strat.Signal != nil {
				signals = strat.Signal.Values()
			}

			for _, fast := range fasts {
				for _, slow := range slows {
					if fast >= slow {
						continue
					}
					if len(signals) == 0 {
						combos = append(combos, Combination{
							Index:        idx,
							Instrument:   instrument,
							StrategyType: strat.Type,
							FastPeriod:   fast,
							SlowPeriod:   slow,
						})
						idx++
						continue
					}
					for _, signal := range signals {
						sig := signal
						combos = append(combos, Combination{
							Index:        idx,
							Instrument:   instrument,
							StrategyType: strat.Type,
							FastPeriod:   fast,
							SlowPeriod:   slow,
							SignalPeriod: &sig,
						})
						idx++
					}
				}
			}
		}
	}
	return combos
}
