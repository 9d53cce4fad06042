package backtest

import (
	"fmt"

	"github.com/ColeMorton/trading-sub010/internal/models"
)

// Trade is one completed round trip
type Trade struct {
	EntryIndex int
	ExitIndex  int
	EntryPrice float64
	ExitPrice  float64
	ReturnPct  float64
}

// Simulation holds the output of one strategy run over a price series
type Simulation struct {
	Trades []Trade
	Equity []float64
}

// Simulate runs a long-only crossover strategy over the series. The entry
// signal is the fast line crossing above the slow line; exit is the cross
// back below. An open position at the end of the series is closed at the
// final price.
func Simulate(prices []float64, strategyType string, fast, slow int, signal *int) (*Simulation, error) {
	var fastLine, slowLine []float64
	warmup := slow

	switch strategyType {
	case models.StrategySMACross:
		fastLine = SMA(prices, fast)
		slowLine = SMA(prices, slow)
	case models.StrategyEMACross:
		fastLine = EMA(prices, fast)
		slowLine = EMA(prices, slow)
	case models.StrategyMACD:
		if signal == nil {
			return nil, fmt.Errorf("macd requires a signal period")
		}
		fastLine, slowLine = MACD(prices, fast, slow, *signal)
		warmup = slow + *signal
	default:
		return nil, fmt.Errorf("unknown strategy type %q", strategyType)
	}

	if warmup >= len(prices) {
		return nil, fmt.Errorf("series of %d bars too short for warmup %d", len(prices), warmup)
	}

	sim := &Simulation{Equity: make([]float64, 0, len(prices)-warmup)}

	equity := 1.0
	inPosition := false
	var entryIndex int

	for i := warmup; i < len(prices); i++ {
		if inPosition {
			equity *= prices[i] / prices[i-1]
		}
		sim.Equity = append(sim.Equity, equity)

		crossedAbove := fastLine[i] > slowLine[i] && fastLine[i-1] <= slowLine[i-1]
		crossedBelow := fastLine[i] < slowLine[i] && fastLine[i-1] >= slowLine[i-1]

		if !inPosition && crossedAbove {
			inPosition = true
			entryIndex = i
		} else if inPosition && crossedBelow {
			sim.Trades = append(sim.Trades, closeTrade(prices, entryIndex, i))
			inPosition = false
		}
	}

	if inPosition {
		sim.Trades = append(sim.Trades, closeTrade(prices, entryIndex, len(prices)-1))
	}
	return sim, nil
}

func closeTrade(prices []float64, entry, exit int) Trade {
	entryPrice := prices[entry]
	exitPrice := prices[exit]
	return Trade{
		EntryIndex: entry,
		ExitIndex:  exit,
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		ReturnPct:  (exitPrice - entryPrice) / entryPrice * 100,
	}
}
