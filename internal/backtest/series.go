package backtest

import (
	"hash/fnv"
	"math"
	"math/rand"
)

// series generation constants: three years of daily closes
const (
	seriesLength  = 756
	initialPrice  = 100.0
	dailyVol      = 0.018
	trendStrength = 0.0009
	cycleDays     = 120.0
)

// GenerateSeries produces the deterministic synthetic daily close series for
// a symbol. The same symbol always yields the same series, so sweeps are
// reproducible without an external data feed.
func GenerateSeries(symbol string) []float64 {
	rng := rand.New(rand.NewSource(symbolSeed(symbol)))

	prices := make([]float64, seriesLength)
	price := initialPrice
	for i := range prices {
		// trend regime oscillates so crossovers have something to find
		trend := trendStrength * math.Sin(2*math.Pi*float64(i)/cycleDays)
		noise := rng.NormFloat64() * dailyVol
		price *= 1 + trend + noise
		if price < 1 {
			price = 1
		}
		prices[i] = price
	}
	return prices
}

func symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	return int64(h.Sum64())
}
