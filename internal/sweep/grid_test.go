package sweep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColeMorton/trading-sub010/internal/models"
)

func TestExpandGridOrderIsDeterministic(t *testing.T) {
	spec := models.GridSpec{
		Instruments: []string{"BTC-USD", "ETH-USD"},
		Strategies: []models.StrategyGrid{
			{
				Type: models.StrategySMACross,
				Fast: models.ParamRange{Min: 5, Max: 10, Step: 5},
				Slow: models.ParamRange{Min: 20, Max: 30, Step: 10},
			},
		},
	}

	first := ExpandGrid(spec)
	second := ExpandGrid(spec)
	require.Equal(t, first, second)

	// instruments in submission order, then fast asc, then slow asc
	require.Len(t, first, 8)
	assert.Equal(t, "BTC-USD", first[0].Instrument)
	assert.Equal(t, 5, first[0].FastPeriod)
	assert.Equal(t, 20, first[0].SlowPeriod)
	assert.Equal(t, 30, first[1].SlowPeriod)
	assert.Equal(t, 10, first[2].FastPeriod)
	assert.Equal(t, "ETH-USD", first[4].Instrument)

	for i, combo := range first {
		assert.Equal(t, i, combo.Index)
	}
}

func TestExpandGridSkipsFastNotBelowSlow(t *testing.T) {
	spec := models.GridSpec{
		Instruments: []string{"BTC-USD"},
		Strategies: []models.StrategyGrid{
			{
				Type: models.StrategySMACross,
				Fast: models.ParamRange{Min: 10, Max: 30, Step: 10},
				Slow: models.ParamRange{Min: 10, Max: 30, Step: 10},
			},
		},
	}

	combos := ExpandGrid(spec)
	// of the 9 raw pairs only (10,20), (10,30), (20,30) survive
	require.Len(t, combos, 3)
	for _, combo := range combos {
		assert.Less(t, combo.FastPeriod, combo.SlowPeriod)
	}
}

func TestExpandGridEmptyAfterConstraintFiltering(t *testing.T) {
	spec := models.GridSpec{
		Instruments: []string{"BTC-USD"},
		Strategies: []models.StrategyGrid{
			{
				Type: models.StrategySMACross,
				Fast: models.ParamRange{Min: 50, Max: 60, Step: 5},
				Slow: models.ParamRange{Min: 10, Max: 20, Step: 5},
			},
		},
	}

	assert.Empty(t, ExpandGrid(spec))
}

func TestExpandGridMACDIncludesSignalPeriods(t *testing.T) {
	signal := models.ParamRange{Min: 7, Max: 9, Step: 2}
	spec := models.GridSpec{
		Instruments: []string{"BTC-USD"},
		Strategies: []models.StrategyGrid{
			{
				Type:   models.StrategyMACD,
				Fast:   models.ParamRange{Min: 12, Max: 12, Step: 1},
				Slow:   models.ParamRange{Min: 26, Max: 26, Step: 1},
				Signal: &signal,
			},
		},
	}

	combos := ExpandGrid(spec)
	require.Len(t, combos, 2)
	require.NotNil(t, combos[0].SignalPeriod)
	assert.Equal(t, 7, *combos[0].SignalPeriod)
	require.NotNil(t, combos[1].SignalPeriod)
	assert.Equal(t, 9, *combos[1].SignalPeriod)
}

func TestExpandGridCrossoverStrategiesCarryNoSignal(t *testing.T) {
	spec := models.GridSpec{
		Instruments: []string{"BTC-USD"},
		Strategies: []models.StrategyGrid{
			{
				Type: models.StrategyEMACross,
				Fast: models.ParamRange{Min: 5, Max: 5, Step: 1},
				Slow: models.ParamRange{Min: 20, Max: 20, Step: 1},
			},
		},
	}

	combos := ExpandGrid(spec)
	require.Len(t, combos, 1)
	assert.Nil(t, combos[0].SignalPeriod)
}

func TestExpandGridMultipleStrategies(t *testing.T) {
	spec := models.GridSpec{
		Instruments: []string{"BTC-USD"},
		Strategies: []models.StrategyGrid{
			{
				Type: models.StrategySMACross,
				Fast: models.ParamRange{Min: 5, Max: 5, Step: 1},
				Slow: models.ParamRange{Min: 20, Max: 20, Step: 1},
			},
			{
				Type: models.StrategyEMACross,
				Fast: models.ParamRange{Min: 8, Max: 8, Step: 1},
				Slow: models.ParamRange{Min: 21, Max: 21, Step: 1},
			},
		},
	}

	combos := ExpandGrid(spec)
	require.Len(t, combos, 2)
	assert.Equal(t, models.StrategySMACross, combos[0].StrategyType)
	assert.Equal(t, models.StrategyEMACross, combos[1].StrategyType)
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name       string
		annotation string
		expected   []string
	}{
		{"empty", "", nil},
		{"single", "momentum", []string{"momentum"}},
		{"multiple", "momentum,trend_following", []string{"momentum", "trend_following"}},
		{"whitespace and case", " Momentum , TREND_FOLLOWING ", []string{"momentum", "trend_following"}},
		{"duplicates collapsed", "momentum,momentum", []string{"momentum"}},
		{"empty segments dropped", "momentum,,", []string{"momentum"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseTags(tt.annotation))
		})
	}
}
