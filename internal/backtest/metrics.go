package backtest

import (
	"math"
	"sort"
)

// Metrics represents backtest performance metrics for one simulation
type Metrics struct {
	Score            float64 `json:"score"`
	TotalReturnPct   float64 `json:"total_return_pct"`
	AnnualizedReturn float64 `json:"annualized_return"`
	CAGR             float64 `json:"cagr"`
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	SortinoRatio     float64 `json:"sortino_ratio"`
	CalmarRatio      float64 `json:"calmar_ratio"`
	ValueAtRisk95    float64 `json:"var_95"`
	ValueAtRisk99    float64 `json:"var_99"`
	TotalTrades      int     `json:"total_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	WinRatePct       float64 `json:"win_rate_pct"`
	ProfitFactor     float64 `json:"profit_factor"`
	AverageWinPct    float64 `json:"average_win_pct"`
	AverageLossPct   float64 `json:"average_loss_pct"`
	Expectancy       float64 `json:"expectancy"`
	LargestWinPct    float64 `json:"largest_win_pct"`
	LargestLossPct   float64 `json:"largest_loss_pct"`
	ExposureRatio    float64 `json:"exposure_ratio"`
	TradingDays      int     `json:"trading_days"`
}

// CalculateMetrics derives the full metric set from a finished simulation
func CalculateMetrics(sim *Simulation) Metrics {
	m := Metrics{TradingDays: len(sim.Equity)}
	if len(sim.Equity) == 0 {
		return m
	}

	final := sim.Equity[len(sim.Equity)-1]
	m.TotalReturnPct = (final - 1.0) * 100
	m.CAGR = calculateCAGR(1.0, final, m.TradingDays)
	m.AnnualizedReturn = m.CAGR
	m.MaxDrawdownPct = calculateMaxDrawdown(sim.Equity) * 100

	returns := dailyReturns(sim.Equity)
	m.SharpeRatio = calculateSharpeRatio(returns)
	m.SortinoRatio = calculateSortinoRatio(returns)
	if m.MaxDrawdownPct > 0 {
		m.CalmarRatio = m.AnnualizedReturn / (m.MaxDrawdownPct / 100)
	}
	m.ValueAtRisk95 = calculateVaR(returns, 0.95)
	m.ValueAtRisk99 = calculateVaR(returns, 0.99)

	m.TotalTrades = len(sim.Trades)
	m.WinningTrades, m.LosingTrades, m.AverageWinPct, m.AverageLossPct, m.LargestWinPct, m.LargestLossPct = calculateTradeStats(sim.Trades)
	if m.TotalTrades > 0 {
		m.WinRatePct = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	}
	m.ProfitFactor = calculateProfitFactor(sim.Trades)
	m.Expectancy = calculateExpectancy(sim.Trades)
	m.ExposureRatio = calculateExposure(sim)

	m.Score = compositeScore(m)
	return m
}

// ToBag flattens the metrics into the named bag persisted with each result
func (m Metrics) ToBag() map[string]float64 {
	return map[string]float64{
		"total_return_pct":  m.TotalReturnPct,
		"annualized_return": m.AnnualizedReturn,
		"cagr":              m.CAGR,
		"max_drawdown_pct":  m.MaxDrawdownPct,
		"sharpe_ratio":      m.SharpeRatio,
		"sortino_ratio":     m.SortinoRatio,
		"calmar_ratio":      m.CalmarRatio,
		"var_95":            m.ValueAtRisk95,
		"var_99":            m.ValueAtRisk99,
		"total_trades":      float64(m.TotalTrades),
		"winning_trades":    float64(m.WinningTrades),
		"losing_trades":     float64(m.LosingTrades),
		"win_rate_pct":      m.WinRatePct,
		"profit_factor":     m.ProfitFactor,
		"average_win_pct":   m.AverageWinPct,
		"average_loss_pct":  m.AverageLossPct,
		"expectancy":        m.Expectancy,
		"largest_win_pct":   m.LargestWinPct,
		"largest_loss_pct":  m.LargestLossPct,
		"exposure_ratio":    m.ExposureRatio,
		"trading_days":      float64(m.TradingDays),
	}
}

// compositeScore blends risk-adjusted return, consistency and robustness
// into the single ranking score used by the selection engine.
func compositeScore(m Metrics) float64 {
	pf := math.Min(m.ProfitFactor, 5)
	drawdownPenalty := 1 - math.Min(m.MaxDrawdownPct/100, 1)
	return 0.45*m.SharpeRatio + 0.25*pf + 0.2*(m.TotalReturnPct/100) + 0.1*drawdownPenalty
}

func dailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		returns = append(returns, equity[i]/equity[i-1]-1)
	}
	return returns
}

func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := average(returns)
	std := stddev(returns)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(252)
}

func calculateSortinoRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := average(returns)
	std := downsideStddev(returns)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(252)
}

func calculateMaxDrawdown(equity []float64) float64 {
	maxDD := 0.0
	peak := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak == 0 {
			continue
		}
		drawdown := (peak - v) / peak
		if drawdown > maxDD {
			maxDD = drawdown
		}
	}
	return maxDD
}

func calculateProfitFactor(trades []Trade) float64 {
	grossProfit := 0.0
	grossLoss := 0.0
	for _, trade := range trades {
		if trade.ReturnPct > 0 {
			grossProfit += trade.ReturnPct
		} else {
			grossLoss += math.Abs(trade.ReturnPct)
		}
	}
	if grossLoss == 0 {
		if grossProfit > 0 {
			return 999
		}
		return 0
	}
	return grossProfit / grossLoss
}

func calculateExpectancy(trades []Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	net := 0.0
	for _, trade := range trades {
		net += trade.ReturnPct
	}
	return net / float64(len(trades))
}

func calculateCAGR(initial, final float64, days int) float64 {
	if initial <= 0 || final <= 0 || days <= 0 {
		return 0
	}
	years := float64(days) / 252.0
	return math.Pow(final/initial, 1.0/years) - 1.0
}

func calculateVaR(returns []float64, level float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64{}, returns...)
	sort.Float64s(sorted)
	index := int(math.Floor((1.0 - level) * float64(len(sorted))))
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func calculateTradeStats(trades []Trade) (int, int, float64, float64, float64, float64) {
	wins := 0
	losses := 0
	winSum := 0.0
	lossSum := 0.0
	largestWin := 0.0
	largestLoss := 0.0
	for _, trade := range trades {
		pct := trade.ReturnPct
		if pct > 0 {
			wins++
			winSum += pct
			if pct > largestWin {
				largestWin = pct
			}
		} else if pct < 0 {
			losses++
			lossSum += pct
			if pct < largestLoss {
				largestLoss = pct
			}
		}
	}

	avgWin := 0.0
	avgLoss := 0.0
	if wins > 0 {
		avgWin = winSum / float64(wins)
	}
	if losses > 0 {
		avgLoss = lossSum / float64(losses)
	}
	return wins, losses, avgWin, avgLoss, largestWin, largestLoss
}

func calculateExposure(sim *Simulation) float64 {
	if len(sim.Equity) == 0 {
		return 0
	}
	held := 0
	for _, trade := range sim.Trades {
		held += trade.ExitIndex - trade.EntryIndex
	}
	return float64(held) / float64(len(sim.Equity))
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	return mean / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := average(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func downsideStddev(values []float64) float64 {
	negatives := make([]float64, 0)
	for _, v := range values {
		if v < 0 {
			negatives = append(negatives, v)
		}
	}
	return stddev(negatives)
}
