package backtest

// SMA computes the simple moving average with the given period. Positions
// before the first full window are NaN-free zero values and must be ignored
// via the warmup offset by callers.
func SMA(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	if period <= 0 || period > len(prices) {
		return out
	}
	var sum float64
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes the exponential moving average with the given period, seeded
// by the SMA of the first window.
func EMA(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	if period <= 0 || period > len(prices) {
		return out
	}
	multiplier := 2.0 / (float64(period) + 1)

	var seed float64
	for i := 0; i < period; i++ {
		seed += prices[i]
	}
	seed /= float64(period)
	out[period-1] = seed

	for i := period; i < len(prices); i++ {
		out[i] = (prices[i]-out[i-1])*multiplier + out[i-1]
	}
	return out
}

// MACD computes the MACD line (fast EMA minus slow EMA) and its signal line
func MACD(prices []float64, fast, slow, signal int) (macd, signalLine []float64) {
	fastEMA := EMA(prices, fast)
	slowEMA := EMA(prices, slow)

	macd = make([]float64, len(prices))
	for i := range prices {
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	// the signal line is an EMA of the MACD line past the slow warmup
	warm := slow - 1
	if warm >= len(macd) {
		return macd, make([]float64, len(prices))
	}
	tail := EMA(macd[warm:], signal)
	signalLine = make([]float64, len(prices))
	copy(signalLine[warm:], tail)
	return macd, signalLine
}
