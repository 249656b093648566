package strategy

// ema computes an exponential moving average over the series with
// alpha = 2/(span+1), seeded at the first value.
func ema(series []float64, span int) []float64 {
	if len(series) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(series))
	out[0] = series[0]
	for i := 1; i < len(series); i++ {
		out[i] = alpha*series[i] + (1-alpha)*out[i-1]
	}
	return out
}

// MACD returns the final MACD value and its signal line for the close
// series. The series must be at least as long as the long window; shorter
// input yields (0, 0).
func MACD(closes []float64, shortWindow, longWindow, signalWindow int) (macd, signal float64) {
	if len(closes) < longWindow {
		return 0, 0
	}

	shortEMA := ema(closes, shortWindow)
	longEMA := ema(closes, longWindow)

	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = shortEMA[i] - longEMA[i]
	}
	signalLine := ema(line, signalWindow)

	return line[len(line)-1], signalLine[len(signalLine)-1]
}

// RSI returns the relative strength index over the last period closes.
// A series too short to cover the period, or one with no movement, yields
// the neutral value 50.
func RSI(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 50
	}

	var gains, losses float64
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	if gains+losses == 0 {
		return 50
	}
	if losses == 0 {
		return 100
	}

	rs := (gains / float64(period)) / (losses / float64(period))
	return 100 - 100/(1+rs)
}
