package backtest

import "math"

// tradingDaysPerYear is the annualization base for daily log returns.
const tradingDaysPerYear = 250

type summary struct {
	mean   float64
	std    float64
	sharpe float64
	kelly  float64
}

// summarize computes the risk/return statistics of a NAV series from its
// daily log returns. NaN returns (from NaN NAV entries) are skipped.
func summarize(nav []float64) summary {
	returns := logReturns(nav)
	m := nanMean(returns)
	s := nanStd(returns)
	return summary{
		mean:   m * tradingDaysPerYear,
		std:    s * math.Sqrt(tradingDaysPerYear),
		sharpe: m / s * math.Sqrt(tradingDaysPerYear),
		kelly:  m / (s * s),
	}
}

func logReturns(nav []float64) []float64 {
	if len(nav) < 2 {
		return nil
	}
	out := make([]float64, 0, len(nav)-1)
	for i := 1; i < len(nav); i++ {
		out = append(out, math.Log(nav[i])-math.Log(nav[i-1]))
	}
	return out
}

func nanMean(vals []float64) float64 {
	var sum float64
	var n int
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// nanStd is the population standard deviation of the non-NaN values.
func nanStd(vals []float64) float64 {
	m := nanMean(vals)
	if math.IsNaN(m) {
		return math.NaN()
	}
	var sum float64
	var n int
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		d := v - m
		sum += d * d
		n++
	}
	return math.Sqrt(sum / float64(n))
}
