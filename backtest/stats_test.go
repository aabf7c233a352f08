package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	nav := []float64{100, 110, 104.5}
	r1 := math.Log(110.0 / 100.0)
	r2 := math.Log(104.5 / 110.0)
	mean := (r1 + r2) / 2
	std := math.Sqrt(((r1-mean)*(r1-mean) + (r2-mean)*(r2-mean)) / 2)

	s := summarize(nav)
	assert.InDelta(t, mean*250, s.mean, 1e-12)
	assert.InDelta(t, std*math.Sqrt(250), s.std, 1e-12)
	assert.InDelta(t, mean/std*math.Sqrt(250), s.sharpe, 1e-9)
	assert.InDelta(t, mean/(std*std), s.kelly, 1e-9, "kelly stays in daily units")
}

func TestSummarizeSkipsNaN(t *testing.T) {
	t.Parallel()

	// The NaN entry poisons the two returns touching it; the rest are a
	// constant 10% step.
	nav := []float64{100, 110, math.NaN(), 121, 133.1}
	s := summarize(nav)
	assert.InDelta(t, math.Log(1.1)*250, s.mean, 1e-9)
	assert.InDelta(t, 0, s.std, 1e-12)
}

func TestSummarizeDegenerate(t *testing.T) {
	t.Parallel()

	s := summarize([]float64{100})
	assert.True(t, math.IsNaN(s.mean), "a single point has no returns")

	s = summarize(nil)
	assert.True(t, math.IsNaN(s.mean))
}

func TestLogReturns(t *testing.T) {
	t.Parallel()

	rets := logReturns([]float64{100, 105, 100})
	assert.Len(t, rets, 2)
	assert.InDelta(t, math.Log(1.05), rets[0], 1e-12)
	assert.InDelta(t, -math.Log(1.05), rets[1], 1e-12)
}
