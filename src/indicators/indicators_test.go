package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMAInsufficientHistory(t *testing.T) {
	prices := []float64{100, 101, 102}
	for period := 4; period <= 10; period++ {
		_, ok := SMA(prices, period)
		assert.False(t, ok, "period %d should not be computable from 3 prices", period)
	}
	_, ok := SMA(nil, 1)
	assert.False(t, ok)
	_, ok = SMA(prices, 0)
	assert.False(t, ok)
}

func TestSMAValue(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6}
	sma, ok := SMA(prices, 3)
	assert.True(t, ok)
	assert.InDelta(t, 5.0, sma, 1e-12) // mean of 4,5,6

	sma, ok = SMA(prices, 6)
	assert.True(t, ok)
	assert.InDelta(t, 3.5, sma, 1e-12)
}

func TestEMABoundary(t *testing.T) {
	prices := []float64{10, 11, 12, 13}
	_, ok := EMA(prices, 5)
	assert.False(t, ok)

	// With len == period the EMA equals the SMA seed.
	ema, ok := EMA(prices, 4)
	assert.True(t, ok)
	assert.InDelta(t, 11.5, ema, 1e-12)
}

func TestEMAIterative(t *testing.T) {
	prices := []float64{10, 10, 10, 20}
	// seed = SMA(10,10,10) = 10; k = 2/4 = 0.5; ema = (20-10)*0.5+10 = 15
	ema, ok := EMA(prices, 3)
	assert.True(t, ok)
	assert.InDelta(t, 15.0, ema, 1e-12)
}

func TestRSIBounds(t *testing.T) {
	// Monotonic rise: all gains, RSI must be exactly 100.
	up := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	rsi, ok := RSI(up, 7)
	assert.True(t, ok)
	assert.Equal(t, 100.0, rsi)

	// Monotonic fall: all losses, RSI must be exactly 0.
	down := []float64{8, 7, 6, 5, 4, 3, 2, 1}
	rsi, ok = RSI(down, 7)
	assert.True(t, ok)
	assert.Equal(t, 0.0, rsi)

	// Mixed series stays inside [0,100].
	mixed := []float64{5, 7, 6, 9, 8, 10, 9, 11, 10, 12, 11, 13, 12, 14, 13}
	rsi, ok = RSI(mixed, 14)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, rsi, 0.0)
	assert.LessOrEqual(t, rsi, 100.0)
}

func TestRSINeedsPeriodPlusOne(t *testing.T) {
	prices := make([]float64, 14)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	_, ok := RSI(prices, 14)
	assert.False(t, ok, "14 prices give only 13 deltas")

	prices = append(prices, 115)
	_, ok = RSI(prices, 14)
	assert.True(t, ok)
}

func TestMACDSignalEqualsLine(t *testing.T) {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 100 + math.Sin(float64(i)/3)*5
	}
	result, ok := MACD(prices, 12, 26, 9)
	assert.True(t, ok)
	// The signal line intentionally mirrors the MACD line and the
	// histogram is always zero. Changing that breaks behavioral
	// compatibility with the strategies built on it.
	assert.Equal(t, result.MACD, result.Signal)
	assert.Equal(t, 0.0, result.Histogram)

	_, ok = MACD(prices[:20], 12, 26, 9)
	assert.False(t, ok)
}

func TestBollingerBands(t *testing.T) {
	prices := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	// Population std-dev of the full set is exactly 2.
	bands, ok := BollingerBands(prices, 8, 2)
	assert.True(t, ok)
	assert.InDelta(t, 5.0, bands.Middle, 1e-12)
	assert.InDelta(t, 9.0, bands.Upper, 1e-12)
	assert.InDelta(t, 1.0, bands.Lower, 1e-12)

	_, ok = BollingerBands(prices, 9, 2)
	assert.False(t, ok)
}

func TestIndicatorsAreDeterministic(t *testing.T) {
	prices := []float64{30, 31, 29, 33, 35, 34, 36, 37, 33, 38, 40, 39, 41, 42, 40, 44}
	for i := 0; i < 3; i++ {
		sma1, _ := SMA(prices, 5)
		sma2, _ := SMA(prices, 5)
		assert.Equal(t, sma1, sma2)
		rsi1, _ := RSI(prices, 14)
		rsi2, _ := RSI(prices, 14)
		assert.Equal(t, rsi1, rsi2)
	}
}
