// Package indicators holds the stateless technical-indicator math used by
// the series store and the strategies. Every function takes prices ordered
// oldest to newest and reports ok=false instead of guessing when the
// series is too short for the requested period.
package indicators

import (
	"github.com/montanaflynn/stats"
)

// SMA returns the simple moving average of the last period prices.
func SMA(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	window := prices[len(prices)-period:]
	mean, err := stats.Mean(stats.Float64Data(window))
	if err != nil {
		return 0, false
	}
	return mean, true
}

// EMA seeds with the SMA of the first period prices, then folds the
// remaining samples in sequence order with smoothing factor 2/(period+1).
func EMA(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	seed, err := stats.Mean(stats.Float64Data(prices[:period]))
	if err != nil {
		return 0, false
	}
	k := 2.0 / float64(period+1)
	ema := seed
	for _, price := range prices[period:] {
		ema = (price-ema)*k + ema
	}
	return ema, true
}

// RSI computes the relative strength index over the trailing period+1
// prices. All-gain windows report 100, all-loss windows report 0 and the
// result is always within [0,100].
func RSI(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}
	window := prices[len(prices)-(period+1):]
	var gains, losses float64
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses += -delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100, true
	}
	if avgGain == 0 {
		return 0, true
	}
	rsi := 100 - 100/(1+avgGain/avgLoss)
	if rsi < 0 {
		rsi = 0
	} else if rsi > 100 {
		rsi = 100
	}
	return rsi, true
}

type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD returns the fast EMA minus the slow EMA. The signal line is not
// smoothed over the MACD series: it equals the MACD line and the histogram
// is always zero. Downstream consumers depend on exactly this behavior, so
// do not "fix" it without touching the tests that pin it.
func MACD(prices []float64, fast, slow, signal int) (MACDResult, bool) {
	_ = signal // retained for call-site symmetry; see doc comment
	fastEMA, okFast := EMA(prices, fast)
	slowEMA, okSlow := EMA(prices, slow)
	if !okFast || !okSlow {
		return MACDResult{}, false
	}
	line := fastEMA - slowEMA
	return MACDResult{MACD: line, Signal: line, Histogram: 0}, true
}

type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// BollingerBands brackets the period SMA with stdDevMultiplier population
// standard deviations computed over the same trailing window.
func BollingerBands(prices []float64, period int, stdDevMultiplier float64) (Bands, bool) {
	middle, ok := SMA(prices, period)
	if !ok {
		return Bands{}, false
	}
	window := prices[len(prices)-period:]
	stdDev, err := stats.StandardDeviationPopulation(stats.Float64Data(window))
	if err != nil {
		return Bands{}, false
	}
	return Bands{
		Upper:  middle + stdDevMultiplier*stdDev,
		Middle: middle,
		Lower:  middle - stdDevMultiplier*stdDev,
	}, true
}
