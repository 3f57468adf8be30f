package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrader/src/datamodels"
)

func TestNewRuleBasedValidation(t *testing.T) {
	valid := Rule{Indicator: IndicatorRSI, Period: 14, Condition: ConditionBelow, Threshold: 30, Action: ActionBuy, Allocation: 0.25}

	_, err := NewRuleBased("", []Rule{valid})
	assert.ErrorIs(t, err, ErrInvalidStrategyRule)

	_, err = NewRuleBased("custom", nil)
	assert.ErrorIs(t, err, ErrInvalidStrategyRule)

	bad := valid
	bad.Indicator = "vwap"
	_, err = NewRuleBased("custom", []Rule{bad})
	assert.ErrorIs(t, err, ErrInvalidStrategyRule)

	bad = valid
	bad.Condition = "near"
	_, err = NewRuleBased("custom", []Rule{bad})
	assert.ErrorIs(t, err, ErrInvalidStrategyRule)

	bad = valid
	bad.Action = "short"
	_, err = NewRuleBased("custom", []Rule{bad})
	assert.ErrorIs(t, err, ErrInvalidStrategyRule)

	bad = valid
	bad.Allocation = 1.5
	_, err = NewRuleBased("custom", []Rule{bad})
	assert.ErrorIs(t, err, ErrInvalidStrategyRule)

	bad = valid
	bad.Condition = ConditionBetween
	bad.UpperThreshold = 20 // below Threshold
	_, err = NewRuleBased("custom", []Rule{bad})
	assert.ErrorIs(t, err, ErrInvalidStrategyRule)

	// One bad rule rejects the whole set.
	_, err = NewRuleBased("custom", []Rule{valid, {Indicator: "vwap"}})
	assert.ErrorIs(t, err, ErrInvalidStrategyRule)

	s, err := NewRuleBased("custom", []Rule{valid})
	require.NoError(t, err)
	assert.Equal(t, "custom", s.Name())
	assert.False(t, s.Active())
}

func TestRegistryCustomStrategies(t *testing.T) {
	rules := []Rule{
		{Indicator: IndicatorRSI, Period: 14, Condition: ConditionBelow, Threshold: 30, Action: ActionBuy, Allocation: 0.25},
	}
	custom, err := NewRuleBased("dip-buyer", rules)
	require.NoError(t, err)

	registry := NewRegistry()
	require.NoError(t, registry.Register(NewMACrossover(datamodels.MovingAverageConfig{ShortPeriod: 10, LongPeriod: 20})))
	require.NoError(t, registry.Register(custom))
	require.NoError(t, registry.SetActive("dip-buyer", true))

	customs := registry.CustomStrategies()
	require.Len(t, customs, 1)
	assert.Equal(t, "dip-buyer", customs[0].Name)
	assert.True(t, customs[0].Active)
	assert.Equal(t, rules, customs[0].Rules)

	// The exported info round-trips through construction.
	rebuilt, err := NewRuleBased(customs[0].Name+"-copy", customs[0].Rules)
	require.NoError(t, err)
	assert.Empty(t, rebuilt.Params())
}

func TestRuleBasedBuyOnRSIBelow(t *testing.T) {
	s, err := NewRuleBased("dip-buyer", []Rule{
		{Indicator: IndicatorRSI, Period: 14, Condition: ConditionBelow, Threshold: 30, Action: ActionBuy, Allocation: 0.5},
	})
	require.NoError(t, err)

	signal, ok := s.Evaluate(Context{Symbol: "BTC", Prices: declining(20, 100, 0.5), Price: 90, Cash: 1000, Holding: 0})
	require.True(t, ok)
	assert.Equal(t, datamodels.OrderSideBuy, signal.Side)
	assert.InDelta(t, 500, signal.CashAmount, 1e-9)
	assert.Equal(t, "dip-buyer", signal.Strategy)
}

func TestRuleBasedFirstMatchWins(t *testing.T) {
	s, err := NewRuleBased("layered", []Rule{
		{Indicator: IndicatorRSI, Period: 14, Condition: ConditionBelow, Threshold: 30, Action: ActionSell, Allocation: 0.1},
		{Indicator: IndicatorRSI, Period: 14, Condition: ConditionBelow, Threshold: 50, Action: ActionBuy, Allocation: 0.5},
	})
	require.NoError(t, err)

	// Both rules match a zero RSI; only the first fires.
	signal, ok := s.Evaluate(Context{Symbol: "BTC", Prices: declining(20, 100, 0.5), Price: 90, Cash: 1000, Holding: 2})
	require.True(t, ok)
	assert.Equal(t, datamodels.OrderSideSell, signal.Side)
	assert.InDelta(t, 0.2, signal.AssetAmount, 1e-12)
}

func TestRuleBasedHoldEndsEvaluation(t *testing.T) {
	s, err := NewRuleBased("cautious", []Rule{
		{Indicator: IndicatorRSI, Period: 14, Condition: ConditionBelow, Threshold: 30, Action: ActionHold},
		{Indicator: IndicatorRSI, Period: 14, Condition: ConditionBelow, Threshold: 50, Action: ActionBuy, Allocation: 0.5},
	})
	require.NoError(t, err)

	_, ok := s.Evaluate(Context{Symbol: "BTC", Prices: declining(20, 100, 0.5), Price: 90, Cash: 1000, Holding: 0})
	assert.False(t, ok)
}

func TestRuleBasedCrossBelow(t *testing.T) {
	s, err := NewRuleBased("breakdown", []Rule{
		{Indicator: IndicatorSMA, Period: 5, Condition: ConditionCrossBelow, Threshold: 100, Action: ActionSell, Allocation: 1},
	})
	require.NoError(t, err)

	// SMA(5) over the first five is exactly 100; appending 90 pulls the
	// current reading below the threshold while the previous sits on it.
	prices := []float64{100, 100, 100, 100, 100, 90}
	signal, ok := s.Evaluate(Context{Symbol: "BTC", Prices: prices, Price: 90, Cash: 0, Holding: 1})
	require.True(t, ok)
	assert.Equal(t, datamodels.OrderSideSell, signal.Side)

	// Already below on both readings: no cross, no signal.
	prices = []float64{90, 90, 90, 90, 90, 89}
	_, ok = s.Evaluate(Context{Symbol: "BTC", Prices: prices, Price: 89, Cash: 0, Holding: 1})
	assert.False(t, ok)
}

func TestRuleBasedCrossAbove(t *testing.T) {
	s, err := NewRuleBased("breakout", []Rule{
		{Indicator: IndicatorSMA, Period: 5, Condition: ConditionCrossAbove, Threshold: 100, Action: ActionBuy, Allocation: 0.5},
	})
	require.NoError(t, err)

	prices := []float64{100, 100, 100, 100, 100, 110}
	signal, ok := s.Evaluate(Context{Symbol: "BTC", Prices: prices, Price: 110, Cash: 1000, Holding: 0})
	require.True(t, ok)
	assert.Equal(t, datamodels.OrderSideBuy, signal.Side)
	assert.InDelta(t, 500, signal.CashAmount, 1e-9)
}

func TestRuleBasedBetweenAndOutside(t *testing.T) {
	between, err := NewRuleBased("band", []Rule{
		{Indicator: IndicatorRSI, Period: 14, Condition: ConditionBetween, Threshold: 40, UpperThreshold: 60, Action: ActionBuy, Allocation: 0.5},
	})
	require.NoError(t, err)

	// Flat series: no gains, no losses after the first delta; a gentle
	// alternation keeps RSI mid-range.
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100
		if i%2 == 1 {
			prices[i] = 100.5
		}
	}
	_, ok := between.Evaluate(Context{Symbol: "BTC", Prices: prices, Price: 100, Cash: 1000, Holding: 0})
	assert.True(t, ok)

	outside, err := NewRuleBased("edges", []Rule{
		{Indicator: IndicatorRSI, Period: 14, Condition: ConditionOutside, Threshold: 20, UpperThreshold: 80, Action: ActionSell, Allocation: 0.5},
	})
	require.NoError(t, err)

	signal, ok := outside.Evaluate(Context{Symbol: "BTC", Prices: declining(20, 100, 0.5), Price: 90, Cash: 0, Holding: 2})
	require.True(t, ok)
	assert.Equal(t, datamodels.OrderSideSell, signal.Side)
}

func TestRuleBasedInsufficientHistorySkipsRule(t *testing.T) {
	s, err := NewRuleBased("patient", []Rule{
		{Indicator: IndicatorSMA, Period: 50, Condition: ConditionAbove, Threshold: 0, Action: ActionBuy, Allocation: 0.5},
	})
	require.NoError(t, err)

	_, ok := s.Evaluate(Context{Symbol: "BTC", Prices: declining(20, 100, 0.5), Price: 90, Cash: 1000, Holding: 0})
	assert.False(t, ok)
}
