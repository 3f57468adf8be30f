package strategies

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"papertrader/src/datamodels"
	"papertrader/src/indicators"
	"papertrader/src/utils/errors"
)

const (
	rsiAllocationFraction = 0.25
	minBuyNotional        = 10.0
)

// RSIThreshold sells into overbought readings and buys oversold ones,
// allocating a quarter of the relevant balance each time. Consecutive
// signals are separated by a cooldown measured in housekeeping ticks, so
// a reading that stays pinned past a threshold does not fire every tick.
type RSIThreshold struct {
	mu             sync.RWMutex
	name           string
	active         bool
	period         int
	overbought     float64
	oversold       float64
	cooldownPeriod int64
	lastSignalTick int64
	hasSignalled   bool
}

func NewRSIThreshold(cfg datamodels.RSIStrategyConfig) *RSIThreshold {
	return &RSIThreshold{
		name:           "rsi-threshold",
		period:         cfg.Period,
		overbought:     cfg.Overbought,
		oversold:       cfg.Oversold,
		cooldownPeriod: int64(cfg.CooldownPeriod),
	}
}

func (s *RSIThreshold) Name() string { return s.name }

func (s *RSIThreshold) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *RSIThreshold) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *RSIThreshold) Params() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]float64{
		"period":          float64(s.period),
		"overbought":      s.overbought,
		"oversold":        s.oversold,
		"cooldown_period": float64(s.cooldownPeriod),
	}
}

func (s *RSIThreshold) UpdateParams(params map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := params["period"]; ok {
		if v < 2 {
			return errors.Newf("period %v must be >= 2", v)
		}
		s.period = int(v)
	}
	if v, ok := params["overbought"]; ok {
		s.overbought = v
	}
	if v, ok := params["oversold"]; ok {
		s.oversold = v
	}
	if v, ok := params["cooldown_period"]; ok {
		if v < 0 {
			return errors.Newf("cooldown_period %v must be >= 0", v)
		}
		s.cooldownPeriod = int64(v)
	}
	if s.oversold >= s.overbought {
		return errors.Newf("oversold %v must be below overbought %v", s.oversold, s.overbought)
	}
	return nil
}

func (s *RSIThreshold) Evaluate(ctx Context) (*datamodels.TradeSignal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasSignalled && ctx.Tick-s.lastSignalTick < s.cooldownPeriod {
		return nil, false
	}

	rsi, ok := indicators.RSI(ctx.Prices, s.period)
	if !ok {
		return nil, false
	}

	if rsi >= s.overbought {
		amount := ctx.Holding * rsiAllocationFraction
		if amount <= 0 {
			return nil, false
		}
		s.lastSignalTick = ctx.Tick
		s.hasSignalled = true
		return &datamodels.TradeSignal{
			SignalId:    uuid.NewString(),
			Strategy:    s.name,
			Symbol:      ctx.Symbol,
			Side:        datamodels.OrderSideSell,
			AssetAmount: amount,
			Price:       ctx.Price,
			Reason:      fmt.Sprintf("RSI(%d) %.1f at or above overbought %.1f", s.period, rsi, s.overbought),
			Timestamp:   time.Now(),
		}, true
	}

	if rsi <= s.oversold {
		cash := ctx.Cash * rsiAllocationFraction
		if cash < minBuyNotional {
			return nil, false
		}
		s.lastSignalTick = ctx.Tick
		s.hasSignalled = true
		return &datamodels.TradeSignal{
			SignalId:   uuid.NewString(),
			Strategy:   s.name,
			Symbol:     ctx.Symbol,
			Side:       datamodels.OrderSideBuy,
			CashAmount: cash,
			Price:      ctx.Price,
			Reason:     fmt.Sprintf("RSI(%d) %.1f at or below oversold %.1f", s.period, rsi, s.oversold),
			Timestamp:  time.Now(),
		}, true
	}

	return nil, false
}
