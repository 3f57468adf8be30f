package strategies

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"papertrader/src/datamodels"
	"papertrader/src/indicators"
	"papertrader/src/utils/errors"
)

const maAllocationFraction = 0.10

// MACrossover signals on the spread between a short and a long simple
// moving average. A spread of at least threshold (relative to the long
// average) buys with 10% of cash when the short side leads, and sells 10%
// of the holding when it lags.
type MACrossover struct {
	mu          sync.RWMutex
	name        string
	active      bool
	shortPeriod int
	longPeriod  int
	threshold   float64
}

func NewMACrossover(cfg datamodels.MovingAverageConfig) *MACrossover {
	return &MACrossover{
		name:        "ma-crossover",
		shortPeriod: cfg.ShortPeriod,
		longPeriod:  cfg.LongPeriod,
		threshold:   cfg.Threshold,
	}
}

func (s *MACrossover) Name() string { return s.name }

func (s *MACrossover) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *MACrossover) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *MACrossover) Params() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]float64{
		"short_period": float64(s.shortPeriod),
		"long_period":  float64(s.longPeriod),
		"threshold":    s.threshold,
	}
}

func (s *MACrossover) UpdateParams(params map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := params["short_period"]; ok {
		if v < 1 {
			return errors.Newf("short_period %v must be >= 1", v)
		}
		s.shortPeriod = int(v)
	}
	if v, ok := params["long_period"]; ok {
		if v < 2 {
			return errors.Newf("long_period %v must be >= 2", v)
		}
		s.longPeriod = int(v)
	}
	if v, ok := params["threshold"]; ok {
		if v <= 0 {
			return errors.Newf("threshold %v must be positive", v)
		}
		s.threshold = v
	}
	if s.shortPeriod >= s.longPeriod {
		return errors.Newf("short_period %d must be below long_period %d", s.shortPeriod, s.longPeriod)
	}
	return nil
}

func (s *MACrossover) Evaluate(ctx Context) (*datamodels.TradeSignal, bool) {
	s.mu.RLock()
	shortPeriod, longPeriod, threshold := s.shortPeriod, s.longPeriod, s.threshold
	s.mu.RUnlock()

	short, ok := indicators.SMA(ctx.Prices, shortPeriod)
	if !ok {
		return nil, false
	}
	long, ok := indicators.SMA(ctx.Prices, longPeriod)
	if !ok || long == 0 {
		return nil, false
	}
	spread := math.Abs(short-long) / long
	if spread < threshold {
		return nil, false
	}

	if short > long {
		cash := ctx.Cash * maAllocationFraction
		if cash <= 0 {
			return nil, false
		}
		return &datamodels.TradeSignal{
			SignalId:   uuid.NewString(),
			Strategy:   s.name,
			Symbol:     ctx.Symbol,
			Side:       datamodels.OrderSideBuy,
			CashAmount: cash,
			Price:      ctx.Price,
			Reason:     fmt.Sprintf("SMA(%d) %.4f above SMA(%d) %.4f by %.2f%%", shortPeriod, short, longPeriod, long, spread*100),
			Timestamp:  time.Now(),
		}, true
	}

	amount := ctx.Holding * maAllocationFraction
	if amount <= 0 {
		return nil, false
	}
	return &datamodels.TradeSignal{
		SignalId:    uuid.NewString(),
		Strategy:    s.name,
		Symbol:      ctx.Symbol,
		Side:        datamodels.OrderSideSell,
		AssetAmount: amount,
		Price:       ctx.Price,
		Reason:      fmt.Sprintf("SMA(%d) %.4f below SMA(%d) %.4f by %.2f%%", shortPeriod, short, longPeriod, long, spread*100),
		Timestamp:   time.Now(),
	}, true
}
