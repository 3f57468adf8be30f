package simulator

import (
	"math"
	"math/rand"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"
	"papertrader/src/utils/general"
)

// ErrGeneratorFailure marks a price computation that blew up for a single
// asset. The tick batch keeps going; the asset keeps its last valid price.
var ErrGeneratorFailure = errors.New("price generator failure")

const (
	priceDecimals = 8
	minPrice      = 1e-8

	cryptoSpikeProbability    = 0.05
	commodityShockProbability = 0.02
	equityMomentumFactor      = 0.2
	forexMomentumFactor       = 0.4
)

// Generator produces per-tick price updates for one asset at a time. It is
// owned by the simulation lane and is not safe for concurrent use; all
// randomness flows through the injected source so tests can seed it.
type Generator struct {
	baseVolatility float64
	rng            *rand.Rand
}

func NewGenerator(baseVolatility float64, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if baseVolatility <= 0 {
		baseVolatility = 0.01
	}
	return &Generator{baseVolatility: baseVolatility, rng: rng}
}

// NextTick advances one asset by one tick. On an internal failure the
// returned state equals the input state and the error wraps
// ErrGeneratorFailure; the caller reports it and moves on.
func (g *Generator) NextTick(state datamodels.AssetGenState, now time.Time) (next datamodels.AssetGenState, update datamodels.PriceUpdate, err error) {
	defer func() {
		if r := recover(); r != nil {
			next = state
			update = datamodels.PriceUpdate{}
			err = errors.Wrapf(ErrGeneratorFailure, "asset %s: %v", state.Symbol, r)
		}
	}()

	volatility := g.baseVolatility
	if state.Category == datamodels.CategoryForex {
		// Forex pairs move on a halved base volatility.
		volatility /= 2
	}

	delta := (g.rng.Float64()*2 - 1) * volatility * state.VolatilityFactor
	adjustment := g.categoryAdjustment(state, volatility*state.VolatilityFactor)
	totalChange := delta + adjustment

	oldPrice := state.Price
	newPrice := general.RoundToDecimals(oldPrice*(1+totalChange), priceDecimals)
	if newPrice < minPrice {
		// Pathological draws (totalChange <= -1) would take the price
		// non-positive; clamp instead of letting the walk die.
		newPrice = minPrice
	}

	next = state
	next.Price = newPrice
	next.LastChange = totalChange

	update = g.synthesizeUpdate(state.Symbol, state.Category, oldPrice, newPrice, totalChange, now)
	return next, update, nil
}

func (g *Generator) categoryAdjustment(state datamodels.AssetGenState, volatility float64) float64 {
	switch state.Category {
	case datamodels.CategoryCrypto:
		if g.rng.Float64() < cryptoSpikeProbability {
			return (g.rng.Float64() - 0.5) * volatility * 2
		}
	case datamodels.CategoryEquity:
		return equityMomentumFactor * state.LastChange
	case datamodels.CategoryForex:
		return forexMomentumFactor * state.LastChange
	case datamodels.CategoryCommodity:
		if g.rng.Float64() < commodityShockProbability {
			return (g.rng.Float64() - 0.5) * volatility * 3
		}
	}
	return 0
}

// synthesizeUpdate derives OHLC and volume from the previous and new close.
// The wick brackets open/close by 0.2-0.5% and volume scales with a
// category base rate and the magnitude of the move.
func (g *Generator) synthesizeUpdate(symbol datamodels.Symbol, category datamodels.AssetCategory, oldPrice, newPrice, change float64, now time.Time) datamodels.PriceUpdate {
	wick := 0.002 + g.rng.Float64()*0.003
	high := math.Max(oldPrice, newPrice) * (1 + wick)
	low := math.Min(oldPrice, newPrice) * (1 - wick)

	volume := baseVolumeRate(category) * (1 + math.Abs(change)*100) * (0.5 + g.rng.Float64())

	return datamodels.PriceUpdate{
		Symbol:    symbol,
		Price:     newPrice,
		Open:      oldPrice,
		High:      general.RoundToDecimals(high, priceDecimals),
		Low:       general.RoundToDecimals(low, priceDecimals),
		Close:     newPrice,
		Volume:    general.RoundToDecimals(volume, 2),
		Change:    change,
		Timestamp: now,
	}
}

func baseVolumeRate(category datamodels.AssetCategory) float64 {
	switch category {
	case datamodels.CategoryCrypto:
		return 1200
	case datamodels.CategoryEquity:
		return 90000
	case datamodels.CategoryForex:
		return 500000
	case datamodels.CategoryCommodity:
		return 25000
	default:
		return 1000
	}
}
