package simulator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrader/src/datamodels"
)

func cryptoState(price float64) datamodels.AssetGenState {
	return datamodels.AssetGenState{
		Symbol:           "BTC",
		Category:         datamodels.CategoryCrypto,
		Price:            price,
		VolatilityFactor: 1.5,
	}
}

func TestNextTickDeterministicWithSeed(t *testing.T) {
	now := time.Now()
	genA := NewGenerator(0.01, rand.New(rand.NewSource(42)))
	genB := NewGenerator(0.01, rand.New(rand.NewSource(42)))

	stateA, stateB := cryptoState(50000), cryptoState(50000)
	for i := 0; i < 100; i++ {
		nextA, updateA, errA := genA.NextTick(stateA, now)
		nextB, updateB, errB := genB.NextTick(stateB, now)
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, nextA.Price, nextB.Price)
		assert.Equal(t, updateA.Volume, updateB.Volume)
		stateA, stateB = nextA, nextB
	}
}

func TestNextTickPriceStaysPositive(t *testing.T) {
	gen := NewGenerator(0.01, rand.New(rand.NewSource(7)))
	now := time.Now()

	state := cryptoState(0.00000010)
	for i := 0; i < 1000; i++ {
		next, _, err := gen.NextTick(state, now)
		require.NoError(t, err)
		if next.Price <= 0 {
			t.Fatalf("price went non-positive on tick %d: %v", i, next.Price)
		}
		state = next
	}
}

func TestNextTickRoundsToEightDecimals(t *testing.T) {
	gen := NewGenerator(0.01, rand.New(rand.NewSource(3)))
	state := cryptoState(123.456789)

	next, _, err := gen.NextTick(state, time.Now())
	require.NoError(t, err)

	scaled := next.Price * 1e8
	assert.InDelta(t, math.Round(scaled), scaled, 1e-3)
}

func TestEquityMomentumCarriesLastChange(t *testing.T) {
	gen := NewGenerator(0.01, rand.New(rand.NewSource(11)))
	state := datamodels.AssetGenState{
		Symbol:           "AAPL",
		Category:         datamodels.CategoryEquity,
		Price:            200,
		VolatilityFactor: 1,
		LastChange:       0.05,
	}

	adjustment := gen.categoryAdjustment(state, 0.01)
	assert.InDelta(t, 0.2*0.05, adjustment, 1e-12)
}

func TestForexMomentumFactor(t *testing.T) {
	gen := NewGenerator(0.01, rand.New(rand.NewSource(11)))
	state := datamodels.AssetGenState{
		Symbol:           "EURUSD",
		Category:         datamodels.CategoryForex,
		Price:            1.08,
		VolatilityFactor: 1,
		LastChange:       -0.002,
	}

	adjustment := gen.categoryAdjustment(state, 0.005)
	assert.InDelta(t, 0.4*-0.002, adjustment, 1e-12)
}

func TestNextTickUpdateInvariants(t *testing.T) {
	gen := NewGenerator(0.01, rand.New(rand.NewSource(19)))
	now := time.Now()
	state := cryptoState(50000)

	for i := 0; i < 200; i++ {
		next, update, err := gen.NextTick(state, now)
		require.NoError(t, err)

		assert.Equal(t, state.Price, update.Open)
		assert.Equal(t, next.Price, update.Close)
		assert.GreaterOrEqual(t, update.High, math.Max(update.Open, update.Close))
		assert.LessOrEqual(t, update.Low, math.Min(update.Open, update.Close))
		assert.Greater(t, update.Volume, 0.0)
		state = next
	}
}

func TestNextTickStateUnchangedOnFailure(t *testing.T) {
	// A nil rng inside an already-built generator is the easiest way to
	// force a panic inside NextTick.
	gen := &Generator{baseVolatility: 0.01, rng: nil}
	state := cryptoState(50000)

	next, _, err := gen.NextTick(state, time.Now())
	require.ErrorIs(t, err, ErrGeneratorFailure)
	assert.Equal(t, state, next)
}

func TestTickInterval(t *testing.T) {
	assert.Equal(t, 1000*time.Millisecond, TickInterval(1))
	assert.Equal(t, 500*time.Millisecond, TickInterval(2))
	assert.Equal(t, 100*time.Millisecond, TickInterval(10))
	assert.Equal(t, 50*time.Millisecond, TickInterval(20))
	// Bounded below at 50ms regardless of speed.
	assert.Equal(t, 50*time.Millisecond, TickInterval(1000))
	// Non-positive speed falls back to 1x.
	assert.Equal(t, 1000*time.Millisecond, TickInterval(0))
}
