package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrader/src/datamodels"
	"papertrader/src/portfolio"
	"papertrader/src/utils/errors"
)

type fixedPrices map[datamodels.Symbol]float64

func (p fixedPrices) LastPrice(symbol datamodels.Symbol) (float64, error) {
	price, exists := p[symbol]
	if !exists {
		return 0, errors.Newf("no price for %s", symbol)
	}
	return price, nil
}

func executorFixture(cash float64) (*Executor, *portfolio.Ledger) {
	ledger := portfolio.NewLedger(cash, fixedPrices{"BTC": 40000})
	ledger.Track("BTC")
	return NewExecutor(ledger), ledger
}

func TestExecutorAppliesBuySignal(t *testing.T) {
	executor, ledger := executorFixture(10000)

	tx, err := executor.Execute(datamodels.TradeSignal{
		SignalId:   "s1",
		Strategy:   "rsi-threshold",
		Symbol:     "BTC",
		Side:       datamodels.OrderSideBuy,
		CashAmount: 4000,
	})
	require.NoError(t, err)
	assert.Equal(t, "rsi-threshold", tx.Strategy)
	assert.InDelta(t, 0.1, ledger.Holding("BTC"), 1e-12)
	assert.InDelta(t, 6000, ledger.Cash(), 1e-9)
}

func TestExecutorAppliesSellSignal(t *testing.T) {
	executor, ledger := executorFixture(10000)
	_, err := ledger.Buy("BTC", 4000, "")
	require.NoError(t, err)

	_, err = executor.Execute(datamodels.TradeSignal{
		SignalId:    "s2",
		Strategy:    "ma-crossover",
		Symbol:      "BTC",
		Side:        datamodels.OrderSideSell,
		AssetAmount: 0.05,
	})
	require.NoError(t, err)
	assert.InDelta(t, 8000, ledger.Cash(), 1e-9)
}

func TestExecuteAllDropsRejectedSignals(t *testing.T) {
	executor, ledger := executorFixture(1000)

	executed := executor.ExecuteAll([]datamodels.TradeSignal{
		{SignalId: "a", Strategy: "x", Symbol: "BTC", Side: datamodels.OrderSideBuy, CashAmount: 5000}, // insufficient funds
		{SignalId: "b", Strategy: "y", Symbol: "BTC", Side: datamodels.OrderSideBuy, CashAmount: 400},
		{SignalId: "c", Strategy: "z", Symbol: "DOGE", Side: datamodels.OrderSideBuy, CashAmount: 100}, // unknown asset
	})

	require.Len(t, executed, 1)
	assert.Equal(t, "y", executed[0].Strategy)
	assert.InDelta(t, 600, ledger.Cash(), 1e-9)
}

func TestExecutorRejectsUnknownSide(t *testing.T) {
	executor, _ := executorFixture(1000)
	_, err := executor.Execute(datamodels.TradeSignal{SignalId: "s", Symbol: "BTC", Side: "hold"})
	assert.Error(t, err)
}
