package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrader/src/datamodels"
)

func TestStopLossTriggersOnDrop(t *testing.T) {
	prices := stubPrices{"BTC": 40000}
	ledger := newTestLedger(10000, prices)
	_, err := ledger.Buy("BTC", 4000, "")
	require.NoError(t, err)

	book := NewOrderBook(ledger)
	_, err = book.Place(ConditionalOrder{
		Type:         datamodels.OrderTypeStopLoss,
		Symbol:       "BTC",
		TriggerPrice: 38000,
		Amount:       0.1,
	})
	require.NoError(t, err)

	// Above the trigger: nothing fires.
	assert.Empty(t, book.Evaluate())
	assert.Len(t, book.Orders(), 1)

	prices["BTC"] = 37500
	executed := book.Evaluate()
	require.Len(t, executed, 1)
	assert.Equal(t, datamodels.OrderSideSell, executed[0].Side)
	assert.Equal(t, string(datamodels.OrderTypeStopLoss), executed[0].Strategy)
	assert.Zero(t, ledger.Holding("BTC"))
	assert.Empty(t, book.Orders())
}

func TestTakeProfitAndLimitOrders(t *testing.T) {
	prices := stubPrices{"BTC": 40000}
	ledger := newTestLedger(10000, prices)
	_, err := ledger.Buy("BTC", 4000, "")
	require.NoError(t, err)

	book := NewOrderBook(ledger)
	_, err = book.Place(ConditionalOrder{
		Type: datamodels.OrderTypeTakeProfit, Symbol: "BTC", TriggerPrice: 44000, Amount: 0.05,
	})
	require.NoError(t, err)
	_, err = book.Place(ConditionalOrder{
		Type: datamodels.OrderTypeLimitBuy, Symbol: "BTC", TriggerPrice: 36000, Amount: 1000,
	})
	require.NoError(t, err)

	prices["BTC"] = 44500
	executed := book.Evaluate()
	require.Len(t, executed, 1)
	assert.Equal(t, datamodels.OrderSideSell, executed[0].Side)

	prices["BTC"] = 35000
	executed = book.Evaluate()
	require.Len(t, executed, 1)
	assert.Equal(t, datamodels.OrderSideBuy, executed[0].Side)
	assert.Empty(t, book.Orders())
}

func TestTrailingStopFollowsHighWatermark(t *testing.T) {
	prices := stubPrices{"BTC": 40000}
	ledger := newTestLedger(10000, prices)
	_, err := ledger.Buy("BTC", 4000, "")
	require.NoError(t, err)

	book := NewOrderBook(ledger)
	_, err = book.Place(ConditionalOrder{
		Type:            datamodels.OrderTypeTrailingStop,
		Symbol:          "BTC",
		Amount:          0.1,
		TrailingPercent: 5,
	})
	require.NoError(t, err)

	// Price climbs; the watermark follows and nothing fires.
	prices["BTC"] = 44000
	assert.Empty(t, book.Evaluate())
	prices["BTC"] = 46000
	assert.Empty(t, book.Evaluate())

	// A 4% retracement from the 46000 watermark stays inside the band.
	prices["BTC"] = 44200
	assert.Empty(t, book.Evaluate())

	// A drop past 5% below the watermark fires.
	prices["BTC"] = 43500
	executed := book.Evaluate()
	require.Len(t, executed, 1)
	assert.Equal(t, datamodels.OrderSideSell, executed[0].Side)
}

func TestPlaceValidation(t *testing.T) {
	ledger := newTestLedger(10000, stubPrices{"BTC": 40000})
	book := NewOrderBook(ledger)

	_, err := book.Place(ConditionalOrder{Type: "bracket", Symbol: "BTC", TriggerPrice: 1, Amount: 1})
	assert.Error(t, err)

	_, err = book.Place(ConditionalOrder{Type: datamodels.OrderTypeStopLoss, Symbol: "BTC", TriggerPrice: 38000, Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = book.Place(ConditionalOrder{Type: datamodels.OrderTypeTrailingStop, Symbol: "BTC", Amount: 1, TrailingPercent: 150})
	assert.Error(t, err)

	_, err = book.Place(ConditionalOrder{Type: datamodels.OrderTypeStopLoss, Symbol: "DOGE", TriggerPrice: 1, Amount: 1})
	assert.ErrorIs(t, err, ErrUnknownAsset)
}

func TestCancelRemovesOrder(t *testing.T) {
	ledger := newTestLedger(10000, stubPrices{"BTC": 40000})
	book := NewOrderBook(ledger)

	id, err := book.Place(ConditionalOrder{
		Type: datamodels.OrderTypeStopLoss, Symbol: "BTC", TriggerPrice: 38000, Amount: 0.1,
	})
	require.NoError(t, err)

	assert.True(t, book.Cancel(id))
	assert.False(t, book.Cancel(id))
	assert.Empty(t, book.Orders())
}

func TestTriggeredSellCapsAtHolding(t *testing.T) {
	prices := stubPrices{"BTC": 40000}
	ledger := newTestLedger(10000, prices)
	_, err := ledger.Buy("BTC", 4000, "")
	require.NoError(t, err)

	book := NewOrderBook(ledger)
	_, err = book.Place(ConditionalOrder{
		Type: datamodels.OrderTypeStopLoss, Symbol: "BTC", TriggerPrice: 38000, Amount: 5,
	})
	require.NoError(t, err)

	prices["BTC"] = 30000
	executed := book.Evaluate()
	require.Len(t, executed, 1)
	assert.InDelta(t, 0.1, executed[0].AssetAmount, 1e-12)
	assert.Zero(t, ledger.Holding("BTC"))
}
