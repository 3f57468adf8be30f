package portfolio

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"
)

// ConditionalOrder is a resting order evaluated against the latest price
// every tick. Amount is a cash amount for buy-side orders and an asset
// amount for sell-side orders, mirroring the two ledger primitives.
type ConditionalOrder struct {
	Id              string                           `json:"id"`
	Type            datamodels.ConditionalOrderType  `json:"type"`
	Symbol          datamodels.Symbol                `json:"symbol"`
	TriggerPrice    float64                          `json:"trigger_price"`
	Amount          float64                          `json:"amount"`
	TrailingPercent float64                          `json:"trailing_percent,omitempty"`

	// highWatermark tracks the best price seen since placement; only
	// trailing stops use it.
	highWatermark float64
}

// OrderBook holds resting conditional orders and fires them through the
// ledger when their trigger condition holds. Triggered orders are removed
// whether or not the resulting trade succeeds; a failed trade (say,
// insufficient funds by the time a limit-buy fires) is logged and dropped.
type OrderBook struct {
	mu     sync.Mutex
	ledger *Ledger
	orders []*ConditionalOrder
}

func NewOrderBook(ledger *Ledger) *OrderBook {
	return &OrderBook{ledger: ledger}
}

// Place validates and registers a conditional order, returning its id.
func (ob *OrderBook) Place(order ConditionalOrder) (string, error) {
	switch order.Type {
	case datamodels.OrderTypeStopLoss, datamodels.OrderTypeTakeProfit,
		datamodels.OrderTypeLimitBuy, datamodels.OrderTypeLimitSell,
		datamodels.OrderTypeTrailingStop:
	default:
		return "", errors.Newf("unknown conditional order type %q", order.Type)
	}
	if order.Amount <= 0 {
		return "", errors.Wrapf(ErrInvalidAmount, "conditional order amount %v", order.Amount)
	}
	if order.Type == datamodels.OrderTypeTrailingStop {
		if order.TrailingPercent <= 0 || order.TrailingPercent >= 100 {
			return "", errors.Newf("trailing percent %v out of range (0, 100)", order.TrailingPercent)
		}
	} else if order.TriggerPrice <= 0 {
		return "", errors.Wrapf(ErrInvalidAmount, "trigger price %v", order.TriggerPrice)
	}

	order.Id = uuid.NewString()
	price, err := ob.ledger.prices.LastPrice(order.Symbol)
	if err != nil {
		return "", errors.WrapE(ErrUnknownAsset, err)
	}
	order.highWatermark = price

	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.orders = append(ob.orders, &order)
	return order.Id, nil
}

func (ob *OrderBook) Cancel(id string) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	for i, order := range ob.orders {
		if order.Id == id {
			ob.orders = append(ob.orders[:i], ob.orders[i+1:]...)
			return true
		}
	}
	return false
}

func (ob *OrderBook) Orders() []ConditionalOrder {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	out := make([]ConditionalOrder, 0, len(ob.orders))
	for _, order := range ob.orders {
		out = append(out, *order)
	}
	return out
}

// Evaluate checks every resting order against the latest prices and
// executes the ones whose conditions hold. Returns the transactions that
// resulted. Called once per housekeeping tick.
func (ob *OrderBook) Evaluate() []datamodels.Transaction {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	var executed []datamodels.Transaction
	remaining := ob.orders[:0]
	for _, order := range ob.orders {
		price, err := ob.ledger.prices.LastPrice(order.Symbol)
		if err != nil {
			remaining = append(remaining, order)
			continue
		}
		if !order.triggered(price) {
			remaining = append(remaining, order)
			continue
		}

		tx, err := ob.execute(order, price)
		if err != nil {
			slog.Warn("Conditional order failed to execute",
				"id", order.Id, "type", order.Type, "symbol", order.Symbol, "error", err)
			continue
		}
		slog.Info("Conditional order executed",
			"id", order.Id, "type", order.Type, "symbol", order.Symbol, "price", price)
		executed = append(executed, tx)
	}
	ob.orders = remaining
	return executed
}

func (o *ConditionalOrder) triggered(price float64) bool {
	switch o.Type {
	case datamodels.OrderTypeStopLoss:
		return price <= o.TriggerPrice
	case datamodels.OrderTypeTakeProfit:
		return price >= o.TriggerPrice
	case datamodels.OrderTypeLimitBuy:
		return price <= o.TriggerPrice
	case datamodels.OrderTypeLimitSell:
		return price >= o.TriggerPrice
	case datamodels.OrderTypeTrailingStop:
		if price > o.highWatermark {
			o.highWatermark = price
		}
		return price <= o.highWatermark*(1-o.TrailingPercent/100)
	}
	return false
}

func (ob *OrderBook) execute(order *ConditionalOrder, price float64) (datamodels.Transaction, error) {
	label := string(order.Type)
	if order.Type == datamodels.OrderTypeLimitBuy {
		return ob.ledger.Buy(order.Symbol, order.Amount, label)
	}
	// Sell no more than is actually held so partial positions still close.
	amount := order.Amount
	if held := ob.ledger.Holding(order.Symbol); held < amount {
		amount = held
	}
	return ob.ledger.Sell(order.Symbol, amount, label)
}
