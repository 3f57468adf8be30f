package datamodels

import "time"

// TradeSignal is a strategy's proposed trade. A buy carries a cash amount
// to spend, a sell carries an asset amount to unload. Signals are
// transient: they survive only as the Transaction they produce.
type TradeSignal struct {
	SignalId    string    `json:"signal_id"`
	Strategy    string    `json:"strategy"`
	Symbol      Symbol    `json:"symbol"`
	Side        OrderSide `json:"side"`
	CashAmount  float64   `json:"cash_amount,omitempty"`
	AssetAmount float64   `json:"asset_amount,omitempty"`
	Price       float64   `json:"price"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}

// StrategyInfo describes one registered strategy to the host layer.
type StrategyInfo struct {
	Name   string             `json:"name"`
	Active bool               `json:"active"`
	Params map[string]float64 `json:"params"`
}
