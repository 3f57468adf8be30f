package datamodels

import "time"

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Transaction is an immutable record of one executed trade.
type Transaction struct {
	Id             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Symbol         Symbol    `json:"symbol"`
	Side           OrderSide `json:"side"`
	AssetAmount    float64   `json:"asset_amount"`
	CashAmount     float64   `json:"cash_amount"`
	Price          float64   `json:"price"`
	PortfolioValue float64   `json:"portfolio_value"`
	Strategy       string    `json:"strategy,omitempty"`
}

func (t *Transaction) Copy() Transaction {
	return Transaction{
		Id:             t.Id,
		Timestamp:      t.Timestamp,
		Symbol:         t.Symbol,
		Side:           t.Side,
		AssetAmount:    t.AssetAmount,
		CashAmount:     t.CashAmount,
		Price:          t.Price,
		PortfolioValue: t.PortfolioValue,
		Strategy:       t.Strategy,
	}
}

// ValueSnapshot is one point of the portfolio's value-over-time history.
type ValueSnapshot struct {
	Timestamp  time.Time `json:"timestamp"`
	TotalValue float64   `json:"total_value"`
	Cash       float64   `json:"cash"`
	ROI        float64   `json:"roi"`
}

type ConditionalOrderType string

const (
	OrderTypeStopLoss     ConditionalOrderType = "stop-loss"
	OrderTypeTakeProfit   ConditionalOrderType = "take-profit"
	OrderTypeLimitBuy     ConditionalOrderType = "limit-buy"
	OrderTypeLimitSell    ConditionalOrderType = "limit-sell"
	OrderTypeTrailingStop ConditionalOrderType = "trailing-stop"
)

// PortfolioSnapshot is the queryable state exposed to the host layer.
type PortfolioSnapshot struct {
	Timestamp         time.Time          `json:"timestamp"`
	Cash              float64            `json:"cash"`
	InitialInvestment float64            `json:"initial_investment"`
	Holdings          map[Symbol]float64 `json:"holdings"`
	Prices            map[Symbol]float64 `json:"prices"`
	SelectedAsset     Symbol             `json:"selected_asset"`
	TotalValue        float64            `json:"total_value"`
	ROI               float64            `json:"roi"`
	HighestValue      float64            `json:"highest_value"`
	LowestValue       float64            `json:"lowest_value"`
	Drawdown          float64            `json:"drawdown"`
	Transactions      []Transaction      `json:"transactions"`
	ValueHistory      []ValueSnapshot    `json:"value_history"`
}
