package datamodels

import "time"

type Symbol string

type AssetCategory string

const (
	CategoryCrypto    AssetCategory = "crypto"
	CategoryEquity    AssetCategory = "equity"
	CategoryForex     AssetCategory = "forex"
	CategoryCommodity AssetCategory = "commodity"
)

func (c AssetCategory) Valid() bool {
	switch c {
	case CategoryCrypto, CategoryEquity, CategoryForex, CategoryCommodity:
		return true
	}
	return false
}

// AssetSpec is one catalogue entry supplied by the host layer at startup.
type AssetSpec struct {
	Symbol           Symbol        `mapstructure:"symbol" json:"symbol"`
	Name             string        `mapstructure:"name" json:"name"`
	Category         AssetCategory `mapstructure:"category" json:"category"`
	StartPrice       float64       `mapstructure:"start_price" json:"start_price"`
	VolatilityFactor float64       `mapstructure:"volatility_factor" json:"volatility_factor"`
}

// AssetGenState is the per-asset state the simulation lane owns: current
// price plus the previous tick's realized change, which feeds the momentum
// term for equity and forex assets. It crosses the lane boundary by value
// only, never by reference.
type AssetGenState struct {
	Symbol           Symbol        `json:"symbol"`
	Category         AssetCategory `json:"category"`
	Price            float64       `json:"price"`
	VolatilityFactor float64       `json:"volatility_factor"`
	LastChange       float64       `json:"last_change"`
}

// PriceUpdate is one asset's result for one tick.
type PriceUpdate struct {
	Symbol    Symbol    `json:"symbol"`
	Price     float64   `json:"price"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Change    float64   `json:"change"`
	Timestamp time.Time `json:"timestamp"`
}

// TickBatch carries every asset's update for one simulation tick.
type TickBatch struct {
	Tick      int64                  `json:"tick"`
	Timestamp time.Time              `json:"timestamp"`
	Updates   map[Symbol]PriceUpdate `json:"updates"`
}
