package datamodels

import "time"

type BaseModel struct {
	Id        int64 `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionRecord is the persisted header of one saved session. The rest of
// the session (holdings, transactions, strategy state) hangs off SessionId.
type SessionRecord struct {
	BaseModel
	SessionId         string    `gorm:"not null;index"`
	SavedAt           time.Time `gorm:"not null;index"`
	Cash              float64   `gorm:"not null"`
	InitialInvestment float64   `gorm:"not null"`
	SelectedAsset     string
}

type HoldingRecord struct {
	BaseModel
	SessionId string  `gorm:"not null;index"`
	Symbol    string  `gorm:"not null;index"`
	Amount    float64 `gorm:"not null"`
}

type TransactionRecord struct {
	BaseModel
	SessionId      string    `gorm:"not null;index"`
	TransactionId  string    `gorm:"not null"`
	Timestamp      time.Time `gorm:"not null;index"`
	Symbol         string    `gorm:"not null;index"`
	Side           string    `gorm:"not null"`
	AssetAmount    float64   `gorm:"not null"`
	CashAmount     float64   `gorm:"not null"`
	Price          float64   `gorm:"not null"`
	PortfolioValue float64   `gorm:"not null"`
	Strategy       string
}

type StrategyRecord struct {
	BaseModel
	SessionId string `gorm:"not null;index"`
	Name      string `gorm:"not null"`
	Active    bool   `gorm:"not null"`
	Params    string `gorm:"type:text"` // JSON-encoded parameter map
	Rules     string `gorm:"type:text"` // JSON-encoded rule list, empty for built-ins
}

type ValueSnapshotRecord struct {
	BaseModel
	SessionId  string    `gorm:"not null;index"`
	Timestamp  time.Time `gorm:"not null;index"`
	TotalValue float64   `gorm:"not null"`
	Cash       float64   `gorm:"not null"`
	ROI        float64   `gorm:"not null"`
}
