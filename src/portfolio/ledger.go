package portfolio

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"
	"papertrader/src/utils/general"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownAsset      = errors.New("unknown asset symbol")
)

const DefaultHistoryCap = 100

// PriceSource supplies the latest known price per asset. The series store
// satisfies this.
type PriceSource interface {
	LastPrice(symbol datamodels.Symbol) (float64, error)
}

// Ledger owns the trading state: cash, per-asset holdings and the capped
// transaction and value histories. Totals are always derived from cash,
// holdings and current prices, never cached, so they cannot drift.
//
// Mutations only happen on the application event loop, but reads come from
// the host surface too, hence the mutex.
type Ledger struct {
	mu                sync.RWMutex
	cash              float64
	initialInvestment float64
	holdings          map[datamodels.Symbol]float64
	selected          datamodels.Symbol
	prices            PriceSource
	transactions      *general.RollingBuffer[datamodels.Transaction]
	valueHistory      *general.RollingBuffer[datamodels.ValueSnapshot]
	highestValue      float64
	lowestValue       float64
}

func NewLedger(initialCash float64, prices PriceSource) *Ledger {
	return &Ledger{
		cash:              initialCash,
		initialInvestment: initialCash,
		holdings:          make(map[datamodels.Symbol]float64),
		prices:            prices,
		transactions:      general.NewRollingBuffer[datamodels.Transaction](DefaultHistoryCap),
		valueHistory:      general.NewRollingBuffer[datamodels.ValueSnapshot](DefaultHistoryCap),
		highestValue:      initialCash,
		lowestValue:       initialCash,
	}
}

func (l *Ledger) WithHistoryCap(cap int) *Ledger {
	if cap > 0 {
		l.transactions = general.NewRollingBuffer[datamodels.Transaction](cap)
		l.valueHistory = general.NewRollingBuffer[datamodels.ValueSnapshot](cap)
	}
	return l
}

// Track registers a tradeable symbol. Trades against unregistered symbols
// fail with ErrUnknownAsset.
func (l *Ledger) Track(symbol datamodels.Symbol) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.holdings[symbol]; !exists {
		l.holdings[symbol] = 0
	}
	if l.selected == "" {
		l.selected = symbol
	}
}

// Buy spends cashAmount on the given asset at the current price. The trade
// either applies fully or not at all.
func (l *Ledger) Buy(symbol datamodels.Symbol, cashAmount float64, strategy string) (datamodels.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cashAmount <= 0 {
		return datamodels.Transaction{}, errors.Wrapf(ErrInvalidAmount, "buy %s: cash amount %v", symbol, cashAmount)
	}
	if _, exists := l.holdings[symbol]; !exists {
		return datamodels.Transaction{}, errors.Wrapf(ErrUnknownAsset, "buy %s", symbol)
	}
	if cashAmount > l.cash {
		return datamodels.Transaction{}, errors.Wrapf(ErrInsufficientFunds, "buy %s: need %v, have %v", symbol, cashAmount, l.cash)
	}
	price, err := l.prices.LastPrice(symbol)
	if err != nil {
		return datamodels.Transaction{}, errors.WrapE(ErrUnknownAsset, err)
	}
	if price <= 0 {
		return datamodels.Transaction{}, errors.Newf("buy %s: no valid price", symbol)
	}

	assetAmount := cashAmount / price
	l.cash -= cashAmount
	l.holdings[symbol] += assetAmount

	tx := l.recordTransaction(symbol, datamodels.OrderSideBuy, assetAmount, cashAmount, price, strategy)
	l.recordValueSnapshotLocked(tx.Timestamp)
	return tx, nil
}

// Sell liquidates assetAmount of the given asset at the current price.
func (l *Ledger) Sell(symbol datamodels.Symbol, assetAmount float64, strategy string) (datamodels.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if assetAmount <= 0 {
		return datamodels.Transaction{}, errors.Wrapf(ErrInvalidAmount, "sell %s: asset amount %v", symbol, assetAmount)
	}
	held, exists := l.holdings[symbol]
	if !exists {
		return datamodels.Transaction{}, errors.Wrapf(ErrUnknownAsset, "sell %s", symbol)
	}
	if assetAmount > held {
		return datamodels.Transaction{}, errors.Wrapf(ErrInvalidAmount, "sell %s: amount %v exceeds holding %v", symbol, assetAmount, held)
	}
	price, err := l.prices.LastPrice(symbol)
	if err != nil {
		return datamodels.Transaction{}, errors.WrapE(ErrUnknownAsset, err)
	}
	if price <= 0 {
		return datamodels.Transaction{}, errors.Newf("sell %s: no valid price", symbol)
	}

	cashAmount := assetAmount * price
	l.holdings[symbol] -= assetAmount
	l.cash += cashAmount

	tx := l.recordTransaction(symbol, datamodels.OrderSideSell, assetAmount, cashAmount, price, strategy)
	return tx, nil
}

// recordTransaction appends a transaction reflecting the already-applied
// balance changes. Caller must hold the write lock.
func (l *Ledger) recordTransaction(symbol datamodels.Symbol, side datamodels.OrderSide, assetAmount, cashAmount, price float64, strategy string) datamodels.Transaction {
	tx := datamodels.Transaction{
		Id:             uuid.NewString(),
		Timestamp:      time.Now(),
		Symbol:         symbol,
		Side:           side,
		AssetAmount:    assetAmount,
		CashAmount:     cashAmount,
		Price:          price,
		PortfolioValue: l.totalValueLocked(),
		Strategy:       strategy,
	}
	l.transactions.Add(tx)
	return tx
}

func (l *Ledger) totalValueLocked() float64 {
	total := general.SafeValue(l.cash)
	for symbol, amount := range l.holdings {
		if amount <= 0 {
			continue
		}
		price, err := l.prices.LastPrice(symbol)
		if err != nil {
			continue
		}
		total += general.SafeValue(amount * price)
	}
	return general.SafeValue(total)
}

// TotalValue derives cash plus holdings at current prices. Invalid
// components count as 0 so the result is always finite.
func (l *Ledger) TotalValue() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalValueLocked()
}

// ROI reports the percentage return over the initial investment, and 0
// when the initial investment is degenerate.
func (l *Ledger) ROI() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.roiLocked()
}

func (l *Ledger) roiLocked() float64 {
	if l.initialInvestment <= 0 {
		return 0
	}
	roi := (l.totalValueLocked() - l.initialInvestment) / l.initialInvestment * 100
	return general.SafeValue(roi)
}

func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

func (l *Ledger) Holding(symbol datamodels.Symbol) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.holdings[symbol]
}

func (l *Ledger) SelectAsset(symbol datamodels.Symbol) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.holdings[symbol]; !exists {
		return errors.Wrapf(ErrUnknownAsset, "select %s", symbol)
	}
	l.selected = symbol
	return nil
}

func (l *Ledger) SelectedAsset() datamodels.Symbol {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.selected
}

func (l *Ledger) Transactions() []datamodels.Transaction {
	return l.transactions.All()
}

func (l *Ledger) ValueHistory() []datamodels.ValueSnapshot {
	return l.valueHistory.All()
}

// RecordValueSnapshot appends one point to the value-over-time history and
// advances the high/low watermarks. Called from the housekeeping tick.
func (l *Ledger) RecordValueSnapshot(now time.Time) datamodels.ValueSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recordValueSnapshotLocked(now)
}

func (l *Ledger) recordValueSnapshotLocked(now time.Time) datamodels.ValueSnapshot {
	total := l.totalValueLocked()
	if total > l.highestValue {
		l.highestValue = total
	}
	if total < l.lowestValue {
		l.lowestValue = total
	}
	snapshot := datamodels.ValueSnapshot{
		Timestamp:  now,
		TotalValue: total,
		Cash:       l.cash,
		ROI:        l.roiLocked(),
	}
	l.valueHistory.Add(snapshot)
	return snapshot
}

// Drawdown is the percentage drop from the highest recorded total value.
func (l *Ledger) Drawdown() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.highestValue <= 0 {
		return 0
	}
	dd := (l.highestValue - l.totalValueLocked()) / l.highestValue * 100
	if dd < 0 {
		dd = 0
	}
	return general.SafeValue(dd)
}

// Snapshot assembles the full queryable state for the host layer.
func (l *Ledger) Snapshot(now time.Time) datamodels.PortfolioSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	holdings := make(map[datamodels.Symbol]float64, len(l.holdings))
	prices := make(map[datamodels.Symbol]float64, len(l.holdings))
	for symbol, amount := range l.holdings {
		holdings[symbol] = amount
		if price, err := l.prices.LastPrice(symbol); err == nil {
			prices[symbol] = price
		}
	}

	total := l.totalValueLocked()
	drawdown := 0.0
	if l.highestValue > 0 {
		drawdown = general.SafeValue((l.highestValue - total) / l.highestValue * 100)
		if drawdown < 0 {
			drawdown = 0
		}
	}

	return datamodels.PortfolioSnapshot{
		Timestamp:         now,
		Cash:              l.cash,
		InitialInvestment: l.initialInvestment,
		Holdings:          holdings,
		Prices:            prices,
		SelectedAsset:     l.selected,
		TotalValue:        total,
		ROI:               l.roiLocked(),
		HighestValue:      l.highestValue,
		LowestValue:       l.lowestValue,
		Drawdown:          drawdown,
		Transactions:      l.transactions.All(),
		ValueHistory:      l.valueHistory.All(),
	}
}

// Restore replaces the ledger state with a persisted session. Histories
// beyond the cap keep only the most recent entries.
func (l *Ledger) Restore(cash, initialInvestment float64, holdings map[datamodels.Symbol]float64, transactions []datamodels.Transaction, valueHistory []datamodels.ValueSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cash = cash
	if initialInvestment > 0 {
		l.initialInvestment = initialInvestment
	}
	for symbol, amount := range holdings {
		if amount < 0 {
			continue
		}
		l.holdings[symbol] = amount
	}
	l.transactions.Replace(transactions)
	l.valueHistory.Replace(valueHistory)

	l.highestValue = l.totalValueLocked()
	l.lowestValue = l.highestValue
	for _, snapshot := range valueHistory {
		if snapshot.TotalValue > l.highestValue {
			l.highestValue = snapshot.TotalValue
		}
		if snapshot.TotalValue < l.lowestValue && snapshot.TotalValue > 0 {
			l.lowestValue = snapshot.TotalValue
		}
	}
}
