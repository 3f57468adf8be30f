package strategies

import (
	"log/slog"

	"papertrader/src/datamodels"
	"papertrader/src/portfolio"
	"papertrader/src/utils/errors"
)

// Executor turns trade signals into ledger operations. A signal executes
// exactly like a manual trade, attributed to its strategy; a signal the
// ledger rejects is logged and dropped, never retried.
type Executor struct {
	ledger *portfolio.Ledger
}

func NewExecutor(ledger *portfolio.Ledger) *Executor {
	return &Executor{ledger: ledger}
}

func (e *Executor) Execute(signal datamodels.TradeSignal) (datamodels.Transaction, error) {
	switch signal.Side {
	case datamodels.OrderSideBuy:
		return e.ledger.Buy(signal.Symbol, signal.CashAmount, signal.Strategy)
	case datamodels.OrderSideSell:
		return e.ledger.Sell(signal.Symbol, signal.AssetAmount, signal.Strategy)
	}
	return datamodels.Transaction{}, errors.Newf("signal %s: unknown side %q", signal.SignalId, signal.Side)
}

// ExecuteAll applies every signal in order and returns the transactions
// that went through.
func (e *Executor) ExecuteAll(signals []datamodels.TradeSignal) []datamodels.Transaction {
	var executed []datamodels.Transaction
	for _, signal := range signals {
		tx, err := e.Execute(signal)
		if err != nil {
			slog.Warn("Trade signal rejected by ledger",
				"strategy", signal.Strategy, "symbol", signal.Symbol, "side", signal.Side, "error", err)
			continue
		}
		slog.Info("Trade signal executed",
			"strategy", signal.Strategy, "symbol", signal.Symbol, "side", signal.Side,
			"cash", tx.CashAmount, "amount", tx.AssetAmount, "reason", signal.Reason)
		executed = append(executed, tx)
	}
	return executed
}
