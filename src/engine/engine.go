package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/portfolio"
	"papertrader/src/seriesstore"
	"papertrader/src/simulator"
	"papertrader/src/strategies"
	"papertrader/src/utils/errors"
	"papertrader/src/utils/general"
)

const housekeepingInterval = time.Second

// MetricsWriter receives a portfolio snapshot once per housekeeping tick.
type MetricsWriter interface {
	Write(snapshot datamodels.PortfolioSnapshot) error
}

// BatchSubscription delivers tick batches to an outside consumer. Slow
// consumers lose batches rather than stalling the event loop.
type BatchSubscription struct {
	C chan *datamodels.TickBatch
}

// Engine is the interactive lane. It owns the ledger, the order book and
// the strategy registry, and it is their only writer: every external
// mutation is funneled through the requests channel and executed on the
// event loop, so the trading state needs no coordination beyond message
// order.
type Engine struct {
	cfg      datamodels.PapertraderConfig
	clock    *simulator.Clock
	store    *seriesstore.Store
	ledger   *portfolio.Ledger
	orders   *portfolio.OrderBook
	registry *strategies.Registry
	executor *strategies.Executor
	metrics  MetricsWriter

	requests chan func()

	subMu       sync.Mutex
	subscribers []*BatchSubscription

	// housekeepingTick counts 1-second housekeeping passes; strategy
	// cooldowns are measured against it.
	housekeepingTick int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg datamodels.PapertraderConfig, clock *simulator.Clock, store *seriesstore.Store, ledger *portfolio.Ledger, registry *strategies.Registry) *Engine {
	return &Engine{
		cfg:      cfg,
		clock:    clock,
		store:    store,
		ledger:   ledger,
		orders:   portfolio.NewOrderBook(ledger),
		registry: registry,
		executor: strategies.NewExecutor(ledger),
		requests: make(chan func(), 64),
		done:     make(chan struct{}),
	}
}

func (e *Engine) WithMetricsWriter(writer MetricsWriter) *Engine {
	e.metrics = writer
	return e
}

// Start launches the simulation lane and the event loop.
func (e *Engine) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)

	for _, asset := range e.cfg.Assets {
		e.store.Track(asset.Symbol, asset.StartPrice)
		e.ledger.Track(asset.Symbol)
	}

	e.clock.Start(e.ctx)
	e.clock.Commands() <- simulator.Command{
		Type:            simulator.CommandStart,
		BaseVolatility:  e.cfg.Simulation.BaseVolatility,
		SpeedMultiplier: e.cfg.Simulation.SpeedMultiplier,
		Assets:          e.genStates(),
	}

	go e.run()
}

// Stop tears down both lanes and waits for the event loop to drain.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

func (e *Engine) genStates() []datamodels.AssetGenState {
	states := make([]datamodels.AssetGenState, 0, len(e.cfg.Assets))
	for _, asset := range e.cfg.Assets {
		factor := asset.VolatilityFactor
		if factor <= 0 {
			factor = 1
		}
		states = append(states, datamodels.AssetGenState{
			Symbol:           asset.Symbol,
			Category:         asset.Category,
			Price:            asset.StartPrice,
			VolatilityFactor: factor,
		})
	}
	return states
}

func (e *Engine) run() {
	defer close(e.done)

	housekeeping := time.NewTicker(housekeepingInterval)
	defer housekeeping.Stop()

	for {
		select {
		case <-e.ctx.Done():
			slog.Info("Engine event loop shutting down")
			return
		case event := <-e.clock.Events():
			switch event.Type {
			case simulator.EventStarted:
				slog.Info("Simulation lane reported started")
			case simulator.EventUpdate:
				e.store.ApplyBatch(event.Batch)
				e.publish(event.Batch)
			case simulator.EventError:
				slog.Warn("Simulation lane error", "error", event.Err)
			}
		case request := <-e.requests:
			request()
		case now := <-housekeeping.C:
			e.housekeep(now)
		}
	}
}

// housekeep is the 1-second pass: value snapshot, resting orders,
// strategy evaluation, metrics.
func (e *Engine) housekeep(now time.Time) {
	e.housekeepingTick++

	e.ledger.RecordValueSnapshot(now)
	e.orders.Evaluate()

	symbol := e.ledger.SelectedAsset()
	if symbol != "" {
		prices, err := e.store.Prices(symbol)
		if err == nil && len(prices) > 0 {
			ctx := strategies.Context{
				Tick:    e.housekeepingTick,
				Symbol:  symbol,
				Prices:  prices,
				Price:   prices[len(prices)-1],
				Cash:    e.ledger.Cash(),
				Holding: e.ledger.Holding(symbol),
			}
			signals := e.registry.EvaluateAll(ctx)
			e.executor.ExecuteAll(signals)
		}
	}

	if e.metrics != nil {
		if err := e.metrics.Write(e.ledger.Snapshot(now)); err != nil {
			slog.Warn("Metrics write failed", "error", err)
		}
	}
}

// do runs fn on the event loop and waits for it to finish.
func (e *Engine) do(fn func()) error {
	executed := make(chan struct{})
	wrapped := func() {
		fn()
		close(executed)
	}
	select {
	case e.requests <- wrapped:
	case <-e.ctx.Done():
		return errors.Wrap(e.ctx.Err(), "engine stopped")
	}
	select {
	case <-executed:
		return nil
	case <-e.ctx.Done():
		return errors.Wrap(e.ctx.Err(), "engine stopped")
	}
}

// ManualTrade executes a user-initiated buy or sell. Amount is cash for
// buys and an asset amount for sells.
func (e *Engine) ManualTrade(symbol datamodels.Symbol, side datamodels.OrderSide, amount float64) (datamodels.Transaction, error) {
	var (
		tx  datamodels.Transaction
		err error
	)
	doErr := e.do(func() {
		switch side {
		case datamodels.OrderSideBuy:
			tx, err = e.ledger.Buy(symbol, amount, "")
		case datamodels.OrderSideSell:
			tx, err = e.ledger.Sell(symbol, amount, "")
		default:
			err = errors.Newf("unknown trade side %q", side)
		}
	})
	if doErr != nil {
		return datamodels.Transaction{}, doErr
	}
	return tx, err
}

// SetSpeed forwards a new speed multiplier to the simulation lane.
// Generator state persists across the schedule change.
func (e *Engine) SetSpeed(multiplier float64) error {
	if multiplier <= 0 {
		return errors.Newf("speed multiplier %v must be positive", multiplier)
	}
	return e.do(func() {
		e.clock.Commands() <- simulator.Command{
			Type:            simulator.CommandUpdateSpeed,
			SpeedMultiplier: multiplier,
		}
	})
}

func (e *Engine) SelectAsset(symbol datamodels.Symbol) error {
	var err error
	if doErr := e.do(func() { err = e.ledger.SelectAsset(symbol) }); doErr != nil {
		return doErr
	}
	return err
}

func (e *Engine) SetStrategyActive(name string, active bool) error {
	var err error
	if doErr := e.do(func() { err = e.registry.SetActive(name, active) }); doErr != nil {
		return doErr
	}
	return err
}

func (e *Engine) UpdateStrategyParams(name string, params map[string]float64) error {
	var err error
	if doErr := e.do(func() { err = e.registry.UpdateParams(name, params) }); doErr != nil {
		return doErr
	}
	return err
}

// CreateCustomStrategy validates and registers a rule-based strategy at
// runtime. It starts inactive.
func (e *Engine) CreateCustomStrategy(name string, rules []strategies.Rule) error {
	custom, err := strategies.NewRuleBased(name, rules)
	if err != nil {
		return err
	}
	var regErr error
	if doErr := e.do(func() { regErr = e.registry.Register(custom) }); doErr != nil {
		return doErr
	}
	return regErr
}

func (e *Engine) PlaceConditionalOrder(order portfolio.ConditionalOrder) (string, error) {
	var (
		id  string
		err error
	)
	if doErr := e.do(func() { id, err = e.orders.Place(order) }); doErr != nil {
		return "", doErr
	}
	return id, err
}

func (e *Engine) CancelConditionalOrder(id string) (bool, error) {
	var cancelled bool
	if doErr := e.do(func() { cancelled = e.orders.Cancel(id) }); doErr != nil {
		return false, doErr
	}
	return cancelled, nil
}

func (e *Engine) ConditionalOrders() []portfolio.ConditionalOrder {
	return e.orders.Orders()
}

func (e *Engine) Strategies() []datamodels.StrategyInfo {
	return e.registry.List()
}

// CustomStrategies returns the runtime-created rule-based strategies with
// their rule lists, for session persistence.
func (e *Engine) CustomStrategies() []strategies.CustomStrategyInfo {
	return e.registry.CustomStrategies()
}

// Snapshot returns the current portfolio state. Reads go through the
// ledger's own locking, so no event-loop round trip is needed.
func (e *Engine) Snapshot() datamodels.PortfolioSnapshot {
	return e.ledger.Snapshot(time.Now())
}

func (e *Engine) Series(symbol datamodels.Symbol) (*seriesstore.Series, error) {
	return e.store.Snapshot(symbol)
}

// Subscribe returns a subscription that receives every tick batch until
// Unsubscribe.
func (e *Engine) Subscribe() *BatchSubscription {
	sub := &BatchSubscription{C: make(chan *datamodels.TickBatch, 32)}
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subscribers = append(e.subscribers, sub)
	return sub
}

func (e *Engine) Unsubscribe(sub *BatchSubscription) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for i, candidate := range e.subscribers {
		if candidate == sub {
			e.subscribers = append(e.subscribers[:i], e.subscribers[i+1:]...)
			close(sub.C)
			return
		}
	}
}

func (e *Engine) publish(batch *datamodels.TickBatch) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, sub := range e.subscribers {
		select {
		case sub.C <- batch:
			if general.ChannelAtLoadLevel(sub.C, 0.8) {
				slog.Warn("Batch subscription channel load warning")
			}
		default:
			slog.Debug("Dropping batch for slow subscriber", "tick", batch.Tick)
		}
	}
}
