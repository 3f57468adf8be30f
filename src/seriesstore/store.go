package seriesstore

import (
	"math"
	"sync"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/indicators"
	"papertrader/src/utils/errors"
)

const (
	DefaultMaxPoints = 100
	smaPeriod        = 20
	rsiPeriod        = 14
)

var ErrUnknownAsset = errors.New("unknown asset symbol")

// Series holds the per-asset rolling history as parallel slices that are
// always the same length and index-aligned. Indicator columns are padded
// with NaN until enough history exists. Once the length hits the cap the
// oldest entry of every column is dropped together.
type Series struct {
	Labels  []string
	Prices  []float64
	Opens   []float64
	Highs   []float64
	Lows    []float64
	Closes  []float64
	Volumes []float64
	SMA     []float64
	RSI     []float64
}

func newSeries(maxPoints int) *Series {
	return &Series{
		Labels:  make([]string, 0, maxPoints),
		Prices:  make([]float64, 0, maxPoints),
		Opens:   make([]float64, 0, maxPoints),
		Highs:   make([]float64, 0, maxPoints),
		Lows:    make([]float64, 0, maxPoints),
		Closes:  make([]float64, 0, maxPoints),
		Volumes: make([]float64, 0, maxPoints),
		SMA:     make([]float64, 0, maxPoints),
		RSI:     make([]float64, 0, maxPoints),
	}
}

func (s *Series) Len() int {
	return len(s.Prices)
}

func (s *Series) append(update datamodels.PriceUpdate, maxPoints int) {
	s.Labels = append(s.Labels, update.Timestamp.Format("15:04:05"))
	s.Prices = append(s.Prices, update.Price)
	s.Opens = append(s.Opens, update.Open)
	s.Highs = append(s.Highs, update.High)
	s.Lows = append(s.Lows, update.Low)
	s.Closes = append(s.Closes, update.Close)
	s.Volumes = append(s.Volumes, update.Volume)

	sma, ok := indicators.SMA(s.Prices, smaPeriod)
	if !ok {
		sma = math.NaN()
	}
	s.SMA = append(s.SMA, sma)

	rsi, ok := indicators.RSI(s.Prices, rsiPeriod)
	if !ok {
		rsi = math.NaN()
	}
	s.RSI = append(s.RSI, rsi)

	if len(s.Prices) > maxPoints {
		drop := len(s.Prices) - maxPoints
		s.Labels = s.Labels[drop:]
		s.Prices = s.Prices[drop:]
		s.Opens = s.Opens[drop:]
		s.Highs = s.Highs[drop:]
		s.Lows = s.Lows[drop:]
		s.Closes = s.Closes[drop:]
		s.Volumes = s.Volumes[drop:]
		s.SMA = s.SMA[drop:]
		s.RSI = s.RSI[drop:]
	}
}

func (s *Series) copy() *Series {
	out := &Series{
		Labels:  make([]string, len(s.Labels)),
		Prices:  make([]float64, len(s.Prices)),
		Opens:   make([]float64, len(s.Opens)),
		Highs:   make([]float64, len(s.Highs)),
		Lows:    make([]float64, len(s.Lows)),
		Closes:  make([]float64, len(s.Closes)),
		Volumes: make([]float64, len(s.Volumes)),
		SMA:     make([]float64, len(s.SMA)),
		RSI:     make([]float64, len(s.RSI)),
	}
	copy(out.Labels, s.Labels)
	copy(out.Prices, s.Prices)
	copy(out.Opens, s.Opens)
	copy(out.Highs, s.Highs)
	copy(out.Lows, s.Lows)
	copy(out.Closes, s.Closes)
	copy(out.Volumes, s.Volumes)
	copy(out.SMA, s.SMA)
	copy(out.RSI, s.RSI)
	return out
}

// Store tracks one Series per catalogued asset plus each asset's latest
// price. It is written by the application event loop and read by the
// host surface, so access is mutex guarded.
type Store struct {
	mu         sync.RWMutex
	maxPoints  int
	series     map[datamodels.Symbol]*Series
	lastPrice  map[datamodels.Symbol]float64
	lastUpdate map[datamodels.Symbol]time.Time
}

func NewStore() *Store {
	return &Store{
		maxPoints:  DefaultMaxPoints,
		series:     make(map[datamodels.Symbol]*Series),
		lastPrice:  make(map[datamodels.Symbol]float64),
		lastUpdate: make(map[datamodels.Symbol]time.Time),
	}
}

func (st *Store) WithMaxPoints(maxPoints int) *Store {
	if maxPoints > 0 {
		st.maxPoints = maxPoints
	}
	return st
}

// Track registers an asset with its catalogue price so lookups succeed
// before the first tick arrives.
func (st *Store) Track(symbol datamodels.Symbol, initialPrice float64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := st.series[symbol]; exists {
		return
	}
	st.series[symbol] = newSeries(st.maxPoints)
	st.lastPrice[symbol] = initialPrice
}

// ApplyBatch appends every update in the batch to its asset's series.
// Updates for untracked symbols are ignored.
func (st *Store) ApplyBatch(batch *datamodels.TickBatch) {
	if batch == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	for symbol, update := range batch.Updates {
		series, exists := st.series[symbol]
		if !exists {
			continue
		}
		series.append(update, st.maxPoints)
		st.lastPrice[symbol] = update.Price
		st.lastUpdate[symbol] = update.Timestamp
	}
}

func (st *Store) Symbols() []datamodels.Symbol {
	st.mu.RLock()
	defer st.mu.RUnlock()
	symbols := make([]datamodels.Symbol, 0, len(st.series))
	for symbol := range st.series {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// LastPrice returns the latest known price for an asset.
func (st *Store) LastPrice(symbol datamodels.Symbol) (float64, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	price, exists := st.lastPrice[symbol]
	if !exists {
		return 0, errors.Wrapf(ErrUnknownAsset, "%s", symbol)
	}
	return price, nil
}

// Prices returns a copy of the close-price column for an asset,
// oldest first.
func (st *Store) Prices(symbol datamodels.Symbol) ([]float64, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	series, exists := st.series[symbol]
	if !exists {
		return nil, errors.Wrapf(ErrUnknownAsset, "%s", symbol)
	}
	prices := make([]float64, len(series.Prices))
	copy(prices, series.Prices)
	return prices, nil
}

// Snapshot returns a deep copy of an asset's full series.
func (st *Store) Snapshot(symbol datamodels.Symbol) (*Series, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	series, exists := st.series[symbol]
	if !exists {
		return nil, errors.Wrapf(ErrUnknownAsset, "%s", symbol)
	}
	return series.copy(), nil
}
