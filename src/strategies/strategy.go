package strategies

import (
	"log/slog"
	"sort"
	"sync"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"
)

var (
	ErrInvalidStrategyRule = errors.New("invalid strategy rule")
	ErrUnknownStrategy     = errors.New("unknown strategy")
)

// Context is everything a strategy sees for one evaluation: the selected
// asset's price series plus the portfolio numbers it may allocate from.
// Tick is the housekeeping tick counter, used for signal cooldowns.
type Context struct {
	Tick    int64
	Symbol  datamodels.Symbol
	Prices  []float64
	Price   float64
	Cash    float64
	Holding float64
}

// Strategy is one activatable trading rule. Evaluate returns at most one
// signal per tick; (nil, false) means no opinion.
type Strategy interface {
	Name() string
	Active() bool
	SetActive(active bool)
	Params() map[string]float64
	UpdateParams(params map[string]float64) error
	Evaluate(ctx Context) (*datamodels.TradeSignal, bool)
}

// Registry keys strategies by name. Evaluation walks only the active
// ones; a deactivated strategy is never called.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	order      []string
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

func (r *Registry) Register(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[s.Name()]; exists {
		return errors.Newf("strategy %q already registered", s.Name())
	}
	r.strategies[s.Name()] = s
	r.order = append(r.order, s.Name())
	slog.Info("Strategy registered", "name", s.Name(), "active", s.Active())
	return nil
}

func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, exists := r.strategies[name]
	if !exists {
		return nil, errors.Wrapf(ErrUnknownStrategy, "%q", name)
	}
	return s, nil
}

func (r *Registry) SetActive(name string, active bool) error {
	s, err := r.Get(name)
	if err != nil {
		return err
	}
	s.SetActive(active)
	slog.Info("Strategy toggled", "name", name, "active", active)
	return nil
}

func (r *Registry) UpdateParams(name string, params map[string]float64) error {
	s, err := r.Get(name)
	if err != nil {
		return err
	}
	return s.UpdateParams(params)
}

// List describes every registered strategy, sorted by name for stable
// output.
func (r *Registry) List() []datamodels.StrategyInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]datamodels.StrategyInfo, 0, len(r.strategies))
	for _, s := range r.strategies {
		infos = append(infos, datamodels.StrategyInfo{
			Name:   s.Name(),
			Active: s.Active(),
			Params: s.Params(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// CustomStrategyInfo captures a runtime-created rule-based strategy in a
// form that survives a session save: the rule list is enough to rebuild
// the strategy with NewRuleBased.
type CustomStrategyInfo struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Rules  []Rule `json:"rules"`
}

// CustomStrategies returns the rule-based strategies in registration
// order. Built-in strategies are not included.
func (r *Registry) CustomStrategies() []CustomStrategyInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var customs []CustomStrategyInfo
	for _, name := range r.order {
		custom, ok := r.strategies[name].(*RuleBased)
		if !ok {
			continue
		}
		customs = append(customs, CustomStrategyInfo{
			Name:   custom.Name(),
			Active: custom.Active(),
			Rules:  custom.Rules(),
		})
	}
	return customs
}

// EvaluateAll runs every active strategy against the context, in
// registration order, and collects their signals.
func (r *Registry) EvaluateAll(ctx Context) []datamodels.TradeSignal {
	r.mu.RLock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.RUnlock()

	var signals []datamodels.TradeSignal
	for _, name := range names {
		s, err := r.Get(name)
		if err != nil {
			continue
		}
		if !s.Active() {
			continue
		}
		if signal, ok := s.Evaluate(ctx); ok && signal != nil {
			signals = append(signals, *signal)
		}
	}
	return signals
}
