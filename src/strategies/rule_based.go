package strategies

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"papertrader/src/datamodels"
	"papertrader/src/indicators"
	"papertrader/src/utils/errors"
	"papertrader/src/utils/general"
)

type RuleIndicator string

const (
	IndicatorSMA  RuleIndicator = "sma"
	IndicatorEMA  RuleIndicator = "ema"
	IndicatorRSI  RuleIndicator = "rsi"
	IndicatorMACD RuleIndicator = "macd"
)

type RuleCondition string

const (
	ConditionAbove      RuleCondition = "above"
	ConditionBelow      RuleCondition = "below"
	ConditionCrossAbove RuleCondition = "crossAbove"
	ConditionCrossBelow RuleCondition = "crossBelow"
	ConditionBetween    RuleCondition = "between"
	ConditionOutside    RuleCondition = "outside"
)

type RuleAction string

const (
	ActionBuy  RuleAction = "buy"
	ActionSell RuleAction = "sell"
	ActionHold RuleAction = "hold"
)

// Rule compares one indicator reading against its threshold(s) and maps a
// match to an action. Between and outside use [Threshold, UpperThreshold];
// the other conditions use Threshold alone.
type Rule struct {
	Indicator      RuleIndicator `json:"indicator" mapstructure:"indicator"`
	Period         int           `json:"period" mapstructure:"period"`
	Condition      RuleCondition `json:"condition" mapstructure:"condition"`
	Threshold      float64       `json:"threshold" mapstructure:"threshold"`
	UpperThreshold float64       `json:"upper_threshold,omitempty" mapstructure:"upper_threshold"`
	Action         RuleAction    `json:"action" mapstructure:"action"`
	Allocation     float64       `json:"allocation" mapstructure:"allocation"`
}

var (
	knownIndicators = []RuleIndicator{IndicatorSMA, IndicatorEMA, IndicatorRSI, IndicatorMACD}
	knownActions    = []RuleAction{ActionBuy, ActionSell, ActionHold}
)

func (r Rule) validate() error {
	if !general.ItemInSlice(knownIndicators, r.Indicator) {
		return errors.Wrapf(ErrInvalidStrategyRule, "unknown indicator %q", r.Indicator)
	}
	switch r.Condition {
	case ConditionAbove, ConditionBelow, ConditionCrossAbove, ConditionCrossBelow:
	case ConditionBetween, ConditionOutside:
		if r.UpperThreshold <= r.Threshold {
			return errors.Wrapf(ErrInvalidStrategyRule, "condition %q needs upper_threshold above threshold", r.Condition)
		}
	default:
		return errors.Wrapf(ErrInvalidStrategyRule, "unknown condition %q", r.Condition)
	}
	if !general.ItemInSlice(knownActions, r.Action) {
		return errors.Wrapf(ErrInvalidStrategyRule, "unknown action %q", r.Action)
	}
	if r.Period < 1 {
		return errors.Wrapf(ErrInvalidStrategyRule, "period %d must be >= 1", r.Period)
	}
	if r.Action != ActionHold && (r.Allocation <= 0 || r.Allocation > 1) {
		return errors.Wrapf(ErrInvalidStrategyRule, "allocation %v must be in (0, 1]", r.Allocation)
	}
	return nil
}

// RuleBased runs user-supplied rules in order and fires the first one
// whose condition holds. Rules are fixed at construction; only the active
// flag mutates afterwards.
type RuleBased struct {
	mu     sync.RWMutex
	name   string
	active bool
	rules  []Rule
}

// NewRuleBased validates every rule up front and rejects the whole
// strategy on the first bad one.
func NewRuleBased(name string, rules []Rule) (*RuleBased, error) {
	if name == "" {
		return nil, errors.Wrap(ErrInvalidStrategyRule, "strategy name is required")
	}
	if len(rules) == 0 {
		return nil, errors.Wrap(ErrInvalidStrategyRule, "at least one rule is required")
	}
	for i, rule := range rules {
		if err := rule.validate(); err != nil {
			return nil, errors.Wrapf(err, "rule %d", i)
		}
	}
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &RuleBased{name: name, rules: copied}, nil
}

func (s *RuleBased) Name() string { return s.name }

func (s *RuleBased) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *RuleBased) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *RuleBased) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Params is empty for rule-based strategies: the rule list, not numeric
// parameters, is what defines them. The rules travel via Rules.
func (s *RuleBased) Params() map[string]float64 {
	return map[string]float64{}
}

// UpdateParams is rejected: a rule set describes structure, not numbers.
// Users replace a custom strategy by creating a new one.
func (s *RuleBased) UpdateParams(map[string]float64) error {
	return errors.Newf("strategy %q does not support parameter updates", s.name)
}

func (s *RuleBased) Evaluate(ctx Context) (*datamodels.TradeSignal, bool) {
	for _, rule := range s.rules {
		current, ok := ruleIndicatorValue(ctx.Prices, rule.Indicator, rule.Period)
		if !ok {
			continue
		}
		matched := false
		switch rule.Condition {
		case ConditionAbove:
			matched = current > rule.Threshold
		case ConditionBelow:
			matched = current < rule.Threshold
		case ConditionBetween:
			matched = current >= rule.Threshold && current <= rule.UpperThreshold
		case ConditionOutside:
			matched = current < rule.Threshold || current > rule.UpperThreshold
		case ConditionCrossAbove, ConditionCrossBelow:
			// Cross conditions compare against the reading one sample
			// earlier, re-derived over the series minus its last point.
			if len(ctx.Prices) < 2 {
				continue
			}
			previous, prevOK := ruleIndicatorValue(ctx.Prices[:len(ctx.Prices)-1], rule.Indicator, rule.Period)
			if !prevOK {
				continue
			}
			if rule.Condition == ConditionCrossAbove {
				matched = previous <= rule.Threshold && current > rule.Threshold
			} else {
				matched = previous >= rule.Threshold && current < rule.Threshold
			}
		}
		if !matched {
			continue
		}
		return s.fire(rule, current, ctx)
	}
	return nil, false
}

// fire maps a matched rule to a signal. Only the first matching rule per
// tick gets here; hold actions still consume the match and end evaluation.
func (s *RuleBased) fire(rule Rule, reading float64, ctx Context) (*datamodels.TradeSignal, bool) {
	reason := fmt.Sprintf("%s(%d) %.4f %s %.4f", rule.Indicator, rule.Period, reading, rule.Condition, rule.Threshold)
	switch rule.Action {
	case ActionBuy:
		cash := ctx.Cash * rule.Allocation
		if cash < minBuyNotional {
			return nil, false
		}
		return &datamodels.TradeSignal{
			SignalId:   uuid.NewString(),
			Strategy:   s.name,
			Symbol:     ctx.Symbol,
			Side:       datamodels.OrderSideBuy,
			CashAmount: cash,
			Price:      ctx.Price,
			Reason:     reason,
			Timestamp:  time.Now(),
		}, true
	case ActionSell:
		amount := ctx.Holding * rule.Allocation
		if amount <= 0 {
			return nil, false
		}
		return &datamodels.TradeSignal{
			SignalId:    uuid.NewString(),
			Strategy:    s.name,
			Symbol:      ctx.Symbol,
			Side:        datamodels.OrderSideSell,
			AssetAmount: amount,
			Price:       ctx.Price,
			Reason:      reason,
			Timestamp:   time.Now(),
		}, true
	}
	return nil, false
}

func ruleIndicatorValue(prices []float64, indicator RuleIndicator, period int) (float64, bool) {
	switch indicator {
	case IndicatorSMA:
		return indicators.SMA(prices, period)
	case IndicatorEMA:
		return indicators.EMA(prices, period)
	case IndicatorRSI:
		return indicators.RSI(prices, period)
	case IndicatorMACD:
		result, ok := indicators.MACD(prices, 12, 26, 9)
		if !ok {
			return 0, false
		}
		return result.MACD, true
	}
	return 0, false
}
