package models

import "fmt"

// Strategy types understood by the sweep pipeline
const (
	StrategySMACross = "sma_cross"
	StrategyEMACross = "ema_cross"
	StrategyMACD     = "macd"
)

// ParamRange is an inclusive integer range with a step size
type ParamRange struct {
	Min  int `json:"min" mapstructure:"min"`
	Max  int `json:"max" mapstructure:"max"`
	Step int `json:"step" mapstructure:"step"`
}

// Values materializes the range. A zero step defaults to 1.
func (r ParamRange) Values() []int {
	step := r.Step
	if step <= 0 {
		step = 1
	}
	var values []int
	for v := r.Min; v <= r.Max; v += step {
		values = append(values, v)
	}
	return values
}

// Validate checks the range bounds
func (r ParamRange) Validate(name string) error {
	if r.Min <= 0 {
		return fmt.Errorf("%w: %s min must be positive, got %d", ErrValidation, name, r.Min)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%w: %s range is inverted (min %d > max %d)", ErrValidation, name, r.Min, r.Max)
	}
	if r.Step < 0 {
		return fmt.Errorf("%w: %s step must be non-negative, got %d", ErrValidation, name, r.Step)
	}
	return nil
}

// StrategyGrid is the parameter grid for a single strategy type
type StrategyGrid struct {
	Type   string      `json:"type" mapstructure:"type"`
	Fast   ParamRange  `json:"fast" mapstructure:"fast"`
	Slow   ParamRange  `json:"slow" mapstructure:"slow"`
	Signal *ParamRange `json:"signal,omitempty" mapstructure:"signal"`
}

// RequiresSignal reports whether the strategy type has a signal period dimension
func (g StrategyGrid) RequiresSignal() bool {
	return g.Type == StrategyMACD
}

// Validate checks the strategy grid
func (g StrategyGrid) Validate() error {
	switch g.Type {
	case StrategySMACross, StrategyEMACross, StrategyMACD:
	default:
		return fmt.Errorf("%w: unknown strategy type %q", ErrValidation, g.Type)
	}
	if err := g.Fast.Validate("fast"); err != nil {
		return err
	}
	if err := g.Slow.Validate("slow"); err != nil {
		return err
	}
	if g.RequiresSignal() {
		if g.Signal == nil {
			return fmt.Errorf("%w: strategy %q requires a signal range", ErrValidation, g.Type)
		}
		if err := g.Signal.Validate("signal"); err != nil {
			return err
		}
	}
	return nil
}

// GridSpec is the full, immutable specification of one sweep submission
type GridSpec struct {
	Instruments []string       `json:"instruments" mapstructure:"instruments"`
	Strategies  []StrategyGrid `json:"strategies" mapstructure:"strategies"`
	MinTrades   int            `json:"min_trades,omitempty" mapstructure:"min_trades"`
}

// Validate checks the submission grid. Errors here reject the submission
// before any job record exists.
func (s GridSpec) Validate() error {
	if len(s.Instruments) == 0 {
		return fmt.Errorf("%w: at least one instrument is required", ErrValidation)
	}
	for _, symbol := range s.Instruments {
		if symbol == "" {
			return fmt.Errorf("%w: instrument symbol must not be empty", ErrValidation)
		}
	}
	if len(s.Strategies) == 0 {
		return fmt.Errorf("%w: at least one strategy grid is required", ErrValidation)
	}
	for _, strat := range s.Strategies {
		if err := strat.Validate(); err != nil {
			return err
		}
	}
	if s.MinTrades < 0 {
		return fmt.Errorf("%w: min_trades must be non-negative", ErrValidation)
	}
	return nil
}

// Clone returns a deep copy of the grid specification
func (s GridSpec) Clone() GridSpec {
	c := s
	c.Instruments = append([]string(nil), s.Instruments...)
	c.Strategies = make([]StrategyGrid, len(s.Strategies))
	for i, strat := range s.Strategies {
		c.Strategies[i] = strat
		if strat.Signal != nil {
			signal := *strat.Signal
			c.Strategies[i].Signal = &signal
		}
	}
	return c
}
