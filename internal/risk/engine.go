package risk

import (
	"fmt"
	"math"
)

// Direction of the proposed trade
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// ValidationError rejects a request before any sizing is computed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Policy holds the hard risk limits applied to every assessment.
type Policy struct {
	DefaultRiskPercent float64 `json:"default_risk_percent"`
	MaxRiskPercent     float64 `json:"max_risk_percent"`
	MaxPositionSize    float64 `json:"max_position_size"`
	MaxPositionPercent float64 `json:"max_position_percent"` // fixed 25% portfolio cap
	MinPortfolioSize   float64 `json:"min_portfolio_size"`
}

// DefaultPolicy returns the standard limits.
func DefaultPolicy() Policy {
	return Policy{
		DefaultRiskPercent: 1,
		MaxRiskPercent:     5,
		MaxPositionSize:    1000000,
		MaxPositionPercent: 25,
		MinPortfolioSize:   100,
	}
}

// Params describes a proposed trade to size.
type Params struct {
	Direction     Direction `json:"direction"`
	Entry         float64   `json:"entry"`
	Stop          float64   `json:"stop"`
	Target1       float64   `json:"target_1"`
	Target2       *float64  `json:"target_2,omitempty"`
	PortfolioSize float64   `json:"portfolio_size"`
	RiskPercent   float64   `json:"risk_percent"`
	WinRate       *float64  `json:"win_rate,omitempty"` // percent, enables Kelly sizing
}

// Assessment is the full sizing result. Computed fresh per request and never
// persisted by the engine.
type Assessment struct {
	Direction       Direction `json:"direction"`
	Entry           float64   `json:"entry"`
	Stop            float64   `json:"stop"`
	Target1         float64   `json:"target_1"`
	Target2         *float64  `json:"target_2,omitempty"`
	PortfolioSize   float64   `json:"portfolio_size"`
	RiskPercent     float64   `json:"risk_percent"`
	RiskPerShare    float64   `json:"risk_per_share"`
	RewardPerShare1 float64   `json:"reward_per_share_1"`
	RewardPerShare2 *float64  `json:"reward_per_share_2,omitempty"`
	RiskReward1     float64   `json:"risk_reward_1"`
	RiskReward2     *float64  `json:"risk_reward_2,omitempty"`
	RiskAmount      float64   `json:"risk_amount"`
	ShareCount      int       `json:"share_count"`
	PositionSize    float64   `json:"position_size"`
	PositionPercent float64   `json:"position_percent"`
	KellyPercent    *float64  `json:"kelly_percent,omitempty"`
	KellySize       *float64  `json:"kelly_size,omitempty"`
	PassesRiskCheck bool      `json:"passes_risk_check"`
	Violations      []string  `json:"violations,omitempty"`
	Warnings        []string  `json:"warnings,omitempty"`
}

// Engine computes risk assessments under a fixed policy. Stateless and safe
// for concurrent use.
type Engine struct {
	policy Policy
}

// NewEngine creates a risk engine with the given policy.
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Assess validates and sizes a proposed trade. Validation failures return a
// ValidationError with nothing computed; policy breaches return a completed
// assessment with PassesRiskCheck=false.
func (e *Engine) Assess(p Params) (*Assessment, error) {
	if err := e.validate(&p); err != nil {
		return nil, err
	}

	a := &Assessment{
		Direction:     p.Direction,
		Entry:         p.Entry,
		Stop:          p.Stop,
		Target1:       p.Target1,
		Target2:       p.Target2,
		PortfolioSize: p.PortfolioSize,
		RiskPercent:   p.RiskPercent,
	}

	a.RiskPerShare = math.Abs(p.Entry - p.Stop)
	a.RewardPerShare1 = math.Abs(p.Target1 - p.Entry)
	if a.RiskPerShare > 0 {
		a.RiskReward1 = a.RewardPerShare1 / a.RiskPerShare
	}
	if p.Target2 != nil {
		reward2 := math.Abs(*p.Target2 - p.Entry)
		a.RewardPerShare2 = &reward2
		if a.RiskPerShare > 0 {
			rr2 := reward2 / a.RiskPerShare
			a.RiskReward2 = &rr2
		}
	}

	a.RiskAmount = p.PortfolioSize * p.RiskPercent / 100
	if a.RiskPerShare > 0 {
		a.ShareCount = int(math.Floor(a.RiskAmount / a.RiskPerShare))
	}
	a.PositionSize = float64(a.ShareCount) * p.Entry
	if p.PortfolioSize > 0 {
		a.PositionPercent = a.PositionSize / p.PortfolioSize * 100
	}

	if p.WinRate != nil {
		kellyPct := kellyPercent(*p.WinRate, a.RiskReward1)
		kellySize := p.PortfolioSize * kellyPct / 100
		a.KellyPercent = &kellyPct
		a.KellySize = &kellySize
	}

	e.applyPolicy(a)
	return a, nil
}

func (e *Engine) validate(p *Params) error {
	if p.Direction != Long && p.Direction != Short {
		return &ValidationError{Field: "direction", Reason: "must be long or short"}
	}
	if p.Entry <= 0 {
		return &ValidationError{Field: "entry", Reason: "must be positive"}
	}
	if p.Stop <= 0 {
		return &ValidationError{Field: "stop", Reason: "must be positive"}
	}
	if p.Target1 <= 0 {
		return &ValidationError{Field: "target_1", Reason: "must be positive"}
	}
	if p.Target2 != nil && *p.Target2 <= 0 {
		return &ValidationError{Field: "target_2", Reason: "must be positive"}
	}
	if p.PortfolioSize < e.policy.MinPortfolioSize {
		return &ValidationError{
			Field:  "portfolio_size",
			Reason: fmt.Sprintf("must be at least %.2f", e.policy.MinPortfolioSize),
		}
	}
	if p.RiskPercent <= 0 {
		p.RiskPercent = e.policy.DefaultRiskPercent
	}

	switch p.Direction {
	case Long:
		if p.Stop >= p.Entry {
			return &ValidationError{Field: "stop", Reason: "must be below entry for a long"}
		}
		if p.Target1 <= p.Entry {
			return &ValidationError{Field: "target_1", Reason: "must be above entry for a long"}
		}
		if p.Target2 != nil && *p.Target2 <= p.Entry {
			return &ValidationError{Field: "target_2", Reason: "must be above entry for a long"}
		}
	case Short:
		if p.Stop <= p.Entry {
			return &ValidationError{Field: "stop", Reason: "must be above entry for a short"}
		}
		if p.Target1 >= p.Entry {
			return &ValidationError{Field: "target_1", Reason: "must be below entry for a short"}
		}
		if p.Target2 != nil && *p.Target2 >= p.Entry {
			return &ValidationError{Field: "target_2", Reason: "must be below entry for a short"}
		}
	}
	return nil
}

// applyPolicy collects ordered hard violations and soft warnings.
func (e *Engine) applyPolicy(a *Assessment) {
	if a.RiskPercent > e.policy.MaxRiskPercent {
		a.Violations = append(a.Violations,
			fmt.Sprintf("risk percent %.2f%% exceeds maximum %.2f%%", a.RiskPercent, e.policy.MaxRiskPercent))
	}
	if a.PositionSize > e.policy.MaxPositionSize {
		a.Violations = append(a.Violations,
			fmt.Sprintf("position size $%.2f exceeds maximum $%.2f", a.PositionSize, e.policy.MaxPositionSize))
	}
	if a.PositionPercent > e.policy.MaxPositionPercent {
		a.Violations = append(a.Violations,
			fmt.Sprintf("position is %.2f%% of portfolio, above the %.0f%% cap", a.PositionPercent, e.policy.MaxPositionPercent))
	}

	if a.ShareCount == 0 {
		a.Warnings = append(a.Warnings, "risk budget too small for a single share at this stop distance")
	}
	if a.RiskReward1 < 1.5 {
		a.Warnings = append(a.Warnings,
			fmt.Sprintf("reward:risk %.2f below 1.5, edge is thin", a.RiskReward1))
	}
	if a.KellyPercent != nil && *a.KellyPercent == 0 {
		a.Warnings = append(a.Warnings, "Kelly criterion suggests no allocation at this win rate and payoff")
	}

	a.PassesRiskCheck = len(a.Violations) == 0
}

// kellyPercent computes the Kelly fraction as a percentage:
// winRate − (100−winRate)/rr, floored at zero.
func kellyPercent(winRate, rr float64) float64 {
	if rr <= 0 {
		return 0
	}
	kelly := winRate - (100-winRate)/rr
	if kelly < 0 {
		return 0
	}
	return math.Round(kelly*100) / 100
}
