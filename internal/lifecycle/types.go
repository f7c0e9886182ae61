package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"pattern-signal-engine/internal/market"
	"pattern-signal-engine/internal/patterns"
	"pattern-signal-engine/internal/regime"
	"pattern-signal-engine/internal/risk"
)

// Status is the lifecycle stage of a tracked pattern
type Status string

const (
	StatusActive      Status = "active"
	StatusPlayingOut  Status = "playing_out"
	StatusHitTarget   Status = "hit_target"
	StatusHitStop     Status = "hit_stop"
	StatusExpired     Status = "expired"
	StatusInvalidated Status = "invalidated"
)

// IsTerminal reports whether a status is final; terminal records are never
// mutated again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusHitTarget, StatusHitStop, StatusExpired, StatusInvalidated:
		return true
	}
	return false
}

// TrackedPattern is a persisted pattern detection advanced tick by tick
// until it resolves.
type TrackedPattern struct {
	ID          string               `json:"id"`
	Symbol      string               `json:"symbol"`
	Type        patterns.PatternType `json:"type"`
	Direction   patterns.Direction   `json:"direction"`
	Timeframe   market.Timeframe     `json:"timeframe"`
	Confidence  float64              `json:"confidence"`
	WinRateHint float64              `json:"win_rate_hint"`
	Description string               `json:"description"`
	Entry       float64              `json:"entry"`
	Stop        float64              `json:"stop"`
	Target      float64              `json:"target"`
	DetectedAt  time.Time            `json:"detected_at"`
	ExpiresAt   time.Time            `json:"expires_at"`

	Status           Status     `json:"status"`
	CurrentPrice     float64    `json:"current_price"`
	HighWater        float64    `json:"high_water"`
	LowWater         float64    `json:"low_water"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ResolutionPrice  *float64   `json:"resolution_price,omitempty"`
	WasCorrect       *bool      `json:"was_correct,omitempty"`
	ActualPnLPercent *float64   `json:"actual_pnl_percent,omitempty"`
}

// NewTrackedPattern promotes a detector result into a tracked pattern with
// an expiry derived from the timeframe.
func NewTrackedPattern(symbol string, tf market.Timeframe, r patterns.PatternResult, now time.Time) *TrackedPattern {
	return &TrackedPattern{
		ID:           uuid.New().String(),
		Symbol:       symbol,
		Type:         r.Type,
		Direction:    r.Direction,
		Timeframe:    tf,
		Confidence:   r.Confidence,
		WinRateHint:  r.WinRateHint,
		Description:  r.Description,
		Entry:        r.Entry,
		Stop:         r.Stop,
		Target:       r.Target,
		DetectedAt:   now,
		ExpiresAt:    now.Add(tf.PatternTTL()),
		Status:       StatusActive,
		CurrentPrice: r.Entry,
		HighWater:    r.Entry,
		LowWater:     r.Entry,
	}
}

// TradeStatus is the coarse state of a simulated trade
type TradeStatus string

const (
	TradePending  TradeStatus = "pending"
	TradeActive   TradeStatus = "active"
	TradeResolved TradeStatus = "resolved"
)

// Outcome is the terminal result of a simulated trade
type Outcome string

const (
	OutcomeOpen       Outcome = "open"
	OutcomeHitTarget1 Outcome = "hit_target_1"
	OutcomeHitTarget2 Outcome = "hit_target_2"
	OutcomeHitStop    Outcome = "hit_stop"
	OutcomeExpired    Outcome = "expired"
)

// IsWin reports whether an outcome counts as a win for aggregation.
func (o Outcome) IsWin() bool {
	return o == OutcomeHitTarget1 || o == OutcomeHitTarget2
}

// Timeframe alignment and volume profile tags used for conditional
// performance statistics.
const (
	AlignmentAllAligned  = "all_aligned"
	AlignmentConflicting = "conflicting"
	AlignmentMixed       = "mixed"

	VolumeProfileBreakout = "breakout"
	VolumeProfileNormal   = "normal"
)

// PatternContext carries the optional pattern metadata attached to a trade
// at creation. Absent fields stay zero; a nil context means the trade was
// supplied externally without a pattern origin.
type PatternContext struct {
	Type               patterns.PatternType `json:"type"`
	Direction          patterns.Direction   `json:"direction"`
	Timeframe          market.Timeframe     `json:"timeframe"`
	Confidence         float64              `json:"confidence"`
	TimeframeAlignment string               `json:"timeframe_alignment,omitempty"`
	VolumeProfile      string               `json:"volume_profile,omitempty"`
}

// SimulatedTrade is a hypothetical trade advanced bar by bar to resolution.
type SimulatedTrade struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	Direction     risk.Direction  `json:"direction"`
	Entry         float64         `json:"entry"`
	Stop          float64         `json:"stop"`
	Target1       float64         `json:"target_1"`
	Target2       *float64        `json:"target_2,omitempty"`
	ShareCount    int             `json:"share_count"`
	RegimeAtEntry regime.Regime   `json:"regime_at_entry"`
	Pattern       *PatternContext `json:"pattern,omitempty"`

	Status            TradeStatus `json:"status"`
	Outcome           Outcome     `json:"outcome"`
	CreatedAt         time.Time   `json:"created_at"`
	ActivatedAt       time.Time   `json:"activated_at"`
	DaysHeld          int         `json:"days_held"`
	MaxExpirationDays int         `json:"max_expiration_days"`
	HighestSeen       float64     `json:"highest_seen"`
	LowestSeen        float64     `json:"lowest_seen"`

	ExitPrice          *float64   `json:"exit_price,omitempty"`
	PnLPercent         float64    `json:"pnl_percent"`
	PnLDollar          float64    `json:"pnl_dollar"`
	RMultiple          float64    `json:"r_multiple"`
	MaxDrawdownPercent float64    `json:"max_drawdown_percent"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
}

// NewSimulatedTrade creates an active trade from entry parameters. The
// expiration ceiling defaults from the pattern timeframe when not supplied.
func NewSimulatedTrade(symbol string, dir risk.Direction, entry, stop, target1 float64, target2 *float64, reg regime.Regime, pctx *PatternContext, maxDays int, now time.Time) *SimulatedTrade {
	if maxDays <= 0 {
		tf := market.Timeframe1d
		if pctx != nil {
			tf = pctx.Timeframe
		}
		maxDays = tf.MaxHoldBars()
	}
	return &SimulatedTrade{
		ID:                uuid.New().String(),
		Symbol:            symbol,
		Direction:         dir,
		Entry:             entry,
		Stop:              stop,
		Target1:           target1,
		Target2:           target2,
		RegimeAtEntry:     reg,
		Pattern:           pctx,
		Status:            TradeActive,
		Outcome:           OutcomeOpen,
		CreatedAt:         now,
		ActivatedAt:       now,
		MaxExpirationDays: maxDays,
		HighestSeen:       entry,
		LowestSeen:        entry,
	}
}
