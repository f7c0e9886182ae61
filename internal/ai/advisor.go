package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pattern-signal-engine/internal/indicators"
	"pattern-signal-engine/internal/patterns"
	"pattern-signal-engine/internal/regime"
	"pattern-signal-engine/internal/risk"
)

// Completer abstracts the LLM client so the advisor can be tested without
// network access.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Recorder persists advisory call records. Failures are logged and ignored.
type Recorder interface {
	SaveAdvisoryRecord(ctx context.Context, symbol, promptHash, response string, parsed, fallbackUsed bool) error
}

// AdvisorConfig controls call pacing and the trading pause window.
type AdvisorConfig struct {
	MaxConcurrentCalls int           `json:"max_concurrent_calls"`
	CallDelay          time.Duration `json:"call_delay"`
	PauseStart         string        `json:"pause_start"` // "HH:MM" UTC, empty disables
	PauseEnd           string        `json:"pause_end"`
}

// DefaultAdvisorConfig returns the conservative defaults: serialized calls
// with a one second gap.
func DefaultAdvisorConfig() AdvisorConfig {
	return AdvisorConfig{
		MaxConcurrentCalls: 1,
		CallDelay:          time.Second,
	}
}

// AdvisoryInput is the market snapshot handed to the advisor.
type AdvisoryInput struct {
	Symbol       string
	CurrentPrice float64
	Features     *indicators.FeatureVector
	Patterns     []patterns.PatternResult
	Regime       *regime.Result
	Assessment   *risk.Assessment
}

// Advice is the advisor's recommendation for a symbol.
type Advice struct {
	Symbol       string    `json:"symbol"`
	Action       string    `json:"action"` // buy, sell, hold
	Entry        float64   `json:"entry"`
	Stop         float64   `json:"stop"`
	Target       float64   `json:"target"`
	Confidence   float64   `json:"confidence"`
	Reasoning    string    `json:"reasoning"`
	FallbackUsed bool      `json:"fallback_used"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Advisor produces trade advice from detected patterns, optionally refined
// by an LLM. Every path degrades to a deterministic fallback built from the
// highest confidence pattern, so advice never depends on the LLM being up.
type Advisor struct {
	completer Completer
	recorder  Recorder
	config    AdvisorConfig
	logger    zerolog.Logger

	sem chan struct{}

	mu       sync.Mutex
	lastCall time.Time
}

// NewAdvisor creates an advisor. A nil completer disables LLM calls entirely
// and every request takes the fallback path.
func NewAdvisor(completer Completer, recorder Recorder, config AdvisorConfig, logger zerolog.Logger) *Advisor {
	if config.MaxConcurrentCalls <= 0 {
		config.MaxConcurrentCalls = 1
	}
	return &Advisor{
		completer: completer,
		recorder:  recorder,
		config:    config,
		logger:    logger.With().Str("component", "advisor").Logger(),
		sem:       make(chan struct{}, config.MaxConcurrentCalls),
	}
}

// Advise returns a recommendation for the snapshot. The LLM is consulted
// under the concurrency cap and pacing delay; any failure there falls back
// to pattern-derived levels rather than returning an error.
func (a *Advisor) Advise(ctx context.Context, input AdvisoryInput) (*Advice, error) {
	if input.Symbol == "" {
		return nil, fmt.Errorf("advisory input missing symbol")
	}

	if a.completer == nil || a.inPauseWindow(time.Now().UTC()) {
		advice := a.fallback(input)
		a.record(ctx, input.Symbol, "", "", false, true)
		return advice, nil
	}

	select {
	case a.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-a.sem }()

	if err := a.pace(ctx); err != nil {
		return nil, err
	}

	prompt := a.buildPrompt(input)
	hash := sha256.Sum256([]byte(prompt))
	promptHash := hex.EncodeToString(hash[:])

	response, err := a.completer.Complete(ctx, advisorSystemPrompt, prompt)
	if err != nil {
		a.logger.Warn().Err(err).Str("symbol", input.Symbol).Msg("LLM call failed, using fallback")
		a.record(ctx, input.Symbol, promptHash, "", false, true)
		return a.fallback(input), nil
	}

	advice, parseErr := parseAdvice(input.Symbol, response)
	if parseErr != nil {
		a.logger.Warn().Err(parseErr).Str("symbol", input.Symbol).Msg("unparseable LLM response, using fallback")
		a.record(ctx, input.Symbol, promptHash, response, false, true)
		return a.fallback(input), nil
	}

	a.record(ctx, input.Symbol, promptHash, response, true, false)
	return advice, nil
}

// pace enforces the minimum delay between consecutive LLM calls.
func (a *Advisor) pace(ctx context.Context) error {
	a.mu.Lock()
	wait := a.config.CallDelay - time.Since(a.lastCall)
	a.lastCall = time.Now().Add(wait)
	a.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Advisor) inPauseWindow(now time.Time) bool {
	start, okStart := parseClock(a.config.PauseStart)
	end, okEnd := parseClock(a.config.PauseEnd)
	if !okStart || !okEnd {
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	if start <= end {
		return minute >= start && minute < end
	}
	// window wraps midnight
	return minute >= start || minute < end
}

func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// fallback derives advice from the highest confidence pattern's own levels.
// Detector output is sorted by confidence so the first entry wins.
func (a *Advisor) fallback(input AdvisoryInput) *Advice {
	advice := &Advice{
		Symbol:       input.Symbol,
		Action:       "hold",
		Entry:        input.CurrentPrice,
		Stop:         input.CurrentPrice,
		Target:       input.CurrentPrice,
		Reasoning:    "no actionable pattern detected",
		FallbackUsed: true,
		GeneratedAt:  time.Now().UTC(),
	}
	if len(input.Patterns) == 0 {
		return advice
	}

	best := input.Patterns[0]
	advice.Entry = best.Entry
	advice.Stop = best.Stop
	advice.Target = best.Target
	advice.Confidence = best.Confidence
	advice.Reasoning = best.Description
	switch best.Direction {
	case patterns.Bullish:
		advice.Action = "buy"
	case patterns.Bearish:
		advice.Action = "sell"
	}
	return advice
}

const advisorSystemPrompt = `You are a technical analysis assistant. Given market features, detected chart patterns, the current regime and a risk assessment, respond with a single JSON object:
{"action":"buy|sell|hold","entry":0,"stop":0,"target":0,"confidence":0,"reasoning":"..."}
Respond with JSON only, no surrounding text.`

func (a *Advisor) buildPrompt(input AdvisoryInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s\nCurrent price: %.4f\n", input.Symbol, input.CurrentPrice)

	if f := input.Features; f != nil {
		fmt.Fprintf(&b, "\nIndicators:\nRSI14=%.2f MACD=%.4f signal=%.4f\n", f.RSI14, f.MACD, f.MACDSignal)
		fmt.Fprintf(&b, "Bollinger=[%.4f, %.4f, %.4f] width=%.2f%%\n",
			f.BollingerLower, f.BollingerMiddle, f.BollingerUpper, f.BollingerWidthPct)
		fmt.Fprintf(&b, "ATR=%.4f (%.2f%%) SMA20=%.4f SMA50=%.4f slope=%.2f%%\n",
			f.ATR, f.ATRPct, f.SMA20, f.SMA50, f.SMA20SlopePct)
	}

	if r := input.Regime; r != nil {
		fmt.Fprintf(&b, "\nRegime: %s (confidence %.0f)\n", r.Regime, r.Confidence)
		for _, reason := range r.Rationale {
			fmt.Fprintf(&b, "- %s\n", reason)
		}
	}

	if len(input.Patterns) > 0 {
		b.WriteString("\nDetected patterns (highest confidence first):\n")
		for i, p := range input.Patterns {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "- %s %s confidence=%.0f entry=%.4f stop=%.4f target=%.4f\n",
				p.Type, p.Direction, p.Confidence, p.Entry, p.Stop, p.Target)
		}
	}

	if as := input.Assessment; as != nil {
		fmt.Fprintf(&b, "\nRisk: %d shares, %.2f%% of portfolio, R:R %.2f, passes=%t\n",
			as.ShareCount, as.PositionPercent, as.RiskReward1, as.PassesRiskCheck)
	}

	return b.String()
}

// parseAdvice extracts the JSON object from an LLM response, tolerating
// surrounding prose or markdown fences.
func parseAdvice(symbol, response string) (*Advice, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var advice Advice
	if err := json.Unmarshal([]byte(response[start:end+1]), &advice); err != nil {
		return nil, fmt.Errorf("decoding advice: %w", err)
	}

	switch advice.Action {
	case "buy", "sell", "hold":
	default:
		return nil, fmt.Errorf("invalid action %q", advice.Action)
	}

	advice.Symbol = symbol
	advice.FallbackUsed = false
	advice.GeneratedAt = time.Now().UTC()
	return &advice, nil
}

func (a *Advisor) record(ctx context.Context, symbol, promptHash, response string, parsed, fallbackUsed bool) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.SaveAdvisoryRecord(ctx, symbol, promptHash, response, parsed, fallbackUsed); err != nil {
		a.logger.Debug().Err(err).Str("symbol", symbol).Msg("failed to save advisory record")
	}
}
