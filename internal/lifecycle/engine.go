package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"pattern-signal-engine/internal/events"
	"pattern-signal-engine/internal/market"
	"pattern-signal-engine/internal/patterns"
	"pattern-signal-engine/internal/regime"
	"pattern-signal-engine/internal/risk"
)

// Store is the persistence contract the lifecycle engine requires. The
// engine issues full entities on create/update and expects them durably
// stored.
type Store interface {
	SaveTrackedPattern(ctx context.Context, p *TrackedPattern) error
	ActivePatterns(ctx context.Context, symbol string) ([]*TrackedPattern, error)
	SaveTrade(ctx context.Context, t *SimulatedTrade) error
	OpenTrades(ctx context.Context) ([]*SimulatedTrade, error)
	ResolvedTrades(ctx context.Context, key PerformanceKey) ([]*SimulatedTrade, error)
	SavePerformance(ctx context.Context, perf *PatternPerformance) error
}

// Engine drives tracked patterns and simulated trades from creation to a
// terminal outcome and rolls resolved trades into performance aggregates.
type Engine struct {
	store    Store
	provider market.Provider
	bus      *events.Bus
	logger   zerolog.Logger
}

// NewEngine creates a trade lifecycle engine.
func NewEngine(store Store, provider market.Provider, bus *events.Bus, logger zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		provider: provider,
		bus:      bus,
		logger:   logger.With().Str("component", "lifecycle").Logger(),
	}
}

// TrackPattern promotes a detection into a tracked pattern and persists it.
func (e *Engine) TrackPattern(ctx context.Context, symbol string, tf market.Timeframe, r patterns.PatternResult) (*TrackedPattern, error) {
	p := NewTrackedPattern(symbol, tf, r, time.Now().UTC())
	if err := e.store.SaveTrackedPattern(ctx, p); err != nil {
		return nil, fmt.Errorf("saving tracked pattern: %w", err)
	}

	e.publish(events.EventPatternDetected, symbol, map[string]interface{}{
		"id": p.ID, "type": string(p.Type), "direction": string(p.Direction), "confidence": p.Confidence,
	})
	return p, nil
}

// CreateTrade opens a simulated trade and persists it.
func (e *Engine) CreateTrade(ctx context.Context, symbol string, dir risk.Direction, entry, stop, target1 float64, target2 *float64, shares int, reg regime.Regime, pctx *PatternContext, maxDays int) (*SimulatedTrade, error) {
	t := NewSimulatedTrade(symbol, dir, entry, stop, target1, target2, reg, pctx, maxDays, time.Now().UTC())
	t.ShareCount = shares
	if err := e.store.SaveTrade(ctx, t); err != nil {
		return nil, fmt.Errorf("saving trade: %w", err)
	}

	e.publish(events.EventTradeCreated, symbol, map[string]interface{}{
		"id": t.ID, "direction": string(t.Direction), "entry": t.Entry,
	})
	return t, nil
}

// UpdateActivePatterns advances every non-terminal pattern for a symbol
// against the latest price. Terminal transitions are persisted and
// published; already-terminal rows are untouched.
func (e *Engine) UpdateActivePatterns(ctx context.Context, symbol string, currentPrice float64) error {
	active, err := e.store.ActivePatterns(ctx, symbol)
	if err != nil {
		return fmt.Errorf("loading active patterns for %s: %w", symbol, err)
	}

	now := time.Now().UTC()
	for _, p := range active {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resolved := UpdatePattern(p, currentPrice, now)
		if err := e.store.SaveTrackedPattern(ctx, p); err != nil {
			e.logger.Error().Err(err).Str("pattern_id", p.ID).Msg("failed to save pattern update")
			continue
		}

		if resolved {
			e.logger.Info().
				Str("symbol", symbol).
				Str("pattern", string(p.Type)).
				Str("status", string(p.Status)).
				Float64("price", currentPrice).
				Msg("pattern resolved")
			e.publish(events.EventPatternResolved, symbol, map[string]interface{}{
				"id": p.ID, "type": string(p.Type), "status": string(p.Status), "price": currentPrice,
			})
		}
	}
	return nil
}

// ResolveOpenTrades replays fresh candles through every open trade. Trades
// are grouped by symbol so market data is fetched once per symbol, then each
// symbol's trades are processed sequentially. A market-data failure skips
// only that symbol.
func (e *Engine) ResolveOpenTrades(ctx context.Context) error {
	open, err := e.store.OpenTrades(ctx)
	if err != nil {
		return fmt.Errorf("loading open trades: %w", err)
	}
	if len(open) == 0 {
		return nil
	}

	bySymbol := make(map[string][]*SimulatedTrade)
	for _, t := range open {
		bySymbol[t.Symbol] = append(bySymbol[t.Symbol], t)
	}

	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		trades := bySymbol[symbol]
		tf := market.Timeframe1d
		if trades[0].Pattern != nil {
			tf = trades[0].Pattern.Timeframe
		}

		fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		candles, err := e.provider.GetCandles(fetchCtx, symbol, tf, 100)
		cancel()
		if err != nil {
			e.logger.Warn().Err(err).Str("symbol", symbol).Msg("skipping trade resolution, market data unavailable")
			continue
		}

		for _, t := range trades {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !AdvanceTrade(t, candles) {
				if err := e.store.SaveTrade(ctx, t); err != nil {
					e.logger.Error().Err(err).Str("trade_id", t.ID).Msg("failed to save trade progress")
				}
				continue
			}

			if err := e.store.SaveTrade(ctx, t); err != nil {
				e.logger.Error().Err(err).Str("trade_id", t.ID).Msg("failed to save resolved trade")
				continue
			}

			e.logger.Info().
				Str("symbol", symbol).
				Str("trade_id", t.ID).
				Str("outcome", string(t.Outcome)).
				Float64("pnl_pct", t.PnLPercent).
				Msg("trade resolved")
			e.publish(events.EventTradeResolved, symbol, map[string]interface{}{
				"id": t.ID, "outcome": string(t.Outcome), "pnl_percent": t.PnLPercent,
			})

			if err := e.refreshPerformance(ctx, t); err != nil {
				e.logger.Error().Err(err).Str("trade_id", t.ID).Msg("failed to refresh performance aggregate")
			}
		}
	}
	return nil
}

// refreshPerformance recomputes the aggregate row for the resolved trade's
// key from the full resolved set.
func (e *Engine) refreshPerformance(ctx context.Context, t *SimulatedTrade) error {
	key, ok := KeyFor(t)
	if !ok {
		return nil
	}

	resolved, err := e.store.ResolvedTrades(ctx, key)
	if err != nil {
		return fmt.Errorf("loading resolved trades: %w", err)
	}

	perf := ComputePerformance(key, resolved)
	if err := e.store.SavePerformance(ctx, perf); err != nil {
		return fmt.Errorf("saving performance: %w", err)
	}
	return nil
}

func (e *Engine) publish(eventType events.EventType, symbol string, data map[string]interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{Type: eventType, Symbol: symbol, Data: data})
}
