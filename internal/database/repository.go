package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pattern-signal-engine/internal/lifecycle"
	"pattern-signal-engine/internal/regime"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// TRACKED PATTERNS
// ============================================================================

// SaveTrackedPattern upserts a tracked pattern.
func (r *Repository) SaveTrackedPattern(ctx context.Context, p *lifecycle.TrackedPattern) error {
	query := `
		INSERT INTO tracked_patterns (
			id, symbol, pattern_type, direction, timeframe, confidence, win_rate_hint,
			description, entry, stop, target, detected_at, expires_at, status,
			current_price, high_water, low_water, resolved_at, resolution_price,
			was_correct, actual_pnl_percent
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_price = EXCLUDED.current_price,
			high_water = EXCLUDED.high_water,
			low_water = EXCLUDED.low_water,
			resolved_at = EXCLUDED.resolved_at,
			resolution_price = EXCLUDED.resolution_price,
			was_correct = EXCLUDED.was_correct,
			actual_pnl_percent = EXCLUDED.actual_pnl_percent
	`
	_, err := r.db.Pool.Exec(ctx, query,
		p.ID, p.Symbol, p.Type, p.Direction, p.Timeframe, p.Confidence, p.WinRateHint,
		p.Description, p.Entry, p.Stop, p.Target, p.DetectedAt, p.ExpiresAt, p.Status,
		p.CurrentPrice, p.HighWater, p.LowWater, p.ResolvedAt, p.ResolutionPrice,
		p.WasCorrect, p.ActualPnLPercent,
	)
	if err != nil {
		return fmt.Errorf("saving tracked pattern %s: %w", p.ID, err)
	}
	return nil
}

// ActivePatterns returns non-terminal patterns for a symbol. An empty symbol
// returns all non-terminal patterns.
func (r *Repository) ActivePatterns(ctx context.Context, symbol string) ([]*lifecycle.TrackedPattern, error) {
	query := `
		SELECT id, symbol, pattern_type, direction, timeframe, confidence, win_rate_hint,
			description, entry, stop, target, detected_at, expires_at, status,
			current_price, high_water, low_water, resolved_at, resolution_price,
			was_correct, actual_pnl_percent
		FROM tracked_patterns
		WHERE status IN ('active', 'playing_out')
			AND ($1 = '' OR symbol = $1)
		ORDER BY detected_at
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("querying active patterns: %w", err)
	}
	defer rows.Close()

	var out []*lifecycle.TrackedPattern
	for rows.Next() {
		var p lifecycle.TrackedPattern
		if err := rows.Scan(
			&p.ID, &p.Symbol, &p.Type, &p.Direction, &p.Timeframe, &p.Confidence, &p.WinRateHint,
			&p.Description, &p.Entry, &p.Stop, &p.Target, &p.DetectedAt, &p.ExpiresAt, &p.Status,
			&p.CurrentPrice, &p.HighWater, &p.LowWater, &p.ResolvedAt, &p.ResolutionPrice,
			&p.WasCorrect, &p.ActualPnLPercent,
		); err != nil {
			return nil, fmt.Errorf("scanning tracked pattern: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// ============================================================================
// SIMULATED TRADES
// ============================================================================

// SaveTrade upserts a simulated trade.
func (r *Repository) SaveTrade(ctx context.Context, t *lifecycle.SimulatedTrade) error {
	var pctx []byte
	if t.Pattern != nil {
		var err error
		pctx, err = json.Marshal(t.Pattern)
		if err != nil {
			return fmt.Errorf("marshaling pattern context: %w", err)
		}
	}

	query := `
		INSERT INTO simulated_trades (
			id, symbol, direction, entry, stop, target_1, target_2, share_count,
			regime_at_entry, pattern_context, status, outcome, created_at, activated_at,
			days_held, max_expiration_days, highest_seen, lowest_seen, exit_price,
			pnl_percent, pnl_dollar, r_multiple, max_drawdown_percent, resolved_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			outcome = EXCLUDED.outcome,
			days_held = EXCLUDED.days_held,
			highest_seen = EXCLUDED.highest_seen,
			lowest_seen = EXCLUDED.lowest_seen,
			exit_price = EXCLUDED.exit_price,
			pnl_percent = EXCLUDED.pnl_percent,
			pnl_dollar = EXCLUDED.pnl_dollar,
			r_multiple = EXCLUDED.r_multiple,
			max_drawdown_percent = EXCLUDED.max_drawdown_percent,
			resolved_at = EXCLUDED.resolved_at
	`
	_, err := r.db.Pool.Exec(ctx, query,
		t.ID, t.Symbol, t.Direction, t.Entry, t.Stop, t.Target1, t.Target2, t.ShareCount,
		t.RegimeAtEntry, pctx, t.Status, t.Outcome, t.CreatedAt, t.ActivatedAt,
		t.DaysHeld, t.MaxExpirationDays, t.HighestSeen, t.LowestSeen, t.ExitPrice,
		t.PnLPercent, t.PnLDollar, t.RMultiple, t.MaxDrawdownPercent, t.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("saving trade %s: %w", t.ID, err)
	}
	return nil
}

// OpenTrades returns all pending/active trades.
func (r *Repository) OpenTrades(ctx context.Context) ([]*lifecycle.SimulatedTrade, error) {
	query := tradeSelect + ` WHERE status IN ('pending', 'active') ORDER BY created_at`
	return r.queryTrades(ctx, query)
}

// ResolvedTrades returns every resolved trade whose pattern metadata matches
// the aggregation key.
func (r *Repository) ResolvedTrades(ctx context.Context, key lifecycle.PerformanceKey) ([]*lifecycle.SimulatedTrade, error) {
	query := tradeSelect + `
		WHERE status = 'resolved'
			AND regime_at_entry = $1
			AND pattern_context->>'type' = $2
			AND pattern_context->>'direction' = $3
			AND pattern_context->>'timeframe' = $4
		ORDER BY resolved_at
	`
	return r.queryTrades(ctx, query, key.Regime, key.PatternType, key.Direction, key.Timeframe)
}

const tradeSelect = `
	SELECT id, symbol, direction, entry, stop, target_1, target_2, share_count,
		regime_at_entry, pattern_context, status, outcome, created_at, activated_at,
		days_held, max_expiration_days, highest_seen, lowest_seen, exit_price,
		pnl_percent, pnl_dollar, r_multiple, max_drawdown_percent, resolved_at
	FROM simulated_trades`

func (r *Repository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*lifecycle.SimulatedTrade, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var out []*lifecycle.SimulatedTrade
	for rows.Next() {
		var t lifecycle.SimulatedTrade
		var pctx []byte
		if err := rows.Scan(
			&t.ID, &t.Symbol, &t.Direction, &t.Entry, &t.Stop, &t.Target1, &t.Target2, &t.ShareCount,
			&t.RegimeAtEntry, &pctx, &t.Status, &t.Outcome, &t.CreatedAt, &t.ActivatedAt,
			&t.DaysHeld, &t.MaxExpirationDays, &t.HighestSeen, &t.LowestSeen, &t.ExitPrice,
			&t.PnLPercent, &t.PnLDollar, &t.RMultiple, &t.MaxDrawdownPercent, &t.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		if len(pctx) > 0 {
			var pc lifecycle.PatternContext
			if err := json.Unmarshal(pctx, &pc); err == nil {
				t.Pattern = &pc
			}
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// ============================================================================
// PATTERN PERFORMANCE
// ============================================================================

// SavePerformance upserts the full recomputed aggregate row for a key.
func (r *Repository) SavePerformance(ctx context.Context, perf *lifecycle.PatternPerformance) error {
	stats, err := json.Marshal(perf)
	if err != nil {
		return fmt.Errorf("marshaling performance stats: %w", err)
	}

	query := `
		INSERT INTO pattern_performance (pattern_type, direction, timeframe, regime, stats, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (pattern_type, direction, timeframe, regime) DO UPDATE SET
			stats = EXCLUDED.stats,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.Pool.Exec(ctx, query,
		perf.Key.PatternType, perf.Key.Direction, perf.Key.Timeframe, perf.Key.Regime,
		stats, perf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving performance row: %w", err)
	}
	return nil
}

// AllPerformance returns every aggregate row, most recently updated first.
func (r *Repository) AllPerformance(ctx context.Context) ([]*lifecycle.PatternPerformance, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT stats FROM pattern_performance ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying performance: %w", err)
	}
	defer rows.Close()

	var out []*lifecycle.PatternPerformance
	for rows.Next() {
		var stats []byte
		if err := rows.Scan(&stats); err != nil {
			return nil, fmt.Errorf("scanning performance: %w", err)
		}
		var perf lifecycle.PatternPerformance
		if err := json.Unmarshal(stats, &perf); err != nil {
			return nil, fmt.Errorf("unmarshaling performance: %w", err)
		}
		out = append(out, &perf)
	}
	return out, rows.Err()
}

// ============================================================================
// REGIME HISTORY
// ============================================================================

// SaveRegimeResult appends a classification to the regime history.
func (r *Repository) SaveRegimeResult(ctx context.Context, res *regime.Result) error {
	rationale, err := json.Marshal(res.Rationale)
	if err != nil {
		return fmt.Errorf("marshaling rationale: %w", err)
	}
	features, err := json.Marshal(res.Features)
	if err != nil {
		return fmt.Errorf("marshaling features: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO regime_history (symbol, regime, confidence, rationale, features, detected_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		res.Symbol, res.Regime, res.Confidence, rationale, features, res.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("saving regime result: %w", err)
	}
	return nil
}

// LatestRegime returns the most recent classification for a symbol, or nil
// when none exists.
func (r *Repository) LatestRegime(ctx context.Context, symbol string) (*regime.Result, error) {
	var res regime.Result
	var rationale, features []byte
	err := r.db.Pool.QueryRow(ctx, `
		SELECT symbol, regime, confidence, rationale, features, detected_at
		FROM regime_history WHERE symbol = $1
		ORDER BY detected_at DESC LIMIT 1`, symbol,
	).Scan(&res.Symbol, &res.Regime, &res.Confidence, &rationale, &features, &res.DetectedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying latest regime: %w", err)
	}

	_ = json.Unmarshal(rationale, &res.Rationale)
	_ = json.Unmarshal(features, &res.Features)
	return &res, nil
}

// ============================================================================
// WATCHLIST
// ============================================================================

// WatchlistItem is one symbol the scanner tracks.
type WatchlistItem struct {
	Symbol              string     `json:"symbol"`
	Timeframe           string     `json:"timeframe"`
	ScanIntervalMinutes int        `json:"scan_interval_minutes"`
	LastScannedAt       *time.Time `json:"last_scanned_at,omitempty"`
	AddedAt             time.Time  `json:"added_at"`
}

// GetWatchlist returns all watchlist entries.
func (r *Repository) GetWatchlist(ctx context.Context) ([]WatchlistItem, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT symbol, timeframe, scan_interval_minutes, last_scanned_at, added_at
		FROM watchlist ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("querying watchlist: %w", err)
	}
	defer rows.Close()

	var out []WatchlistItem
	for rows.Next() {
		var item WatchlistItem
		if err := rows.Scan(&item.Symbol, &item.Timeframe, &item.ScanIntervalMinutes,
			&item.LastScannedAt, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("scanning watchlist item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// AddWatchlistItem inserts or updates a watchlist entry.
func (r *Repository) AddWatchlistItem(ctx context.Context, item WatchlistItem) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO watchlist (symbol, timeframe, scan_interval_minutes)
		VALUES ($1,$2,$3)
		ON CONFLICT (symbol) DO UPDATE SET
			timeframe = EXCLUDED.timeframe,
			scan_interval_minutes = EXCLUDED.scan_interval_minutes`,
		item.Symbol, item.Timeframe, item.ScanIntervalMinutes,
	)
	if err != nil {
		return fmt.Errorf("adding watchlist item %s: %w", item.Symbol, err)
	}
	return nil
}

// TouchWatchlistItem records when a symbol was last scanned.
func (r *Repository) TouchWatchlistItem(ctx context.Context, symbol string, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE watchlist SET last_scanned_at = $2 WHERE symbol = $1`, symbol, at)
	if err != nil {
		return fmt.Errorf("touching watchlist item %s: %w", symbol, err)
	}
	return nil
}

// ============================================================================
// ADVISORY LOG
// ============================================================================

// SaveAdvisoryRecord appends one advisory call record. Best-effort: callers
// log failures and continue.
func (r *Repository) SaveAdvisoryRecord(ctx context.Context, symbol, promptHash, response string, parsed, fallbackUsed bool) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO advisory_log (symbol, prompt_hash, response, parsed, fallback_used)
		VALUES ($1,$2,$3,$4,$5)`,
		symbol, promptHash, response, parsed, fallbackUsed,
	)
	if err != nil {
		return fmt.Errorf("saving advisory record: %w", err)
	}
	return nil
}

var _ lifecycle.Store = (*Repository)(nil)
