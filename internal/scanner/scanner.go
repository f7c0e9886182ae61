package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"pattern-signal-engine/internal/ai"
	"pattern-signal-engine/internal/database"
	"pattern-signal-engine/internal/events"
	"pattern-signal-engine/internal/indicators"
	"pattern-signal-engine/internal/lifecycle"
	"pattern-signal-engine/internal/market"
	"pattern-signal-engine/internal/patterns"
	"pattern-signal-engine/internal/regime"
	"pattern-signal-engine/internal/risk"
)

const (
	candleFetchLimit = 250
	fetchTimeout     = 30 * time.Second

	minScanIntervalMinutes = 5
	maxScanIntervalMinutes = 1440
)

// Config controls the scan loop.
type Config struct {
	TickInterval    time.Duration `json:"tick_interval"`
	WorkerCount     int           `json:"worker_count"`
	MaxScansPerTick int           `json:"max_scans_per_tick"`
	PortfolioSize   float64       `json:"portfolio_size"`
	RiskPercent     float64       `json:"risk_percent"`
	MinConfidence   float64       `json:"min_confidence"`
}

// DefaultConfig returns the default scanner configuration
func DefaultConfig() Config {
	return Config{
		TickInterval:    time.Minute,
		WorkerCount:     4,
		MaxScansPerTick: 50,
		PortfolioSize:   100000,
		RiskPercent:     1,
		MinConfidence:   60,
	}
}

// Status is a point-in-time snapshot of the scan loop for the API.
type Status struct {
	Running         bool      `json:"running"`
	LastTickAt      time.Time `json:"last_tick_at"`
	LastTickSymbols int       `json:"last_tick_symbols"`
	TotalScans      int64     `json:"total_scans"`
	TotalPatterns   int64     `json:"total_patterns"`
	TotalErrors     int64     `json:"total_errors"`
}

// Scanner walks the watchlist on a ticker, runs the detection pipeline for
// each due symbol across a worker pool, then advances pattern and trade
// lifecycles. Ticks never overlap: a tick that fires while the previous one
// is still running is dropped.
type Scanner struct {
	config     Config
	repo       *database.Repository
	provider   market.Provider
	detector   *patterns.Detector
	classifier *regime.Classifier
	riskEngine *risk.Engine
	advisor    *ai.Advisor
	engine     *lifecycle.Engine
	bus        *events.Bus
	logger     zerolog.Logger

	inTick atomic.Bool

	mu              sync.Mutex
	running         bool
	lastTickAt      time.Time
	lastTickSymbols int
	totalScans      int64
	totalPatterns   int64
	totalErrors     int64
}

// NewScanner wires the full pipeline.
func NewScanner(config Config, repo *database.Repository, provider market.Provider,
	riskEngine *risk.Engine, advisor *ai.Advisor, engine *lifecycle.Engine,
	bus *events.Bus, logger zerolog.Logger) *Scanner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.TickInterval <= 0 {
		config.TickInterval = time.Minute
	}
	return &Scanner{
		config:     config,
		repo:       repo,
		provider:   provider,
		detector:   patterns.NewDetector(),
		classifier: regime.NewClassifier(),
		riskEngine: riskEngine,
		advisor:    advisor,
		engine:     engine,
		bus:        bus,
		logger:     logger.With().Str("component", "scanner").Logger(),
	}
}

// Run blocks until the context is cancelled, firing one tick per interval.
func (s *Scanner) Run(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info().
		Dur("tick_interval", s.config.TickInterval).
		Int("workers", s.config.WorkerCount).
		Msg("scanner started")

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scanner stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Status returns the current loop snapshot.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:         s.running,
		LastTickAt:      s.lastTickAt,
		LastTickSymbols: s.lastTickSymbols,
		TotalScans:      s.totalScans,
		TotalPatterns:   s.totalPatterns,
		TotalErrors:     s.totalErrors,
	}
}

func (s *Scanner) tick(ctx context.Context) {
	if !s.inTick.CompareAndSwap(false, true) {
		s.logger.Warn().Msg("previous tick still running, skipping")
		return
	}
	defer s.inTick.Store(false)

	started := time.Now()
	due := s.dueSymbols(ctx, started)
	if ctx.Err() != nil {
		return
	}

	jobs := make(chan database.WatchlistItem)
	var wg sync.WaitGroup
	for i := 0; i < s.config.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				s.scanSymbol(ctx, item)
			}
		}()
	}
	for _, item := range due {
		if ctx.Err() != nil {
			break
		}
		jobs <- item
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		return
	}

	if err := s.engine.ResolveOpenTrades(ctx); err != nil {
		s.logger.Error().Err(err).Msg("resolving open trades")
		s.countError()
	}

	s.mu.Lock()
	s.lastTickAt = started
	s.lastTickSymbols = len(due)
	s.mu.Unlock()

	s.bus.Publish(events.Event{
		Type:      events.EventScanCompleted,
		Timestamp: time.Now().UTC(),
		Data: map[string]interface{}{
			"symbols":     len(due),
			"duration_ms": time.Since(started).Milliseconds(),
		},
	})
}

// dueSymbols filters the watchlist down to symbols whose per-symbol scan
// interval has elapsed, capped at MaxScansPerTick. Intervals outside the
// 5 to 1440 minute range are clamped.
func (s *Scanner) dueSymbols(ctx context.Context, now time.Time) []database.WatchlistItem {
	items, err := s.repo.GetWatchlist(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("loading watchlist")
		s.countError()
		return nil
	}

	var due []database.WatchlistItem
	for _, item := range items {
		interval := item.ScanIntervalMinutes
		if interval < minScanIntervalMinutes {
			interval = minScanIntervalMinutes
		}
		if interval > maxScanIntervalMinutes {
			interval = maxScanIntervalMinutes
		}
		if item.LastScannedAt != nil &&
			now.Sub(*item.LastScannedAt) < time.Duration(interval)*time.Minute {
			continue
		}
		due = append(due, item)
		if s.config.MaxScansPerTick > 0 && len(due) >= s.config.MaxScansPerTick {
			break
		}
	}
	return due
}

// scanSymbol runs the full pipeline for one symbol: candles, features,
// patterns, regime, risk, advisory, then lifecycle advancement.
func (s *Scanner) scanSymbol(ctx context.Context, item database.WatchlistItem) {
	logger := s.logger.With().Str("symbol", item.Symbol).Logger()

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	tf := market.ParseTimeframe(item.Timeframe)
	candles, err := s.provider.GetCandles(fetchCtx, item.Symbol, tf, candleFetchLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("fetching candles")
		s.countError()
		return
	}

	features, err := indicators.Compute(item.Symbol, candles)
	if err != nil {
		logger.Debug().Err(err).Msg("insufficient data for features")
		s.touch(ctx, item.Symbol)
		return
	}

	detected := s.detector.Detect(candles)
	regimeResult := s.classifier.Classify(features)
	if err := s.repo.SaveRegimeResult(ctx, regimeResult); err != nil {
		logger.Warn().Err(err).Msg("saving regime result")
	}

	s.mu.Lock()
	s.totalScans++
	s.totalPatterns += int64(len(detected))
	s.mu.Unlock()

	for _, p := range detected {
		if p.Confidence < s.config.MinConfidence {
			continue
		}
		if _, err := s.engine.TrackPattern(ctx, item.Symbol, tf, p); err != nil {
			logger.Error().Err(err).Str("pattern", string(p.Type)).Msg("tracking pattern")
			s.countError()
		}
	}

	s.maybeOpenTrade(ctx, item.Symbol, tf, candles, detected, features, regimeResult, logger)

	if err := s.engine.UpdateActivePatterns(ctx, item.Symbol, features.CurrentPrice); err != nil {
		logger.Error().Err(err).Msg("updating active patterns")
		s.countError()
	}

	s.touch(ctx, item.Symbol)
}

// maybeOpenTrade sizes and opens a simulated trade off the best detected
// pattern, when it is directional and passes the risk policy.
func (s *Scanner) maybeOpenTrade(ctx context.Context, symbol string, tf market.Timeframe,
	candles []market.Candle, detected []patterns.PatternResult,
	features *indicators.FeatureVector, regimeResult *regime.Result, logger zerolog.Logger) {

	var best *patterns.PatternResult
	for i := range detected {
		if detected[i].Confidence < s.config.MinConfidence {
			continue
		}
		if detected[i].Direction == patterns.Neutral {
			continue
		}
		best = &detected[i]
		break
	}
	if best == nil {
		return
	}

	dir := risk.Long
	if best.Direction == patterns.Bearish {
		dir = risk.Short
	}

	assessment, err := s.riskEngine.Assess(risk.Params{
		Direction:     dir,
		Entry:         best.Entry,
		Stop:          best.Stop,
		Target1:       best.Target,
		PortfolioSize: s.config.PortfolioSize,
		RiskPercent:   s.config.RiskPercent,
	})
	if err != nil {
		logger.Debug().Err(err).Str("pattern", string(best.Type)).Msg("risk validation rejected pattern")
		return
	}
	if !assessment.PassesRiskCheck {
		logger.Debug().
			Strs("violations", assessment.Violations).
			Str("pattern", string(best.Type)).
			Msg("pattern fails risk policy")
		return
	}

	if s.advisor != nil {
		advice, err := s.advisor.Advise(ctx, ai.AdvisoryInput{
			Symbol:       symbol,
			CurrentPrice: features.CurrentPrice,
			Features:     features,
			Patterns:     detected,
			Regime:       regimeResult,
			Assessment:   assessment,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("advisory failed")
		} else if advice.Action == "hold" {
			logger.Debug().Str("pattern", string(best.Type)).Msg("advisor recommends holding off")
			return
		}
	}

	pctx := &lifecycle.PatternContext{
		Type:          best.Type,
		Direction:     best.Direction,
		Timeframe:     tf,
		Confidence:    best.Confidence,
		VolumeProfile: volumeProfile(candles),
	}

	trade, err := s.engine.CreateTrade(ctx, symbol, dir, best.Entry, best.Stop, best.Target,
		nil, assessment.ShareCount, regimeResult.Regime, pctx, 0)
	if err != nil {
		logger.Error().Err(err).Msg("creating trade")
		s.countError()
		return
	}

	logger.Info().
		Str("trade_id", trade.ID).
		Str("pattern", string(best.Type)).
		Float64("entry", trade.Entry).
		Int("shares", trade.ShareCount).
		Msg("opened simulated trade")
}

// volumeProfile tags the snapshot breakout when the last bar's volume runs
// at least twice the trailing average.
func volumeProfile(candles []market.Candle) string {
	if len(candles) < 21 {
		return lifecycle.VolumeProfileNormal
	}
	last := candles[len(candles)-1]
	avg := indicators.AvgVolume(candles[:len(candles)-1], 20)
	if avg > 0 && last.Volume >= 2*avg {
		return lifecycle.VolumeProfileBreakout
	}
	return lifecycle.VolumeProfileNormal
}

func (s *Scanner) touch(ctx context.Context, symbol string) {
	if err := s.repo.TouchWatchlistItem(ctx, symbol, time.Now().UTC()); err != nil {
		s.logger.Debug().Err(err).Str("symbol", symbol).Msg("updating last scanned time")
	}
}

func (s *Scanner) countError() {
	s.mu.Lock()
	s.totalErrors++
	s.mu.Unlock()
}
