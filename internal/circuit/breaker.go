// Package circuit wraps a market data provider with a circuit breaker so a
// flapping upstream does not stall every scan tick waiting on timeouts.
package circuit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pattern-signal-engine/internal/market"
)

// State is the breaker state.
type State string

const (
	StateClosed   State = "closed"    // normal operation
	StateOpen     State = "open"      // requests rejected
	StateHalfOpen State = "half_open" // single probe allowed
)

// Config holds the breaker thresholds.
type Config struct {
	Enabled             bool          `json:"enabled"`
	MaxConsecutiveFails int           `json:"max_consecutive_fails"`
	Cooldown            time.Duration `json:"cooldown"`
}

// DefaultConfig trips after five straight failures with a one minute
// cooldown.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		MaxConsecutiveFails: 5,
		Cooldown:            time.Minute,
	}
}

// Breaker is a market.Provider decorator. After MaxConsecutiveFails
// consecutive upstream errors it rejects requests for the cooldown period,
// then allows a single probe; a successful probe closes the breaker again.
type Breaker struct {
	inner  market.Provider
	config Config
	logger zerolog.Logger
	onTrip func(reason string)

	mu               sync.Mutex
	state            State
	consecutiveFails int
	openedAt         time.Time
	probing          bool
}

// NewBreaker wraps the provider. A zero MaxConsecutiveFails or Cooldown
// falls back to the defaults.
func NewBreaker(inner market.Provider, config Config, logger zerolog.Logger) *Breaker {
	if config.MaxConsecutiveFails <= 0 {
		config.MaxConsecutiveFails = DefaultConfig().MaxConsecutiveFails
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultConfig().Cooldown
	}
	return &Breaker{
		inner:  inner,
		config: config,
		logger: logger.With().Str("component", "circuit").Logger(),
		state:  StateClosed,
	}
}

// OnTrip registers a callback invoked from a new goroutine when the breaker
// opens.
func (b *Breaker) OnTrip(handler func(reason string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = handler
}

// GetCandles delegates to the wrapped provider under the breaker.
func (b *Breaker) GetCandles(ctx context.Context, symbol string, timeframe market.Timeframe, limit int) ([]market.Candle, error) {
	if err := b.allow(); err != nil {
		return nil, err
	}
	candles, err := b.inner.GetCandles(ctx, symbol, timeframe, limit)
	b.observe(err)
	return candles, err
}

// GetCurrentPrice delegates to the wrapped provider under the breaker.
func (b *Breaker) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if err := b.allow(); err != nil {
		return 0, err
	}
	price, err := b.inner.GetCurrentPrice(ctx, symbol)
	b.observe(err)
	return price, err
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ForceReset closes the breaker and clears the failure count.
func (b *Breaker) ForceReset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecutiveFails = 0
	b.probing = false
}

// allow decides whether a request may proceed. In the open state requests
// fail fast with ErrUnavailable until the cooldown elapses, then exactly one
// probe is let through.
func (b *Breaker) allow() error {
	if !b.config.Enabled {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(b.openedAt) < b.config.Cooldown {
			return fmt.Errorf("%w: circuit open, retry in %s",
				market.ErrUnavailable, (b.config.Cooldown - time.Since(b.openedAt)).Round(time.Second))
		}
		b.state = StateHalfOpen
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return fmt.Errorf("%w: circuit half-open, probe in flight", market.ErrUnavailable)
		}
		b.probing = true
		return nil
	}
	return nil
}

// observe records the outcome of a delegated call and moves the state
// machine.
func (b *Breaker) observe(err error) {
	if !b.config.Enabled {
		return
	}

	b.mu.Lock()

	if b.state == StateHalfOpen {
		b.probing = false
		if err == nil {
			b.state = StateClosed
			b.consecutiveFails = 0
			b.mu.Unlock()
			b.logger.Info().Msg("circuit closed after successful probe")
			return
		}
		b.openedAt = time.Now()
		b.state = StateOpen
		b.mu.Unlock()
		b.logger.Warn().Err(err).Msg("probe failed, circuit reopened")
		return
	}

	if err == nil {
		b.consecutiveFails = 0
		b.mu.Unlock()
		return
	}

	b.consecutiveFails++
	tripped := b.consecutiveFails >= b.config.MaxConsecutiveFails && b.state == StateClosed
	var reason string
	var onTrip func(string)
	if tripped {
		b.state = StateOpen
		b.openedAt = time.Now()
		reason = fmt.Sprintf("%d consecutive upstream failures", b.consecutiveFails)
		onTrip = b.onTrip
	}
	b.mu.Unlock()

	if tripped {
		b.logger.Warn().Str("reason", reason).Msg("circuit opened")
		if onTrip != nil {
			go onTrip(reason)
		}
	}
}
