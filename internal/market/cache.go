package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CachedProvider wraps a Provider with a redis candle cache. Cache failures
// degrade to the underlying provider, never to an error.
type CachedProvider struct {
	provider Provider
	rdb      *redis.Client
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewCachedProvider creates a caching layer over a market data provider.
func NewCachedProvider(provider Provider, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedProvider{
		provider: provider,
		rdb:      rdb,
		ttl:      ttl,
		logger:   logger.With().Str("component", "candle_cache").Logger(),
	}
}

func candleKey(symbol string, timeframe Timeframe, limit int) string {
	return fmt.Sprintf("candles:%s:%s:%d", symbol, timeframe, limit)
}

// GetCandles returns cached candles when fresh, otherwise fetches and stores.
func (p *CachedProvider) GetCandles(ctx context.Context, symbol string, timeframe Timeframe, limit int) ([]Candle, error) {
	key := candleKey(symbol, timeframe, limit)

	if p.rdb != nil {
		data, err := p.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var candles []Candle
			if jsonErr := json.Unmarshal(data, &candles); jsonErr == nil {
				return candles, nil
			}
		} else if err != redis.Nil {
			p.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
		}
	}

	candles, err := p.provider.GetCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}

	if p.rdb != nil && len(candles) > 0 {
		if data, jsonErr := json.Marshal(candles); jsonErr == nil {
			if setErr := p.rdb.Set(ctx, key, data, p.ttl).Err(); setErr != nil {
				p.logger.Debug().Err(setErr).Str("key", key).Msg("cache write failed")
			}
		}
	}

	return candles, nil
}

// GetCurrentPrice passes through to the underlying provider; spot prices are
// not worth caching at scan cadence.
func (p *CachedProvider) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return p.provider.GetCurrentPrice(ctx, symbol)
}

var _ Provider = (*CachedProvider)(nil)
