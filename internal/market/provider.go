package market

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the market data source could not be reached.
// Callers must treat it as a hard failure for the affected symbol, never as
// silently stale data.
var ErrUnavailable = errors.New("market data unavailable")

// Provider supplies candle series for a symbol. Implementations may return
// fewer bars than requested but must return them in ascending time order.
type Provider interface {
	GetCandles(ctx context.Context, symbol string, timeframe Timeframe, limit int) ([]Candle, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
}
