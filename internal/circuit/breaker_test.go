package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pattern-signal-engine/internal/market"
)

type fakeProvider struct {
	err   error
	calls int
}

func (f *fakeProvider) GetCandles(ctx context.Context, symbol string, timeframe market.Timeframe, limit int) ([]market.Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []market.Candle{{Close: 100}}, nil
}

func (f *fakeProvider) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return 100, nil
}

func newTestBreaker(inner market.Provider, fails int, cooldown time.Duration) *Breaker {
	return NewBreaker(inner, Config{
		Enabled:             true,
		MaxConsecutiveFails: fails,
		Cooldown:            cooldown,
	}, zerolog.Nop())
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	inner := &fakeProvider{}
	b := newTestBreaker(inner, 3, time.Minute)

	for i := 0; i < 10; i++ {
		if _, err := b.GetCurrentPrice(context.Background(), "AAPL"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if b.State() != StateClosed {
		t.Errorf("state = %s, want closed", b.State())
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeProvider{err: errors.New("connection refused")}
	b := newTestBreaker(inner, 3, time.Minute)

	for i := 0; i < 3; i++ {
		b.GetCurrentPrice(context.Background(), "AAPL")
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open after 3 failures", b.State())
	}

	calls := inner.calls
	_, err := b.GetCandles(context.Background(), "AAPL", market.Timeframe1d, 100)
	if !errors.Is(err, market.ErrUnavailable) {
		t.Errorf("open breaker error = %v, want ErrUnavailable", err)
	}
	if inner.calls != calls {
		t.Error("open breaker must not reach the upstream")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	inner := &fakeProvider{err: errors.New("timeout")}
	b := newTestBreaker(inner, 3, time.Minute)

	b.GetCurrentPrice(context.Background(), "AAPL")
	b.GetCurrentPrice(context.Background(), "AAPL")
	inner.err = nil
	b.GetCurrentPrice(context.Background(), "AAPL")
	inner.err = errors.New("timeout")
	b.GetCurrentPrice(context.Background(), "AAPL")
	b.GetCurrentPrice(context.Background(), "AAPL")

	if b.State() != StateClosed {
		t.Errorf("state = %s, want closed while under the threshold", b.State())
	}
}

func TestBreakerProbeClosesAfterCooldown(t *testing.T) {
	inner := &fakeProvider{err: errors.New("timeout")}
	b := newTestBreaker(inner, 1, 10*time.Millisecond)

	b.GetCurrentPrice(context.Background(), "AAPL")
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}

	time.Sleep(20 * time.Millisecond)
	inner.err = nil
	if _, err := b.GetCurrentPrice(context.Background(), "AAPL"); err != nil {
		t.Fatalf("probe after cooldown: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %s, want closed after successful probe", b.State())
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	inner := &fakeProvider{err: errors.New("timeout")}
	b := newTestBreaker(inner, 1, 10*time.Millisecond)

	b.GetCurrentPrice(context.Background(), "AAPL")
	time.Sleep(20 * time.Millisecond)
	b.GetCurrentPrice(context.Background(), "AAPL")

	if b.State() != StateOpen {
		t.Errorf("state = %s, want open after failed probe", b.State())
	}
}

func TestBreakerForceReset(t *testing.T) {
	inner := &fakeProvider{err: errors.New("timeout")}
	b := newTestBreaker(inner, 1, time.Hour)

	b.GetCurrentPrice(context.Background(), "AAPL")
	b.ForceReset()
	inner.err = nil
	if _, err := b.GetCurrentPrice(context.Background(), "AAPL"); err != nil {
		t.Errorf("call after reset: %v", err)
	}
}

func TestBreakerDisabledPassesThrough(t *testing.T) {
	inner := &fakeProvider{err: errors.New("timeout")}
	b := NewBreaker(inner, Config{Enabled: false, MaxConsecutiveFails: 1, Cooldown: time.Minute}, zerolog.Nop())

	for i := 0; i < 5; i++ {
		b.GetCurrentPrice(context.Background(), "AAPL")
	}
	if inner.calls != 5 {
		t.Errorf("upstream calls = %d, want 5 with breaker disabled", inner.calls)
	}
}
