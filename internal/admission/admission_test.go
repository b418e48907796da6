package admission

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EVAVO-STUDIO/client-chat-platform/internal/bot"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/core/errx"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/kv"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGate(t *testing.T) (*Gate, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)}
	store := kv.NewMemoryStoreWithClock(clock.Now)
	return NewGateWithClock(store, clock.Now), clock
}

func baseConfig() *bot.Config {
	cfg, err := bot.Normalize(map[string]any{"id": "acme"}, nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

func statusOf(t *testing.T, err error) (int, string, int) {
	t.Helper()
	appErr := errx.From(err)
	return appErr.Status, appErr.Code, appErr.RetryAfter
}

func TestAdmitKeyCheck(t *testing.T) {
	gate, _ := newTestGate(t)
	cfg := baseConfig()
	cfg.BotKey = "s3cret"

	err := gate.Admit(context.Background(), cfg, Request{BotID: "acme", ClientIP: "1.2.3.4"})
	require.Error(t, err)
	status, code, _ := statusOf(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, errx.CodeUnauthorized, code)

	err = gate.Admit(context.Background(), cfg, Request{BotID: "acme", ClientIP: "1.2.3.4", Key: "s3cret"})
	assert.NoError(t, err)
}

func TestAllowedOrigin(t *testing.T) {
	cfg := baseConfig()
	cfg.OriginPolicy = bot.OriginStrict
	cfg.AllowedOrigins = []string{"https://example.com"}

	// Non-browser callers send no Origin and are never blocked on it.
	_, ok := AllowedOrigin(cfg, "")
	assert.True(t, ok)

	echo, ok := AllowedOrigin(cfg, "https://Example.com")
	assert.True(t, ok)
	assert.Equal(t, "https://Example.com", echo)

	_, ok = AllowedOrigin(cfg, "https://evil.example.net")
	assert.False(t, ok)

	cfg.OriginPolicy = bot.OriginPermissive
	_, ok = AllowedOrigin(cfg, "https://anything.example.net")
	assert.True(t, ok)
}

func TestAdmitOriginDenied(t *testing.T) {
	gate, _ := newTestGate(t)
	cfg := baseConfig()
	cfg.OriginPolicy = bot.OriginStrict
	cfg.AllowedOrigins = []string{"https://example.com"}

	err := gate.Admit(context.Background(), cfg, Request{BotID: "acme", ClientIP: "1.2.3.4", Origin: "https://evil.example.net"})
	require.Error(t, err)
	status, code, _ := statusOf(t, err)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, errx.CodeOriginDenied, code)
}

func TestAdmitRateLimitWindow(t *testing.T) {
	gate, clock := newTestGate(t)
	cfg := baseConfig()
	cfg.RateLimit = bot.RateLimit{Requests: 3, WindowSeconds: 60}
	req := Request{BotID: "acme", ClientIP: "1.2.3.4"}

	for i := 0; i < 3; i++ {
		require.NoError(t, gate.Admit(context.Background(), cfg, req), "request %d should pass", i+1)
	}

	err := gate.Admit(context.Background(), cfg, req)
	require.Error(t, err)
	status, code, retry := statusOf(t, err)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, errx.CodeRateLimited, code)
	assert.Equal(t, 60, retry)

	// A different client is counted separately.
	other := Request{BotID: "acme", ClientIP: "5.6.7.8"}
	assert.NoError(t, gate.Admit(context.Background(), cfg, other))

	// After the window rolls over the original client is admitted again.
	clock.Advance(61 * time.Second)
	assert.NoError(t, gate.Admit(context.Background(), cfg, req))
}

func TestAdmitDailyRequestBudget(t *testing.T) {
	gate, clock := newTestGate(t)
	cfg := baseConfig()
	cfg.Budget = bot.Budget{MaxRequestsPerDay: 1}
	req := Request{BotID: "acme", ClientIP: "1.2.3.4"}
	ctx := context.Background()

	require.NoError(t, gate.Admit(ctx, cfg, req))
	gate.ChargeBudget(ctx, cfg, 100)

	err := gate.Admit(ctx, cfg, req)
	require.Error(t, err)
	status, code, retry := statusOf(t, err)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, errx.CodeBudgetExceeded, code)
	// Clock is 14:30 UTC, so the budget resets in 9.5 hours.
	assert.InDelta(t, 9*3600+30*60, retry, 2)

	// Next UTC day: fresh counters.
	clock.Advance(10 * time.Hour)
	assert.NoError(t, gate.Admit(ctx, cfg, req))
}

func TestAdmitTokenBudget(t *testing.T) {
	gate, _ := newTestGate(t)
	cfg := baseConfig()
	cfg.Budget = bot.Budget{MaxTokensPerDay: 500}
	req := Request{BotID: "acme", ClientIP: "1.2.3.4"}
	ctx := context.Background()

	require.NoError(t, gate.Admit(ctx, cfg, req))
	gate.ChargeBudget(ctx, cfg, 499)
	require.NoError(t, gate.Admit(ctx, cfg, req), "below the cap the request still passes")

	gate.ChargeBudget(ctx, cfg, 10)
	err := gate.Admit(ctx, cfg, req)
	require.Error(t, err)
	_, code, _ := statusOf(t, err)
	assert.Equal(t, errx.CodeBudgetExceeded, code)
}

func TestChargeBudgetNoopWhenDisabled(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)}
	store := kv.NewMemoryStoreWithClock(clock.Now)
	gate := NewGateWithClock(store, clock.Now)
	cfg := baseConfig() // both budget dimensions default to 0 (off)

	gate.ChargeBudget(context.Background(), cfg, 1000)

	day := clock.Now().UTC().Format("2006-01-02")
	_, err := store.Get(context.Background(), kv.BudgetKey(cfg.ID, day, "tokens"))
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestCounterGarbageReadsAsZero(t *testing.T) {
	gate, _ := newTestGate(t)
	cfg := baseConfig()
	cfg.RateLimit = bot.RateLimit{Requests: 1, WindowSeconds: 60}
	req := Request{BotID: "acme", ClientIP: "1.2.3.4"}
	ctx := context.Background()

	bucket := gate.now().Unix() / 60
	require.NoError(t, gate.store.Put(ctx, kv.RateKey(cfg.ID, req.ClientIP, bucket), "not-a-number", time.Minute))

	// Corrupt counter state must not lock clients out.
	assert.NoError(t, gate.Admit(ctx, cfg, req))
}
