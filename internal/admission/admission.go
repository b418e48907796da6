// Package admission gates every chat request before any model work happens:
// shared bot key, origin allowlist, per-IP rate limiting and per-bot daily
// budget. Bot existence is checked upstream by the registry lookup.
package admission

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/EVAVO-STUDIO/client-chat-platform/internal/bot"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/core/errx"
	"github.com/EVAVO-STUDIO/client-chat-platform/internal/kv"
	logx "github.com/EVAVO-STUDIO/client-chat-platform/pkg/logx"
)

// Request carries the request attributes admission decides on.
type Request struct {
	BotID    string
	ClientIP string
	// Origin is the raw Origin header; empty means the caller is not a
	// browser and origin checking is skipped entirely.
	Origin string
	// Key is the bot key supplied via header or body, if any.
	Key string
}

// Gate evaluates admission policy against counters in the key-value store.
type Gate struct {
	store kv.Store
	now   func() time.Time
}

func NewGate(store kv.Store) *Gate {
	return &Gate{store: store, now: time.Now}
}

// NewGateWithClock injects a clock so tests can roll windows and days
// forward without sleeping.
func NewGateWithClock(store kv.Store, now func() time.Time) *Gate {
	return &Gate{store: store, now: now}
}

// Admit runs the admission sequence; each step short-circuits on failure.
// Budget counters are only read here — charging happens after a successful
// model call via ChargeBudget.
func (g *Gate) Admit(ctx context.Context, cfg *bot.Config, req Request) error {
	if err := g.checkKey(cfg, req); err != nil {
		return err
	}
	if err := g.checkOrigin(cfg, req); err != nil {
		return err
	}
	if err := g.checkRate(ctx, cfg, req); err != nil {
		return err
	}
	return g.checkBudget(ctx, cfg)
}

func (g *Gate) checkKey(cfg *bot.Config, req Request) error {
	if cfg.BotKey == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(cfg.BotKey), []byte(req.Key)) != 1 {
		return errx.New(nil, http.StatusUnauthorized, errx.CodeUnauthorized, "missing or invalid bot key")
	}
	return nil
}

// AllowedOrigin reports whether the request origin passes the bot's origin
// policy, and returns the origin value safe to echo in CORS headers. An
// absent Origin skips the check so server-to-server callers are not blocked.
func AllowedOrigin(cfg *bot.Config, origin string) (string, bool) {
	if origin == "" {
		return "", true
	}
	if cfg.OriginPolicy == bot.OriginPermissive {
		return origin, true
	}
	needle := strings.ToLower(strings.TrimSuffix(origin, "/"))
	for _, allowed := range cfg.AllowedOrigins {
		if needle == allowed {
			return origin, true
		}
	}
	return "", false
}

func (g *Gate) checkOrigin(cfg *bot.Config, req Request) error {
	if _, ok := AllowedOrigin(cfg, req.Origin); !ok {
		return errx.New(nil, http.StatusForbidden, errx.CodeOriginDenied, "origin not allowed for this bot")
	}
	return nil
}

// checkRate is a fixed-window counter per (bot, client IP). The read-compare
// -write below has no cross-request atomicity: two concurrent requests can
// both read the same stale count and both pass. That brief over-admission is
// accepted — the store offers no atomic increment and the goal is abuse
// deterrence, not precise metering.
func (g *Gate) checkRate(ctx context.Context, cfg *bot.Config, req Request) error {
	window := cfg.RateLimit.WindowSeconds
	bucket := g.now().Unix() / int64(window)
	key := kv.RateKey(cfg.ID, req.ClientIP, bucket)

	count, err := g.readCounter(ctx, key)
	if err != nil {
		// A broken counter must not take the chat path down with it.
		logx.Warn().Err(err).Str("bot_id", cfg.ID).Msg("rate counter read failed, admitting")
		return nil
	}
	if count >= cfg.RateLimit.Requests {
		return errx.New(nil, http.StatusTooManyRequests, errx.CodeRateLimited,
			"too many requests, please wait a moment").Retryable(window)
	}
	if err := g.writeCounter(ctx, key, count+1, time.Duration(window)*time.Second); err != nil {
		logx.Warn().Err(err).Str("bot_id", cfg.ID).Msg("rate counter write failed")
	}
	return nil
}

func (g *Gate) checkBudget(ctx context.Context, cfg *bot.Config) error {
	if cfg.Budget.MaxRequestsPerDay == 0 && cfg.Budget.MaxTokensPerDay == 0 {
		return nil
	}
	now := g.now().UTC()
	day := now.Format("2006-01-02")
	retry := secondsUntilNextUTCDay(now)

	if cfg.Budget.MaxRequestsPerDay > 0 {
		used, err := g.readCounter(ctx, kv.BudgetKey(cfg.ID, day, "requests"))
		if err == nil && used >= cfg.Budget.MaxRequestsPerDay {
			return errx.New(nil, http.StatusTooManyRequests, errx.CodeBudgetExceeded,
				"daily request budget exceeded for this bot").Retryable(retry)
		}
	}
	if cfg.Budget.MaxTokensPerDay > 0 {
		used, err := g.readCounter(ctx, kv.BudgetKey(cfg.ID, day, "tokens"))
		if err == nil && used >= cfg.Budget.MaxTokensPerDay {
			return errx.New(nil, http.StatusTooManyRequests, errx.CodeBudgetExceeded,
				"daily token budget exceeded for this bot").Retryable(retry)
		}
	}
	return nil
}

// ChargeBudget records one successful model call. Called only after the
// inference service replied, with actual usage when reported, otherwise a
// character-count estimate. Increments are best-effort and approximate for
// the same reason the rate counter is.
func (g *Gate) ChargeBudget(ctx context.Context, cfg *bot.Config, usedTokens int) {
	if cfg.Budget.MaxRequestsPerDay == 0 && cfg.Budget.MaxTokensPerDay == 0 {
		return
	}
	day := g.now().UTC().Format("2006-01-02")
	const ttl = 48 * time.Hour

	g.bump(ctx, kv.BudgetKey(cfg.ID, day, "requests"), 1, ttl)
	if usedTokens > 0 {
		g.bump(ctx, kv.BudgetKey(cfg.ID, day, "tokens"), usedTokens, ttl)
	}
}

func (g *Gate) bump(ctx context.Context, key string, delta int, ttl time.Duration) {
	count, err := g.readCounter(ctx, key)
	if err != nil {
		logx.Warn().Err(err).Str("key", key).Msg("budget counter read failed")
		return
	}
	if err := g.writeCounter(ctx, key, count+delta, ttl); err != nil {
		logx.Warn().Err(err).Str("key", key).Msg("budget counter write failed")
	}
}

// Counters are stored as decimal strings; a missing key reads as zero.
func (g *Gate) readCounter(ctx context.Context, key string) (int, error) {
	raw, err := g.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d", &n); err != nil {
		return 0, nil // treat garbage as zero rather than failing admission
	}
	return n, nil
}

func (g *Gate) writeCounter(ctx context.Context, key string, val int, ttl time.Duration) error {
	return g.store.Put(ctx, key, fmt.Sprintf("%d", val), ttl)
}

func secondsUntilNextUTCDay(now time.Time) int {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return int(next.Sub(now).Seconds()) + 1
}
