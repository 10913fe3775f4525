// Package gateway is the single choke point for protocol calls. Every
// ingestion path goes through Invoke, which layers caching, usage
// accounting, throttle handling and bounded retries over the pool.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"channel_pulse/internal/service"
	"channel_pulse/internal/telegram"
)

// ErrReauthRequired is returned after an authorization failure has
// purged the user's session. The user must log in again.
var ErrReauthRequired = errors.New("authorization expired, login required")

// ClientPool is the slice of the pool the gateway needs.
type ClientPool interface {
	Acquire(ctx context.Context, userID string) (telegram.Client, error)
	Evict(ctx context.Context, userID string)
}

// Config holds gateway tunables.
type Config struct {
	CacheTTL time.Duration
	// MaxAttempts bounds transient retries. Throttle waits do not
	// consume attempts.
	MaxAttempts int
	RetryDelay  time.Duration
}

type Gateway struct {
	pool     ClientPool
	sessions service.SessionStore
	usage    service.UsageStore
	cache    *Cache
	cfg      Config
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

func New(pool ClientPool, sessions service.SessionStore, usage service.UsageStore, cfg Config, logger *slog.Logger) *Gateway {
	return &Gateway{
		pool:     pool,
		sessions: sessions,
		usage:    usage,
		cache:    NewCache(cfg.CacheTTL),
		cfg:      cfg,
		logger:   logger.With("component", "gateway"),
		sleep:    sleepCtx,
		users:    map[string]*sync.Mutex{},
	}
}

// Cache exposes the response cache for the stats and flush endpoints.
func (g *Gateway) Cache() *Cache {
	return g.cache
}

// Invoke issues a protocol call for the user, serving repeats from the
// cache. Calls for the same user are serialized; a throttle directive
// is honored by sleeping the server-given duration and retrying without
// spending an attempt, transient failures retry up to MaxAttempts, and
// authorization failures purge the session before failing.
func (g *Gateway) Invoke(ctx context.Context, userID string, req telegram.Request) (*telegram.Response, error) {
	cacheable := req.Method != telegram.MethodSendCode && req.Method != telegram.MethodSignIn

	key := Key(userID, req)
	if cacheable {
		if resp, ok := g.cache.Get(key); ok {
			return resp, nil
		}
	}

	lock := g.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	// A concurrent holder may have populated the cache while we waited.
	if cacheable {
		if resp, ok := g.cache.Get(key); ok {
			return resp, nil
		}
	}

	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; {
		client, err := g.pool.Acquire(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("acquire client: %w", err)
		}

		if err := g.usage.Increment(ctx, userID, time.Now()); err != nil {
			g.logger.Warn("usage increment failed", "user_id", userID, "error", err)
		}

		resp, err := client.Invoke(ctx, req)
		if err == nil {
			if cacheable {
				g.cache.Set(key, resp)
			}
			return resp, nil
		}

		var flood *telegram.FloodWaitError
		switch {
		case errors.As(err, &flood):
			g.logger.Info("throttled, waiting",
				"user_id", userID,
				"method", req.Method,
				"wait_seconds", flood.Seconds,
			)
			if err := g.sleep(ctx, time.Duration(flood.Seconds)*time.Second); err != nil {
				return nil, err
			}
			continue

		case errors.Is(err, telegram.ErrAuthExpired):
			g.logger.Warn("authorization expired, purging session", "user_id", userID)
			g.pool.Evict(ctx, userID)
			if err := g.sessions.Delete(ctx, userID); err != nil {
				g.logger.Error("session purge failed", "user_id", userID, "error", err)
			}
			return nil, ErrReauthRequired

		case errors.Is(err, telegram.ErrTargetUnavailable):
			return nil, err

		default:
			lastErr = err
			g.logger.Warn("call failed",
				"user_id", userID,
				"method", req.Method,
				"attempt", attempt,
				"error", err,
			)
			attempt++
			if attempt <= g.cfg.MaxAttempts {
				if err := g.sleep(ctx, g.cfg.RetryDelay); err != nil {
					return nil, err
				}
			}
		}
	}

	return nil, fmt.Errorf("call failed after %d attempts: %w", g.cfg.MaxAttempts, lastErr)
}

func (g *Gateway) userLock(userID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.users[userID]
	if !ok {
		lock = &sync.Mutex{}
		g.users[userID] = lock
	}
	return lock
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
