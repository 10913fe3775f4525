// Package pool manages one live protocol client per user id. The pool
// is an explicitly constructed registry; callers inject it rather than
// reaching for process globals.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"channel_pulse/internal/domain"
	"channel_pulse/internal/service"
	"channel_pulse/internal/telegram"
)

// ErrConnectionFailed is returned when a client cannot be built after a
// probe failure or for a new user.
var ErrConnectionFailed = errors.New("failed to establish connection")

// Config holds pool tunables.
type Config struct {
	// IdleTimeout is how long a client may sit unused before the sweep
	// disconnects and evicts it.
	IdleTimeout time.Duration
	// SweepInterval is how often the background sweep runs.
	SweepInterval time.Duration
}

type entry struct {
	mu       sync.Mutex
	client   telegram.Client
	lastUsed time.Time
}

// Pool keeps at most one live client per user id.
type Pool struct {
	dialer   telegram.Dialer
	sessions service.SessionStore
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

func New(dialer telegram.Dialer, sessions service.SessionStore, cfg Config, logger *slog.Logger) *Pool {
	return &Pool{
		dialer:   dialer,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.With("component", "pool"),
		now:      time.Now,
		entries:  map[string]*entry{},
	}
}

// Acquire returns the live client for the user, probing a pooled one
// first and rebuilding from the persisted session when the probe fails.
// Concurrent callers for the same user id serialize on the entry lock,
// so at most one client is ever built and both see the same instance.
func (p *Pool) Acquire(ctx context.Context, userID string) (telegram.Client, error) {
	e := p.lockEntry(userID)
	defer e.mu.Unlock()

	if e.client != nil {
		if _, err := e.client.Me(ctx); err == nil {
			e.lastUsed = p.now()
			return e.client, nil
		}
		p.logger.Info("pooled client failed probe, rebuilding", "user_id", userID)
		_ = e.client.Disconnect(ctx)
		e.client = nil
	}

	sess, err := p.sessions.Get(ctx, userID)
	if err != nil {
		p.dropEmpty(userID, e)
		return nil, fmt.Errorf("load session: %w", err)
	}

	client, err := p.dialer.Dial(ctx, userID, sess)
	if err != nil {
		p.dropEmpty(userID, e)
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	authState, dcID := client.ExportSession()
	if err := p.sessions.Save(ctx, &domain.Session{
		UserID:     userID,
		AuthState:  authState,
		DCID:       dcID,
		LastUsedAt: p.now(),
	}); err != nil {
		p.logger.Warn("failed to persist refreshed session", "user_id", userID, "error", err)
	}

	e.client = client
	e.lastUsed = p.now()
	return client, nil
}

// Evict drops the pooled client for the user, disconnecting it if live.
// The entry is unmapped under its own lock so a racing Acquire never
// rebuilds into an orphaned entry.
func (p *Pool) Evict(ctx context.Context, userID string) {
	p.mu.Lock()
	e, ok := p.entries[userID]
	p.mu.Unlock()

	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Disconnect before unmapping: once the entry is gone a concurrent
	// Acquire may dial, and its client must never overlap this one.
	p.disconnectLocked(ctx, userID, e)

	p.mu.Lock()
	if p.entries[userID] == e {
		delete(p.entries, userID)
	}
	p.mu.Unlock()
}

// Len reports the number of pooled entries.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Sweep runs the idle eviction loop until the context is cancelled.
func (p *Pool) Sweep(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.evictIdle(ctx)
		}
	}
}

func (p *Pool) evictIdle(ctx context.Context) {
	cutoff := p.now().Add(-p.cfg.IdleTimeout)

	p.mu.Lock()
	candidates := make(map[string]*entry, len(p.entries))
	for userID, e := range p.entries {
		candidates[userID] = e
	}
	p.mu.Unlock()

	for userID, e := range candidates {
		e.mu.Lock()
		// An acquire may have refreshed the entry since it was listed.
		if !e.lastUsed.Before(cutoff) {
			e.mu.Unlock()
			continue
		}
		if e.client != nil {
			p.logger.Info("evicting idle client", "user_id", userID)
		}
		p.disconnectLocked(ctx, userID, e)
		p.mu.Lock()
		if p.entries[userID] == e {
			delete(p.entries, userID)
		}
		p.mu.Unlock()
		e.mu.Unlock()
	}
}

// dropEmpty unmaps an entry left without a client after a failed
// rebuild. Caller holds e.mu.
func (p *Pool) dropEmpty(userID string, e *entry) {
	p.mu.Lock()
	if p.entries[userID] == e {
		delete(p.entries, userID)
	}
	p.mu.Unlock()
}

func (p *Pool) disconnectLocked(ctx context.Context, userID string, e *entry) {
	if e.client == nil {
		return
	}
	if err := e.client.Disconnect(ctx); err != nil {
		p.logger.Warn("disconnect failed", "user_id", userID, "error", err)
	}
	e.client = nil
}

// lockEntry returns the user's entry with its lock held. An eviction
// may unmap the entry between lookup and lock; locking an unmapped
// entry would let two live clients exist for one user, so retry until
// the locked entry is the mapped one.
func (p *Pool) lockEntry(userID string) *entry {
	for {
		e := p.entry(userID)
		e.mu.Lock()
		p.mu.Lock()
		mapped := p.entries[userID] == e
		p.mu.Unlock()
		if mapped {
			return e
		}
		e.mu.Unlock()
	}
}

func (p *Pool) entry(userID string) *entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[userID]
	if !ok {
		e = &entry{}
		p.entries[userID] = e
	}
	return e
}
