// Package poller keeps subscribed channels fresh. A recurring tick
// selects channels due for a rescan, groups the work by owning user and
// fetches the most recent page of each channel through the gateway.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"channel_pulse/internal/domain"
	"channel_pulse/internal/sentiment"
	"channel_pulse/internal/service"
	"channel_pulse/internal/telegram"
)

// Config holds scheduler tunables.
type Config struct {
	// Interval is the tick period.
	Interval time.Duration
	// RescanInterval is the minimum age of a channel's last fetch
	// before it is due again.
	RescanInterval time.Duration
	// UserConcurrency caps how many users' batches run at once.
	UserConcurrency int
	// ChannelDelay paces consecutive channels within one user's batch.
	ChannelDelay time.Duration
	PageSize     int
	// TickTimeout bounds one full tick.
	TickTimeout time.Duration
}

type Poller struct {
	channels  service.ChannelStore
	messages  service.MessageStore
	invoker   service.Invoker
	publisher service.Publisher
	txManager service.TransactionManager
	cfg       Config
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

func New(channels service.ChannelStore, messages service.MessageStore, invoker service.Invoker, publisher service.Publisher, txManager service.TransactionManager, cfg Config, logger *slog.Logger) *Poller {
	return &Poller{
		channels:  channels,
		messages:  messages,
		invoker:   invoker,
		publisher: publisher,
		txManager: txManager,
		cfg:       cfg,
		logger:    logger.With("component", "poller"),
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

// Tick runs one polling pass. Users are processed concurrently up to
// the configured cap; within one user's batch channels run strictly
// sequentially because the user's calls share one pooled client.
// Failures are counted and logged, never propagated: one bad channel
// must not starve the rest of the batch.
func (p *Poller) Tick(ctx context.Context) (domain.PollStats, error) {
	stats := domain.PollStats{StartedAt: p.now()}

	due, err := p.channels.Due(ctx, p.now().Add(-p.cfg.RescanInterval))
	if err != nil {
		return stats, fmt.Errorf("select due channels: %w", err)
	}

	byUser := map[string][]domain.Channel{}
	for _, ch := range due {
		subs := ch.ActiveSubscribers()
		if len(subs) == 0 {
			stats.Skipped++
			continue
		}
		// One fetch per channel is enough; the first active subscriber
		// carries it.
		userID := subs[0].UserID
		byUser[userID] = append(byUser[userID], ch)
	}

	stats.Users = len(byUser)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, p.cfg.UserConcurrency)
	)

	for userID, batch := range byUser {
		wg.Add(1)
		sem <- struct{}{}
		go func(userID string, batch []domain.Channel) {
			defer wg.Done()
			defer func() { <-sem }()

			for i, ch := range batch {
				if i > 0 {
					if err := p.sleep(ctx, p.cfg.ChannelDelay); err != nil {
						return
					}
				}

				count, err := p.pollChannel(ctx, userID, &ch)

				mu.Lock()
				stats.Channels++
				stats.Messages += count
				if err != nil {
					stats.Errors++
				}
				mu.Unlock()

				if err != nil {
					p.logger.Warn("channel poll failed",
						"user_id", userID,
						"channel_id", ch.ChannelID,
						"error", err,
					)
				}
			}
		}(userID, batch)
	}
	wg.Wait()

	stats.Duration = p.now().Sub(stats.StartedAt)
	p.logger.Info("poll tick finished",
		"users", stats.Users,
		"channels", stats.Channels,
		"messages", stats.Messages,
		"errors", stats.Errors,
		"skipped", stats.Skipped,
		"duration", stats.Duration,
	)
	return stats, nil
}

// pollChannel fetches the most recent page for one channel, scores and
// upserts it and advances the fetch markers. It returns the number of
// stored messages.
func (p *Poller) pollChannel(ctx context.Context, userID string, ch *domain.Channel) (int, error) {
	resp, err := p.invoker.Invoke(ctx, userID, telegram.Request{
		Method: telegram.MethodGetHistory,
		Params: map[string]any{
			"channel_id":  ch.ChannelID,
			"access_hash": ch.AccessHash,
			"limit":       p.cfg.PageSize,
			"offset_id":   int64(0),
			"offset_date": int64(0),
		},
	})
	if err != nil {
		return 0, err
	}

	batch := make([]domain.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		res := sentiment.Score(m.Text)
		batch = append(batch, domain.Message{
			ChannelID:     ch.ChannelID,
			MessageID:     m.ID,
			Text:          m.Text,
			AuthorHandle:  m.Author,
			PostedAt:      time.Unix(m.Date, 0).UTC(),
			Sentiment:     res.Score,
			PositiveTerms: len(res.Positive),
			NegativeTerms: len(res.Negative),
		})
	}

	// Batch and markers commit together so a crash cannot mark a
	// channel fresh without its messages.
	now := p.now()
	err = p.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if len(batch) > 0 {
			if err := p.messages.UpsertBatch(txCtx, batch); err != nil {
				return fmt.Errorf("store batch: %w", err)
			}
		}
		if err := p.channels.TouchFetched(txCtx, ch.ChannelID, now); err != nil {
			return fmt.Errorf("update fetch marker: %w", err)
		}
		if err := p.channels.TouchScanned(txCtx, ch.ChannelID, userID, now); err != nil {
			return fmt.Errorf("update scan marker: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(batch) > 0 {
		if err := p.publisher.PublishIngested(ctx, ch.ChannelID, batch); err != nil {
			p.logger.Warn("publish failed", "channel_id", ch.ChannelID, "error", err)
		}
	}
	return len(batch), nil
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
