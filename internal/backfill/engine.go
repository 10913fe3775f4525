// Package backfill fills holes in stored channel history. EnsureRange
// inspects what is already persisted for a window, derives the missing
// sub-intervals and pages backward through each one via the gateway.
package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"channel_pulse/internal/domain"
	"channel_pulse/internal/sentiment"
	"channel_pulse/internal/service"
	"channel_pulse/internal/telegram"
)

// Config holds backfill tunables.
type Config struct {
	// GapThreshold is the spacing below which stored records count as
	// contiguous coverage.
	GapThreshold time.Duration
	PageSize     int
	// MaxMessages bounds the total fetch size of one EnsureRange call.
	MaxMessages int
	// PageDelay paces consecutive history pages.
	PageDelay time.Duration
	// InitialWindow is the window backfilled when a subscription is
	// first activated.
	InitialWindow time.Duration
}

type Engine struct {
	channels  service.ChannelStore
	messages  service.MessageStore
	invoker   service.Invoker
	publisher service.Publisher
	cfg       Config
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

func New(channels service.ChannelStore, messages service.MessageStore, invoker service.Invoker, publisher service.Publisher, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		channels:  channels,
		messages:  messages,
		invoker:   invoker,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With("component", "backfill"),
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

// InitialWindow reports the configured activation backfill window.
func (e *Engine) InitialWindow() time.Duration {
	return e.cfg.InitialWindow
}

// EnsureRange guarantees that, on return, all available messages in
// [start, end) are persisted, up to the configured fetch budget.
// Writes are upserts keyed by (channel_id, message_id), so it is safe
// to run concurrently with the polling scheduler.
func (e *Engine) EnsureRange(ctx context.Context, userID, channelID string, start, end time.Time) error {
	ch, err := e.channels.Get(ctx, channelID)
	if err != nil {
		return fmt.Errorf("load channel: %w", err)
	}
	if ch == nil {
		return fmt.Errorf("channel %s not known", channelID)
	}

	stamps, err := e.messages.Timestamps(ctx, channelID, start, end)
	if err != nil {
		return fmt.Errorf("load coverage: %w", err)
	}

	gaps := ComputeGaps(start, end, stamps, e.cfg.GapThreshold)
	if len(gaps) == 0 {
		return nil
	}

	e.logger.Info("backfilling",
		"channel_id", channelID,
		"gaps", len(gaps),
		"start", start,
		"end", end,
	)

	budget := e.cfg.MaxMessages
	for _, gap := range gaps {
		if budget <= 0 {
			e.logger.Warn("fetch budget exhausted", "channel_id", channelID)
			break
		}
		used, err := e.fillGap(ctx, userID, ch, gap, budget)
		budget -= used
		if err != nil {
			return err
		}
	}

	return e.channels.TouchFetched(ctx, channelID, e.now())
}

// fillGap pages backward from the gap's end until the cursor passes the
// gap's start, results run out or the budget is spent. It returns the
// number of messages fetched.
func (e *Engine) fillGap(ctx context.Context, userID string, ch *domain.Channel, gap Gap, budget int) (int, error) {
	var (
		fetched    int
		offsetID   int64
		offsetDate = gap.End.Unix()
	)

	for fetched < budget {
		limit := e.cfg.PageSize
		if rest := budget - fetched; rest < limit {
			limit = rest
		}

		resp, err := e.invoker.Invoke(ctx, userID, telegram.Request{
			Method: telegram.MethodGetHistory,
			Params: map[string]any{
				"channel_id":  ch.ChannelID,
				"access_hash": ch.AccessHash,
				"limit":       limit,
				"offset_id":   offsetID,
				"offset_date": offsetDate,
			},
		})
		if err != nil {
			return fetched, fmt.Errorf("fetch history for %s: %w", ch.ChannelID, err)
		}
		if len(resp.Messages) == 0 {
			return fetched, nil
		}
		fetched += len(resp.Messages)

		if err := e.store(ctx, ch.ChannelID, gap, resp.Messages); err != nil {
			return fetched, err
		}

		// Pages arrive newest first, so the last entry is the cursor.
		oldest := resp.Messages[len(resp.Messages)-1]
		if !time.Unix(oldest.Date, 0).After(gap.Start) {
			return fetched, nil
		}
		offsetID = oldest.ID
		offsetDate = oldest.Date

		if err := e.sleep(ctx, e.cfg.PageDelay); err != nil {
			return fetched, err
		}
	}
	return fetched, nil
}

func (e *Engine) store(ctx context.Context, channelID string, gap Gap, page []telegram.HistoryMessage) error {
	batch := make([]domain.Message, 0, len(page))
	for _, m := range page {
		postedAt := time.Unix(m.Date, 0).UTC()
		if postedAt.Before(gap.Start) || !postedAt.Before(gap.End) {
			continue
		}
		res := sentiment.Score(m.Text)
		batch = append(batch, domain.Message{
			ChannelID:     channelID,
			MessageID:     m.ID,
			Text:          m.Text,
			AuthorHandle:  m.Author,
			PostedAt:      postedAt,
			Sentiment:     res.Score,
			PositiveTerms: len(res.Positive),
			NegativeTerms: len(res.Negative),
		})
	}
	if len(batch) == 0 {
		return nil
	}

	if err := e.messages.UpsertBatch(ctx, batch); err != nil {
		return fmt.Errorf("store batch for %s: %w", channelID, err)
	}
	if err := e.publisher.PublishIngested(ctx, channelID, batch); err != nil {
		e.logger.Warn("publish failed", "channel_id", channelID, "error", err)
	}
	return nil
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
