package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// MaxActiveChannels is the per-user cap on simultaneously active
// channel subscriptions.
const MaxActiveChannels = 4

// ErrSubscriptionLimit is returned when activation would exceed the cap.
var ErrSubscriptionLimit = fmt.Errorf("at most %d channels can be active at once", MaxActiveChannels)

// Subscriptions drives the activation state machine. Activation is
// capacity-checked and triggers a one-shot backfill of the most recent
// window; deactivation just clears the flag and is always allowed.
type Subscriptions struct {
	channels ChannelStore
	backfill Backfiller
	// window is the historical window backfilled on activation.
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewSubscriptions(channels ChannelStore, backfill Backfiller, window time.Duration, logger *slog.Logger) *Subscriptions {
	return &Subscriptions{
		channels: channels,
		backfill: backfill,
		window:   window,
		logger:   logger.With("component", "subscriptions"),
		now:      time.Now,
	}
}

func (s *Subscriptions) Activate(ctx context.Context, userID, channelID string) error {
	ch, err := s.channels.Get(ctx, channelID)
	if err != nil {
		return fmt.Errorf("load channel: %w", err)
	}
	if ch == nil {
		return fmt.Errorf("channel %s not known", channelID)
	}

	active, err := s.channels.CountActive(ctx, userID)
	if err != nil {
		return fmt.Errorf("count active subscriptions: %w", err)
	}
	if active >= MaxActiveChannels {
		return ErrSubscriptionLimit
	}

	if err := s.channels.SetActive(ctx, channelID, userID, true); err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}

	s.logger.Info("subscription activated", "user_id", userID, "channel_id", channelID)

	// The initial backfill is best effort: the subscription stays
	// active and the scheduler will catch up on the next tick.
	end := s.now()
	if err := s.backfill.EnsureRange(ctx, userID, channelID, end.Add(-s.window), end); err != nil {
		s.logger.Warn("initial backfill failed",
			"user_id", userID,
			"channel_id", channelID,
			"error", err,
		)
	}
	return nil
}

func (s *Subscriptions) Deactivate(ctx context.Context, userID, channelID string) error {
	if err := s.channels.SetActive(ctx, channelID, userID, false); err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	s.logger.Info("subscription deactivated", "user_id", userID, "channel_id", channelID)
	return nil
}
