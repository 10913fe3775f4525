package service

import (
	"context"
	"fmt"
	"log/slog"

	"channel_pulse/internal/domain"
	"channel_pulse/internal/telegram"
)

// SyncStats summarizes one discovery run.
type SyncStats struct {
	Discovered int `json:"discovered"`
	Upserted   int `json:"upserted"`
	Skipped    int `json:"skipped"`
}

// ChannelSync discovers the channels visible to a user's account and
// mirrors them into storage. Every discovered channel gets an inactive
// subscriber row; activation is a separate, capacity-checked step.
type ChannelSync struct {
	invoker  Invoker
	channels ChannelStore
	// dialogLimit caps how many dialogs one sync inspects.
	dialogLimit int
	logger      *slog.Logger
}

func NewChannelSync(invoker Invoker, channels ChannelStore, dialogLimit int, logger *slog.Logger) *ChannelSync {
	return &ChannelSync{
		invoker:     invoker,
		channels:    channels,
		dialogLimit: dialogLimit,
		logger:      logger.With("component", "channel_sync"),
	}
}

func (s *ChannelSync) Sync(ctx context.Context, userID string) (SyncStats, error) {
	var stats SyncStats

	resp, err := s.invoker.Invoke(ctx, userID, telegram.Request{
		Method: telegram.MethodGetDialogs,
		Params: map[string]any{"limit": s.dialogLimit},
	})
	if err != nil {
		return stats, fmt.Errorf("list dialogs: %w", err)
	}

	stats.Discovered = len(resp.Chats)
	for _, chat := range resp.Chats {
		if chat.ChannelID == "" {
			stats.Skipped++
			continue
		}

		ch := &domain.Channel{
			ChannelID:    chat.ChannelID,
			AccessHash:   chat.AccessHash,
			Title:        chat.Title,
			Username:     chat.Username,
			MemberCount:  chat.MemberCount,
			MessageCount: chat.MessageCount,
			About:        chat.About,
		}
		if err := s.channels.Upsert(ctx, ch); err != nil {
			s.logger.Warn("channel upsert failed", "channel_id", chat.ChannelID, "error", err)
			stats.Skipped++
			continue
		}
		if err := s.channels.EnsureSubscriber(ctx, chat.ChannelID, userID); err != nil {
			s.logger.Warn("subscriber upsert failed", "channel_id", chat.ChannelID, "error", err)
			stats.Skipped++
			continue
		}
		stats.Upserted++
	}

	s.logger.Info("channel sync finished",
		"user_id", userID,
		"discovered", stats.Discovered,
		"upserted", stats.Upserted,
		"skipped", stats.Skipped,
	)
	return stats, nil
}
