// Package analytics answers aggregate queries over stored messages.
// Scoring happens once at ingestion; everything here is read-only
// arithmetic over what the stores already hold.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"channel_pulse/internal/domain"
	"channel_pulse/internal/service"
)

// healthFloor is the score reported for a channel with no stored
// messages in the window. Defined so the metric never divides by zero.
const healthFloor = 25

// targetDailyVolume is the message count per day at which the volume
// signal saturates.
const targetDailyVolume = 10

type Service struct {
	messages service.MessageStore
	logger   *slog.Logger
}

func New(messages service.MessageStore, logger *slog.Logger) *Service {
	return &Service{
		messages: messages,
		logger:   logger.With("component", "analytics"),
	}
}

// SentimentTrend returns day-bucketed average sentiment and message
// volume for [start, end).
func (s *Service) SentimentTrend(ctx context.Context, channelID string, start, end time.Time) ([]domain.TrendPoint, error) {
	points, err := s.messages.DayBuckets(ctx, channelID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load day buckets: %w", err)
	}
	return points, nil
}

// ActiveAuthors returns the distinct author handles seen in [start, end).
func (s *Service) ActiveAuthors(ctx context.Context, channelID string, start, end time.Time) ([]string, error) {
	authors, err := s.messages.DistinctAuthors(ctx, channelID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load authors: %w", err)
	}
	return authors, nil
}

// ChurnRate compares the window's authors against the equally long
// window immediately before it. The rate is the share of previous
// authors absent from the current window; with no previous authors the
// rate is zero.
func (s *Service) ChurnRate(ctx context.Context, channelID string, start, end time.Time) (domain.ChurnStats, error) {
	var stats domain.ChurnStats

	prevStart := start.Add(-end.Sub(start))
	previous, err := s.messages.DistinctAuthors(ctx, channelID, prevStart, start)
	if err != nil {
		return stats, fmt.Errorf("load previous authors: %w", err)
	}
	current, err := s.messages.DistinctAuthors(ctx, channelID, start, end)
	if err != nil {
		return stats, fmt.Errorf("load current authors: %w", err)
	}

	seen := make(map[string]struct{}, len(current))
	for _, a := range current {
		seen[a] = struct{}{}
	}
	for _, a := range previous {
		if _, ok := seen[a]; !ok {
			stats.ChurnedAuthors++
		}
	}

	stats.PreviousAuthors = len(previous)
	stats.CurrentAuthors = len(current)
	if stats.PreviousAuthors > 0 {
		stats.Rate = float64(stats.ChurnedAuthors) / float64(stats.PreviousAuthors)
	}
	return stats, nil
}

// HealthScore combines volume, churn, sentiment and engagement into a
// 0-100 composite. Each signal is normalized to [0, 1] and weighted
// equally, so the blend itself stays in range. A window with no
// messages reports the floor value instead of dividing by zero.
func (s *Service) HealthScore(ctx context.Context, channelID string, start, end time.Time) (domain.HealthReport, error) {
	count, err := s.messages.CountRange(ctx, channelID, start, end)
	if err != nil {
		return domain.HealthReport{}, fmt.Errorf("count messages: %w", err)
	}
	if count == 0 {
		return domain.HealthReport{Score: healthFloor}, nil
	}

	days := end.Sub(start).Hours() / 24
	if days < 1 {
		days = 1
	}

	volume := math.Min(float64(count)/(days*targetDailyVolume), 1)

	churn, err := s.ChurnRate(ctx, channelID, start, end)
	if err != nil {
		return domain.HealthReport{}, err
	}

	buckets, err := s.messages.DayBuckets(ctx, channelID, start, end)
	if err != nil {
		return domain.HealthReport{}, fmt.Errorf("load day buckets: %w", err)
	}
	var weighted float64
	for _, b := range buckets {
		weighted += b.AvgSentiment * float64(b.Messages)
	}
	avgSentiment := weighted / float64(count)
	// Neutral or positive sentiment saturates; only a negative average
	// drags the signal down.
	sentimentSignal := clamp(avgSentiment+1, 0, 1)

	activeDays, err := s.messages.ActiveDays(ctx, channelID, start, end)
	if err != nil {
		return domain.HealthReport{}, fmt.Errorf("load active days: %w", err)
	}
	engagement := math.Min(float64(activeDays)/days, 1)

	score := int(math.Round(25 * (volume + (1 - churn.Rate) + sentimentSignal + engagement)))

	return domain.HealthReport{
		Score:      score,
		Messages:   count,
		Engagement: engagement,
		ChurnRate:  churn.Rate,
		Sentiment:  avgSentiment,
		Volume:     volume,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
