package analytics

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"channel_pulse/internal/domain"
	"channel_pulse/internal/service/mocks"
)

type AnalyticsTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	messages *mocks.MockMessageStore
	svc      *Service

	start time.Time
	end   time.Time
}

func (s *AnalyticsTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.messages = mocks.NewMockMessageStore(s.ctrl)

	s.svc = New(s.messages, slog.New(slog.DiscardHandler))

	s.start = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s.end = s.start.AddDate(0, 0, 7)
}

func (s *AnalyticsTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestAnalyticsTestSuite(t *testing.T) {
	suite.Run(t, new(AnalyticsTestSuite))
}

func (s *AnalyticsTestSuite) TestChurnRate() {
	ctx := context.Background()
	prevStart := s.start.AddDate(0, 0, -7)

	s.messages.EXPECT().
		DistinctAuthors(ctx, "c1", prevStart, s.start).
		Return([]string{"alice", "bob", "carol", "dave"}, nil)
	s.messages.EXPECT().
		DistinctAuthors(ctx, "c1", s.start, s.end).
		Return([]string{"alice", "erin"}, nil)

	stats, err := s.svc.ChurnRate(ctx, "c1", s.start, s.end)

	s.NoError(err)
	s.Equal(4, stats.PreviousAuthors)
	s.Equal(2, stats.CurrentAuthors)
	s.Equal(3, stats.ChurnedAuthors)
	s.InDelta(0.75, stats.Rate, 1e-9)
}

func (s *AnalyticsTestSuite) TestChurnRate_NoPreviousAuthors() {
	ctx := context.Background()

	s.messages.EXPECT().DistinctAuthors(ctx, "c1", gomock.Any(), gomock.Any()).Return(nil, nil)
	s.messages.EXPECT().DistinctAuthors(ctx, "c1", s.start, s.end).Return([]string{"alice"}, nil)

	stats, err := s.svc.ChurnRate(ctx, "c1", s.start, s.end)

	s.NoError(err)
	s.Zero(stats.Rate)
	s.Zero(stats.ChurnedAuthors)
}

func (s *AnalyticsTestSuite) TestHealthScore_EmptyChannelFloor() {
	ctx := context.Background()

	s.messages.EXPECT().CountRange(ctx, "c1", s.start, s.end).Return(0, nil)

	report, err := s.svc.HealthScore(ctx, "c1", s.start, s.end)

	s.NoError(err)
	s.Equal(25, report.Score)
	s.Zero(report.Messages)
}

func (s *AnalyticsTestSuite) TestHealthScore_SaturatedSignalsReach100() {
	ctx := context.Background()
	prevStart := s.start.AddDate(0, 0, -7)

	// 70 messages over 7 days saturates volume, every day active
	// saturates engagement, no churn and neutral sentiment.
	s.messages.EXPECT().CountRange(ctx, "c1", s.start, s.end).Return(70, nil)
	s.messages.EXPECT().
		DistinctAuthors(ctx, "c1", prevStart, s.start).
		Return([]string{"alice"}, nil)
	s.messages.EXPECT().
		DistinctAuthors(ctx, "c1", s.start, s.end).
		Return([]string{"alice"}, nil)
	s.messages.EXPECT().
		DayBuckets(ctx, "c1", s.start, s.end).
		Return([]domain.TrendPoint{
			{Day: "2025-06-01", AvgSentiment: 0, Messages: 70},
		}, nil)
	s.messages.EXPECT().ActiveDays(ctx, "c1", s.start, s.end).Return(7, nil)

	report, err := s.svc.HealthScore(ctx, "c1", s.start, s.end)

	s.NoError(err)
	s.Equal(100, report.Score)
	s.InDelta(1.0, report.Volume, 1e-9)
	s.InDelta(1.0, report.Engagement, 1e-9)
	s.Zero(report.ChurnRate)
}

func (s *AnalyticsTestSuite) TestHealthScore_NegativeSentimentDrags() {
	ctx := context.Background()
	prevStart := s.start.AddDate(0, 0, -7)

	s.messages.EXPECT().CountRange(ctx, "c1", s.start, s.end).Return(70, nil)
	s.messages.EXPECT().DistinctAuthors(ctx, "c1", prevStart, s.start).Return([]string{"alice"}, nil)
	s.messages.EXPECT().DistinctAuthors(ctx, "c1", s.start, s.end).Return([]string{"alice"}, nil)
	s.messages.EXPECT().
		DayBuckets(ctx, "c1", s.start, s.end).
		Return([]domain.TrendPoint{
			{Day: "2025-06-01", AvgSentiment: -1, Messages: 70},
		}, nil)
	s.messages.EXPECT().ActiveDays(ctx, "c1", s.start, s.end).Return(7, nil)

	report, err := s.svc.HealthScore(ctx, "c1", s.start, s.end)

	s.NoError(err)
	s.Equal(75, report.Score)
	s.InDelta(-1.0, report.Sentiment, 1e-9)
}

func (s *AnalyticsTestSuite) TestHealthScore_CollapsedChannelScoresBelowEmptyFloor() {
	ctx := context.Background()
	prevStart := s.start.AddDate(0, 0, -7)

	// One hostile message from a newcomer while every author from the
	// previous window left.
	s.messages.EXPECT().CountRange(ctx, "c1", s.start, s.end).Return(1, nil)
	s.messages.EXPECT().
		DistinctAuthors(ctx, "c1", prevStart, s.start).
		Return([]string{"alice", "bob"}, nil)
	s.messages.EXPECT().
		DistinctAuthors(ctx, "c1", s.start, s.end).
		Return([]string{"mallory"}, nil)
	s.messages.EXPECT().
		DayBuckets(ctx, "c1", s.start, s.end).
		Return([]domain.TrendPoint{
			{Day: "2025-06-01", AvgSentiment: -3, Messages: 1},
		}, nil)
	s.messages.EXPECT().ActiveDays(ctx, "c1", s.start, s.end).Return(1, nil)

	report, err := s.svc.HealthScore(ctx, "c1", s.start, s.end)

	s.NoError(err)
	// volume 1/70, full churn, sentiment signal clamped to 0 and one
	// active day out of seven round to 4, well under the empty floor.
	s.Equal(4, report.Score)
	s.InDelta(1.0, report.ChurnRate, 1e-9)
}

func (s *AnalyticsTestSuite) TestSentimentTrend() {
	ctx := context.Background()

	expected := []domain.TrendPoint{
		{Day: "2025-06-01", AvgSentiment: 1.5, Messages: 4},
		{Day: "2025-06-02", AvgSentiment: -0.5, Messages: 2},
	}
	s.messages.EXPECT().DayBuckets(ctx, "c1", s.start, s.end).Return(expected, nil)

	points, err := s.svc.SentimentTrend(ctx, "c1", s.start, s.end)

	s.NoError(err)
	s.Equal(expected, points)
}

func (s *AnalyticsTestSuite) TestActiveAuthors() {
	ctx := context.Background()

	s.messages.EXPECT().
		DistinctAuthors(ctx, "c1", s.start, s.end).
		Return([]string{"alice", "bob"}, nil)

	authors, err := s.svc.ActiveAuthors(ctx, "c1", s.start, s.end)

	s.NoError(err)
	s.Equal([]string{"alice", "bob"}, authors)
}
