package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"channel_pulse/internal/domain"
	"channel_pulse/internal/service/mocks"
)

type SubscriptionsTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	channels *mocks.MockChannelStore
	backfill *mocks.MockBackfiller

	subs *Subscriptions
	now  time.Time
}

func (s *SubscriptionsTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.channels = mocks.NewMockChannelStore(s.ctrl)
	s.backfill = mocks.NewMockBackfiller(s.ctrl)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.subs = NewSubscriptions(s.channels, s.backfill, 24*time.Hour, logger)
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.subs.now = func() time.Time { return s.now }
}

func (s *SubscriptionsTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSubscriptionsTestSuite(t *testing.T) {
	suite.Run(t, new(SubscriptionsTestSuite))
}

func (s *SubscriptionsTestSuite) TestActivate_TriggersInitialBackfill() {
	ctx := context.Background()

	s.channels.EXPECT().Get(ctx, "c1").Return(&domain.Channel{ChannelID: "c1"}, nil)
	s.channels.EXPECT().CountActive(ctx, "u1").Return(2, nil)
	s.channels.EXPECT().SetActive(ctx, "c1", "u1", true).Return(nil)
	s.backfill.EXPECT().
		EnsureRange(ctx, "u1", "c1", s.now.Add(-24*time.Hour), s.now).
		Return(nil)

	s.NoError(s.subs.Activate(ctx, "u1", "c1"))
}

func (s *SubscriptionsTestSuite) TestActivate_RejectedAtCapacity() {
	ctx := context.Background()

	s.channels.EXPECT().Get(ctx, "c5").Return(&domain.Channel{ChannelID: "c5"}, nil)
	s.channels.EXPECT().CountActive(ctx, "u1").Return(MaxActiveChannels, nil)

	err := s.subs.Activate(ctx, "u1", "c5")

	s.ErrorIs(err, ErrSubscriptionLimit)
}

func (s *SubscriptionsTestSuite) TestActivate_UnknownChannel() {
	ctx := context.Background()

	s.channels.EXPECT().Get(ctx, "ghost").Return(nil, nil)

	s.Error(s.subs.Activate(ctx, "u1", "ghost"))
}

func (s *SubscriptionsTestSuite) TestActivate_BackfillFailureKeepsSubscription() {
	ctx := context.Background()

	s.channels.EXPECT().Get(ctx, "c1").Return(&domain.Channel{ChannelID: "c1"}, nil)
	s.channels.EXPECT().CountActive(ctx, "u1").Return(0, nil)
	s.channels.EXPECT().SetActive(ctx, "c1", "u1", true).Return(nil)
	s.backfill.EXPECT().
		EnsureRange(ctx, "u1", "c1", gomock.Any(), gomock.Any()).
		Return(errors.New("throttled"))

	s.NoError(s.subs.Activate(ctx, "u1", "c1"))
}

func (s *SubscriptionsTestSuite) TestDeactivate() {
	ctx := context.Background()

	s.channels.EXPECT().SetActive(ctx, "c1", "u1", false).Return(nil)

	s.NoError(s.subs.Deactivate(ctx, "u1", "c1"))
}
