//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"channel_pulse/internal/domain"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_core_tables.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM api_usage")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM messages")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM channel_subscribers")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM channels")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sessions")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) seedChannel(channelID string) {
	store := NewChannelStore(s.db)
	s.Require().NoError(store.Upsert(s.ctx, &domain.Channel{
		ChannelID:  channelID,
		AccessHash: "hash-" + channelID,
		Title:      "Channel " + channelID,
	}))
}

func (s *PostgresIntegrationSuite) TestSessionStore_RoundTrip() {
	store := NewSessionStore(s.db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	missing, err := store.Get(s.ctx, "u1")
	s.NoError(err)
	s.Nil(missing)

	sess := &domain.Session{UserID: "u1", AuthState: "state-a", DCID: 2, LastUsedAt: now}
	s.NoError(store.Save(s.ctx, sess))

	sess.AuthState = "state-b"
	s.NoError(store.Save(s.ctx, sess))

	got, err := store.Get(s.ctx, "u1")
	s.NoError(err)
	s.Require().NotNil(got)
	s.Equal("state-b", got.AuthState)
	s.Equal(2, got.DCID)

	s.NoError(store.Delete(s.ctx, "u1"))

	got, err = store.Get(s.ctx, "u1")
	s.NoError(err)
	s.Nil(got)
}

func (s *PostgresIntegrationSuite) TestChannelStore_UpsertKeepsFetchMarker() {
	store := NewChannelStore(s.db)
	s.seedChannel("c1")

	now := time.Now().UTC().Truncate(time.Microsecond)
	s.NoError(store.TouchFetched(s.ctx, "c1", now))

	// A re-discovery upsert must not clear the marker.
	s.NoError(store.Upsert(s.ctx, &domain.Channel{ChannelID: "c1", Title: "renamed"}))

	got, err := store.Get(s.ctx, "c1")
	s.NoError(err)
	s.Require().NotNil(got)
	s.Equal("renamed", got.Title)
	s.Require().NotNil(got.LastFetchedAt)
	s.WithinDuration(now, *got.LastFetchedAt, time.Second)
}

func (s *PostgresIntegrationSuite) TestChannelStore_SubscribersAndCap() {
	store := NewChannelStore(s.db)
	for _, id := range []string{"c1", "c2", "c3"} {
		s.seedChannel(id)
		s.NoError(store.EnsureSubscriber(s.ctx, id, "u1"))
	}

	// EnsureSubscriber is idempotent and never flips the flag.
	s.NoError(store.SetActive(s.ctx, "c1", "u1", true))
	s.NoError(store.EnsureSubscriber(s.ctx, "c1", "u1"))

	count, err := store.CountActive(s.ctx, "u1")
	s.NoError(err)
	s.Equal(1, count)

	s.NoError(store.SetActive(s.ctx, "c2", "u1", true))
	count, err = store.CountActive(s.ctx, "u1")
	s.NoError(err)
	s.Equal(2, count)

	s.NoError(store.SetActive(s.ctx, "c1", "u1", false))
	count, err = store.CountActive(s.ctx, "u1")
	s.NoError(err)
	s.Equal(1, count)

	channels, err := store.ListForUser(s.ctx, "u1")
	s.NoError(err)
	s.Len(channels, 3)
}

func (s *PostgresIntegrationSuite) TestChannelStore_Due() {
	store := NewChannelStore(s.db)
	now := time.Now().UTC().Truncate(time.Microsecond)

	s.seedChannel("fresh")
	s.seedChannel("stale")
	s.seedChannel("never")
	s.seedChannel("inactive")

	for _, id := range []string{"fresh", "stale", "never"} {
		s.NoError(store.EnsureSubscriber(s.ctx, id, "u1"))
		s.NoError(store.SetActive(s.ctx, id, "u1", true))
	}
	s.NoError(store.EnsureSubscriber(s.ctx, "inactive", "u1"))

	s.NoError(store.TouchFetched(s.ctx, "fresh", now))
	s.NoError(store.TouchFetched(s.ctx, "stale", now.Add(-time.Hour)))

	due, err := store.Due(s.ctx, now.Add(-30*time.Minute))
	s.NoError(err)

	ids := make([]string, len(due))
	for i, ch := range due {
		ids[i] = ch.ChannelID
		s.NotEmpty(ch.ActiveSubscribers())
	}
	s.Equal([]string{"never", "stale"}, ids)
}

func (s *PostgresIntegrationSuite) TestMessageStore_UpsertBatchIsIdempotent() {
	store := NewMessageStore(s.db)
	s.seedChannel("c1")

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	batch := []domain.Message{
		{ChannelID: "c1", MessageID: 1, Text: "good", AuthorHandle: "alice", PostedAt: base, Sentiment: 3, PositiveTerms: 1},
		{ChannelID: "c1", MessageID: 2, Text: "bad", AuthorHandle: "bob", PostedAt: base.Add(time.Hour), Sentiment: -3, NegativeTerms: 1},
	}

	s.NoError(store.UpsertBatch(s.ctx, batch))
	s.NoError(store.UpsertBatch(s.ctx, batch))

	count, err := store.CountRange(s.ctx, "c1", base, base.Add(2*time.Hour))
	s.NoError(err)
	s.Equal(2, count)
}

func (s *PostgresIntegrationSuite) TestMessageStore_HalfOpenRange() {
	store := NewMessageStore(s.db)
	s.seedChannel("c1")

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s.NoError(store.UpsertBatch(s.ctx, []domain.Message{
		{ChannelID: "c1", MessageID: 1, PostedAt: base},
		{ChannelID: "c1", MessageID: 2, PostedAt: base.Add(time.Hour)},
		{ChannelID: "c1", MessageID: 3, PostedAt: base.Add(2 * time.Hour)},
	}))

	// End is exclusive, start inclusive.
	count, err := store.CountRange(s.ctx, "c1", base, base.Add(2*time.Hour))
	s.NoError(err)
	s.Equal(2, count)

	stamps, err := store.Timestamps(s.ctx, "c1", base, base.Add(3*time.Hour))
	s.NoError(err)
	s.Len(stamps, 3)
	s.True(stamps[0].Before(stamps[2]))
}

func (s *PostgresIntegrationSuite) TestMessageStore_Aggregates() {
	store := NewMessageStore(s.db)
	s.seedChannel("c1")

	day1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	s.NoError(store.UpsertBatch(s.ctx, []domain.Message{
		{ChannelID: "c1", MessageID: 1, AuthorHandle: "alice", PostedAt: day1, Sentiment: 2},
		{ChannelID: "c1", MessageID: 2, AuthorHandle: "bob", PostedAt: day1.Add(time.Hour), Sentiment: 4},
		{ChannelID: "c1", MessageID: 3, AuthorHandle: "alice", PostedAt: day2, Sentiment: -1},
		{ChannelID: "c1", MessageID: 4, AuthorHandle: "", PostedAt: day2, Sentiment: 0},
	}))

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	buckets, err := store.DayBuckets(s.ctx, "c1", start, end)
	s.NoError(err)
	s.Require().Len(buckets, 2)
	s.Equal("2025-06-01", buckets[0].Day)
	s.InDelta(3.0, buckets[0].AvgSentiment, 1e-9)
	s.Equal(2, buckets[0].Messages)

	authors, err := store.DistinctAuthors(s.ctx, "c1", start, end)
	s.NoError(err)
	s.ElementsMatch([]string{"alice", "bob"}, authors)

	days, err := store.ActiveDays(s.ctx, "c1", start, end)
	s.NoError(err)
	s.Equal(2, days)
}

func (s *PostgresIntegrationSuite) TestUsageStore_IncrementPerDay() {
	store := NewUsageStore(s.db)
	now := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)

	s.NoError(store.Increment(s.ctx, "u1", now))
	s.NoError(store.Increment(s.ctx, "u1", now.Add(-time.Hour)))
	s.NoError(store.Increment(s.ctx, "u1", now.Add(time.Hour)))

	count, err := store.Count(s.ctx, "u1", now)
	s.NoError(err)
	s.Equal(2, count)

	count, err = store.Count(s.ctx, "u1", now.Add(time.Hour))
	s.NoError(err)
	s.Equal(1, count)

	count, err = store.Count(s.ctx, "u2", now)
	s.NoError(err)
	s.Equal(0, count)
}
