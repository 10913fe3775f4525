package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"channel_pulse/internal/domain"
	"channel_pulse/internal/telegram"
)

// SessionStore persists per-user protocol auth state.
type SessionStore interface {
	// Get returns the stored session or nil when the user has none.
	Get(ctx context.Context, userID string) (*domain.Session, error)
	Save(ctx context.Context, sess *domain.Session) error
	Delete(ctx context.Context, userID string) error
}

// ChannelStore persists channels and their subscriber lists.
type ChannelStore interface {
	Get(ctx context.Context, channelID string) (*domain.Channel, error)
	Upsert(ctx context.Context, ch *domain.Channel) error
	ListForUser(ctx context.Context, userID string) ([]domain.Channel, error)
	// EnsureSubscriber adds an inactive subscriber row if missing.
	EnsureSubscriber(ctx context.Context, channelID, userID string) error
	SetActive(ctx context.Context, channelID, userID string, active bool) error
	CountActive(ctx context.Context, userID string) (int, error)
	// Due returns channels with at least one active subscriber whose
	// last fetch is older than the cutoff (or never happened),
	// subscribers populated.
	Due(ctx context.Context, cutoff time.Time) ([]domain.Channel, error)
	TouchFetched(ctx context.Context, channelID string, t time.Time) error
	TouchScanned(ctx context.Context, channelID, userID string, t time.Time) error
}

// MessageStore persists ingested messages and serves the aggregate
// queries of the analytics layer. All ranges are half-open [start, end).
type MessageStore interface {
	UpsertBatch(ctx context.Context, msgs []domain.Message) error
	ListRange(ctx context.Context, channelID string, start, end time.Time) ([]domain.Message, error)
	Timestamps(ctx context.Context, channelID string, start, end time.Time) ([]time.Time, error)
	CountRange(ctx context.Context, channelID string, start, end time.Time) (int, error)
	DayBuckets(ctx context.Context, channelID string, start, end time.Time) ([]domain.TrendPoint, error)
	DistinctAuthors(ctx context.Context, channelID string, start, end time.Time) ([]string, error)
	ActiveDays(ctx context.Context, channelID string, start, end time.Time) (int, error)
}

// TransactionManager runs a function inside one database transaction.
// Store calls made with the callback's context join the transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UsageStore counts gated protocol calls per user and day.
type UsageStore interface {
	Increment(ctx context.Context, userID string, day time.Time) error
	Count(ctx context.Context, userID string, day time.Time) (int, error)
}

// Invoker is the rate-limited call gateway seen by ingestion code.
type Invoker interface {
	Invoke(ctx context.Context, userID string, req telegram.Request) (*telegram.Response, error)
}

// Backfiller fills missing message history for a time window.
type Backfiller interface {
	EnsureRange(ctx context.Context, userID, channelID string, start, end time.Time) error
}

// Publisher announces freshly ingested message batches downstream.
type Publisher interface {
	PublishIngested(ctx context.Context, channelID string, msgs []domain.Message) error
	Close() error
}
