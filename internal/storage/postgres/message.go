package postgres

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"channel_pulse/internal/domain"
)

type MessageStore struct {
	db *sqlx.DB
}

func NewMessageStore(db *sqlx.DB) *MessageStore {
	return &MessageStore{db: db}
}

// UpsertBatch writes messages keyed by (channel_id, message_id).
// Conflicts rewrite the row with identical content, so concurrent
// backfill and polling runs absorb each other without errors.
func (s *MessageStore) UpsertBatch(ctx context.Context, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO messages (
			channel_id, message_id, text, author_handle, posted_at,
			sentiment, positive_terms, negative_terms
		) VALUES `)

	args := make([]interface{}, 0, len(msgs)*8)
	for i, m := range msgs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < 8; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(i*8 + j + 1))
		}
		sb.WriteString(")")
		args = append(args,
			m.ChannelID, m.MessageID, m.Text, m.AuthorHandle,
			m.PostedAt, m.Sentiment, m.PositiveTerms, m.NegativeTerms,
		)
	}

	sb.WriteString(`
		ON CONFLICT (channel_id, message_id) DO UPDATE SET
			text = EXCLUDED.text,
			author_handle = EXCLUDED.author_handle,
			posted_at = EXCLUDED.posted_at,
			sentiment = EXCLUDED.sentiment,
			positive_terms = EXCLUDED.positive_terms,
			negative_terms = EXCLUDED.negative_terms`)

	executor := GetExecutor(ctx, s.db)
	_, err := executor.ExecContext(ctx, sb.String(), args...)
	return err
}

func (s *MessageStore) ListRange(ctx context.Context, channelID string, start, end time.Time) ([]domain.Message, error) {
	query := `
		SELECT channel_id, message_id, text, author_handle, posted_at,
		       sentiment, positive_terms, negative_terms
		FROM messages
		WHERE channel_id = $1 AND posted_at >= $2 AND posted_at < $3
		ORDER BY posted_at DESC`

	var msgs []domain.Message
	err := s.db.SelectContext(ctx, &msgs, query, channelID, start, end)
	return msgs, err
}

func (s *MessageStore) Timestamps(ctx context.Context, channelID string, start, end time.Time) ([]time.Time, error) {
	query := `
		SELECT posted_at FROM messages
		WHERE channel_id = $1 AND posted_at >= $2 AND posted_at < $3
		ORDER BY posted_at`

	var stamps []time.Time
	err := s.db.SelectContext(ctx, &stamps, query, channelID, start, end)
	return stamps, err
}

func (s *MessageStore) CountRange(ctx context.Context, channelID string, start, end time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM messages
		WHERE channel_id = $1 AND posted_at >= $2 AND posted_at < $3`

	err := s.db.GetContext(ctx, &count, query, channelID, start, end)
	return count, err
}

func (s *MessageStore) DayBuckets(ctx context.Context, channelID string, start, end time.Time) ([]domain.TrendPoint, error) {
	query := `
		SELECT to_char(date_trunc('day', posted_at), 'YYYY-MM-DD') AS day,
		       AVG(sentiment)::float8 AS avg_sentiment,
		       COUNT(*) AS messages
		FROM messages
		WHERE channel_id = $1 AND posted_at >= $2 AND posted_at < $3
		GROUP BY 1
		ORDER BY 1`

	var points []domain.TrendPoint
	err := s.db.SelectContext(ctx, &points, query, channelID, start, end)
	return points, err
}

func (s *MessageStore) DistinctAuthors(ctx context.Context, channelID string, start, end time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT author_handle FROM messages
		WHERE channel_id = $1 AND posted_at >= $2 AND posted_at < $3
		  AND author_handle <> ''`

	var authors []string
	err := s.db.SelectContext(ctx, &authors, query, channelID, start, end)
	return authors, err
}

func (s *MessageStore) ActiveDays(ctx context.Context, channelID string, start, end time.Time) (int, error) {
	var days int
	query := `
		SELECT COUNT(DISTINCT date_trunc('day', posted_at)) FROM messages
		WHERE channel_id = $1 AND posted_at >= $2 AND posted_at < $3`

	err := s.db.GetContext(ctx, &days, query, channelID, start, end)
	return days, err
}
