package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type UsageStore struct {
	db *sqlx.DB
}

func NewUsageStore(db *sqlx.DB) *UsageStore {
	return &UsageStore{db: db}
}

// Increment bumps the per-day counter for one gated call. The day is
// truncated to UTC midnight so the counter resets naturally.
func (s *UsageStore) Increment(ctx context.Context, userID string, day time.Time) error {
	query := `
		INSERT INTO api_usage (user_id, day, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, day) DO UPDATE SET
			count = api_usage.count + 1`

	_, err := s.db.ExecContext(ctx, query, userID, truncateDay(day))
	return err
}

func (s *UsageStore) Count(ctx context.Context, userID string, day time.Time) (int, error) {
	var count int
	query := `SELECT count FROM api_usage WHERE user_id = $1 AND day = $2`

	err := s.db.GetContext(ctx, &count, query, userID, truncateDay(day))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return count, err
}

func truncateDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
