package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"channel_pulse/internal/domain"
)

type ChannelStore struct {
	db *sqlx.DB
}

func NewChannelStore(db *sqlx.DB) *ChannelStore {
	return &ChannelStore{db: db}
}

func (s *ChannelStore) Get(ctx context.Context, channelID string) (*domain.Channel, error) {
	var ch domain.Channel
	query := `
		SELECT channel_id, access_hash, title, username, member_count,
		       message_count, about, last_fetched_at
		FROM channels
		WHERE channel_id = $1`

	err := s.db.GetContext(ctx, &ch, query, channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadSubscribers(ctx, []*domain.Channel{&ch}); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *ChannelStore) Upsert(ctx context.Context, ch *domain.Channel) error {
	query := `
		INSERT INTO channels (
			channel_id, access_hash, title, username, member_count,
			message_count, about, last_fetched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (channel_id) DO UPDATE SET
			access_hash = EXCLUDED.access_hash,
			title = EXCLUDED.title,
			username = EXCLUDED.username,
			member_count = EXCLUDED.member_count,
			message_count = EXCLUDED.message_count,
			about = EXCLUDED.about`

	_, err := s.db.ExecContext(ctx, query,
		ch.ChannelID,
		ch.AccessHash,
		ch.Title,
		ch.Username,
		ch.MemberCount,
		ch.MessageCount,
		ch.About,
		ch.LastFetchedAt,
	)
	return err
}

func (s *ChannelStore) ListForUser(ctx context.Context, userID string) ([]domain.Channel, error) {
	query := `
		SELECT c.channel_id, c.access_hash, c.title, c.username,
		       c.member_count, c.message_count, c.about, c.last_fetched_at
		FROM channels c
		INNER JOIN channel_subscribers s ON s.channel_id = c.channel_id
		WHERE s.user_id = $1
		ORDER BY c.title`

	var channels []domain.Channel
	if err := s.db.SelectContext(ctx, &channels, query, userID); err != nil {
		return nil, err
	}

	refs := make([]*domain.Channel, len(channels))
	for i := range channels {
		refs[i] = &channels[i]
	}
	if err := s.loadSubscribers(ctx, refs); err != nil {
		return nil, err
	}
	return channels, nil
}

func (s *ChannelStore) EnsureSubscriber(ctx context.Context, channelID, userID string) error {
	query := `
		INSERT INTO channel_subscribers (channel_id, user_id, is_active)
		VALUES ($1, $2, FALSE)
		ON CONFLICT (channel_id, user_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query, channelID, userID)
	return err
}

func (s *ChannelStore) SetActive(ctx context.Context, channelID, userID string, active bool) error {
	query := `
		INSERT INTO channel_subscribers (channel_id, user_id, is_active)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_id, user_id) DO UPDATE SET
			is_active = EXCLUDED.is_active`

	_, err := s.db.ExecContext(ctx, query, channelID, userID, active)
	return err
}

func (s *ChannelStore) CountActive(ctx context.Context, userID string) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM channel_subscribers
		WHERE user_id = $1 AND is_active`

	err := s.db.GetContext(ctx, &count, query, userID)
	return count, err
}

func (s *ChannelStore) Due(ctx context.Context, cutoff time.Time) ([]domain.Channel, error) {
	query := `
		SELECT c.channel_id, c.access_hash, c.title, c.username,
		       c.member_count, c.message_count, c.about, c.last_fetched_at
		FROM channels c
		WHERE EXISTS (
			SELECT 1 FROM channel_subscribers s
			WHERE s.channel_id = c.channel_id AND s.is_active
		)
		AND (c.last_fetched_at IS NULL OR c.last_fetched_at < $1)
		ORDER BY c.last_fetched_at NULLS FIRST`

	var channels []domain.Channel
	if err := s.db.SelectContext(ctx, &channels, query, cutoff); err != nil {
		return nil, err
	}

	refs := make([]*domain.Channel, len(channels))
	for i := range channels {
		refs[i] = &channels[i]
	}
	if err := s.loadSubscribers(ctx, refs); err != nil {
		return nil, err
	}
	return channels, nil
}

func (s *ChannelStore) TouchFetched(ctx context.Context, channelID string, t time.Time) error {
	executor := GetExecutor(ctx, s.db)
	_, err := executor.ExecContext(ctx,
		"UPDATE channels SET last_fetched_at = $2 WHERE channel_id = $1",
		channelID, t,
	)
	return err
}

func (s *ChannelStore) TouchScanned(ctx context.Context, channelID, userID string, t time.Time) error {
	executor := GetExecutor(ctx, s.db)
	_, err := executor.ExecContext(ctx,
		`UPDATE channel_subscribers SET last_scanned_at = $3
		 WHERE channel_id = $1 AND user_id = $2`,
		channelID, userID, t,
	)
	return err
}

func (s *ChannelStore) loadSubscribers(ctx context.Context, channels []*domain.Channel) error {
	if len(channels) == 0 {
		return nil
	}

	ids := make([]string, len(channels))
	byID := make(map[string]*domain.Channel, len(channels))
	for i, ch := range channels {
		ids[i] = ch.ChannelID
		byID[ch.ChannelID] = ch
	}

	query := `
		SELECT channel_id, user_id, is_active, last_scanned_at
		FROM channel_subscribers
		WHERE channel_id = ANY($1)`

	var subs []domain.Subscriber
	if err := s.db.SelectContext(ctx, &subs, query, pq.Array(ids)); err != nil {
		return err
	}

	for _, sub := range subs {
		if ch, ok := byID[sub.ChannelID]; ok {
			ch.Subscribers = append(ch.Subscribers, sub)
		}
	}
	return nil
}
