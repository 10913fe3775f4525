package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"channel_pulse/internal/domain"
)

type SessionStore struct {
	db *sqlx.DB
}

func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Get returns nil without error when no session is stored for the user.
func (s *SessionStore) Get(ctx context.Context, userID string) (*domain.Session, error) {
	var sess domain.Session
	query := `
		SELECT user_id, auth_state, dc_id, last_used_at
		FROM sessions
		WHERE user_id = $1`

	err := s.db.GetContext(ctx, &sess, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	query := `
		INSERT INTO sessions (user_id, auth_state, dc_id, last_used_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			auth_state = EXCLUDED.auth_state,
			dc_id = EXCLUDED.dc_id,
			last_used_at = EXCLUDED.last_used_at`

	_, err := s.db.ExecContext(ctx, query,
		sess.UserID,
		sess.AuthState,
		sess.DCID,
		sess.LastUsedAt,
	)
	return err
}

func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = $1", userID)
	return err
}
