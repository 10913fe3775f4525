package domain

import "time"

// Session is the persisted protocol authentication state for one user.
// It is created on successful login, refreshed whenever the pool
// reconnects, and deleted when the platform reports the auth as revoked.
type Session struct {
	UserID     string    `db:"user_id"`
	AuthState  string    `db:"auth_state"`
	DCID       int       `db:"dc_id"`
	LastUsedAt time.Time `db:"last_used_at"`
}
