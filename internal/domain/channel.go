package domain

import "time"

// Channel is a discovered channel plus the per-user subscription list.
// A channel row is shared between all users who follow it; the
// access hash is the credential required to address it over the wire.
type Channel struct {
	ChannelID     string     `db:"channel_id" json:"channel_id"`
	AccessHash    string     `db:"access_hash" json:"-"`
	Title         string     `db:"title" json:"title"`
	Username      string     `db:"username" json:"username"`
	MemberCount   int        `db:"member_count" json:"member_count"`
	MessageCount  int        `db:"message_count" json:"message_count"`
	About         string     `db:"about" json:"about"`
	LastFetchedAt *time.Time `db:"last_fetched_at" json:"last_fetched_at,omitempty"`

	Subscribers []Subscriber `db:"-" json:"subscribers,omitempty"`
}

// Subscriber links a user to a channel. Only active subscribers are
// considered by the polling scheduler.
type Subscriber struct {
	ChannelID     string     `db:"channel_id" json:"channel_id"`
	UserID        string     `db:"user_id" json:"user_id"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	LastScannedAt *time.Time `db:"last_scanned_at" json:"last_scanned_at,omitempty"`
}

// ActiveSubscribers returns the subscribers with the active flag set.
func (c *Channel) ActiveSubscribers() []Subscriber {
	var active []Subscriber
	for _, s := range c.Subscribers {
		if s.IsActive {
			active = append(active, s)
		}
	}
	return active
}
