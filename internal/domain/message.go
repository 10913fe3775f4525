package domain

import "time"

// Message is one ingested channel message. (ChannelID, MessageID) is
// globally unique; ingestion writers upsert so concurrent backfill and
// polling never conflict. Sentiment fields are computed once at
// ingestion and never recomputed.
type Message struct {
	ChannelID     string    `db:"channel_id" json:"channel_id"`
	MessageID     int64     `db:"message_id" json:"message_id"`
	Text          string    `db:"text" json:"text"`
	AuthorHandle  string    `db:"author_handle" json:"author_handle"`
	PostedAt      time.Time `db:"posted_at" json:"posted_at"`
	Sentiment     int       `db:"sentiment" json:"sentiment"`
	PositiveTerms int       `db:"positive_terms" json:"positive_terms"`
	NegativeTerms int       `db:"negative_terms" json:"negative_terms"`
}

// UsageRecord counts gated protocol calls per user per day.
type UsageRecord struct {
	UserID string    `db:"user_id"`
	Day    time.Time `db:"day"`
	Count  int       `db:"count"`
}
