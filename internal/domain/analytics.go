package domain

import "time"

// TrendPoint is one day bucket of the sentiment trend.
type TrendPoint struct {
	Day          string  `db:"day" json:"day"`
	AvgSentiment float64 `db:"avg_sentiment" json:"avg_sentiment"`
	Messages     int     `db:"messages" json:"messages"`
}

// ChurnStats compares author activity between the requested window and
// the immediately preceding window of equal length.
type ChurnStats struct {
	PreviousAuthors int     `json:"previous_authors"`
	CurrentAuthors  int     `json:"current_authors"`
	ChurnedAuthors  int     `json:"churned_authors"`
	Rate            float64 `json:"rate"`
}

// HealthReport is the composite channel health score with the signals
// that produced it. Score is always in [0, 100].
type HealthReport struct {
	Score      int     `json:"score"`
	Messages   int     `json:"messages"`
	Engagement float64 `json:"engagement"`
	ChurnRate  float64 `json:"churn_rate"`
	Sentiment  float64 `json:"sentiment"`
	Volume     float64 `json:"volume"`
}

// PollStats summarizes one scheduler tick.
type PollStats struct {
	Channels  int
	Users     int
	Messages  int
	Errors    int
	Skipped   int
	StartedAt time.Time
	Duration  time.Duration
}
