package model

import "time"

// Alert records one issued notification for a significant news item.
type Alert struct {
	ID             int64     `json:"id,omitempty"`
	Ticker         string    `json:"ticker"`
	Title          string    `json:"title"`
	Sentiment      Sentiment `json:"sentiment"`
	NewsStoreID    int64     `json:"news_id"`
	IssueReference string    `json:"issue_reference"`
	CreatedAt      time.Time `json:"created_at"`
}

// AlertTitle is the stored title for an alert raised on rec.
func AlertTitle(rec NewsRecord) string {
	if rec.IsPositive {
		return "Positive Alert: " + rec.Title
	}
	return "Negative Alert: " + rec.Title
}

// AlertFilter specifies criteria for listing alerts.
type AlertFilter struct {
	Ticker string    `json:"ticker,omitempty"`
	Since  time.Time `json:"since,omitempty"`
	Limit  int       `json:"limit,omitempty"`
}
