package domain

import "time"

// ScrapeJob — задача на обход одной группы.
type ScrapeJob struct {
	ID         string    `json:"id"`
	GroupID    int64     `json:"group_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
