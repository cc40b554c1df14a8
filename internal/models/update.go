package models

import "time"

type ReactionCount struct {
	Name  string `json:"name"`
	Count uint64 `json:"count"`
}

// UserUpdate is one record of an ingestion batch.
type UserUpdate struct {
	UserID    uint64          `json:"user_id"`
	Name      string          `json:"name"`
	Messages  uint64          `json:"messages"`
	Reactions []ReactionCount `json:"reactions"`
	Timestamp time.Time       `json:"timestamp"`
}
