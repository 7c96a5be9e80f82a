package models

import (
	"time"

	"github.com/google/uuid"
)

// Streak tracks a member's consecutive-day activity. One row per user.
// last_activity_date is a calendar date; time-of-day never matters.
type Streak struct {
	UserID           uuid.UUID  `json:"user_id" db:"user_id"`
	CurrentStreak    int        `json:"current_streak" db:"current_streak"`
	LongestStreak    int        `json:"longest_streak" db:"longest_streak"`
	TotalDays        int        `json:"total_days" db:"total_days"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty" db:"last_activity_date"`
}

func (Streak) TableName() string {
	return "streaks"
}

func (Streak) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS streaks (
		user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		current_streak INTEGER NOT NULL DEFAULT 0,
		longest_streak INTEGER NOT NULL DEFAULT 0,
		total_days INTEGER NOT NULL DEFAULT 0,
		last_activity_date DATE
	);`
}
