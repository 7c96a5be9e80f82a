package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MilestoneRoleAdvance       = "role_advance"
	MilestoneStreak            = "streak_milestone"
	MilestoneTaskComplete      = "task_complete"
	MilestoneAchievementEarned = "achievement_earned"
)

// Milestone is a one-time notable event surfaced to the member for
// celebration. IsCelebrated flips false -> true exactly once, when the
// member acknowledges it.
type Milestone struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	Type         string    `json:"type" db:"type"`
	Title        string    `json:"title" db:"title"`
	Message      string    `json:"message" db:"message"`
	IsCelebrated bool      `json:"is_celebrated" db:"is_celebrated"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

func (Milestone) TableName() string {
	return "milestones"
}

func (Milestone) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS milestones (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		is_celebrated BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);`
}
