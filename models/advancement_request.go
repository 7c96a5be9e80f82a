package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// AdvancementRequest is created when a member meets the next role's
// requirements while the organization runs in approval_required mode.
// A partial unique index guarantees at most one pending request per user;
// a request transitions out of pending exactly once.
type AdvancementRequest struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	UserID          uuid.UUID      `json:"user_id" db:"user_id"`
	FromRole        MembershipRole `json:"from_role" db:"from_role"`
	ToRole          MembershipRole `json:"to_role" db:"to_role"`
	Status          string         `json:"status" db:"status"`
	RequestedAt     time.Time      `json:"requested_at" db:"requested_at"`
	ReviewedByID    *uuid.UUID     `json:"reviewed_by_id,omitempty" db:"reviewed_by_id"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty" db:"reviewed_at"`
	RejectionReason *string        `json:"rejection_reason,omitempty" db:"rejection_reason"`
}

func (AdvancementRequest) TableName() string {
	return "advancement_requests"
}

func (AdvancementRequest) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS advancement_requests (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		from_role TEXT NOT NULL,
		to_role TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
		requested_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
		reviewed_by_id UUID,
		reviewed_at TIMESTAMP WITH TIME ZONE,
		rejection_reason TEXT
	);`
}
