package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction types. Positive amounts earn, negative amounts spend.
const (
	TxnEarnTask         = "earn_task"
	TxnEarnVote         = "earn_vote"
	TxnEarnReferral     = "earn_referral"
	TxnEarnLoginStreak  = "earn_login_streak"
	TxnSpendMarketplace = "spend_marketplace"
	TxnManualAdjustment = "manual_adjustment"
)

// PointsTransaction is an append-only ledger entry. Rows are never updated
// or deleted once written; the user's balance is derived from them.
// (user_id, reference_type, reference_id, type) is the idempotency key that
// prevents the same external event from being credited twice.
type PointsTransaction struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	UserID        uuid.UUID  `json:"user_id" db:"user_id"`
	Amount        int64      `json:"amount" db:"amount"`
	Type          string     `json:"type" db:"type"`
	ReferenceType string     `json:"reference_type" db:"reference_type"`
	ReferenceID   string     `json:"reference_id" db:"reference_id"`
	Description   *string    `json:"description,omitempty" db:"description"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

func (PointsTransaction) TableName() string {
	return "points_transactions"
}

func (PointsTransaction) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS points_transactions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		amount BIGINT NOT NULL,
		type TEXT NOT NULL,
		reference_type TEXT NOT NULL,
		reference_id TEXT NOT NULL,
		description TEXT,
		expires_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);`
}
