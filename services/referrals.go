package services

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ailubes/veterans-orden-sub005/database"
	"github.com/ailubes/veterans-orden-sub005/models"

	"github.com/google/uuid"
)

const referralBonusPoints = 50

// ReferralService attributes credit along the referral tree. The ledger's
// idempotency key carries the heavy lifting: the referral award is keyed by
// the referred member's id, so re-activating the same member can never
// credit the referrer twice.
type ReferralService struct {
	db *database.DB
}

func NewReferralService(db *database.DB) *ReferralService {
	return &ReferralService{db: db}
}

// OnMemberActivated credits the referrer, if any, of a member who just
// became active. Safe to call on every activation event.
func (s *ReferralService) OnMemberActivated(memberID uuid.UUID) error {
	return withRetry("OnMemberActivated", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		defer tx.Rollback()

		var referrerID *uuid.UUID
		err = tx.QueryRow(`SELECT referred_by_id FROM users WHERE id = $1`, memberID).Scan(&referrerID)
		if err == sql.ErrNoRows {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up referrer: %w", err)
		}
		if referrerID == nil {
			return tx.Commit()
		}

		_, created, err := insertTransaction(tx, *referrerID, referralBonusPoints, models.TxnEarnReferral,
			"member", memberID.String(), "Referral bonus: referred member became active", nil)
		if err != nil {
			return err
		}
		if created {
			if err := bumpPointsCache(tx, *referrerID, referralBonusPoints); err != nil {
				return err
			}
			if _, err := tx.Exec(`UPDATE users SET referral_count = referral_count + 1 WHERE id = $1`, *referrerID); err != nil {
				return fmt.Errorf("failed to update referral count: %w", err)
			}
		}
		return tx.Commit()
	})
}

// ResolveReferralCode maps a sign-up referral code to the referrer's id.
func (s *ReferralService) ResolveReferralCode(code string) (uuid.UUID, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var id uuid.UUID
	err := s.db.QueryRow(`SELECT id FROM users WHERE referral_code = $1`, code).Scan(&id)
	if err == sql.ErrNoRows {
		return uuid.Nil, ErrUserNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve referral code: %w", err)
	}
	return id, nil
}
