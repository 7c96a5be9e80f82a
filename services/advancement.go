package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/ailubes/veterans-orden-sub005/database"
	"github.com/ailubes/veterans-orden-sub005/models"

	"github.com/google/uuid"
)

// AdvancementService orchestrates role progression: it recomputes live
// stats, evaluates eligibility against the catalog, and either advances the
// member in place (automatic mode) or queues an admin-reviewed request
// (approval_required mode). All decisions happen under a row lock on the
// user so concurrent triggers serialize.
type AdvancementService struct {
	db       *database.DB
	catalog  *RoleCatalog
	notifier *NotificationService
}

func NewAdvancementService(db *database.DB, catalog *RoleCatalog, notifier *NotificationService) *AdvancementService {
	return &AdvancementService{db: db, catalog: catalog, notifier: notifier}
}

// AdvancementResult is the outcome of a progression check.
// ApprovalRequired is a distinguished branch, not a failure: the member met
// the requirements but organization policy routes the promotion through an
// admin.
type AdvancementResult struct {
	Advanced         bool                  `json:"advanced"`
	NewRole          models.MembershipRole `json:"new_role,omitempty"`
	ApprovalRequired bool                  `json:"approval_required,omitempty"`
	RequestID        *uuid.UUID            `json:"request_id,omitempty"`
	Progress         *Progress             `json:"progress,omitempty"`
	Stats            *UserStats            `json:"stats,omitempty"`
}

// CheckAndAdvanceRole re-evaluates the member against the next role and
// advances at most one level. Callers wanting multi-level catch-up invoke
// it repeatedly; each call re-evaluates from the new current role, so an
// approval gate on an intermediate role is never skipped.
func (s *AdvancementService) CheckAndAdvanceRole(userID uuid.UUID) (*AdvancementResult, error) {
	var result *AdvancementResult
	err := withRetry("CheckAndAdvanceRole", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		defer tx.Rollback()

		var roleStr string
		var createdAt time.Time
		err = tx.QueryRow(`SELECT membership_role, created_at FROM users WHERE id = $1 FOR UPDATE`, userID).
			Scan(&roleStr, &createdAt)
		if err == sql.ErrNoRows {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock user row: %w", err)
		}

		currentRole, err := models.ParseMembershipRole(roleStr)
		if err != nil {
			return err
		}

		nextRole, ok := s.catalog.NextRole(currentRole)
		if !ok {
			// Already at the top of the ladder.
			result = &AdvancementResult{Advanced: false}
			return tx.Commit()
		}
		requirement, ok := s.catalog.RequirementsFor(nextRole)
		if !ok {
			return fmt.Errorf("no requirements configured for role %q", nextRole)
		}

		stats, err := recomputeStats(tx, userID, createdAt, time.Now())
		if err != nil {
			return err
		}
		eval := Evaluate(stats, requirement)
		if !eval.IsEligible {
			result = &AdvancementResult{Advanced: false, Progress: &eval.Progress, Stats: &stats}
			return tx.Commit()
		}

		mode, err := resolveMode(tx, requirement)
		if err != nil {
			return err
		}

		if mode == models.AdvancementAutomatic {
			// A pending request gates even automatic advancement; the mode
			// may have been flipped while a request sat in the queue, and
			// the review must not be silently bypassed.
			var pendingID uuid.UUID
			err = tx.QueryRow(`SELECT id FROM advancement_requests WHERE user_id = $1 AND status = 'pending'`, userID).
				Scan(&pendingID)
			if err == nil {
				result = &AdvancementResult{ApprovalRequired: true, RequestID: &pendingID, Progress: &eval.Progress, Stats: &stats}
				return tx.Commit()
			}
			if err != sql.ErrNoRows {
				return fmt.Errorf("failed to check pending requests: %w", err)
			}

			if err := applyRoleChange(tx, userID, nextRole); err != nil {
				return err
			}
			if _, err := insertMilestone(tx, userID, models.MilestoneRoleAdvance,
				fmt.Sprintf("Advanced to %s!", nextRole),
				fmt.Sprintf("Congratulations, you are now a %s of the organization.", nextRole)); err != nil {
				return err
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit transaction: %w", err)
			}
			result = &AdvancementResult{Advanced: true, NewRole: nextRole, Progress: &eval.Progress, Stats: &stats}
			return nil
		}

		// approval_required: queue a request unless one is already pending.
		// The partial unique index makes the racing insert a no-op.
		var requestID uuid.UUID
		err = tx.QueryRow(`
			INSERT INTO advancement_requests (user_id, from_role, to_role)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) WHERE status = 'pending' DO NOTHING
			RETURNING id`,
			userID, currentRole, nextRole).Scan(&requestID)
		if err == sql.ErrNoRows {
			err = tx.QueryRow(`SELECT id FROM advancement_requests WHERE user_id = $1 AND status = 'pending'`, userID).
				Scan(&requestID)
		}
		if err != nil {
			return fmt.Errorf("failed to create advancement request: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		result = &AdvancementResult{ApprovalRequired: true, RequestID: &requestID, Progress: &eval.Progress, Stats: &stats}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Advanced {
		s.notifyRoleAdvance(userID, result.NewRole)
	}
	return result, nil
}

// ManuallyAdvanceRole is the admin override: no eligibility check, but the
// monotonic-level invariant holds unless allowDemotion is set. Any pending
// request is rejected as superseded in the same transaction.
func (s *AdvancementService) ManuallyAdvanceRole(userID uuid.UUID, toRole models.MembershipRole, adminID uuid.UUID, reason string, allowDemotion bool) (*AdvancementResult, error) {
	if s.catalog.LevelOf(toRole) == 0 {
		return nil, ErrInvalidRoleTransition
	}

	var result *AdvancementResult
	err := withRetry("ManuallyAdvanceRole", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		defer tx.Rollback()

		var roleStr string
		err = tx.QueryRow(`SELECT membership_role FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&roleStr)
		if err == sql.ErrNoRows {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock user row: %w", err)
		}
		currentRole, err := models.ParseMembershipRole(roleStr)
		if err != nil {
			return err
		}

		targetLevel := s.catalog.LevelOf(toRole)
		currentLevel := s.catalog.LevelOf(currentRole)
		if targetLevel == currentLevel {
			return ErrInvalidRoleTransition
		}
		if targetLevel < currentLevel && !allowDemotion {
			return ErrInvalidRoleTransition
		}

		if err := applyRoleChange(tx, userID, toRole); err != nil {
			return err
		}

		if _, err := tx.Exec(`
			UPDATE advancement_requests
			SET status = 'rejected', reviewed_by_id = $1, reviewed_at = now(),
			    rejection_reason = 'superseded by manual role change'
			WHERE user_id = $2 AND status = 'pending'`, adminID, userID); err != nil {
			return fmt.Errorf("failed to supersede pending request: %w", err)
		}

		message := fmt.Sprintf("Your membership role was set to %s by an administrator.", toRole)
		if reason != "" {
			message = fmt.Sprintf("%s Reason: %s", message, reason)
		}
		if _, err := insertMilestone(tx, userID, models.MilestoneRoleAdvance,
			fmt.Sprintf("Role changed to %s", toRole), message); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		log.Printf("manual role change: user=%s %s -> %s by admin=%s reason=%q", userID, currentRole, toRole, adminID, reason)
		result = &AdvancementResult{Advanced: true, NewRole: toRole}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyRoleAdvance(userID, result.NewRole)
	return result, nil
}

// ProcessAdvancementRequest approves or rejects a pending request exactly
// once. Approval applies the role mutation in the same transaction as the
// status change; reprocessing fails with ErrRequestAlreadyProcessed.
func (s *AdvancementService) ProcessAdvancementRequest(requestID, adminID uuid.UUID, approved bool, rejectionReason string) (*models.AdvancementRequest, error) {
	var processed models.AdvancementRequest
	err := withRetry("ProcessAdvancementRequest", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		defer tx.Rollback()

		status := models.RequestRejected
		if approved {
			status = models.RequestApproved
		}
		var reasonArg *string
		if rejectionReason != "" {
			reasonArg = &rejectionReason
		}

		req := models.AdvancementRequest{ID: requestID, Status: status}
		err = tx.QueryRow(`
			UPDATE advancement_requests
			SET status = $1, reviewed_by_id = $2, reviewed_at = now(), rejection_reason = $3
			WHERE id = $4 AND status = 'pending'
			RETURNING user_id, from_role, to_role, requested_at, reviewed_by_id, reviewed_at, rejection_reason`,
			status, adminID, reasonArg, requestID,
		).Scan(&req.UserID, &req.FromRole, &req.ToRole, &req.RequestedAt, &req.ReviewedByID, &req.ReviewedAt, &req.RejectionReason)
		if err == sql.ErrNoRows {
			var exists bool
			if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM advancement_requests WHERE id = $1)`, requestID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check request: %w", err)
			}
			if !exists {
				return ErrRequestNotFound
			}
			return ErrRequestAlreadyProcessed
		}
		if err != nil {
			return fmt.Errorf("failed to process request: %w", err)
		}

		if approved {
			var roleStr string
			err = tx.QueryRow(`SELECT membership_role FROM users WHERE id = $1 FOR UPDATE`, req.UserID).Scan(&roleStr)
			if err == sql.ErrNoRows {
				return ErrUserNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to lock user row: %w", err)
			}
			currentRole, err := models.ParseMembershipRole(roleStr)
			if err != nil {
				return err
			}
			// A manual role change may have raced the review; only mutate
			// when the approval still moves the member up.
			if s.catalog.LevelOf(req.ToRole) > s.catalog.LevelOf(currentRole) {
				if err := applyRoleChange(tx, req.UserID, req.ToRole); err != nil {
					return err
				}
				if _, err := insertMilestone(tx, req.UserID, models.MilestoneRoleAdvance,
					fmt.Sprintf("Advanced to %s!", req.ToRole),
					fmt.Sprintf("Your advancement to %s has been approved.", req.ToRole)); err != nil {
					return err
				}
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		processed = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	if approved {
		s.notifyRoleAdvance(processed.UserID, processed.ToRole)
	}
	return &processed, nil
}

// PendingAdvancement is a queued request joined with the requester's name
// for the admin review screen.
type PendingAdvancement struct {
	models.AdvancementRequest
	FullName *string `json:"full_name,omitempty"`
}

// PendingAdvancementRequests lists the review queue, oldest first.
func (s *AdvancementService) PendingAdvancementRequests() ([]PendingAdvancement, error) {
	rows, err := s.db.Query(`
		SELECT r.id, r.user_id, r.from_role, r.to_role, r.status, r.requested_at, u.full_name
		FROM advancement_requests r
		JOIN users u ON u.id = r.user_id
		WHERE r.status = 'pending'
		ORDER BY r.requested_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}
	defer rows.Close()

	pending := []PendingAdvancement{}
	for rows.Next() {
		var p PendingAdvancement
		if err := rows.Scan(&p.ID, &p.UserID, &p.FromRole, &p.ToRole, &p.Status, &p.RequestedAt, &p.FullName); err != nil {
			return nil, fmt.Errorf("failed to scan pending request: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// RecentAdvancement is one entry of the back-office "recently advanced
// members" feed.
type RecentAdvancement struct {
	UserID         uuid.UUID             `json:"user_id"`
	FullName       *string               `json:"full_name,omitempty"`
	MembershipRole models.MembershipRole `json:"membership_role"`
	RoleAdvancedAt time.Time             `json:"role_advanced_at"`
}

// RecentAdvancements returns the n most recently advanced members.
func (s *AdvancementService) RecentAdvancements(n int) ([]RecentAdvancement, error) {
	if n <= 0 || n > 100 {
		n = 20
	}
	rows, err := s.db.Query(`
		SELECT id, full_name, membership_role, role_advanced_at
		FROM users
		WHERE role_advanced_at IS NOT NULL
		ORDER BY role_advanced_at DESC
		LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent advancements: %w", err)
	}
	defer rows.Close()

	recent := []RecentAdvancement{}
	for rows.Next() {
		var r RecentAdvancement
		var roleStr string
		if err := rows.Scan(&r.UserID, &r.FullName, &roleStr, &r.RoleAdvancedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recent advancement: %w", err)
		}
		r.MembershipRole = models.MembershipRole(roleStr)
		recent = append(recent, r)
	}
	return recent, rows.Err()
}

// recomputeStats derives the eligibility inputs from source tables inside
// the caller's transaction. The cached counters on the user row are for
// display only and are never trusted here.
func recomputeStats(tx dbtx, userID uuid.UUID, createdAt, now time.Time) (UserStats, error) {
	var stats UserStats

	txns, err := loadTransactions(tx, userID)
	if err != nil {
		return stats, err
	}
	stats.Points = computeBalance(txns, now).Total
	for _, t := range txns {
		if t.Type == models.TxnEarnTask {
			stats.TasksCompleted++
		}
	}

	if err := tx.QueryRow(`SELECT COUNT(*) FROM users WHERE referred_by_id = $1 AND is_active = TRUE`, userID).
		Scan(&stats.Referrals); err != nil {
		return stats, fmt.Errorf("failed to count referrals: %w", err)
	}

	err = tx.QueryRow(`SELECT current_streak FROM streaks WHERE user_id = $1`, userID).Scan(&stats.CurrentStreak)
	if err != nil && err != sql.ErrNoRows {
		return stats, fmt.Errorf("failed to read streak: %w", err)
	}

	stats.TenureDays = int(now.Sub(createdAt).Hours() / 24)
	return stats, nil
}

func resolveMode(tx dbtx, requirement models.RoleRequirement) (string, error) {
	if requirement.AdvancementMode != nil {
		return *requirement.AdvancementMode, nil
	}
	return advancementMode(tx)
}

func applyRoleChange(tx dbtx, userID uuid.UUID, newRole models.MembershipRole) error {
	result, err := tx.Exec(`UPDATE users SET membership_role = $1, role_advanced_at = now() WHERE id = $2`, newRole, userID)
	if err != nil {
		return fmt.Errorf("failed to update membership role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// notifyRoleAdvance sends a best-effort push notification after the role
// change has committed. Failures are logged, never propagated.
func (s *AdvancementService) notifyRoleAdvance(userID uuid.UUID, newRole models.MembershipRole) {
	if s.notifier == nil {
		return
	}
	var pushToken *string
	if err := s.db.QueryRow(`SELECT push_token FROM users WHERE id = $1`, userID).Scan(&pushToken); err != nil {
		log.Printf("notifyRoleAdvance: failed to load push token for %s: %v", userID, err)
		return
	}
	if pushToken == nil || *pushToken == "" {
		return
	}
	err := s.notifier.SendPushNotification(*pushToken,
		"Membership advanced",
		fmt.Sprintf("You are now a %s of the organization!", newRole),
		map[string]interface{}{"type": "role_advance", "role": string(newRole)})
	if err != nil {
		log.Printf("notifyRoleAdvance: push to %s failed: %v", userID, err)
	}
}
