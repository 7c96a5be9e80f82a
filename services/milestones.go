package services

import (
	"database/sql"
	"fmt"

	"github.com/ailubes/veterans-orden-sub005/database"
	"github.com/ailubes/veterans-orden-sub005/models"

	"github.com/google/uuid"
)

// MilestoneService reads and acknowledges milestones. Emission happens
// inside engine transactions via insertMilestone.
type MilestoneService struct {
	db *database.DB
}

func NewMilestoneService(db *database.DB) *MilestoneService {
	return &MilestoneService{db: db}
}

func insertMilestone(q dbtx, userID uuid.UUID, mType, title, message string) (models.Milestone, error) {
	m := models.Milestone{
		UserID:  userID,
		Type:    mType,
		Title:   title,
		Message: message,
	}
	err := q.QueryRow(`
		INSERT INTO milestones (user_id, type, title, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		userID, mType, title, message,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return m, fmt.Errorf("failed to insert milestone: %w", err)
	}
	return m, nil
}

// List returns the user's milestones newest first. When uncelebratedOnly is
// set, only milestones awaiting acknowledgement are returned.
func (s *MilestoneService) List(userID uuid.UUID, uncelebratedOnly bool, limit int) ([]models.Milestone, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `SELECT id, user_id, type, title, message, is_celebrated, created_at
	          FROM milestones WHERE user_id = $1`
	if uncelebratedOnly {
		query += ` AND is_celebrated = FALSE`
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query milestones: %w", err)
	}
	defer rows.Close()

	milestones := []models.Milestone{}
	for rows.Next() {
		var m models.Milestone
		if err := rows.Scan(&m.ID, &m.UserID, &m.Type, &m.Title, &m.Message, &m.IsCelebrated, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

// Celebrate flips is_celebrated false -> true exactly once. Re-celebrating
// an acknowledged milestone is a no-op.
func (s *MilestoneService) Celebrate(milestoneID, userID uuid.UUID) error {
	result, err := s.db.Exec(`
		UPDATE milestones SET is_celebrated = TRUE
		WHERE id = $1 AND user_id = $2 AND is_celebrated = FALSE`,
		milestoneID, userID)
	if err != nil {
		return fmt.Errorf("failed to celebrate milestone: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either unknown or already celebrated; distinguish for the caller.
		var exists bool
		if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM milestones WHERE id = $1 AND user_id = $2)`,
			milestoneID, userID).Scan(&exists); err != nil && err != sql.ErrNoRows {
			return err
		}
		if !exists {
			return fmt.Errorf("milestone not found")
		}
	}
	return nil
}
