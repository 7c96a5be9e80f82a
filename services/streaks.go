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

// Streak milestone boundaries and the bonus points paid on first crossing.
var streakMilestones = []int{7, 30, 100, 365}

var streakBonusPoints = map[int]int64{
	7:   25,
	30:  100,
	100: 300,
	365: 1000,
}

const dailyActivityPoints = 2

// StreakService maintains consecutive-day activity streaks. Each call is a
// single read-modify-write on the user's streak row. The notifier may be
// nil when push delivery is not configured.
type StreakService struct {
	db       *database.DB
	notifier *NotificationService
}

func NewStreakService(db *database.DB, notifier *NotificationService) *StreakService {
	return &StreakService{db: db, notifier: notifier}
}

// advanceStreak applies one activity day to a streak. Returns the updated
// streak, the milestone boundaries crossed by this step, and whether the
// day counted at all (false for a repeat of the same day).
func advanceStreak(s models.Streak, day time.Time) (models.Streak, []int, bool) {
	day = truncateToDay(day)

	if s.LastActivityDate != nil {
		last := truncateToDay(*s.LastActivityDate)
		if last.Equal(day) {
			return s, nil, false
		}
		if last.AddDate(0, 0, 1).Equal(day) {
			s.CurrentStreak++
		} else {
			s.CurrentStreak = 1
		}
	} else {
		s.CurrentStreak = 1
	}

	s.LastActivityDate = &day
	s.TotalDays++
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}

	var crossed []int
	for _, boundary := range streakMilestones {
		if s.CurrentStreak == boundary {
			crossed = append(crossed, boundary)
		}
	}
	return s, crossed, true
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RecordActivity counts activityDate toward the user's streak: same day is
// a no-op, the next day extends the streak, a gap resets it to 1. Counted
// days earn a small ledger credit keyed by date, and first-time milestone
// crossings emit a streak_milestone plus a bonus credit keyed by boundary,
// so replays of the same login event never double-pay.
func (s *StreakService) RecordActivity(userID uuid.UUID, activityDate time.Time) (*models.Streak, error) {
	var updated models.Streak
	var celebrated []int
	err := withRetry("RecordActivity", func() error {
		celebrated = nil
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`INSERT INTO streaks (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
			return fmt.Errorf("failed to ensure streak row: %w", err)
		}

		var streak models.Streak
		err = tx.QueryRow(`
			SELECT user_id, current_streak, longest_streak, total_days, last_activity_date
			FROM streaks WHERE user_id = $1 FOR UPDATE`, userID,
		).Scan(&streak.UserID, &streak.CurrentStreak, &streak.LongestStreak, &streak.TotalDays, &streak.LastActivityDate)
		if err == sql.ErrNoRows {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock streak row: %w", err)
		}

		next, crossed, counted := advanceStreak(streak, activityDate)
		if !counted {
			updated = streak
			return tx.Commit()
		}

		_, err = tx.Exec(`
			UPDATE streaks SET current_streak = $1, longest_streak = $2, total_days = $3, last_activity_date = $4
			WHERE user_id = $5`,
			next.CurrentStreak, next.LongestStreak, next.TotalDays, next.LastActivityDate, userID)
		if err != nil {
			return fmt.Errorf("failed to update streak: %w", err)
		}

		day := next.LastActivityDate.Format("2006-01-02")
		_, created, err := insertTransaction(tx, userID, dailyActivityPoints, models.TxnEarnLoginStreak,
			"login", day, fmt.Sprintf("Daily activity on %s", day), nil)
		if err != nil {
			return err
		}
		if created {
			if err := bumpPointsCache(tx, userID, dailyActivityPoints); err != nil {
				return err
			}
		}

		for _, boundary := range crossed {
			bonus := streakBonusPoints[boundary]
			_, first, err := insertTransaction(tx, userID, bonus, models.TxnEarnLoginStreak,
				"streak", fmt.Sprintf("%d", boundary),
				fmt.Sprintf("%d-day streak bonus", boundary), nil)
			if err != nil {
				return err
			}
			if !first {
				// The member has been here before; the milestone was
				// already celebrated on the first crossing.
				continue
			}
			if err := bumpPointsCache(tx, userID, bonus); err != nil {
				return err
			}
			if _, err := insertMilestone(tx, userID, models.MilestoneStreak,
				fmt.Sprintf("%d-day streak!", boundary),
				fmt.Sprintf("You have been active %d days in a row.", boundary)); err != nil {
				return err
			}
			celebrated = append(celebrated, boundary)
		}

		updated = next
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	for _, boundary := range celebrated {
		s.notifyStreakMilestone(userID, boundary)
	}
	return &updated, nil
}

// notifyStreakMilestone pushes a freshly crossed streak milestone after the
// transaction that recorded it has committed. Failures are logged, never
// propagated.
func (s *StreakService) notifyStreakMilestone(userID uuid.UUID, boundary int) {
	if s.notifier == nil {
		return
	}
	var pushToken *string
	if err := s.db.QueryRow(`SELECT push_token FROM users WHERE id = $1`, userID).Scan(&pushToken); err != nil {
		log.Printf("notifyStreakMilestone: failed to load push token for %s: %v", userID, err)
		return
	}
	if pushToken == nil || *pushToken == "" {
		return
	}
	err := s.notifier.SendMilestoneNotification(*pushToken, models.MilestoneStreak,
		fmt.Sprintf("%d-day streak!", boundary),
		fmt.Sprintf("You have been active %d days in a row.", boundary))
	if err != nil {
		log.Printf("notifyStreakMilestone: push to %s failed: %v", userID, err)
	}
}

// GetStreak returns the user's streak row, zero-valued if none exists yet.
func (s *StreakService) GetStreak(userID uuid.UUID) (*models.Streak, error) {
	var streak models.Streak
	err := s.db.QueryRow(`
		SELECT user_id, current_streak, longest_streak, total_days, last_activity_date
		FROM streaks WHERE user_id = $1`, userID,
	).Scan(&streak.UserID, &streak.CurrentStreak, &streak.LongestStreak, &streak.TotalDays, &streak.LastActivityDate)
	if err == sql.ErrNoRows {
		return &models.Streak{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load streak: %w", err)
	}
	return &streak, nil
}
