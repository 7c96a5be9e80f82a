package services

import "github.com/ailubes/veterans-orden-sub005/models"

// UserStats are the live numbers an eligibility decision is made from.
// They are always recomputed from source tables, never taken from the
// cached counters on the user row.
type UserStats struct {
	Points         int64 `json:"points"`
	Referrals      int   `json:"referrals"`
	TasksCompleted int   `json:"tasks_completed"`
	TenureDays     int   `json:"tenure_days"`
	CurrentStreak  int   `json:"current_streak"`
}

// ProgressMetric is one threshold with how far along the member is.
type ProgressMetric struct {
	Current  int64 `json:"current"`
	Required int64 `json:"required"`
}

func (m ProgressMetric) met() bool {
	return m.Required == 0 || m.Current >= m.Required
}

// Progress reports each configured threshold, eligible or not, so the UI
// can always render partial progress.
type Progress struct {
	Points     ProgressMetric `json:"points"`
	Referrals  ProgressMetric `json:"referrals"`
	Tasks      ProgressMetric `json:"tasks"`
	TenureDays ProgressMetric `json:"tenure_days"`
}

type EligibilityResult struct {
	IsEligible bool     `json:"is_eligible"`
	Progress   Progress `json:"progress"`
}

// Evaluate checks stats against a role requirement. All configured
// thresholds must be met; a threshold of zero is automatically satisfied.
func Evaluate(stats UserStats, req models.RoleRequirement) EligibilityResult {
	progress := Progress{
		Points:     ProgressMetric{Current: stats.Points, Required: req.PointsRequired},
		Referrals:  ProgressMetric{Current: int64(stats.Referrals), Required: int64(req.ReferralsRequired)},
		Tasks:      ProgressMetric{Current: int64(stats.TasksCompleted), Required: int64(req.TasksRequired)},
		TenureDays: ProgressMetric{Current: int64(stats.TenureDays), Required: int64(req.TenureDaysRequired)},
	}
	eligible := progress.Points.met() && progress.Referrals.met() && progress.Tasks.met() && progress.TenureDays.met()
	return EligibilityResult{IsEligible: eligible, Progress: progress}
}
