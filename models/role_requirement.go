package models

// RoleRequirement holds the thresholds a member must meet before advancing
// into the given role. A threshold of zero is treated as not configured and
// is automatically satisfied. AdvancementMode, when set, overrides the
// organization-wide mode for this role only.
type RoleRequirement struct {
	Role               MembershipRole `json:"role" db:"role"`
	Level              int            `json:"level" db:"level"`
	PointsRequired     int64          `json:"points_required" db:"points_required"`
	ReferralsRequired  int            `json:"referrals_required" db:"referrals_required"`
	TasksRequired      int            `json:"tasks_required" db:"tasks_required"`
	TenureDaysRequired int            `json:"tenure_days_required" db:"tenure_days_required"`
	AdvancementMode    *string        `json:"advancement_mode,omitempty" db:"advancement_mode"`
}

func (RoleRequirement) TableName() string {
	return "role_requirements"
}

func (RoleRequirement) CreateTableSQL() string {
	return `
	CREATE TABLE IF NOT EXISTS role_requirements (
		role TEXT PRIMARY KEY,
		level INTEGER NOT NULL UNIQUE,
		points_required BIGINT NOT NULL DEFAULT 0,
		referrals_required INTEGER NOT NULL DEFAULT 0,
		tasks_required INTEGER NOT NULL DEFAULT 0,
		tenure_days_required INTEGER NOT NULL DEFAULT 0,
		advancement_mode TEXT CHECK (advancement_mode IN ('automatic', 'approval_required'))
	);`
}
