package services

import (
	"fmt"
	"sort"

	"github.com/ailubes/veterans-orden-sub005/database"
	"github.com/ailubes/veterans-orden-sub005/models"
)

// RoleCatalog is the ordered membership ladder with each role's
// advancement requirements. Loaded once at startup and read-only after
// that; changing the ladder takes a restart.
type RoleCatalog struct {
	byRole  map[models.MembershipRole]models.RoleRequirement
	ordered []models.MembershipRole
}

// LoadRoleCatalog reads role_requirements and builds the ladder.
func LoadRoleCatalog(db *database.DB) (*RoleCatalog, error) {
	rows, err := db.Query(`
		SELECT role, level, points_required, referrals_required, tasks_required, tenure_days_required, advancement_mode
		FROM role_requirements ORDER BY level ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to load role requirements: %w", err)
	}
	defer rows.Close()

	var reqs []models.RoleRequirement
	for rows.Next() {
		var r models.RoleRequirement
		var roleStr string
		if err := rows.Scan(&roleStr, &r.Level, &r.PointsRequired, &r.ReferralsRequired, &r.TasksRequired, &r.TenureDaysRequired, &r.AdvancementMode); err != nil {
			return nil, fmt.Errorf("failed to scan role requirement: %w", err)
		}
		role, err := models.ParseMembershipRole(roleStr)
		if err != nil {
			return nil, fmt.Errorf("role_requirements holds %w", err)
		}
		r.Role = role
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("role_requirements table is empty")
	}
	return NewRoleCatalog(reqs)
}

// NewRoleCatalog builds a catalog from requirement rows. Levels must be
// unique; ordering follows level ascending.
func NewRoleCatalog(reqs []models.RoleRequirement) (*RoleCatalog, error) {
	c := &RoleCatalog{byRole: make(map[models.MembershipRole]models.RoleRequirement, len(reqs))}
	for _, r := range reqs {
		if _, dup := c.byRole[r.Role]; dup {
			return nil, fmt.Errorf("duplicate role %q in catalog", r.Role)
		}
		c.byRole[r.Role] = r
		c.ordered = append(c.ordered, r.Role)
	}
	sort.Slice(c.ordered, func(i, j int) bool {
		return c.byRole[c.ordered[i]].Level < c.byRole[c.ordered[j]].Level
	})
	for i := 1; i < len(c.ordered); i++ {
		if c.byRole[c.ordered[i]].Level == c.byRole[c.ordered[i-1]].Level {
			return nil, fmt.Errorf("roles %q and %q share level %d", c.ordered[i-1], c.ordered[i], c.byRole[c.ordered[i]].Level)
		}
	}
	return c, nil
}

// NextRole returns the role one level above current, or false when current
// is terminal or unknown.
func (c *RoleCatalog) NextRole(current models.MembershipRole) (models.MembershipRole, bool) {
	for i, role := range c.ordered {
		if role == current {
			if i+1 < len(c.ordered) {
				return c.ordered[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

// RequirementsFor returns the requirement row for the given role.
func (c *RoleCatalog) RequirementsFor(role models.MembershipRole) (models.RoleRequirement, bool) {
	r, ok := c.byRole[role]
	return r, ok
}

// LevelOf returns the role's ladder position, 0 if unknown.
func (c *RoleCatalog) LevelOf(role models.MembershipRole) int {
	if r, ok := c.byRole[role]; ok {
		return r.Level
	}
	return 0
}

// Roles returns the ladder bottom-up.
func (c *RoleCatalog) Roles() []models.MembershipRole {
	out := make([]models.MembershipRole, len(c.ordered))
	copy(out, c.ordered)
	return out
}
