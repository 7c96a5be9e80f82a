package models

import "fmt"

// MembershipRole is an ordered stage of member status within the organization.
// It is distinct from the back-office access role on the user record.
type MembershipRole string

const (
	RoleSupporter MembershipRole = "supporter"
	RoleMember    MembershipRole = "member"
	RoleActivist  MembershipRole = "activist"
	RoleLeader    MembershipRole = "leader"
)

var roleLevels = map[MembershipRole]int{
	RoleSupporter: 1,
	RoleMember:    2,
	RoleActivist:  3,
	RoleLeader:    4,
}

// Level returns the position of the role in the membership ladder.
// Higher level means more senior. Unknown roles return 0.
func (r MembershipRole) Level() int {
	return roleLevels[r]
}

// Valid reports whether r is one of the known membership roles.
func (r MembershipRole) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

func (r MembershipRole) String() string {
	return string(r)
}

// ParseMembershipRole converts a stored string into a MembershipRole.
func ParseMembershipRole(s string) (MembershipRole, error) {
	r := MembershipRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown membership role %q", s)
	}
	return r, nil
}

// Advancement modes. The organization-wide default lives in
// organization_settings; role_requirements rows may override it per role.
const (
	AdvancementAutomatic        = "automatic"
	AdvancementApprovalRequired = "approval_required"
)
