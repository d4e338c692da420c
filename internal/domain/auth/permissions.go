package auth

import "context"

const (
	RoleMember     = "member"
	RoleTeamLeader = "team_leader"
	RoleAdmin      = "admin"
)

const (
	PermLeaveRead    = "leave.read"
	PermLeaveWrite   = "leave.write"
	PermLeaveApprove = "leave.approve"
	PermTeamWrite    = "team.write"
	PermSystemAdmin  = "admin.system"
)

var DefaultPermissions = []string{
	PermLeaveRead,
	PermLeaveWrite,
	PermLeaveApprove,
	PermTeamWrite,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleMember: {
		PermLeaveRead,
		PermLeaveWrite,
	},
	RoleTeamLeader: {
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermTeamWrite,
	},
	RoleAdmin: DefaultPermissions,
}

type UserContext struct {
	UserID   string
	TeamID   string
	RoleName string
}

// StaticPermissions resolves permissions from RolePermissions without a
// database round trip.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, roleName, permission string) (bool, error) {
	for _, perm := range RolePermissions[roleName] {
		if perm == permission {
			return true, nil
		}
	}
	return false, nil
}

func ValidRole(roleName string) bool {
	_, ok := RolePermissions[roleName]
	return ok
}
