package auth

import (
	"context"
	"testing"
)

func TestRolePermissionsSubset(t *testing.T) {
	allowed := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		allowed[perm] = struct{}{}
	}

	for role, perms := range RolePermissions {
		if len(perms) == 0 {
			t.Fatalf("role %s has no permissions", role)
		}
		for _, perm := range perms {
			if _, ok := allowed[perm]; !ok {
				t.Fatalf("role %s has unknown permission %s", role, perm)
			}
		}
	}
}

func TestDefaultPermissionsUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		if _, ok := seen[perm]; ok {
			t.Fatalf("duplicate permission %s", perm)
		}
		seen[perm] = struct{}{}
	}
}

func TestStaticPermissions(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		role, perm string
		want       bool
	}{
		{RoleMember, PermLeaveWrite, true},
		{RoleMember, PermLeaveApprove, false},
		{RoleTeamLeader, PermLeaveApprove, true},
		{RoleTeamLeader, PermSystemAdmin, false},
		{RoleAdmin, PermSystemAdmin, true},
		{"unknown", PermLeaveRead, false},
	}
	for _, tt := range tests {
		got, err := StaticPermissions{}.HasPermission(ctx, tt.role, tt.perm)
		if err != nil || got != tt.want {
			t.Fatalf("HasPermission(%s, %s) = %v, %v", tt.role, tt.perm, got, err)
		}
	}
}
