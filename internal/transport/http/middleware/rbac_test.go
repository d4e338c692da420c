package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"teamleave/internal/domain/auth"
)

func TestRequirePermission(t *testing.T) {
	handler := RequirePermission(auth.PermLeaveApprove, auth.StaticPermissions{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name string
		user *auth.UserContext
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"member", &auth.UserContext{UserID: "u1", RoleName: auth.RoleMember}, http.StatusForbidden},
		{"leader", &auth.UserContext{UserID: "l1", RoleName: auth.RoleTeamLeader}, http.StatusNoContent},
		{"admin", &auth.UserContext{UserID: "a1", RoleName: auth.RoleAdmin}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.user != nil {
				req = req.WithContext(WithUser(req.Context(), *tt.user))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
