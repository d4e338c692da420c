package authhandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamleave/internal/domain/auth"
	"teamleave/internal/transport/http/middleware"
)

type fakeUsers struct {
	users map[string]auth.AuthUser
}

func (f *fakeUsers) FindActiveUserByEmail(_ context.Context, email string) (auth.AuthUser, error) {
	u, ok := f.users[email]
	if !ok {
		return auth.AuthUser{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) PasswordHash(context.Context, string) (string, error) {
	return "", auth.ErrUserNotFound
}

func (f *fakeUsers) UpdateLastLogin(context.Context, string) error {
	return nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	hash, err := auth.HashPassword("Passw0rd!")
	require.NoError(t, err)
	store := &fakeUsers{users: map[string]auth.AuthUser{
		"lead@example.com": {ID: "lead-1", TeamID: "team-1", RoleName: auth.RoleTeamLeader, Password: hash},
	}}
	return NewHandler(auth.NewService(store, "test-secret", time.Hour))
}

func TestHandleLogin(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "success", body: `{"email":"Lead@Example.com","password":"Passw0rd!"}`, status: http.StatusOK},
		{name: "wrong password", body: `{"email":"lead@example.com","password":"nope"}`, status: http.StatusUnauthorized, code: "invalid_credentials"},
		{name: "unknown user", body: `{"email":"who@example.com","password":"Passw0rd!"}`, status: http.StatusUnauthorized, code: "invalid_credentials"},
		{name: "missing password", body: `{"email":"lead@example.com"}`, status: http.StatusBadRequest, code: "validation_error"},
		{name: "malformed", body: `{"email":`, status: http.StatusBadRequest, code: "invalid_payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleLogin(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body)))
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			var env struct {
				Data  auth.LoginResult `json:"data"`
				Error *struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			if tt.code != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.code, env.Error.Code)
				return
			}
			claims, err := auth.ParseToken("test-secret", env.Data.Token)
			require.NoError(t, err)
			assert.Equal(t, "lead-1", claims.UserID)
			assert.Equal(t, "team-1", claims.TeamID)
			assert.Equal(t, auth.RoleTeamLeader, env.Data.Role)
		})
	}
}

func TestHandleMe(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleMe(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), auth.UserContext{UserID: "u1", TeamID: "team-1", RoleName: auth.RoleMember}))
	rec = httptest.NewRecorder()
	h.HandleMe(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"member"`)
	assert.Contains(t, rec.Body.String(), auth.PermLeaveWrite)
	assert.NotContains(t, rec.Body.String(), auth.PermLeaveApprove)
}
