package authhandler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"teamleave/internal/domain/auth"
	"teamleave/internal/transport/http/api"
	"teamleave/internal/transport/http/middleware"
	"teamleave/internal/transport/http/shared"
)

type Handler struct {
	Service *auth.Service
}

func NewHandler(service *auth.Service) *Handler {
	return &Handler{Service: service}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	v := shared.NewValidator()
	v.Required("email", payload.Email, "is required")
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, reqID) {
		return
	}

	result, err := h.Service.Login(r.Context(), strings.ToLower(payload.Email), payload.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}
	if err != nil {
		slog.Error("login failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "login_failed", "failed to sign in", reqID)
		return
	}
	api.Success(w, result, reqID)
}

// HandleMe echoes the identity carried by the bearer token.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	perms := make([]string, 0, len(auth.RolePermissions[user.RoleName]))
	perms = append(perms, auth.RolePermissions[user.RoleName]...)
	api.Success(w, map[string]any{
		"userId":      user.UserID,
		"teamId":      user.TeamID,
		"role":        user.RoleName,
		"permissions": perms,
	}, middleware.GetRequestID(r.Context()))
}
