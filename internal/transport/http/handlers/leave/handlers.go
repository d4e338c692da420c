package leavehandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"teamleave/internal/domain/audit"
	"teamleave/internal/domain/auth"
	"teamleave/internal/domain/leave"
	"teamleave/internal/domain/shift"
	"teamleave/internal/platform/jobs"
	"teamleave/internal/platform/metrics"
	"teamleave/internal/transport/http/api"
	"teamleave/internal/transport/http/middleware"
	"teamleave/internal/transport/http/shared"
)

type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

type Handler struct {
	Service     *leave.Service
	Perms       middleware.PermissionStore
	Audit       AuditRecorder
	Jobs        *jobs.Service
	Metrics     *metrics.Collector
	Idempotency *middleware.IdempotencyStore
	Now         func() time.Time
}

func NewHandler(service *leave.Service, perms middleware.PermissionStore, auditSvc AuditRecorder, jobsSvc *jobs.Service, collector *metrics.Collector, idem *middleware.IdempotencyStore) *Handler {
	return &Handler{
		Service:     service,
		Perms:       perms,
		Audit:       auditSvc,
		Jobs:        jobsSvc,
		Metrics:     collector,
		Idempotency: idem,
		Now:         time.Now,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Post("/preview", h.handlePreview)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/requests", h.handleListRequests)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Post("/requests", h.handleCreateRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/requests/{requestID}", h.handleGetRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/requests/{requestID}/ranges", h.handleRequestRanges)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/requests/{requestID}/approve", h.handleApproveRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/requests/{requestID}/override", h.handleOverrideRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/requests/{requestID}/reject", h.handleRejectRequest)
		r.With(middleware.RequirePermission(auth.PermSystemAdmin, h.Perms)).Delete("/requests/{requestID}", h.handleDeleteRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/balance", h.handleBalance)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/balance/statement.pdf", h.handleBalanceStatement)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/calendar", h.handleCalendar)
		r.With(middleware.RequirePermission(auth.PermSystemAdmin, h.Perms)).Post("/carry-over/run", h.handleRunCarryOver)
	})
	r.Route("/teams/{teamID}", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/policy", h.handleGetPolicy)
		r.With(middleware.RequirePermission(auth.PermTeamWrite, h.Perms)).Put("/policy", h.handleUpdatePolicy)
		r.With(middleware.RequirePermission(auth.PermTeamWrite, h.Perms)).Put("/members/{userID}/pattern", h.handleSetPattern)
	})
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func actorFrom(user auth.UserContext) leave.Actor {
	return leave.Actor{UserID: user.UserID, TeamID: user.TeamID, RoleName: user.RoleName}
}

// currentActor writes a 401 and returns false when the request is anonymous.
func currentActor(w http.ResponseWriter, r *http.Request) (leave.Actor, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return leave.Actor{}, false
	}
	return actorFrom(user), true
}

func (h *Handler) record(r *http.Request, actor leave.Actor, teamID, action, entityType, entityID string, before, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), audit.Entry{
		ActorID:    actor.UserID,
		TeamID:     teamID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
		Before:     before,
		After:      after,
	}); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}

// writeServiceError maps domain errors onto the response envelope. Anything
// unrecognised becomes a 500 with the caller's fallback code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallbackCode, fallbackMessage string) {
	reqID := middleware.GetRequestID(r.Context())

	var limitErr *leave.ConcurrentLimitError
	var patternErr *shift.InvalidPatternError
	switch {
	case errors.As(err, &limitErr):
		api.FailWithDetails(w, http.StatusConflict, "concurrent_limit_exceeded", "concurrent leave limit reached",
			map[string]int{"conflictingCount": limitErr.ConflictingCount, "limit": limitErr.Limit}, reqID)
	case errors.As(err, &patternErr):
		api.FailWithDetails(w, http.StatusBadRequest, "invalid_pattern", "invalid shift pattern",
			map[string]string{"field": patternErr.Field, "reason": patternErr.Reason}, reqID)
	case errors.Is(err, shift.ErrInvalidPatternConfig):
		api.Fail(w, http.StatusBadRequest, "invalid_pattern", "invalid shift pattern", reqID)
	case errors.Is(err, shift.ErrInvalidDateRange):
		api.Fail(w, http.StatusBadRequest, "invalid_dates", "start date must not be after end date", reqID)
	case errors.Is(err, leave.ErrInvalidPolicy):
		api.Fail(w, http.StatusBadRequest, "invalid_policy", err.Error(), reqID)
	case errors.Is(err, leave.ErrNoWorkingDays):
		api.Fail(w, http.StatusBadRequest, "no_working_days", "leave span contains no working days", reqID)
	case errors.Is(err, leave.ErrOverlappingLeave):
		api.Fail(w, http.StatusConflict, "overlapping_leave", "leave overlaps an existing request", reqID)
	case errors.Is(err, leave.ErrInvalidOverrideCredential):
		api.Fail(w, http.StatusForbidden, "invalid_override_credential", "credential verification failed", reqID)
	case errors.Is(err, leave.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed for this team", reqID)
	case errors.Is(err, leave.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "not found", reqID)
	case errors.Is(err, leave.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", "leave request is no longer pending", reqID)
	default:
		slog.Warn("leave request failed", "code", fallbackCode, "path", r.URL.Path, "err", err)
		api.Fail(w, http.StatusInternalServerError, fallbackCode, fallbackMessage, reqID)
	}
}
