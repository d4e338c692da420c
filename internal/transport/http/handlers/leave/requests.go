package leavehandler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"teamleave/internal/domain/audit"
	"teamleave/internal/domain/leave"
	"teamleave/internal/platform/jobs"
	"teamleave/internal/platform/metrics"
	"teamleave/internal/transport/http/api"
	"teamleave/internal/transport/http/middleware"
	"teamleave/internal/transport/http/shared"
)

type spanPayload struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Reason    string `json:"reason"`
}

type overridePayload struct {
	Password string `json:"password"`
}

func (p spanPayload) validate(v *shared.Validator) (leave.LeaveRequest, bool) {
	start, okStart := v.Date("startDate", p.StartDate)
	end, okEnd := v.Date("endDate", p.EndDate)
	v.MaxLen("reason", p.Reason, 500)
	if !okStart || !okEnd {
		return leave.LeaveRequest{}, false
	}
	return leave.LeaveRequest{StartDate: start, EndDate: end, Reason: strings.TrimSpace(p.Reason)}, !v.HasIssues()
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var payload spanPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	span, valid := payload.validate(v)
	if !valid {
		v.Reject(w, middleware.GetRequestID(r.Context()))
		return
	}

	preview, err := h.Service.Preview(r.Context(), actor.UserID, span.StartDate, span.EndDate)
	if err != nil {
		writeServiceError(w, r, err, "leave_preview_failed", "failed to preview leave")
		return
	}
	api.Success(w, preview, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	requestHash := middleware.RequestHash(raw)
	if idemKey != "" {
		stored, found, err := h.Idempotency.Check(r.Context(), actor.UserID, "leave.requests.create", idemKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key reused with a different payload", reqID)
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", "err", err)
		}
		if found {
			api.Created(w, stored, reqID)
			return
		}
	}

	var payload spanPayload
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	v := shared.NewValidator()
	span, valid := payload.validate(v)
	if !valid {
		v.Reject(w, reqID)
		return
	}

	result, err := h.Service.Submit(r.Context(), actor.UserID, span.StartDate, span.EndDate, span.Reason)
	if err != nil {
		writeServiceError(w, r, err, "leave_request_create_failed", "failed to create leave request")
		return
	}
	h.record(r, actor, result.Request.TeamID, audit.ActionLeaveSubmit, "leave_request", result.Request.ID, nil, result.Request)

	if idemKey != "" {
		if body, err := json.Marshal(result); err == nil {
			if err := h.Idempotency.Save(r.Context(), actor.UserID, "leave.requests.create", idemKey, requestHash, body); err != nil {
				slog.Warn("idempotency save failed", "err", err)
			}
		}
	}
	api.Created(w, result, reqID)
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	v := shared.NewValidator()
	filter := leave.RequestFilter{TeamID: q.Get("teamId"), OwnerID: q.Get("ownerId")}
	if status := q.Get("status"); status != "" {
		v.Enum("status", status, leave.Statuses, "must be pending, approved or rejected")
		filter.Statuses = []string{strings.ToLower(status)}
	}
	if raw := q.Get("from"); raw != "" {
		filter.From, _ = v.Date("from", raw)
	}
	if raw := q.Get("to"); raw != "" {
		filter.To, _ = v.Date("to", raw)
	}
	v.DateOrder("from", filter.From, "to", filter.To)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	filter.Limit, filter.Offset = page.Limit, page.Offset

	out, err := h.Service.List(r.Context(), actor, filter)
	if err != nil {
		writeServiceError(w, r, err, "leave_requests_failed", "failed to list leave requests")
		return
	}
	if out == nil {
		out = []leave.LeaveRequest{}
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	req, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "requestID"))
	if err != nil {
		writeServiceError(w, r, err, "leave_request_failed", "failed to load leave request")
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRequestRanges(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	ranges, err := h.Service.WorkingRanges(r.Context(), actor, chi.URLParam(r, "requestID"))
	if err != nil {
		writeServiceError(w, r, err, "leave_ranges_failed", "failed to split leave request")
		return
	}
	api.Success(w, ranges, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	req, err := h.Service.Approve(r.Context(), actor, chi.URLParam(r, "requestID"))
	if err != nil {
		if errors.Is(err, leave.ErrConcurrentLimitExceeded) {
			h.Metrics.RecordDecision(metrics.DecisionCapacityConflict)
		}
		writeServiceError(w, r, err, "leave_approve_failed", "failed to approve leave request")
		return
	}
	h.Metrics.RecordDecision(metrics.DecisionApproved)
	h.record(r, actor, req.TeamID, audit.ActionLeaveApprove, "leave_request", req.ID, map[string]string{"status": leave.StatusPending}, req)
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleOverrideRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var payload overridePayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	requestID := chi.URLParam(r, "requestID")
	req, err := h.Service.ApproveWithOverride(r.Context(), actor, leave.OverrideAttempt{
		ApproverID: actor.UserID,
		Credential: payload.Password,
		LeaveID:    requestID,
	})
	if err != nil {
		if errors.Is(err, leave.ErrInvalidOverrideCredential) {
			h.Metrics.RecordDecision(metrics.DecisionOverrideDenied)
		}
		writeServiceError(w, r, err, "leave_override_failed", "failed to override leave request")
		return
	}
	h.Metrics.RecordDecision(metrics.DecisionOverrideGranted)
	h.record(r, actor, req.TeamID, audit.ActionLeaveOverride, "leave_request", req.ID, map[string]string{"status": leave.StatusPending}, req)
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	req, err := h.Service.Reject(r.Context(), actor, chi.URLParam(r, "requestID"))
	if err != nil {
		writeServiceError(w, r, err, "leave_reject_failed", "failed to reject leave request")
		return
	}
	h.Metrics.RecordDecision(metrics.DecisionRejected)
	h.record(r, actor, req.TeamID, audit.ActionLeaveReject, "leave_request", req.ID, map[string]string{"status": leave.StatusPending}, req)
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestID")
	before, err := h.Service.Get(r.Context(), actor, requestID)
	if err != nil {
		writeServiceError(w, r, err, "leave_delete_failed", "failed to delete leave request")
		return
	}
	if err := h.Service.Delete(r.Context(), actor, requestID); err != nil {
		writeServiceError(w, r, err, "leave_delete_failed", "failed to delete leave request")
		return
	}
	h.record(r, actor, before.TeamID, audit.ActionLeaveDelete, "leave_request", requestID, before, nil)
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	year, valid := shared.QueryYear(r, h.now())
	if !valid {
		api.Fail(w, http.StatusBadRequest, "invalid_year", "year must be a four digit number", middleware.GetRequestID(r.Context()))
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = actor.UserID
	}

	balance, err := h.Service.Balance(r.Context(), actor, userID, year)
	if err != nil {
		writeServiceError(w, r, err, "leave_balance_failed", "failed to compute leave balance")
		return
	}
	api.Success(w, balance, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	teamID := q.Get("teamId")
	if teamID == "" {
		teamID = actor.TeamID
	}
	v := shared.NewValidator()
	v.Required("teamId", teamID, "is required")
	from, _ := v.Date("from", q.Get("from"))
	to, _ := v.Date("to", q.Get("to"))
	v.DateOrder("from", from, "to", to)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	entries, err := h.Service.Calendar(r.Context(), actor, teamID, from, to)
	if err != nil {
		writeServiceError(w, r, err, "leave_calendar_failed", "failed to load leave calendar")
		return
	}
	api.Success(w, entries, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRunCarryOver(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	if h.Jobs == nil {
		api.Fail(w, http.StatusServiceUnavailable, "jobs_unavailable", "job runner not configured", middleware.GetRequestID(r.Context()))
		return
	}
	year := h.now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1970 || parsed > 9999 {
			api.Fail(w, http.StatusBadRequest, "invalid_year", "year must be a four digit number", middleware.GetRequestID(r.Context()))
			return
		}
		year = parsed
	}

	summary, err := h.Jobs.RunNow(r.Context(), jobs.JobLeaveCarryOver, h.Jobs.CarryOver(year))
	if err != nil {
		writeServiceError(w, r, err, "carry_over_failed", "failed to apply carry-over")
		return
	}
	h.record(r, actor, "", audit.ActionCarryOverRun, "leave_carry_over", strconv.Itoa(year), nil, summary)
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}
