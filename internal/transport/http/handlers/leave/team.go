package leavehandler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"teamleave/internal/domain/audit"
	"teamleave/internal/domain/leave"
	"teamleave/internal/domain/shift"
	"teamleave/internal/transport/http/api"
	"teamleave/internal/transport/http/middleware"
	"teamleave/internal/transport/http/shared"
)

type policyPayload struct {
	AnnualLeaveDays      int                   `json:"annualLeaveDays"`
	CarryOverDays        int                   `json:"carryOverDays"`
	AllowNegativeBalance bool                  `json:"allowNegativeBalance"`
	ConcurrentLeave      leave.ConcurrentLeave `json:"concurrentLeave"`
}

type patternPayload struct {
	ShiftGroup string `json:"shiftGroup"`
	Type       string `json:"type"`
	WorkDays   int    `json:"workDays"`
	OffDays    int    `json:"offDays"`
	Pattern    string `json:"pattern"`
	// ReferenceDate is a calendar date; any time part is ignored.
	ReferenceDate string `json:"referenceDate"`
}

func (h *Handler) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	policy, err := h.Service.TeamPolicy(r.Context(), actor, chi.URLParam(r, "teamID"))
	if err != nil {
		writeServiceError(w, r, err, "team_policy_failed", "failed to load team policy")
		return
	}
	api.Success(w, policy, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	teamID := chi.URLParam(r, "teamID")
	var payload policyPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	before, err := h.Service.TeamPolicy(r.Context(), actor, teamID)
	if err != nil {
		writeServiceError(w, r, err, "team_policy_update_failed", "failed to update team policy")
		return
	}
	updated, err := h.Service.UpdateTeamPolicy(r.Context(), actor, leave.TeamLeavePolicy{
		TeamID:               teamID,
		AnnualLeaveDays:      payload.AnnualLeaveDays,
		CarryOverDays:        payload.CarryOverDays,
		AllowNegativeBalance: payload.AllowNegativeBalance,
		ConcurrentLeave:      payload.ConcurrentLeave,
	})
	if err != nil {
		writeServiceError(w, r, err, "team_policy_update_failed", "failed to update team policy")
		return
	}
	h.record(r, actor, teamID, audit.ActionPolicyUpdate, "team_leave_policy", teamID, before, updated)
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (p patternPayload) toPattern(v *shared.Validator) *shift.Pattern {
	kind := shift.Kind(strings.ToLower(strings.TrimSpace(p.Type)))
	if kind == "" {
		return nil
	}
	v.Enum("type", string(kind), []string{string(shift.KindRegular), string(shift.KindRotation), string(shift.KindCustom)}, "must be regular, rotation or custom")

	pattern := &shift.Pattern{
		Kind:     kind,
		WorkDays: p.WorkDays,
		OffDays:  p.OffDays,
		Custom:   strings.ToUpper(strings.TrimSpace(p.Pattern)),
	}
	if strings.TrimSpace(p.ReferenceDate) != "" {
		if ref, ok := v.Date("referenceDate", p.ReferenceDate); ok {
			pattern.ReferenceDate = &ref
		}
	}
	return pattern
}

func (h *Handler) handleSetPattern(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	teamID, userID := chi.URLParam(r, "teamID"), chi.URLParam(r, "userID")
	var payload patternPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	v.MaxLen("shiftGroup", payload.ShiftGroup, 64)
	pattern := payload.toPattern(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	member, err := h.Service.SetMemberPattern(r.Context(), actor, teamID, userID, strings.TrimSpace(payload.ShiftGroup), pattern)
	if err != nil {
		writeServiceError(w, r, err, "member_pattern_failed", "failed to update shift pattern")
		return
	}
	h.record(r, actor, teamID, audit.ActionPatternUpdate, "user", userID, nil, member)
	api.Success(w, member, middleware.GetRequestID(r.Context()))
}
