package leave

import (
	"context"
	"errors"
	"time"

	"teamleave/internal/domain/auth"
	"teamleave/internal/domain/shift"
	"teamleave/internal/platform/requestctx"
)

type Service struct {
	Store    StoreAPI
	Override *OverrideAuthorizer
	// SubtractPending selects the balance variant that also deducts pending days.
	SubtractPending bool
	Now             func() time.Time
}

func NewService(store StoreAPI, override *OverrideAuthorizer, subtractPending bool) *Service {
	return &Service{Store: store, Override: override, SubtractPending: subtractPending, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// canManageTeam holds for admins and for the leader of teamID.
func canManageTeam(actor Actor, teamID string) bool {
	switch actor.RoleName {
	case auth.RoleAdmin:
		return true
	case auth.RoleTeamLeader:
		return actor.TeamID != "" && actor.TeamID == teamID
	default:
		return false
	}
}

func (s *Service) policyFor(ctx context.Context, teamID string) (TeamLeavePolicy, error) {
	policy, err := s.Store.TeamPolicy(ctx, teamID)
	if errors.Is(err, ErrNotFound) {
		return DefaultPolicy(teamID), nil
	}
	return policy, err
}

func (s *Service) TeamPolicy(ctx context.Context, actor Actor, teamID string) (TeamLeavePolicy, error) {
	if actor.RoleName != auth.RoleAdmin && actor.TeamID != teamID {
		return TeamLeavePolicy{}, ErrForbidden
	}
	return s.policyFor(ctx, teamID)
}

func (s *Service) UpdateTeamPolicy(ctx context.Context, actor Actor, policy TeamLeavePolicy) (TeamLeavePolicy, error) {
	if !canManageTeam(actor, policy.TeamID) {
		return TeamLeavePolicy{}, ErrForbidden
	}
	if err := policy.Validate(); err != nil {
		return TeamLeavePolicy{}, err
	}
	if err := s.Store.UpsertTeamPolicy(ctx, policy); err != nil {
		return TeamLeavePolicy{}, err
	}
	return s.policyFor(ctx, policy.TeamID)
}

// SetMemberPattern validates the pattern on save; evaluation never rejects a
// stored pattern.
func (s *Service) SetMemberPattern(ctx context.Context, actor Actor, teamID, userID, shiftGroup string, pattern *shift.Pattern) (Member, error) {
	member, err := s.Store.Member(ctx, userID)
	if err != nil {
		return Member{}, err
	}
	if member.TeamID != teamID {
		return Member{}, ErrNotFound
	}
	if !canManageTeam(actor, member.TeamID) {
		return Member{}, ErrForbidden
	}
	if pattern != nil {
		if pattern.ReferenceDate != nil {
			ref := shift.Normalize(*pattern.ReferenceDate)
			pattern.ReferenceDate = &ref
		}
		if err := pattern.Validate(); err != nil {
			return Member{}, err
		}
	}
	if err := s.Store.SetMemberPattern(ctx, userID, shiftGroup, pattern); err != nil {
		return Member{}, err
	}
	member.ShiftGroup = shiftGroup
	member.Pattern = pattern
	return member, nil
}

type Preview struct {
	WorkingDays int               `json:"workingDays"`
	Ranges      []shift.DateRange `json:"ranges"`
	Capacity    CapacityResult    `json:"capacity"`
}

// Preview reports the working-day split of a prospective leave and whether it
// would currently fit within the team's concurrent-leave limit.
func (s *Service) Preview(ctx context.Context, ownerID string, start, end time.Time) (Preview, error) {
	member, err := s.Store.Member(ctx, ownerID)
	if err != nil {
		return Preview{}, err
	}
	ranges, err := shift.SplitIntoWorkingRanges(start, end, member.Pattern)
	if err != nil {
		return Preview{}, err
	}
	count, err := shift.CountWorkingDays(start, end, member.Pattern)
	if err != nil {
		return Preview{}, err
	}

	capacity, err := s.capacityPreview(ctx, LeaveRequest{
		OwnerID:    ownerID,
		TeamID:     member.TeamID,
		StartDate:  shift.Normalize(start),
		EndDate:    shift.Normalize(end),
		ShiftGroup: member.EffectiveShiftGroup(),
	})
	if err != nil {
		return Preview{}, err
	}
	return Preview{WorkingDays: count, Ranges: ranges, Capacity: capacity}, nil
}

func (s *Service) capacityPreview(ctx context.Context, candidate LeaveRequest) (CapacityResult, error) {
	if candidate.TeamID == "" {
		return CapacityResult{OK: true}, nil
	}
	policy, err := s.policyFor(ctx, candidate.TeamID)
	if err != nil {
		return CapacityResult{}, err
	}
	if !policy.ConcurrentLeave.Enabled {
		return CapacityResult{OK: true}, nil
	}
	existing, err := s.Store.ListRequests(ctx, RequestFilter{
		TeamID:   candidate.TeamID,
		Statuses: []string{StatusApproved},
		From:     candidate.StartDate,
		To:       candidate.EndDate,
	})
	if err != nil {
		return CapacityResult{}, err
	}
	return CheckCapacity(candidate, existing, policy), nil
}

type SubmitResult struct {
	Request  LeaveRequest   `json:"request"`
	Capacity CapacityResult `json:"capacity"`
}

// Submit creates a pending leave. The working-day count is fixed here from the
// owner's current pattern and is not recomputed if the pattern changes later.
// The capacity result is advisory; the binding check runs at approval.
func (s *Service) Submit(ctx context.Context, ownerID string, start, end time.Time, reason string) (SubmitResult, error) {
	start, end = shift.Normalize(start), shift.Normalize(end)
	if start.After(end) {
		return SubmitResult{}, shift.ErrInvalidDateRange
	}

	member, err := s.Store.Member(ctx, ownerID)
	if err != nil {
		return SubmitResult{}, err
	}
	if member.TeamID == "" {
		return SubmitResult{}, ErrForbidden
	}

	workingDays, err := shift.CountWorkingDays(start, end, member.Pattern)
	if err != nil {
		return SubmitResult{}, err
	}
	if workingDays == 0 {
		return SubmitResult{}, ErrNoWorkingDays
	}

	req := LeaveRequest{
		OwnerID:     ownerID,
		TeamID:      member.TeamID,
		StartDate:   start,
		EndDate:     end,
		Status:      StatusPending,
		WorkingDays: workingDays,
		ShiftGroup:  member.EffectiveShiftGroup(),
		Reason:      reason,
		CreatedAt:   s.now(),
	}
	// The overlap check and insert share the team lock so two submissions
	// from one owner cannot both pass.
	err = s.Store.InTeamTx(ctx, member.TeamID, func(ctx context.Context, tx TxStore) error {
		own, err := tx.OwnerOverlapping(ctx, ownerID, start, end)
		if err != nil {
			return err
		}
		if len(own) > 0 {
			return ErrOverlappingLeave
		}
		id, err := tx.CreateRequest(ctx, req)
		if err != nil {
			return err
		}
		req.ID = id
		return nil
	})
	if err != nil {
		return SubmitResult{}, err
	}

	capacity, err := s.capacityPreview(ctx, req)
	if err != nil {
		requestctx.Logger(ctx).Warn("leave submit capacity preview failed", "leaveId", req.ID, "err", err)
		capacity = CapacityResult{OK: true}
	}
	return SubmitResult{Request: req, Capacity: capacity}, nil
}

func (s *Service) Get(ctx context.Context, actor Actor, requestID string) (LeaveRequest, error) {
	req, err := s.Store.GetRequest(ctx, requestID)
	if err != nil {
		return LeaveRequest{}, err
	}
	if !canView(actor, req) {
		return LeaveRequest{}, ErrForbidden
	}
	return req, nil
}

func canView(actor Actor, req LeaveRequest) bool {
	if req.OwnerID == actor.UserID {
		return true
	}
	return canManageTeam(actor, req.TeamID)
}

// List scopes members to their own leaves and leaders to their team.
func (s *Service) List(ctx context.Context, actor Actor, filter RequestFilter) ([]LeaveRequest, error) {
	switch actor.RoleName {
	case auth.RoleAdmin:
	case auth.RoleTeamLeader:
		if filter.TeamID != "" && filter.TeamID != actor.TeamID {
			return nil, ErrForbidden
		}
		filter.TeamID = actor.TeamID
	default:
		filter.OwnerID = actor.UserID
	}
	return s.Store.ListRequests(ctx, filter)
}

// Approve runs the capacity check and the status change in one team-locked
// transaction. A conflict returns *ConcurrentLimitError and changes nothing.
func (s *Service) Approve(ctx context.Context, actor Actor, requestID string) (LeaveRequest, error) {
	return s.decide(ctx, actor, requestID, StatusApproved, false)
}

// ApproveWithOverride force-approves one leave after the approver re-enters
// their credential. A failed verification changes nothing.
func (s *Service) ApproveWithOverride(ctx context.Context, actor Actor, attempt OverrideAttempt) (LeaveRequest, error) {
	if attempt.ApproverID != actor.UserID {
		return LeaveRequest{}, ErrForbidden
	}
	req, err := s.Store.GetRequest(ctx, attempt.LeaveID)
	if err != nil {
		return LeaveRequest{}, err
	}
	if !canManageTeam(actor, req.TeamID) {
		return LeaveRequest{}, ErrForbidden
	}

	decision, err := s.Override.Authorize(ctx, attempt)
	if err != nil {
		return LeaveRequest{}, err
	}
	if !decision.Authorized {
		requestctx.Logger(ctx).Warn("leave override denied", "approverId", attempt.ApproverID, "leaveId", attempt.LeaveID, "reason", decision.Reason)
		return LeaveRequest{}, ErrInvalidOverrideCredential
	}
	return s.decide(ctx, actor, attempt.LeaveID, StatusApproved, true)
}

func (s *Service) Reject(ctx context.Context, actor Actor, requestID string) (LeaveRequest, error) {
	return s.decide(ctx, actor, requestID, StatusRejected, false)
}

func (s *Service) decide(ctx context.Context, actor Actor, requestID, status string, force bool) (LeaveRequest, error) {
	req, err := s.Store.GetRequest(ctx, requestID)
	if err != nil {
		return LeaveRequest{}, err
	}
	if !canManageTeam(actor, req.TeamID) {
		return LeaveRequest{}, ErrForbidden
	}

	err = s.Store.InTeamTx(ctx, req.TeamID, func(ctx context.Context, tx TxStore) error {
		current, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			return ErrInvalidState
		}

		if status == StatusApproved && !force {
			policy, err := tx.TeamPolicy(ctx, current.TeamID)
			if errors.Is(err, ErrNotFound) {
				policy = DefaultPolicy(current.TeamID)
			} else if err != nil {
				return err
			}
			if policy.ConcurrentLeave.Enabled {
				existing, err := tx.ApprovedOverlapping(ctx, current.TeamID, current.StartDate, current.EndDate)
				if err != nil {
					return err
				}
				if err := CheckCapacity(current, existing, policy).Err(); err != nil {
					return err
				}
			}
		}

		if err := tx.Decide(ctx, requestID, status, actor.UserID, force); err != nil {
			return err
		}
		req = current
		return nil
	})
	if err != nil {
		return LeaveRequest{}, err
	}

	decidedAt := s.now()
	req.Status = status
	req.ApprovedBy = actor.UserID
	req.Overridden = force
	req.DecidedAt = &decidedAt
	return req, nil
}

// Delete is reserved for admins and removes a leave in any state.
func (s *Service) Delete(ctx context.Context, actor Actor, requestID string) error {
	if actor.RoleName != auth.RoleAdmin {
		return ErrForbidden
	}
	return s.Store.DeleteRequest(ctx, requestID)
}

func (s *Service) Balance(ctx context.Context, actor Actor, userID string, year int) (Balance, error) {
	member, err := s.Store.Member(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	if userID != actor.UserID && !canManageTeam(actor, member.TeamID) {
		return Balance{}, ErrForbidden
	}
	return s.balanceFor(ctx, member, year)
}

func (s *Service) balanceFor(ctx context.Context, member Member, year int) (Balance, error) {
	policy, err := s.policyFor(ctx, member.TeamID)
	if err != nil {
		return Balance{}, err
	}
	leaves, err := s.Store.LeavesForUser(ctx, member.UserID, year)
	if err != nil {
		return Balance{}, err
	}
	carry, err := s.Store.CarryOver(ctx, member.UserID, year)
	if err != nil {
		return Balance{}, err
	}
	return ComputeBalance(member.UserID, policy, leaves, year, BalanceOptions{
		CarryOverApplied: carry,
		SubtractPending:  s.SubtractPending,
	}), nil
}

// WorkingRanges splits a stored leave using the owner's current pattern.
func (s *Service) WorkingRanges(ctx context.Context, actor Actor, requestID string) ([]shift.DateRange, error) {
	req, err := s.Get(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	member, err := s.Store.Member(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	return shift.SplitIntoWorkingRanges(req.StartDate, req.EndDate, member.Pattern)
}

// Calendar returns the team's pending and approved leaves overlapping
// [from, to], each split into working-day ranges.
func (s *Service) Calendar(ctx context.Context, actor Actor, teamID string, from, to time.Time) ([]CalendarEntry, error) {
	if actor.RoleName != auth.RoleAdmin && actor.TeamID != teamID {
		return nil, ErrForbidden
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, shift.ErrInvalidDateRange
	}

	members, err := s.Store.TeamMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	patterns := make(map[string]*shift.Pattern, len(members))
	for _, m := range members {
		patterns[m.UserID] = m.Pattern
	}

	leaves, err := s.Store.ListRequests(ctx, RequestFilter{
		TeamID:   teamID,
		Statuses: []string{StatusPending, StatusApproved},
		From:     from,
		To:       to,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]CalendarEntry, 0, len(leaves))
	for _, req := range leaves {
		ranges, err := shift.SplitIntoWorkingRanges(req.StartDate, req.EndDate, patterns[req.OwnerID])
		if err != nil {
			requestctx.Logger(ctx).Warn("leave calendar split failed", "leaveId", req.ID, "err", err)
			continue
		}
		entries = append(entries, CalendarEntry{
			LeaveID:    req.ID,
			OwnerID:    req.OwnerID,
			Status:     req.Status,
			ShiftGroup: req.ShiftGroup,
			Ranges:     ranges,
		})
	}
	return entries, nil
}

type Statement struct {
	Member  Member         `json:"member"`
	Balance Balance        `json:"balance"`
	Leaves  []LeaveRequest `json:"leaves"`
}

// Statement gathers what a printed balance statement shows for one year.
func (s *Service) Statement(ctx context.Context, actor Actor, userID string, year int) (Statement, error) {
	member, err := s.Store.Member(ctx, userID)
	if err != nil {
		return Statement{}, err
	}
	if userID != actor.UserID && !canManageTeam(actor, member.TeamID) {
		return Statement{}, ErrForbidden
	}
	balance, err := s.balanceFor(ctx, member, year)
	if err != nil {
		return Statement{}, err
	}
	leaves, err := s.Store.LeavesForUser(ctx, userID, year)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Member: member, Balance: balance, Leaves: leaves}, nil
}
