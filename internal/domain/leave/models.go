package leave

import (
	"fmt"
	"time"

	"teamleave/internal/domain/shift"
)

type LeaveRequest struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	TeamID      string     `json:"teamId"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     time.Time  `json:"endDate"`
	Status      string     `json:"status"`
	WorkingDays int        `json:"workingDays"`
	ShiftGroup  string     `json:"shiftGroup,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	ApprovedBy  string     `json:"approvedBy,omitempty"`
	Overridden  bool       `json:"overridden"`
	DecidedAt   *time.Time `json:"decidedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Covers reports whether the inclusive span of the request contains day.
func (r LeaveRequest) Covers(day int64) bool {
	return shift.DayNumber(r.StartDate) <= day && day <= shift.DayNumber(r.EndDate)
}

type ConcurrentLeave struct {
	Enabled      bool `json:"enabled"`
	MaxPerTeam   int  `json:"maxPerTeam"`
	MaxPerShift  int  `json:"maxPerShift"`
	CheckByShift bool `json:"checkByShift"`
}

type TeamLeavePolicy struct {
	TeamID               string          `json:"teamId"`
	AnnualLeaveDays      int             `json:"annualLeaveDays"`
	CarryOverDays        int             `json:"carryOverDays"`
	AllowNegativeBalance bool            `json:"allowNegativeBalance"`
	ConcurrentLeave      ConcurrentLeave `json:"concurrentLeave"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

const defaultAnnualLeaveDays = 21

// DefaultPolicy applies to teams that never saved settings.
func DefaultPolicy(teamID string) TeamLeavePolicy {
	return TeamLeavePolicy{TeamID: teamID, AnnualLeaveDays: defaultAnnualLeaveDays}
}

func (p TeamLeavePolicy) Validate() error {
	if p.AnnualLeaveDays < 0 {
		return fmt.Errorf("%w: annualLeaveDays must not be negative", ErrInvalidPolicy)
	}
	if p.CarryOverDays < 0 {
		return fmt.Errorf("%w: carryOverDays must not be negative", ErrInvalidPolicy)
	}
	if p.ConcurrentLeave.MaxPerTeam < 0 || p.ConcurrentLeave.MaxPerShift < 0 {
		return fmt.Errorf("%w: concurrent leave limits must not be negative", ErrInvalidPolicy)
	}
	if c := p.ConcurrentLeave; c.Enabled {
		if c.CheckByShift && c.MaxPerShift < 1 {
			return fmt.Errorf("%w: maxPerShift must be at least 1 when checking by shift", ErrInvalidPolicy)
		}
		if !c.CheckByShift && c.MaxPerTeam < 1 {
			return fmt.Errorf("%w: maxPerTeam must be at least 1", ErrInvalidPolicy)
		}
	}
	return nil
}

type Member struct {
	UserID     string         `json:"userId"`
	TeamID     string         `json:"teamId"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	ShiftGroup string         `json:"shiftGroup,omitempty"`
	Pattern    *shift.Pattern `json:"shiftPattern,omitempty"`
}

// EffectiveShiftGroup falls back to the pattern's group key when no explicit
// group is assigned, so members on the same rotation share a group.
func (m Member) EffectiveShiftGroup() string {
	if m.ShiftGroup != "" {
		return m.ShiftGroup
	}
	if m.Pattern == nil {
		return string(shift.KindRegular)
	}
	return m.Pattern.GroupKey()
}

// OverrideAttempt lives for one override call and is never persisted.
type OverrideAttempt struct {
	ApproverID string
	Credential string
	LeaveID    string
}

type Actor struct {
	UserID   string
	TeamID   string
	RoleName string
}

type RequestFilter struct {
	TeamID   string
	OwnerID  string
	Statuses []string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

type CalendarEntry struct {
	LeaveID    string            `json:"leaveId"`
	OwnerID    string            `json:"ownerId"`
	Status     string            `json:"status"`
	ShiftGroup string            `json:"shiftGroup,omitempty"`
	Ranges     []shift.DateRange `json:"ranges"`
}
