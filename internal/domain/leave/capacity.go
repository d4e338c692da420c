package leave

import (
	"time"

	"teamleave/internal/domain/shift"
)

type CapacityResult struct {
	OK               bool       `json:"ok"`
	ConflictingCount int        `json:"conflictingCount,omitempty"`
	Limit            int        `json:"limit,omitempty"`
	PeakDate         *time.Time `json:"-"`
}

// Err is nil when the result allows the leave.
func (r CapacityResult) Err() error {
	if r.OK {
		return nil
	}
	return &ConcurrentLimitError{ConflictingCount: r.ConflictingCount, Limit: r.Limit}
}

// CheckCapacity decides whether approving candidate would put more team
// members on approved leave on any single day than the policy allows.
// Only approved leaves of other owners count. With CheckByShift, only leaves
// in the candidate's shift group count against MaxPerShift.
// Occupancy counts people, not leave rows: one colleague with two approved
// leaves on the same day is one person away.
func CheckCapacity(candidate LeaveRequest, existing []LeaveRequest, policy TeamLeavePolicy) CapacityResult {
	rules := policy.ConcurrentLeave
	if !rules.Enabled {
		return CapacityResult{OK: true}
	}

	limit := rules.MaxPerTeam
	if rules.CheckByShift {
		limit = rules.MaxPerShift
	}

	relevant := make([]LeaveRequest, 0, len(existing))
	for _, other := range existing {
		if other.Status != StatusApproved {
			continue
		}
		if other.ID != "" && other.ID == candidate.ID {
			continue
		}
		if other.OwnerID == candidate.OwnerID {
			continue
		}
		if rules.CheckByShift && other.ShiftGroup != candidate.ShiftGroup {
			continue
		}
		relevant = append(relevant, other)
	}

	first, last := shift.DayNumber(candidate.StartDate), shift.DayNumber(candidate.EndDate)
	peak := 0
	var peakDay int64
	for day := first; day <= last; day++ {
		owners := make(map[string]struct{})
		for _, other := range relevant {
			if other.Covers(day) {
				owners[other.OwnerID] = struct{}{}
			}
		}
		if len(owners) > peak {
			peak = len(owners)
			peakDay = day
		}
	}

	if peak+1 > limit {
		at := shift.FromDayNumber(peakDay)
		return CapacityResult{OK: false, ConflictingCount: peak, Limit: limit, PeakDate: &at}
	}
	return CapacityResult{OK: true}
}
