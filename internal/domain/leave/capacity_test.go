package leave

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 0, 0, 0, 0, time.UTC)
}

func approved(id, owner string, start, end time.Time) LeaveRequest {
	return LeaveRequest{ID: id, OwnerID: owner, TeamID: "team-1", StartDate: start, EndDate: end, Status: StatusApproved}
}

func teamLimit(max int) TeamLeavePolicy {
	p := DefaultPolicy("team-1")
	p.ConcurrentLeave = ConcurrentLeave{Enabled: true, MaxPerTeam: max}
	return p
}

func TestCheckCapacityTeamLimit(t *testing.T) {
	existing := []LeaveRequest{
		approved("a", "u1", day(3, 4), day(3, 8)),
		approved("b", "u2", day(3, 5), day(3, 6)),
		approved("c", "u3", day(3, 6), day(3, 12)),
	}
	candidate := LeaveRequest{ID: "d", OwnerID: "u4", TeamID: "team-1", StartDate: day(3, 6), EndDate: day(3, 7), Status: StatusPending}

	got := CheckCapacity(candidate, existing, teamLimit(3))
	require.False(t, got.OK)
	assert.Equal(t, 3, got.ConflictingCount)
	assert.Equal(t, 3, got.Limit)
	require.NotNil(t, got.PeakDate)
	assert.True(t, got.PeakDate.Equal(day(3, 6)), "peak date %v", got.PeakDate)

	var limitErr *ConcurrentLimitError
	err := got.Err()
	assert.ErrorAs(t, err, &limitErr)
	assert.ErrorIs(t, err, ErrConcurrentLimitExceeded)

	got = CheckCapacity(candidate, existing[:2], teamLimit(3))
	assert.True(t, got.OK)
	assert.NoError(t, got.Err())
}

func TestCheckCapacityIgnores(t *testing.T) {
	base := []LeaveRequest{
		approved("a", "u1", day(5, 1), day(5, 3)),
	}
	candidate := LeaveRequest{ID: "c", OwnerID: "u9", StartDate: day(5, 2), EndDate: day(5, 2), Status: StatusPending}

	tests := []struct {
		name  string
		extra LeaveRequest
	}{
		{"pending", LeaveRequest{ID: "p", OwnerID: "u2", StartDate: day(5, 1), EndDate: day(5, 5), Status: StatusPending}},
		{"rejected", LeaveRequest{ID: "r", OwnerID: "u3", StartDate: day(5, 1), EndDate: day(5, 5), Status: StatusRejected}},
		{"same id", approved("c", "u9", day(5, 2), day(5, 2))},
		{"same owner", approved("o", "u9", day(5, 1), day(5, 2))},
		{"no overlap", approved("n", "u4", day(5, 3), day(5, 9))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := append([]LeaveRequest{}, base...)
			existing = append(existing, tt.extra)
			got := CheckCapacity(candidate, existing, teamLimit(2))
			assert.True(t, got.OK, "%+v", got)
		})
	}
}

func TestCheckCapacityDistinctOwners(t *testing.T) {
	// One colleague with two approved leaves on the same day counts once.
	existing := []LeaveRequest{
		approved("a", "u1", day(6, 1), day(6, 2)),
		approved("b", "u1", day(6, 2), day(6, 3)),
	}
	candidate := LeaveRequest{OwnerID: "u2", StartDate: day(6, 2), EndDate: day(6, 2)}
	got := CheckCapacity(candidate, existing, teamLimit(2))
	assert.True(t, got.OK, "%+v", got)
}

func TestCheckCapacityByShift(t *testing.T) {
	policy := DefaultPolicy("team-1")
	policy.ConcurrentLeave = ConcurrentLeave{Enabled: true, MaxPerTeam: 1, MaxPerShift: 1, CheckByShift: true}

	existing := []LeaveRequest{
		{ID: "a", OwnerID: "u1", StartDate: day(7, 1), EndDate: day(7, 5), Status: StatusApproved, ShiftGroup: "night"},
	}
	dayShift := LeaveRequest{OwnerID: "u2", StartDate: day(7, 2), EndDate: day(7, 3), ShiftGroup: "day"}
	night := LeaveRequest{OwnerID: "u3", StartDate: day(7, 2), EndDate: day(7, 3), ShiftGroup: "night"}

	assert.True(t, CheckCapacity(dayShift, existing, policy).OK, "other shift must not count")

	got := CheckCapacity(night, existing, policy)
	assert.False(t, got.OK)
	assert.Equal(t, 1, got.ConflictingCount)
	assert.Equal(t, 1, got.Limit)
}

func TestCheckCapacityDisabled(t *testing.T) {
	existing := []LeaveRequest{
		approved("a", "u1", day(8, 1), day(8, 9)),
		approved("b", "u2", day(8, 1), day(8, 9)),
	}
	candidate := LeaveRequest{OwnerID: "u3", StartDate: day(8, 3), EndDate: day(8, 4)}

	disabled := teamLimit(1)
	disabled.ConcurrentLeave.Enabled = false
	assert.True(t, CheckCapacity(candidate, existing, disabled).OK)
}

func TestCheckCapacityZeroLimit(t *testing.T) {
	byShift := DefaultPolicy("team-1")
	byShift.ConcurrentLeave = ConcurrentLeave{Enabled: true, MaxPerTeam: 5, CheckByShift: true}

	existing := []LeaveRequest{
		{ID: "a", OwnerID: "u1", StartDate: day(9, 2), EndDate: day(9, 6), Status: StatusApproved, ShiftGroup: "night"},
	}
	candidate := LeaveRequest{OwnerID: "u2", StartDate: day(9, 3), EndDate: day(9, 4), ShiftGroup: "night"}

	got := CheckCapacity(candidate, existing, byShift)
	assert.False(t, got.OK)
	assert.Equal(t, 1, got.ConflictingCount)
	assert.Equal(t, 0, got.Limit)

	// Nobody else away still breaks a zero ceiling.
	got = CheckCapacity(candidate, nil, teamLimit(0))
	assert.False(t, got.OK)
	assert.Equal(t, 0, got.ConflictingCount)
}

func TestPolicyValidateConcurrentLimits(t *testing.T) {
	tests := []struct {
		name    string
		rules   ConcurrentLeave
		wantErr bool
	}{
		{"disabled with zero limits", ConcurrentLeave{}, false},
		{"team limit", ConcurrentLeave{Enabled: true, MaxPerTeam: 2}, false},
		{"shift limit", ConcurrentLeave{Enabled: true, CheckByShift: true, MaxPerShift: 1}, false},
		{"enabled without team limit", ConcurrentLeave{Enabled: true}, true},
		{"by shift without shift limit", ConcurrentLeave{Enabled: true, CheckByShift: true, MaxPerTeam: 3}, true},
		{"negative", ConcurrentLeave{MaxPerShift: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy("team-1")
			p.ConcurrentLeave = tt.rules
			err := p.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPolicy)
				return
			}
			assert.NoError(t, err)
		})
	}
}
