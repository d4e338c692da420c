package leave

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeBalance(t *testing.T) {
	jan := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	lastYear := time.Date(2023, time.December, 28, 0, 0, 0, 0, time.UTC)

	leaves := []LeaveRequest{
		{OwnerID: "u1", StartDate: jan, Status: StatusApproved, WorkingDays: 5},
		{OwnerID: "u1", StartDate: jan.AddDate(0, 2, 0), Status: StatusPending, WorkingDays: 3},
		{OwnerID: "u1", StartDate: jan.AddDate(0, 3, 0), Status: StatusRejected, WorkingDays: 4},
		{OwnerID: "u1", StartDate: lastYear, EndDate: jan, Status: StatusApproved, WorkingDays: 6},
		{OwnerID: "u2", StartDate: jan, Status: StatusApproved, WorkingDays: 9},
	}

	tests := []struct {
		name          string
		annual        int
		allowNegative bool
		opts          BalanceOptions
		leaves        []LeaveRequest
		want          Balance
	}{
		{
			name:   "pending not subtracted",
			annual: 21,
			leaves: leaves,
			want:   Balance{Year: 2024, Total: 21, Used: 5, Pending: 3, Available: 16},
		},
		{
			name:   "pending subtracted",
			annual: 21,
			opts:   BalanceOptions{SubtractPending: true},
			leaves: leaves,
			want:   Balance{Year: 2024, Total: 21, Used: 5, Pending: 3, Available: 13},
		},
		{
			name:   "carry-over added",
			annual: 21,
			opts:   BalanceOptions{CarryOverApplied: 4},
			leaves: leaves,
			want:   Balance{Year: 2024, Total: 25, CarryOver: 4, Used: 5, Pending: 3, Available: 20},
		},
		{
			name:   "clamped",
			annual: 5,
			leaves: []LeaveRequest{{OwnerID: "u1", StartDate: jan, Status: StatusApproved, WorkingDays: 8}},
			want:   Balance{Year: 2024, Total: 5, Used: 8, Available: 0},
		},
		{
			name:          "negative allowed",
			annual:        5,
			allowNegative: true,
			leaves:        []LeaveRequest{{OwnerID: "u1", StartDate: jan, Status: StatusApproved, WorkingDays: 8}},
			want:          Balance{Year: 2024, Total: 5, Used: 8, Available: -3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := TeamLeavePolicy{AnnualLeaveDays: tt.annual, AllowNegativeBalance: tt.allowNegative}
			assert.Equal(t, tt.want, ComputeBalance("u1", policy, tt.leaves, 2024, tt.opts))
		})
	}
}

func TestCarriedDays(t *testing.T) {
	tests := []struct {
		available, limit, want int
	}{
		{10, 5, 5},
		{3, 5, 3},
		{0, 5, 0},
		{-2, 5, 0},
		{7, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, carriedDays(tt.available, tt.limit), "carriedDays(%d, %d)", tt.available, tt.limit)
	}
}
