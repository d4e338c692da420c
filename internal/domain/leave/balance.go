package leave

type Balance struct {
	Year      int `json:"year"`
	Total     int `json:"total"`
	CarryOver int `json:"carryOver"`
	Used      int `json:"used"`
	Pending   int `json:"pending"`
	Available int `json:"available"`
}

type BalanceOptions struct {
	// CarryOverApplied is the carry-over granted for the year; eligibility is
	// decided elsewhere.
	CarryOverApplied int
	// SubtractPending also deducts pending days from Available.
	SubtractPending bool
}

// ComputeBalance sums the cached working-day counts of userID's leaves that
// start in year.
func ComputeBalance(userID string, policy TeamLeavePolicy, leaves []LeaveRequest, year int, opts BalanceOptions) Balance {
	out := Balance{
		Year:      year,
		CarryOver: opts.CarryOverApplied,
		Total:     policy.AnnualLeaveDays + opts.CarryOverApplied,
	}

	for _, req := range leaves {
		if req.OwnerID != userID || req.StartDate.Year() != year {
			continue
		}
		switch req.Status {
		case StatusApproved:
			out.Used += req.WorkingDays
		case StatusPending:
			out.Pending += req.WorkingDays
		}
	}

	out.Available = out.Total - out.Used
	if opts.SubtractPending {
		out.Available -= out.Pending
	}
	if !policy.AllowNegativeBalance && out.Available < 0 {
		out.Available = 0
	}
	return out
}
