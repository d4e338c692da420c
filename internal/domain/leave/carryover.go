package leave

import (
	"context"
	"errors"

	"teamleave/internal/platform/requestctx"
)

type CarryOverSummary struct {
	Year             int `json:"year"`
	TeamsProcessed   int `json:"teamsProcessed"`
	MembersCarried   int `json:"membersCarried"`
	DaysCarriedTotal int `json:"daysCarriedTotal"`
}

// ApplyCarryOver moves unused days from year-1 into year for every team
// member, capped by the team policy's CarryOverDays. Re-running it for the
// same year overwrites the previous result, so a team whose cap dropped to
// zero gets its earlier rows reset to zero.
func ApplyCarryOver(ctx context.Context, store StoreAPI, year int, subtractPending bool) (CarryOverSummary, error) {
	summary := CarryOverSummary{Year: year}

	teamIDs, err := store.ListTeamIDs(ctx)
	if err != nil {
		return summary, err
	}

	for _, teamID := range teamIDs {
		policy, err := store.TeamPolicy(ctx, teamID)
		if errors.Is(err, ErrNotFound) {
			policy = DefaultPolicy(teamID)
		} else if err != nil {
			return summary, err
		}
		summary.TeamsProcessed++

		members, err := store.TeamMembers(ctx, teamID)
		if err != nil {
			return summary, err
		}
		for _, m := range members {
			prevLeaves, err := store.LeavesForUser(ctx, m.UserID, year-1)
			if err != nil {
				return summary, err
			}
			prevCarry, err := store.CarryOver(ctx, m.UserID, year-1)
			if err != nil {
				return summary, err
			}
			prev := ComputeBalance(m.UserID, policy, prevLeaves, year-1, BalanceOptions{
				CarryOverApplied: prevCarry,
				SubtractPending:  subtractPending,
			})

			days := carriedDays(prev.Available, policy.CarryOverDays)
			if err := store.UpsertCarryOver(ctx, m.UserID, year, days); err != nil {
				return summary, err
			}
			if days > 0 {
				summary.MembersCarried++
				summary.DaysCarriedTotal += days
			}
		}
	}

	requestctx.Logger(ctx).Info("leave carry-over applied", "year", year, "teams", summary.TeamsProcessed, "members", summary.MembersCarried)
	return summary, nil
}

func carriedDays(available, limit int) int {
	if available <= 0 {
		return 0
	}
	if available > limit {
		return limit
	}
	return available
}
