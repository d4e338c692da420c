package leave

import (
	"context"
	"time"

	"teamleave/internal/domain/shift"
)

type StoreAPI interface {
	Member(ctx context.Context, userID string) (Member, error)
	TeamMembers(ctx context.Context, teamID string) ([]Member, error)
	ListTeamIDs(ctx context.Context) ([]string, error)
	TeamPolicy(ctx context.Context, teamID string) (TeamLeavePolicy, error)
	UpsertTeamPolicy(ctx context.Context, policy TeamLeavePolicy) error
	SetMemberPattern(ctx context.Context, userID, shiftGroup string, pattern *shift.Pattern) error
	GetRequest(ctx context.Context, requestID string) (LeaveRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]LeaveRequest, error)
	LeavesForUser(ctx context.Context, userID string, year int) ([]LeaveRequest, error)
	DeleteRequest(ctx context.Context, requestID string) error
	CarryOver(ctx context.Context, userID string, year int) (int, error)
	UpsertCarryOver(ctx context.Context, userID string, year, days int) error
	// InTeamTx runs fn in one transaction holding the team's lock, so
	// submissions, capacity checks and status writes for a team never
	// interleave.
	InTeamTx(ctx context.Context, teamID string, fn func(ctx context.Context, tx TxStore) error) error
}

// TxStore is the view of the store available inside InTeamTx.
type TxStore interface {
	LockRequest(ctx context.Context, requestID string) (LeaveRequest, error)
	OwnerOverlapping(ctx context.Context, ownerID string, start, end time.Time) ([]LeaveRequest, error)
	CreateRequest(ctx context.Context, req LeaveRequest) (string, error)
	TeamPolicy(ctx context.Context, teamID string) (TeamLeavePolicy, error)
	ApprovedOverlapping(ctx context.Context, teamID string, start, end time.Time) ([]LeaveRequest, error)
	Decide(ctx context.Context, requestID, status, approverID string, overridden bool) error
}
