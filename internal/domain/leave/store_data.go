package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"teamleave/internal/domain/shift"
)

func (s *Store) Member(ctx context.Context, userID string) (Member, error) {
	var m Member
	var teamID *string
	var rawPattern []byte
	if err := s.DB.QueryRow(ctx, `
    SELECT id, team_id::text, name, email, shift_group, shift_pattern
    FROM users
    WHERE id = $1
  `, userID).Scan(&m.UserID, &teamID, &m.Name, &m.Email, &m.ShiftGroup, &rawPattern); err != nil {
		return Member{}, notFound(err)
	}
	if teamID != nil {
		m.TeamID = *teamID
	}
	pattern, err := decodePattern(rawPattern)
	if err != nil {
		return Member{}, fmt.Errorf("decode shift pattern for %s: %w", userID, err)
	}
	m.Pattern = pattern
	return m, nil
}

func (s *Store) TeamMembers(ctx context.Context, teamID string) ([]Member, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, team_id::text, name, email, shift_group, shift_pattern
    FROM users
    WHERE team_id = $1 AND status = 'active'
    ORDER BY name
  `, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		var rawPattern []byte
		if err := rows.Scan(&m.UserID, &m.TeamID, &m.Name, &m.Email, &m.ShiftGroup, &rawPattern); err != nil {
			return nil, err
		}
		if m.Pattern, err = decodePattern(rawPattern); err != nil {
			return nil, fmt.Errorf("decode shift pattern for %s: %w", m.UserID, err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) ListTeamIDs(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id FROM teams ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) TeamPolicy(ctx context.Context, teamID string) (TeamLeavePolicy, error) {
	return teamPolicy(ctx, s.DB, teamID)
}

func teamPolicy(ctx context.Context, db interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, teamID string) (TeamLeavePolicy, error) {
	var p TeamLeavePolicy
	err := db.QueryRow(ctx, `
    SELECT team_id, annual_leave_days, carry_over_days, allow_negative_balance,
           concurrent_enabled, max_per_team, max_per_shift, check_by_shift, updated_at
    FROM team_leave_policies
    WHERE team_id = $1
  `, teamID).Scan(&p.TeamID, &p.AnnualLeaveDays, &p.CarryOverDays, &p.AllowNegativeBalance,
		&p.ConcurrentLeave.Enabled, &p.ConcurrentLeave.MaxPerTeam, &p.ConcurrentLeave.MaxPerShift, &p.ConcurrentLeave.CheckByShift, &p.UpdatedAt)
	if err != nil {
		return TeamLeavePolicy{}, notFound(err)
	}
	return p, nil
}

func (s *Store) UpsertTeamPolicy(ctx context.Context, p TeamLeavePolicy) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO team_leave_policies (team_id, annual_leave_days, carry_over_days, allow_negative_balance,
                                     concurrent_enabled, max_per_team, max_per_shift, check_by_shift)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    ON CONFLICT (team_id) DO UPDATE SET
      annual_leave_days = EXCLUDED.annual_leave_days,
      carry_over_days = EXCLUDED.carry_over_days,
      allow_negative_balance = EXCLUDED.allow_negative_balance,
      concurrent_enabled = EXCLUDED.concurrent_enabled,
      max_per_team = EXCLUDED.max_per_team,
      max_per_shift = EXCLUDED.max_per_shift,
      check_by_shift = EXCLUDED.check_by_shift,
      updated_at = now()
  `, p.TeamID, p.AnnualLeaveDays, p.CarryOverDays, p.AllowNegativeBalance,
		p.ConcurrentLeave.Enabled, p.ConcurrentLeave.MaxPerTeam, p.ConcurrentLeave.MaxPerShift, p.ConcurrentLeave.CheckByShift)
	return err
}

func (s *Store) SetMemberPattern(ctx context.Context, userID, shiftGroup string, pattern *shift.Pattern) error {
	raw, err := encodePattern(pattern)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, "UPDATE users SET shift_group = $1, shift_pattern = $2 WHERE id = $3", shiftGroup, raw, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, requestID string) (LeaveRequest, error) {
	req, err := scanRequest(s.DB.QueryRow(ctx, "SELECT "+requestColumns+" FROM leave_requests WHERE id = $1", requestID))
	if err != nil {
		return LeaveRequest{}, notFound(err)
	}
	return req, nil
}

func (s *Store) ListRequests(ctx context.Context, filter RequestFilter) ([]LeaveRequest, error) {
	query := "SELECT " + requestColumns + " FROM leave_requests WHERE 1 = 1"
	var args []any
	next := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.TeamID != "" {
		query += " AND team_id = " + next(filter.TeamID)
	}
	if filter.OwnerID != "" {
		query += " AND owner_id = " + next(filter.OwnerID)
	}
	if len(filter.Statuses) > 0 {
		query += " AND status = ANY(" + next(filter.Statuses) + ")"
	}
	if !filter.From.IsZero() {
		query += " AND end_date >= " + next(filter.From)
	}
	if !filter.To.IsZero() {
		query += " AND start_date <= " + next(filter.To)
	}
	query += " ORDER BY start_date, created_at"
	if filter.Limit > 0 {
		query += " LIMIT " + next(filter.Limit)
		query += " OFFSET " + next(filter.Offset)
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (s *Store) LeavesForUser(ctx context.Context, userID string, year int) ([]LeaveRequest, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	rows, err := s.DB.Query(ctx, "SELECT "+requestColumns+`
    FROM leave_requests
    WHERE owner_id = $1 AND start_date BETWEEN $2 AND $3
    ORDER BY start_date
  `, userID, from, to)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (s *Store) DeleteRequest(ctx context.Context, requestID string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM leave_requests WHERE id = $1", requestID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CarryOver(ctx context.Context, userID string, year int) (int, error) {
	var days int
	err := s.DB.QueryRow(ctx, "SELECT days FROM leave_carry_overs WHERE user_id = $1 AND year = $2", userID, year).Scan(&days)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return days, nil
}

func (s *Store) UpsertCarryOver(ctx context.Context, userID string, year, days int) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO leave_carry_overs (user_id, year, days)
    VALUES ($1,$2,$3)
    ON CONFLICT (user_id, year) DO UPDATE SET days = EXCLUDED.days, updated_at = now()
  `, userID, year, days)
	return err
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) LockRequest(ctx context.Context, requestID string) (LeaveRequest, error) {
	req, err := scanRequest(t.tx.QueryRow(ctx, "SELECT "+requestColumns+" FROM leave_requests WHERE id = $1 FOR UPDATE", requestID))
	if err != nil {
		return LeaveRequest{}, notFound(err)
	}
	return req, nil
}

// OwnerOverlapping returns the owner's pending and approved leaves touching
// [start, end].
func (t *txStore) OwnerOverlapping(ctx context.Context, ownerID string, start, end time.Time) ([]LeaveRequest, error) {
	rows, err := t.tx.Query(ctx, "SELECT "+requestColumns+`
    FROM leave_requests
    WHERE owner_id = $1 AND status = ANY($2) AND start_date <= $4 AND end_date >= $3
  `, ownerID, []string{StatusPending, StatusApproved}, start, end)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (t *txStore) CreateRequest(ctx context.Context, req LeaveRequest) (string, error) {
	var id string
	if err := t.tx.QueryRow(ctx, `
    INSERT INTO leave_requests (owner_id, team_id, start_date, end_date, status, working_days, shift_group, reason)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING id
  `, req.OwnerID, req.TeamID, req.StartDate, req.EndDate, req.Status, req.WorkingDays, req.ShiftGroup, req.Reason).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (t *txStore) TeamPolicy(ctx context.Context, teamID string) (TeamLeavePolicy, error) {
	return teamPolicy(ctx, t.tx, teamID)
}

func (t *txStore) ApprovedOverlapping(ctx context.Context, teamID string, start, end time.Time) ([]LeaveRequest, error) {
	rows, err := t.tx.Query(ctx, "SELECT "+requestColumns+`
    FROM leave_requests
    WHERE team_id = $1 AND status = $2 AND start_date <= $4 AND end_date >= $3
  `, teamID, StatusApproved, start, end)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (t *txStore) Decide(ctx context.Context, requestID, status, approverID string, overridden bool) error {
	tag, err := t.tx.Exec(ctx, `
    UPDATE leave_requests
    SET status = $1, approved_by = $2, overridden = $3, decided_at = now()
    WHERE id = $4 AND status = $5
  `, status, approverID, overridden, requestID, StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}
