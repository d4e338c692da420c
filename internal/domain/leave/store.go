package leave

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"teamleave/internal/domain/shift"
	"teamleave/internal/platform/querier"
)

type Store struct {
	DB querier.Beginner
}

func NewStore(db querier.Beginner) *Store {
	return &Store{DB: db}
}

func (s *Store) InTeamTx(ctx context.Context, teamID string, fn func(ctx context.Context, tx TxStore) error) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}

	var lockedID string
	if err := tx.QueryRow(ctx, "SELECT id FROM teams WHERE id = $1 FOR UPDATE", teamID).Scan(&lockedID); err != nil {
		rollback(ctx, tx)
		return notFound(err)
	}

	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		rollback(ctx, tx)
		return err
	}
	return tx.Commit(ctx)
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Warn("leave tx rollback failed", "err", err)
	}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func decodePattern(raw []byte) (*shift.Pattern, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var p shift.Pattern
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func encodePattern(p *shift.Pattern) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

const requestColumns = `id, owner_id, team_id, start_date, end_date, status, working_days, shift_group, reason, COALESCE(approved_by::text, ''), overridden, decided_at, created_at`

func scanRequest(row pgx.Row) (LeaveRequest, error) {
	var req LeaveRequest
	err := row.Scan(&req.ID, &req.OwnerID, &req.TeamID, &req.StartDate, &req.EndDate, &req.Status, &req.WorkingDays, &req.ShiftGroup, &req.Reason, &req.ApprovedBy, &req.Overridden, &req.DecidedAt, &req.CreatedAt)
	return req, err
}

func collectRequests(rows pgx.Rows) ([]LeaveRequest, error) {
	defer rows.Close()
	var out []LeaveRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
