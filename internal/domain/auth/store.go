package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"teamleave/internal/platform/querier"
)

var ErrUserNotFound = errors.New("user not found")

const UserStatusActive = "active"

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

type AuthUser struct {
	ID       string
	TeamID   string
	RoleName string
	Password string
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	var out AuthUser
	var teamID *string
	err := s.DB.QueryRow(ctx, `
    SELECT id, team_id::text, role, password_hash
    FROM users
    WHERE lower(email) = lower($1) AND status = $2
  `, email, UserStatusActive).Scan(&out.ID, &teamID, &out.RoleName, &out.Password)
	if errors.Is(err, pgx.ErrNoRows) {
		return AuthUser{}, ErrUserNotFound
	}
	if err != nil {
		return AuthUser{}, err
	}
	if teamID != nil {
		out.TeamID = *teamID
	}
	return out, nil
}

func (s *Store) PasswordHash(ctx context.Context, userID string) (string, error) {
	var hash string
	err := s.DB.QueryRow(ctx, "SELECT password_hash FROM users WHERE id = $1 AND status = $2", userID, UserStatusActive).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return hash, err
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}
