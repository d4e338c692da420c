package db

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"teamleave/internal/domain/auth"
	"teamleave/internal/platform/config"
)

// Seed makes sure a first team and an admin account exist so a fresh
// database can be logged into.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	teamID, err := ensureTeam(ctx, pool, cfg.SeedTeamName)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.SeedAdminEmail) == "" {
		slog.Info("seed admin skipped", "reason", "SEED_ADMIN_EMAIL not set")
		return nil
	}
	return ensureAdminUser(ctx, pool, teamID, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
}

func ensureTeam(ctx context.Context, pool *pgxpool.Pool, name string) (string, error) {
	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM teams WHERE name = $1", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	if err := pool.QueryRow(ctx, "INSERT INTO teams (name) VALUES ($1) RETURNING id", name).Scan(&id); err != nil {
		return "", err
	}
	if _, err := pool.Exec(ctx, "INSERT INTO team_leave_policies (team_id) VALUES ($1) ON CONFLICT DO NOTHING", id); err != nil {
		return "", err
	}
	return id, nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, teamID, email, password string) error {
	var exists int
	if err := pool.QueryRow(ctx, "SELECT COUNT(1) FROM users WHERE lower(email) = lower($1)", email).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}
	if password == "" {
		return errors.New("SEED_ADMIN_PASSWORD is required to create the seed admin")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
    INSERT INTO users (team_id, name, email, password_hash, role)
    VALUES ($1, $2, $3, $4, $5)
  `, teamID, "Administrator", email, hash, auth.RoleAdmin)
	if err == nil {
		slog.Info("seed admin created", "email", email)
	}
	return err
}
