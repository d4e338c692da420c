package leave

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamleave/internal/domain/auth"
	"teamleave/internal/platform/config"
	"teamleave/internal/platform/db"
)

func integrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, config.Config{DatabaseURL: dsn})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool, "../../../migrations"))
	return pool
}

func TestStoreApproveHoldsTeamLock(t *testing.T) {
	pool := integrationPool(t)
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	var teamID string
	require.NoError(t, pool.QueryRow(ctx, "INSERT INTO teams (name) VALUES ($1) RETURNING id", "it-"+suffix).Scan(&teamID))
	_, err := pool.Exec(ctx, `
    INSERT INTO team_leave_policies (team_id, concurrent_enabled, max_per_team) VALUES ($1, true, 1)
  `, teamID)
	require.NoError(t, err)

	insertUser := func(name, role string) string {
		var id string
		require.NoError(t, pool.QueryRow(ctx, `
      INSERT INTO users (team_id, name, email, password_hash, role) VALUES ($1,$2,$3,'x',$4) RETURNING id
    `, teamID, name, name+"-"+suffix+"@example.com", role).Scan(&id))
		return id
	}
	leadID := insertUser("lead", auth.RoleTeamLeader)

	store := NewStore(pool)
	svc := NewService(store, nil, false)
	start := time.Date(2031, time.March, 3, 0, 0, 0, 0, time.UTC)

	var ids []string
	for _, name := range []string{"ada", "grace", "linus", "ken"} {
		owner := insertUser(name, auth.RoleMember)
		res, err := svc.Submit(ctx, owner, start, start.AddDate(0, 0, 4), "")
		require.NoError(t, err)
		ids = append(ids, res.Request.ID)
	}

	lead := Actor{UserID: leadID, TeamID: teamID, RoleName: auth.RoleTeamLeader}
	var wg sync.WaitGroup
	var mu sync.Mutex
	approved, conflicts := 0, 0
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Approve(ctx, lead, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case errors.Is(err, ErrConcurrentLimitExceeded):
				conflicts++
			default:
				t.Errorf("unexpected approve error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, approved)
	assert.Equal(t, len(ids)-1, conflicts)

	got, err := store.ListRequests(ctx, RequestFilter{TeamID: teamID, Statuses: []string{StatusApproved}})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
