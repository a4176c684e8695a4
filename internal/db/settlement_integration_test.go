//go:build integration

package db

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jonathan/career-coach/internal/db/migrations"
	"github.com/jonathan/career-coach/internal/types"
)

// testStore is shared by the integration tests. TEST_DATABASE_URL points the
// tests at an existing database; otherwise a Postgres container is started.
var testStore *DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	var container testcontainers.Container
	if dsn == "" {
		c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "postgres:16-alpine",
				ExposedPorts: []string{"5432/tcp"},
				Env: map[string]string{
					"POSTGRES_USER":     "coach",
					"POSTGRES_PASSWORD": "coach",
					"POSTGRES_DB":       "coach",
				},
				WaitingFor: wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
			os.Exit(1)
		}
		container = c

		host, err := c.Host(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
			os.Exit(1)
		}
		port, err := c.MappedPort(ctx, "5432")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to get container port: %v\n", err)
			os.Exit(1)
		}
		dsn = fmt.Sprintf("postgres://coach:coach@%s:%s/coach?sslmode=disable", host, port.Port())
	}

	store, err := Connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	if _, err := store.RunMigrations(ctx, migrations.FS); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}
	testStore = store

	code := m.Run()

	store.Close()
	if container != nil {
		_ = container.Terminate(ctx)
	}
	os.Exit(code)
}

func seedProfile(t *testing.T, balance, bonus int, bonusExpires *time.Time, referredBy *uuid.UUID) *types.Profile {
	t.Helper()
	p, err := testStore.CreateProfile(context.Background(), ProfileInput{
		ID:             uuid.New(),
		FullName:       "Test User",
		TokenBalance:   balance,
		BonusTokens:    bonus,
		BonusExpiresAt: bonusExpires,
		ReferredBy:     referredBy,
	})
	require.NoError(t, err)
	return p
}

func seedResult(t *testing.T, userID uuid.UUID, cost int) *types.ToolResult {
	t.Helper()
	r := &types.ToolResult{
		UserID:        userID,
		ToolID:        "resume",
		Result:        map[string]any{"overall_score": 72.0},
		Summary:       "Resume score: 72",
		ModelUsed:     "gpt-4o",
		TokensCharged: cost,
	}
	require.NoError(t, testStore.CreateToolResult(context.Background(), r))
	return r
}

func TestIntegration_MigrationsIdempotent(t *testing.T) {
	ran, err := testStore.RunMigrations(context.Background(), migrations.FS)
	require.NoError(t, err)
	assert.Empty(t, ran)
}

func TestIntegration_SpendTokensBonusFirst(t *testing.T) {
	ctx := context.Background()
	expires := time.Now().Add(24 * time.Hour)
	p := seedProfile(t, 50, 20, &expires, nil)
	r := seedResult(t, p.ID, 30)

	res, err := testStore.SpendTokens(ctx, p.ID, 30, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, res.BonusUsed)
	assert.Equal(t, 10, res.PurchasedUsed)
	assert.Equal(t, 40, res.BalanceAfter)
	assert.Equal(t, 0, res.BonusAfter)

	got, err := testStore.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.TokenBalance)
	assert.Equal(t, 0, got.BonusTokens)

	entries, err := testStore.ListLedgerEntries(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, -30, entries[0].Amount)
	assert.Equal(t, 20, entries[0].BonusUsed)
	assert.Equal(t, 40, entries[0].BalanceAfter)
	assert.Equal(t, LedgerToolSpend, entries[0].Type)
	require.NotNil(t, entries[0].ToolResultID)
	assert.Equal(t, r.ID, *entries[0].ToolResultID)
}

func TestIntegration_SpendTokensIgnoresExpiredBonus(t *testing.T) {
	ctx := context.Background()
	expired := time.Now().Add(-time.Hour)
	p := seedProfile(t, 5, 100, &expired, nil)
	r := seedResult(t, p.ID, 10)

	_, err := testStore.SpendTokens(ctx, p.ID, 10, r.ID)
	assert.ErrorIs(t, err, ErrInsufficientTokens)

	got, err := testStore.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TokenBalance)
	assert.Equal(t, 100, got.BonusTokens)
}

func TestIntegration_SpendTokensOncePerResult(t *testing.T) {
	ctx := context.Background()
	p := seedProfile(t, 100, 0, nil, nil)
	r := seedResult(t, p.ID, 10)

	_, err := testStore.SpendTokens(ctx, p.ID, 10, r.ID)
	require.NoError(t, err)

	_, err = testStore.SpendTokens(ctx, p.ID, 10, r.ID)
	assert.ErrorIs(t, err, ErrAlreadySettled)

	got, err := testStore.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, got.TokenBalance)

	n, err := testStore.CountPaidToolRuns(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIntegration_SpendTokensConcurrentNeverNegative(t *testing.T) {
	ctx := context.Background()
	p := seedProfile(t, 30, 0, nil, nil)

	results := make([]*types.ToolResult, 10)
	for i := range results {
		results[i] = seedResult(t, p.ID, 5)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for _, r := range results {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := testStore.SpendTokens(ctx, p.ID, 5, id)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientTokens)
		}(r.ID)
	}
	wg.Wait()

	assert.Equal(t, 6, succeeded)
	got, err := testStore.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.TokenBalance)
}

func TestIntegration_SpendTokensMissingProfile(t *testing.T) {
	_, err := testStore.SpendTokens(context.Background(), uuid.New(), 5, uuid.New())
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestIntegration_CreditReferralOnce(t *testing.T) {
	ctx := context.Background()
	referrer := seedProfile(t, 10, 0, nil, nil)
	referred := seedProfile(t, 100, 0, nil, &referrer.ID)
	r := seedResult(t, referred.ID, 10)

	ok, err := testStore.CreditReferral(ctx, referrer.ID, referred.ID, 25, &r.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = testStore.CreditReferral(ctx, referrer.ID, referred.ID, 25, &r.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := testStore.GetProfile(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, 35, got.TokenBalance)

	entries, err := testStore.ListLedgerEntries(ctx, referrer.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, LedgerReferralBonus, entries[0].Type)
	assert.Equal(t, 25, entries[0].Amount)
	assert.Nil(t, entries[0].ToolResultID)
	assert.NotNil(t, entries[0].ReferralID)
}

func TestIntegration_ToolResultsScopedAndImmutable(t *testing.T) {
	ctx := context.Background()
	owner := seedProfile(t, 0, 0, nil, nil)
	other := seedProfile(t, 0, 0, nil, nil)
	r := seedResult(t, owner.ID, 0)

	got, err := testStore.GetToolResult(ctx, owner.ID, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 72.0, got.Result["overall_score"])

	got, err = testStore.GetToolResult(ctx, other.ID, r.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = testStore.pool.Exec(ctx, `UPDATE tool_results SET summary = 'changed' WHERE id = $1`, r.ID)
	assert.Error(t, err)
}

func TestIntegration_JobTargetScopedToOwner(t *testing.T) {
	ctx := context.Background()
	owner := seedProfile(t, 0, 0, nil, nil)
	other := seedProfile(t, 0, 0, nil, nil)

	jt := &types.JobTarget{UserID: owner.ID, Title: "Staff Engineer", Company: "Acme"}
	require.NoError(t, testStore.CreateJobTarget(ctx, jt))

	got, err := testStore.GetJobTarget(ctx, owner.ID, jt.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.Company)

	got, err = testStore.GetJobTarget(ctx, other.ID, jt.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIntegration_CareerProfileUpsert(t *testing.T) {
	ctx := context.Background()
	p := seedProfile(t, 0, 0, nil, nil)

	got, err := testStore.GetCareerProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	years := 6
	require.NoError(t, testStore.UpsertCareerProfile(ctx, &types.CareerProfile{
		UserID: p.ID, CurrentTitle: "Engineer", YearsExperience: &years, Skills: []string{"go", "sql"},
	}))
	got, err = testStore.GetCareerProfile(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Engineer", got.CurrentTitle)
	assert.Equal(t, []string{"go", "sql"}, got.Skills)
	require.NotNil(t, got.YearsExperience)
	assert.Equal(t, 6, *got.YearsExperience)
}
