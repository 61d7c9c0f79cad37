package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domain "github.com/Zhima-Mochi/storefront/internal/domain/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *OrderRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(db, "./migrations"))
	// A second run is a no-op.
	require.NoError(t, RunMigrations(db, "./migrations"))

	return NewOrderRepository(db)
}

func newTestOrder(t *testing.T, sessionID string) *domain.Order {
	t.Helper()
	o, err := domain.New(sessionID, "a@b.c",
		[]domain.Item{{ProductID: "p1", Name: "Bull Tee", Quantity: 2, UnitPrice: 2500}},
		5000, 500, 5500)
	require.NoError(t, err)
	return o
}

func TestOrderRepository_CreateAndFind(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateIfAbsent(ctx, newTestOrder(t, "sess_1")))

	got, err := repo.FindBySession(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", got.CustomerEmail)
	assert.True(t, got.Finalized)
	assert.Equal(t, domain.StatusFinalized, got.Status)
	assert.Equal(t, int64(5500), got.Total)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)

	_, err = repo.FindBySession(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrderRepository_SecondCreateConflicts(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateIfAbsent(ctx, newTestOrder(t, "sess_1")))
	assert.ErrorIs(t, repo.CreateIfAbsent(ctx, newTestOrder(t, "sess_1")), domain.ErrConflict)
}

func TestOrderRepository_ConcurrentCreateHasOneWinner(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.CreateIfAbsent(ctx, newTestOrder(t, "sess_race"))
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, domain.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(9), conflicts.Load())
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	o := newTestOrder(t, "sess_1")
	require.NoError(t, repo.CreateIfAbsent(ctx, o))
	require.NoError(t, o.ReceiptFailed("mailer down"))
	require.NoError(t, repo.Update(ctx, o))

	got, err := repo.FindBySession(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceiptFailed, got.Status)
	assert.Equal(t, "mailer down", got.FailureReason)

	assert.ErrorIs(t, repo.Update(ctx, newTestOrder(t, "missing")), domain.ErrNotFound)
}
