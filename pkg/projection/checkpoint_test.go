package projection_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/projection"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func saveCheckpoint(t *testing.T, store *projection.CheckpointStore, checkpoint *projection.Checkpoint) {
	t.Helper()
	tx, err := store.DB().Begin()
	require.NoError(t, err)
	require.NoError(t, store.SaveInTx(context.Background(), tx, checkpoint))
	require.NoError(t, tx.Commit())
}

func TestCheckpointRoundTrip(t *testing.T) {
	store, err := projection.NewCheckpointStore(newTestDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("unknown projection loads as zero checkpoint", func(t *testing.T) {
		checkpoint, err := store.Load(ctx, "projections_users")
		require.NoError(t, err)
		assert.Equal(t, "projections_users", checkpoint.ProjectionName)
		assert.True(t, checkpoint.Position.IsZero())
		assert.True(t, checkpoint.LastProcessedAt.IsZero())
	})

	t.Run("save and load keep position and order", func(t *testing.T) {
		position := eventstore.Position{
			Position:  decimal.NewFromFloat(1724670000.000001),
			InTxOrder: 3,
		}
		processedAt := time.Now().Truncate(time.Microsecond)
		saveCheckpoint(t, store, &projection.Checkpoint{
			ProjectionName:  "projections_users",
			Position:        position,
			LastProcessedAt: processedAt,
		})

		loaded, err := store.Load(ctx, "projections_users")
		require.NoError(t, err)
		assert.True(t, loaded.Position.Position.Equal(position.Position))
		assert.Equal(t, uint32(3), loaded.Position.InTxOrder)
		assert.Equal(t, processedAt.UnixMicro(), loaded.LastProcessedAt.UnixMicro())
	})

	t.Run("second save overwrites", func(t *testing.T) {
		advanced := eventstore.Position{Position: decimal.NewFromFloat(1724670100.5)}
		saveCheckpoint(t, store, &projection.Checkpoint{
			ProjectionName:  "projections_users",
			Position:        advanced,
			LastProcessedAt: time.Now(),
		})

		loaded, err := store.Load(ctx, "projections_users")
		require.NoError(t, err)
		assert.True(t, loaded.Position.Position.Equal(advanced.Position))
		assert.Equal(t, uint32(0), loaded.Position.InTxOrder)
	})

	t.Run("delete resets to zero checkpoint", func(t *testing.T) {
		tx, err := store.DB().Begin()
		require.NoError(t, err)
		require.NoError(t, store.DeleteInTx(ctx, tx, "projections_users"))
		require.NoError(t, tx.Commit())

		loaded, err := store.Load(ctx, "projections_users")
		require.NoError(t, err)
		assert.True(t, loaded.Position.IsZero())
	})
}

func TestProjectionLocks(t *testing.T) {
	store, err := projection.NewCheckpointStore(newTestDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("first owner acquires", func(t *testing.T) {
		locked, err := store.AcquireLock(ctx, "projections_users", "owner-a", time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, locked)
	})

	t.Run("live lease blocks other owners", func(t *testing.T) {
		locked, err := store.AcquireLock(ctx, "projections_users", "owner-b", time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("holder renews its own lease", func(t *testing.T) {
		locked, err := store.AcquireLock(ctx, "projections_users", "owner-a", time.Now().Add(2*time.Minute))
		require.NoError(t, err)
		assert.True(t, locked)
	})

	t.Run("expired lease is stolen", func(t *testing.T) {
		locked, err := store.AcquireLock(ctx, "projections_orgs", "owner-a", time.Now().Add(-time.Second))
		require.NoError(t, err)
		require.True(t, locked)

		locked, err = store.AcquireLock(ctx, "projections_orgs", "owner-b", time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, locked)
	})

	t.Run("release frees the lock for anyone", func(t *testing.T) {
		require.NoError(t, store.ReleaseLock(ctx, "projections_users", "owner-a"))

		locked, err := store.AcquireLock(ctx, "projections_users", "owner-c", time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, locked)
	})

	t.Run("release by non-holder is a no-op", func(t *testing.T) {
		require.NoError(t, store.ReleaseLock(ctx, "projections_users", "owner-a"))

		locked, err := store.AcquireLock(ctx, "projections_users", "owner-c", time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, locked)
	})
}
