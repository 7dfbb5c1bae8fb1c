package projection

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

// Checkpoint records how far a projection has processed the log.
type Checkpoint struct {
	ProjectionName  string
	Position        eventstore.Position
	LastProcessedAt time.Time
}

// CheckpointStore persists checkpoints in the projection database. The
// zero checkpoint (position zero) means "never ran".
//
// SaveInTx is the only write path the runtime uses: the checkpoint
// advances in the same transaction as the projected rows, so a crash
// can never leave the two out of step.
type CheckpointStore struct {
	db *sql.DB
}

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS projection_states (
	projection_name   TEXT PRIMARY KEY,
	position          DECIMAL NOT NULL,
	in_tx_order       INTEGER NOT NULL DEFAULT 0,
	last_processed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS projection_locks (
	projection_name TEXT PRIMARY KEY,
	locked_by       TEXT NOT NULL,
	locked_until    INTEGER NOT NULL
);
`

// NewCheckpointStore creates the store and its schema. It can share the
// event store database or use a separate one.
func NewCheckpointStore(db *sql.DB) (*CheckpointStore, error) {
	if _, err := db.Exec(checkpointSchema); err != nil {
		return nil, apperr.Internal(err, "PROJ-Check01", "unable to create checkpoint schema")
	}
	return &CheckpointStore{db: db}, nil
}

// DB returns the underlying database for opening transactions.
func (s *CheckpointStore) DB() *sql.DB {
	return s.db
}

// Load returns the checkpoint of a projection, a zero checkpoint when it
// never ran.
func (s *CheckpointStore) Load(ctx context.Context, projectionName string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT position, in_tx_order, last_processed_at FROM projection_states WHERE projection_name = ?`,
		projectionName)

	var position float64
	var inTxOrder uint32
	var processedAt int64
	err := row.Scan(&position, &inTxOrder, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &Checkpoint{ProjectionName: projectionName}, nil
	}
	if err != nil {
		return nil, apperr.Internal(err, "PROJ-Check02", "unable to load checkpoint")
	}
	return &Checkpoint{
		ProjectionName: projectionName,
		Position: eventstore.Position{
			Position:  decimal.NewFromFloat(position),
			InTxOrder: inTxOrder,
		},
		LastProcessedAt: time.UnixMicro(processedAt),
	}, nil
}

// SaveInTx upserts the checkpoint within the caller's transaction.
func (s *CheckpointStore) SaveInTx(ctx context.Context, tx *sql.Tx, checkpoint *Checkpoint) error {
	position, _ := checkpoint.Position.Position.Float64()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projection_states (projection_name, position, in_tx_order, last_processed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (projection_name) DO UPDATE SET
			position = excluded.position,
			in_tx_order = excluded.in_tx_order,
			last_processed_at = excluded.last_processed_at`,
		checkpoint.ProjectionName, position, checkpoint.Position.InTxOrder,
		checkpoint.LastProcessedAt.UnixMicro())
	if err != nil {
		return apperr.Internal(err, "PROJ-Check03", "unable to save checkpoint")
	}
	return nil
}

// DeleteInTx removes the checkpoint within the caller's transaction,
// used when a projection is reset for rebuild.
func (s *CheckpointStore) DeleteInTx(ctx context.Context, tx *sql.Tx, projectionName string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM projection_states WHERE projection_name = ?`, projectionName); err != nil {
		return apperr.Internal(err, "PROJ-Check04", "unable to delete checkpoint")
	}
	return nil
}

// AcquireLock takes or renews the advisory lock of a projection for the
// given lease. It reports false when another live owner holds it.
func (s *CheckpointStore) AcquireLock(ctx context.Context, projectionName, owner string, until time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO projection_locks (projection_name, locked_by, locked_until)
		VALUES (?, ?, ?)
		ON CONFLICT (projection_name) DO UPDATE SET
			locked_by = excluded.locked_by,
			locked_until = excluded.locked_until
		WHERE projection_locks.locked_by = excluded.locked_by
			OR projection_locks.locked_until < ?`,
		projectionName, owner, until.UnixMicro(), time.Now().UnixMicro())
	if err != nil {
		return false, apperr.Internal(err, "PROJ-Lock01", "unable to acquire projection lock")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperr.Internal(err, "PROJ-Lock02", "unable to inspect projection lock")
	}
	return affected > 0, nil
}

// ReleaseLock drops the advisory lock if held by owner.
func (s *CheckpointStore) ReleaseLock(ctx context.Context, projectionName, owner string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM projection_locks WHERE projection_name = ? AND locked_by = ?`,
		projectionName, owner)
	if err != nil {
		return apperr.Internal(err, "PROJ-Lock03", "unable to release projection lock")
	}
	return nil
}
