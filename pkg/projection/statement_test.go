package projection_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel-sub003/pkg/projection"
)

func execStatement(t *testing.T, db *sql.DB, statement *projection.Statement) {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, statement.Exec(context.Background(), tx))
	require.NoError(t, tx.Commit())
}

func newStatementTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := newTestDB(t)
	_, err := db.Exec(`
		CREATE TABLE widgets (
			instance_id TEXT NOT NULL,
			id          TEXT NOT NULL,
			name        TEXT NOT NULL,
			sequence    INTEGER NOT NULL,
			PRIMARY KEY (instance_id, id)
		)`)
	require.NoError(t, err)
	return db
}

func TestUpsertStatementReplaySafe(t *testing.T) {
	db := newStatementTestDB(t)

	execStatement(t, db, projection.NewUpsertStatement("widgets",
		[]string{"instance_id", "id"},
		[]projection.Column{
			projection.Col("instance_id", "inst-1"),
			projection.Col("id", "w1"),
			projection.Col("name", "first"),
			projection.Col("sequence", 1),
		}))

	// Replaying the same key updates in place instead of duplicating.
	execStatement(t, db, projection.NewUpsertStatement("widgets",
		[]string{"instance_id", "id"},
		[]projection.Column{
			projection.Col("instance_id", "inst-1"),
			projection.Col("id", "w1"),
			projection.Col("name", "second"),
			projection.Col("sequence", 2),
		}))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&count))
	assert.Equal(t, 1, count)

	var name string
	var sequence int
	require.NoError(t, db.QueryRow(
		`SELECT name, sequence FROM widgets WHERE instance_id = ? AND id = ?`,
		"inst-1", "w1").Scan(&name, &sequence))
	assert.Equal(t, "second", name)
	assert.Equal(t, 2, sequence)
}

func TestUpdateStatementMissingRowIsNoOp(t *testing.T) {
	db := newStatementTestDB(t)

	execStatement(t, db, projection.NewUpdateStatement("widgets",
		[]projection.Column{projection.Col("name", "ghost")},
		[]projection.Column{
			projection.Col("instance_id", "inst-1"),
			projection.Col("id", "missing"),
		}))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestDeleteStatementScopesByConditions(t *testing.T) {
	db := newStatementTestDB(t)

	for _, id := range []string{"w1", "w2"} {
		execStatement(t, db, projection.NewUpsertStatement("widgets",
			[]string{"instance_id", "id"},
			[]projection.Column{
				projection.Col("instance_id", "inst-1"),
				projection.Col("id", id),
				projection.Col("name", id),
				projection.Col("sequence", 1),
			}))
	}

	execStatement(t, db, projection.NewDeleteStatement("widgets",
		[]projection.Column{
			projection.Col("instance_id", "inst-1"),
			projection.Col("id", "w1"),
		}))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&count))
	assert.Equal(t, 1, count)

	var remaining string
	require.NoError(t, db.QueryRow(`SELECT id FROM widgets`).Scan(&remaining))
	assert.Equal(t, "w2", remaining)
}
