// Package projection runs read-model builders against the event log:
// catch-up from the store, live updates from the subscription bus, and a
// gap sweeper. Row updates and the checkpoint advance commit in one
// transaction, so a projection is always internally consistent.
package projection

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
)

// Statement is one SQL mutation derived from an event. Reducers return
// statements instead of touching the database, which lets the runtime
// batch them with the checkpoint write.
type Statement struct {
	SQL  string
	Args []any
}

// Exec runs the statement inside the projection transaction.
func (s *Statement) Exec(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, s.SQL, s.Args...); err != nil {
		return apperr.Internal(err, "PROJ-Stmt01", "projection statement failed").
			With("sql", s.SQL)
	}
	return nil
}

// Column is a name/value pair used by the statement builders.
type Column struct {
	Name  string
	Value any
}

// Col is shorthand for building a Column.
func Col(name string, value any) Column {
	return Column{Name: name, Value: value}
}

// NewUpsertStatement inserts a row or, when the conflict keys already
// exist, updates every non-key column. Reducers use it so replays are
// idempotent.
func NewUpsertStatement(table string, conflictKeys []string, columns []Column) *Statement {
	names := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, column := range columns {
		names[i] = column.Name
		placeholders[i] = "?"
		args[i] = column.Value
	}

	keySet := make(map[string]bool, len(conflictKeys))
	for _, key := range conflictKeys {
		keySet[key] = true
	}
	updates := make([]string, 0, len(columns))
	for _, column := range columns {
		if keySet[column.Name] {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", column.Name, column.Name))
	}

	return &Statement{
		SQL: fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
			table,
			strings.Join(names, ", "),
			strings.Join(placeholders, ", "),
			strings.Join(conflictKeys, ", "),
			strings.Join(updates, ", "),
		),
		Args: args,
	}
}

// NewUpdateStatement updates the columns of rows matching the
// conditions. Updating a row that does not exist is a no-op, which keeps
// out-of-order deletes safe.
func NewUpdateStatement(table string, columns []Column, conditions []Column) *Statement {
	sets := make([]string, len(columns))
	args := make([]any, 0, len(columns)+len(conditions))
	for i, column := range columns {
		sets[i] = column.Name + " = ?"
		args = append(args, column.Value)
	}
	wheres := make([]string, len(conditions))
	for i, condition := range conditions {
		wheres[i] = condition.Name + " = ?"
		args = append(args, condition.Value)
	}

	return &Statement{
		SQL: fmt.Sprintf(
			"UPDATE %s SET %s WHERE %s",
			table,
			strings.Join(sets, ", "),
			strings.Join(wheres, " AND "),
		),
		Args: args,
	}
}

// NewDeleteStatement removes the rows matching the conditions.
func NewDeleteStatement(table string, conditions []Column) *Statement {
	wheres := make([]string, len(conditions))
	args := make([]any, len(conditions))
	for i, condition := range conditions {
		wheres[i] = condition.Name + " = ?"
		args[i] = condition.Value
	}

	return &Statement{
		SQL:  fmt.Sprintf("DELETE FROM %s WHERE %s", table, strings.Join(wheres, " AND ")),
		Args: args,
	}
}

// NoOpStatement is returned by reducers that consciously skip an event.
func NoOpStatement() *Statement {
	return nil
}
