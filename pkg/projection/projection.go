package projection

import (
	"context"
	"database/sql"

	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

// Reduce turns one event into the SQL statements that bring the read
// model up to date. Returning no statements skips the event; the
// checkpoint still advances past it.
type Reduce func(event *eventstore.Event) ([]*Statement, error)

// AggregateReducer declares which events of one aggregate type a
// projection consumes.
type AggregateReducer struct {
	Aggregate     eventstore.AggregateType
	EventReducers map[eventstore.EventType]Reduce
}

// Projection builds one read model from the log. Implementations are
// pure table builders; scheduling, retries and checkpointing belong to
// the runtime.
type Projection interface {
	// Name is the unique projection name, also the checkpoint key.
	Name() string

	// Init creates the projection's tables. It must be idempotent.
	Init(ctx context.Context, db *sql.DB) error

	// Reducers declares the consumed events and how to fold them.
	Reducers() []AggregateReducer

	// Reset clears the projected rows inside the given transaction so
	// the projection can rebuild from scratch.
	Reset(ctx context.Context, tx *sql.Tx) error
}
