// Package eventstore defines the vocabulary and interfaces of the IAM
// core's append-only event log: events, commands, unique constraints,
// global positions, filters and the in-process subscription bus.
package eventstore

import "context"

// Reducer consumes event batches from a streaming query. AppendEvents
// receives a batch in ascending order; Reduce folds the appended batch
// into the reducer's state and is called after every batch so the caller
// never materializes the full result.
type Reducer interface {
	AppendEvents(events ...*Event)
	Reduce() error
}

// Pusher appends commands to the log.
type Pusher interface {
	// Push atomically inserts the commands as events in one transaction,
	// assigning per-aggregate versions and a commit-time position. All
	// unique-constraint side effects apply in the same transaction; any
	// conflict aborts the whole push.
	Push(ctx context.Context, commands ...*Command) ([]*Event, error)

	// PushWithConcurrencyCheck behaves like Push but rejects with a
	// Concurrency error if any aggregate written to has advanced past
	// expectedVersion.
	PushWithConcurrencyCheck(ctx context.Context, expectedVersion uint64, commands ...*Command) ([]*Event, error)
}

// Querier reads committed events.
type Querier interface {
	// Filter returns the events matching filter in (position, inTxOrder)
	// order, after the read-side mapper pipeline has been applied.
	Filter(ctx context.Context, filter *Filter) ([]*Event, error)

	// Search evaluates a disjunction of filters with optional exclusion.
	Search(ctx context.Context, query *SearchQuery) ([]*Event, error)

	// FilterToReducer streams matching events into reducer in batches.
	FilterToReducer(ctx context.Context, filter *Filter, reducer Reducer) error

	// LatestEvent returns the newest event of an aggregate, or nil.
	LatestEvent(ctx context.Context, aggregateType AggregateType, aggregateID string) (*Event, error)

	// Aggregate folds the read-through view of an aggregate up to version
	// (0 = latest). Returns nil when the aggregate has no events.
	Aggregate(ctx context.Context, aggregateType AggregateType, aggregateID string, version uint64) (*Aggregate, error)

	// Count returns the number of events matching filter.
	Count(ctx context.Context, filter *Filter) (uint64, error)

	// EventsAfterPosition returns up to limit events strictly after position.
	EventsAfterPosition(ctx context.Context, position Position, limit uint64) ([]*Event, error)

	// LatestPosition returns the highest committed position matching filter
	// (nil filter = whole log).
	LatestPosition(ctx context.Context, filter *Filter) (Position, error)
}

// EventStore is the full log surface: writes, reads, health and lifecycle.
type EventStore interface {
	Pusher
	Querier

	Health(ctx context.Context) error
	Close() error
}
