package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

const eventColumns = `
	instance_id, aggregate_type, aggregate_id, aggregate_version,
	event_type, revision, payload, creator, owner,
	position, in_tx_order, created_at`

// defaultBatchSize is the chunk size used by FilterToReducer.
const defaultBatchSize = 200

// Filter returns the events matching filter in (position, inTxOrder)
// order, after the mapper pipeline has run.
func (s *Store) Filter(ctx context.Context, filter *eventstore.Filter) ([]*eventstore.Event, error) {
	where, args := buildWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM events%s%s", eventColumns, where, orderAndLimit(filter.Descending, filter.Limit))
	return s.queryEvents(ctx, query, args)
}

// Search evaluates a disjunction of filter clauses with an optional
// conjunctive exclusion. An empty clause list means "all events".
func (s *Store) Search(ctx context.Context, search *eventstore.SearchQuery) ([]*eventstore.Event, error) {
	var builder strings.Builder
	var args []any

	builder.WriteString(fmt.Sprintf("SELECT %s FROM events", eventColumns))

	var clauses []string
	for _, filter := range search.Filters {
		conditions, filterArgs := buildConditions(filter)
		if len(conditions) == 0 {
			// An unconstrained clause matches everything.
			clauses = nil
			args = args[:0]
			break
		}
		clauses = append(clauses, "("+strings.Join(conditions, " AND ")+")")
		args = append(args, filterArgs...)
	}

	var predicates []string
	if len(clauses) > 0 {
		predicates = append(predicates, "("+strings.Join(clauses, " OR ")+")")
	}
	if search.Exclude != nil {
		conditions, excludeArgs := buildConditions(search.Exclude)
		if len(conditions) > 0 {
			predicates = append(predicates, "NOT ("+strings.Join(conditions, " AND ")+")")
			args = append(args, excludeArgs...)
		}
	}
	if len(predicates) > 0 {
		builder.WriteString(" WHERE " + strings.Join(predicates, " AND "))
	}
	builder.WriteString(orderAndLimit(search.Descending, search.Limit))

	return s.queryEvents(ctx, builder.String(), args)
}

// FilterToReducer streams matching events into reducer in ascending
// batches so the caller never materializes the full result.
func (s *Store) FilterToReducer(ctx context.Context, filter *eventstore.Filter, reducer eventstore.Reducer) error {
	remaining := filter.Limit
	cursor := filter.PositionAfter

	for {
		batch := *filter
		batch.Descending = false
		batch.PositionAfter = cursor
		batch.Limit = defaultBatchSize
		if remaining > 0 && remaining < defaultBatchSize {
			batch.Limit = remaining
		}

		events, err := s.Filter(ctx, &batch)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		reducer.AppendEvents(events...)
		if err := reducer.Reduce(); err != nil {
			return err
		}

		cursor = events[len(events)-1].Position
		if remaining > 0 {
			if uint64(len(events)) >= remaining {
				return nil
			}
			remaining -= uint64(len(events))
		}
		if uint64(len(events)) < batch.Limit {
			return nil
		}
	}
}

// LatestEvent returns the newest event of an aggregate, or nil when the
// aggregate has no events.
func (s *Store) LatestEvent(ctx context.Context, aggregateType eventstore.AggregateType, aggregateID string) (*eventstore.Event, error) {
	events, err := s.Filter(ctx, &eventstore.Filter{
		AggregateTypes: []eventstore.AggregateType{aggregateType},
		AggregateIDs:   []string{aggregateID},
		Descending:     true,
		Limit:          1,
	})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events[0], nil
}

// Aggregate folds the read-through view of an aggregate up to version
// (0 = latest). Returns nil when the aggregate has no events.
func (s *Store) Aggregate(ctx context.Context, aggregateType eventstore.AggregateType, aggregateID string, version uint64) (*eventstore.Aggregate, error) {
	where, args := buildWhere(&eventstore.Filter{
		AggregateTypes:      []eventstore.AggregateType{aggregateType},
		AggregateIDs:        []string{aggregateID},
		MaxAggregateVersion: version,
	})
	query := fmt.Sprintf("SELECT %s FROM events%s", eventColumns, where) + orderAndLimit(false, 0)

	events, err := s.queryEvents(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return eventstore.AggregateFromEvents(events), nil
}

// Count returns the number of events matching filter.
func (s *Store) Count(ctx context.Context, filter *eventstore.Filter) (uint64, error) {
	where, args := buildWhere(filter)
	var count uint64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// EventsAfterPosition returns up to limit events strictly after position,
// across all instances. Used by projection catch-up and the gap sweeper.
func (s *Store) EventsAfterPosition(ctx context.Context, position eventstore.Position, limit uint64) ([]*eventstore.Event, error) {
	return s.Filter(ctx, &eventstore.Filter{
		PositionAfter: position,
		Limit:         limit,
	})
}

// LatestPosition returns the highest committed position matching filter
// (nil = whole log). The zero position means the log is empty.
func (s *Store) LatestPosition(ctx context.Context, filter *eventstore.Filter) (eventstore.Position, error) {
	if filter == nil {
		filter = &eventstore.Filter{}
	}
	where, args := buildWhere(filter)
	query := "SELECT position, in_tx_order FROM events" + where + " ORDER BY position DESC, in_tx_order DESC LIMIT 1"

	var positionValue float64
	var inTxOrder uint32
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&positionValue, &inTxOrder)
	if err == sql.ErrNoRows {
		return eventstore.ZeroPosition, nil
	}
	if err != nil {
		return eventstore.ZeroPosition, fmt.Errorf("read latest position: %w", err)
	}
	return eventstore.Position{Position: decimal.NewFromFloat(positionValue), InTxOrder: inTxOrder}, nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args []any) ([]*eventstore.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*eventstore.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	if s.pipeline != nil {
		return s.pipeline.ApplyAll(events)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (*eventstore.Event, error) {
	var (
		event         eventstore.Event
		aggregateType string
		eventType     string
		payload       sql.NullString
		positionValue float64
		createdAt     int64
	)
	if err := rows.Scan(
		&event.InstanceID, &aggregateType, &event.AggregateID, &event.AggregateVersion,
		&eventType, &event.Revision, &payload, &event.Creator, &event.Owner,
		&positionValue, &event.Position.InTxOrder, &createdAt,
	); err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	event.AggregateType = eventstore.AggregateType(aggregateType)
	event.Type = eventstore.EventType(eventType)
	if payload.Valid {
		event.Payload = []byte(payload.String)
	}
	event.Position.Position = decimal.NewFromFloat(positionValue)
	event.CreatedAt = time.UnixMicro(createdAt)
	return &event, nil
}

func buildWhere(filter *eventstore.Filter) (string, []any) {
	conditions, args := buildConditions(filter)
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func buildConditions(filter *eventstore.Filter) ([]string, []any) {
	var conditions []string
	var args []any

	if filter.InstanceID != "" {
		conditions = append(conditions, "instance_id = ?")
		args = append(args, filter.InstanceID)
	}
	if len(filter.AggregateTypes) > 0 {
		conditions = append(conditions, "aggregate_type IN ("+placeholders(len(filter.AggregateTypes))+")")
		for _, t := range filter.AggregateTypes {
			args = append(args, string(t))
		}
	}
	if len(filter.AggregateIDs) > 0 {
		conditions = append(conditions, "aggregate_id IN ("+placeholders(len(filter.AggregateIDs))+")")
		for _, id := range filter.AggregateIDs {
			args = append(args, id)
		}
	}
	if len(filter.EventTypes) > 0 {
		conditions = append(conditions, "event_type IN ("+placeholders(len(filter.EventTypes))+")")
		for _, t := range filter.EventTypes {
			args = append(args, string(t))
		}
	}
	if filter.Owner != "" {
		conditions = append(conditions, "owner = ?")
		args = append(args, filter.Owner)
	}
	if filter.Creator != "" {
		conditions = append(conditions, "creator = ?")
		args = append(args, filter.Creator)
	}
	if !filter.CreatedAfter.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.CreatedAfter.UnixMicro())
	}
	if !filter.CreatedBefore.IsZero() {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, filter.CreatedBefore.UnixMicro())
	}
	if !filter.PositionAfter.IsZero() {
		positionValue, _ := filter.PositionAfter.Position.Float64()
		conditions = append(conditions, "(position > ? OR (position = ? AND in_tx_order > ?))")
		args = append(args, positionValue, positionValue, filter.PositionAfter.InTxOrder)
	}
	if filter.MaxAggregateVersion > 0 {
		conditions = append(conditions, "aggregate_version <= ?")
		args = append(args, filter.MaxAggregateVersion)
	}
	return conditions, args
}

func orderAndLimit(descending bool, limit uint64) string {
	order := " ORDER BY position, in_tx_order"
	if descending {
		order = " ORDER BY position DESC, in_tx_order DESC"
	}
	if limit > 0 {
		order += fmt.Sprintf(" LIMIT %d", limit)
	}
	return order
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
