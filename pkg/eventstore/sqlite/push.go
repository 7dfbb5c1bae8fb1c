package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

type aggregateKey struct {
	instanceID    string
	aggregateType eventstore.AggregateType
	aggregateID   string
}

// Push atomically inserts the commands as events in one transaction.
func (s *Store) Push(ctx context.Context, commands ...*eventstore.Command) ([]*eventstore.Event, error) {
	return s.push(ctx, nil, commands)
}

// PushWithConcurrencyCheck rejects with a Concurrency error if any
// aggregate written to has advanced past expectedVersion.
func (s *Store) PushWithConcurrencyCheck(ctx context.Context, expectedVersion uint64, commands ...*eventstore.Command) ([]*eventstore.Event, error) {
	return s.push(ctx, &expectedVersion, commands)
}

func (s *Store) push(ctx context.Context, expectedVersion *uint64, commands []*eventstore.Command) ([]*eventstore.Event, error) {
	if len(commands) == 0 {
		return nil, nil
	}
	for _, command := range commands {
		if err := command.Validate(); err != nil {
			return nil, err
		}
	}

	start := time.Now()

	// Serializes version assignment and the position source; pushes on the
	// same aggregate cannot race.
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin push transaction: %w", err)
	}
	defer tx.Rollback()

	versions := make(map[aggregateKey]uint64)
	for _, command := range commands {
		key := aggregateKey{command.InstanceID, command.AggregateType, command.AggregateID}
		if _, ok := versions[key]; ok {
			continue
		}
		current, err := currentVersion(ctx, tx, key)
		if err != nil {
			return nil, err
		}
		if expectedVersion != nil && current > *expectedVersion {
			return nil, apperr.Concurrency(nil, "EVENT-Occ01", "aggregate has advanced past expected version", *expectedVersion, current).
				With("aggregate_type", string(key.aggregateType)).
				With("aggregate_id", key.aggregateID)
		}
		versions[key] = current
	}

	commitTime := s.now()
	position := s.nextPosition()
	positionValue, _ := position.Float64()

	events := make([]*eventstore.Event, 0, len(commands))
	for i, command := range commands {
		for _, constraint := range command.UniqueConstraints {
			if err := applyUniqueConstraint(ctx, tx, command.InstanceID, constraint); err != nil {
				return nil, err
			}
		}

		key := aggregateKey{command.InstanceID, command.AggregateType, command.AggregateID}
		versions[key]++

		payload, err := command.MarshalPayload()
		if err != nil {
			return nil, err
		}

		event := &eventstore.Event{
			InstanceID:       command.InstanceID,
			AggregateType:    command.AggregateType,
			AggregateID:      command.AggregateID,
			AggregateVersion: versions[key],
			Type:             command.Type,
			Revision:         command.PayloadRevision(),
			Payload:          payload,
			Creator:          command.Creator,
			Owner:            command.Owner,
			CreatedAt:        commitTime,
			Position: eventstore.Position{
				Position:  position,
				InTxOrder: uint32(i),
			},
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (
				instance_id, aggregate_type, aggregate_id, aggregate_version,
				event_type, revision, payload, creator, owner,
				position, in_tx_order, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			event.InstanceID, string(event.AggregateType), event.AggregateID, event.AggregateVersion,
			string(event.Type), event.Revision, nullableText(event.Payload), event.Creator, event.Owner,
			positionValue, event.Position.InTxOrder, event.CreatedAt.UnixMicro(),
		); err != nil {
			return nil, fmt.Errorf("insert event %s: %w", event.Type, err)
		}

		events = append(events, event)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit push: %w", err)
	}

	s.metrics.RecordPush(ctx, len(events), time.Since(start))
	if s.bus != nil {
		s.bus.Notify(events)
	}
	return events, nil
}

func currentVersion(ctx context.Context, tx *sql.Tx, key aggregateKey) (uint64, error) {
	var version uint64
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(aggregate_version), 0)
		FROM events
		WHERE instance_id = ? AND aggregate_type = ? AND aggregate_id = ?`,
		key.instanceID, string(key.aggregateType), key.aggregateID,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read current aggregate version: %w", err)
	}
	return version, nil
}

// applyUniqueConstraint executes one uniqueness side effect inside the
// push transaction. A conflicting Add aborts the whole push.
func applyUniqueConstraint(ctx context.Context, tx *sql.Tx, instanceID string, constraint *eventstore.UniqueConstraint) error {
	scope := instanceID
	if constraint.IsGlobal {
		scope = ""
	}

	switch constraint.Action {
	case eventstore.UniqueConstraintAdd:
		var exists bool
		err := tx.QueryRowContext(ctx, `
			SELECT 1 FROM unique_constraints
			WHERE instance_id = ? AND unique_type = ? AND unique_field = ?`,
			scope, constraint.UniqueType, constraint.UniqueField,
		).Scan(&exists)
		if err == nil {
			message := constraint.ErrorMessage
			if message == "" {
				message = "Errors.Internal.UniqueConstraint"
			}
			return apperr.UniqueConstraintViolation(nil, "EVENT-Unique01", constraint.UniqueType, constraint.UniqueField, message)
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check unique constraint: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO unique_constraints (instance_id, unique_type, unique_field)
			VALUES (?, ?, ?)`,
			scope, constraint.UniqueType, constraint.UniqueField,
		); err != nil {
			return fmt.Errorf("claim unique constraint: %w", err)
		}

	case eventstore.UniqueConstraintRemove:
		result, err := tx.ExecContext(ctx, `
			DELETE FROM unique_constraints
			WHERE instance_id = ? AND unique_type = ? AND unique_field = ?`,
			scope, constraint.UniqueType, constraint.UniqueField,
		)
		if err != nil {
			return fmt.Errorf("release unique constraint: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("release unique constraint: %w", err)
		}
		if affected == 0 {
			return apperr.Validation(nil, "EVENT-Unique04", "release of a value that was never claimed").
				With("unique_type", constraint.UniqueType).
				With("unique_field", constraint.UniqueField)
		}

	case eventstore.UniqueConstraintInstanceRemove:
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM unique_constraints WHERE instance_id = ?`,
			instanceID,
		); err != nil {
			return fmt.Errorf("clear instance unique constraints: %w", err)
		}

	default:
		return apperr.Validation(nil, "EVENT-Unique05", "unknown unique constraint action")
	}
	return nil
}

func nullableText(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}
