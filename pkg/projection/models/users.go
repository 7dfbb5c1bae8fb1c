package models

import (
	"context"
	"database/sql"

	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/projection"
)

// UsersProjection maintains the projections_users table, one row per
// live user. Removing a user, its org or its instance deletes the rows.
type UsersProjection struct{}

const UsersProjectionName = "projections_users"

const usersSchema = `
CREATE TABLE IF NOT EXISTS projections_users (
	id                 TEXT NOT NULL,
	instance_id        TEXT NOT NULL,
	resource_owner     TEXT NOT NULL,
	creation_date      INTEGER NOT NULL,
	change_date        INTEGER NOT NULL,
	sequence           INTEGER NOT NULL,
	state              INTEGER NOT NULL,
	type               INTEGER NOT NULL,
	username           TEXT NOT NULL,
	first_name         TEXT NOT NULL DEFAULT '',
	last_name          TEXT NOT NULL DEFAULT '',
	display_name       TEXT NOT NULL DEFAULT '',
	preferred_language TEXT NOT NULL DEFAULT '',
	email              TEXT NOT NULL DEFAULT '',
	email_verified     INTEGER NOT NULL DEFAULT 0,
	machine_name       TEXT NOT NULL DEFAULT '',
	machine_description TEXT NOT NULL DEFAULT '',

	PRIMARY KEY (instance_id, id)
);
CREATE INDEX IF NOT EXISTS idx_projections_users_owner
	ON projections_users (instance_id, resource_owner);
CREATE INDEX IF NOT EXISTS idx_projections_users_username
	ON projections_users (instance_id, username);
`

func NewUsersProjection() *UsersProjection {
	return &UsersProjection{}
}

func (*UsersProjection) Name() string {
	return UsersProjectionName
}

func (*UsersProjection) Init(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, usersSchema)
	return err
}

func (*UsersProjection) Reset(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM projections_users`)
	return err
}

func (p *UsersProjection) Reducers() []projection.AggregateReducer {
	return []projection.AggregateReducer{
		{
			Aggregate: domain.UserAggregate,
			EventReducers: map[eventstore.EventType]projection.Reduce{
				domain.HumanAddedType:       p.reduceHumanAdded,
				domain.MachineAddedType:     p.reduceMachineAdded,
				domain.UserUsernameChanged:  p.reduceUsernameChanged,
				domain.HumanProfileChanged:  p.reduceProfileChanged,
				domain.HumanEmailChanged:    p.reduceEmailChanged,
				domain.HumanEmailVerified:   p.reduceEmailVerified,
				domain.UserDeactivated:      p.reduceState(domain.UserStateInactive),
				domain.UserReactivated:      p.reduceState(domain.UserStateActive),
				domain.UserLocked:           p.reduceState(domain.UserStateLocked),
				domain.UserUnlocked:         p.reduceState(domain.UserStateActive),
				domain.UserRemoved:          p.reduceRemoved,
			},
		},
		{
			Aggregate: domain.OrgAggregate,
			EventReducers: map[eventstore.EventType]projection.Reduce{
				domain.OrgRemoved: p.reduceOwnerRemoved,
			},
		},
		{
			Aggregate: domain.InstanceAggregate,
			EventReducers: map[eventstore.EventType]projection.Reduce{
				domain.InstanceRemoved: p.reduceInstanceRemoved,
			},
		},
	}
}

func (*UsersProjection) reduceHumanAdded(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.HumanAddedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	return []*projection.Statement{
		projection.NewUpsertStatement(UsersProjectionName,
			[]string{"instance_id", "id"},
			rowColumns(event, event.AggregateID,
				projection.Col("state", int(domain.UserStateActive)),
				projection.Col("type", int(domain.UserTypeHuman)),
				projection.Col("username", payload.Username),
				projection.Col("first_name", payload.FirstName),
				projection.Col("last_name", payload.LastName),
				projection.Col("display_name", payload.DisplayName),
				projection.Col("preferred_language", payload.PreferredLanguage),
				projection.Col("email", payload.Email),
				projection.Col("email_verified", 0),
			)),
	}, nil
}

func (*UsersProjection) reduceMachineAdded(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.MachineAddedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	return []*projection.Statement{
		projection.NewUpsertStatement(UsersProjectionName,
			[]string{"instance_id", "id"},
			rowColumns(event, event.AggregateID,
				projection.Col("state", int(domain.UserStateActive)),
				projection.Col("type", int(domain.UserTypeMachine)),
				projection.Col("username", payload.Username),
				projection.Col("machine_name", payload.Name),
				projection.Col("machine_description", payload.Description),
			)),
	}, nil
}

func (*UsersProjection) reduceUsernameChanged(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.UsernameChangedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	return []*projection.Statement{
		projection.NewUpdateStatement(UsersProjectionName,
			append(maintenanceColumns(event), projection.Col("username", payload.Username)),
			instanceCondition(event, projection.Col("id", event.AggregateID)),
		),
	}, nil
}

func (*UsersProjection) reduceProfileChanged(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.ProfileChangedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	columns := maintenanceColumns(event)
	if payload.FirstName != nil {
		columns = append(columns, projection.Col("first_name", *payload.FirstName))
	}
	if payload.LastName != nil {
		columns = append(columns, projection.Col("last_name", *payload.LastName))
	}
	if payload.DisplayName != nil {
		columns = append(columns, projection.Col("display_name", *payload.DisplayName))
	}
	if payload.PreferredLanguage != nil {
		columns = append(columns, projection.Col("preferred_language", *payload.PreferredLanguage))
	}
	return []*projection.Statement{
		projection.NewUpdateStatement(UsersProjectionName, columns,
			instanceCondition(event, projection.Col("id", event.AggregateID))),
	}, nil
}

func (*UsersProjection) reduceEmailChanged(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.EmailChangedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	return []*projection.Statement{
		projection.NewUpdateStatement(UsersProjectionName,
			append(maintenanceColumns(event),
				projection.Col("email", payload.Email),
				projection.Col("email_verified", 0)),
			instanceCondition(event, projection.Col("id", event.AggregateID)),
		),
	}, nil
}

func (*UsersProjection) reduceEmailVerified(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewUpdateStatement(UsersProjectionName,
			append(maintenanceColumns(event), projection.Col("email_verified", 1)),
			instanceCondition(event, projection.Col("id", event.AggregateID)),
		),
	}, nil
}

func (*UsersProjection) reduceState(state domain.UserState) projection.Reduce {
	return func(event *eventstore.Event) ([]*projection.Statement, error) {
		return []*projection.Statement{
			projection.NewUpdateStatement(UsersProjectionName,
				append(maintenanceColumns(event), projection.Col("state", int(state))),
				instanceCondition(event, projection.Col("id", event.AggregateID)),
			),
		}, nil
	}
}

func (*UsersProjection) reduceRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(UsersProjectionName,
			instanceCondition(event, projection.Col("id", event.AggregateID))),
	}, nil
}

func (*UsersProjection) reduceOwnerRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(UsersProjectionName,
			instanceCondition(event, projection.Col("resource_owner", event.AggregateID))),
	}, nil
}

func (*UsersProjection) reduceInstanceRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(UsersProjectionName,
			instanceCondition(event)),
	}, nil
}
