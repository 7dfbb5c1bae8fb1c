package models

import (
	"context"
	"database/sql"
	"strings"

	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/projection"
)

// UserGrantsProjection maintains projections_user_grants. Removing the
// granted user or the owning org cascades.
type UserGrantsProjection struct{}

const UserGrantsProjectionName = "projections_user_grants"

const userGrantsSchema = `
CREATE TABLE IF NOT EXISTS projections_user_grants (
	id             TEXT NOT NULL,
	instance_id    TEXT NOT NULL,
	resource_owner TEXT NOT NULL,
	creation_date  INTEGER NOT NULL,
	change_date    INTEGER NOT NULL,
	sequence       INTEGER NOT NULL,
	user_id        TEXT NOT NULL,
	project_id     TEXT NOT NULL,
	role_keys      TEXT NOT NULL,

	PRIMARY KEY (instance_id, id)
);
CREATE INDEX IF NOT EXISTS idx_projections_user_grants_user
	ON projections_user_grants (instance_id, user_id);
CREATE INDEX IF NOT EXISTS idx_projections_user_grants_project
	ON projections_user_grants (instance_id, project_id);
`

func NewUserGrantsProjection() *UserGrantsProjection {
	return &UserGrantsProjection{}
}

func (*UserGrantsProjection) Name() string {
	return UserGrantsProjectionName
}

func (*UserGrantsProjection) Init(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, userGrantsSchema)
	return err
}

func (*UserGrantsProjection) Reset(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM projections_user_grants`)
	return err
}

func (p *UserGrantsProjection) Reducers() []projection.AggregateReducer {
	return []projection.AggregateReducer{
		{
			Aggregate: domain.UserGrantAggregate,
			EventReducers: map[eventstore.EventType]projection.Reduce{
				domain.UserGrantAdded:   p.reduceAdded,
				domain.UserGrantChanged: p.reduceChanged,
				domain.UserGrantRemoved: p.reduceRemoved,
			},
		},
		{
			Aggregate: domain.UserAggregate,
			EventReducers: map[eventstore.EventType]projection.Reduce{
				domain.UserRemoved: p.reduceUserRemoved,
			},
		},
		{
			Aggregate: domain.OrgAggregate,
			EventReducers: map[eventstore.EventType]projection.Reduce{
				domain.OrgRemoved: p.reduceOrgRemoved,
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

func (*UserGrantsProjection) reduceAdded(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.UserGrantAddedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	return []*projection.Statement{
		projection.NewUpsertStatement(UserGrantsProjectionName,
			[]string{"instance_id", "id"},
			rowColumns(event, event.AggregateID,
				projection.Col("user_id", payload.UserID),
				projection.Col("project_id", payload.ProjectID),
				projection.Col("role_keys", strings.Join(payload.RoleKeys, ",")),
			)),
	}, nil
}

func (*UserGrantsProjection) reduceChanged(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.UserGrantChangedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	return []*projection.Statement{
		projection.NewUpdateStatement(UserGrantsProjectionName,
			append(maintenanceColumns(event), projection.Col("role_keys", strings.Join(payload.RoleKeys, ","))),
			instanceCondition(event, projection.Col("id", event.AggregateID)),
		),
	}, nil
}

func (*UserGrantsProjection) reduceRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(UserGrantsProjectionName,
			instanceCondition(event, projection.Col("id", event.AggregateID))),
	}, nil
}

func (*UserGrantsProjection) reduceUserRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(UserGrantsProjectionName,
			instanceCondition(event, projection.Col("user_id", event.AggregateID))),
	}, nil
}

func (*UserGrantsProjection) reduceOrgRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(UserGrantsProjectionName,
			instanceCondition(event, projection.Col("resource_owner", event.AggregateID))),
	}, nil
}

func (*UserGrantsProjection) reduceInstanceRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(UserGrantsProjectionName, instanceCondition(event)),
	}, nil
}
