package models

import (
	"context"
	"database/sql"

	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/projection"
)

// OrgsProjection maintains the projections_orgs table.
type OrgsProjection struct{}

const OrgsProjectionName = "projections_orgs"

const orgsSchema = `
CREATE TABLE IF NOT EXISTS projections_orgs (
	id             TEXT NOT NULL,
	instance_id    TEXT NOT NULL,
	resource_owner TEXT NOT NULL,
	creation_date  INTEGER NOT NULL,
	change_date    INTEGER NOT NULL,
	sequence       INTEGER NOT NULL,
	state          INTEGER NOT NULL,
	name           TEXT NOT NULL,

	PRIMARY KEY (instance_id, id)
);
CREATE INDEX IF NOT EXISTS idx_projections_orgs_name
	ON projections_orgs (instance_id, name);
`

func NewOrgsProjection() *OrgsProjection {
	return &OrgsProjection{}
}

func (*OrgsProjection) Name() string {
	return OrgsProjectionName
}

func (*OrgsProjection) Init(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, orgsSchema)
	return err
}

func (*OrgsProjection) Reset(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM projections_orgs`)
	return err
}

func (p *OrgsProjection) Reducers() []projection.AggregateReducer {
	return []projection.AggregateReducer{
		{
			Aggregate: domain.OrgAggregate,
			EventReducers: map[eventstore.EventType]projection.Reduce{
				domain.OrgAdded:       p.reduceAdded,
				domain.OrgChanged:     p.reduceChanged,
				domain.OrgDeactivated: p.reduceState(domain.OrgStateInactive),
				domain.OrgReactivated: p.reduceState(domain.OrgStateActive),
				domain.OrgRemoved:     p.reduceRemoved,
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

func (*OrgsProjection) reduceAdded(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.OrgAddedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	return []*projection.Statement{
		projection.NewUpsertStatement(OrgsProjectionName,
			[]string{"instance_id", "id"},
			rowColumns(event, event.AggregateID,
				projection.Col("state", int(domain.OrgStateActive)),
				projection.Col("name", payload.Name),
			)),
	}, nil
}

func (*OrgsProjection) reduceChanged(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.OrgChangedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	return []*projection.Statement{
		projection.NewUpdateStatement(OrgsProjectionName,
			append(maintenanceColumns(event), projection.Col("name", payload.Name)),
			instanceCondition(event, projection.Col("id", event.AggregateID)),
		),
	}, nil
}

func (*OrgsProjection) reduceState(state domain.OrgState) projection.Reduce {
	return func(event *eventstore.Event) ([]*projection.Statement, error) {
		return []*projection.Statement{
			projection.NewUpdateStatement(OrgsProjectionName,
				append(maintenanceColumns(event), projection.Col("state", int(state))),
				instanceCondition(event, projection.Col("id", event.AggregateID)),
			),
		}, nil
	}
}

func (*OrgsProjection) reduceRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(OrgsProjectionName,
			instanceCondition(event, projection.Col("id", event.AggregateID))),
	}, nil
}

func (*OrgsProjection) reduceInstanceRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(OrgsProjectionName, instanceCondition(event)),
	}, nil
}
