package models

import (
	"context"
	"database/sql"
	"strings"

	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/projection"
)

// DeviceAuthsProjection maintains projections_device_auths. Settled
// flows keep their terminal state so token endpoints can answer polling
// clients.
type DeviceAuthsProjection struct{}

const DeviceAuthsProjectionName = "projections_device_auths"

const deviceAuthsSchema = `
CREATE TABLE IF NOT EXISTS projections_device_auths (
	id             TEXT NOT NULL,
	instance_id    TEXT NOT NULL,
	resource_owner TEXT NOT NULL,
	creation_date  INTEGER NOT NULL,
	change_date    INTEGER NOT NULL,
	sequence       INTEGER NOT NULL,
	state          INTEGER NOT NULL,
	client_id      TEXT NOT NULL,
	device_code    TEXT NOT NULL,
	user_code      TEXT NOT NULL,
	scope          TEXT NOT NULL DEFAULT '',
	expires_at     INTEGER NOT NULL,
	user_id        TEXT NOT NULL DEFAULT '',

	PRIMARY KEY (instance_id, id)
);
CREATE INDEX IF NOT EXISTS idx_projections_device_auths_user_code
	ON projections_device_auths (instance_id, user_code);
CREATE INDEX IF NOT EXISTS idx_projections_device_auths_device_code
	ON projections_device_auths (instance_id, device_code);
`

func NewDeviceAuthsProjection() *DeviceAuthsProjection {
	return &DeviceAuthsProjection{}
}

func (*DeviceAuthsProjection) Name() string {
	return DeviceAuthsProjectionName
}

func (*DeviceAuthsProjection) Init(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, deviceAuthsSchema)
	return err
}

func (*DeviceAuthsProjection) Reset(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM projections_device_auths`)
	return err
}

func (p *DeviceAuthsProjection) Reducers() []projection.AggregateReducer {
	return []projection.AggregateReducer{
		{
			Aggregate: domain.DeviceAuthAggregate,
			EventReducers: map[eventstore.EventType]projection.Reduce{
				domain.DeviceAuthRequested: p.reduceRequested,
				domain.DeviceAuthApproved:  p.reduceApproved,
				domain.DeviceAuthDenied:    p.reduceState(domain.DeviceAuthStateDenied),
				domain.DeviceAuthCancelled: p.reduceState(domain.DeviceAuthStateCancelled),
				domain.DeviceAuthExpired:   p.reduceState(domain.DeviceAuthStateExpired),
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

func (*DeviceAuthsProjection) reduceRequested(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.DeviceAuthRequestedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	return []*projection.Statement{
		projection.NewUpsertStatement(DeviceAuthsProjectionName,
			[]string{"instance_id", "id"},
			rowColumns(event, event.AggregateID,
				projection.Col("state", int(domain.DeviceAuthStateRequested)),
				projection.Col("client_id", payload.ClientID),
				projection.Col("device_code", payload.DeviceCode),
				projection.Col("user_code", payload.UserCode),
				projection.Col("scope", strings.Join(payload.Scope, " ")),
				projection.Col("expires_at", payload.ExpiresAt.UnixMicro()),
			)),
	}, nil
}

func (*DeviceAuthsProjection) reduceApproved(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.DeviceAuthApprovedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	return []*projection.Statement{
		projection.NewUpdateStatement(DeviceAuthsProjectionName,
			append(maintenanceColumns(event),
				projection.Col("state", int(domain.DeviceAuthStateApproved)),
				projection.Col("user_id", payload.UserID)),
			instanceCondition(event, projection.Col("id", event.AggregateID)),
		),
	}, nil
}

func (*DeviceAuthsProjection) reduceState(state domain.DeviceAuthState) projection.Reduce {
	return func(event *eventstore.Event) ([]*projection.Statement, error) {
		return []*projection.Statement{
			projection.NewUpdateStatement(DeviceAuthsProjectionName,
				append(maintenanceColumns(event), projection.Col("state", int(state))),
				instanceCondition(event, projection.Col("id", event.AggregateID)),
			),
		}, nil
	}
}

func (*DeviceAuthsProjection) reduceInstanceRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(DeviceAuthsProjectionName, instanceCondition(event)),
	}, nil
}
