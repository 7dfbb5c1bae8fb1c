package models

import (
	"context"
	"database/sql"
	"strings"

	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/projection"
)

// OrgMembersProjection maintains projections_org_members, keyed by
// (instance, org, user). Removing the org or the user cascades.
type OrgMembersProjection struct{}

const OrgMembersProjectionName = "projections_org_members"

const orgMembersSchema = `
CREATE TABLE IF NOT EXISTS projections_org_members (
	org_id         TEXT NOT NULL,
	user_id        TEXT NOT NULL,
	instance_id    TEXT NOT NULL,
	resource_owner TEXT NOT NULL,
	creation_date  INTEGER NOT NULL,
	change_date    INTEGER NOT NULL,
	sequence       INTEGER NOT NULL,
	roles          TEXT NOT NULL,

	PRIMARY KEY (instance_id, org_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_projections_org_members_user
	ON projections_org_members (instance_id, user_id);
`

func NewOrgMembersProjection() *OrgMembersProjection {
	return &OrgMembersProjection{}
}

func (*OrgMembersProjection) Name() string {
	return OrgMembersProjectionName
}

func (*OrgMembersProjection) Init(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, orgMembersSchema)
	return err
}

func (*OrgMembersProjection) Reset(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM projections_org_members`)
	return err
}

func (p *OrgMembersProjection) Reducers() []projection.AggregateReducer {
	return []projection.AggregateReducer{
		{
			Aggregate: domain.OrgAggregate,
			EventReducers: map[eventstore.EventType]projection.Reduce{
				domain.OrgMemberAdded:   p.reduceAdded,
				domain.OrgMemberChanged: p.reduceChanged,
				domain.OrgMemberRemoved: p.reduceRemoved,
				domain.OrgRemoved:       p.reduceOrgRemoved,
			},
		},
		{
			Aggregate: domain.UserAggregate,
			EventReducers: map[eventstore.EventType]projection.Reduce{
				domain.UserRemoved: p.reduceUserRemoved,
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

func (*OrgMembersProjection) reduceAdded(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.MemberAddedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	columns := []projection.Column{
		projection.Col("org_id", event.AggregateID),
		projection.Col("user_id", payload.UserID),
		projection.Col("instance_id", event.InstanceID),
		projection.Col("resource_owner", event.Owner),
		projection.Col("creation_date", event.CreatedAt.UnixMicro()),
		projection.Col("change_date", event.CreatedAt.UnixMicro()),
		projection.Col("sequence", event.AggregateVersion),
		projection.Col("roles", strings.Join(payload.Roles, ",")),
	}
	return []*projection.Statement{
		projection.NewUpsertStatement(OrgMembersProjectionName,
			[]string{"instance_id", "org_id", "user_id"}, columns),
	}, nil
}

func (*OrgMembersProjection) reduceChanged(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.MemberChangedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	return []*projection.Statement{
		projection.NewUpdateStatement(OrgMembersProjectionName,
			append(maintenanceColumns(event), projection.Col("roles", strings.Join(payload.Roles, ","))),
			instanceCondition(event,
				projection.Col("org_id", event.AggregateID),
				projection.Col("user_id", payload.UserID)),
		),
	}, nil
}

func (*OrgMembersProjection) reduceRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.MemberRemovedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	return []*projection.Statement{
		projection.NewDeleteStatement(OrgMembersProjectionName,
			instanceCondition(event,
				projection.Col("org_id", event.AggregateID),
				projection.Col("user_id", payload.UserID)),
		),
	}, nil
}

func (*OrgMembersProjection) reduceOrgRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(OrgMembersProjectionName,
			instanceCondition(event, projection.Col("org_id", event.AggregateID))),
	}, nil
}

func (*OrgMembersProjection) reduceUserRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(OrgMembersProjectionName,
			instanceCondition(event, projection.Col("user_id", event.AggregateID))),
	}, nil
}

func (*OrgMembersProjection) reduceInstanceRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(OrgMembersProjectionName, instanceCondition(event)),
	}, nil
}
