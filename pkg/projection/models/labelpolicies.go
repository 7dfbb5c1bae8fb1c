package models

import (
	"context"
	"database/sql"

	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/projection"
)

// LabelPoliciesProjection maintains projections_label_policies, one row
// per org branding policy.
type LabelPoliciesProjection struct{}

const LabelPoliciesProjectionName = "projections_label_policies"

const labelPoliciesSchema = `
CREATE TABLE IF NOT EXISTS projections_label_policies (
	org_id                 TEXT NOT NULL,
	instance_id            TEXT NOT NULL,
	resource_owner         TEXT NOT NULL,
	creation_date          INTEGER NOT NULL,
	change_date            INTEGER NOT NULL,
	sequence               INTEGER NOT NULL,
	primary_color          TEXT NOT NULL DEFAULT '',
	background_color       TEXT NOT NULL DEFAULT '',
	warn_color             TEXT NOT NULL DEFAULT '',
	font_color             TEXT NOT NULL DEFAULT '',
	hide_login_name_suffix INTEGER NOT NULL DEFAULT 0,

	PRIMARY KEY (instance_id, org_id)
);
`

func NewLabelPoliciesProjection() *LabelPoliciesProjection {
	return &LabelPoliciesProjection{}
}

func (*LabelPoliciesProjection) Name() string {
	return LabelPoliciesProjectionName
}

func (*LabelPoliciesProjection) Init(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, labelPoliciesSchema)
	return err
}

func (*LabelPoliciesProjection) Reset(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM projections_label_policies`)
	return err
}

func (p *LabelPoliciesProjection) Reducers() []projection.AggregateReducer {
	return []projection.AggregateReducer{
		{
			Aggregate: domain.OrgAggregate,
			EventReducers: map[eventstore.EventType]projection.Reduce{
				domain.LabelPolicyAdded:   p.reduceAdded,
				domain.LabelPolicyChanged: p.reduceChanged,
				domain.LabelPolicyRemoved: p.reduceRemoved,
				domain.OrgRemoved:         p.reduceRemoved,
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

func (*LabelPoliciesProjection) reduceAdded(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.LabelPolicyAddedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	hide := 0
	if payload.HideLoginNameSuffix {
		hide = 1
	}
	columns := []projection.Column{
		projection.Col("org_id", event.AggregateID),
		projection.Col("instance_id", event.InstanceID),
		projection.Col("resource_owner", event.Owner),
		projection.Col("creation_date", event.CreatedAt.UnixMicro()),
		projection.Col("change_date", event.CreatedAt.UnixMicro()),
		projection.Col("sequence", event.AggregateVersion),
		projection.Col("primary_color", payload.PrimaryColor),
		projection.Col("background_color", payload.BackgroundColor),
		projection.Col("warn_color", payload.WarnColor),
		projection.Col("font_color", payload.FontColor),
		projection.Col("hide_login_name_suffix", hide),
	}
	return []*projection.Statement{
		projection.NewUpsertStatement(LabelPoliciesProjectionName,
			[]string{"instance_id", "org_id"}, columns),
	}, nil
}

func (*LabelPoliciesProjection) reduceChanged(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.LabelPolicyChangedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	columns := maintenanceColumns(event)
	if payload.PrimaryColor != nil {
		columns = append(columns, projection.Col("primary_color", *payload.PrimaryColor))
	}
	if payload.BackgroundColor != nil {
		columns = append(columns, projection.Col("background_color", *payload.BackgroundColor))
	}
	if payload.WarnColor != nil {
		columns = append(columns, projection.Col("warn_color", *payload.WarnColor))
	}
	if payload.FontColor != nil {
		columns = append(columns, projection.Col("font_color", *payload.FontColor))
	}
	if payload.HideLoginNameSuffix != nil {
		hide := 0
		if *payload.HideLoginNameSuffix {
			hide = 1
		}
		columns = append(columns, projection.Col("hide_login_name_suffix", hide))
	}
	return []*projection.Statement{
		projection.NewUpdateStatement(LabelPoliciesProjectionName, columns,
			instanceCondition(event, projection.Col("org_id", event.AggregateID))),
	}, nil
}

func (*LabelPoliciesProjection) reduceRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(LabelPoliciesProjectionName,
			instanceCondition(event, projection.Col("org_id", event.AggregateID))),
	}, nil
}

func (*LabelPoliciesProjection) reduceInstanceRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(LabelPoliciesProjectionName, instanceCondition(event)),
	}, nil
}
