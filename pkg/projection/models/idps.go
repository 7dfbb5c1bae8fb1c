package models

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/projection"
)

// IDPsProjection maintains projections_idps. The kind-specific
// configuration is stored as a JSON column next to the type enum.
type IDPsProjection struct{}

const IDPsProjectionName = "projections_idps"

const idpsSchema = `
CREATE TABLE IF NOT EXISTS projections_idps (
	id             TEXT NOT NULL,
	org_id         TEXT NOT NULL,
	instance_id    TEXT NOT NULL,
	resource_owner TEXT NOT NULL,
	creation_date  INTEGER NOT NULL,
	change_date    INTEGER NOT NULL,
	sequence       INTEGER NOT NULL,
	name           TEXT NOT NULL,
	type           INTEGER NOT NULL,
	config         TEXT NOT NULL DEFAULT '{}',

	PRIMARY KEY (instance_id, id)
);
CREATE INDEX IF NOT EXISTS idx_projections_idps_org
	ON projections_idps (instance_id, org_id);
`

type idpConfig struct {
	OIDC  *domain.OIDCConfig  `json:"oidc,omitempty"`
	OAuth *domain.OAuthConfig `json:"oauth,omitempty"`
	LDAP  *domain.LDAPConfig  `json:"ldap,omitempty"`
	SAML  *domain.SAMLConfig  `json:"saml,omitempty"`
	JWT   *domain.JWTConfig   `json:"jwt,omitempty"`
}

func NewIDPsProjection() *IDPsProjection {
	return &IDPsProjection{}
}

func (*IDPsProjection) Name() string {
	return IDPsProjectionName
}

func (*IDPsProjection) Init(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, idpsSchema)
	return err
}

func (*IDPsProjection) Reset(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM projections_idps`)
	return err
}

func (p *IDPsProjection) Reducers() []projection.AggregateReducer {
	return []projection.AggregateReducer{
		{
			Aggregate: domain.OrgAggregate,
			EventReducers: map[eventstore.EventType]projection.Reduce{
				domain.IDPAdded:   p.reduceAdded,
				domain.IDPChanged: p.reduceChanged,
				domain.IDPRemoved: p.reduceRemoved,
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

func (*IDPsProjection) reduceAdded(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.IDPAddedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	config, err := json.Marshal(idpConfig{
		OIDC:  payload.OIDC,
		OAuth: payload.OAuth,
		LDAP:  payload.LDAP,
		SAML:  payload.SAML,
		JWT:   payload.JWT,
	})
	if err != nil {
		return nil, err
	}
	columns := []projection.Column{
		projection.Col("id", payload.IDPID),
		projection.Col("org_id", event.AggregateID),
		projection.Col("instance_id", event.InstanceID),
		projection.Col("resource_owner", event.Owner),
		projection.Col("creation_date", event.CreatedAt.UnixMicro()),
		projection.Col("change_date", event.CreatedAt.UnixMicro()),
		projection.Col("sequence", event.AggregateVersion),
		projection.Col("name", payload.Name),
		projection.Col("type", int(payload.Type)),
		projection.Col("config", string(config)),
	}
	return []*projection.Statement{
		projection.NewUpsertStatement(IDPsProjectionName,
			[]string{"instance_id", "id"}, columns),
	}, nil
}

func (*IDPsProjection) reduceChanged(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.IDPChangedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	columns := maintenanceColumns(event)
	if payload.Name != nil {
		columns = append(columns, projection.Col("name", *payload.Name))
	}
	if payload.OIDC != nil || payload.OAuth != nil || payload.LDAP != nil ||
		payload.SAML != nil || payload.JWT != nil {
		config, err := json.Marshal(idpConfig{
			OIDC:  payload.OIDC,
			OAuth: payload.OAuth,
			LDAP:  payload.LDAP,
			SAML:  payload.SAML,
			JWT:   payload.JWT,
		})
		if err != nil {
			return nil, err
		}
		columns = append(columns, projection.Col("config", string(config)))
	}
	return []*projection.Statement{
		projection.NewUpdateStatement(IDPsProjectionName, columns,
			instanceCondition(event, projection.Col("id", payload.IDPID))),
	}, nil
}

func (*IDPsProjection) reduceRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	var payload domain.IDPRemovedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return nil, err
	}
	return []*projection.Statement{
		projection.NewDeleteStatement(IDPsProjectionName,
			instanceCondition(event, projection.Col("id", payload.IDPID))),
	}, nil
}

func (*IDPsProjection) reduceOrgRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(IDPsProjectionName,
			instanceCondition(event, projection.Col("org_id", event.AggregateID))),
	}, nil
}

func (*IDPsProjection) reduceInstanceRemoved(event *eventstore.Event) ([]*projection.Statement, error) {
	return []*projection.Statement{
		projection.NewDeleteStatement(IDPsProjectionName, instanceCondition(event)),
	}, nil
}
