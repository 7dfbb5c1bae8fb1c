package command

import (
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

// IDPWriteModel folds one identity-provider configuration of the org
// aggregate. IDP events of other providers pass through without effect.
type IDPWriteModel struct {
	WriteModel

	IDPID    string
	IDPState domain.IDPState
	Name     string
	Type     domain.IDPType

	OIDC  *domain.OIDCConfig
	OAuth *domain.OAuthConfig
	LDAP  *domain.LDAPConfig
	SAML  *domain.SAMLConfig
	JWT   *domain.JWTConfig
}

func NewIDPWriteModel(instanceID, orgID, idpID string) *IDPWriteModel {
	return &IDPWriteModel{
		WriteModel: WriteModel{
			AggregateID:   orgID,
			AggregateType: domain.OrgAggregate,
			InstanceID:    instanceID,
			ResourceOwner: orgID,
		},
		IDPID: idpID,
	}
}

func (wm *IDPWriteModel) Query() *eventstore.SearchQuery {
	return eventstore.NewSearchQuery(&eventstore.Filter{
		InstanceID:     wm.InstanceID,
		AggregateTypes: []eventstore.AggregateType{domain.OrgAggregate},
		AggregateIDs:   []string{wm.AggregateID},
		EventTypes: []eventstore.EventType{
			domain.IDPAdded,
			domain.IDPChanged,
			domain.IDPRemoved,
			domain.OrgRemoved,
		},
	})
}

func (wm *IDPWriteModel) Reduce() error {
	for _, event := range wm.Events {
		switch event.Type {
		case domain.IDPAdded:
			var payload domain.IDPAddedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			if payload.IDPID != wm.IDPID {
				continue
			}
			wm.IDPState = domain.IDPStateActive
			wm.Name = payload.Name
			wm.Type = payload.Type
			wm.OIDC = payload.OIDC
			wm.OAuth = payload.OAuth
			wm.LDAP = payload.LDAP
			wm.SAML = payload.SAML
			wm.JWT = payload.JWT
		case domain.IDPChanged:
			var payload domain.IDPChangedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			if payload.IDPID != wm.IDPID {
				continue
			}
			if payload.Name != nil {
				wm.Name = *payload.Name
			}
			if payload.OIDC != nil {
				wm.OIDC = payload.OIDC
			}
			if payload.OAuth != nil {
				wm.OAuth = payload.OAuth
			}
			if payload.LDAP != nil {
				wm.LDAP = payload.LDAP
			}
			if payload.SAML != nil {
				wm.SAML = payload.SAML
			}
			if payload.JWT != nil {
				wm.JWT = payload.JWT
			}
		case domain.IDPRemoved:
			var payload domain.IDPRemovedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			if payload.IDPID != wm.IDPID {
				continue
			}
			wm.IDPState = domain.IDPStateRemoved
		case domain.OrgRemoved:
			wm.IDPState = domain.IDPStateRemoved
		}
	}
	return wm.WriteModel.Reduce()
}
