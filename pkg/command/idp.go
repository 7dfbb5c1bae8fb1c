package command

import (
	"context"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/validators"
)

// AddIDP is the input for registering an external identity provider on
// an org. Exactly the config matching Type must be set.
type AddIDP struct {
	IDPID string
	Name  string
	Type  domain.IDPType

	OIDC  *domain.OIDCConfig
	OAuth *domain.OAuthConfig
	LDAP  *domain.LDAPConfig
	SAML  *domain.SAMLConfig
	JWT   *domain.JWTConfig
}

func (p *AddIDP) validate() error {
	if err := validators.ValidateStringLength(p.Name, "name", 1, 200).ToError("COMMAND-IDP01"); err != nil {
		return err
	}
	switch p.Type {
	case domain.IDPTypeOIDC, domain.IDPTypeAzureAD, domain.IDPTypeGoogle, domain.IDPTypeApple:
		if p.OIDC == nil || p.OIDC.Issuer == "" || p.OIDC.ClientID == "" {
			return apperr.Validation(nil, "COMMAND-IDP02", "oidc config requires issuer and client id")
		}
	case domain.IDPTypeOAuth:
		if p.OAuth == nil || p.OAuth.AuthorizationEndpoint == "" || p.OAuth.TokenEndpoint == "" || p.OAuth.ClientID == "" {
			return apperr.Validation(nil, "COMMAND-IDP03", "oauth config requires endpoints and client id")
		}
	case domain.IDPTypeLDAP:
		if p.LDAP == nil || p.LDAP.Host == "" || p.LDAP.BaseDN == "" {
			return apperr.Validation(nil, "COMMAND-IDP04", "ldap config requires host and base dn")
		}
	case domain.IDPTypeSAML:
		if p.SAML == nil || (p.SAML.MetadataURL == "" && p.SAML.Metadata == "") {
			return apperr.Validation(nil, "COMMAND-IDP05", "saml config requires metadata")
		}
	case domain.IDPTypeJWT:
		if p.JWT == nil || p.JWT.Issuer == "" || p.JWT.KeysEndpoint == "" {
			return apperr.Validation(nil, "COMMAND-IDP06", "jwt config requires issuer and keys endpoint")
		}
	default:
		return apperr.Validation(nil, "COMMAND-IDP07", "idp type must be specified")
	}
	return nil
}

// AddIDP registers an identity provider and claims its name within the
// org.
func (c *Commands) AddIDP(ctx context.Context, orgID string, idp *AddIDP) (*domain.ObjectDetails, error) {
	if err := idp.validate(); err != nil {
		return nil, err
	}
	if err := c.checkPermission(ctx, "org.idp.write", orgID, idp.IDPID); err != nil {
		return nil, err
	}
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	if !c.features.Enabled(ctx, instanceID, "idp") {
		return nil, apperr.FeatureDisabled(nil, "COMMAND-IDP08", "identity providers are disabled")
	}
	if _, err := c.existingOrg(ctx, orgID); err != nil {
		return nil, err
	}
	if idp.IDPID == "" {
		idp.IDPID, err = c.nextID()
		if err != nil {
			return nil, err
		}
	}

	wm := NewIDPWriteModel(instanceID, orgID, idp.IDPID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if wm.IDPState.Exists() {
		return nil, apperr.AlreadyExists(nil, "COMMAND-IDP09", "idp already exists")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.OrgAggregate, orgID, orgID, domain.IDPAdded,
			&domain.IDPAddedPayload{
				IDPID: idp.IDPID,
				Name:  idp.Name,
				Type:  idp.Type,
				OIDC:  idp.OIDC,
				OAuth: idp.OAuth,
				LDAP:  idp.LDAP,
				SAML:  idp.SAML,
				JWT:   idp.JWT,
			},
			eventstore.NewAddUniqueConstraint(domain.UniqueIDPName, orgID+":"+idp.Name, "Errors.IDP.AlreadyExists"),
		))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// ChangeIDP is a partial update of an identity provider; nil fields stay
// untouched.
type ChangeIDP struct {
	Name *string

	OIDC  *domain.OIDCConfig
	OAuth *domain.OAuthConfig
	LDAP  *domain.LDAPConfig
	SAML  *domain.SAMLConfig
	JWT   *domain.JWTConfig
}

// ChangeIDP updates the provider. A rename moves the name claim; a
// change that matches the current state writes nothing.
func (c *Commands) ChangeIDP(ctx context.Context, orgID, idpID string, change *ChangeIDP) (*domain.ObjectDetails, error) {
	if err := c.checkPermission(ctx, "org.idp.write", orgID, idpID); err != nil {
		return nil, err
	}
	wm, err := c.existingIDP(ctx, orgID, idpID)
	if err != nil {
		return nil, err
	}

	payload := &domain.IDPChangedPayload{IDPID: idpID}
	var constraints []*eventstore.UniqueConstraint
	if change.Name != nil && *change.Name != wm.Name {
		payload.Name = change.Name
		constraints = append(constraints,
			eventstore.NewRemoveUniqueConstraint(domain.UniqueIDPName, orgID+":"+wm.Name),
			eventstore.NewAddUniqueConstraint(domain.UniqueIDPName, orgID+":"+*change.Name, "Errors.IDP.AlreadyExists"),
		)
	}
	payload.OIDC = change.OIDC
	payload.OAuth = change.OAuth
	payload.LDAP = change.LDAP
	payload.SAML = change.SAML
	payload.JWT = change.JWT
	if payload.IsEmpty() {
		return wm.ObjectDetails(), nil
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.OrgAggregate, orgID, orgID, domain.IDPChanged, payload, constraints...))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// RemoveIDP deletes the provider and releases its name claim.
func (c *Commands) RemoveIDP(ctx context.Context, orgID, idpID string) (*domain.ObjectDetails, error) {
	if err := c.checkPermission(ctx, "org.idp.delete", orgID, idpID); err != nil {
		return nil, err
	}
	wm, err := c.existingIDP(ctx, orgID, idpID)
	if err != nil {
		return nil, err
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.OrgAggregate, orgID, orgID, domain.IDPRemoved,
			&domain.IDPRemovedPayload{IDPID: idpID},
			eventstore.NewRemoveUniqueConstraint(domain.UniqueIDPName, orgID+":"+wm.Name),
		))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

func (c *Commands) existingIDP(ctx context.Context, orgID, idpID string) (*IDPWriteModel, error) {
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	wm := NewIDPWriteModel(instanceID, orgID, idpID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if !wm.IDPState.Exists() {
		return nil, apperr.NotFound(nil, "COMMAND-IDP10", "idp not found")
	}
	return wm, nil
}
