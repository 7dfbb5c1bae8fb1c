package domain

import "github.com/authapp/zitadel-sub003/pkg/eventstore"

// Identity-provider event vocabulary. The type-specific configuration is
// carried inside the event payload; projections encode the kind as an
// enum column.
const (
	IDPAdded   eventstore.EventType = "org.idp.added"
	IDPChanged eventstore.EventType = "org.idp.changed"
	IDPRemoved eventstore.EventType = "org.idp.removed"
)

// UniqueIDPName is the unique-constraint namespace for IDP names per org.
const UniqueIDPName = "idp_names"

type IDPAddedPayload struct {
	IDPID string  `json:"idpId"`
	Name  string  `json:"name"`
	Type  IDPType `json:"type"`

	OIDC  *OIDCConfig  `json:"oidc,omitempty"`
	OAuth *OAuthConfig `json:"oauth,omitempty"`
	LDAP  *LDAPConfig  `json:"ldap,omitempty"`
	SAML  *SAMLConfig  `json:"saml,omitempty"`
	JWT   *JWTConfig   `json:"jwt,omitempty"`
}

type IDPChangedPayload struct {
	IDPID string  `json:"idpId"`
	Name  *string `json:"name,omitempty"`

	OIDC  *OIDCConfig  `json:"oidc,omitempty"`
	OAuth *OAuthConfig `json:"oauth,omitempty"`
	LDAP  *LDAPConfig  `json:"ldap,omitempty"`
	SAML  *SAMLConfig  `json:"saml,omitempty"`
	JWT   *JWTConfig   `json:"jwt,omitempty"`
}

// IsEmpty reports whether the change carries no field at all.
func (p *IDPChangedPayload) IsEmpty() bool {
	return p.Name == nil && p.OIDC == nil && p.OAuth == nil && p.LDAP == nil &&
		p.SAML == nil && p.JWT == nil
}

type IDPRemovedPayload struct {
	IDPID string `json:"idpId"`
}

type OIDCConfig struct {
	Issuer       string   `json:"issuer"`
	ClientID     string   `json:"clientId"`
	ClientSecret string   `json:"clientSecret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
}

type OAuthConfig struct {
	AuthorizationEndpoint string   `json:"authorizationEndpoint"`
	TokenEndpoint         string   `json:"tokenEndpoint"`
	UserEndpoint          string   `json:"userEndpoint,omitempty"`
	ClientID              string   `json:"clientId"`
	ClientSecret          string   `json:"clientSecret,omitempty"`
	Scopes                []string `json:"scopes,omitempty"`
}

type LDAPConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port,omitempty"`
	BaseDN       string `json:"baseDn"`
	BindDN       string `json:"bindDn,omitempty"`
	BindPassword string `json:"bindPassword,omitempty"`
	UserFilter   string `json:"userFilter,omitempty"`
}

type SAMLConfig struct {
	MetadataURL string `json:"metadataUrl,omitempty"`
	Metadata    string `json:"metadata,omitempty"`
	Binding     string `json:"binding,omitempty"`
}

type JWTConfig struct {
	Issuer       string `json:"issuer"`
	JWTEndpoint  string `json:"jwtEndpoint"`
	KeysEndpoint string `json:"keysEndpoint"`
	HeaderName   string `json:"headerName,omitempty"`
}
