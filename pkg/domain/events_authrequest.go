package domain

import "github.com/authapp/zitadel-sub003/pkg/eventstore"

// Auth-request event vocabulary. Factor tracking is orthogonal to the
// main lifecycle: each factor is independently checked or failed; once
// the required factors are satisfied the request is AUTHENTICATED, and a
// single failed factor terminates it.
const (
	AuthRequestAdded           eventstore.EventType = "authrequest.added"
	AuthRequestUserSelected    eventstore.EventType = "authrequest.user.selected"
	AuthRequestPasswordChecked eventstore.EventType = "authrequest.password.checked"
	AuthRequestTOTPChecked     eventstore.EventType = "authrequest.totp.checked"
	AuthRequestWebAuthNChecked eventstore.EventType = "authrequest.webauthn.checked"
	AuthRequestFactorFailed    eventstore.EventType = "authrequest.factor.failed"
	AuthRequestSucceeded       eventstore.EventType = "authrequest.succeeded"
	AuthRequestFailed          eventstore.EventType = "authrequest.failed"
)

type AuthRequestAddedPayload struct {
	LoginClient string   `json:"loginClient"`
	ClientID    string   `json:"clientId"`
	RedirectURI string   `json:"redirectUri"`
	Scope       []string `json:"scope,omitempty"`

	// RequiredFactors lists the factors that must be checked before the
	// request becomes AUTHENTICATED. Empty means password only.
	RequiredFactors []AuthFactor `json:"requiredFactors,omitempty"`
}

type AuthRequestUserSelectedPayload struct {
	UserID string `json:"userId"`
}

type AuthRequestFactorFailedPayload struct {
	Factor AuthFactor `json:"factor"`
	Reason string     `json:"reason,omitempty"`
}

type AuthRequestFailedPayload struct {
	FailureReason string `json:"failureReason,omitempty"`
}
