package domain

import "github.com/authapp/zitadel-sub003/pkg/eventstore"

// User event vocabulary. Added/set payloads carry full state, changed
// payloads carry only the fields that changed (nil = unchanged), removed
// payloads are empty.
const (
	HumanAddedType        eventstore.EventType = "user.human.added"
	MachineAddedType      eventstore.EventType = "user.machine.added"
	UserUsernameChanged   eventstore.EventType = "user.username.changed"
	HumanProfileChanged   eventstore.EventType = "user.human.profile.changed"
	HumanEmailChanged     eventstore.EventType = "user.human.email.changed"
	HumanEmailVerified    eventstore.EventType = "user.human.email.verified"
	HumanEmailCodeAdded   eventstore.EventType = "user.human.email.code.added"
	HumanPasswordChanged  eventstore.EventType = "user.human.password.changed"
	HumanPasswordChecked  eventstore.EventType = "user.human.password.check.succeeded"
	HumanPasswordCheckErr eventstore.EventType = "user.human.password.check.failed"
	UserDeactivated       eventstore.EventType = "user.deactivated"
	UserReactivated       eventstore.EventType = "user.reactivated"
	UserLocked            eventstore.EventType = "user.locked"
	UserUnlocked          eventstore.EventType = "user.unlocked"
	UserRemoved           eventstore.EventType = "user.removed"
)

// UniqueUsername is the unique-constraint namespace for usernames.
const UniqueUsername = "usernames"

type HumanAddedPayload struct {
	Username          string `json:"username"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	DisplayName       string `json:"displayName,omitempty"`
	PreferredLanguage string `json:"preferredLanguage,omitempty"`
	Email             string `json:"email"`
}

type MachineAddedPayload struct {
	Username    string `json:"username"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type UsernameChangedPayload struct {
	Username string `json:"username"`
}

type ProfileChangedPayload struct {
	FirstName         *string `json:"firstName,omitempty"`
	LastName          *string `json:"lastName,omitempty"`
	DisplayName       *string `json:"displayName,omitempty"`
	PreferredLanguage *string `json:"preferredLanguage,omitempty"`
}

// IsEmpty reports whether the change carries no field at all.
func (p *ProfileChangedPayload) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.DisplayName == nil && p.PreferredLanguage == nil
}

type EmailChangedPayload struct {
	Email string `json:"email"`
}

type EmailCodeAddedPayload struct {
	ExpiresAt int64 `json:"expiresAt"`
}

type PasswordChangedPayload struct {
	EncodedHash    string `json:"encodedHash"`
	ChangeRequired bool   `json:"changeRequired"`
}
