package domain

import "github.com/authapp/zitadel-sub003/pkg/eventstore"

// User-grant event vocabulary. A grant ties a user to a project with a
// set of role keys, owned by the granting org.
const (
	UserGrantAdded   eventstore.EventType = "usergrant.added"
	UserGrantChanged eventstore.EventType = "usergrant.changed"
	UserGrantRemoved eventstore.EventType = "usergrant.removed"
)

// UniqueUserGrant is the unique-constraint namespace guarding one grant
// per (user, project).
const UniqueUserGrant = "user_grants"

type UserGrantAddedPayload struct {
	UserID    string   `json:"userId"`
	ProjectID string   `json:"projectId"`
	RoleKeys  []string `json:"roleKeys"`
}

type UserGrantChangedPayload struct {
	RoleKeys []string `json:"roleKeys"`
}
