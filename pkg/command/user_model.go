package command

import (
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

// UserWriteModel folds every event of one user, human or machine. It
// additionally observes its org and instance so cascading removals
// surface as the DELETED state.
type UserWriteModel struct {
	WriteModel

	UserType  domain.UserType
	UserState domain.UserState

	Username          string
	FirstName         string
	LastName          string
	DisplayName       string
	PreferredLanguage string
	Email             string
	EmailVerified     bool

	MachineName        string
	MachineDescription string

	EncodedHash            string
	PasswordChangeRequired bool
}

// NewUserWriteModel prepares a model for the given user. resourceOwner
// may be empty when the caller does not know the org yet; cascade events
// of the org are then not observed.
func NewUserWriteModel(instanceID, userID, resourceOwner string) *UserWriteModel {
	return &UserWriteModel{
		WriteModel: WriteModel{
			AggregateID:   userID,
			AggregateType: domain.UserAggregate,
			InstanceID:    instanceID,
			ResourceOwner: resourceOwner,
		},
	}
}

func (wm *UserWriteModel) Query() *eventstore.SearchQuery {
	filters := []*eventstore.Filter{{
		InstanceID:     wm.InstanceID,
		AggregateTypes: []eventstore.AggregateType{domain.UserAggregate},
		AggregateIDs:   []string{wm.AggregateID},
	}}
	if wm.ResourceOwner != "" {
		filters = append(filters, &eventstore.Filter{
			InstanceID:     wm.InstanceID,
			AggregateTypes: []eventstore.AggregateType{domain.OrgAggregate},
			AggregateIDs:   []string{wm.ResourceOwner},
			EventTypes:     []eventstore.EventType{domain.OrgRemoved},
		})
	}
	return eventstore.NewSearchQuery(filters...)
}

func (wm *UserWriteModel) Reduce() error {
	for _, event := range wm.Events {
		switch event.Type {
		case domain.HumanAddedType:
			var payload domain.HumanAddedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			wm.UserType = domain.UserTypeHuman
			wm.UserState = domain.UserStateActive
			wm.Username = payload.Username
			wm.FirstName = payload.FirstName
			wm.LastName = payload.LastName
			wm.DisplayName = payload.DisplayName
			wm.PreferredLanguage = payload.PreferredLanguage
			wm.Email = payload.Email
			wm.EmailVerified = false
		case domain.MachineAddedType:
			var payload domain.MachineAddedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			wm.UserType = domain.UserTypeMachine
			wm.UserState = domain.UserStateActive
			wm.Username = payload.Username
			wm.MachineName = payload.Name
			wm.MachineDescription = payload.Description
		case domain.UserUsernameChanged:
			var payload domain.UsernameChangedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			wm.Username = payload.Username
		case domain.HumanProfileChanged:
			var payload domain.ProfileChangedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			if payload.FirstName != nil {
				wm.FirstName = *payload.FirstName
			}
			if payload.LastName != nil {
				wm.LastName = *payload.LastName
			}
			if payload.DisplayName != nil {
				wm.DisplayName = *payload.DisplayName
			}
			if payload.PreferredLanguage != nil {
				wm.PreferredLanguage = *payload.PreferredLanguage
			}
		case domain.HumanEmailChanged:
			var payload domain.EmailChangedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			wm.Email = payload.Email
			wm.EmailVerified = false
		case domain.HumanEmailVerified:
			wm.EmailVerified = true
		case domain.HumanPasswordChanged:
			var payload domain.PasswordChangedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			wm.EncodedHash = payload.EncodedHash
			wm.PasswordChangeRequired = payload.ChangeRequired
		case domain.UserDeactivated:
			wm.UserState = domain.UserStateInactive
		case domain.UserReactivated, domain.UserUnlocked:
			wm.UserState = domain.UserStateActive
		case domain.UserLocked:
			wm.UserState = domain.UserStateLocked
		case domain.UserRemoved:
			wm.UserState = domain.UserStateDeleted
		case domain.OrgRemoved, domain.InstanceRemoved:
			if event.AggregateID != wm.AggregateID {
				wm.UserState = domain.UserStateDeleted
			}
		}
	}
	return wm.WriteModel.Reduce()
}
