package command

import (
	"slices"

	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

// UserGrantWriteModel folds one user grant. It observes the granting
// org, so removing the org cascades into the REMOVED state.
type UserGrantWriteModel struct {
	WriteModel

	UserID     string
	ProjectID  string
	RoleKeys   []string
	GrantState domain.GrantState
}

func NewUserGrantWriteModel(instanceID, grantID, resourceOwner string) *UserGrantWriteModel {
	return &UserGrantWriteModel{
		WriteModel: WriteModel{
			AggregateID:   grantID,
			AggregateType: domain.UserGrantAggregate,
			InstanceID:    instanceID,
			ResourceOwner: resourceOwner,
		},
	}
}

func (wm *UserGrantWriteModel) Query() *eventstore.SearchQuery {
	filters := []*eventstore.Filter{{
		InstanceID:     wm.InstanceID,
		AggregateTypes: []eventstore.AggregateType{domain.UserGrantAggregate},
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

func (wm *UserGrantWriteModel) Reduce() error {
	for _, event := range wm.Events {
		switch event.Type {
		case domain.UserGrantAdded:
			var payload domain.UserGrantAddedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			wm.GrantState = domain.GrantStateActive
			wm.UserID = payload.UserID
			wm.ProjectID = payload.ProjectID
			wm.RoleKeys = payload.RoleKeys
		case domain.UserGrantChanged:
			var payload domain.UserGrantChangedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			wm.RoleKeys = payload.RoleKeys
		case domain.UserGrantRemoved:
			wm.GrantState = domain.GrantStateRemoved
		case domain.OrgRemoved:
			if event.AggregateID != wm.AggregateID {
				wm.GrantState = domain.GrantStateRemoved
			}
		}
	}
	return wm.WriteModel.Reduce()
}

// RoleKeysEqual reports whether the given role keys match the current
// ones, order insensitive.
func (wm *UserGrantWriteModel) RoleKeysEqual(roleKeys []string) bool {
	if len(roleKeys) != len(wm.RoleKeys) {
		return false
	}
	current := slices.Clone(wm.RoleKeys)
	proposed := slices.Clone(roleKeys)
	slices.Sort(current)
	slices.Sort(proposed)
	return slices.Equal(current, proposed)
}
