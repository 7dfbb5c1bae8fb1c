package command

import (
	"slices"

	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

// OrgMemberWriteModel folds one membership of the org aggregate. Member
// events of other users pass through without effect.
type OrgMemberWriteModel struct {
	WriteModel

	UserID      string
	Roles       []string
	MemberState domain.MemberState
}

func NewOrgMemberWriteModel(instanceID, orgID, userID string) *OrgMemberWriteModel {
	return &OrgMemberWriteModel{
		WriteModel: WriteModel{
			AggregateID:   orgID,
			AggregateType: domain.OrgAggregate,
			InstanceID:    instanceID,
			ResourceOwner: orgID,
		},
		UserID: userID,
	}
}

func (wm *OrgMemberWriteModel) Query() *eventstore.SearchQuery {
	return eventstore.NewSearchQuery(&eventstore.Filter{
		InstanceID:     wm.InstanceID,
		AggregateTypes: []eventstore.AggregateType{domain.OrgAggregate},
		AggregateIDs:   []string{wm.AggregateID},
		EventTypes: []eventstore.EventType{
			domain.OrgMemberAdded,
			domain.OrgMemberChanged,
			domain.OrgMemberRemoved,
			domain.OrgRemoved,
		},
	})
}

func (wm *OrgMemberWriteModel) Reduce() error {
	for _, event := range wm.Events {
		switch event.Type {
		case domain.OrgMemberAdded:
			var payload domain.MemberAddedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			if payload.UserID != wm.UserID {
				continue
			}
			wm.MemberState = domain.MemberStateActive
			wm.Roles = payload.Roles
		case domain.OrgMemberChanged:
			var payload domain.MemberChangedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			if payload.UserID != wm.UserID {
				continue
			}
			wm.Roles = payload.Roles
		case domain.OrgMemberRemoved:
			var payload domain.MemberRemovedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			if payload.UserID != wm.UserID {
				continue
			}
			wm.MemberState = domain.MemberStateRemoved
			wm.Roles = nil
		case domain.OrgRemoved:
			wm.MemberState = domain.MemberStateRemoved
			wm.Roles = nil
		}
	}
	return wm.WriteModel.Reduce()
}

// RolesEqual reports whether the given roles match the current ones,
// order insensitive.
func (wm *OrgMemberWriteModel) RolesEqual(roles []string) bool {
	if len(roles) != len(wm.Roles) {
		return false
	}
	current := slices.Clone(wm.Roles)
	proposed := slices.Clone(roles)
	slices.Sort(current)
	slices.Sort(proposed)
	return slices.Equal(current, proposed)
}
