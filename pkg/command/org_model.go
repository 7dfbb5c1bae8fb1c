package command

import (
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

// OrgWriteModel folds the org lifecycle and name.
type OrgWriteModel struct {
	WriteModel

	OrgState domain.OrgState
	Name     string
}

func NewOrgWriteModel(instanceID, orgID string) *OrgWriteModel {
	return &OrgWriteModel{
		WriteModel: WriteModel{
			AggregateID:   orgID,
			AggregateType: domain.OrgAggregate,
			InstanceID:    instanceID,
		},
	}
}

func (wm *OrgWriteModel) Query() *eventstore.SearchQuery {
	return eventstore.NewSearchQuery(&eventstore.Filter{
		InstanceID:     wm.InstanceID,
		AggregateTypes: []eventstore.AggregateType{domain.OrgAggregate},
		AggregateIDs:   []string{wm.AggregateID},
		EventTypes: []eventstore.EventType{
			domain.OrgAdded,
			domain.OrgChanged,
			domain.OrgDeactivated,
			domain.OrgReactivated,
			domain.OrgRemoved,
		},
	})
}

func (wm *OrgWriteModel) Reduce() error {
	for _, event := range wm.Events {
		switch event.Type {
		case domain.OrgAdded:
			var payload domain.OrgAddedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			wm.OrgState = domain.OrgStateActive
			wm.Name = payload.Name
		case domain.OrgChanged:
			var payload domain.OrgChangedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			wm.Name = payload.Name
		case domain.OrgDeactivated:
			wm.OrgState = domain.OrgStateInactive
		case domain.OrgReactivated:
			wm.OrgState = domain.OrgStateActive
		case domain.OrgRemoved:
			wm.OrgState = domain.OrgStateRemoved
		}
	}
	return wm.WriteModel.Reduce()
}
