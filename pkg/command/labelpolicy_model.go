package command

import (
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

// LabelPolicyWriteModel folds the org's branding policy. There is at
// most one label policy per org.
type LabelPolicyWriteModel struct {
	WriteModel

	PolicyState         domain.PolicyState
	PrimaryColor        string
	BackgroundColor     string
	WarnColor           string
	FontColor           string
	HideLoginNameSuffix bool
}

func NewLabelPolicyWriteModel(instanceID, orgID string) *LabelPolicyWriteModel {
	return &LabelPolicyWriteModel{
		WriteModel: WriteModel{
			AggregateID:   orgID,
			AggregateType: domain.OrgAggregate,
			InstanceID:    instanceID,
			ResourceOwner: orgID,
		},
	}
}

func (wm *LabelPolicyWriteModel) Query() *eventstore.SearchQuery {
	return eventstore.NewSearchQuery(&eventstore.Filter{
		InstanceID:     wm.InstanceID,
		AggregateTypes: []eventstore.AggregateType{domain.OrgAggregate},
		AggregateIDs:   []string{wm.AggregateID},
		EventTypes: []eventstore.EventType{
			domain.LabelPolicyAdded,
			domain.LabelPolicyChanged,
			domain.LabelPolicyRemoved,
			domain.OrgRemoved,
		},
	})
}

func (wm *LabelPolicyWriteModel) Reduce() error {
	for _, event := range wm.Events {
		switch event.Type {
		case domain.LabelPolicyAdded:
			var payload domain.LabelPolicyAddedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			wm.PolicyState = domain.PolicyStateActive
			wm.PrimaryColor = payload.PrimaryColor
			wm.BackgroundColor = payload.BackgroundColor
			wm.WarnColor = payload.WarnColor
			wm.FontColor = payload.FontColor
			wm.HideLoginNameSuffix = payload.HideLoginNameSuffix
		case domain.LabelPolicyChanged:
			var payload domain.LabelPolicyChangedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			if payload.PrimaryColor != nil {
				wm.PrimaryColor = *payload.PrimaryColor
			}
			if payload.BackgroundColor != nil {
				wm.BackgroundColor = *payload.BackgroundColor
			}
			if payload.WarnColor != nil {
				wm.WarnColor = *payload.WarnColor
			}
			if payload.FontColor != nil {
				wm.FontColor = *payload.FontColor
			}
			if payload.HideLoginNameSuffix != nil {
				wm.HideLoginNameSuffix = *payload.HideLoginNameSuffix
			}
		case domain.LabelPolicyRemoved, domain.OrgRemoved:
			wm.PolicyState = domain.PolicyStateRemoved
		}
	}
	return wm.WriteModel.Reduce()
}
