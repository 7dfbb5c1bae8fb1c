package command

import (
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

// AuthRequestWriteModel folds one authentication flow. Factor checks
// are tracked per factor; the AUTHENTICATED state is derived once every
// required factor has been checked.
type AuthRequestWriteModel struct {
	WriteModel

	State       domain.AuthRequestState
	LoginClient string
	ClientID    string
	RedirectURI string
	Scope       []string
	UserID      string

	RequiredFactors []domain.AuthFactor
	CheckedFactors  map[domain.AuthFactor]bool
}

func NewAuthRequestWriteModel(instanceID, requestID string) *AuthRequestWriteModel {
	return &AuthRequestWriteModel{
		WriteModel: WriteModel{
			AggregateID:   requestID,
			AggregateType: domain.AuthRequestAggregate,
			InstanceID:    instanceID,
		},
		CheckedFactors: make(map[domain.AuthFactor]bool),
	}
}

func (wm *AuthRequestWriteModel) Query() *eventstore.SearchQuery {
	return eventstore.NewSearchQuery(&eventstore.Filter{
		InstanceID:     wm.InstanceID,
		AggregateTypes: []eventstore.AggregateType{domain.AuthRequestAggregate},
		AggregateIDs:   []string{wm.AggregateID},
	})
}

func (wm *AuthRequestWriteModel) Reduce() error {
	for _, event := range wm.Events {
		switch event.Type {
		case domain.AuthRequestAdded:
			var payload domain.AuthRequestAddedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			wm.State = domain.AuthRequestStateAdded
			wm.LoginClient = payload.LoginClient
			wm.ClientID = payload.ClientID
			wm.RedirectURI = payload.RedirectURI
			wm.Scope = payload.Scope
			wm.RequiredFactors = payload.RequiredFactors
			if len(wm.RequiredFactors) == 0 {
				wm.RequiredFactors = []domain.AuthFactor{domain.AuthFactorPassword}
			}
		case domain.AuthRequestUserSelected:
			var payload domain.AuthRequestUserSelectedPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				return err
			}
			wm.State = domain.AuthRequestStateUserSelected
			wm.UserID = payload.UserID
		case domain.AuthRequestPasswordChecked:
			wm.factorChecked(domain.AuthFactorPassword)
		case domain.AuthRequestTOTPChecked:
			wm.factorChecked(domain.AuthFactorTOTP)
		case domain.AuthRequestWebAuthNChecked:
			wm.factorChecked(domain.AuthFactorWebAuthN)
		case domain.AuthRequestFactorFailed, domain.AuthRequestFailed:
			wm.State = domain.AuthRequestStateFailed
		case domain.AuthRequestSucceeded:
			wm.State = domain.AuthRequestStateSucceeded
		}
	}
	return wm.WriteModel.Reduce()
}

func (wm *AuthRequestWriteModel) factorChecked(factor domain.AuthFactor) {
	wm.CheckedFactors[factor] = true
	for _, required := range wm.RequiredFactors {
		if !wm.CheckedFactors[required] {
			return
		}
	}
	wm.State = domain.AuthRequestStateAuthenticated
}

// FactorRequired reports whether the flow demands the given factor.
func (wm *AuthRequestWriteModel) FactorRequired(factor domain.AuthFactor) bool {
	for _, required := range wm.RequiredFactors {
		if required == factor {
			return true
		}
	}
	return false
}
