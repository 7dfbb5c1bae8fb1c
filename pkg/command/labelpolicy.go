package command

import (
	"context"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/validators"
)

// AddLabelPolicy is the input for creating the org branding policy.
type AddLabelPolicy struct {
	PrimaryColor        string
	BackgroundColor     string
	WarnColor           string
	FontColor           string
	HideLoginNameSuffix bool
}

// AddLabelPolicy creates the branding policy of an org.
func (c *Commands) AddLabelPolicy(ctx context.Context, orgID string, policy *AddLabelPolicy) (*domain.ObjectDetails, error) {
	if err := validators.ValidateStringEmpty(policy.PrimaryColor, "primary_color").ToError("COMMAND-Label01"); err != nil {
		return nil, err
	}
	if err := c.checkPermission(ctx, "policy.write", orgID, orgID); err != nil {
		return nil, err
	}
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := c.existingOrg(ctx, orgID); err != nil {
		return nil, err
	}

	wm := NewLabelPolicyWriteModel(instanceID, orgID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if wm.PolicyState.Exists() {
		return nil, apperr.AlreadyExists(nil, "COMMAND-Label02", "label policy already exists")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.OrgAggregate, orgID, orgID, domain.LabelPolicyAdded,
			&domain.LabelPolicyAddedPayload{
				PrimaryColor:        policy.PrimaryColor,
				BackgroundColor:     policy.BackgroundColor,
				WarnColor:           policy.WarnColor,
				FontColor:           policy.FontColor,
				HideLoginNameSuffix: policy.HideLoginNameSuffix,
			}))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// ChangeLabelPolicy is a partial update; nil fields stay untouched.
type ChangeLabelPolicy struct {
	PrimaryColor        *string
	BackgroundColor     *string
	WarnColor           *string
	FontColor           *string
	HideLoginNameSuffix *bool
}

// ChangeLabelPolicy updates the branding policy. A change that matches
// the current state writes nothing.
func (c *Commands) ChangeLabelPolicy(ctx context.Context, orgID string, change *ChangeLabelPolicy) (*domain.ObjectDetails, error) {
	if err := c.checkPermission(ctx, "policy.write", orgID, orgID); err != nil {
		return nil, err
	}
	wm, err := c.existingLabelPolicy(ctx, orgID)
	if err != nil {
		return nil, err
	}

	payload := &domain.LabelPolicyChangedPayload{}
	if change.PrimaryColor != nil && *change.PrimaryColor != wm.PrimaryColor {
		payload.PrimaryColor = change.PrimaryColor
	}
	if change.BackgroundColor != nil && *change.BackgroundColor != wm.BackgroundColor {
		payload.BackgroundColor = change.BackgroundColor
	}
	if change.WarnColor != nil && *change.WarnColor != wm.WarnColor {
		payload.WarnColor = change.WarnColor
	}
	if change.FontColor != nil && *change.FontColor != wm.FontColor {
		payload.FontColor = change.FontColor
	}
	if change.HideLoginNameSuffix != nil && *change.HideLoginNameSuffix != wm.HideLoginNameSuffix {
		payload.HideLoginNameSuffix = change.HideLoginNameSuffix
	}
	if payload.IsEmpty() {
		return wm.ObjectDetails(), nil
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.OrgAggregate, orgID, orgID, domain.LabelPolicyChanged, payload))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// RemoveLabelPolicy deletes the branding policy.
func (c *Commands) RemoveLabelPolicy(ctx context.Context, orgID string) (*domain.ObjectDetails, error) {
	if err := c.checkPermission(ctx, "policy.delete", orgID, orgID); err != nil {
		return nil, err
	}
	wm, err := c.existingLabelPolicy(ctx, orgID)
	if err != nil {
		return nil, err
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.OrgAggregate, orgID, orgID, domain.LabelPolicyRemoved, nil))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

func (c *Commands) existingLabelPolicy(ctx context.Context, orgID string) (*LabelPolicyWriteModel, error) {
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	wm := NewLabelPolicyWriteModel(instanceID, orgID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if !wm.PolicyState.Exists() {
		return nil, apperr.NotFound(nil, "COMMAND-Label03", "label policy not found")
	}
	return wm, nil
}
