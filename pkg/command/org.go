package command

import (
	"context"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/validators"
)

// AddOrg creates an organization and claims its name. An org owns
// itself, so resource owner equals the org id.
func (c *Commands) AddOrg(ctx context.Context, orgID, name string) (*domain.ObjectDetails, error) {
	if err := validators.ValidateStringLength(name, "name", 1, 200).ToError("COMMAND-Org01"); err != nil {
		return nil, err
	}
	if err := c.checkPermission(ctx, "org.create", orgID, orgID); err != nil {
		return nil, err
	}
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	if orgID == "" {
		orgID, err = c.nextID()
		if err != nil {
			return nil, err
		}
	}

	wm := NewOrgWriteModel(instanceID, orgID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if wm.OrgState != domain.OrgStateUnspecified {
		return nil, apperr.AlreadyExists(nil, "COMMAND-Org02", "org already exists")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.OrgAggregate, orgID, orgID, domain.OrgAdded,
			&domain.OrgAddedPayload{Name: name},
			eventstore.NewAddUniqueConstraint(domain.UniqueOrgName, name, "Errors.Org.AlreadyExists"),
		))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// ChangeOrg renames the org. Renaming to the current name writes
// nothing.
func (c *Commands) ChangeOrg(ctx context.Context, orgID, name string) (*domain.ObjectDetails, error) {
	if err := validators.ValidateStringLength(name, "name", 1, 200).ToError("COMMAND-Org03"); err != nil {
		return nil, err
	}
	if err := c.checkPermission(ctx, "org.write", orgID, orgID); err != nil {
		return nil, err
	}
	wm, err := c.existingOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if wm.Name == name {
		return wm.ObjectDetails(), nil
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.OrgAggregate, orgID, orgID, domain.OrgChanged,
			&domain.OrgChangedPayload{Name: name},
			eventstore.NewRemoveUniqueConstraint(domain.UniqueOrgName, wm.Name),
			eventstore.NewAddUniqueConstraint(domain.UniqueOrgName, name, "Errors.Org.AlreadyExists"),
		))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// DeactivateOrg moves an active org to INACTIVE.
func (c *Commands) DeactivateOrg(ctx context.Context, orgID string) (*domain.ObjectDetails, error) {
	if err := c.checkPermission(ctx, "org.write", orgID, orgID); err != nil {
		return nil, err
	}
	wm, err := c.existingOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if wm.OrgState != domain.OrgStateActive {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Org04", "org not active")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.OrgAggregate, orgID, orgID, domain.OrgDeactivated, nil))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// ReactivateOrg moves an inactive org back to ACTIVE.
func (c *Commands) ReactivateOrg(ctx context.Context, orgID string) (*domain.ObjectDetails, error) {
	if err := c.checkPermission(ctx, "org.write", orgID, orgID); err != nil {
		return nil, err
	}
	wm, err := c.existingOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if wm.OrgState != domain.OrgStateInactive {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Org05", "org not inactive")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.OrgAggregate, orgID, orgID, domain.OrgReactivated, nil))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// RemoveOrg deletes the org and releases its name claim. Users, grants
// and policies owned by the org cascade through their own reducers.
func (c *Commands) RemoveOrg(ctx context.Context, orgID string) (*domain.ObjectDetails, error) {
	if err := c.checkPermission(ctx, "org.delete", orgID, orgID); err != nil {
		return nil, err
	}
	wm, err := c.existingOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.OrgAggregate, orgID, orgID, domain.OrgRemoved, nil,
			eventstore.NewRemoveUniqueConstraint(domain.UniqueOrgName, wm.Name)))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

func (c *Commands) existingOrg(ctx context.Context, orgID string) (*OrgWriteModel, error) {
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	wm := NewOrgWriteModel(instanceID, orgID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if !wm.OrgState.Exists() {
		return nil, apperr.NotFound(nil, "COMMAND-Org06", "org not found")
	}
	return wm, nil
}
