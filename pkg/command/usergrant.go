package command

import (
	"context"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

func grantConstraintField(userID, projectID string) string {
	return userID + ":" + projectID
}

// AddUserGrant is the input for granting a user project roles.
type AddUserGrant struct {
	GrantID   string
	UserID    string
	ProjectID string
	RoleKeys  []string
}

// AddUserGrant grants a user roles on a project, owned by the given org.
// One grant per (user, project) is enforced by a unique constraint.
func (c *Commands) AddUserGrant(ctx context.Context, orgID string, grant *AddUserGrant) (*domain.ObjectDetails, error) {
	if grant.UserID == "" || grant.ProjectID == "" {
		return nil, apperr.Validation(nil, "COMMAND-Grant01", "user id and project id must not be empty")
	}
	if len(grant.RoleKeys) == 0 {
		return nil, apperr.Validation(nil, "COMMAND-Grant02", "at least one role key required")
	}
	if err := c.checkPermission(ctx, "user.grant.write", orgID, grant.UserID); err != nil {
		return nil, err
	}
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := c.existingUser(ctx, "", grant.UserID); err != nil {
		return nil, err
	}
	if _, err := c.existingOrg(ctx, orgID); err != nil {
		return nil, err
	}
	if grant.GrantID == "" {
		grant.GrantID, err = c.nextID()
		if err != nil {
			return nil, err
		}
	}

	wm := NewUserGrantWriteModel(instanceID, grant.GrantID, orgID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if wm.GrantState.Exists() {
		return nil, apperr.AlreadyExists(nil, "COMMAND-Grant03", "user grant already exists")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.UserGrantAggregate, grant.GrantID, orgID, domain.UserGrantAdded,
			&domain.UserGrantAddedPayload{
				UserID:    grant.UserID,
				ProjectID: grant.ProjectID,
				RoleKeys:  grant.RoleKeys,
			},
			eventstore.NewAddUniqueConstraint(domain.UniqueUserGrant,
				grantConstraintField(grant.UserID, grant.ProjectID), "Errors.UserGrant.AlreadyExists"),
		))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// ChangeUserGrant replaces the grant's role keys. Equal sets write
// nothing.
func (c *Commands) ChangeUserGrant(ctx context.Context, orgID, grantID string, roleKeys ...string) (*domain.ObjectDetails, error) {
	if len(roleKeys) == 0 {
		return nil, apperr.Validation(nil, "COMMAND-Grant04", "at least one role key required")
	}
	if err := c.checkPermission(ctx, "user.grant.write", orgID, grantID); err != nil {
		return nil, err
	}
	wm, err := c.existingUserGrant(ctx, orgID, grantID)
	if err != nil {
		return nil, err
	}
	if wm.RoleKeysEqual(roleKeys) {
		return wm.ObjectDetails(), nil
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.UserGrantAggregate, grantID, wm.ResourceOwner, domain.UserGrantChanged,
			&domain.UserGrantChangedPayload{RoleKeys: roleKeys}))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// RemoveUserGrant deletes the grant and releases its claim.
func (c *Commands) RemoveUserGrant(ctx context.Context, orgID, grantID string) (*domain.ObjectDetails, error) {
	if err := c.checkPermission(ctx, "user.grant.delete", orgID, grantID); err != nil {
		return nil, err
	}
	wm, err := c.existingUserGrant(ctx, orgID, grantID)
	if err != nil {
		return nil, err
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.UserGrantAggregate, grantID, wm.ResourceOwner, domain.UserGrantRemoved, nil,
			eventstore.NewRemoveUniqueConstraint(domain.UniqueUserGrant,
				grantConstraintField(wm.UserID, wm.ProjectID)),
		))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

func (c *Commands) existingUserGrant(ctx context.Context, orgID, grantID string) (*UserGrantWriteModel, error) {
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	wm := NewUserGrantWriteModel(instanceID, grantID, orgID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if !wm.GrantState.Exists() {
		return nil, apperr.NotFound(nil, "COMMAND-Grant05", "user grant not found")
	}
	return wm, nil
}
