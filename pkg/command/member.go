package command

import (
	"context"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

func memberConstraintField(orgID, userID string) string {
	return orgID + ":" + userID
}

// AddOrgMember grants a user membership roles in an org. One membership
// per (org, user) is enforced by a unique constraint.
func (c *Commands) AddOrgMember(ctx context.Context, orgID, userID string, roles ...string) (*domain.ObjectDetails, error) {
	if userID == "" {
		return nil, apperr.Validation(nil, "COMMAND-Member01", "user id must not be empty")
	}
	if len(roles) == 0 {
		return nil, apperr.Validation(nil, "COMMAND-Member02", "at least one role required")
	}
	if err := c.checkPermission(ctx, "org.member.write", orgID, userID); err != nil {
		return nil, err
	}
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := c.existingUser(ctx, "", userID); err != nil {
		return nil, err
	}
	if _, err := c.existingOrg(ctx, orgID); err != nil {
		return nil, err
	}

	wm := NewOrgMemberWriteModel(instanceID, orgID, userID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if wm.MemberState.Exists() {
		return nil, apperr.AlreadyExists(nil, "COMMAND-Member03", "member already exists")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.OrgAggregate, orgID, orgID, domain.OrgMemberAdded,
			&domain.MemberAddedPayload{UserID: userID, Roles: roles},
			eventstore.NewAddUniqueConstraint(domain.UniqueMember, memberConstraintField(orgID, userID), "Errors.Member.AlreadyExists"),
		))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// ChangeOrgMember replaces the member's roles. Equal role sets write
// nothing.
func (c *Commands) ChangeOrgMember(ctx context.Context, orgID, userID string, roles ...string) (*domain.ObjectDetails, error) {
	if len(roles) == 0 {
		return nil, apperr.Validation(nil, "COMMAND-Member04", "at least one role required")
	}
	if err := c.checkPermission(ctx, "org.member.write", orgID, userID); err != nil {
		return nil, err
	}
	wm, err := c.existingOrgMember(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if wm.RolesEqual(roles) {
		return wm.ObjectDetails(), nil
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.OrgAggregate, orgID, orgID, domain.OrgMemberChanged,
			&domain.MemberChangedPayload{UserID: userID, Roles: roles}))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// RemoveOrgMember ends the membership and releases its claim.
func (c *Commands) RemoveOrgMember(ctx context.Context, orgID, userID string) (*domain.ObjectDetails, error) {
	if err := c.checkPermission(ctx, "org.member.delete", orgID, userID); err != nil {
		return nil, err
	}
	wm, err := c.existingOrgMember(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.OrgAggregate, orgID, orgID, domain.OrgMemberRemoved,
			&domain.MemberRemovedPayload{UserID: userID},
			eventstore.NewRemoveUniqueConstraint(domain.UniqueMember, memberConstraintField(orgID, userID)),
		))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

func (c *Commands) existingOrgMember(ctx context.Context, orgID, userID string) (*OrgMemberWriteModel, error) {
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	wm := NewOrgMemberWriteModel(instanceID, orgID, userID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if !wm.MemberState.Exists() {
		return nil, apperr.NotFound(nil, "COMMAND-Member05", "member not found")
	}
	return wm, nil
}
