package command

import (
	"context"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

// RemoveInstance tears down a tenant: every unique-constraint claim of
// the instance is released in the same transaction as the removal event,
// and projections cascade through their reducers. System tokens only.
func (c *Commands) RemoveInstance(ctx context.Context) (*domain.ObjectDetails, error) {
	if !IsSystemCall(ctx) {
		return nil, apperr.PermissionDenied(nil, "COMMAND-Inst02", "instance removal requires a system token")
	}
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}

	events, err := c.eventstore.Push(ctx,
		c.newCommand(ctx, domain.InstanceAggregate, instanceID, instanceID, domain.InstanceRemoved, nil,
			eventstore.NewRemoveInstanceUniqueConstraints()))
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "instance removed", "instance_id", instanceID)
	return domain.DetailsFromEvent(events[len(events)-1]), nil
}
