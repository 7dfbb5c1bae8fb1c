package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/validators"
)

// AddDeviceAuth is the input for starting a device-authorization flow.
// Empty codes are generated: an opaque device code for the polling
// client and a short typeable user code for the second device.
type AddDeviceAuth struct {
	DeviceAuthID string
	ClientID     string
	DeviceCode   string
	UserCode     string
	Scope        []string
}

// userCodeCharset avoids vowels and lookalike characters so codes are
// safe to read out loud and type on a TV remote.
const userCodeCharset = "BCDFGHJKLMNPQRSTVWXZ"

func newUserCode() string {
	id := uuid.New()
	code := make([]byte, 9)
	code[4] = '-'
	for i := 0; i < 8; i++ {
		pos := i
		if i >= 4 {
			pos = i + 1
		}
		code[pos] = userCodeCharset[int(id[i])%len(userCodeCharset)]
	}
	return string(code)
}

// AddDeviceAuth starts a device-authorization flow and claims the user
// code so it identifies exactly one pending authorization. Expiry is set
// from the engine's device code lifetime.
func (c *Commands) AddDeviceAuth(ctx context.Context, request *AddDeviceAuth) (*domain.ObjectDetails, error) {
	if err := validators.ValidateStringEmpty(request.ClientID, "client_id").ToError("COMMAND-Device01"); err != nil {
		return nil, err
	}
	if request.DeviceCode == "" {
		request.DeviceCode = uuid.NewString()
	}
	if request.UserCode == "" {
		request.UserCode = newUserCode()
	}
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	if request.DeviceAuthID == "" {
		request.DeviceAuthID, err = c.nextID()
		if err != nil {
			return nil, err
		}
	}

	wm := NewDeviceAuthWriteModel(instanceID, request.DeviceAuthID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if wm.State != domain.DeviceAuthStateUnspecified {
		return nil, apperr.AlreadyExists(nil, "COMMAND-Device02", "device authorization already exists")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.DeviceAuthAggregate, request.DeviceAuthID, instanceID, domain.DeviceAuthRequested,
			&domain.DeviceAuthRequestedPayload{
				ClientID:   request.ClientID,
				DeviceCode: request.DeviceCode,
				UserCode:   request.UserCode,
				Scope:      request.Scope,
				ExpiresAt:  c.now().Add(c.deviceCodeLifetime),
			},
			eventstore.NewAddUniqueConstraint(domain.UniqueDeviceUserCode, request.UserCode, "Errors.DeviceAuth.UserCodeTaken"),
		))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// ApproveDeviceAuth binds an authenticated user to the pending flow.
func (c *Commands) ApproveDeviceAuth(ctx context.Context, deviceAuthID, userID string) (*domain.ObjectDetails, error) {
	wm, err := c.pendingDeviceAuth(ctx, deviceAuthID)
	if err != nil {
		return nil, err
	}
	user, err := c.existingUser(ctx, "", userID)
	if err != nil {
		return nil, err
	}
	if user.UserState != domain.UserStateActive {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Device03", "user not active")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.DeviceAuthAggregate, deviceAuthID, wm.ResourceOwner, domain.DeviceAuthApproved,
			&domain.DeviceAuthApprovedPayload{UserID: userID},
			eventstore.NewRemoveUniqueConstraint(domain.UniqueDeviceUserCode, wm.UserCode),
		))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// DenyDeviceAuth rejects the pending flow.
func (c *Commands) DenyDeviceAuth(ctx context.Context, deviceAuthID string) (*domain.ObjectDetails, error) {
	return c.settleDeviceAuth(ctx, deviceAuthID, domain.DeviceAuthDenied)
}

// CancelDeviceAuth aborts the pending flow on behalf of the client.
func (c *Commands) CancelDeviceAuth(ctx context.Context, deviceAuthID string) (*domain.ObjectDetails, error) {
	return c.settleDeviceAuth(ctx, deviceAuthID, domain.DeviceAuthCancelled)
}

// ExpireDeviceAuth marks an overdue flow as expired. It rejects flows
// that have not reached their deadline yet.
func (c *Commands) ExpireDeviceAuth(ctx context.Context, deviceAuthID string) (*domain.ObjectDetails, error) {
	wm, err := c.pendingDeviceAuth(ctx, deviceAuthID)
	if err != nil {
		return nil, err
	}
	if c.now().Before(wm.ExpiresAt) {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Device04", "device authorization not yet expired")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.DeviceAuthAggregate, deviceAuthID, wm.ResourceOwner, domain.DeviceAuthExpired, nil,
			eventstore.NewRemoveUniqueConstraint(domain.UniqueDeviceUserCode, wm.UserCode)))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// ExpireOverdueDeviceAuths sweeps every pending device authorization
// past its deadline and returns how many were expired. Flows settled
// concurrently are skipped.
func (c *Commands) ExpireOverdueDeviceAuths(ctx context.Context) (int, error) {
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return 0, err
	}
	requested, err := c.eventstore.Filter(ctx, &eventstore.Filter{
		InstanceID:     instanceID,
		AggregateTypes: []eventstore.AggregateType{domain.DeviceAuthAggregate},
		EventTypes:     []eventstore.EventType{domain.DeviceAuthRequested},
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, event := range requested {
		wm := NewDeviceAuthWriteModel(instanceID, event.AggregateID)
		if err := c.loadWriteModel(ctx, wm); err != nil {
			return expired, err
		}
		if wm.State != domain.DeviceAuthStateRequested || c.now().Before(wm.ExpiresAt) {
			continue
		}
		if _, err := c.ExpireDeviceAuth(ctx, event.AggregateID); err != nil {
			if apperr.IsPreconditionFailed(err) || apperr.IsConcurrency(err) {
				continue
			}
			return expired, err
		}
		expired++
		c.logger.InfoContext(ctx, "device authorization expired",
			"device_auth_id", event.AggregateID, "instance_id", instanceID)
	}
	return expired, nil
}

func (c *Commands) settleDeviceAuth(ctx context.Context, deviceAuthID string, eventType eventstore.EventType) (*domain.ObjectDetails, error) {
	wm, err := c.pendingDeviceAuth(ctx, deviceAuthID)
	if err != nil {
		return nil, err
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.DeviceAuthAggregate, deviceAuthID, wm.ResourceOwner, eventType, nil,
			eventstore.NewRemoveUniqueConstraint(domain.UniqueDeviceUserCode, wm.UserCode)))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

func (c *Commands) pendingDeviceAuth(ctx context.Context, deviceAuthID string) (*DeviceAuthWriteModel, error) {
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	wm := NewDeviceAuthWriteModel(instanceID, deviceAuthID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if wm.State == domain.DeviceAuthStateUnspecified {
		return nil, apperr.NotFound(nil, "COMMAND-Device05", "device authorization not found")
	}
	if wm.State.Terminal() {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Device06", "device authorization already settled")
	}
	return wm, nil
}
