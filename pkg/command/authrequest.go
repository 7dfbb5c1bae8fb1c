package command

import (
	"context"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/password"
	"github.com/authapp/zitadel-sub003/pkg/validators"
)

// AddAuthRequest is the input for starting an authentication flow.
type AddAuthRequest struct {
	RequestID   string
	LoginClient string
	ClientID    string
	RedirectURI string
	Scope       []string

	// RequiredFactors defaults to password only.
	RequiredFactors []domain.AuthFactor
}

// AddAuthRequest starts an authentication flow. Auth requests are owned
// by the instance, not by an org.
func (c *Commands) AddAuthRequest(ctx context.Context, request *AddAuthRequest) (*domain.ObjectDetails, error) {
	if err := validators.NewValidationBuilder().
		Add(validators.ValidateStringEmpty(request.ClientID, "client_id")).
		Add(validators.ValidateStringEmpty(request.RedirectURI, "redirect_uri")).
		FirstError("COMMAND-Auth01"); err != nil {
		return nil, err
	}
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	if request.RequestID == "" {
		request.RequestID, err = c.nextID()
		if err != nil {
			return nil, err
		}
	}

	wm := NewAuthRequestWriteModel(instanceID, request.RequestID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if wm.State != domain.AuthRequestStateUnspecified {
		return nil, apperr.AlreadyExists(nil, "COMMAND-Auth02", "auth request already exists")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.AuthRequestAggregate, request.RequestID, instanceID, domain.AuthRequestAdded,
			&domain.AuthRequestAddedPayload{
				LoginClient:     request.LoginClient,
				ClientID:        request.ClientID,
				RedirectURI:     request.RedirectURI,
				Scope:           request.Scope,
				RequiredFactors: request.RequiredFactors,
			}))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// SelectAuthRequestUser binds the flow to a user. The user must exist
// and be active.
func (c *Commands) SelectAuthRequestUser(ctx context.Context, requestID, userID string) (*domain.ObjectDetails, error) {
	wm, err := c.existingAuthRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if wm.State != domain.AuthRequestStateAdded && wm.State != domain.AuthRequestStateUserSelected {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Auth03", "auth request not open for user selection")
	}

	user, err := c.existingUser(ctx, "", userID)
	if err != nil {
		return nil, err
	}
	if user.UserState != domain.UserStateActive {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Auth04", "user not active")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.AuthRequestAggregate, requestID, wm.ResourceOwner, domain.AuthRequestUserSelected,
			&domain.AuthRequestUserSelectedPayload{UserID: userID}))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// CheckAuthRequestPassword verifies the selected user's password. A
// wrong secret fails the whole flow; audit events are written to the
// user aggregate either way.
func (c *Commands) CheckAuthRequestPassword(ctx context.Context, requestID, secret string) (*domain.ObjectDetails, error) {
	wm, err := c.authRequestOpenForFactor(ctx, requestID, domain.AuthFactorPassword)
	if err != nil {
		return nil, err
	}
	user, err := c.existingUser(ctx, "", wm.UserID)
	if err != nil {
		return nil, err
	}
	if user.UserState != domain.UserStateActive {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Auth05", "user not active")
	}
	if user.EncodedHash == "" {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Auth06", "user has no password set")
	}

	if err := password.Compare(user.EncodedHash, secret); err != nil {
		_, pushErr := c.eventstore.Push(ctx,
			c.newCommand(ctx, domain.UserAggregate, user.AggregateID, user.ResourceOwner, domain.HumanPasswordCheckErr, nil),
			c.newCommand(ctx, domain.AuthRequestAggregate, requestID, wm.ResourceOwner, domain.AuthRequestFactorFailed,
				&domain.AuthRequestFactorFailedPayload{Factor: domain.AuthFactorPassword, Reason: "invalid password"}),
		)
		if pushErr != nil {
			return nil, pushErr
		}
		return nil, apperr.InvalidArgument(err, "COMMAND-Auth07", "invalid password")
	}

	events, err := c.eventstore.Push(ctx,
		c.newCommand(ctx, domain.UserAggregate, user.AggregateID, user.ResourceOwner, domain.HumanPasswordChecked, nil),
		c.newCommand(ctx, domain.AuthRequestAggregate, requestID, wm.ResourceOwner, domain.AuthRequestPasswordChecked, nil),
	)
	if err != nil {
		return nil, err
	}
	if err := AppendAndReduce(wm, events...); err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// CheckAuthRequestTOTP records a successful TOTP verification. The
// one-time code itself is verified by the caller.
func (c *Commands) CheckAuthRequestTOTP(ctx context.Context, requestID string) (*domain.ObjectDetails, error) {
	return c.checkAuthRequestFactor(ctx, requestID, domain.AuthFactorTOTP, domain.AuthRequestTOTPChecked)
}

// CheckAuthRequestWebAuthN records a successful WebAuthN assertion. The
// assertion itself is verified by the caller.
func (c *Commands) CheckAuthRequestWebAuthN(ctx context.Context, requestID string) (*domain.ObjectDetails, error) {
	return c.checkAuthRequestFactor(ctx, requestID, domain.AuthFactorWebAuthN, domain.AuthRequestWebAuthNChecked)
}

// FailAuthRequestFactor terminates the flow with a failed factor.
func (c *Commands) FailAuthRequestFactor(ctx context.Context, requestID string, factor domain.AuthFactor, reason string) (*domain.ObjectDetails, error) {
	wm, err := c.existingAuthRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if wm.State.Terminal() {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Auth08", "auth request already settled")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.AuthRequestAggregate, requestID, wm.ResourceOwner, domain.AuthRequestFactorFailed,
			&domain.AuthRequestFactorFailedPayload{Factor: factor, Reason: reason}))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// SucceedAuthRequest completes a fully authenticated flow.
func (c *Commands) SucceedAuthRequest(ctx context.Context, requestID string) (*domain.ObjectDetails, error) {
	wm, err := c.existingAuthRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if wm.State != domain.AuthRequestStateAuthenticated {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Auth09", "auth request not authenticated")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.AuthRequestAggregate, requestID, wm.ResourceOwner, domain.AuthRequestSucceeded, nil))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// FailAuthRequest terminates the flow, for example on cancellation.
func (c *Commands) FailAuthRequest(ctx context.Context, requestID, reason string) (*domain.ObjectDetails, error) {
	wm, err := c.existingAuthRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if wm.State.Terminal() {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Auth10", "auth request already settled")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.AuthRequestAggregate, requestID, wm.ResourceOwner, domain.AuthRequestFailed,
			&domain.AuthRequestFailedPayload{FailureReason: reason}))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

func (c *Commands) checkAuthRequestFactor(
	ctx context.Context,
	requestID string,
	factor domain.AuthFactor,
	checkedType eventstore.EventType,
) (*domain.ObjectDetails, error) {
	wm, err := c.authRequestOpenForFactor(ctx, requestID, factor)
	if err != nil {
		return nil, err
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.AuthRequestAggregate, requestID, wm.ResourceOwner, checkedType, nil))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// authRequestOpenForFactor loads the request and verifies a factor check
// is currently allowed: user selected, not settled, factor required and
// not yet checked.
func (c *Commands) authRequestOpenForFactor(ctx context.Context, requestID string, factor domain.AuthFactor) (*AuthRequestWriteModel, error) {
	wm, err := c.existingAuthRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if wm.State.Terminal() {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Auth11", "auth request already settled")
	}
	if wm.UserID == "" {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Auth12", "no user selected")
	}
	if !wm.FactorRequired(factor) {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Auth13", "factor not required").
			With("factor", factor.String())
	}
	if wm.CheckedFactors[factor] {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-Auth14", "factor already checked").
			With("factor", factor.String())
	}
	return wm, nil
}

func (c *Commands) existingAuthRequest(ctx context.Context, requestID string) (*AuthRequestWriteModel, error) {
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	wm := NewAuthRequestWriteModel(instanceID, requestID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if wm.State == domain.AuthRequestStateUnspecified {
		return nil, apperr.NotFound(nil, "COMMAND-Auth15", "auth request not found")
	}
	return wm, nil
}
