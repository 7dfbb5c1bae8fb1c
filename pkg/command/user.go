package command

import (
	"context"

	"golang.org/x/text/language"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/password"
	"github.com/authapp/zitadel-sub003/pkg/validators"
)

// AddHuman is the input for creating a human user.
type AddHuman struct {
	// UserID is allocated when left empty.
	UserID            string
	Username          string
	FirstName         string
	LastName          string
	DisplayName       string
	PreferredLanguage string
	Email             string
	EmailVerified     bool

	// Password is the optional initial secret; it is hashed before any
	// event is written and never stored in plaintext.
	Password               string
	PasswordChangeRequired bool
}

func (h *AddHuman) validate() error {
	builder := validators.NewValidationBuilder().
		Add(validators.ValidateStringLength(h.Username, "username", 1, 200)).
		Add(validators.ValidateStringEmpty(h.FirstName, "first_name")).
		Add(validators.ValidateStringEmpty(h.LastName, "last_name")).
		Add(validators.ValidateEmail("email", h.Email))
	if h.Password != "" {
		builder.Add(validators.ValidatePassword("password", h.Password))
	}
	if err := builder.FirstError("COMMAND-User01"); err != nil {
		return err
	}
	if h.PreferredLanguage != "" {
		if _, err := language.Parse(h.PreferredLanguage); err != nil {
			return apperr.Validation(err, "COMMAND-User02", "invalid preferred language").
				With("preferred_language", h.PreferredLanguage)
		}
	}
	return nil
}

// AddHuman creates a human user in the given org and claims its
// username. The username claim, the added event and any initial password
// commit atomically.
func (c *Commands) AddHuman(ctx context.Context, orgID string, human *AddHuman) (*domain.ObjectDetails, error) {
	if err := human.validate(); err != nil {
		return nil, err
	}
	if err := c.checkPermission(ctx, "user.write", orgID, human.UserID); err != nil {
		return nil, err
	}
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.quotas.Check(ctx, instanceID, "users"); err != nil {
		return nil, apperr.QuotaExceeded(err, "COMMAND-User03", "user quota exhausted")
	}
	if human.UserID == "" {
		human.UserID, err = c.nextID()
		if err != nil {
			return nil, err
		}
	}

	wm := NewUserWriteModel(instanceID, human.UserID, orgID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if wm.UserState.Exists() {
		return nil, apperr.AlreadyExists(nil, "COMMAND-User04", "user already exists")
	}

	commands := []*eventstore.Command{
		c.newCommand(ctx, domain.UserAggregate, human.UserID, orgID, domain.HumanAddedType,
			&domain.HumanAddedPayload{
				Username:          human.Username,
				FirstName:         human.FirstName,
				LastName:          human.LastName,
				DisplayName:       human.DisplayName,
				PreferredLanguage: human.PreferredLanguage,
				Email:             human.Email,
			},
			eventstore.NewAddUniqueConstraint(domain.UniqueUsername, human.Username, "Errors.User.AlreadyExists"),
		),
	}
	if human.Password != "" {
		encodedHash, err := password.Hash(human.Password)
		if err != nil {
			return nil, apperr.Internal(err, "COMMAND-User05", "unable to hash password")
		}
		commands = append(commands, c.newCommand(ctx, domain.UserAggregate, human.UserID, orgID,
			domain.HumanPasswordChanged, &domain.PasswordChangedPayload{
				EncodedHash:    encodedHash,
				ChangeRequired: human.PasswordChangeRequired,
			}))
	}
	if human.EmailVerified {
		commands = append(commands, c.newCommand(ctx, domain.UserAggregate, human.UserID, orgID,
			domain.HumanEmailVerified, nil))
	}

	if err := c.pushAndReduce(ctx, wm, commands...); err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// AddMachine is the input for creating a machine (service) user.
type AddMachine struct {
	UserID      string
	Username    string
	Name        string
	Description string
}

// AddMachine creates a machine user in the given org.
func (c *Commands) AddMachine(ctx context.Context, orgID string, machine *AddMachine) (*domain.ObjectDetails, error) {
	if err := validators.NewValidationBuilder().
		Add(validators.ValidateStringLength(machine.Username, "username", 1, 200)).
		Add(validators.ValidateStringEmpty(machine.Name, "name")).
		FirstError("COMMAND-User06"); err != nil {
		return nil, err
	}
	if err := c.checkPermission(ctx, "user.write", orgID, machine.UserID); err != nil {
		return nil, err
	}
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	if machine.UserID == "" {
		machine.UserID, err = c.nextID()
		if err != nil {
			return nil, err
		}
	}

	wm := NewUserWriteModel(instanceID, machine.UserID, orgID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if wm.UserState.Exists() {
		return nil, apperr.AlreadyExists(nil, "COMMAND-User07", "user already exists")
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.UserAggregate, machine.UserID, orgID, domain.MachineAddedType,
			&domain.MachineAddedPayload{
				Username:    machine.Username,
				Name:        machine.Name,
				Description: machine.Description,
			},
			eventstore.NewAddUniqueConstraint(domain.UniqueUsername, machine.Username, "Errors.User.AlreadyExists"),
		))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// ChangeUsername renames a user, releasing the old username claim and
// taking the new one in the same transaction.
func (c *Commands) ChangeUsername(ctx context.Context, orgID, userID, username string) (*domain.ObjectDetails, error) {
	if err := validators.ValidateStringLength(username, "username", 1, 200).ToError("COMMAND-User08"); err != nil {
		return nil, err
	}
	if err := c.checkPermission(ctx, "user.write", orgID, userID); err != nil {
		return nil, err
	}
	wm, err := c.existingUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if wm.Username == username {
		return wm.ObjectDetails(), nil
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.UserAggregate, userID, wm.ResourceOwner, domain.UserUsernameChanged,
			&domain.UsernameChangedPayload{Username: username},
			eventstore.NewRemoveUniqueConstraint(domain.UniqueUsername, wm.Username),
			eventstore.NewAddUniqueConstraint(domain.UniqueUsername, username, "Errors.User.AlreadyExists"),
		))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// ChangeProfile is the input for a partial profile update; nil fields
// stay untouched.
type ChangeProfile struct {
	FirstName         *string
	LastName          *string
	DisplayName       *string
	PreferredLanguage *string
}

// ChangeProfile updates the human profile. When nothing differs from the
// current state, no event is written and the current details return.
func (c *Commands) ChangeProfile(ctx context.Context, orgID, userID string, change *ChangeProfile) (*domain.ObjectDetails, error) {
	if change.PreferredLanguage != nil {
		if _, err := language.Parse(*change.PreferredLanguage); err != nil {
			return nil, apperr.Validation(err, "COMMAND-User09", "invalid preferred language").
				With("preferred_language", *change.PreferredLanguage)
		}
	}
	if err := c.checkPermission(ctx, "user.write", orgID, userID); err != nil {
		return nil, err
	}
	wm, err := c.existingUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if wm.UserType != domain.UserTypeHuman {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-User10", "user is not human")
	}

	payload := &domain.ProfileChangedPayload{}
	if change.FirstName != nil && *change.FirstName != wm.FirstName {
		payload.FirstName = change.FirstName
	}
	if change.LastName != nil && *change.LastName != wm.LastName {
		payload.LastName = change.LastName
	}
	if change.DisplayName != nil && *change.DisplayName != wm.DisplayName {
		payload.DisplayName = change.DisplayName
	}
	if change.PreferredLanguage != nil && *change.PreferredLanguage != wm.PreferredLanguage {
		payload.PreferredLanguage = change.PreferredLanguage
	}
	if payload.IsEmpty() {
		return wm.ObjectDetails(), nil
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.UserAggregate, userID, wm.ResourceOwner, domain.HumanProfileChanged, payload))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// ChangeEmail sets a new email address and resets verification. Setting
// the current address again writes nothing.
func (c *Commands) ChangeEmail(ctx context.Context, orgID, userID, email string) (*domain.ObjectDetails, error) {
	if err := validators.ValidateEmail("email", email).ToError("COMMAND-User11"); err != nil {
		return nil, err
	}
	if err := c.checkPermission(ctx, "user.write", orgID, userID); err != nil {
		return nil, err
	}
	wm, err := c.existingUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if wm.Email == email {
		return wm.ObjectDetails(), nil
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.UserAggregate, userID, wm.ResourceOwner, domain.HumanEmailChanged,
			&domain.EmailChangedPayload{Email: email}),
		c.newCommand(ctx, domain.UserAggregate, userID, wm.ResourceOwner, domain.HumanEmailCodeAdded,
			&domain.EmailCodeAddedPayload{ExpiresAt: c.now().Add(c.emailCodeLifetime).Unix()}),
	)
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// VerifyEmail marks the current email address as verified.
func (c *Commands) VerifyEmail(ctx context.Context, orgID, userID string) (*domain.ObjectDetails, error) {
	if err := c.checkPermission(ctx, "user.write", orgID, userID); err != nil {
		return nil, err
	}
	wm, err := c.existingUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if wm.EmailVerified {
		return wm.ObjectDetails(), nil
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.UserAggregate, userID, wm.ResourceOwner, domain.HumanEmailVerified, nil))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// ChangePassword sets a new password after checking its strength.
func (c *Commands) ChangePassword(ctx context.Context, orgID, userID, newPassword string, changeRequired bool) (*domain.ObjectDetails, error) {
	if err := validators.ValidatePassword("password", newPassword).ToError("COMMAND-User12"); err != nil {
		return nil, err
	}
	if err := c.checkPermission(ctx, "user.write", orgID, userID); err != nil {
		return nil, err
	}
	wm, err := c.existingUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if wm.UserType != domain.UserTypeHuman {
		return nil, apperr.PreconditionFailed(nil, "COMMAND-User13", "user is not human")
	}

	encodedHash, err := password.Hash(newPassword)
	if err != nil {
		return nil, apperr.Internal(err, "COMMAND-User14", "unable to hash password")
	}
	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.UserAggregate, userID, wm.ResourceOwner, domain.HumanPasswordChanged,
			&domain.PasswordChangedPayload{EncodedHash: encodedHash, ChangeRequired: changeRequired}))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// DeactivateUser moves an active user to INACTIVE.
func (c *Commands) DeactivateUser(ctx context.Context, orgID, userID string) (*domain.ObjectDetails, error) {
	return c.changeUserState(ctx, orgID, userID, domain.UserDeactivated, func(state domain.UserState) error {
		switch state {
		case domain.UserStateActive:
			return nil
		case domain.UserStateInactive:
			return apperr.PreconditionFailed(nil, "COMMAND-User15", "user already inactive")
		default:
			return apperr.PreconditionFailed(nil, "COMMAND-User16", "user not active")
		}
	})
}

// ReactivateUser moves an inactive user back to ACTIVE.
func (c *Commands) ReactivateUser(ctx context.Context, orgID, userID string) (*domain.ObjectDetails, error) {
	return c.changeUserState(ctx, orgID, userID, domain.UserReactivated, func(state domain.UserState) error {
		if state != domain.UserStateInactive {
			return apperr.PreconditionFailed(nil, "COMMAND-User17", "user not inactive")
		}
		return nil
	})
}

// LockUser locks an active or inactive user.
func (c *Commands) LockUser(ctx context.Context, orgID, userID string) (*domain.ObjectDetails, error) {
	return c.changeUserState(ctx, orgID, userID, domain.UserLocked, func(state domain.UserState) error {
		if state != domain.UserStateActive && state != domain.UserStateInactive {
			return apperr.PreconditionFailed(nil, "COMMAND-User18", "user cannot be locked")
		}
		return nil
	})
}

// UnlockUser releases a locked user back to ACTIVE.
func (c *Commands) UnlockUser(ctx context.Context, orgID, userID string) (*domain.ObjectDetails, error) {
	return c.changeUserState(ctx, orgID, userID, domain.UserUnlocked, func(state domain.UserState) error {
		if state != domain.UserStateLocked {
			return apperr.PreconditionFailed(nil, "COMMAND-User19", "user not locked")
		}
		return nil
	})
}

// RemoveUser deletes the user and releases its username claim.
func (c *Commands) RemoveUser(ctx context.Context, orgID, userID string) (*domain.ObjectDetails, error) {
	if err := c.checkPermission(ctx, "user.delete", orgID, userID); err != nil {
		return nil, err
	}
	wm, err := c.existingUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.UserAggregate, userID, wm.ResourceOwner, domain.UserRemoved, nil,
			eventstore.NewRemoveUniqueConstraint(domain.UniqueUsername, wm.Username)))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

func (c *Commands) changeUserState(
	ctx context.Context,
	orgID, userID string,
	eventType eventstore.EventType,
	check func(domain.UserState) error,
) (*domain.ObjectDetails, error) {
	if err := c.checkPermission(ctx, "user.write", orgID, userID); err != nil {
		return nil, err
	}
	wm, err := c.existingUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if err := check(wm.UserState); err != nil {
		return nil, err
	}

	err = c.pushAndReduce(ctx, wm,
		c.newCommand(ctx, domain.UserAggregate, userID, wm.ResourceOwner, eventType, nil))
	if err != nil {
		return nil, err
	}
	return wm.ObjectDetails(), nil
}

// existingUser loads the user and fails with NotFound when it does not
// exist or was removed.
func (c *Commands) existingUser(ctx context.Context, orgID, userID string) (*UserWriteModel, error) {
	instanceID, err := c.instanceID(ctx)
	if err != nil {
		return nil, err
	}
	wm := NewUserWriteModel(instanceID, userID, orgID)
	if err := c.loadWriteModel(ctx, wm); err != nil {
		return nil, err
	}
	if !wm.UserState.Exists() {
		return nil, apperr.NotFound(nil, "COMMAND-User20", "user not found")
	}
	return wm, nil
}
