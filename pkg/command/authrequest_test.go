package command_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/command"
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

func TestAuthRequestFlow(t *testing.T) {
	c, store := newTestEngine(t)
	ctx := testCtx()
	addTestOrg(t, c, "org-1", "ACME")
	addTestHuman(t, c, "org-1", "u1", "ada")
	_, err := c.ChangePassword(ctx, "org-1", "u1", strongPassword, false)
	require.NoError(t, err)

	_, err = c.AddAuthRequest(ctx, &command.AddAuthRequest{
		RequestID:       "ar1",
		ClientID:        "web",
		RedirectURI:     "https://app.example.com/callback",
		RequiredFactors: []domain.AuthFactor{domain.AuthFactorPassword, domain.AuthFactorTOTP},
	})
	require.NoError(t, err)

	t.Run("factor checks require a selected user", func(t *testing.T) {
		_, err := c.CheckAuthRequestPassword(ctx, "ar1", strongPassword)
		require.Error(t, err)
		assert.True(t, apperr.IsPreconditionFailed(err))
	})

	t.Run("select user", func(t *testing.T) {
		_, err := c.SelectAuthRequestUser(ctx, "ar1", "u1")
		require.NoError(t, err)
	})

	t.Run("succeed refuses before all factors pass", func(t *testing.T) {
		_, err := c.SucceedAuthRequest(ctx, "ar1")
		require.Error(t, err)
		assert.True(t, apperr.IsPreconditionFailed(err))
	})

	t.Run("password check writes audit events on the user", func(t *testing.T) {
		_, err := c.CheckAuthRequestPassword(ctx, "ar1", strongPassword)
		require.NoError(t, err)

		count, err := store.Count(ctx, &eventstore.Filter{
			InstanceID: "inst-1",
			EventTypes: []eventstore.EventType{domain.HumanPasswordChecked},
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), count)
	})

	t.Run("double factor check is rejected", func(t *testing.T) {
		_, err := c.CheckAuthRequestPassword(ctx, "ar1", strongPassword)
		require.Error(t, err)
		assert.True(t, apperr.IsPreconditionFailed(err))
	})

	t.Run("remaining factor then succeed", func(t *testing.T) {
		_, err := c.SucceedAuthRequest(ctx, "ar1")
		require.Error(t, err)

		_, err = c.CheckAuthRequestTOTP(ctx, "ar1")
		require.NoError(t, err)

		_, err = c.SucceedAuthRequest(ctx, "ar1")
		require.NoError(t, err)
	})

	t.Run("settled requests accept no further commands", func(t *testing.T) {
		_, err := c.CheckAuthRequestTOTP(ctx, "ar1")
		require.Error(t, err)
		assert.True(t, apperr.IsPreconditionFailed(err))
	})
}

func TestAuthRequestWrongPasswordFailsFlow(t *testing.T) {
	c, store := newTestEngine(t)
	ctx := testCtx()
	addTestOrg(t, c, "org-1", "ACME")
	addTestHuman(t, c, "org-1", "u1", "ada")
	_, err := c.ChangePassword(ctx, "org-1", "u1", strongPassword, false)
	require.NoError(t, err)

	_, err = c.AddAuthRequest(ctx, &command.AddAuthRequest{
		RequestID:   "ar1",
		ClientID:    "web",
		RedirectURI: "https://app.example.com/callback",
	})
	require.NoError(t, err)
	_, err = c.SelectAuthRequestUser(ctx, "ar1", "u1")
	require.NoError(t, err)

	_, err = c.CheckAuthRequestPassword(ctx, "ar1", "wrong-secret")
	require.Error(t, err)
	assert.True(t, apperr.IsInvalidArgument(err))

	// The failed check terminated the flow and left an audit trail.
	count, err := store.Count(ctx, &eventstore.Filter{
		InstanceID: "inst-1",
		EventTypes: []eventstore.EventType{domain.HumanPasswordCheckErr},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	_, err = c.CheckAuthRequestPassword(ctx, "ar1", strongPassword)
	require.Error(t, err)
	assert.True(t, apperr.IsPreconditionFailed(err))
}

func TestDeviceAuthFlow(t *testing.T) {
	c, _ := newTestEngine(t)
	ctx := testCtx()
	addTestOrg(t, c, "org-1", "ACME")
	addTestHuman(t, c, "org-1", "u1", "ada")

	t.Run("user code is claimed while pending", func(t *testing.T) {
		_, err := c.AddDeviceAuth(ctx, &command.AddDeviceAuth{
			DeviceAuthID: "d1",
			ClientID:     "tv-app",
			DeviceCode:   "dev-code-1",
			UserCode:     "BCDF-GHJK",
		})
		require.NoError(t, err)

		_, err = c.AddDeviceAuth(ctx, &command.AddDeviceAuth{
			DeviceAuthID: "d2",
			ClientID:     "tv-app",
			DeviceCode:   "dev-code-2",
			UserCode:     "BCDF-GHJK",
		})
		require.Error(t, err)
		assert.True(t, apperr.IsUniqueConstraintViolation(err))
	})

	t.Run("approve binds the user and releases the code", func(t *testing.T) {
		_, err := c.ApproveDeviceAuth(ctx, "d1", "u1")
		require.NoError(t, err)

		_, err = c.ApproveDeviceAuth(ctx, "d1", "u1")
		require.Error(t, err)
		assert.True(t, apperr.IsPreconditionFailed(err))

		_, err = c.AddDeviceAuth(ctx, &command.AddDeviceAuth{
			DeviceAuthID: "d3",
			ClientID:     "tv-app",
			DeviceCode:   "dev-code-3",
			UserCode:     "BCDF-GHJK",
		})
		require.NoError(t, err)
	})

	t.Run("deny settles the flow", func(t *testing.T) {
		_, err := c.DenyDeviceAuth(ctx, "d3")
		require.NoError(t, err)

		_, err = c.CancelDeviceAuth(ctx, "d3")
		require.Error(t, err)
		assert.True(t, apperr.IsPreconditionFailed(err))
	})
}

func TestAddDeviceAuthGeneratesCodes(t *testing.T) {
	c, store := newTestEngine(t)
	ctx := testCtx()

	details, err := c.AddDeviceAuth(ctx, &command.AddDeviceAuth{
		ClientID: "tv-app",
	})
	require.NoError(t, err)
	require.NotEmpty(t, details.ID)

	event, err := store.LatestEvent(ctx, domain.DeviceAuthAggregate, details.ID)
	require.NoError(t, err)
	require.NotNil(t, event)

	var payload domain.DeviceAuthRequestedPayload
	require.NoError(t, event.UnmarshalPayload(&payload))
	assert.NotEmpty(t, payload.DeviceCode)
	assert.Regexp(t, `^[BCDFGHJKLMNPQRSTVWXZ]{4}-[BCDFGHJKLMNPQRSTVWXZ]{4}$`, payload.UserCode)

	_, err = c.AddDeviceAuth(ctx, &command.AddDeviceAuth{})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestDeviceAuthExpirySweeper(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	clock := &now
	c, _ := newTestEngine(t,
		command.WithClock(func() time.Time { return *clock }),
		command.WithDeviceCodeLifetime(5*time.Minute),
	)
	ctx := testCtx()

	_, err := c.AddDeviceAuth(ctx, &command.AddDeviceAuth{
		DeviceAuthID: "d1",
		ClientID:     "tv-app",
		DeviceCode:   "dev-code-1",
		UserCode:     "AAAA-BBBB",
	})
	require.NoError(t, err)
	_, err = c.AddDeviceAuth(ctx, &command.AddDeviceAuth{
		DeviceAuthID: "d2",
		ClientID:     "tv-app",
		DeviceCode:   "dev-code-2",
		UserCode:     "CCCC-DDDD",
	})
	require.NoError(t, err)
	_, err = c.DenyDeviceAuth(ctx, "d2")
	require.NoError(t, err)

	t.Run("nothing expires before the deadline", func(t *testing.T) {
		expired, err := c.ExpireOverdueDeviceAuths(ctx)
		require.NoError(t, err)
		assert.Zero(t, expired)
	})

	t.Run("overdue pending flows expire, settled ones stay", func(t *testing.T) {
		*clock = now.Add(10 * time.Minute)

		expired, err := c.ExpireOverdueDeviceAuths(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, expired)

		// The expired flow released its user code.
		_, err = c.AddDeviceAuth(ctx, &command.AddDeviceAuth{
			DeviceAuthID: "d3",
			ClientID:     "tv-app",
			DeviceCode:   "dev-code-3",
			UserCode:     "AAAA-BBBB",
		})
		require.NoError(t, err)
	})

	t.Run("manual expiry refuses fresh flows", func(t *testing.T) {
		_, err := c.ExpireDeviceAuth(ctx, "d3")
		require.Error(t, err)
		assert.True(t, apperr.IsPreconditionFailed(err))
	})
}

func TestRemoveInstance(t *testing.T) {
	c, store := newTestEngine(t)
	ctx := testCtx()
	addTestOrg(t, c, "org-1", "ACME")
	addTestHuman(t, c, "org-1", "u1", "ada")

	t.Run("requires a system token", func(t *testing.T) {
		_, err := c.RemoveInstance(ctx)
		require.Error(t, err)
		assert.True(t, apperr.IsPermissionDenied(err))
	})

	t.Run("releases every claim of the instance", func(t *testing.T) {
		systemCtx := command.WithCtxData(testCtx(), command.CtxData{
			UserID: "system", InstanceID: "inst-1", SystemCall: true,
		})
		_, err := c.RemoveInstance(systemCtx)
		require.NoError(t, err)

		// Username and org name claims are gone.
		_, err = store.Push(testCtx(), &eventstore.Command{
			InstanceID:    "inst-1",
			AggregateType: domain.UserAggregate,
			AggregateID:   "u2",
			Type:          domain.HumanAddedType,
			Creator:       "admin",
			Owner:         "org-1",
			UniqueConstraints: []*eventstore.UniqueConstraint{
				eventstore.NewAddUniqueConstraint(domain.UniqueUsername, "ada", "Errors.User.AlreadyExists"),
			},
		})
		require.NoError(t, err)
	})
}
