package command_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/command"
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/eventstore/sqlite"
)

const strongPassword = "Str0ng!Passw0rd-2026"

func newTestEngine(t *testing.T, opts ...command.Option) (*command.Commands, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(sqlite.WithMemoryDatabase())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return command.New(store, opts...), store
}

func testCtx() context.Context {
	return command.WithCtxData(context.Background(), command.CtxData{
		UserID:     "admin",
		InstanceID: "inst-1",
	})
}

func addTestHuman(t *testing.T, c *command.Commands, orgID, userID, username string) *domain.ObjectDetails {
	t.Helper()
	details, err := c.AddHuman(testCtx(), orgID, &command.AddHuman{
		UserID:    userID,
		Username:  username,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     username + "@example.com",
	})
	require.NoError(t, err)
	return details
}

func addTestOrg(t *testing.T, c *command.Commands, orgID, name string) {
	t.Helper()
	_, err := c.AddOrg(testCtx(), orgID, name)
	require.NoError(t, err)
}

func TestAddHuman(t *testing.T) {
	c, store := newTestEngine(t)
	ctx := testCtx()

	t.Run("creates user with claimed username", func(t *testing.T) {
		details, err := c.AddHuman(ctx, "org-1", &command.AddHuman{
			UserID:    "u1",
			Username:  "ada",
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, "u1", details.ID)
		assert.Equal(t, uint64(1), details.Sequence)
		assert.Equal(t, "org-1", details.ResourceOwner)

		event, err := store.LatestEvent(ctx, domain.UserAggregate, "u1")
		require.NoError(t, err)
		assert.Equal(t, domain.HumanAddedType, event.Type)
		assert.Equal(t, "admin", event.Creator)
	})

	t.Run("rejects duplicate username", func(t *testing.T) {
		_, err := c.AddHuman(ctx, "org-1", &command.AddHuman{
			UserID:    "u2",
			Username:  "ada",
			FirstName: "Grace",
			LastName:  "Hopper",
			Email:     "grace@example.com",
		})
		require.Error(t, err)
		assert.True(t, apperr.IsUniqueConstraintViolation(err))
	})

	t.Run("rejects existing user id", func(t *testing.T) {
		_, err := c.AddHuman(ctx, "org-1", &command.AddHuman{
			UserID:    "u1",
			Username:  "other",
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "other@example.com",
		})
		require.Error(t, err)
		assert.True(t, apperr.IsAlreadyExists(err))
	})

	t.Run("rejects invalid email", func(t *testing.T) {
		_, err := c.AddHuman(ctx, "org-1", &command.AddHuman{
			Username:  "bob",
			FirstName: "Bob",
			LastName:  "Builder",
			Email:     "not-an-email",
		})
		require.Error(t, err)
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("rejects weak password", func(t *testing.T) {
		_, err := c.AddHuman(ctx, "org-1", &command.AddHuman{
			Username:  "carl",
			FirstName: "Carl",
			LastName:  "Crane",
			Email:     "carl@example.com",
			Password:  "abc",
		})
		require.Error(t, err)
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("allocates id when empty", func(t *testing.T) {
		details, err := c.AddHuman(ctx, "org-1", &command.AddHuman{
			Username:  "dora",
			FirstName: "Dora",
			LastName:  "Explorer",
			Email:     "dora@example.com",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, details.ID)
	})
}

func TestChangeProfileIdempotence(t *testing.T) {
	c, store := newTestEngine(t)
	ctx := testCtx()
	addTestHuman(t, c, "org-1", "u1", "ada")

	first := "Augusta"
	details, err := c.ChangeProfile(ctx, "org-1", "u1", &command.ChangeProfile{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), details.Sequence)

	// Submitting the identical change again writes no event and returns
	// the unchanged sequence.
	again, err := c.ChangeProfile(ctx, "org-1", "u1", &command.ChangeProfile{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, details.Sequence, again.Sequence)

	count, err := store.Count(ctx, &eventstore.Filter{
		InstanceID:   "inst-1",
		AggregateIDs: []string{"u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestChangeUsernameMovesClaim(t *testing.T) {
	c, _ := newTestEngine(t)
	ctx := testCtx()
	addTestHuman(t, c, "org-1", "u1", "ada")

	_, err := c.ChangeUsername(ctx, "org-1", "u1", "countess")
	require.NoError(t, err)

	// The old username is free again, the new one is taken.
	addTestHuman(t, c, "org-1", "u2", "ada")
	_, err = c.AddHuman(ctx, "org-1", &command.AddHuman{
		UserID:    "u3",
		Username:  "countess",
		FirstName: "X",
		LastName:  "Y",
		Email:     "x@example.com",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsUniqueConstraintViolation(err))
}

func TestChangeEmailResetsVerification(t *testing.T) {
	c, store := newTestEngine(t)
	ctx := testCtx()
	addTestHuman(t, c, "org-1", "u1", "ada")

	_, err := c.VerifyEmail(ctx, "org-1", "u1")
	require.NoError(t, err)

	_, err = c.ChangeEmail(ctx, "org-1", "u1", "new@example.com")
	require.NoError(t, err)

	events, err := store.Filter(ctx, &eventstore.Filter{
		InstanceID:   "inst-1",
		AggregateIDs: []string{"u1"},
		EventTypes:   []eventstore.EventType{domain.HumanEmailChanged, domain.HumanEmailCodeAdded},
	})
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Setting the same address again is a no-op.
	before, err := store.Count(ctx, &eventstore.Filter{InstanceID: "inst-1", AggregateIDs: []string{"u1"}})
	require.NoError(t, err)
	_, err = c.ChangeEmail(ctx, "org-1", "u1", "new@example.com")
	require.NoError(t, err)
	after, err := store.Count(ctx, &eventstore.Filter{InstanceID: "inst-1", AggregateIDs: []string{"u1"}})
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUserLifecycle(t *testing.T) {
	c, _ := newTestEngine(t)
	ctx := testCtx()
	addTestHuman(t, c, "org-1", "u1", "ada")

	t.Run("deactivate then reactivate", func(t *testing.T) {
		_, err := c.DeactivateUser(ctx, "org-1", "u1")
		require.NoError(t, err)

		_, err = c.DeactivateUser(ctx, "org-1", "u1")
		require.Error(t, err)
		assert.True(t, apperr.IsPreconditionFailed(err))

		_, err = c.ReactivateUser(ctx, "org-1", "u1")
		require.NoError(t, err)
	})

	t.Run("lock blocks everything but unlock", func(t *testing.T) {
		_, err := c.LockUser(ctx, "org-1", "u1")
		require.NoError(t, err)

		_, err = c.DeactivateUser(ctx, "org-1", "u1")
		require.Error(t, err)
		assert.True(t, apperr.IsPreconditionFailed(err))

		_, err = c.UnlockUser(ctx, "org-1", "u1")
		require.NoError(t, err)
	})

	t.Run("remove releases username", func(t *testing.T) {
		_, err := c.RemoveUser(ctx, "org-1", "u1")
		require.NoError(t, err)

		_, err = c.DeactivateUser(ctx, "org-1", "u1")
		require.Error(t, err)
		assert.True(t, apperr.IsNotFound(err))

		addTestHuman(t, c, "org-1", "u2", "ada")
	})
}

func TestChangePasswordAndCheck(t *testing.T) {
	c, _ := newTestEngine(t)
	ctx := testCtx()
	addTestHuman(t, c, "org-1", "u1", "ada")

	_, err := c.ChangePassword(ctx, "org-1", "u1", strongPassword, false)
	require.NoError(t, err)

	_, err = c.ChangePassword(ctx, "org-1", "u1", "weak", false)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestPermissionChecks(t *testing.T) {
	denied := command.WithPermissionChecker(denyAll{})

	t.Run("denied caller cannot write", func(t *testing.T) {
		c, _ := newTestEngine(t, denied)
		_, err := c.AddHuman(testCtx(), "org-1", &command.AddHuman{
			Username:  "ada",
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
		})
		require.Error(t, err)
		assert.True(t, apperr.IsPermissionDenied(err))
	})

	t.Run("system token bypasses the checker", func(t *testing.T) {
		c, _ := newTestEngine(t, denied)
		ctx := command.WithCtxData(context.Background(), command.CtxData{
			UserID:     "system",
			InstanceID: "inst-1",
			SystemCall: true,
		})
		_, err := c.AddHuman(ctx, "org-1", &command.AddHuman{
			Username:  "ada",
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
		})
		require.NoError(t, err)
	})
}

type denyAll struct{}

func (denyAll) Check(context.Context, string, string, string) error {
	return apperr.PermissionDenied(nil, "TEST-Deny01", "denied")
}

func TestConcurrentUserCommandsConflict(t *testing.T) {
	c, store := newTestEngine(t)
	ctx := testCtx()
	addTestHuman(t, c, "org-1", "u1", "ada")

	// A write that lands between load and push trips the concurrency
	// check; the caller is expected to retry.
	wmSequence := uint64(1)
	_, err := store.Push(ctx, &eventstore.Command{
		InstanceID:    "inst-1",
		AggregateType: domain.UserAggregate,
		AggregateID:   "u1",
		Type:          domain.UserDeactivated,
		Creator:       "other",
		Owner:         "org-1",
	})
	require.NoError(t, err)

	_, err = store.PushWithConcurrencyCheck(ctx, wmSequence, &eventstore.Command{
		InstanceID:    "inst-1",
		AggregateType: domain.UserAggregate,
		AggregateID:   "u1",
		Type:          domain.UserLocked,
		Creator:       "admin",
		Owner:         "org-1",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsConcurrency(err))

	// Reloading and retrying succeeds.
	_, err = c.ReactivateUser(ctx, "org-1", "u1")
	require.NoError(t, err)
}

func TestAddMachine(t *testing.T) {
	c, _ := newTestEngine(t)
	ctx := testCtx()

	details, err := c.AddMachine(ctx, "org-1", &command.AddMachine{
		UserID:   "m1",
		Username: "ci-runner",
		Name:     "CI Runner",
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", details.ID)

	// Machines share the username namespace with humans.
	_, err = c.AddHuman(ctx, "org-1", &command.AddHuman{
		Username:  "ci-runner",
		FirstName: "X",
		LastName:  "Y",
		Email:     "x@example.com",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsUniqueConstraintViolation(err))

	// Profile changes are human only.
	first := "X"
	_, err = c.ChangeProfile(ctx, "org-1", "m1", &command.ChangeProfile{FirstName: &first})
	require.Error(t, err)
	assert.True(t, apperr.IsPreconditionFailed(err))
}

func TestMissingInstanceContext(t *testing.T) {
	c, _ := newTestEngine(t)

	_, err := c.AddHuman(context.Background(), "org-1", &command.AddHuman{
		Username:  "ada",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, "COMMAND-Inst01", apperr.Code(err))
}
