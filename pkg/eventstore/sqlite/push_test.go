package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/eventstore/sqlite"
)

func newTestStore(t *testing.T, opts ...sqlite.Option) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(append([]sqlite.Option{sqlite.WithMemoryDatabase()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func userAddedCommand(aggregateID, username string) *eventstore.Command {
	return &eventstore.Command{
		InstanceID:    "inst-1",
		AggregateType: "user",
		AggregateID:   aggregateID,
		Type:          "user.human.added",
		Payload:       map[string]string{"username": username},
		Creator:       "admin",
		Owner:         "org-1",
		UniqueConstraints: []*eventstore.UniqueConstraint{
			eventstore.NewAddUniqueConstraint("usernames", username, "Errors.User.AlreadyExists"),
		},
	}
}

func simpleCommand(aggregateID string, eventType eventstore.EventType) *eventstore.Command {
	return &eventstore.Command{
		InstanceID:    "inst-1",
		AggregateType: "user",
		AggregateID:   aggregateID,
		Type:          eventType,
		Creator:       "admin",
		Owner:         "org-1",
	}
}

func TestPushAssignsContiguousVersions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Push(ctx, simpleCommand("u1", "user.human.added"))
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, uint64(1), first[0].AggregateVersion)

	// Versions continue from the current max, contiguously within a batch.
	batch, err := store.Push(ctx,
		simpleCommand("u1", "user.email.changed"),
		simpleCommand("u1", "user.phone.changed"),
	)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, uint64(2), batch[0].AggregateVersion)
	assert.Equal(t, uint64(3), batch[1].AggregateVersion)

	// Same position, distinct in-tx order within the transaction.
	assert.True(t, batch[0].Position.Position.Equal(batch[1].Position.Position))
	assert.Less(t, batch[0].Position.InTxOrder, batch[1].Position.InTxOrder)
}

func TestPushPositionMonotonicAcrossCommits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var last eventstore.Position
	for i := 0; i < 10; i++ {
		events, err := store.Push(ctx, simpleCommand("u1", "user.email.changed"))
		require.NoError(t, err)
		require.True(t, events[0].Position.After(last),
			"position must be strictly increasing across commits")
		last = events[0].Position
	}
}

func TestPushSerializesContendingAggregates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Push(ctx,
		simpleCommand("u1", "user.human.added"),
		simpleCommand("u1", "user.email.changed"),
		simpleCommand("u1", "user.phone.changed"),
	)
	require.NoError(t, err)

	// Two concurrent pushes on the same aggregate starting at version 3.
	type result struct {
		events []*eventstore.Event
		err    error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			events, err := store.Push(ctx, simpleCommand("u1", "user.profile.changed"))
			results <- result{events, err}
		}()
	}

	versions := make(map[uint64]bool)
	positions := make(map[string]bool)
	for i := 0; i < 2; i++ {
		r := <-results
		require.NoError(t, r.err)
		versions[r.events[0].AggregateVersion] = true
		positions[r.events[0].Position.Position.String()] = true
	}
	assert.Equal(t, map[uint64]bool{4: true, 5: true}, versions)
	assert.Len(t, positions, 2, "contending pushes must get distinct positions")
}

func TestPushWithConcurrencyCheck(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Push(ctx, simpleCommand("u1", "user.human.added"))
	require.NoError(t, err)

	// Both clients loaded the write model at version 1.
	_, err = store.PushWithConcurrencyCheck(ctx, 1, simpleCommand("u1", "user.email.changed"))
	require.NoError(t, err)

	_, err = store.PushWithConcurrencyCheck(ctx, 1, simpleCommand("u1", "user.phone.changed"))
	require.Error(t, err)
	require.True(t, apperr.IsConcurrency(err))

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, uint64(1), appErr.Context["expected"])
	assert.Equal(t, uint64(2), appErr.Context["actual"])

	// The rejected push left no event behind.
	count, err := store.Count(ctx, &eventstore.Filter{
		InstanceID:   "inst-1",
		AggregateIDs: []string{"u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestUniqueConstraintLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Push(ctx, userAddedCommand("u1", "alice"))
	require.NoError(t, err)

	// Second claim of the same username conflicts; the push is atomic so
	// the second user has no events at all.
	_, err = store.Push(ctx, userAddedCommand("u2", "alice"))
	require.Error(t, err)
	require.True(t, apperr.IsUniqueConstraintViolation(err))

	count, err := store.Count(ctx, &eventstore.Filter{InstanceID: "inst-1", AggregateIDs: []string{"u2"}})
	require.NoError(t, err)
	assert.Zero(t, count)

	// Removing the first user releases the claim.
	removed := simpleCommand("u1", "user.removed")
	removed.UniqueConstraints = []*eventstore.UniqueConstraint{
		eventstore.NewRemoveUniqueConstraint("usernames", "alice"),
	}
	_, err = store.Push(ctx, removed)
	require.NoError(t, err)

	// The username is free again.
	_, err = store.Push(ctx, userAddedCommand("u2", "alice"))
	require.NoError(t, err)
}

func TestUniqueConstraintScopes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Instance-scoped claims do not collide across instances.
	first := userAddedCommand("u1", "alice")
	second := userAddedCommand("u2", "alice")
	second.InstanceID = "inst-2"
	_, err := store.Push(ctx, first)
	require.NoError(t, err)
	_, err = store.Push(ctx, second)
	require.NoError(t, err)

	// Global claims collide regardless of instance.
	globalFirst := simpleCommand("d1", "instance.domain.added")
	globalFirst.AggregateType = "instance"
	globalFirst.UniqueConstraints = []*eventstore.UniqueConstraint{
		eventstore.NewAddGlobalUniqueConstraint("domains", "example.com", "Errors.Instance.Domain.AlreadyExists"),
	}
	_, err = store.Push(ctx, globalFirst)
	require.NoError(t, err)

	globalSecond := simpleCommand("d2", "instance.domain.added")
	globalSecond.AggregateType = "instance"
	globalSecond.InstanceID = "inst-2"
	globalSecond.UniqueConstraints = []*eventstore.UniqueConstraint{
		eventstore.NewAddGlobalUniqueConstraint("domains", "example.com", "Errors.Instance.Domain.AlreadyExists"),
	}
	_, err = store.Push(ctx, globalSecond)
	require.True(t, apperr.IsUniqueConstraintViolation(err))
}

func TestInstanceRemoveClearsConstraints(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Push(ctx, userAddedCommand("u1", "alice"), userAddedCommand("u2", "bob"))
	require.NoError(t, err)

	wipe := simpleCommand("inst-1", "instance.removed")
	wipe.AggregateType = "instance"
	wipe.UniqueConstraints = []*eventstore.UniqueConstraint{
		eventstore.NewRemoveInstanceUniqueConstraints(),
	}
	_, err = store.Push(ctx, wipe)
	require.NoError(t, err)

	// All claims of the instance are gone.
	_, err = store.Push(ctx, userAddedCommand("u3", "alice"))
	require.NoError(t, err)
	_, err = store.Push(ctx, userAddedCommand("u4", "bob"))
	require.NoError(t, err)
}

func TestPushValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	missingType := simpleCommand("u1", "user.human.added")
	missingType.AggregateType = ""

	_, err := store.Push(ctx, missingType)
	require.True(t, apperr.IsValidation(err))

	missingID := simpleCommand("", "user.human.added")
	_, err = store.Push(ctx, missingID)
	require.True(t, apperr.IsValidation(err))

	// A validation failure rolls back the whole batch.
	_, err = store.Push(ctx, simpleCommand("u9", "user.human.added"), missingID)
	require.True(t, apperr.IsValidation(err))
	count, err := store.Count(ctx, &eventstore.Filter{InstanceID: "inst-1", AggregateIDs: []string{"u9"}})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRemoveUnclaimedConstraintFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cmd := simpleCommand("u1", "user.removed")
	cmd.UniqueConstraints = []*eventstore.UniqueConstraint{
		eventstore.NewRemoveUniqueConstraint("usernames", "ghost"),
	}
	_, err := store.Push(ctx, cmd)
	require.True(t, apperr.IsValidation(err))
}

func TestPushNotifiesBus(t *testing.T) {
	bus := eventstore.NewBus()
	store := newTestStore(t, sqlite.WithBus(bus))
	sub := bus.SubscribeAggregates("user")
	defer sub.Unsubscribe()

	_, err := store.Push(context.Background(), simpleCommand("u1", "user.human.added"))
	require.NoError(t, err)

	event := <-sub.Events()
	assert.Equal(t, eventstore.EventType("user.human.added"), event.Type)
	assert.Equal(t, uint64(1), event.AggregateVersion)
}
