package command_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/command"
	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

func TestOrgLifecycle(t *testing.T) {
	c, store := newTestEngine(t)
	ctx := testCtx()

	t.Run("add claims the name", func(t *testing.T) {
		details, err := c.AddOrg(ctx, "org-1", "ACME")
		require.NoError(t, err)
		assert.Equal(t, "org-1", details.ID)
		assert.Equal(t, "org-1", details.ResourceOwner)

		_, err = c.AddOrg(ctx, "org-2", "ACME")
		require.Error(t, err)
		assert.True(t, apperr.IsUniqueConstraintViolation(err))
	})

	t.Run("rename moves the claim and is idempotent", func(t *testing.T) {
		_, err := c.ChangeOrg(ctx, "org-1", "ACME Corp")
		require.NoError(t, err)

		before, err := store.Count(ctx, &eventstore.Filter{InstanceID: "inst-1", AggregateIDs: []string{"org-1"}})
		require.NoError(t, err)
		_, err = c.ChangeOrg(ctx, "org-1", "ACME Corp")
		require.NoError(t, err)
		after, err := store.Count(ctx, &eventstore.Filter{InstanceID: "inst-1", AggregateIDs: []string{"org-1"}})
		require.NoError(t, err)
		assert.Equal(t, before, after)

		// The original name is free again.
		_, err = c.AddOrg(ctx, "org-2", "ACME")
		require.NoError(t, err)
	})

	t.Run("deactivate and reactivate enforce state", func(t *testing.T) {
		_, err := c.DeactivateOrg(ctx, "org-1")
		require.NoError(t, err)

		_, err = c.DeactivateOrg(ctx, "org-1")
		require.Error(t, err)
		assert.True(t, apperr.IsPreconditionFailed(err))

		_, err = c.ReactivateOrg(ctx, "org-1")
		require.NoError(t, err)
	})

	t.Run("remove releases the name and cascades to users", func(t *testing.T) {
		addTestHuman(t, c, "org-1", "u1", "ada")

		_, err := c.RemoveOrg(ctx, "org-1")
		require.NoError(t, err)

		_, err = c.DeactivateOrg(ctx, "org-1")
		require.Error(t, err)
		assert.True(t, apperr.IsNotFound(err))

		// The user write model observes org.removed and reports DELETED.
		_, err = c.DeactivateUser(ctx, "org-1", "u1")
		require.Error(t, err)
		assert.True(t, apperr.IsNotFound(err))

		_, err = c.AddOrg(ctx, "org-3", "ACME Corp")
		require.NoError(t, err)
	})
}

func TestOrgMembers(t *testing.T) {
	c, _ := newTestEngine(t)
	ctx := testCtx()
	addTestOrg(t, c, "org-1", "ACME")
	addTestHuman(t, c, "org-1", "u1", "ada")

	t.Run("add requires existing user and org", func(t *testing.T) {
		_, err := c.AddOrgMember(ctx, "org-1", "missing", "ORG_OWNER")
		require.Error(t, err)
		assert.True(t, apperr.IsNotFound(err))

		_, err = c.AddOrgMember(ctx, "missing", "u1", "ORG_OWNER")
		require.Error(t, err)
		assert.True(t, apperr.IsNotFound(err))

		_, err = c.AddOrgMember(ctx, "org-1", "u1", "ORG_OWNER")
		require.NoError(t, err)
	})

	t.Run("one membership per user", func(t *testing.T) {
		_, err := c.AddOrgMember(ctx, "org-1", "u1", "ORG_VIEWER")
		require.Error(t, err)
		assert.True(t, apperr.IsAlreadyExists(err))
	})

	t.Run("role change is idempotent on equal sets", func(t *testing.T) {
		details, err := c.ChangeOrgMember(ctx, "org-1", "u1", "ORG_OWNER")
		require.NoError(t, err)

		changed, err := c.ChangeOrgMember(ctx, "org-1", "u1", "ORG_OWNER", "ORG_VIEWER")
		require.NoError(t, err)
		assert.Greater(t, changed.Sequence, details.Sequence)
	})

	t.Run("remove frees the membership", func(t *testing.T) {
		_, err := c.RemoveOrgMember(ctx, "org-1", "u1")
		require.NoError(t, err)

		_, err = c.RemoveOrgMember(ctx, "org-1", "u1")
		require.Error(t, err)
		assert.True(t, apperr.IsNotFound(err))

		_, err = c.AddOrgMember(ctx, "org-1", "u1", "ORG_VIEWER")
		require.NoError(t, err)
	})
}

func TestLabelPolicy(t *testing.T) {
	c, store := newTestEngine(t)
	ctx := testCtx()
	addTestOrg(t, c, "org-1", "ACME")

	t.Run("one policy per org", func(t *testing.T) {
		_, err := c.AddLabelPolicy(ctx, "org-1", &command.AddLabelPolicy{PrimaryColor: "#5469d4"})
		require.NoError(t, err)

		_, err = c.AddLabelPolicy(ctx, "org-1", &command.AddLabelPolicy{PrimaryColor: "#000000"})
		require.Error(t, err)
		assert.True(t, apperr.IsAlreadyExists(err))
	})

	t.Run("change detects no-ops", func(t *testing.T) {
		color := "#5469d4"
		before, err := store.Count(ctx, &eventstore.Filter{InstanceID: "inst-1", AggregateIDs: []string{"org-1"}})
		require.NoError(t, err)

		_, err = c.ChangeLabelPolicy(ctx, "org-1", &command.ChangeLabelPolicy{PrimaryColor: &color})
		require.NoError(t, err)

		after, err := store.Count(ctx, &eventstore.Filter{InstanceID: "inst-1", AggregateIDs: []string{"org-1"}})
		require.NoError(t, err)
		assert.Equal(t, before, after)

		warn := "#ff0000"
		_, err = c.ChangeLabelPolicy(ctx, "org-1", &command.ChangeLabelPolicy{WarnColor: &warn})
		require.NoError(t, err)
	})

	t.Run("remove then re-add", func(t *testing.T) {
		_, err := c.RemoveLabelPolicy(ctx, "org-1")
		require.NoError(t, err)

		_, err = c.ChangeLabelPolicy(ctx, "org-1", &command.ChangeLabelPolicy{})
		require.Error(t, err)
		assert.True(t, apperr.IsNotFound(err))

		_, err = c.AddLabelPolicy(ctx, "org-1", &command.AddLabelPolicy{PrimaryColor: "#ffffff"})
		require.NoError(t, err)
	})
}

func TestUserGrants(t *testing.T) {
	c, _ := newTestEngine(t)
	ctx := testCtx()
	addTestOrg(t, c, "org-1", "ACME")
	addTestHuman(t, c, "org-1", "u1", "ada")

	t.Run("one grant per user and project", func(t *testing.T) {
		_, err := c.AddUserGrant(ctx, "org-1", &command.AddUserGrant{
			GrantID:   "g1",
			UserID:    "u1",
			ProjectID: "p1",
			RoleKeys:  []string{"reader"},
		})
		require.NoError(t, err)

		_, err = c.AddUserGrant(ctx, "org-1", &command.AddUserGrant{
			GrantID:   "g2",
			UserID:    "u1",
			ProjectID: "p1",
			RoleKeys:  []string{"writer"},
		})
		require.Error(t, err)
		assert.True(t, apperr.IsUniqueConstraintViolation(err))
	})

	t.Run("role change is idempotent on equal sets", func(t *testing.T) {
		details, err := c.ChangeUserGrant(ctx, "org-1", "g1", "reader")
		require.NoError(t, err)

		changed, err := c.ChangeUserGrant(ctx, "org-1", "g1", "reader", "writer")
		require.NoError(t, err)
		assert.Greater(t, changed.Sequence, details.Sequence)
	})

	t.Run("remove releases the claim", func(t *testing.T) {
		_, err := c.RemoveUserGrant(ctx, "org-1", "g1")
		require.NoError(t, err)

		_, err = c.AddUserGrant(ctx, "org-1", &command.AddUserGrant{
			GrantID:   "g2",
			UserID:    "u1",
			ProjectID: "p1",
			RoleKeys:  []string{"writer"},
		})
		require.NoError(t, err)
	})
}

func TestIDPCommands(t *testing.T) {
	c, _ := newTestEngine(t)
	ctx := testCtx()
	addTestOrg(t, c, "org-1", "ACME")

	t.Run("requires a config matching the type", func(t *testing.T) {
		_, err := c.AddIDP(ctx, "org-1", &command.AddIDP{
			IDPID: "idp-1",
			Name:  "Corp OIDC",
			Type:  domain.IDPTypeOIDC,
		})
		require.Error(t, err)
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("add claims the name per org", func(t *testing.T) {
		_, err := c.AddIDP(ctx, "org-1", &command.AddIDP{
			IDPID: "idp-1",
			Name:  "Corp OIDC",
			Type:  domain.IDPTypeOIDC,
			OIDC:  &domain.OIDCConfig{Issuer: "https://idp.example.com", ClientID: "client"},
		})
		require.NoError(t, err)

		_, err = c.AddIDP(ctx, "org-1", &command.AddIDP{
			IDPID: "idp-2",
			Name:  "Corp OIDC",
			Type:  domain.IDPTypeJWT,
			JWT:   &domain.JWTConfig{Issuer: "https://jwt.example.com", KeysEndpoint: "https://jwt.example.com/keys"},
		})
		require.Error(t, err)
		assert.True(t, apperr.IsUniqueConstraintViolation(err))
	})

	t.Run("rename moves the claim", func(t *testing.T) {
		name := "Corp Login"
		_, err := c.ChangeIDP(ctx, "org-1", "idp-1", &command.ChangeIDP{Name: &name})
		require.NoError(t, err)

		_, err = c.AddIDP(ctx, "org-1", &command.AddIDP{
			IDPID: "idp-2",
			Name:  "Corp OIDC",
			Type:  domain.IDPTypeJWT,
			JWT:   &domain.JWTConfig{Issuer: "https://jwt.example.com", KeysEndpoint: "https://jwt.example.com/keys"},
		})
		require.NoError(t, err)
	})

	t.Run("remove releases the name", func(t *testing.T) {
		_, err := c.RemoveIDP(ctx, "org-1", "idp-1")
		require.NoError(t, err)

		_, err = c.RemoveIDP(ctx, "org-1", "idp-1")
		require.Error(t, err)
		assert.True(t, apperr.IsNotFound(err))
	})
}
