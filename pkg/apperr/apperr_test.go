package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
)

func TestErrorKindMatching(t *testing.T) {
	err := apperr.NotFound(nil, "COMMAND-Org12", "org not found")

	assert.True(t, apperr.IsNotFound(err))
	assert.False(t, apperr.IsAlreadyExists(err))
	assert.Equal(t, "COMMAND-Org12", apperr.Code(err))
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("row not found")
	err := apperr.NotFound(cause, "QUERY-User04", "user not found")

	wrapped := fmt.Errorf("loading write model: %w", err)

	require.True(t, apperr.IsNotFound(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "QUERY-User04", apperr.Code(wrapped))
}

func TestConcurrencyContext(t *testing.T) {
	err := apperr.Concurrency(nil, "EVENT-Occ01", "version mismatch", 3, 4)

	require.True(t, apperr.IsConcurrency(err))
	assert.Equal(t, uint64(3), err.Context["expected"])
	assert.Equal(t, uint64(4), err.Context["actual"])
}

func TestUniqueConstraintContext(t *testing.T) {
	err := apperr.UniqueConstraintViolation(nil, "EVENT-Unique01", "usernames", "alice", "Errors.User.AlreadyExists")

	require.True(t, apperr.IsUniqueConstraintViolation(err))
	assert.Equal(t, "usernames", err.Context["unique_type"])
	assert.Equal(t, "alice", err.Context["unique_field"])
}

func TestIsMatchesSameKind(t *testing.T) {
	err := apperr.Validation(nil, "EVENT-Push02", "aggregate type missing")
	target := &apperr.Error{Kind: apperr.KindValidation}

	assert.True(t, errors.Is(err, target))

	// A code on the target narrows the match.
	codeTarget := &apperr.Error{Kind: apperr.KindValidation, Code: "EVENT-Push99"}
	assert.False(t, errors.Is(err, codeTarget))
}
