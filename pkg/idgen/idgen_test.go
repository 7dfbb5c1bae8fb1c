package idgen_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel-sub003/pkg/idgen"
)

func TestSortableIDsAreUniqueAndOrdered(t *testing.T) {
	generator := idgen.NewSortable()

	ids := make([]string, 0, 1000)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id, err := generator.Next()
		require.NoError(t, err)
		require.Len(t, id, 26)

		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	assert.True(t, sort.StringsAreSorted(ids), "ids must sort by allocation order")
}

func TestMustGenerateSortableID(t *testing.T) {
	assert.Len(t, idgen.MustGenerateSortableID(), 26)
}
