package scope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crewdeck/pkg/contextkeys"
)

func TestFromContext(t *testing.T) {
	t.Run("resolved tenant", func(t *testing.T) {
		ctx := contextkeys.WithTenant(context.Background(), 42)

		sc, err := FromContext(ctx)
		require.NoError(t, err)

		orgID, ok := sc.OrgID()
		assert.True(t, ok)
		assert.Equal(t, int64(42), orgID)
	})

	t.Run("no tenant fails closed", func(t *testing.T) {
		_, err := FromContext(context.Background())
		assert.ErrorIs(t, err, ErrTenantNotSet)
	})
}

func TestScopeWhere(t *testing.T) {
	t.Run("scoped predicate", func(t *testing.T) {
		sc := ForTenant(7)
		where, args := sc.Where("organization_id", 3)
		assert.Equal(t, "organization_id = $3", where)
		assert.Equal(t, []interface{}{int64(7)}, args)
	})

	t.Run("bypass is a tautology", func(t *testing.T) {
		where, args := WithoutScope().Where("organization_id", 1)
		assert.Equal(t, "1 = 1", where)
		assert.Empty(t, args)
	})

	t.Run("zero value matches nothing", func(t *testing.T) {
		var sc Scope
		where, args := sc.Where("organization_id", 1)
		assert.Equal(t, "1 = 0", where)
		assert.Empty(t, args)
	})
}

func TestRequireOrgID(t *testing.T) {
	t.Run("scoped", func(t *testing.T) {
		orgID, err := ForTenant(9).RequireOrgID()
		require.NoError(t, err)
		assert.Equal(t, int64(9), orgID)
	})

	t.Run("bypass cannot create tenant rows", func(t *testing.T) {
		_, err := WithoutScope().RequireOrgID()
		assert.ErrorIs(t, err, ErrTenantNotSet)
	})
}

func TestIsBypass(t *testing.T) {
	assert.True(t, WithoutScope().IsBypass())
	assert.False(t, ForTenant(1).IsBypass())
}
