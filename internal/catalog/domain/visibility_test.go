package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id int64, opts ...func(*PriceMatrixItem)) *PriceMatrixItem {
	it := &PriceMatrixItem{ID: snowflake.ID(id), IsActive: true, DependsOnCondition: ConditionAlways}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

func dependsOn(parent int64, condition string) func(*PriceMatrixItem) {
	return func(it *PriceMatrixItem) {
		id := snowflake.ID(parent)
		it.DependsOnItemID = &id
		it.DependsOnCondition = condition
	}
}

func inactive() func(*PriceMatrixItem) {
	return func(it *PriceMatrixItem) { it.IsActive = false }
}

func ids(items []*PriceMatrixItem) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID.Int64())
	}
	return out
}

func TestResolveVisibility(t *testing.T) {
	catalog := []*PriceMatrixItem{
		item(1),
		item(2, dependsOn(1, ConditionWhenSelected)),
		item(3, dependsOn(1, ConditionWhenNotSelected)),
		item(4, dependsOn(1, ConditionAlways)),
		item(5),
		item(6, inactive()),
	}

	t.Run("nothing selected", func(t *testing.T) {
		visible := ResolveVisibility(catalog, nil)
		assert.Equal(t, []int64{1, 3, 4, 5}, ids(visible))
	})

	t.Run("selecting the parent flips the conditions", func(t *testing.T) {
		visible := ResolveVisibility(catalog, map[snowflake.ID]bool{1: true})
		assert.Equal(t, []int64{1, 2, 4, 5}, ids(visible))
	})

	t.Run("deselecting the parent restores the initial view", func(t *testing.T) {
		visible := ResolveVisibility(catalog, map[snowflake.ID]bool{5: true})
		assert.Equal(t, []int64{1, 3, 4, 5}, ids(visible))
	})

	t.Run("inactive items stay hidden even when selected", func(t *testing.T) {
		visible := ResolveVisibility(catalog, map[snowflake.ID]bool{6: true})
		assert.NotContains(t, ids(visible), int64(6))
	})

	t.Run("dangling parent reference keeps the item visible", func(t *testing.T) {
		orphaned := []*PriceMatrixItem{
			item(1, dependsOn(99, ConditionWhenSelected)),
		}
		visible := ResolveVisibility(orphaned, nil)
		assert.Equal(t, []int64{1}, ids(visible))
	})

	t.Run("inactive parent counts as absent", func(t *testing.T) {
		orphaned := []*PriceMatrixItem{
			item(1, inactive()),
			item(2, dependsOn(1, ConditionWhenSelected)),
		}
		visible := ResolveVisibility(orphaned, nil)
		assert.Equal(t, []int64{2}, ids(visible))
	})
}

func TestDependencyMet(t *testing.T) {
	present := map[snowflake.ID]bool{1: true}

	t.Run("independent item", func(t *testing.T) {
		assert.True(t, DependencyMet(item(2), present, nil))
	})

	t.Run("when_selected follows the parent", func(t *testing.T) {
		it := item(2, dependsOn(1, ConditionWhenSelected))
		assert.False(t, DependencyMet(it, present, nil))
		assert.True(t, DependencyMet(it, present, map[snowflake.ID]bool{1: true}))
	})

	t.Run("when_not_selected inverts the parent", func(t *testing.T) {
		it := item(2, dependsOn(1, ConditionWhenNotSelected))
		assert.True(t, DependencyMet(it, present, nil))
		assert.False(t, DependencyMet(it, present, map[snowflake.ID]bool{1: true}))
	})

	t.Run("unknown condition behaves like always", func(t *testing.T) {
		it := item(2, dependsOn(1, "someday"))
		assert.True(t, DependencyMet(it, present, nil))
	})
}

func TestValidCondition(t *testing.T) {
	assert.True(t, ValidCondition(ConditionAlways))
	assert.True(t, ValidCondition(ConditionWhenSelected))
	assert.True(t, ValidCondition(ConditionWhenNotSelected))
	assert.False(t, ValidCondition(""))
	assert.False(t, ValidCondition("sometimes"))
}

func TestValidateDependency(t *testing.T) {
	catalog := []*PriceMatrixItem{
		item(1),
		item(2, dependsOn(1, ConditionWhenSelected)),
		item(3),
	}

	t.Run("independent parent is allowed", func(t *testing.T) {
		require.NoError(t, ValidateDependency(catalog, 3, 1))
	})

	t.Run("self dependency rejected", func(t *testing.T) {
		assert.ErrorIs(t, ValidateDependency(catalog, 1, 1), ErrSelfDependency)
	})

	t.Run("dependent parent rejected", func(t *testing.T) {
		assert.ErrorIs(t, ValidateDependency(catalog, 3, 2), ErrChainedDependency)
	})

	t.Run("parent with dependents cannot itself become dependent", func(t *testing.T) {
		assert.ErrorIs(t, ValidateDependency(catalog, 1, 3), ErrChainedDependency)
	})

	t.Run("unknown parent rejected", func(t *testing.T) {
		assert.ErrorIs(t, ValidateDependency(catalog, 3, 99), ErrDependencyNotFound)
	})
}
