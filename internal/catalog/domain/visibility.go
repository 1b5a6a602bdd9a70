package domain

import "github.com/bwmarrin/snowflake"

// ResolveVisibility filters a catalog down to the items a prospect should see
// given the set of currently selected item IDs. Independent items are always
// visible; dependent items follow their condition against the parent's
// selection state. Inactive items are never visible regardless of selection.
func ResolveVisibility(items []*PriceMatrixItem, selected map[snowflake.ID]bool) []*PriceMatrixItem {
	present := make(map[snowflake.ID]bool, len(items))
	for _, item := range items {
		if item.IsActive {
			present[item.ID] = true
		}
	}

	visible := make([]*PriceMatrixItem, 0, len(items))
	for _, item := range items {
		if !item.IsActive {
			continue
		}
		if !DependencyMet(item, present, selected) {
			continue
		}
		visible = append(visible, item)
	}
	return visible
}

// DependencyMet reports whether item's dependency condition holds. present is
// the set of item IDs actually in the catalog: an item whose parent is absent
// (deleted or deactivated) stays visible, its dependency counts as unresolved
// rather than unmet. An unknown condition value falls back to visible, the
// same as "always".
func DependencyMet(item *PriceMatrixItem, present, selected map[snowflake.ID]bool) bool {
	if item.DependsOnItemID == nil || !present[*item.DependsOnItemID] {
		return true
	}
	switch item.DependsOnCondition {
	case ConditionWhenSelected:
		return selected[*item.DependsOnItemID]
	case ConditionWhenNotSelected:
		return !selected[*item.DependsOnItemID]
	default:
		return true
	}
}

// ValidateDependency enforces the single-level dependency rule for an item
// that wants to depend on parentID. The parent must exist in the same
// catalog, be a different item, and be independent itself. An item that
// already has dependents cannot become dependent, since that would create a
// chain.
func ValidateDependency(items []*PriceMatrixItem, itemID snowflake.ID, parentID snowflake.ID) error {
	if parentID == itemID {
		return ErrSelfDependency
	}

	var parent *PriceMatrixItem
	for _, candidate := range items {
		if candidate.ID == parentID {
			parent = candidate
		}
		if candidate.DependsOnItemID != nil && *candidate.DependsOnItemID == itemID {
			return ErrChainedDependency
		}
	}
	if parent == nil {
		return ErrDependencyNotFound
	}
	if parent.DependsOnItemID != nil {
		return ErrChainedDependency
	}
	return nil
}
