package state

import (
	"sort"

	"github.com/jwebster45206/branch-engine/pkg/story"
)

// Inventory is a set of items kept in pickup order. Order is for display only.
type Inventory []story.ItemID

// Has reports whether item is held.
func (inv Inventory) Has(item story.ItemID) bool {
	for _, held := range inv {
		if held == item {
			return true
		}
	}
	return false
}

// With returns a copy of inv that also holds item. Adding a held item is a no-op.
func (inv Inventory) With(item story.ItemID) Inventory {
	out := inv.Clone()
	if item == "" || inv.Has(item) {
		return out
	}
	return append(out, item)
}

// Clone returns an independent copy; never nil.
func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv), len(inv)+1)
	copy(out, inv)
	return out
}

// Sorted returns the items in lexical order.
func (inv Inventory) Sorted() []story.ItemID {
	out := append([]story.ItemID(nil), inv...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Equal compares two inventories as sets.
func (inv Inventory) Equal(other Inventory) bool {
	if len(inv) != len(other) {
		return false
	}
	for _, item := range inv {
		if !other.Has(item) {
			return false
		}
	}
	return true
}

// duplicate returns the first item held twice, if any.
func (inv Inventory) duplicate() (story.ItemID, bool) {
	seen := make(map[story.ItemID]bool, len(inv))
	for _, item := range inv {
		if seen[item] {
			return item, true
		}
		seen[item] = true
	}
	return "", false
}
