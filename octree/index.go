package octree

import (
	"strings"
)

// Index identifies a region of an octree by the path of child selectors
// leading to it from the root. Each byte is a selector between '0' and '7'.
// The root is the empty index.
//
// A region's index is a strict prefix of the indexes of all its descendants,
// which allows ancestry to be tested with string comparisons only.
type Index string

// Root is the index of the root region.
const Root Index = ""

// Child returns the index of the given child (0 to 7).
func (idx Index) Child(child int) Index {
	return idx + Index(rune('0'+child))
}

// Selector returns the child selector at the given depth.
func (idx Index) Selector(depth int) int {
	return int(idx[depth]) - '0'
}

// Depth returns the number of selectors in the index.
func (idx Index) Depth() int {
	return len(idx)
}

// Parent returns the index of the parent region. The root has no parent.
func (idx Index) Parent() (Index, bool) {
	if idx == Root {
		return Root, false
	}
	return idx[:len(idx)-1], true
}

// Ancestors returns the strict ancestors of the index, nearest first.
func (idx Index) Ancestors() []Index {
	ancestors := make([]Index, 0, len(idx))
	for i := len(idx) - 1; i >= 0; i-- {
		ancestors = append(ancestors, idx[:i])
	}
	return ancestors
}

// IsAncestorOf reports whether idx is a strict ancestor of other.
func (idx Index) IsAncestorOf(other Index) bool {
	return len(idx) < len(other) && strings.HasPrefix(string(other), string(idx))
}

// Overlaps reports whether the regions share points: one is equal to or an
// ancestor of the other.
func (idx Index) Overlaps(other Index) bool {
	return idx == other || idx.IsAncestorOf(other) || other.IsAncestorOf(idx)
}

// Valid reports whether the index only contains child selectors.
func (idx Index) Valid() bool {
	for i := 0; i < len(idx); i++ {
		if idx[i] < '0' || idx[i] > '7' {
			return false
		}
	}
	return true
}

func (idx Index) String() string {
	if idx == Root {
		return "root"
	}
	return string(idx)
}
