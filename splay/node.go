// Package splay implements an intrusive, allocation-free, top-down splay
// tree. "Intrusive" means a value stores its own tree-membership state (a
// Node) rather than the tree allocating wrapper nodes around opaque
// values: inserting and removing never allocates, which is the entire
// reason to reach for a splay tree in a size-constrained allocator in the
// first place (it is, among other things, a candidate data structure for
// indexing free cells by size without needing its own free-list-backed
// storage).
package splay

// Elem is the capability a type must provide to live in a Tree. E is
// expected to be a pointer type (or other "nilable" comparable type) so
// that its zero value can serve as the empty-subtree sentinel throughout
// this package.
type Elem[E any] interface {
	comparable

	// Node returns this element's embedded tree-membership state. A type
	// that needs to belong to more than one Tree at a time embeds Node
	// once per tree and exposes each through a distinctly-named wrapper
	// type implementing Elem for that tree.
	Node() *Node[E]

	// Less reports whether this element sorts before other. It must be
	// a strict weak ordering consistent with ==: neither a.Less(b) nor
	// b.Less(a) holding implies a and b are the same key.
	Less(other E) bool
}

// Node is the two-pointer intrusive state a type embeds to become
// splay-tree-storable. It carries no parent pointer: the top-down splay
// algorithm this package implements never needs to walk upward.
type Node[E any] struct {
	left, right E
}
