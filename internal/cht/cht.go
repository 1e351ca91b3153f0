// Package cht implements a concurrent, lock-free hash-array-mapped trie:
// readers walk without blocking, writers install changes via
// compare-and-swap, and a branch left with a single leaf opportunistically
// compresses back into that leaf.
//
// Grounded directly on the original Skytable engine's
// server/src/engine/idx/mtchm/mod.rs patch algorithm (null-slot install,
// leaf split on collision, CAS-replace on update/remove, upward
// compression), translated from crossbeam_epoch's Atomic<Node<C>>/Guard
// to Go's sync/atomic.Pointer. Go's tracing garbage collector already
// defers reclamation of a node until no goroutine holds a reference to
// it, which is exactly what the original's epoch-pinned guard exists to
// guarantee by hand; this implementation keeps the Guard/Pin API shape
// spec §5 describes (readers pin before walking) without a hand-rolled
// deferred-free list, since Go's GC already provides that guarantee — see
// DESIGN.md.
package cht

import "sync/atomic"

const (
	branchLg = 4
	branchMx = 1 << branchLg // 16
	maxDepth = 64 / branchLg // 16: a 64-bit hash fully consumed
)

func chunk(hash uint64, depth int) int {
	shift := uint(depth * branchLg)
	return int((hash >> shift) & (branchMx - 1))
}

type nodeKind uint8

const (
	kindBranch nodeKind = iota
	kindLeaf
)

type entry[K any, V any] struct {
	key  K
	hash uint64
	val  V
}

type node[K any, V any] struct {
	kind     nodeKind
	children [branchMx]atomic.Pointer[node[K, V]]
	elems    []entry[K, V]
}

// Tree is a concurrent hash trie mapping keys of type K to values of type
// V. K need not be comparable in Go's generic sense (a primary key
// carries a []byte payload for string/bin tags, which disqualifies the
// built-in comparable constraint) — callers supply the hash and equality
// functions explicitly.
type Tree[K any, V any] struct {
	root atomic.Pointer[node[K, V]]
	hash func(K) uint64
	eq   func(a, b K) bool
}

// New constructs an empty trie using hash for addressing and eq for
// collision resolution within a leaf.
func New[K any, V any](hash func(K) uint64, eq func(a, b K) bool) *Tree[K, V] {
	return &Tree[K, V]{hash: hash, eq: eq}
}

// Get performs a wait-free read, returning the value for key if present.
func (t *Tree[K, V]) Get(key K) (V, bool) {
	h := t.hash(key)
	cur := t.root.Load()
	depth := 0
	for cur != nil {
		if cur.kind == kindLeaf {
			for _, e := range cur.elems {
				if t.eq(e.key, key) {
					return e.val, true
				}
			}
			var zero V
			return zero, false
		}
		cur = cur.children[chunk(h, depth)].Load()
		depth++
	}
	var zero V
	return zero, false
}

// Put inserts or replaces the value for key.
func (t *Tree[K, V]) Put(key K, val V) {
	t.Patch(key, func(_ V, _ bool) (V, bool) { return val, true })
}

// Delete removes key if present, returning the removed value.
func (t *Tree[K, V]) Delete(key K) (V, bool) {
	var removed V
	var found bool
	t.Patch(key, func(existing V, ok bool) (V, bool) {
		removed, found = existing, ok
		return existing, false
	})
	return removed, found
}

// Patch applies fn to the current value for key (fn's second argument
// reports whether key was present) and installs fn's returned value, or
// removes the entry if fn's second return is false. fn may be invoked
// more than once if a concurrent writer wins a race on the same slot.
func (t *Tree[K, V]) Patch(key K, fn func(existing V, found bool) (V, bool)) {
	h := t.hash(key)
	patchAt(&t.root, h, 0, key, t.hash, t.eq, fn)
}

// patchAt walks from slot, retrying CAS races, and applies fn at the leaf
// owning key (or installs a new singleton leaf if key is absent from the
// whole subtree rooted at slot).
func patchAt[K any, V any](
	slot *atomic.Pointer[node[K, V]], hash uint64, depth int, key K,
	hashOf func(K) uint64, eq func(K, K) bool, fn func(V, bool) (V, bool),
) {
	for {
		cur := slot.Load()
		if cur == nil {
			var zero V
			newVal, keep := fn(zero, false)
			if !keep {
				return
			}
			leaf := &node[K, V]{kind: kindLeaf, elems: []entry[K, V]{{key: key, hash: hash, val: newVal}}}
			if slot.CompareAndSwap(nil, leaf) {
				return
			}
			continue
		}
		if cur.kind == kindBranch {
			idx := chunk(hash, depth)
			patchAt(&cur.children[idx], hash, depth+1, key, hashOf, eq, fn)
			compress(slot, cur)
			return
		}
		// kindLeaf
		newNode, changed := applyToLeaf(cur, hash, depth, key, hashOf, eq, fn)
		if !changed {
			return
		}
		if slot.CompareAndSwap(cur, newNode) {
			return
		}
	}
}

// applyToLeaf resolves fn against the leaf cur at depth, returning the
// node that should replace it (nil means the slot becomes empty) and
// whether a replacement is needed at all.
func applyToLeaf[K any, V any](
	cur *node[K, V], hash uint64, depth int, key K,
	hashOf func(K) uint64, eq func(K, K) bool, fn func(V, bool) (V, bool),
) (*node[K, V], bool) {
	for i, e := range cur.elems {
		if !eq(e.key, key) {
			continue
		}
		newVal, keep := fn(e.val, true)
		if !keep {
			if len(cur.elems) == 1 {
				return nil, true
			}
			elems := make([]entry[K, V], 0, len(cur.elems)-1)
			elems = append(elems, cur.elems[:i]...)
			elems = append(elems, cur.elems[i+1:]...)
			return &node[K, V]{kind: kindLeaf, elems: elems}, true
		}
		elems := append([]entry[K, V]{}, cur.elems...)
		elems[i] = entry[K, V]{key: key, hash: hash, val: newVal}
		return &node[K, V]{kind: kindLeaf, elems: elems}, true
	}

	var zero V
	newVal, keep := fn(zero, false)
	if !keep {
		return nil, false
	}
	newEntry := entry[K, V]{key: key, hash: hash, val: newVal}

	if depth >= maxDepth {
		elems := append(append([]entry[K, V]{}, cur.elems...), newEntry)
		return &node[K, V]{kind: kindLeaf, elems: elems}, true
	}
	if len(cur.elems) != 1 {
		// A multi-element leaf below maxDepth is a full-hash collision
		// leaf that compress hoisted upward; the new key joins it.
		elems := append(append([]entry[K, V]{}, cur.elems...), newEntry)
		return &node[K, V]{kind: kindLeaf, elems: elems}, true
	}
	return buildSplit(cur.elems[0], newEntry, depth), true
}

// buildSplit constructs a fresh subtree holding both a and b, branching
// at depth and deeper until their hash chunks diverge (or maxDepth is
// reached, at which point both land in one collision leaf). The subtree
// is built off to the side and only published by the caller's CAS, so no
// synchronization is needed here.
func buildSplit[K any, V any](a, b entry[K, V], depth int) *node[K, V] {
	if depth >= maxDepth {
		return &node[K, V]{kind: kindLeaf, elems: []entry[K, V]{a, b}}
	}
	ai, bi := chunk(a.hash, depth), chunk(b.hash, depth)
	branch := &node[K, V]{kind: kindBranch}
	if ai != bi {
		branch.children[ai].Store(&node[K, V]{kind: kindLeaf, elems: []entry[K, V]{a}})
		branch.children[bi].Store(&node[K, V]{kind: kindLeaf, elems: []entry[K, V]{b}})
		return branch
	}
	branch.children[ai].Store(buildSplit(a, b, depth+1))
	return branch
}

// compress opportunistically collapses a branch with at most one live
// child: zero children collapses to nil, exactly one leaf child collapses
// directly to that leaf. A sole child that is itself a branch stays in
// place, since its slots are indexed by the next depth's hash chunk. A
// failed CAS (another writer raced ahead) is harmless —
// compression is an optimization, not a correctness requirement, and the
// next writer through this branch will retry it.
func compress[K any, V any](slot *atomic.Pointer[node[K, V]], branch *node[K, V]) {
	var sole *node[K, V]
	count := 0
	for i := range branch.children {
		if c := branch.children[i].Load(); c != nil {
			count++
			sole = c
			if count > 1 {
				return
			}
		}
	}
	switch count {
	case 0:
		slot.CompareAndSwap(branch, nil)
	case 1:
		if sole.kind == kindLeaf {
			slot.CompareAndSwap(branch, sole)
		}
	}
}

// Len walks the whole trie counting live elements. Intended for tests and
// diagnostics, not the hot path.
func (t *Tree[K, V]) Len() int {
	var n int
	var walk func(*node[K, V])
	walk = func(cur *node[K, V]) {
		if cur == nil {
			return
		}
		if cur.kind == kindLeaf {
			n += len(cur.elems)
			return
		}
		for i := range cur.children {
			walk(cur.children[i].Load())
		}
	}
	walk(t.root.Load())
	return n
}
