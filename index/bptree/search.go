package bptree

import (
	"iter"
	"slices"
)

// --- RANGE (The Iterator) ---

// Iterator walks the leaf chain from minKey to maxKey, one handle per step.
// It must not be used after the tree is modified.
type Iterator[V any] struct {
	t        *Tree[V]
	leaf     nodeID
	ki, vi   int
	max      int64
	key      int64
	val      V
	finished bool
}

// Range positions an iterator before the first handle with key >= minKey.
// The descent happens here; an empty tree or minKey > maxKey yields an
// exhausted iterator.
func (t *Tree[V]) Range(minKey, maxKey int64) *Iterator[V] {
	t.nodesAccessed = 0
	it := &Iterator[V]{t: t, leaf: nilNode, max: maxKey}
	if minKey > maxKey || t.root == nilNode {
		it.finished = true
		return it
	}
	it.leaf = t.findLeaf(minKey)
	it.ki, _ = slices.BinarySearch(t.node(it.leaf).keys, minKey)
	return it
}

func (it *Iterator[V]) Next() bool {
	for !it.finished {
		n := it.t.node(it.leaf)
		if it.ki >= len(n.keys) {
			// Follow the leaf chain
			if n.next == nilNode {
				it.finished = true
				return false
			}
			it.leaf = n.next
			it.ki, it.vi = 0, 0
			it.t.nodesAccessed++
			continue
		}
		k := n.keys[it.ki]
		if k > it.max {
			it.finished = true
			return false
		}
		if vs := n.values[it.ki]; it.vi < len(vs) {
			it.key, it.val = k, vs[it.vi]
			it.vi++
			return true
		}
		it.ki++
		it.vi = 0
	}
	return false
}

func (it *Iterator[V]) Key() int64 { return it.key }
func (it *Iterator[V]) Value() V   { return it.val }

// Search returns the handles of every key in [minKey, maxKey] in ascending
// key order, each key's handles in insertion order. The sequence is lazy:
// the descent runs when it is ranged over, and a second range loop starts a
// fresh search.
func (t *Tree[V]) Search(minKey, maxKey int64) iter.Seq[V] {
	return func(yield func(V) bool) {
		it := t.Range(minKey, maxKey)
		for it.Next() {
			if !yield(it.Value()) {
				return
			}
		}
	}
}

// All yields every key with its handle list in ascending order by walking
// the leaf chain. The lists must not be modified.
func (t *Tree[V]) All() iter.Seq2[int64, []V] {
	return func(yield func(int64, []V) bool) {
		if t.root == nilNode {
			return
		}
		id := t.root
		for t.node(id).kind == internalNode {
			id = t.node(id).children[0]
		}
		for ; id != nilNode; id = t.node(id).next {
			n := t.node(id)
			for i, k := range n.keys {
				if !yield(k, n.values[i]) {
					return
				}
			}
		}
	}
}
