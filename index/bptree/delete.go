package bptree

import "slices"

// --- DELETE ---

// Delete removes key and all of its handles. Deleting an absent key does
// nothing.
//
// An underflowing node first borrows one entry from a sibling under the same
// parent (left sibling first). If neither sibling can spare one, it is merged
// into its left sibling, or into its right sibling when it is the first
// child, and the parent loses one separator. The parent is then fixed the
// same way, up to the root. An internal root left without keys is replaced
// by its only child.
func (t *Tree[V]) Delete(key int64) {
	t.nodesAccessed = 0
	if t.root == nilNode {
		return
	}

	id := t.findLeaf(key)
	leaf := t.node(id)
	i, found := slices.BinarySearch(leaf.keys, key)
	if !found {
		return
	}
	defer t.verify()

	leaf.keys = slices.Delete(leaf.keys, i, i+1)
	leaf.values = slices.Delete(leaf.values, i, i+1)
	t.numKeys--

	if id == t.root {
		if len(leaf.keys) == 0 {
			t.release(id)
			t.root = nilNode
			t.height = 0
		}
		return
	}

	// A non-root leaf never empties here: it held at least minLeafKeys >= 2.
	if i == 0 {
		t.correctSeparator(key, leaf.keys[0])
	}
	if len(leaf.keys) < t.minLeafKeys {
		t.rebalanceLeaf(id)
	}
}

// correctSeparator replaces the ancestor separator equal to oldKey with
// newKey. Such a separator was copied from a leaf's first key at split time
// and exists at most once; the walk follows the normal descent for oldKey and
// stops at the first match or at the leaf level.
func (t *Tree[V]) correctSeparator(oldKey, newKey int64) {
	id := t.root
	for {
		n := t.node(id)
		if n.kind != internalNode {
			return
		}
		i := childIndex(n.keys, oldKey)
		if i > 0 && n.keys[i-1] == oldKey {
			n.keys[i-1] = newKey
			return
		}
		id = n.children[i]
	}
}

func (t *Tree[V]) rebalanceLeaf(id nodeID) {
	left, right, pos := t.siblings(id)
	n := t.node(id)
	pid := n.parent
	p := t.node(pid)

	// Borrow the left sibling's last entry.
	if left != nilNode {
		if l := t.node(left); len(l.keys) > t.minLeafKeys {
			last := len(l.keys) - 1
			n.keys = slices.Insert(n.keys, 0, l.keys[last])
			n.values = slices.Insert(n.values, 0, l.values[last])
			l.values[last] = nil
			l.keys = l.keys[:last]
			l.values = l.values[:last]
			p.keys[pos-1] = n.keys[0]
			return
		}
	}

	// Borrow the right sibling's first entry.
	if right != nilNode {
		if r := t.node(right); len(r.keys) > t.minLeafKeys {
			n.keys = append(n.keys, r.keys[0])
			n.values = append(n.values, r.values[0])
			r.keys = slices.Delete(r.keys, 0, 1)
			r.values = slices.Delete(r.values, 0, 1)
			p.keys[pos] = r.keys[0]
			return
		}
	}

	if left != nilNode {
		l := t.node(left)
		l.keys = append(l.keys, n.keys...)
		l.values = append(l.values, n.values...)
		t.unlink(id)
		t.release(id)
		t.removeEntry(pid, pos-1, pos)
	} else {
		r := t.node(right)
		r.keys = append(slices.Clone(n.keys), r.keys...)
		r.values = append(slices.Clone(n.values), r.values...)
		t.unlink(id)
		t.release(id)
		t.removeEntry(pid, pos, pos)
	}
	t.fixInternal(pid)
}

// removeEntry drops separator keys[ki] and child children[ci] from id.
func (t *Tree[V]) removeEntry(id nodeID, ki, ci int) {
	n := t.node(id)
	n.keys = slices.Delete(n.keys, ki, ki+1)
	n.children = slices.Delete(n.children, ci, ci+1)
}

// fixInternal restores the occupancy of internal node id after it lost a
// separator, collapsing the root when it is left with a single child.
func (t *Tree[V]) fixInternal(id nodeID) {
	n := t.node(id)
	if id == t.root {
		if len(n.keys) == 0 {
			child := n.children[0]
			t.release(id)
			t.root = child
			t.node(child).parent = nilNode
			t.height--
		}
		return
	}
	if len(n.keys) >= t.minNonLeafKeys {
		return
	}

	left, right, pos := t.siblings(id)
	pid := n.parent
	p := t.node(pid)

	// Rotate through the parent from the left sibling.
	if left != nilNode {
		if l := t.node(left); len(l.keys) > t.minNonLeafKeys {
			lastKey := l.keys[len(l.keys)-1]
			lastChild := l.children[len(l.children)-1]
			n.keys = slices.Insert(n.keys, 0, p.keys[pos-1])
			n.children = slices.Insert(n.children, 0, lastChild)
			p.keys[pos-1] = lastKey
			l.keys = l.keys[:len(l.keys)-1]
			l.children = l.children[:len(l.children)-1]
			t.node(lastChild).parent = id
			return
		}
	}

	// Rotate through the parent from the right sibling.
	if right != nilNode {
		if r := t.node(right); len(r.keys) > t.minNonLeafKeys {
			firstKey := r.keys[0]
			firstChild := r.children[0]
			n.keys = append(n.keys, p.keys[pos])
			n.children = append(n.children, firstChild)
			p.keys[pos] = firstKey
			r.keys = slices.Delete(r.keys, 0, 1)
			r.children = slices.Delete(r.children, 0, 1)
			t.node(firstChild).parent = id
			return
		}
	}

	// Merge, pulling the separator between the two nodes down.
	if left != nilNode {
		l := t.node(left)
		l.keys = append(l.keys, p.keys[pos-1])
		l.keys = append(l.keys, n.keys...)
		l.children = append(l.children, n.children...)
		for _, c := range n.children {
			t.node(c).parent = left
		}
		t.unlink(id)
		t.release(id)
		t.removeEntry(pid, pos-1, pos)
	} else {
		r := t.node(right)
		keys := append(slices.Clone(n.keys), p.keys[pos])
		r.keys = append(keys, r.keys...)
		r.children = append(slices.Clone(n.children), r.children...)
		for _, c := range n.children {
			t.node(c).parent = right
		}
		t.unlink(id)
		t.release(id)
		t.removeEntry(pid, pos, pos)
	}
	t.fixInternal(pid)
}
