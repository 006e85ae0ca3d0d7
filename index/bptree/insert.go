package bptree

import "slices"

// promotion is what a split hands to the caller frame: the separator key and
// the new right node. ok is false when nothing split.
type promotion struct {
	key   int64
	right nodeID
	ok    bool
}

// --- INSERT ---

// Insert adds v to the handles of key. A key that is already present keeps
// its place and gains one more handle at the end of its list.
func (t *Tree[V]) Insert(key int64, v V) {
	defer t.verify()

	if t.root == nilNode {
		id := t.alloc(leafNode)
		leaf := t.node(id)
		leaf.keys = append(leaf.keys, key)
		leaf.values = append(leaf.values, []V{v})
		t.root = id
		t.height = 1
		t.numKeys = 1
		return
	}

	p := t.insert(t.root, key, v)
	if !p.ok {
		return
	}

	// The root split: grow by one level.
	oldRoot := t.root
	id := t.alloc(internalNode)
	r := t.node(id)
	r.keys = []int64{p.key}
	r.children = []nodeID{oldRoot, p.right}
	t.node(oldRoot).parent = id
	t.node(p.right).parent = id
	t.root = id
	t.height++
}

func (t *Tree[V]) insert(id nodeID, key int64, v V) promotion {
	n := t.node(id)
	switch n.kind {
	case leafNode:
		i, found := slices.BinarySearch(n.keys, key)
		if found {
			n.values[i] = append(n.values[i], v)
			return promotion{}
		}
		n.keys = slices.Insert(n.keys, i, key)
		n.values = slices.Insert(n.values, i, []V{v})
		t.numKeys++
		if len(n.keys) > t.capacity {
			return t.splitLeaf(id)
		}
		return promotion{}

	case internalNode:
		i := childIndex(n.keys, key)
		p := t.insert(n.children[i], key, v)
		if !p.ok {
			return promotion{}
		}
		// The child's split may have grown the arena.
		n = t.node(id)
		n.keys = slices.Insert(n.keys, i, p.key)
		n.children = slices.Insert(n.children, i+1, p.right)
		t.node(p.right).parent = id
		if len(n.keys) > t.capacity {
			return t.splitInternal(id)
		}
		return promotion{}
	}
	panic("bptree: insert into free node")
}

// --- SPLIT ---

// splitLeaf moves keys [mid, n) into a new right leaf. The right leaf's first
// key is copied up and stays in the leaf.
func (t *Tree[V]) splitLeaf(id nodeID) promotion {
	rid := t.alloc(leafNode)
	left, right := t.node(id), t.node(rid)

	n := len(left.keys)
	mid := (n + 1) / 2
	right.keys = slices.Clone(left.keys[mid:])
	right.values = slices.Clone(left.values[mid:])
	clear(left.values[mid:])
	left.keys = left.keys[:mid]
	left.values = left.values[:mid]

	right.parent = left.parent
	t.linkAfter(id, rid)
	return promotion{key: right.keys[0], right: rid, ok: true}
}

// splitInternal moves the keys after the middle one into a new right node.
// The middle key moves up and is kept by neither half.
func (t *Tree[V]) splitInternal(id nodeID) promotion {
	rid := t.alloc(internalNode)
	left, right := t.node(id), t.node(rid)

	n := len(left.keys)
	mid := n / 2
	sep := left.keys[mid]
	right.keys = slices.Clone(left.keys[mid+1:])
	right.children = slices.Clone(left.children[mid+1:])
	left.keys = left.keys[:mid]
	left.children = left.children[:mid+1]

	right.parent = left.parent
	for _, c := range right.children {
		t.node(c).parent = rid
	}
	t.linkAfter(id, rid)
	return promotion{key: sep, right: rid, ok: true}
}
