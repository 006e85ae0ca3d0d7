package bptree

import "slices"

// nodeID indexes Tree.nodes. Back references (parent, prev, next) are plain
// ids and never keep a node alive on their own.
type nodeID int32

const nilNode nodeID = -1

type nodeKind uint8

const (
	leafNode nodeKind = iota
	internalNode
	freeNode
)

func (k nodeKind) String() string {
	switch k {
	case leafNode:
		return "LEAF"
	case internalNode:
		return "INTERNAL"
	default:
		return "FREE"
	}
}

// node is either a leaf or an internal node, told apart by kind.
//
// Leaves: values[i] holds the handles of keys[i]; prev/next form the leaf
// chain in ascending key order.
//
// Internal nodes: len(children) == len(keys)+1. children[0] holds keys below
// keys[0], children[i] holds [keys[i-1], keys[i]) and keys[i] is the
// smallest key under children[i+1]. prev/next link the nodes of one level.
type node[V any] struct {
	kind   nodeKind
	keys   []int64
	parent nodeID
	prev   nodeID
	next   nodeID

	values   [][]V
	children []nodeID
}

// childIndex picks the child whose range contains key: the first i with
// key < keys[i], else the last child.
func childIndex(keys []int64, key int64) int {
	i, found := slices.BinarySearch(keys, key)
	if found {
		i++
	}
	return i
}

func (t *Tree[V]) node(id nodeID) *node[V] { return &t.nodes[id] }

// alloc returns a fresh, unlinked node. It may grow the arena, so any
// *node obtained before the call must be fetched again.
func (t *Tree[V]) alloc(kind nodeKind) nodeID {
	n := node[V]{kind: kind, parent: nilNode, prev: nilNode, next: nilNode}
	var id nodeID
	if k := len(t.free); k > 0 {
		id = t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[id] = n
	} else {
		id = nodeID(len(t.nodes))
		t.nodes = append(t.nodes, n)
	}
	t.numNodes++
	return id
}

func (t *Tree[V]) release(id nodeID) {
	t.nodes[id] = node[V]{kind: freeNode, parent: nilNode, prev: nilNode, next: nilNode}
	t.free = append(t.free, id)
	t.numNodes--
}

// unlink removes id from its level chain.
func (t *Tree[V]) unlink(id nodeID) {
	n := t.node(id)
	if n.prev != nilNode {
		t.node(n.prev).next = n.next
	}
	if n.next != nilNode {
		t.node(n.next).prev = n.prev
	}
	n.prev, n.next = nilNode, nilNode
}

// linkAfter inserts id into the level chain right after left.
func (t *Tree[V]) linkAfter(left, id nodeID) {
	l, n := t.node(left), t.node(id)
	n.prev = left
	n.next = l.next
	if l.next != nilNode {
		t.node(l.next).prev = id
	}
	l.next = id
}

// siblings returns the neighbours of id that share its parent, and the
// position of id among the parent's children.
func (t *Tree[V]) siblings(id nodeID) (left, right nodeID, pos int) {
	n := t.node(id)
	p := t.node(n.parent)
	pos = slices.Index(p.children, id)
	left, right = nilNode, nilNode
	if n.prev != nilNode && t.node(n.prev).parent == n.parent {
		left = n.prev
	}
	if n.next != nilNode && t.node(n.next).parent == n.parent {
		right = n.next
	}
	return left, right, pos
}
