// Package bptree implements an in-memory B+ tree secondary index.
//
// The tree maps an int64 key to an ordered list of opaque handles. All
// handles live in the leaves; internal nodes only route. Leaves are doubly
// linked in ascending key order for range scans.
//
// Nodes are kept in a single arena and refer to each other by index, so
// parent and sibling links are plain integers. A node holds at most capacity
// keys; every node but the root holds at least (capacity+1)/2 keys (leaves)
// or capacity/2 keys (internal nodes).
//
// A Tree is not safe for concurrent use.
package bptree

import (
	"github.com/cockroachdb/errors"
)

// ErrInvalidCapacity is returned by New for a capacity below 3.
var ErrInvalidCapacity = errors.New("bptree: capacity must be at least 3")

const minCapacity = 3

type Tree[V any] struct {
	nodes []node[V]
	free  []nodeID
	root  nodeID

	capacity       int
	minLeafKeys    int
	minNonLeafKeys int

	numNodes      int
	height        int
	numKeys       int
	nodesAccessed int
}

// Stats is a snapshot of the tree's shape.
type Stats struct {
	Capacity               int
	NodeCount              int
	Height                 int
	LastTraversalNodeCount int
}

// New returns an empty tree whose nodes hold at most capacity keys.
func New[V any](capacity int) (*Tree[V], error) {
	if capacity < minCapacity {
		return nil, errors.Wrapf(ErrInvalidCapacity, "got %d", capacity)
	}
	return &Tree[V]{
		root:           nilNode,
		capacity:       capacity,
		minLeafKeys:    (capacity + 1) / 2,
		minNonLeafKeys: capacity / 2,
	}, nil
}

func (t *Tree[V]) Capacity() int { return t.capacity }

// NodeCount is the number of live nodes.
func (t *Tree[V]) NodeCount() int { return t.numNodes }

// Height is the number of levels; 0 for an empty tree.
func (t *Tree[V]) Height() int { return t.height }

// Len is the number of distinct keys.
func (t *Tree[V]) Len() int { return t.numKeys }

// NodesAccessed is the number of nodes touched by the most recent Search,
// Range or Delete.
func (t *Tree[V]) NodesAccessed() int { return t.nodesAccessed }

func (t *Tree[V]) Stats() Stats {
	return Stats{
		Capacity:               t.capacity,
		NodeCount:              t.numNodes,
		Height:                 t.height,
		LastTraversalNodeCount: t.nodesAccessed,
	}
}

// RootKeys returns a copy of the root's keys, or nil for an empty tree.
func (t *Tree[V]) RootKeys() []int64 {
	if t.root == nilNode {
		return nil
	}
	return append([]int64(nil), t.node(t.root).keys...)
}

// findLeaf descends from the root to the leaf whose range holds key,
// counting every node it touches.
func (t *Tree[V]) findLeaf(key int64) nodeID {
	id := t.root
	for {
		t.nodesAccessed++
		n := t.node(id)
		switch n.kind {
		case leafNode:
			return id
		case internalNode:
			id = n.children[childIndex(n.keys, key)]
		default:
			panic(errors.AssertionFailedf("bptree: descended into %s node %d", n.kind, id))
		}
	}
}

// verify runs Check after a mutation when built with the bptdebug tag.
func (t *Tree[V]) verify() {
	if !debugChecks {
		return
	}
	if err := t.Check(); err != nil {
		panic(err)
	}
}
