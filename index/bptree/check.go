package bptree

import (
	"math"

	"github.com/cockroachdb/errors"
)

// Check verifies the structural invariants of the tree:
//
//   - all leaves sit at the same depth and that depth matches Height
//   - every node holds at most capacity keys, every non-root node at least
//     the minimum for its kind
//   - keys are strictly ascending inside a node and along the leaf chain
//   - an internal separator equals the smallest key under its right child
//   - parent links match child lists and every level's prev/next chain
//     matches the left-to-right order of that level
//   - NodeCount and Len match the nodes and keys reachable from the root
//
// A violation is a bug in the tree, reported as an assertion failure.
func (t *Tree[V]) Check() error {
	if t.root == nilNode {
		if t.numNodes != 0 || t.height != 0 || t.numKeys != 0 {
			return errors.AssertionFailedf("empty tree reports %d nodes, height %d, %d keys",
				t.numNodes, t.height, t.numKeys)
		}
		return nil
	}
	if p := t.node(t.root).parent; p != nilNode {
		return errors.AssertionFailedf("root %d has parent %d", t.root, p)
	}

	c := checker[V]{t: t, leafDepth: -1}
	if _, err := c.walk(t.root, 0, math.MinInt64, 0, false); err != nil {
		return err
	}
	if c.leafDepth+1 != t.height {
		return errors.AssertionFailedf("leaves at depth %d but height is %d", c.leafDepth, t.height)
	}
	if c.nodes != t.numNodes {
		return errors.AssertionFailedf("reachable nodes %d, NodeCount %d", c.nodes, t.numNodes)
	}
	if c.keys != t.numKeys {
		return errors.AssertionFailedf("reachable keys %d, Len %d", c.keys, t.numKeys)
	}
	for depth, level := range c.levels {
		for i, id := range level {
			n := t.node(id)
			wantPrev, wantNext := nilNode, nilNode
			if i > 0 {
				wantPrev = level[i-1]
			}
			if i < len(level)-1 {
				wantNext = level[i+1]
			}
			if n.prev != wantPrev || n.next != wantNext {
				return errors.AssertionFailedf("level %d node %d linked %d<->%d, want %d<->%d",
					depth, id, n.prev, n.next, wantPrev, wantNext)
			}
		}
	}
	return nil
}

type checker[V any] struct {
	t         *Tree[V]
	leafDepth int
	nodes     int
	keys      int
	levels    [][]nodeID
}

// walk checks the subtree at id, whose keys must lie in [lo, hi), and returns
// its smallest key. A subtree on the rightmost spine has no upper bound.
func (c *checker[V]) walk(id nodeID, depth int, lo, hi int64, bounded bool) (int64, error) {
	t := c.t
	n := t.node(id)
	c.nodes++
	if depth == len(c.levels) {
		c.levels = append(c.levels, nil)
	}
	c.levels[depth] = append(c.levels[depth], id)

	if len(n.keys) > t.capacity {
		return 0, errors.AssertionFailedf("node %d holds %d keys, capacity %d", id, len(n.keys), t.capacity)
	}
	for i := 1; i < len(n.keys); i++ {
		if n.keys[i-1] >= n.keys[i] {
			return 0, errors.AssertionFailedf("node %d keys not ascending: %v", id, n.keys)
		}
	}
	for _, k := range n.keys {
		if k < lo || (bounded && k >= hi) {
			return 0, errors.AssertionFailedf("node %d key %d outside [%d, %d)", id, k, lo, hi)
		}
	}

	switch n.kind {
	case leafNode:
		if c.leafDepth == -1 {
			c.leafDepth = depth
		} else if c.leafDepth != depth {
			return 0, errors.AssertionFailedf("leaf %d at depth %d, other leaves at %d", id, depth, c.leafDepth)
		}
		if id != t.root && len(n.keys) < t.minLeafKeys {
			return 0, errors.AssertionFailedf("leaf %d holds %d keys, minimum %d", id, len(n.keys), t.minLeafKeys)
		}
		if len(n.keys) == 0 {
			return 0, errors.AssertionFailedf("leaf %d is empty", id)
		}
		if len(n.values) != len(n.keys) {
			return 0, errors.AssertionFailedf("leaf %d has %d keys but %d handle lists", id, len(n.keys), len(n.values))
		}
		for i, vs := range n.values {
			if len(vs) == 0 {
				return 0, errors.AssertionFailedf("leaf %d key %d has no handles", id, n.keys[i])
			}
		}
		c.keys += len(n.keys)
		return n.keys[0], nil

	case internalNode:
		if len(n.children) != len(n.keys)+1 {
			return 0, errors.AssertionFailedf("internal %d has %d keys but %d children", id, len(n.keys), len(n.children))
		}
		if id == t.root && len(n.keys) == 0 {
			return 0, errors.AssertionFailedf("internal root %d has no keys", id)
		}
		if id != t.root && len(n.keys) < t.minNonLeafKeys {
			return 0, errors.AssertionFailedf("internal %d holds %d keys, minimum %d", id, len(n.keys), t.minNonLeafKeys)
		}
		var smallest int64
		for i, child := range n.children {
			if p := t.node(child).parent; p != id {
				return 0, errors.AssertionFailedf("child %d of %d points at parent %d", child, id, p)
			}
			clo, chi, cb := lo, hi, bounded
			if i > 0 {
				clo = n.keys[i-1]
			}
			if i < len(n.keys) {
				chi, cb = n.keys[i], true
			}
			m, err := c.walk(child, depth+1, clo, chi, cb)
			if err != nil {
				return 0, err
			}
			if i == 0 {
				smallest = m
			} else if m != n.keys[i-1] {
				return 0, errors.AssertionFailedf("internal %d separator %d but child %d starts at %d",
					id, n.keys[i-1], child, m)
			}
		}
		return smallest, nil
	}
	return 0, errors.AssertionFailedf("node %d reachable but %s", id, n.kind)
}
