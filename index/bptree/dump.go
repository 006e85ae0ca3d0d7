package bptree

import (
	"bufio"
	"fmt"
	"io"
)

// Dump writes the tree level by level, root first:
//
//	Level 0:
//	  [node 4] INTERNAL keys=[10 20]
//	Level 1:
//	  [node 0] LEAF keys=[5 6 7] handles=[1 1 1]
//	  ...
func (t *Tree[V]) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) { fmt.Fprintf(bw, format, args...) }

	p("B+ tree: capacity=%d height=%d nodes=%d keys=%d\n", t.capacity, t.height, t.numNodes, t.numKeys)
	if t.root == nilNode {
		p("  (empty tree)\n")
		return bw.Flush()
	}

	queue := []nodeID{t.root}
	for level := 0; len(queue) > 0; level++ {
		p("Level %d:\n", level)
		var next []nodeID
		for _, id := range queue {
			n := t.node(id)
			switch n.kind {
			case internalNode:
				p("  [node %d] INTERNAL keys=%v\n", id, n.keys)
				next = append(next, n.children...)
			case leafNode:
				counts := make([]int, len(n.values))
				for i, vs := range n.values {
					counts[i] = len(vs)
				}
				p("  [node %d] LEAF keys=%v handles=%v\n", id, n.keys, counts)
			}
		}
		queue = next
	}
	return bw.Flush()
}

// ExportDOT writes the tree as a Graphviz digraph. Leaves are joined by
// dashed edges along the leaf chain. Render with `dot -Tpng`.
func (t *Tree[V]) ExportDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "digraph BPlusTree {")
	// Layout and Global Styling
	fmt.Fprintln(bw, "  graph [ranksep=0.8, nodesep=0.5, bgcolor=\"#ffffff\", rankdir=TB];")
	fmt.Fprintln(bw, "  node [shape=none, fontname=\"Helvetica\", fontsize=10];")
	fmt.Fprintln(bw, "  edge [arrowsize=0.8, color=\"#444444\"];")

	if t.root == nilNode {
		fmt.Fprintln(bw, "}")
		return bw.Flush()
	}

	var leaves []nodeID
	var exportRec func(id nodeID)
	exportRec = func(id nodeID) {
		n := t.node(id)
		fill := 100 * float64(len(n.keys)) / float64(t.capacity)

		if n.kind == leafNode {
			// LEAF NODE: Green Header
			label := fmt.Sprintf(`<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">
				<TR><TD BGCOLOR="#D5E8D4"><B>NODE %d (LEAF)</B><BR/><FONT POINT-SIZE="8">Fill: %.1f%%</FONT></TD></TR>
				<TR><TD BGCOLOR="#F5F5F5" ALIGN="LEFT">`, id, fill)
			for i, k := range n.keys {
				label += fmt.Sprintf("<B>%d</B> <FONT COLOR='#666666'>[x%d]</FONT><BR/>", k, len(n.values[i]))
			}
			label += `</TD></TR></TABLE>>`
			fmt.Fprintf(bw, "  node%d [label=%s];\n", id, label)
			leaves = append(leaves, id)
			return
		}

		// INTERNAL NODE: Blue Header
		label := fmt.Sprintf(`<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">
				<TR><TD COLSPAN="%d" BGCOLOR="#DAE8FC"><B>NODE %d (INTERNAL)</B><BR/><FONT POINT-SIZE="8">Fill: %.1f%%</FONT></TD></TR><TR>`,
			len(n.keys)*2+1, id, fill)
		for i, k := range n.keys {
			label += fmt.Sprintf(`<TD PORT="f%d" BGCOLOR="#E1F5FE">P:%d</TD><TD BGCOLOR="#FFFFFF"><B>%d</B></TD>`, i, n.children[i], k)
		}
		last := len(n.keys)
		label += fmt.Sprintf(`<TD PORT="f%d" BGCOLOR="#E1F5FE">P:%d</TD></TR></TABLE>>`, last, n.children[last])
		fmt.Fprintf(bw, "  node%d [label=%s];\n", id, label)

		for i, c := range n.children {
			exportRec(c)
			fmt.Fprintf(bw, "  node%d:f%d -> node%d;\n", id, i, c)
		}
	}
	exportRec(t.root)

	// Leaf chain, kept on one rank.
	if len(leaves) > 1 {
		fmt.Fprint(bw, "  { rank=same;")
		for _, id := range leaves {
			fmt.Fprintf(bw, " node%d;", id)
		}
		fmt.Fprintln(bw, " }")
		for i := 1; i < len(leaves); i++ {
			fmt.Fprintf(bw, "  node%d -> node%d [style=dashed, color=\"#2E7D32\", constraint=false];\n", leaves[i-1], leaves[i])
		}
	}

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
