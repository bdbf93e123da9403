package cssdup

// dedupe walks nodes from last to first. Each statement removes earlier
// equivalent statements, so the last textual occurrence always survives.
func dedupe(nodes []*node) {
	for i := len(nodes) - 1; i >= 0; i-- {
		last := nodes[i]
		if last.removed {
			continue
		}
		dedupe(last.children)
		switch last.kind {
		case kindRule:
			dedupeRule(last, nodes[:i])
		case kindAtRule, kindDecl:
			dedupeNode(last, nodes[:i])
		}
	}
}

// dedupeRule strips from every earlier rule with the same selector the
// declarations that last repeats, dropping rules left with no children.
// Comments count as children.
func dedupeRule(last *node, earlier []*node) {
	for i := len(earlier) - 1; i >= 0; i-- {
		n := earlier[i]
		if n.removed || n.kind != kindRule || n.name != last.name {
			continue
		}
		for _, child := range last.children {
			if !child.removed && child.kind == kindDecl {
				dedupeNode(child, n.children)
			}
		}
		if n.empty() {
			n.removed = true
		}
	}
}

func dedupeNode(last *node, earlier []*node) {
	for i := len(earlier) - 1; i >= 0; i-- {
		n := earlier[i]
		if n != last && !n.removed && equal(n, last) {
			n.removed = true
		}
	}
}

// empty reports whether nothing remains in the node's block.
func (n *node) empty() bool {
	for _, c := range n.children {
		if !c.removed {
			return false
		}
	}
	return true
}

func (n *node) live() []*node {
	out := make([]*node, 0, len(n.children))
	for _, c := range n.children {
		if !c.removed {
			out = append(out, c)
		}
	}
	return out
}

func equal(a, b *node) bool {
	if a.kind != b.kind || a.important != b.important || a.hasBlock != b.hasBlock {
		return false
	}
	if a.name != b.name || a.params != b.params {
		return false
	}

	ac, bc := a.live(), b.live()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !equal(ac[i], bc[i]) {
			return false
		}
	}
	return true
}
