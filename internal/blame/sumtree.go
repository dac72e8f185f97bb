package blame

import "github.com/dshills/blamekit/internal/engine/buffer"

// maxNodeWidth is the maximum children per internal node and hunks per
// leaf.
const maxNodeWidth = 8

// hunkSummary is the union-bounding anchor span of a subtree: the minimal
// start and maximal end among all hunks below. Anchors are only ordered
// relative to a buffer, so summaries are combined through the buffer
// context, never on their own.
type hunkSummary struct {
	start buffer.Anchor
	end   buffer.Anchor
}

// node is one node of the hunk aggregation tree. Leaves (height 0) hold
// hunks; internal nodes hold children. The tree is built bottom-up from
// hunks in ascending row order and never mutated afterward.
type node struct {
	height   uint8
	summary  hunkSummary
	children []*node
	hunks    []AnchorHunk
}

// extend widens s to cover other, ordering anchors against buf.
func (s *hunkSummary) extend(other hunkSummary, buf *buffer.Buffer) {
	if !s.start.IsValid() || buf.CompareAnchors(other.start, s.start) < 0 {
		s.start = other.start
	}
	if !s.end.IsValid() || buf.CompareAnchors(other.end, s.end) > 0 {
		s.end = other.end
	}
}

// newLeaf creates a leaf over hunks and computes its summary.
func newLeaf(hunks []AnchorHunk, buf *buffer.Buffer) *node {
	n := &node{hunks: hunks}
	for _, h := range hunks {
		n.summary.extend(hunkSummary{start: h.Start, end: h.End}, buf)
	}
	return n
}

// newInternal creates an internal node over children and computes its
// summary.
func newInternal(children []*node, buf *buffer.Buffer) *node {
	n := &node{
		height:   children[0].height + 1,
		children: children,
	}
	for _, c := range children {
		n.summary.extend(c.summary, buf)
	}
	return n
}

// buildTree builds a balanced aggregation tree from hunks already in
// ascending row order. Returns nil for no hunks.
func buildTree(hunks []AnchorHunk, buf *buffer.Buffer) *node {
	if len(hunks) == 0 {
		return nil
	}

	var level []*node
	for i := 0; i < len(hunks); i += maxNodeWidth {
		end := min(i+maxNodeWidth, len(hunks))
		level = append(level, newLeaf(hunks[i:end:end], buf))
	}

	for len(level) > 1 {
		var parents []*node
		for i := 0; i < len(level); i += maxNodeWidth {
			end := min(i+maxNodeWidth, len(level))
			parents = append(parents, newInternal(level[i:end:end], buf))
		}
		level = parents
	}

	return level[0]
}

// count returns the number of hunks in the subtree.
func (n *node) count() int {
	if n == nil {
		return 0
	}
	if n.height == 0 {
		return len(n.hunks)
	}
	total := 0
	for _, c := range n.children {
		total += c.count()
	}
	return total
}

// anchors appends every boundary anchor in the subtree to out.
func (n *node) anchors(out []buffer.Anchor) []buffer.Anchor {
	if n == nil {
		return out
	}
	if n.height == 0 {
		for _, h := range n.hunks {
			out = append(out, h.Start, h.End)
		}
		return out
	}
	for _, c := range n.children {
		out = c.anchors(out)
	}
	return out
}

// collect appends, in tree order, every hunk whose anchor span may
// intersect [qStart, qEnd]. Subtrees provably entirely before qStart or
// entirely after qEnd are pruned via their summaries.
func (n *node) collect(buf *buffer.Buffer, qStart, qEnd buffer.Anchor, out *[]AnchorHunk) {
	if n == nil {
		return
	}
	if buf.CompareAnchors(n.summary.end, qStart) < 0 ||
		buf.CompareAnchors(n.summary.start, qEnd) > 0 {
		return
	}

	if n.height == 0 {
		for _, h := range n.hunks {
			if buf.CompareAnchors(h.End, qStart) < 0 ||
				buf.CompareAnchors(h.Start, qEnd) > 0 {
				continue
			}
			*out = append(*out, h)
		}
		return
	}

	for _, c := range n.children {
		c.collect(buf, qStart, qEnd, out)
	}
}
