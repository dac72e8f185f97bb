package buffer

// Bias determines which side of an edit an anchor sticks to when text is
// inserted exactly at its position.
type Bias uint8

const (
	// BiasLeft keeps the anchor before text inserted at its position.
	BiasLeft Bias = iota

	// BiasRight moves the anchor past text inserted at its position.
	BiasRight
)

// String returns a human-readable bias name.
func (bi Bias) String() string {
	switch bi {
	case BiasLeft:
		return "left"
	case BiasRight:
		return "right"
	default:
		return "unknown"
	}
}

// Anchor is an opaque, persistent reference to a position in a Buffer.
// An anchor carries no absolute position; it must be resolved or compared
// through the buffer it was created on. The zero Anchor is invalid.
type Anchor struct {
	id uint64
}

// IsValid returns true if the anchor was created by a buffer.
func (a Anchor) IsValid() bool {
	return a.id != 0
}

// anchorState is the buffer-side record for a live anchor.
type anchorState struct {
	offset int
	bias   Bias
}

// AnchorBeforePoint creates a left-biased anchor at the given point.
// The anchor stays before any text later inserted at its position.
func (b *Buffer) AnchorBeforePoint(p Point) Anchor {
	return b.newAnchor(p, BiasLeft)
}

// AnchorAfterPoint creates a right-biased anchor at the given point.
// The anchor moves past any text later inserted at its position.
func (b *Buffer) AnchorAfterPoint(p Point) Anchor {
	return b.newAnchor(p, BiasRight)
}

func (b *Buffer) newAnchor(p Point, bias Bias) Anchor {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextAnchorID++
	id := b.nextAnchorID
	b.anchors[id] = anchorState{offset: b.pointToOffsetLocked(p), bias: bias}
	return Anchor{id: id}
}

// ReleaseAnchors drops anchors from the buffer's table. Released and
// invalid anchors resolve to the start of the buffer afterward.
func (b *Buffer) ReleaseAnchors(anchors []Anchor) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, a := range anchors {
		delete(b.anchors, a.id)
	}
}

// ResolvePoints resolves many anchors to line/column points in one call.
// The result is index-aligned with the input. Batching matters: resolution
// takes the buffer lock once regardless of how many anchors are passed.
func (b *Buffer) ResolvePoints(anchors []Anchor) []Point {
	b.mu.RLock()
	defer b.mu.RUnlock()

	points := make([]Point, len(anchors))
	for i, a := range anchors {
		st, ok := b.anchors[a.id]
		if !ok {
			points[i] = Point{}
			continue
		}
		points[i] = b.offsetToPointLocked(st.offset)
	}
	return points
}

// CompareAnchors orders two anchors against the buffer's current content.
// Returns -1, 0, or 1. Anchors at the same offset order left-bias first.
func (b *Buffer) CompareAnchors(x, y Anchor) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sx := b.anchors[x.id]
	sy := b.anchors[y.id]

	switch {
	case sx.offset < sy.offset:
		return -1
	case sx.offset > sy.offset:
		return 1
	case sx.bias < sy.bias:
		return -1
	case sx.bias > sy.bias:
		return 1
	default:
		return 0
	}
}

// shiftAnchorsLocked adjusts every live anchor for an edit that replaced
// [start, end) with newLen bytes.
func (b *Buffer) shiftAnchorsLocked(start, end, newLen int) {
	delta := newLen - (end - start)

	for id, st := range b.anchors {
		switch {
		case st.offset < start:
			// Before the edit, untouched.
			continue
		case st.offset == start:
			// Insertion at the anchor: right bias follows the new text.
			if start == end && st.bias == BiasRight {
				st.offset += newLen
				b.anchors[id] = st
			}
		case st.offset >= end:
			st.offset += delta
			b.anchors[id] = st
		default:
			// Inside the replaced span: collapse to its start.
			st.offset = start
			b.anchors[id] = st
		}
	}
}
