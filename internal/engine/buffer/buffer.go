package buffer

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// Errors returned by buffer operations.
var (
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrRangeInvalid     = errors.New("invalid range")
)

// Buffer is an editable text store with a line index and an anchor table.
// All methods are thread-safe.
type Buffer struct {
	mu         sync.RWMutex
	text       string
	lineStarts []int // byte offset of each line start; lineStarts[0] == 0
	revisionID RevisionID

	anchors      map[uint64]anchorState
	nextAnchorID uint64
}

// NewBuffer creates a new empty buffer.
func NewBuffer() *Buffer {
	b := &Buffer{
		revisionID: NewRevisionID(),
		anchors:    make(map[uint64]anchorState),
	}
	b.lineStarts = indexLines("")
	return b
}

// NewBufferFromString creates a buffer with initial content.
// Line endings are normalized to LF.
func NewBufferFromString(s string) *Buffer {
	b := NewBuffer()
	s = normalizeLineEndings(s)
	b.text = s
	b.lineStarts = indexLines(s)
	return b
}

// normalizeLineEndings converts CRLF and CR line endings to LF.
func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// indexLines returns the byte offset of every line start in s.
func indexLines(s string) []int {
	starts := make([]int, 1, strings.Count(s, "\n")+1)
	starts[0] = 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// Read Operations

// Text returns the full buffer content as a string.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// Len returns the total byte length of the buffer.
func (b *Buffer) Len() ByteOffset {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.text)
}

// LineCount returns the number of lines. An empty buffer has one line.
func (b *Buffer) LineCount() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return uint32(len(b.lineStarts))
}

// LineText returns the text of a specific line (without newline).
func (b *Buffer) LineText(line uint32) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if int(line) >= len(b.lineStarts) {
		return ""
	}
	start := b.lineStarts[line]
	end := b.lineEndLocked(line)
	return b.text[start:end]
}

// lineEndLocked returns the offset of the end of a line, before its newline.
func (b *Buffer) lineEndLocked(line uint32) int {
	if int(line)+1 < len(b.lineStarts) {
		return b.lineStarts[line+1] - 1
	}
	return len(b.text)
}

// Coordinate Conversion

// OffsetToPoint converts a byte offset to line/column.
// Offsets outside the buffer are clamped.
func (b *Buffer) OffsetToPoint(offset ByteOffset) Point {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.offsetToPointLocked(offset)
}

func (b *Buffer) offsetToPointLocked(offset int) Point {
	if offset < 0 {
		offset = 0
	}
	if offset > len(b.text) {
		offset = len(b.text)
	}

	// Find the last line start <= offset.
	line := sort.Search(len(b.lineStarts), func(i int) bool {
		return b.lineStarts[i] > offset
	}) - 1

	return Point{Line: uint32(line), Column: uint32(offset - b.lineStarts[line])}
}

// PointToOffset converts line/column to a byte offset.
// Points beyond the buffer are clamped.
func (b *Buffer) PointToOffset(point Point) ByteOffset {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pointToOffsetLocked(point)
}

func (b *Buffer) pointToOffsetLocked(point Point) int {
	if int(point.Line) >= len(b.lineStarts) {
		return len(b.text)
	}
	offset := b.lineStarts[point.Line] + int(point.Column)

	// Clamp within the line (column past the newline lands on it).
	limit := len(b.text)
	if int(point.Line)+1 < len(b.lineStarts) {
		limit = b.lineStarts[point.Line+1] - 1
	}
	if offset > limit {
		offset = limit
	}
	return offset
}

// LineStartOffset returns the byte offset of the start of a line.
func (b *Buffer) LineStartOffset(line uint32) ByteOffset {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if int(line) >= len(b.lineStarts) {
		return len(b.text)
	}
	return b.lineStarts[line]
}

// Write Operations

// Insert inserts text at the given offset.
// Returns the end position of the inserted text.
func (b *Buffer) Insert(offset ByteOffset, text string) (ByteOffset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset < 0 || offset > len(b.text) {
		return 0, ErrOffsetOutOfRange
	}

	text = normalizeLineEndings(text)
	b.applyLocked(offset, offset, text)
	return offset + len(text), nil
}

// Delete removes text in the given range.
func (b *Buffer) Delete(start, end ByteOffset) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if start < 0 || start > end || end > len(b.text) {
		return ErrRangeInvalid
	}

	b.applyLocked(start, end, "")
	return nil
}

// Replace replaces text in the given range with new text.
// Returns the end position of the replacement text.
func (b *Buffer) Replace(start, end ByteOffset, text string) (ByteOffset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if start < 0 || start > end || end > len(b.text) {
		return 0, ErrRangeInvalid
	}

	text = normalizeLineEndings(text)
	b.applyLocked(start, end, text)
	return start + len(text), nil
}

// applyLocked rewrites [start, end) with text, reindexes lines, shifts
// anchors, and bumps the revision.
func (b *Buffer) applyLocked(start, end int, text string) {
	b.text = b.text[:start] + text + b.text[end:]
	b.lineStarts = indexLines(b.text)
	b.shiftAnchorsLocked(start, end, len(text))
	b.revisionID = NewRevisionID()
}

// Buffer State

// RevisionID returns the current revision ID.
func (b *Buffer) RevisionID() RevisionID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.revisionID
}

// IsEmpty returns true if the buffer is empty.
func (b *Buffer) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.text) == 0
}

// Snapshot returns a read-only snapshot of the current buffer state.
// Safe for concurrent access from other goroutines.
func (b *Buffer) Snapshot() *Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return &Snapshot{
		text:       b.text, // strings are immutable, safe to share
		lineStarts: b.lineStarts,
		revisionID: b.revisionID,
	}
}
