package blame

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dshills/blamekit/internal/engine/buffer"
	"github.com/dshills/blamekit/internal/git"
)

// BufferBlame indexes the blame attribution of one buffer.
//
// Update rebuilds the whole index against the buffer's current content;
// queries read the immutable tree built by the last successful Update.
// Concurrent queries are safe. Callers must serialize Update calls for one
// BufferBlame; a failed Update leaves the previous index untouched.
type BufferBlame struct {
	mu       sync.RWMutex
	tree     *node
	revision buffer.RevisionID
	anchors  []buffer.Anchor

	log zerolog.Logger
}

// Option configures a BufferBlame.
type Option func(*BufferBlame)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(b *BufferBlame) {
		b.log = log
	}
}

// New creates an empty blame index.
func New(opts ...Option) *BufferBlame {
	b := &BufferBlame{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// IsEmpty returns true if no index has been built or the last build
// produced no hunks.
func (b *BufferBlame) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tree == nil
}

// Len returns the number of indexed hunks.
func (b *BufferBlame) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tree.count()
}

// Revision returns the buffer revision the index was built against.
func (b *BufferBlame) Revision() buffer.RevisionID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.revision
}

// Update rebuilds the index from a fresh blame of the buffer's current
// content. The repository is borrowed only for the duration of the call.
// On error the previously built index remains queryable.
func (b *BufferBlame) Update(ctx context.Context, repo git.Repository, path string, buf *buffer.Buffer) error {
	snap := buf.Snapshot()

	result, err := repo.BlamePath(path)
	if err != nil {
		return fmt.Errorf("preparing blame for %s: %w", path, err)
	}
	raw, err := result.BlameBuffer(ctx, []byte(snap.Text()))
	if err != nil {
		return fmt.Errorf("blaming %s: %w", path, err)
	}

	hunks, anchors := b.buildHunks(raw, buf)
	tree := buildTree(hunks, buf)

	b.mu.Lock()
	old := b.anchors
	b.tree = tree
	b.revision = snap.RevisionID()
	b.anchors = anchors
	b.mu.Unlock()

	// The superseded tree's anchors are dead weight in the buffer table.
	buf.ReleaseAnchors(old)

	b.log.Debug().Str("path", path).Int("hunks", len(hunks)).
		Uint64("revision", uint64(snap.RevisionID())).Msg("blame index rebuilt")
	return nil
}

// buildHunks converts raw attribution facts into anchor-indexed hunks.
// Uncommitted and unusable records are skipped, not errors. Signatures are
// resolved once per commit through a cache scoped to this build pass.
//
// Boundary anchors are asymmetric: the start is right-biased and the end
// left-biased. Text inserted exactly at a boundary is new and uncommitted,
// so it must join neither the hunk above nor the one below; a left-biased
// start would instead pin the hunk in place when a line is inserted
// directly above it.
func (b *BufferBlame) buildHunks(raw []git.BlameHunk, buf *buffer.Buffer) ([]AnchorHunk, []buffer.Anchor) {
	var (
		hunks   []AnchorHunk
		anchors []buffer.Anchor
		sigs    = make(map[git.CommitID]Signature)
	)

	for _, rh := range raw {
		if rh.CommitID.IsZero() {
			b.log.Debug().Uint32("line", rh.FinalStartLine).Msg("skipping uncommitted hunk")
			continue
		}
		if rh.LinesInHunk == 0 || rh.LinesInHunk == git.LineCountUnknown || rh.FinalStartLine == 0 {
			b.log.Warn().Str("commit", rh.CommitID.Short()).
				Uint32("line", rh.FinalStartLine).Uint32("count", rh.LinesInHunk).
				Msg("skipping unusable hunk")
			continue
		}

		sig, ok := sigs[rh.CommitID]
		if !ok {
			sig = Signature{Name: rh.Name, Email: rh.Email, When: rh.When}
			sigs[rh.CommitID] = sig
		}

		startRow := rh.FinalStartLine - 1
		endRow := startRow + rh.LinesInHunk

		start := buf.AnchorAfterPoint(buffer.Point{Line: startRow})
		end := buf.AnchorBeforePoint(buffer.Point{Line: endRow})
		anchors = append(anchors, start, end)

		hunks = append(hunks, AnchorHunk{
			Start:       start,
			End:         end,
			Commit:      rh.CommitID,
			Author:      sig.Name,
			AuthorEmail: sig.Email,
			Time:        sig.When,
		})
	}

	return hunks, anchors
}

// HunksInRowRange returns the hunks intersecting the half-open row range
// [startRow, endRow), expressed in the buffer's current row coordinates.
func (b *BufferBlame) HunksInRowRange(buf *buffer.Buffer, startRow, endRow uint32) *Cursor {
	qStart := buf.AnchorBeforePoint(buffer.Point{Line: startRow})
	qEnd := buf.AnchorAfterPoint(buffer.Point{Line: endRow})
	defer buf.ReleaseAnchors([]buffer.Anchor{qStart, qEnd})

	return b.HunksIntersectingRange(buf, qStart, qEnd)
}

// HunksIntersectingRange returns the hunks intersecting the anchor range
// [start, end). The tree is traversed with summary pruning and every
// surviving boundary is resolved in one batched call; the tree itself is
// never mutated.
func (b *BufferBlame) HunksIntersectingRange(buf *buffer.Buffer, start, end buffer.Anchor) *Cursor {
	b.mu.RLock()
	tree := b.tree
	b.mu.RUnlock()

	if tree == nil {
		return &Cursor{}
	}

	var matched []AnchorHunk
	tree.collect(buf, start, end, &matched)
	if len(matched) == 0 {
		return &Cursor{}
	}

	// One batched resolution for the query bounds plus every hunk
	// boundary; per-anchor lookups would dominate the query cost.
	anchors := make([]buffer.Anchor, 0, 2+2*len(matched))
	anchors = append(anchors, start, end)
	for _, h := range matched {
		anchors = append(anchors, h.Start, h.End)
	}
	points := buf.ResolvePoints(anchors)

	qStartRow := points[0].Line
	qEndRow := roundRowUp(points[1])

	rows := make([]RowHunk, 0, len(matched))
	for i, h := range matched {
		startRow := points[2+2*i].Line
		endRow := roundRowUp(points[3+2*i])

		// Edits can drag a hunk's anchors outside the query bounds or
		// collapse the hunk entirely; resolved rows are authoritative.
		if endRow <= startRow || startRow >= qEndRow || endRow <= qStartRow {
			continue
		}

		rows = append(rows, RowHunk{
			Start:       startRow,
			End:         endRow,
			Commit:      h.Commit,
			Author:      h.Author,
			AuthorEmail: h.AuthorEmail,
			Time:        h.Time,
		})
	}

	return &Cursor{hunks: rows}
}

// roundRowUp converts an end boundary point to an exclusive row: a
// boundary that lands mid-line claims the whole line.
func roundRowUp(p buffer.Point) uint32 {
	if p.Column != 0 {
		return p.Line + 1
	}
	return p.Line
}

// Cursor iterates resolved row hunks in ascending start-row order,
// merging adjacent spans attributed to the same commit. It is finite and
// restartable; iterating never touches the underlying tree.
type Cursor struct {
	hunks   []RowHunk
	next    int
	current RowHunk
}

// Next advances the cursor. Returns false when the sequence is exhausted.
func (c *Cursor) Next() bool {
	if c.next >= len(c.hunks) {
		return false
	}

	c.current = c.hunks[c.next]
	c.next++

	// Absorb contiguous spans of the same commit.
	for c.next < len(c.hunks) {
		h := c.hunks[c.next]
		if h.Commit != c.current.Commit || h.Start != c.current.End {
			break
		}
		c.current.End = h.End
		c.next++
	}

	return true
}

// Hunk returns the hunk at the cursor position. Valid after Next reports
// true.
func (c *Cursor) Hunk() RowHunk {
	return c.current
}

// Reset rewinds the cursor to the start of the sequence.
func (c *Cursor) Reset() {
	c.next = 0
	c.current = RowHunk{}
}

// Collect drains the cursor from its current position into a slice.
func (c *Cursor) Collect() []RowHunk {
	var out []RowHunk
	for c.Next() {
		out = append(out, c.Hunk())
	}
	return out
}
