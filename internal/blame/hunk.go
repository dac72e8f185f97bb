package blame

import (
	"fmt"
	"time"

	"github.com/dshills/blamekit/internal/engine/buffer"
	"github.com/dshills/blamekit/internal/git"
)

// Hunk is the attribution of one contiguous run of buffer rows to the
// commit that last changed them. It is generic over how a range boundary
// is represented: plain row numbers at the query boundary, buffer anchors
// inside the index.
type Hunk[P any] struct {
	// Start and End bound the half-open range [Start, End).
	Start P
	End   P

	Commit      git.CommitID
	Author      string
	AuthorEmail string

	// Time is the commit's author time in its original UTC offset.
	Time time.Time
}

// RowHunk is a hunk bounded by 0-indexed buffer rows.
type RowHunk = Hunk[uint32]

// AnchorHunk is a hunk bounded by buffer anchors, the form stored in the
// aggregation index.
type AnchorHunk = Hunk[buffer.Anchor]

// String renders the display form: short id, author, and commit date.
func (h Hunk[P]) String() string {
	return fmt.Sprintf("%s - %s <%s> - (%s)",
		h.Commit.Short(), h.Author, h.AuthorEmail, h.Time.Format("2006-01-02 15:04"))
}

// Signature is the resolved author identity of one commit. Signatures are
// cached per index build so hunks sharing a commit resolve it once.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}
