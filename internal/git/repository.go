package git

import (
	"context"
	"math"
	"time"
)

// LineCountUnknown is the sentinel a provider reports when it could not
// determine how many lines a hunk covers. Such hunks are unusable.
const LineCountUnknown = uint32(math.MaxUint32)

// BlameHunk is one raw attribution fact: a run of lines in the final
// (candidate) content owned by a single commit. FinalStartLine is 1-indexed.
type BlameHunk struct {
	CommitID       CommitID
	FinalStartLine uint32
	LinesInHunk    uint32

	// Final signature of the owning commit.
	Name  string
	Email string
	When  time.Time
}

// Repository is a source of blame attribution for paths it tracks.
//
// Implementations serialize blame invocations internally; callers may share
// one Repository across buffers.
type Repository interface {
	// BlamePath prepares a blame query for a path relative to the
	// repository root. The returned result borrows the repository only
	// for the duration of each BlameBuffer call.
	BlamePath(path string) (BlameResult, error)
}

// BlameResult attributes candidate contents of one path.
type BlameResult interface {
	// BlameBuffer attributes contents as if the working tree contained
	// exactly those bytes. Lines not present in any commit blame as
	// uncommitted (zero commit id). Cancel ctx to abort a slow query.
	BlameBuffer(ctx context.Context, contents []byte) ([]BlameHunk, error)
}

// entriesToHunks converts decoded protocol entries to raw hunks. The author
// signature is the final signature of the owning commit.
func entriesToHunks(entries []BlameEntry) ([]BlameHunk, error) {
	hunks := make([]BlameHunk, 0, len(entries))
	for i := range entries {
		e := &entries[i]

		var when time.Time
		if !e.SHA.IsZero() {
			var err error
			when, err = e.AuthorDate()
			if err != nil {
				return nil, err
			}
		}

		hunks = append(hunks, BlameHunk{
			CommitID:       e.SHA,
			FinalStartLine: e.FinalLine,
			LinesInHunk:    e.LineCount,
			Name:           e.Author,
			Email:          e.AuthorMail,
			When:           when,
		})
	}
	return hunks, nil
}
