package git

import (
	"context"
	"fmt"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/rs/zerolog"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// GoGitRepository answers blame queries in-process through go-git. The
// library blames the path at HEAD; candidate contents are line-mapped
// against the committed text so that unchanged lines inherit their commit
// attribution and edited or new lines blame as uncommitted.
type GoGitRepository struct {
	mu   sync.Mutex
	repo *gogit.Repository
	log  zerolog.Logger
}

// GoGitOption configures a GoGitRepository.
type GoGitOption func(*GoGitRepository)

// WithGoGitLogger attaches a logger. The default discards everything.
func WithGoGitLogger(log zerolog.Logger) GoGitOption {
	return func(r *GoGitRepository) {
		r.log = log
	}
}

// OpenGoGitRepository opens the repository containing dir.
func OpenGoGitRepository(dir string, opts ...GoGitOption) (*GoGitRepository, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", dir, err)
	}

	r := &GoGitRepository{
		repo: repo,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// BlamePath prepares a blame query for path, relative to the repository
// root.
func (r *GoGitRepository) BlamePath(path string) (BlameResult, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	return &goGitBlameResult{repo: r, path: path}, nil
}

type goGitBlameResult struct {
	repo *GoGitRepository
	path string
}

// lineAttribution is the per-line ownership of the candidate contents.
type lineAttribution struct {
	commit CommitID
	name   string
	email  string
	idx    int // index into the committed blame lines, -1 if uncommitted
}

// BlameBuffer blames the path at HEAD and remaps the result onto contents.
func (b *goGitBlameResult) BlameBuffer(ctx context.Context, contents []byte) ([]BlameHunk, error) {
	r := b.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("loading HEAD commit: %w", err)
	}

	blame, err := gogit.Blame(commit, b.path)
	if err != nil {
		return nil, fmt.Errorf("blaming %s at %s: %w", b.path, head.Hash(), err)
	}

	file, err := commit.File(b.path)
	if err != nil {
		return nil, fmt.Errorf("reading committed %s: %w", b.path, err)
	}
	committed, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("reading committed %s: %w", b.path, err)
	}

	r.log.Debug().Str("path", b.path).Str("head", head.Hash().String()).
		Msg("go-git blame")

	mapped := mapCandidateLines(committed, string(contents))
	return coalesceLineHunks(blame, mapped), nil
}

// mapCandidateLines line-diffs the committed text against the candidate and
// returns, for each candidate line, the committed line it came from, or -1
// if the line has no committed counterpart.
func mapCandidateLines(committed, candidate string) []int {
	dmp := diffmatchpatch.New()
	oldChars, newChars, _ := dmp.DiffLinesToChars(committed, candidate)
	diffs := dmp.DiffMain(oldChars, newChars, false)

	var mapped []int
	oldLine := 0
	for _, d := range diffs {
		n := len([]rune(d.Text)) // one rune per line after DiffLinesToChars
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			for i := 0; i < n; i++ {
				mapped = append(mapped, oldLine+i)
			}
			oldLine += n
		case diffmatchpatch.DiffDelete:
			oldLine += n
		case diffmatchpatch.DiffInsert:
			for i := 0; i < n; i++ {
				mapped = append(mapped, -1)
			}
		}
	}
	return mapped
}

// coalesceLineHunks folds per-line attribution into maximal contiguous
// hunks over the candidate contents.
func coalesceLineHunks(blame *gogit.BlameResult, mapped []int) []BlameHunk {
	var hunks []BlameHunk

	flush := func(start int, count uint32, attr lineAttribution) {
		h := BlameHunk{
			CommitID:       attr.commit,
			FinalStartLine: uint32(start + 1),
			LinesInHunk:    count,
			Name:           attr.name,
			Email:          attr.email,
		}
		if attr.idx >= 0 {
			h.When = blame.Lines[attr.idx].Date
		}
		hunks = append(hunks, h)
	}

	var (
		current lineAttribution
		start   int
		count   uint32
	)

	for i, old := range mapped {
		attr := lineAttribution{commit: CommitID(UncommittedSHA), idx: -1}
		if old >= 0 && old < len(blame.Lines) {
			line := blame.Lines[old]
			attr = lineAttribution{
				commit: CommitID(line.Hash.String()),
				name:   line.AuthorName,
				email:  line.Author,
				idx:    old,
			}
		}

		if count > 0 && attr.commit == current.commit {
			count++
			continue
		}
		if count > 0 {
			flush(start, count, current)
		}
		current = attr
		start = i
		count = 1
	}
	if count > 0 {
		flush(start, count, current)
	}

	return hunks
}
