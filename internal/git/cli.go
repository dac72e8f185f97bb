package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"
)

// ErrEmptyPath indicates a blame query without a path.
var ErrEmptyPath = errors.New("blame path is empty")

// CLIRepository answers blame queries by spawning the git binary with the
// incremental protocol. Safe for concurrent use; invocations are serialized
// so only one subprocess runs against the repository at a time.
type CLIRepository struct {
	mu  sync.Mutex
	dir string
	git string
	log zerolog.Logger
}

// CLIOption configures a CLIRepository.
type CLIOption func(*CLIRepository)

// WithGitPath overrides the git executable used (default "git").
func WithGitPath(path string) CLIOption {
	return func(r *CLIRepository) {
		r.git = path
	}
}

// WithCLILogger attaches a logger. The default discards everything.
func WithCLILogger(log zerolog.Logger) CLIOption {
	return func(r *CLIRepository) {
		r.log = log
	}
}

// NewCLIRepository creates a repository rooted at dir (the git working
// directory).
func NewCLIRepository(dir string, opts ...CLIOption) *CLIRepository {
	r := &CLIRepository{
		dir: dir,
		git: "git",
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BlamePath prepares a blame query for path, relative to the repository
// working directory.
func (r *CLIRepository) BlamePath(path string) (BlameResult, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	return &cliBlameResult{repo: r, path: path}, nil
}

type cliBlameResult struct {
	repo *CLIRepository
	path string
}

// BlameBuffer runs `git blame --incremental --contents - <path>`, feeding
// contents on stdin, and decodes the incremental stream.
func (b *cliBlameResult) BlameBuffer(ctx context.Context, contents []byte) ([]BlameHunk, error) {
	output, err := b.repo.runBlame(ctx, b.path, contents)
	if err != nil {
		return nil, err
	}

	entries, err := ParseIncremental(output)
	if err != nil {
		return nil, err
	}
	return entriesToHunks(entries)
}

// runBlame spawns the subprocess and collects its output. The repository
// mutex is held for the whole invocation.
func (r *CLIRepository) runBlame(ctx context.Context, path string, contents []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd := exec.CommandContext(ctx, r.git, "blame", "--incremental", "--contents", "-", path)
	cmd.Dir = r.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("opening git blame stdin: %w", err)
	}

	r.log.Debug().Str("path", path).Int("bytes", len(contents)).Msg("running git blame")

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("starting git blame: %w", err)
	}

	// Stdin must be fully written and closed before waiting; otherwise a
	// large buffer fills the pipe and the child blocks forever.
	_, werr := stdin.Write(contents)
	cerr := stdin.Close()

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("git blame %s failed: %w (stderr: %s)",
			path, err, bytes.TrimSpace(stderr.Bytes()))
	}
	if werr != nil {
		return "", fmt.Errorf("writing git blame stdin: %w", werr)
	}
	if cerr != nil {
		return "", fmt.Errorf("closing git blame stdin: %w", cerr)
	}

	return stdout.String(), nil
}
