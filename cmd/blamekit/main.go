// Command blamekit shows git blame attribution for a file, either as a
// one-shot annotated listing or in an interactive viewer that follows
// repository changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/dshills/blamekit/internal/annotate"
	"github.com/dshills/blamekit/internal/blame"
	"github.com/dshills/blamekit/internal/config"
	"github.com/dshills/blamekit/internal/engine/buffer"
	"github.com/dshills/blamekit/internal/git"
	"github.com/dshills/blamekit/internal/view"
	"github.com/dshills/blamekit/internal/watch"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		oneShot     bool
		showVersion bool
	)

	fs := pflag.NewFlagSet("blamekit", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to configuration file")
	// The config file must be read before the remaining flags are bound,
	// since flags override file and environment values. The flag set is
	// not parsed yet at that point, so the config path is scanned out of
	// the raw arguments first.
	configPath = configPathFromArgs(os.Args[1:], defaultConfigPath())
	fs.BoolVar(&oneShot, "annotate", false, "print the annotated file and exit")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: blamekit [flags] <file>\n\n")
		fs.PrintDefaults()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg.BindFlags(fs)

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if showVersion {
		fmt.Printf("blamekit %s (%s)\n", version, commit)
		return 0
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if err := blameFile(cfg, log, fs.Arg(0), oneShot); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// configPathFromArgs extracts the --config / -c value from raw arguments
// without a full flag parse. Returns fallback when the flag is absent.
func configPathFromArgs(args []string, fallback string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		switch {
		case a == "--config" || a == "-c":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(a, "--config="):
			return strings.TrimPrefix(a, "--config=")
		case strings.HasPrefix(a, "-c") && !strings.HasPrefix(a, "--"):
			// pflag shorthand forms -c=path and -cpath.
			if v := strings.TrimPrefix(strings.TrimPrefix(a, "-c"), "="); v != "" {
				return v
			}
		}
	}
	return fallback
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "blamekit", "blamekit.toml")
}

func blameFile(cfg config.Config, log zerolog.Logger, path string, oneShot bool) error {
	repoDir, relPath, err := resolvePaths(cfg.RepoDir, path)
	if err != nil {
		return err
	}

	repo, err := openRepository(cfg, log, repoDir)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(filepath.Join(repoDir, relPath))
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	buf := buffer.NewBufferFromString(string(content))

	fmtr, err := newFormatter(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	index := blame.New(blame.WithLogger(log))
	if err := index.Update(ctx, repo, relPath, buf); err != nil {
		return err
	}

	if oneShot {
		return annotate.Annotate(os.Stdout, buf, index, fmtr)
	}

	viewer, err := view.NewViewer(buf, index, fmtr, relPath)
	if err != nil {
		return err
	}

	if cfg.Watch {
		sched := watch.NewScheduler(index, repo, relPath, buf,
			watch.WithSettle(cfg.Settle.Std()),
			watch.WithSchedulerLogger(log),
			watch.WithOnDone(func(string, error) { viewer.Invalidate() }))
		defer sched.Close()

		watcher, err := watch.WatchRepository(repoDir, sched, log)
		if err != nil {
			log.Warn().Err(err).Msg("repository watching disabled")
		} else {
			defer watcher.Close()
		}
	}

	if err := viewer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// resolvePaths returns the absolute repository root and the file path
// relative to it.
func resolvePaths(repoDir, path string) (string, string, error) {
	absRepo, err := filepath.Abs(repoDir)
	if err != nil {
		return "", "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", "", err
	}
	rel, err := filepath.Rel(absRepo, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%s is outside repository %s", path, absRepo)
	}
	return absRepo, rel, nil
}

func openRepository(cfg config.Config, log zerolog.Logger, dir string) (git.Repository, error) {
	switch cfg.Provider {
	case config.ProviderGoGit:
		return git.OpenGoGitRepository(dir, git.WithGoGitLogger(log))
	default:
		return git.NewCLIRepository(dir, git.WithGitPath(cfg.GitPath), git.WithCLILogger(log)), nil
	}
}

func newFormatter(cfg config.Config) (annotate.LineFormatter, error) {
	var opts []annotate.FormatterOption
	if cfg.Color {
		opts = append(opts, annotate.WithColor())
	}
	base := annotate.NewFormatter(opts...)

	if cfg.FormatScript == "" {
		return base, nil
	}
	script, err := os.ReadFile(cfg.FormatScript)
	if err != nil {
		return nil, fmt.Errorf("reading format script: %w", err)
	}
	return annotate.NewLuaFormatter(string(script), base)
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("bad log level %q: %w", level, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).With().Timestamp().Logger(), nil
}
