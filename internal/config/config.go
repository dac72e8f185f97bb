// Package config assembles runtime settings from layered sources:
// built-in defaults, a TOML file, BLAMEKIT_* environment variables and
// command line flags, each overriding the one before it.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "BLAMEKIT"

// Provider names accepted by Config.Provider.
const (
	ProviderCLI   = "cli"
	ProviderGoGit = "gogit"
)

// Duration is a time.Duration that decodes from strings like "250ms"
// in every layer.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Set implements pflag.Value.
func (d *Duration) Set(s string) error {
	return d.UnmarshalText([]byte(s))
}

// Type implements pflag.Value.
func (d *Duration) Type() string {
	return "duration"
}

// Config holds all runtime settings.
type Config struct {
	// Provider selects the blame backend, cli or gogit.
	Provider string `toml:"provider" envconfig:"PROVIDER"`

	// GitPath is the git executable used by the cli provider.
	GitPath string `toml:"git_path" envconfig:"GIT_PATH"`

	// RepoDir is the repository root. Defaults to the working directory.
	RepoDir string `toml:"repo_dir" envconfig:"REPO_DIR"`

	// Settle is the quiet period before a rebuild runs.
	Settle Duration `toml:"settle" envconfig:"SETTLE"`

	// Watch enables rebuilds on repository changes.
	Watch bool `toml:"watch" envconfig:"WATCH"`

	// Color enables ANSI colors in annotate output.
	Color bool `toml:"color" envconfig:"COLOR"`

	// FormatScript is an optional Lua script path for gutter formatting.
	FormatScript string `toml:"format_script" envconfig:"FORMAT_SCRIPT"`

	// LogLevel is a zerolog level name.
	LogLevel string `toml:"log_level" envconfig:"LOG_LEVEL"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Provider: ProviderCLI,
		GitPath:  "git",
		RepoDir:  ".",
		Settle:   Duration(250 * time.Millisecond),
		Watch:    true,
		Color:    true,
		LogLevel: "info",
	}
}

// LoadFile overlays settings from a TOML file. A missing file is not an
// error.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv overlays settings from BLAMEKIT_* environment variables.
func (c *Config) LoadEnv() error {
	if err := envconfig.Process(envPrefix, c); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	return nil
}

// BindFlags registers every setting on a flag set, seeded with the
// current values.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Provider, "provider", c.Provider, "blame backend (cli or gogit)")
	fs.StringVar(&c.GitPath, "git", c.GitPath, "git executable for the cli backend")
	fs.StringVarP(&c.RepoDir, "repo", "r", c.RepoDir, "repository root")
	fs.Var(&c.Settle, "settle", "quiet period before rebuilding")
	fs.BoolVar(&c.Watch, "watch", c.Watch, "rebuild when the repository changes")
	fs.BoolVar(&c.Color, "color", c.Color, "colorize output")
	fs.StringVar(&c.FormatScript, "format-script", c.FormatScript, "Lua gutter format script")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")
}

// Validate checks the assembled settings.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderCLI, ProviderGoGit:
	default:
		return fmt.Errorf("unknown provider %q, want %s or %s", c.Provider, ProviderCLI, ProviderGoGit)
	}
	if c.Settle <= 0 {
		return fmt.Errorf("settle must be positive, got %s", c.Settle)
	}
	if c.RepoDir == "" {
		return fmt.Errorf("repo_dir must not be empty")
	}
	return nil
}

// Load assembles a Config from every layer. The flag set must already
// be bound via BindFlags and parsed by the caller.
func Load(filePath string) (Config, error) {
	cfg := Default()
	if filePath != "" {
		if err := cfg.LoadFile(filePath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.LoadEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
