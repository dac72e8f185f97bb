package annotate

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/dshills/blamekit/internal/blame"
	"github.com/dshills/blamekit/internal/engine/buffer"
)

const dateLayout = "2006-01-02 15:04"

// LineFormatter renders the gutter text for one hunk. Every line the
// hunk covers shares the same gutter.
type LineFormatter interface {
	FormatHunk(h blame.RowHunk) (string, error)
}

// Formatter is the built-in LineFormatter.
type Formatter struct {
	colorize bool

	sha    *color.Color
	author *color.Color
	date   *color.Color
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithColor enables ANSI colors in the gutter.
func WithColor() FormatterOption {
	return func(f *Formatter) {
		f.colorize = true
	}
}

// NewFormatter creates a Formatter. Colors are off by default.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{
		sha:    color.New(color.FgYellow),
		author: color.New(color.FgCyan),
		date:   color.New(color.FgGreen),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FormatHunk renders "sha author (date)".
func (f *Formatter) FormatHunk(h blame.RowHunk) (string, error) {
	sha := h.Commit.Short()
	author := h.Author
	date := h.Time.Format(dateLayout)

	if f.colorize {
		sha = f.sha.Sprint(sha)
		author = f.author.Sprint(author)
		date = f.date.Sprint(date)
	}
	return fmt.Sprintf("%s %s (%s)", sha, author, date), nil
}

// Annotate writes every buffer line prefixed with its blame gutter.
// Lines without attribution get a blank gutter of the same width.
func Annotate(w io.Writer, buf *buffer.Buffer, index *blame.BufferBlame, fmtr LineFormatter) error {
	lineCount := buf.LineCount()
	if lineCount > 0 && buf.LineText(lineCount-1) == "" {
		// Trailing newline produces a phantom empty last line.
		lineCount--
	}

	gutters := make([]string, lineCount)
	width := 0

	cur := index.HunksInRowRange(buf, 0, lineCount)
	for cur.Next() {
		h := cur.Hunk()
		text, err := fmtr.FormatHunk(h)
		if err != nil {
			return fmt.Errorf("formatting hunk %s: %w", h.Commit.Short(), err)
		}
		if n := visibleWidth(text); n > width {
			width = n
		}
		for row := h.Start; row < h.End && row < lineCount; row++ {
			gutters[row] = text
		}
	}

	for row := uint32(0); row < lineCount; row++ {
		gutter := gutters[row]
		pad := strings.Repeat(" ", width-visibleWidth(gutter))
		if _, err := fmt.Fprintf(w, "%s%s | %s\n", gutter, pad, buf.LineText(row)); err != nil {
			return err
		}
	}
	return nil
}

// visibleWidth is the display width of s with ANSI escapes stripped.
func visibleWidth(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			n++
		}
	}
	return n
}
