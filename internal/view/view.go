// Package view is a full-screen terminal viewer for annotated buffers.
// It renders each buffer line with its blame gutter and follows index
// rebuilds triggered elsewhere.
package view

import (
	"context"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/blamekit/internal/annotate"
	"github.com/dshills/blamekit/internal/blame"
	"github.com/dshills/blamekit/internal/engine/buffer"
)

// Viewer displays one buffer with blame gutters.
type Viewer struct {
	mu     sync.Mutex
	screen tcell.Screen
	buf    *buffer.Buffer
	index  *blame.BufferBlame
	fmtr   annotate.LineFormatter
	path   string

	topRow  uint32
	started bool
}

// ViewerOption configures a Viewer.
type ViewerOption func(*Viewer)

// WithScreen injects a screen, used by tests with tcell's simulation
// screen.
func WithScreen(screen tcell.Screen) ViewerOption {
	return func(v *Viewer) {
		v.screen = screen
	}
}

// NewViewer creates a viewer for one buffer and its blame index.
func NewViewer(buf *buffer.Buffer, index *blame.BufferBlame, fmtr annotate.LineFormatter, path string, opts ...ViewerOption) (*Viewer, error) {
	v := &Viewer{
		buf:   buf,
		index: index,
		fmtr:  fmtr,
		path:  path,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return nil, fmt.Errorf("opening terminal: %w", err)
		}
		v.screen = screen
	}
	return v, nil
}

// Invalidate asks a running viewer to redraw, typically after a rebuild.
// Safe to call from any goroutine.
func (v *Viewer) Invalidate() {
	v.mu.Lock()
	started := v.started
	v.mu.Unlock()
	if started {
		_ = v.screen.PostEvent(tcell.NewEventInterrupt(nil))
	}
}

// Run owns the terminal until the user quits or the context is
// cancelled.
func (v *Viewer) Run(ctx context.Context) error {
	if err := v.screen.Init(); err != nil {
		return fmt.Errorf("initializing terminal: %w", err)
	}
	defer v.screen.Fini()

	v.mu.Lock()
	v.started = true
	v.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = v.screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	defer stop()

	v.draw()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch ev := v.screen.PollEvent().(type) {
		case *tcell.EventResize:
			v.screen.Sync()
			v.draw()
		case *tcell.EventInterrupt:
			v.draw()
		case *tcell.EventKey:
			if v.handleKey(ev) {
				return nil
			}
			v.draw()
		case nil:
			return nil
		}
	}
}

// handleKey reacts to a key press. Returns true on quit.
func (v *Viewer) handleKey(ev *tcell.EventKey) bool {
	_, height := v.screen.Size()
	page := uint32(1)
	if height > 1 {
		page = uint32(height - 1)
	}

	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		v.scrollBy(-1)
	case tcell.KeyDown:
		v.scrollBy(1)
	case tcell.KeyPgUp:
		v.scrollBy(-int(page))
	case tcell.KeyPgDn:
		v.scrollBy(int(page))
	case tcell.KeyHome:
		v.scrollTo(0)
	case tcell.KeyEnd:
		v.scrollTo(v.contentLines())
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case 'k':
			v.scrollBy(-1)
		case 'j':
			v.scrollBy(1)
		case 'g':
			v.scrollTo(0)
		case 'G':
			v.scrollTo(v.contentLines())
		}
	}
	return false
}

// contentLines is the line count without the phantom line a trailing
// newline produces.
func (v *Viewer) contentLines() uint32 {
	n := v.buf.LineCount()
	if n > 0 && v.buf.LineText(n-1) == "" {
		n--
	}
	return n
}

func (v *Viewer) scrollBy(delta int) {
	top := int(v.topRow) + delta
	if top < 0 {
		top = 0
	}
	v.scrollTo(uint32(top))
}

func (v *Viewer) scrollTo(row uint32) {
	_, height := v.screen.Size()
	visible := uint32(0)
	if height > 1 {
		visible = uint32(height - 1)
	}

	maxTop := uint32(0)
	if lines := v.contentLines(); lines > visible {
		maxTop = lines - visible
	}
	if row > maxTop {
		row = maxTop
	}
	v.topRow = row
}

func (v *Viewer) draw() {
	width, height := v.screen.Size()
	if width == 0 || height == 0 {
		return
	}
	v.screen.Clear()

	visible := uint32(0)
	if height > 1 {
		visible = uint32(height - 1)
	}
	lines := v.contentLines()
	end := min(v.topRow+visible, lines)

	gutters, gutterWidth := v.gutterColumn(v.topRow, end)

	gutterStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	textStyle := tcell.StyleDefault

	for row := v.topRow; row < end; row++ {
		y := int(row - v.topRow)
		x := drawText(v.screen, 0, y, gutterStyle, gutters[row-v.topRow])
		for ; x < gutterWidth; x++ {
			v.screen.SetContent(x, y, ' ', nil, gutterStyle)
		}
		x = drawText(v.screen, x, y, textStyle.Dim(true), " | ")
		drawText(v.screen, x, y, textStyle, v.buf.LineText(row))
	}

	v.drawStatus(width, height-1, lines)
	v.screen.Show()
}

// gutterColumn renders the gutters for rows [start, end) and returns
// them with the column width.
func (v *Viewer) gutterColumn(start, end uint32) ([]string, int) {
	gutters := make([]string, end-start)
	width := 0

	cur := v.index.HunksInRowRange(v.buf, start, end)
	for cur.Next() {
		h := cur.Hunk()
		text, err := v.fmtr.FormatHunk(h)
		if err != nil {
			text = h.Commit.Short()
		}
		if len(text) > width {
			width = len(text)
		}
		for row := max(h.Start, start); row < h.End && row < end; row++ {
			gutters[row-start] = text
		}
	}
	return gutters, width
}

func (v *Viewer) drawStatus(width, y int, lines uint32) {
	if y < 0 {
		return
	}
	style := tcell.StyleDefault.Reverse(true)
	status := fmt.Sprintf(" %s  %d lines  %d hunks  q to quit", v.path, lines, v.index.Len())
	x := drawText(v.screen, 0, y, style, status)
	for ; x < width; x++ {
		v.screen.SetContent(x, y, ' ', nil, style)
	}
}

// drawText writes s at (x, y) and returns the x after the last rune.
func drawText(screen tcell.Screen, x, y int, style tcell.Style, s string) int {
	width, _ := screen.Size()
	for _, r := range s {
		if x >= width {
			break
		}
		screen.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}
