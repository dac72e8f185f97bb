package view

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/blamekit/internal/annotate"
	"github.com/dshills/blamekit/internal/blame"
	"github.com/dshills/blamekit/internal/engine/buffer"
	"github.com/dshills/blamekit/internal/git"
)

const testSHA = "da39a3ee5e6b4b0d3255bfef95601890afd80709"

type stubResult []git.BlameHunk

func (s stubResult) BlameBuffer(context.Context, []byte) ([]git.BlameHunk, error) {
	return s, nil
}

type stubRepo struct{ hunks []git.BlameHunk }

func (s stubRepo) BlamePath(string) (git.BlameResult, error) {
	return stubResult(s.hunks), nil
}

func newTestViewer(t *testing.T, text string, width, height int) (*Viewer, tcell.SimulationScreen) {
	t.Helper()

	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatal(err)
	}
	screen.SetSize(width, height)
	t.Cleanup(screen.Fini)

	buf := buffer.NewBufferFromString(text)
	repo := stubRepo{hunks: []git.BlameHunk{{
		CommitID:       testSHA,
		FinalStartLine: 1,
		LinesInHunk:    2,
		Name:           "Alice",
		When:           time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}}}
	index := blame.New()
	if err := index.Update(context.Background(), repo, "file.go", buf); err != nil {
		t.Fatal(err)
	}

	v, err := NewViewer(buf, index, annotate.NewFormatter(), "file.go", WithScreen(screen))
	if err != nil {
		t.Fatal(err)
	}
	return v, screen
}

// screenRow reads one row of the simulation screen as a string.
func screenRow(screen tcell.SimulationScreen, y int) string {
	cells, width, _ := screen.GetContents()
	var sb strings.Builder
	for x := 0; x < width; x++ {
		c := cells[y*width+x]
		if len(c.Runes) > 0 {
			sb.WriteRune(c.Runes[0])
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

func TestDraw(t *testing.T) {
	v, screen := newTestViewer(t, "one\ntwo\nthree\n", 60, 6)
	v.draw()

	gutter := "da39a3 Alice (2024-03-01 12:00)"
	if got := screenRow(screen, 0); got != gutter+" | one" {
		t.Errorf("row 0 = %q", got)
	}
	if got := screenRow(screen, 1); got != gutter+" | two" {
		t.Errorf("row 1 = %q", got)
	}
	// Third line has no attribution, blank gutter.
	if got := screenRow(screen, 2); got != strings.Repeat(" ", len(gutter))+" | three" {
		t.Errorf("row 2 = %q", got)
	}
	if got := screenRow(screen, 5); !strings.Contains(got, "file.go") || !strings.Contains(got, "3 lines") {
		t.Errorf("status row = %q", got)
	}
}

func TestScrollClamping(t *testing.T) {
	lines := strings.Repeat("x\n", 20)
	v, _ := newTestViewer(t, lines, 40, 6)

	t.Run("above top", func(t *testing.T) {
		v.scrollBy(-5)
		if v.topRow != 0 {
			t.Errorf("topRow = %d, want 0", v.topRow)
		}
	})
	t.Run("below bottom", func(t *testing.T) {
		v.scrollTo(100)
		// 20 content lines, 5 visible rows.
		if v.topRow != 15 {
			t.Errorf("topRow = %d, want 15", v.topRow)
		}
	})
	t.Run("short buffer never scrolls", func(t *testing.T) {
		small, _ := newTestViewer(t, "a\nb\n", 40, 10)
		small.scrollTo(50)
		if small.topRow != 0 {
			t.Errorf("topRow = %d, want 0", small.topRow)
		}
	})
}

func TestHandleKey(t *testing.T) {
	lines := strings.Repeat("x\n", 20)

	tests := []struct {
		name    string
		ev      *tcell.EventKey
		wantTop uint32
		quit    bool
	}{
		{"down", tcell.NewEventKey(tcell.KeyDown, 0, 0), 1, false},
		{"j", tcell.NewEventKey(tcell.KeyRune, 'j', 0), 1, false},
		{"page down", tcell.NewEventKey(tcell.KeyPgDn, 0, 0), 5, false},
		{"end", tcell.NewEventKey(tcell.KeyEnd, 0, 0), 15, false},
		{"up at top", tcell.NewEventKey(tcell.KeyUp, 0, 0), 0, false},
		{"quit q", tcell.NewEventKey(tcell.KeyRune, 'q', 0), 0, true},
		{"quit escape", tcell.NewEventKey(tcell.KeyEscape, 0, 0), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newTestViewer(t, lines, 40, 6)
			if got := v.handleKey(tt.ev); got != tt.quit {
				t.Fatalf("quit = %v, want %v", got, tt.quit)
			}
			if v.topRow != tt.wantTop {
				t.Errorf("topRow = %d, want %d", v.topRow, tt.wantTop)
			}
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	v, _ := newTestViewer(t, "one\n", 40, 6)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- v.Run(ctx)
	}()

	// Give the event loop a moment to start, then cancel.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
