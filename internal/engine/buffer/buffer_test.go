package buffer

import "testing"

func TestBufferBasics(t *testing.T) {
	t.Run("empty buffer", func(t *testing.T) {
		b := NewBuffer()
		if !b.IsEmpty() {
			t.Error("new buffer should be empty")
		}
		if b.LineCount() != 1 {
			t.Errorf("LineCount = %d, want 1", b.LineCount())
		}
	})

	t.Run("line indexing", func(t *testing.T) {
		b := NewBufferFromString("one\ntwo\nthree\n")
		if b.LineCount() != 4 {
			t.Errorf("LineCount = %d, want 4", b.LineCount())
		}
		if got := b.LineText(1); got != "two" {
			t.Errorf("LineText(1) = %q, want %q", got, "two")
		}
		if got := b.LineText(3); got != "" {
			t.Errorf("LineText(3) = %q, want empty", got)
		}
		if got := b.LineStartOffset(2); got != 8 {
			t.Errorf("LineStartOffset(2) = %d, want 8", got)
		}
	})

	t.Run("line ending normalization", func(t *testing.T) {
		b := NewBufferFromString("a\r\nb\rc\n")
		if got := b.Text(); got != "a\nb\nc\n" {
			t.Errorf("Text = %q, want %q", got, "a\nb\nc\n")
		}
	})

	t.Run("point conversions", func(t *testing.T) {
		b := NewBufferFromString("one\ntwo\nthree")

		if got := b.OffsetToPoint(5); got != (Point{Line: 1, Column: 1}) {
			t.Errorf("OffsetToPoint(5) = %v, want (1:1)", got)
		}
		if got := b.PointToOffset(Point{Line: 2, Column: 0}); got != 8 {
			t.Errorf("PointToOffset(2:0) = %d, want 8", got)
		}
		// Clamping past the end of a line and past the last line.
		if got := b.PointToOffset(Point{Line: 0, Column: 99}); got != 3 {
			t.Errorf("clamped PointToOffset = %d, want 3", got)
		}
		if got := b.PointToOffset(Point{Line: 99, Column: 0}); got != b.Len() {
			t.Errorf("past-end PointToOffset = %d, want %d", got, b.Len())
		}
	})
}

func TestBufferEdits(t *testing.T) {
	t.Run("insert", func(t *testing.T) {
		b := NewBufferFromString("hello world")
		end, err := b.Insert(5, ",")
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if end != 6 {
			t.Errorf("end = %d, want 6", end)
		}
		if b.Text() != "hello, world" {
			t.Errorf("Text = %q", b.Text())
		}
	})

	t.Run("delete", func(t *testing.T) {
		b := NewBufferFromString("one\ntwo\nthree")
		if err := b.Delete(4, 8); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if b.Text() != "one\nthree" {
			t.Errorf("Text = %q", b.Text())
		}
		if b.LineCount() != 2 {
			t.Errorf("LineCount = %d, want 2", b.LineCount())
		}
	})

	t.Run("replace", func(t *testing.T) {
		b := NewBufferFromString("one two")
		if _, err := b.Replace(4, 7, "three"); err != nil {
			t.Fatalf("Replace: %v", err)
		}
		if b.Text() != "one three" {
			t.Errorf("Text = %q", b.Text())
		}
	})

	t.Run("invalid ranges", func(t *testing.T) {
		b := NewBufferFromString("abc")
		if _, err := b.Insert(9, "x"); err != ErrOffsetOutOfRange {
			t.Errorf("Insert err = %v, want ErrOffsetOutOfRange", err)
		}
		if err := b.Delete(2, 1); err != ErrRangeInvalid {
			t.Errorf("Delete err = %v, want ErrRangeInvalid", err)
		}
	})

	t.Run("edits change the revision", func(t *testing.T) {
		b := NewBufferFromString("abc")
		before := b.RevisionID()
		if _, err := b.Insert(0, "x"); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if b.RevisionID() == before {
			t.Error("revision should change after an edit")
		}
	})
}

func TestSnapshot(t *testing.T) {
	b := NewBufferFromString("one\ntwo")
	snap := b.Snapshot()

	if _, err := b.Insert(0, "zero\n"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if snap.Text() != "one\ntwo" {
		t.Errorf("snapshot changed after edit: %q", snap.Text())
	}
	if snap.LineCount() != 2 {
		t.Errorf("snapshot LineCount = %d, want 2", snap.LineCount())
	}
	if snap.LineText(1) != "two" {
		t.Errorf("snapshot LineText(1) = %q", snap.LineText(1))
	}
	if snap.RevisionID() == b.RevisionID() {
		t.Error("snapshot revision should differ from edited buffer")
	}
}
