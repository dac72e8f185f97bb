package git

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

const testSHA = CommitID("abcdefabcdefabcdefabcdefabcdefabcdefabcd")

// entryLines joins protocol lines with newlines and a trailing newline.
func entryLines(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestParseIncrementalSingleEntry(t *testing.T) {
	input := entryLines(
		string(testSHA)+" 2 2 1",
		"author A",
		"author-mail <a@x>",
		"author-time 1000",
		"author-tz +0000",
		"committer A",
		"committer-mail <a@x>",
		"committer-time 1000",
		"committer-tz +0000",
		"summary S",
		"filename f.txt",
	)

	entries, err := ParseIncremental(input)
	if err != nil {
		t.Fatalf("ParseIncremental: %v", err)
	}

	want := []BlameEntry{{
		SHA:           testSHA,
		OriginalLine:  2,
		FinalLine:     2,
		LineCount:     1,
		Author:        "A",
		AuthorMail:    "<a@x>",
		AuthorTime:    1000,
		AuthorTZ:      "+0000",
		Committer:     "A",
		CommitterMail: "<a@x>",
		CommitterTime: 1000,
		CommitterTZ:   "+0000",
		Summary:       "S",
		Filename:      "f.txt",
	}}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %+v\nwant %+v", entries, want)
	}
}

func TestParseIncrementalBackfill(t *testing.T) {
	input := entryLines(
		string(testSHA)+" 2 2 1",
		"author A",
		"author-mail <a@x>",
		"author-time 1000",
		"author-tz +0100",
		"committer C",
		"committer-mail <c@x>",
		"committer-time 2000",
		"committer-tz +0100",
		"summary S",
		"filename f.txt",
		// Second entry for the same commit carries no signature fields.
		string(testSHA)+" 5 7 2",
		"previous 486c2409237a2c627230589e567024a96751d475 f.txt",
		"filename f.txt",
	)

	entries, err := ParseIncremental(input)
	if err != nil {
		t.Fatalf("ParseIncremental: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	second := entries[1]
	if second.FinalLine != 7 || second.LineCount != 2 {
		t.Errorf("second header = %d/%d, want 7/2", second.FinalLine, second.LineCount)
	}
	if second.Previous != "486c2409237a2c627230589e567024a96751d475 f.txt" {
		t.Errorf("Previous = %q", second.Previous)
	}

	// All signature fields inherited from the first occurrence.
	if second.Author != "A" || second.AuthorMail != "<a@x>" ||
		second.AuthorTime != 1000 || second.AuthorTZ != "+0100" {
		t.Errorf("author signature not backfilled: %+v", second)
	}
	if second.Committer != "C" || second.CommitterMail != "<c@x>" ||
		second.CommitterTime != 2000 || second.CommitterTZ != "+0100" {
		t.Errorf("committer signature not backfilled: %+v", second)
	}
	if second.Summary != "S" {
		t.Errorf("Summary = %q, want S", second.Summary)
	}
}

func TestParseIncrementalUncommitted(t *testing.T) {
	input := entryLines(
		UncommittedSHA+" 1 1 3",
		"author External file (--contents)",
		"author-mail <external.file@localhost>",
		"author-time 1709741400",
		"author-tz +0000",
		"committer External file (--contents)",
		"committer-mail <external.file@localhost>",
		"committer-time 1709741400",
		"committer-tz +0000",
		"summary Version of f.txt from standard input",
		"filename f.txt",
	)

	entries, err := ParseIncremental(input)
	if err != nil {
		t.Fatalf("ParseIncremental: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if !entries[0].SHA.IsZero() {
		t.Error("zero sha should report IsZero")
	}
	if entries[0].Author != "Not committed" {
		t.Errorf("Author = %q, want sentinel", entries[0].Author)
	}
	if entries[0].Committer != "Not committed" {
		t.Errorf("Committer = %q, want sentinel", entries[0].Committer)
	}
}

func TestParseIncrementalMultiCommitFixture(t *testing.T) {
	other := CommitID("1111111111111111111111111111111111111111")
	input := entryLines(
		string(testSHA)+" 1 1 2",
		"author A",
		"author-mail <a@x>",
		"author-time 1000",
		"author-tz +0000",
		"committer A",
		"committer-mail <a@x>",
		"committer-time 1000",
		"committer-tz +0000",
		"summary first",
		"filename f.txt",
		string(other)+" 3 3 1",
		"author B",
		"author-mail <b@x>",
		"author-time 2000",
		"author-tz -0500",
		"committer B",
		"committer-mail <b@x>",
		"committer-time 2000",
		"committer-tz -0500",
		"summary second",
		"boundary",
		"filename f.txt",
		string(testSHA)+" 4 4 1",
		"filename f.txt",
	)

	entries, err := ParseIncremental(input)
	if err != nil {
		t.Fatalf("ParseIncremental: %v", err)
	}

	got := make([]CommitID, len(entries))
	for i, e := range entries {
		got[i] = e.SHA
	}
	want := []CommitID{testSHA, other, testSHA}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("commit order = %v, want %v", got, want)
	}

	if entries[1].AuthorTZ != "-0500" {
		t.Errorf("AuthorTZ = %q, want -0500", entries[1].AuthorTZ)
	}
	if entries[2].Author != "A" || entries[2].Summary != "first" {
		t.Errorf("third entry not backfilled: %+v", entries[2])
	}
}

func TestParseIncrementalErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{
			name:  "header with three tokens",
			input: entryLines(string(testSHA) + " 1 1"),
			want:  ErrMalformedHeader,
		},
		{
			name:  "header with five tokens",
			input: entryLines(string(testSHA) + " 1 1 2 9"),
			want:  ErrMalformedHeader,
		},
		{
			name:  "non-integer line count",
			input: entryLines(string(testSHA) + " 1 1 x"),
			want:  ErrMalformedHeader,
		},
		{
			name: "non-integer author time",
			input: entryLines(
				string(testSHA)+" 1 1 1",
				"author-time soon",
				"filename f.txt",
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIncremental(tt.input)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTimezoneConversion(t *testing.T) {
	t.Run("whole hours", func(t *testing.T) {
		e := BlameEntry{AuthorTime: 1709741400, AuthorTZ: "+0100"}
		got, err := e.AuthorDate()
		if err != nil {
			t.Fatalf("AuthorDate: %v", err)
		}
		_, offset := got.Zone()
		if offset != 3600 {
			t.Errorf("offset = %d, want 3600", offset)
		}
		if got.Unix() != 1709741400 {
			t.Errorf("Unix = %d, want 1709741400", got.Unix())
		}
	})

	t.Run("negative offset", func(t *testing.T) {
		e := BlameEntry{CommitterTime: 1000, CommitterTZ: "-0200"}
		got, err := e.CommitterDate()
		if err != nil {
			t.Fatalf("CommitterDate: %v", err)
		}
		_, offset := got.Zone()
		if offset != -7200 {
			t.Errorf("offset = %d, want -7200", offset)
		}
	})

	t.Run("scaled by 36 seconds per unit", func(t *testing.T) {
		e := BlameEntry{AuthorTime: 0, AuthorTZ: "+0530"}
		got, err := e.AuthorDate()
		if err != nil {
			t.Fatalf("AuthorDate: %v", err)
		}
		_, offset := got.Zone()
		if offset != 530*36 {
			t.Errorf("offset = %d, want %d", offset, 530*36)
		}
	})

	t.Run("unparseable offset is a hard error", func(t *testing.T) {
		e := BlameEntry{AuthorTZ: "utc"}
		if _, err := e.AuthorDate(); !errors.Is(err, ErrBadTimezone) {
			t.Errorf("err = %v, want ErrBadTimezone", err)
		}
	})

	t.Run("offset magnitude beyond a day is rejected", func(t *testing.T) {
		e := BlameEntry{AuthorTZ: "+9900"}
		if _, err := e.AuthorDate(); !errors.Is(err, ErrBadTimezone) {
			t.Errorf("err = %v, want ErrBadTimezone", err)
		}
	})
}

func TestEntriesToHunks(t *testing.T) {
	entries := []BlameEntry{
		{
			SHA: testSHA, FinalLine: 1, LineCount: 2,
			Author: "A", AuthorMail: "<a@x>",
			AuthorTime: 1000, AuthorTZ: "+0000",
		},
		{
			SHA: CommitID(UncommittedSHA), FinalLine: 3, LineCount: 1,
			Author: "Not committed",
			// Zero sha entries never construct a timestamp, so a bogus
			// offset here must not fail the conversion.
			AuthorTZ: "nonsense",
		},
	}

	hunks, err := entriesToHunks(entries)
	if err != nil {
		t.Fatalf("entriesToHunks: %v", err)
	}
	if len(hunks) != 2 {
		t.Fatalf("len(hunks) = %d, want 2", len(hunks))
	}
	if hunks[0].CommitID != testSHA || hunks[0].FinalStartLine != 1 || hunks[0].LinesInHunk != 2 {
		t.Errorf("hunk[0] = %+v", hunks[0])
	}
	if !hunks[0].When.Equal(time.Unix(1000, 0)) {
		t.Errorf("When = %v, want unix 1000", hunks[0].When)
	}
	if !hunks[1].CommitID.IsZero() {
		t.Error("hunk[1] should carry the zero commit id")
	}
}

func TestCommitID(t *testing.T) {
	if !CommitID(UncommittedSHA).IsZero() {
		t.Error("uncommitted sha should be zero")
	}
	if testSHA.IsZero() {
		t.Error("real sha should not be zero")
	}
	if testSHA.Short() != "abcdef" {
		t.Errorf("Short = %q, want abcdef", testSHA.Short())
	}
}
