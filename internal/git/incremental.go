package git

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Errors returned by the incremental protocol parser.
var (
	ErrMalformedHeader = errors.New("malformed blame entry header")
	ErrBadTimezone     = errors.New("invalid timezone offset")
)

// notCommittedAuthor replaces the placeholder git prints as the author of
// uncommitted hunks.
const notCommittedAuthor = "Not committed"

// BlameEntry is one decoded record of the `git blame --incremental` stream.
// Entries are never mutated after parsing.
type BlameEntry struct {
	SHA          CommitID
	OriginalLine uint32
	FinalLine    uint32
	LineCount    uint32

	Author     string
	AuthorMail string
	AuthorTime int64
	AuthorTZ   string

	Committer     string
	CommitterMail string
	CommitterTime int64
	CommitterTZ   string

	Summary  string
	Previous string
	Filename string
}

// AuthorDate returns the author timestamp in its original UTC offset.
func (e *BlameEntry) AuthorDate() (time.Time, error) {
	return timeInOffset(e.AuthorTime, e.AuthorTZ)
}

// CommitterDate returns the committer timestamp in its original UTC offset.
func (e *BlameEntry) CommitterDate() (time.Time, error) {
	return timeInOffset(e.CommitterTime, e.CommitterTZ)
}

// timeInOffset combines Unix seconds with a signed-hundreds offset string
// such as "+0530". The parsed integer times 36 gives the offset in seconds.
func timeInOffset(unix int64, tz string) (time.Time, error) {
	v, err := strconv.Atoi(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimezone, tz)
	}
	seconds := v * 36
	if seconds < -24*3600 || seconds > 24*3600 {
		return time.Time{}, fmt.Errorf("%w: %q out of range", ErrBadTimezone, tz)
	}
	return time.Unix(unix, 0).In(time.FixedZone(tz, seconds)), nil
}

// parserState tracks which half of a record the parser expects next.
type parserState uint8

const (
	awaitingHeader parserState = iota
	accumulatingFields
)

// ParseIncremental decodes the output of `git blame --incremental`.
//
// Every entry starts with a header of exactly four whitespace-separated
// tokens (commit id, original line, final line, line count) and ends with a
// `filename` field line. Entries repeating an already-seen commit id omit
// the signature fields; those are backfilled from the first occurrence.
// Unknown field keys are ignored for forward compatibility.
func ParseIncremental(output string) ([]BlameEntry, error) {
	var (
		entries []BlameEntry
		first   = make(map[CommitID]int)
		current BlameEntry
		state   = awaitingHeader
	)

	for _, line := range strings.Split(output, "\n") {
		switch state {
		case awaitingHeader:
			if line == "" {
				continue
			}
			entry, err := parseHeader(line)
			if err != nil {
				return nil, err
			}
			if idx, ok := first[entry.SHA]; ok {
				backfillSignature(&entry, &entries[idx])
			}
			current = entry
			state = accumulatingFields

		case accumulatingFields:
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			key := fields[0]
			value := strings.Join(fields[1:], " ")

			done, err := applyField(&current, key, value)
			if err != nil {
				return nil, fmt.Errorf("%w (line %q)", err, line)
			}
			if done {
				if _, ok := first[current.SHA]; !ok {
					first[current.SHA] = len(entries)
				}
				entries = append(entries, current)
				state = awaitingHeader
			}
		}
	}

	return entries, nil
}

// parseHeader decodes a record header line of exactly four tokens.
func parseHeader(line string) (BlameEntry, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return BlameEntry{}, fmt.Errorf("%w: %q", ErrMalformedHeader, line)
	}

	nums := make([]uint32, 3)
	for i, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return BlameEntry{}, fmt.Errorf("%w: %q: %v", ErrMalformedHeader, line, err)
		}
		nums[i] = uint32(v)
	}

	return BlameEntry{
		SHA:          CommitID(fields[0]),
		OriginalLine: nums[0],
		FinalLine:    nums[1],
		LineCount:    nums[2],
	}, nil
}

// applyField folds one `key value...` line into the current entry.
// Returns true when the entry is terminated by the filename key.
func applyField(e *BlameEntry, key, value string) (bool, error) {
	switch key {
	case "filename":
		e.Filename = value
		return true, nil
	case "summary":
		e.Summary = value
	case "previous":
		e.Previous = value
	case "author":
		e.Author = authorName(e.SHA, value)
	case "author-mail":
		e.AuthorMail = value
	case "author-time":
		t, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return false, fmt.Errorf("parsing author-time: %w", err)
		}
		e.AuthorTime = t
	case "author-tz":
		e.AuthorTZ = value
	case "committer":
		e.Committer = authorName(e.SHA, value)
	case "committer-mail":
		e.CommitterMail = value
	case "committer-time":
		t, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return false, fmt.Errorf("parsing committer-time: %w", err)
		}
		e.CommitterTime = t
	case "committer-tz":
		e.CommitterTZ = value
	default:
		// Unknown keys are skipped so newer git versions keep working.
	}
	return false, nil
}

// authorName maps the uncommitted sentinel's placeholder author to a
// stable display string.
func authorName(sha CommitID, value string) string {
	if sha.IsZero() {
		return notCommittedAuthor
	}
	return value
}

// backfillSignature copies signature fields from the first entry seen for
// the same commit id. Repeated entries omit them on the wire.
func backfillSignature(dst, src *BlameEntry) {
	dst.Author = src.Author
	dst.AuthorMail = src.AuthorMail
	dst.AuthorTime = src.AuthorTime
	dst.AuthorTZ = src.AuthorTZ
	dst.Committer = src.Committer
	dst.CommitterMail = src.CommitterMail
	dst.CommitterTime = src.CommitterTime
	dst.CommitterTZ = src.CommitterTZ
	dst.Summary = src.Summary
}
