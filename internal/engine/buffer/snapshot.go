package buffer

// Snapshot provides a read-only view of a buffer at a specific point in time.
// It is safe for concurrent access and will not change even if the original
// buffer is modified.
type Snapshot struct {
	text       string
	lineStarts []int
	revisionID RevisionID
}

// Text returns the full snapshot content as a string.
func (s *Snapshot) Text() string {
	return s.text
}

// Len returns the total byte length of the snapshot.
func (s *Snapshot) Len() ByteOffset {
	return len(s.text)
}

// LineCount returns the number of lines.
func (s *Snapshot) LineCount() uint32 {
	return uint32(len(s.lineStarts))
}

// LineText returns the text of a specific line (without newline).
func (s *Snapshot) LineText(line uint32) string {
	if int(line) >= len(s.lineStarts) {
		return ""
	}
	start := s.lineStarts[line]
	end := len(s.text)
	if int(line)+1 < len(s.lineStarts) {
		end = s.lineStarts[line+1] - 1
	}
	return s.text[start:end]
}

// RevisionID returns the revision the snapshot was taken at.
func (s *Snapshot) RevisionID() RevisionID {
	return s.revisionID
}
