package git

// UncommittedSHA is the commit id git reports for lines that only exist in
// the working copy. Hunks carrying it have no useful attribution.
const UncommittedSHA = "0000000000000000000000000000000000000000"

// CommitID is a 40-character hex commit identifier.
type CommitID string

// IsZero returns true for the all-zero uncommitted sentinel (and for the
// empty id).
func (c CommitID) IsZero() bool {
	return c == "" || c == UncommittedSHA
}

// Short returns the 6-character abbreviated form used for display.
func (c CommitID) Short() string {
	if len(c) < 6 {
		return string(c)
	}
	return string(c[:6])
}

// String returns the full hex id.
func (c CommitID) String() string {
	return string(c)
}
