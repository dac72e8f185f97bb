// Package blame indexes per-line commit attribution for an editable buffer
// and answers row-range ownership queries against it.
//
// Attribution facts come from a git.Repository and are indexed as hunks
// keyed by buffer anchors, so a built index stays valid while the buffer is
// edited. The index is rebuilt wholesale on content changes; between
// rebuilds it is an immutable snapshot that may be queried concurrently.
package blame
