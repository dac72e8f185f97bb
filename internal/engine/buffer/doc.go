// Package buffer provides the editable text buffer that blame attribution
// is computed against.
//
// A Buffer stores text with a line index and hands out Anchors: persistent,
// opaque references to positions that remain semantically valid as the text
// is edited. Anchors carry no absolute position of their own; resolving or
// comparing them always requires the owning buffer as context, which is why
// every consumer threads the buffer through explicitly.
//
// Snapshots are immutable views taken under the buffer lock and are safe to
// share across goroutines.
package buffer
