// Package watch keeps a blame index current. A Scheduler coalesces
// rebuild requests behind a settle delay and cancels superseded
// rebuilds; a RepoWatcher feeds it filesystem events from the
// repository's git metadata.
package watch
