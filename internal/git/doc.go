// Package git provides attribution sources for blame indexing.
//
// A Repository hands out BlameResults that attribute an arbitrary candidate
// buffer content as if the working tree contained exactly that content.
// Two interchangeable strategies exist: CLIRepository shells out to the git
// binary's incremental blame protocol, and GoGitRepository answers from an
// in-process go-git checkout. Both serialize invocations behind an internal
// mutex; the repository is a shared resource and one blame runs at a time.
package git
