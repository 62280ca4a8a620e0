// Package gitrepo contains helpers for interrogating and manipulating Git repositories.
//
// It exposes RepositoryManager, the single concrete implementation of the git
// capability surface used by the repatch agent (probe, clone, fetch, checkout,
// status, stage, commit, push), along with structured remote URL parsing.
package gitrepo
