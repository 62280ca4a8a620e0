// Package agent implements the repository mutation pipeline: opening or cloning
// a workspace, guarding worktree cleanliness, scanning and applying an edit set,
// and publishing the result as a commit pushed with bounded retry. Preview mode
// computes unified diffs without touching the worktree.
package agent
