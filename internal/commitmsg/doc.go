// Package commitmsg renders commit messages from configurable templates with
// branch and changed-file placeholders.
package commitmsg
