// Package history persists pipeline run outcomes in a sqlite ledger and lists
// them most-recent-first for the history command.
package history
