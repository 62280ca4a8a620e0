// Package execshell provides structured helpers for invoking the external git
// binary.
//
// It wraps os/exec with zap logging and cancellation via ShellExecutor,
// exposes OSCommandRunner for default process execution, and defines the
// CommandRunner seam that lets repatch services substitute recorded runners in
// tests.
package execshell
