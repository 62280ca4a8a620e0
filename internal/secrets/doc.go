// Package secrets provides a pure, deterministic scanner that inspects
// proposed file content for leaked credentials before the content reaches a
// working tree. The scanner never touches the filesystem or the network.
package secrets
