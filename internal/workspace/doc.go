// Package workspace models the inputs of one repatch pipeline run: the
// workspace descriptor identifying a remote repository and its local checkout,
// and the edit set mapping repository-relative paths to replacement content or
// deletion markers, including the YAML manifest format the CLI accepts.
package workspace
