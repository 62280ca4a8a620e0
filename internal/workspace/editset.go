package workspace

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

const (
	invalidPathTemplateConstant        = "edit path %q rejected: %s"
	duplicatePathTemplateConstant      = "edit path %q declared more than once"
	emptyPathReasonConstant            = "path is empty"
	absolutePathReasonConstant         = "path must be repository-relative"
	parentTraversalReasonConstant      = "path escapes the repository root"
	windowsVolumeReasonConstant        = "path must not carry a volume prefix"
	parentTraversalSegmentConstant     = ".."
	windowsVolumeSeparatorRuneConstant = ':'
)

// InvalidPathError reports an edit path that cannot address a repository file.
type InvalidPathError struct {
	Path   string
	Reason string
}

// Error describes the rejected path.
func (pathError InvalidPathError) Error() string {
	return fmt.Sprintf(invalidPathTemplateConstant, pathError.Path, pathError.Reason)
}

// DuplicatePathError reports an edit path declared twice in one edit set.
type DuplicatePathError struct {
	Path string
}

// Error describes the duplicated path.
func (duplicateError DuplicatePathError) Error() string {
	return fmt.Sprintf(duplicatePathTemplateConstant, duplicateError.Path)
}

// Edit is one proposed mutation: full replacement content or a deletion marker.
type Edit struct {
	Content string
	Delete  bool
}

// EditSet maps repository-relative paths to proposed edits. Keys are unique
// and iteration through SortedPaths is deterministic.
type EditSet struct {
	entries map[string]Edit
}

// NewEditSet constructs an empty edit set.
func NewEditSet() *EditSet {
	return &EditSet{entries: map[string]Edit{}}
}

// Put registers full replacement content for the supplied path.
func (editSet *EditSet) Put(relativePath string, content string) error {
	return editSet.register(relativePath, Edit{Content: content})
}

// PutDeletion registers a deletion marker for the supplied path.
func (editSet *EditSet) PutDeletion(relativePath string) error {
	return editSet.register(relativePath, Edit{Delete: true})
}

func (editSet *EditSet) register(relativePath string, edit Edit) error {
	normalizedPath, validationError := normalizeEditPath(relativePath)
	if validationError != nil {
		return validationError
	}
	if _, alreadyDeclared := editSet.entries[normalizedPath]; alreadyDeclared {
		return DuplicatePathError{Path: normalizedPath}
	}
	editSet.entries[normalizedPath] = edit
	return nil
}

// Lookup returns the edit registered for the supplied path.
func (editSet *EditSet) Lookup(relativePath string) (Edit, bool) {
	edit, exists := editSet.entries[relativePath]
	return edit, exists
}

// SortedPaths returns every registered path in lexical order.
func (editSet *EditSet) SortedPaths() []string {
	sortedPaths := make([]string, 0, len(editSet.entries))
	for registeredPath := range editSet.entries {
		sortedPaths = append(sortedPaths, registeredPath)
	}
	sort.Strings(sortedPaths)
	return sortedPaths
}

// Len reports the number of registered edits.
func (editSet *EditSet) Len() int {
	return len(editSet.entries)
}

func normalizeEditPath(relativePath string) (string, error) {
	trimmedPath := strings.TrimSpace(relativePath)
	if len(trimmedPath) == 0 {
		return "", InvalidPathError{Path: relativePath, Reason: emptyPathReasonConstant}
	}
	if strings.HasPrefix(trimmedPath, "/") || strings.HasPrefix(trimmedPath, `\`) {
		return "", InvalidPathError{Path: relativePath, Reason: absolutePathReasonConstant}
	}
	if strings.ContainsRune(trimmedPath, windowsVolumeSeparatorRuneConstant) {
		return "", InvalidPathError{Path: relativePath, Reason: windowsVolumeReasonConstant}
	}

	cleanedPath := path.Clean(strings.ReplaceAll(trimmedPath, `\`, "/"))
	if cleanedPath == parentTraversalSegmentConstant || strings.HasPrefix(cleanedPath, parentTraversalSegmentConstant+"/") {
		return "", InvalidPathError{Path: relativePath, Reason: parentTraversalReasonConstant}
	}
	if cleanedPath == "." {
		return "", InvalidPathError{Path: relativePath, Reason: emptyPathReasonConstant}
	}
	return cleanedPath, nil
}
