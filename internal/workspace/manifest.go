package workspace

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	manifestReadErrorTemplateConstant     = "failed to read edit manifest %s: %w"
	manifestDecodeErrorTemplateConstant   = "failed to decode edit manifest: %w"
	manifestEntryErrorTemplateConstant    = "edit manifest entry %d: %w"
	manifestConflictTemplateConstant      = "edit manifest entry %d (%s) declares both content and delete"
	manifestWithoutEditsMessageConstant   = "edit manifest declares no edits"
)

// ErrManifestWithoutEdits indicates the manifest listed no edit entries.
var ErrManifestWithoutEdits = errors.New(manifestWithoutEditsMessageConstant)

type manifestDocument struct {
	Edits []manifestEntry `yaml:"edits"`
}

type manifestEntry struct {
	Path    string  `yaml:"path"`
	Content *string `yaml:"content"`
	Delete  bool    `yaml:"delete"`
}

// LoadManifest reads and parses an edit manifest file into an EditSet.
func LoadManifest(manifestPath string) (*EditSet, error) {
	manifestData, readError := os.ReadFile(manifestPath)
	if readError != nil {
		return nil, fmt.Errorf(manifestReadErrorTemplateConstant, manifestPath, readError)
	}
	return ParseManifest(manifestData)
}

// ParseManifest decodes manifest YAML into a validated EditSet.
func ParseManifest(manifestData []byte) (*EditSet, error) {
	document := manifestDocument{}
	if decodeError := yaml.Unmarshal(manifestData, &document); decodeError != nil {
		return nil, fmt.Errorf(manifestDecodeErrorTemplateConstant, decodeError)
	}
	if len(document.Edits) == 0 {
		return nil, ErrManifestWithoutEdits
	}

	editSet := NewEditSet()
	for entryIndex, entry := range document.Edits {
		if entry.Delete && entry.Content != nil {
			return nil, fmt.Errorf(manifestConflictTemplateConstant, entryIndex, entry.Path)
		}

		var registrationError error
		if entry.Delete {
			registrationError = editSet.PutDeletion(entry.Path)
		} else {
			proposedContent := ""
			if entry.Content != nil {
				proposedContent = *entry.Content
			}
			registrationError = editSet.Put(entry.Path, proposedContent)
		}
		if registrationError != nil {
			return nil, fmt.Errorf(manifestEntryErrorTemplateConstant, entryIndex, registrationError)
		}
	}

	return editSet, nil
}
