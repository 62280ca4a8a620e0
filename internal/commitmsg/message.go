package commitmsg

import (
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	// DefaultTemplateConstant is used when no commit message template is configured.
	DefaultTemplateConstant = "repatch: apply {count} edit(s) on {branch}"

	templateStartTagConstant    = "{"
	templateEndTagConstant      = "}"
	branchPlaceholderConstant   = "branch"
	countPlaceholderConstant    = "count"
	filesPlaceholderConstant    = "files"
	fileListSeparatorConstant   = ", "
	emptyBranchFallbackConstant = "HEAD"
)

// TemplateValues carries the substitution values available to commit message templates.
type TemplateValues struct {
	BranchName   string
	ChangedPaths []string
}

// Render expands the commit message template with the provided values. Placeholders
// without a known value are left untouched so callers can spot template mistakes in
// the resulting commit history. An empty template renders the default template.
func Render(templateText string, values TemplateValues) string {
	if len(strings.TrimSpace(templateText)) == 0 {
		templateText = DefaultTemplateConstant
	}

	branchName := values.BranchName
	if len(branchName) == 0 {
		branchName = emptyBranchFallbackConstant
	}

	substitutionValues := map[string]interface{}{
		branchPlaceholderConstant: branchName,
		countPlaceholderConstant:  strconv.Itoa(len(values.ChangedPaths)),
		filesPlaceholderConstant:  strings.Join(values.ChangedPaths, fileListSeparatorConstant),
	}

	return fasttemplate.ExecuteStringStd(templateText, templateStartTagConstant, templateEndTagConstant, substitutionValues)
}
