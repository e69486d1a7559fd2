package repomap

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/codeglide/sidecar/pkg/types"
)

// SearchMode selects which part of a Tag a query is matched against.
type SearchMode string

const (
	SearchByName    SearchMode = "name"
	SearchByContent SearchMode = "content"
	SearchBoth      SearchMode = "both"
)

// fuzzyMaxRatio is the maximum Levenshtein distance, relative to
// query length, that still counts as a fuzzy match.
const fuzzyMaxRatio = 0.34

// SearchDefinitionsFlattened returns every definition tag across idx
// matching query, either by exact/fuzzy name match or by substring
// match against the defining line's content (content mode requires the
// caller to have indexed with file contents available — see
// SearchDefinitionsFlattenedWithContent).
func SearchDefinitionsFlattened(idx *types.TagIndex, query string, fuzzy bool, mode SearchMode) []types.Tag {
	return SearchDefinitionsFlattenedWithContent(idx, nil, query, fuzzy, mode)
}

// SearchDefinitionsFlattenedWithContent is the full form: fileContents
// maps fsPath -> file content, used for content-mode matching.
func SearchDefinitionsFlattenedWithContent(idx *types.TagIndex, fileContents map[string]string, query string, fuzzy bool, mode SearchMode) []types.Tag {
	if mode == "" {
		mode = SearchByName
	}
	q := strings.ToLower(query)

	var out []types.Tag
	for _, names := range idx.Definitions {
		for name, tags := range names {
			nameMatch := false
			if mode == SearchByName || mode == SearchBoth {
				nameMatch = matchesName(strings.ToLower(name), q, fuzzy)
			}

			for _, tag := range tags {
				contentMatch := false
				if (mode == SearchByContent || mode == SearchBoth) && fileContents != nil {
					if content, ok := fileContents[tag.FSPath]; ok {
						contentMatch = matchesContentLine(content, tag.Line, q)
					}
				}

				if nameMatch || contentMatch {
					out = append(out, tag)
				}
			}
		}
	}
	return out
}

func matchesName(name, query string, fuzzy bool) bool {
	if strings.Contains(name, query) {
		return true
	}
	if !fuzzy {
		return false
	}
	dist := levenshtein.ComputeDistance(name, query)
	maxAllowed := int(float64(len(query)) * fuzzyMaxRatio)
	if maxAllowed < 1 {
		maxAllowed = 1
	}
	return dist <= maxAllowed
}

func matchesContentLine(content string, line int, query string) bool {
	lines := strings.Split(content, "\n")
	if line < 1 || line > len(lines) {
		return false
	}
	return strings.Contains(strings.ToLower(lines[line-1]), query)
}
