// Package repomap builds a tag-graph of code symbols and renders a
// token-budgeted textual outline of the repository's most relevant
// definitions.
//
// Tree-sitter grammars themselves are named out of scope:
// this package substitutes a per-language regex/heuristic tagger that
// satisfies the exact same Tag/TagIndex contract, so the
// PageRank and budget-rendering logic downstream is identical to a
// tree-sitter-backed implementation.
package repomap

import (
	"regexp"
	"strings"

	"github.com/codeglide/sidecar/pkg/types"
)

// languageTagger extracts definition and reference tags from a single
// file's content. Each supported language gets its own set of regexes
// tuned to that language's declaration syntax.
type languageTagger struct {
	ext         string
	definitions []*regexp.Regexp
	identifier  *regexp.Regexp
}

var taggers = []languageTagger{
	{
		ext: ".go",
		definitions: []*regexp.Regexp{
			regexp.MustCompile(`^func\s+(?:\([^)]*\)\s+)?(\w+)\s*\(`),
			regexp.MustCompile(`^type\s+(\w+)\s+(?:struct|interface)\b`),
			regexp.MustCompile(`^(?:const|var)\s+(\w+)\b`),
		},
		identifier: regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`),
	},
	{
		ext: ".py",
		definitions: []*regexp.Regexp{
			regexp.MustCompile(`^\s*def\s+(\w+)\s*\(`),
			regexp.MustCompile(`^\s*class\s+(\w+)\b`),
		},
		identifier: regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`),
	},
	{
		ext: ".ts",
		definitions: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?function\s+(\w+)\s*\(`),
			regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)\b`),
			regexp.MustCompile(`^\s*(?:export\s+)?interface\s+(\w+)\b`),
			regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=`),
		},
		identifier: regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]*`),
	},
	{
		ext: ".js",
		definitions: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?function\s+(\w+)\s*\(`),
			regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)\b`),
			regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=`),
		},
		identifier: regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]*`),
	},
	{
		ext: ".rs",
		definitions: []*regexp.Regexp{
			regexp.MustCompile(`^\s*(?:pub\s+)?fn\s+(\w+)\s*[\(<]`),
			regexp.MustCompile(`^\s*(?:pub\s+)?struct\s+(\w+)\b`),
			regexp.MustCompile(`^\s*(?:pub\s+)?enum\s+(\w+)\b`),
			regexp.MustCompile(`^\s*(?:pub\s+)?trait\s+(\w+)\b`),
		},
		identifier: regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`),
	},
}

var keywords = map[string]bool{
	"func": true, "type": true, "struct": true, "interface": true, "const": true,
	"var": true, "if": true, "else": true, "for": true, "range": true, "return": true,
	"package": true, "import": true, "def": true, "class": true, "self": true,
	"function": true, "export": true, "default": true, "let": true, "new": true,
	"this": true, "public": true, "private": true, "static": true, "void": true,
	"fn": true, "pub": true, "enum": true, "trait": true, "impl": true, "mod": true,
	"true": true, "false": true, "nil": true, "null": true, "None": true, "from": true,
}

func taggerFor(fsPath string) *languageTagger {
	for i := range taggers {
		if strings.HasSuffix(fsPath, taggers[i].ext) {
			return &taggers[i]
		}
	}
	return nil
}

// TagFile parses content and appends every Tag it finds (definitions
// and references) for fsPath into idx.
func TagFile(idx *types.TagIndex, fsPath, content string) {
	tagger := taggerFor(fsPath)
	if tagger == nil {
		return
	}
	idx.AddFile(fsPath)

	lines := strings.Split(content, "\n")
	defined := make(map[string]bool)

	for lineNo, line := range lines {
		for _, re := range tagger.definitions {
			m := re.FindStringSubmatch(line)
			if len(m) < 2 {
				continue
			}
			name := m[1]
			idx.AddDefinition(fsPath, types.Tag{
				FSPath: fsPath,
				Name:   name,
				Kind:   types.TagDefinition,
				Line:   lineNo + 1,
			})
			defined[name] = true
		}
	}

	// References: every identifier on every line that isn't itself a
	// definition site and isn't a language keyword is a candidate
	// reference. This over-approximates (it will also catch local
	// variable uses) which is acceptable for ranking purposes — the
	// downstream PageRank only cares about which files mention which
	// defined names.
	for _, line := range lines {
		for _, match := range tagger.identifier.FindAllString(line, -1) {
			if keywords[match] || defined[match] {
				continue
			}
			idx.AddReference(fsPath, match)
		}
	}
}

// SupportedExtension reports whether fsPath has a tagger registered
// for its extension.
func SupportedExtension(fsPath string) bool {
	return taggerFor(fsPath) != nil
}
