package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"
)

// filterByRegex keeps only the paths matching pattern.
func filterByRegex(paths []string, pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range paths {
		if re.MatchString(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

const regexFileSearchDescription = `Searches file and directory NAMES (not contents) in the workspace by regex.

Usage:
- Distinct from grep, which searches file contents — this matches against paths
- Useful for locating files by a naming convention ("*_test.go", "handler.*\.ts")`

// RegexFileSearchTool finds files whose path matches a regex, as
// opposed to GrepTool which matches file contents.
type RegexFileSearchTool struct {
	workDir string
}

func NewRegexFileSearchTool(workDir string) *RegexFileSearchTool {
	return &RegexFileSearchTool{workDir: workDir}
}

func (t *RegexFileSearchTool) ID() string          { return "regex_file_search" }
func (t *RegexFileSearchTool) Description() string { return regexFileSearchDescription }

func (t *RegexFileSearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "Regex to match against file paths"},
			"path": {"type": "string", "description": "Directory to search under. Defaults to the workspace root."}
		},
		"required": ["pattern"]
	}`)
}

type regexFileSearchInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

func (t *RegexFileSearchTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in regexFileSearchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	searchPath := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		searchPath = toolCtx.WorkDir
	}
	if in.Path != "" {
		searchPath = in.Path
	}

	// ripgrep's --files lists every non-ignored path; piping its regex
	// filter through --regexp matches against the path itself when no
	// content pattern is given alongside --files.
	cmd := exec.CommandContext(ctx, "rg", "--files", searchPath)
	output, _ := cmd.Output()

	var matches []string
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line == "" {
			continue
		}
		matches = append(matches, line)
	}

	matched, err := filterByRegex(matches, in.Pattern)
	if err != nil {
		return nil, fmt.Errorf("regex_file_search: %w", err)
	}

	const maxMatches = 200
	truncated := false
	if len(matched) > maxMatches {
		matched = matched[:maxMatches]
		truncated = true
	}

	out := strings.Join(matched, "\n")
	if truncated {
		out += fmt.Sprintf("\n\n(showing first %d matches)", maxMatches)
	}
	if len(matched) == 0 {
		out = "No matching file paths found"
	}

	return &Result{
		Title:    fmt.Sprintf("%d path(s) matched", len(matched)),
		Output:   out,
		Metadata: map[string]any{"pattern": in.Pattern, "count": len(matched)},
	}, nil
}

func (t *RegexFileSearchTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }
