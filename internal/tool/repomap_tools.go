package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/codeglide/sidecar/internal/repomap"
)

// RepoMapTool renders the PageRank-ordered, token-budgeted repo map
// for the agent's workspace.
type RepoMapTool struct {
	workDir string
	rm      *repomap.RepoMap
}

func NewRepoMapTool(workDir string) *RepoMapTool {
	return &RepoMapTool{workDir: workDir, rm: repomap.New(workDir, 5*time.Minute)}
}

func (t *RepoMapTool) ID() string { return "repo_map" }
func (t *RepoMapTool) Description() string {
	return "Render a ranked outline of the workspace's most important symbols, budgeted to a token count."
}
func (t *RepoMapTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"token_budget": {"type": "integer", "description": "Maximum tokens to spend on the outline; defaults to 5000"}
		}
	}`)
}

type repoMapInput struct {
	TokenBudget int `json:"token_budget"`
}

func (t *RepoMapTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in repoMapInput
	_ = json.Unmarshal(input, &in)
	budget := in.TokenBudget
	if budget <= 0 {
		budget = repomap.DefaultTokenBudget
	}

	outline, err := t.rm.RenderOutline(budget)
	if err != nil {
		return nil, fmt.Errorf("render repo map: %w", err)
	}
	return &Result{
		Title:    "Repository map",
		Output:   outline,
		Metadata: map[string]any{"token_budget": budget},
	}, nil
}

func (t *RepoMapTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// SearchDefinitionsTool exposes the repo map's fuzzy/exact symbol
// search as an LLM tool.
type SearchDefinitionsTool struct {
	workDir string
	rm      *repomap.RepoMap
}

func NewSearchDefinitionsTool(workDir string) *SearchDefinitionsTool {
	return &SearchDefinitionsTool{workDir: workDir, rm: repomap.New(workDir, 5*time.Minute)}
}

func (t *SearchDefinitionsTool) ID() string { return "search_definitions" }
func (t *SearchDefinitionsTool) Description() string {
	return "Search the workspace's symbol tags by name, by defining-line content, or both, with optional fuzzy matching."
}
func (t *SearchDefinitionsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"fuzzy": {"type": "boolean", "description": "Allow approximate name matches"},
			"mode": {"type": "string", "enum": ["name", "content", "both"], "description": "Defaults to name"}
		},
		"required": ["query"]
	}`)
}

type searchDefinitionsInput struct {
	Query string `json:"query"`
	Fuzzy bool   `json:"fuzzy"`
	Mode  string `json:"mode"`
}

func (t *SearchDefinitionsTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in searchDefinitionsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	mode := repomap.SearchMode(in.Mode)
	if mode == "" {
		mode = repomap.SearchByName
	}

	tags, err := t.rm.Search(in.Query, in.Fuzzy, mode)
	if err != nil {
		return nil, fmt.Errorf("search definitions: %w", err)
	}
	out, _ := json.MarshalIndent(tags, "", "  ")
	return &Result{
		Title:    fmt.Sprintf("%d match(es) for %q", len(tags), in.Query),
		Output:   string(out),
		Metadata: map[string]any{"count": len(tags)},
	}, nil
}

func (t *SearchDefinitionsTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }
