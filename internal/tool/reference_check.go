package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/codeglide/sidecar/internal/editorclient"
	"github.com/codeglide/sidecar/internal/llmbroker"
)

// ReferenceCheckTool runs after an anchor_edit: it collects every
// reference to the edited symbol and asks the LLM Broker whether any
// caller likely needs a follow-up edit given what changed.
// It never applies anything itself — it only reports candidates for
// the agent to act on next.
type ReferenceCheckTool struct{}

func NewReferenceCheckTool() *ReferenceCheckTool { return &ReferenceCheckTool{} }

func (t *ReferenceCheckTool) ID() string { return "reference_check" }
func (t *ReferenceCheckTool) Description() string {
	return "After editing a symbol, check its references across the workspace and flag call sites that likely need a follow-up edit."
}
func (t *ReferenceCheckTool) Parameters() json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"type": "object",
		"properties": {
			"fs_file_path": {"type": "string", "description": "File the edited symbol lives in"},
			%s,
			"change_summary": {"type": "string", "description": "What changed about the symbol (signature, behavior, etc.)"}
		},
		"required": ["fs_file_path", "position", "change_summary"]
	}`, positionParam("")))
}

type referenceCheckInput struct {
	FSPath        string                `json:"fs_file_path"`
	Position      editorclient.Position `json:"position"`
	ChangeSummary string                `json:"change_summary"`
}

// referenceCheckDeps mirrors mctsDeps: the session engine stashes the
// broker/provider/model the reference check should use to judge
// whether a reference needs follow-up.
func referenceCheckDeps(toolCtx *Context) (*llmbroker.Broker, string, string, error) {
	if toolCtx == nil || toolCtx.Extra == nil {
		return nil, "", "", fmt.Errorf("reference_check: missing tool context")
	}
	broker, ok := toolCtx.Extra[mctsBrokerKey].(*llmbroker.Broker)
	if !ok || broker == nil {
		return nil, "", "", fmt.Errorf("reference_check: no llm broker in tool context")
	}
	providerKey, _ := toolCtx.Extra[mctsProviderKey].(string)
	modelID, _ := toolCtx.Extra[mctsModelKey].(string)
	return broker, providerKey, modelID, nil
}

func (t *ReferenceCheckTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in referenceCheckInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}
	refs, err := c.GoToReferences(ctx, editorclient.GoToDefinitionRequest{FSPath: in.FSPath, Position: in.Position})
	if err != nil {
		return nil, err
	}
	if len(refs.Locations) == 0 {
		return &Result{Title: "No references found", Output: "The edited symbol has no other references in the workspace."}, nil
	}

	broker, providerKey, modelID, err := referenceCheckDeps(toolCtx)
	if err != nil {
		// Without a broker we can still hand back the raw reference
		// list; the judgement step is a best-effort enrichment.
		out, _ := json.MarshalIndent(refs.Locations, "", "  ")
		return &Result{
			Title:    fmt.Sprintf("%d reference(s), unjudged", len(refs.Locations)),
			Output:   string(out),
			Metadata: map[string]any{"count": len(refs.Locations), "judged": false},
		}, nil
	}

	var locList strings.Builder
	for _, loc := range refs.Locations {
		fmt.Fprintf(&locList, "- %s:%d\n", loc.FSPath, loc.Range.Start.Line)
	}

	prompt := fmt.Sprintf(
		"A symbol changed: %s\n\nReferences to that symbol:\n%s\nList the reference(s), if any, that likely need a follow-up edit because of this change. Respond with JSON: {\"flagged\": [{\"fs_file_path\": string, \"line\": integer, \"reason\": string}]}. If none need follow-up, respond {\"flagged\": []}.",
		in.ChangeSummary, locList.String(),
	)

	final, err := broker.StreamCompletion(ctx, providerKey, &llmbroker.Request{
		Model: modelID,
		Messages: []*schema.Message{
			{Role: schema.System, Content: "You review whether call sites need updating after a symbol change. Reply with JSON only."},
			{Role: schema.User, Content: prompt},
		},
		MaxTokens: 1024,
	}, nil)
	if err != nil {
		return nil, err
	}

	var judged struct {
		Flagged []struct {
			FSPath string `json:"fs_file_path"`
			Line   int    `json:"line"`
			Reason string `json:"reason"`
		} `json:"flagged"`
	}
	start := strings.IndexByte(final.Content, '{')
	end := strings.LastIndexByte(final.Content, '}')
	if start >= 0 && end > start {
		_ = json.Unmarshal([]byte(final.Content[start:end+1]), &judged)
	}

	out, _ := json.MarshalIndent(judged.Flagged, "", "  ")
	return &Result{
		Title:    fmt.Sprintf("%d reference(s) flagged for follow-up", len(judged.Flagged)),
		Output:   string(out),
		Metadata: map[string]any{"total_references": len(refs.Locations), "flagged": len(judged.Flagged), "judged": true},
	}, nil
}

func (t *ReferenceCheckTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }
