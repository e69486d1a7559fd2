package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/codeglide/sidecar/internal/editorclient"
	"github.com/codeglide/sidecar/pkg/types"
)

// AnchorEditTool performs a search-and-replace scoped to a single
// AnchoredSymbol: the agent supplies the symbol's current
// content and the replacement, and the tool verifies the live file
// still contains that exact content at the symbol's possible range
// before applying the edit through the editor, so a stale anchor never
// silently clobbers unrelated code.
type AnchorEditTool struct{}

func NewAnchorEditTool() *AnchorEditTool { return &AnchorEditTool{} }

func (t *AnchorEditTool) ID() string { return "anchor_edit" }
func (t *AnchorEditTool) Description() string {
	return "Replace the content of a previously anchored symbol with new content, verified against the symbol's current range in the file."
}
func (t *AnchorEditTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"symbol": {
				"type": "object",
				"properties": {
					"identifier": {
						"type": "object",
						"properties": {
							"name": {"type": "string"},
							"fsPath": {"type": "string"}
						},
						"required": ["name"]
					},
					"content": {"type": "string"},
					"possibleRange": {
						"type": "object",
						"properties": {
							"startLine": {"type": "integer"},
							"startCol": {"type": "integer"},
							"endLine": {"type": "integer"},
							"endCol": {"type": "integer"}
						}
					}
				},
				"required": ["identifier", "content", "possibleRange"]
			},
			"new_content": {"type": "string", "description": "The replacement text for the anchored symbol"}
		},
		"required": ["symbol", "new_content"]
	}`)
}

type anchorEditInput struct {
	Symbol     types.AnchoredSymbol `json:"symbol"`
	NewContent string               `json:"new_content"`
}

func (t *AnchorEditTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in anchorEditInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if in.Symbol.Identifier.FSPath == nil || *in.Symbol.Identifier.FSPath == "" {
		return nil, fmt.Errorf("anchor_edit: symbol.identifier.fsPath is required")
	}

	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}

	open, err := c.OpenFile(ctx, editorclient.OpenFileRequest{FSPath: *in.Symbol.Identifier.FSPath})
	if err != nil {
		return nil, err
	}
	if !strings.Contains(open.Content, in.Symbol.Content) {
		return &Result{
			Title:    "Anchor is stale",
			Output:   "The file no longer contains the anchored symbol's recorded content; re-anchor before editing.",
			Metadata: map[string]any{"stale": true},
		}, nil
	}

	edit := editorclient.Edit{NewText: in.NewContent}
	edit.Range.Start = editorclient.Position{Line: in.Symbol.PossibleRange.StartLine, Column: in.Symbol.PossibleRange.StartCol}
	edit.Range.End = editorclient.Position{Line: in.Symbol.PossibleRange.EndLine, Column: in.Symbol.PossibleRange.EndCol}

	resp, err := c.ApplyEdits(ctx, editorclient.ApplyEditsRequest{
		FSPath: *in.Symbol.Identifier.FSPath,
		Edits:  []editorclient.Edit{edit},
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Title:  fmt.Sprintf("Edited %s", in.Symbol.Identifier.Name),
		Output: fmt.Sprintf("applied=%v", resp.Applied),
		Metadata: map[string]any{
			"fs_file_path": resp.FSPath,
			"symbol":       in.Symbol.Identifier.Name,
			"applied":      resp.Applied,
		},
	}, nil
}

func (t *AnchorEditTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }
