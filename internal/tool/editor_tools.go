package tool

import (
	"context"
	"encoding/json"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/codeglide/sidecar/internal/editorclient"
)

// editorClientKey is the Context.Extra key under which the session's
// editorclient.Client is stashed by the session engine before a tool
// executes (one client per session, since each session may
// target a different editor window).
const editorClientKey = "editor_client"

func editorClientFrom(toolCtx *Context) (*editorclient.Client, error) {
	if toolCtx == nil || toolCtx.Extra == nil {
		return nil, fmt.Errorf("no editor client in tool context")
	}
	c, ok := toolCtx.Extra[editorClientKey].(*editorclient.Client)
	if !ok || c == nil {
		return nil, fmt.Errorf("no editor client in tool context")
	}
	return c, nil
}

const positionSchema = `{
	"type": "object",
	"properties": {
		"line": {"type": "integer", "description": "Zero-based line number"},
		"column": {"type": "integer", "description": "Zero-based column number"}
	},
	"required": ["line", "column"]
}`

func positionParam(extra string) string {
	return fmt.Sprintf(`"position": %s%s`, positionSchema, extra)
}

// goToTool is the shared shape of go_to_definition / go_to_type_definition
// / go_to_implementation / go_to_references: all four take an
// fs_file_path + position and return a list of locations, differing
// only in which editorclient endpoint they hit.
type goToTool struct {
	id          string
	description string
	call        func(c *editorclient.Client, ctx context.Context, req editorclient.GoToDefinitionRequest) (*editorclient.GoToDefinitionResponse, error)
}

func (t *goToTool) ID() string          { return t.id }
func (t *goToTool) Description() string { return t.description }

func (t *goToTool) Parameters() json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"type": "object",
		"properties": {
			"fs_file_path": {"type": "string", "description": "Workspace-relative file path"},
			%s
		},
		"required": ["fs_file_path", "position"]
	}`, positionParam("")))
}

type goToInput struct {
	FSPath   string                 `json:"fs_file_path"`
	Position editorclient.Position  `json:"position"`
}

func (t *goToTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in goToInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}
	resp, err := t.call(c, ctx, editorclient.GoToDefinitionRequest{FSPath: in.FSPath, Position: in.Position})
	if err != nil {
		return nil, err
	}
	out, _ := json.MarshalIndent(resp.Locations, "", "  ")
	return &Result{
		Title:  fmt.Sprintf("%d location(s)", len(resp.Locations)),
		Output: string(out),
		Metadata: map[string]any{
			"fs_file_path": resp.FSPath,
			"count":        len(resp.Locations),
		},
	}, nil
}

func (t *goToTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

func NewGoToDefinitionTool() Tool {
	return &goToTool{
		id:          "go_to_definition",
		description: "Resolve the symbol at a file position to its definition site(s) via the editor's language server.",
		call:        (*editorclient.Client).GoToDefinition,
	}
}

func NewGoToTypeDefinitionTool() Tool {
	return &goToTool{
		id:          "go_to_type_definition",
		description: "Resolve the symbol at a file position to the definition of its type via the editor's language server.",
		call:        (*editorclient.Client).GoToTypeDefinition,
	}
}

func NewGoToImplementationTool() Tool {
	return &goToTool{
		id:          "go_to_implementation",
		description: "Resolve an interface or abstract symbol at a file position to its concrete implementation site(s).",
		call:        (*editorclient.Client).GoToImplementation,
	}
}

func NewGoToReferencesTool() Tool {
	return &goToTool{
		id:          "go_to_references",
		description: "Find every reference to the symbol at a file position across the workspace.",
		call:        (*editorclient.Client).GoToReferences,
	}
}

// --- previous_word_at_position ---

type PreviousWordTool struct{}

func NewPreviousWordTool() *PreviousWordTool { return &PreviousWordTool{} }

func (t *PreviousWordTool) ID() string { return "previous_word_at_position" }
func (t *PreviousWordTool) Description() string {
	return "Return the word immediately preceding a file position, used to disambiguate partial edits."
}
func (t *PreviousWordTool) Parameters() json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"type": "object",
		"properties": {
			"fs_file_path": {"type": "string"},
			%s
		},
		"required": ["fs_file_path", "position"]
	}`, positionParam("")))
}

func (t *PreviousWordTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in goToInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}
	resp, err := c.PreviousWordAtPosition(ctx, editorclient.PreviousWordRequest{FSPath: in.FSPath, Position: in.Position})
	if err != nil {
		return nil, err
	}
	return &Result{Title: resp.Word, Output: resp.Word, Metadata: map[string]any{"fs_file_path": resp.FSPath}}, nil
}

func (t *PreviousWordTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- recent_edits ---

type RecentEditsTool struct{}

func NewRecentEditsTool() *RecentEditsTool { return &RecentEditsTool{} }

func (t *RecentEditsTool) ID() string { return "recent_edits" }
func (t *RecentEditsTool) Description() string {
	return "List recent edits made in the editor, optionally scoped to a single file."
}
func (t *RecentEditsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"fs_file_path": {"type": "string", "description": "Optional: restrict to edits in this file"}
		}
	}`)
}

func (t *RecentEditsTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in editorclient.RecentEditsRequest
	_ = json.Unmarshal(input, &in)
	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}
	resp, err := c.RecentEdits(ctx, in)
	if err != nil {
		return nil, err
	}
	out, _ := json.MarshalIndent(resp.Edits, "", "  ")
	return &Result{Title: fmt.Sprintf("%d recent edit(s)", len(resp.Edits)), Output: string(out)}, nil
}

func (t *RecentEditsTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- file_diagnostics ---

type FileDiagnosticsTool struct{}

func NewFileDiagnosticsTool() *FileDiagnosticsTool { return &FileDiagnosticsTool{} }

func (t *FileDiagnosticsTool) ID() string { return "file_diagnostics" }
func (t *FileDiagnosticsTool) Description() string {
	return "Fetch compiler/linter diagnostics for a file from the editor's language server."
}
func (t *FileDiagnosticsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"fs_file_path": {"type": "string"}},
		"required": ["fs_file_path"]
	}`)
}

func (t *FileDiagnosticsTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in editorclient.FileDiagnosticsRequest
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}
	resp, err := c.FileDiagnostics(ctx, in)
	if err != nil {
		return nil, err
	}
	out, _ := json.MarshalIndent(resp.Diagnostics, "", "  ")
	return &Result{
		Title:  fmt.Sprintf("%d diagnostic(s) in %s", len(resp.Diagnostics), resp.FSPath),
		Output: string(out),
	}, nil
}

func (t *FileDiagnosticsTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- open_file ---

type OpenFileTool struct{}

func NewOpenFileTool() *OpenFileTool { return &OpenFileTool{} }

func (t *OpenFileTool) ID() string          { return "open_file" }
func (t *OpenFileTool) Description() string { return "Open a file in the editor and return its current contents." }
func (t *OpenFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"fs_file_path": {"type": "string"}},
		"required": ["fs_file_path"]
	}`)
}

func (t *OpenFileTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in editorclient.OpenFileRequest
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}
	resp, err := c.OpenFile(ctx, in)
	if err != nil {
		return nil, err
	}
	return &Result{Title: resp.FSPath, Output: resp.Content}, nil
}

func (t *OpenFileTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- create_file ---

type CreateFileTool struct{}

func NewCreateFileTool() *CreateFileTool { return &CreateFileTool{} }

func (t *CreateFileTool) ID() string          { return "create_file" }
func (t *CreateFileTool) Description() string { return "Create a new file in the workspace through the editor." }
func (t *CreateFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"fs_file_path": {"type": "string"},
			"content": {"type": "string"}
		},
		"required": ["fs_file_path", "content"]
	}`)
}

func (t *CreateFileTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in editorclient.CreateFileRequest
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}
	resp, err := c.CreateFile(ctx, in)
	if err != nil {
		return nil, err
	}
	return &Result{Title: "created " + resp.FSPath, Output: "created " + resp.FSPath}, nil
}

func (t *CreateFileTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- apply_edits ---

type ApplyEditsTool struct{}

func NewApplyEditsTool() *ApplyEditsTool { return &ApplyEditsTool{} }

func (t *ApplyEditsTool) ID() string { return "apply_edits" }
func (t *ApplyEditsTool) Description() string {
	return "Apply a list of range-based text edits to a file through the editor."
}
func (t *ApplyEditsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"fs_file_path": {"type": "string"},
			"edits": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"range": {
							"type": "object",
							"properties": {
								"start": {"type": "object"},
								"end": {"type": "object"}
							}
						},
						"new_text": {"type": "string"}
					}
				}
			}
		},
		"required": ["fs_file_path", "edits"]
	}`)
}

func (t *ApplyEditsTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in editorclient.ApplyEditsRequest
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}
	resp, err := c.ApplyEdits(ctx, in)
	if err != nil {
		return nil, err
	}
	return &Result{
		Title:    fmt.Sprintf("applied %d edit(s) to %s", len(in.Edits), resp.FSPath),
		Output:   fmt.Sprintf("applied=%v", resp.Applied),
		Metadata: map[string]any{"fs_file_path": resp.FSPath, "applied": resp.Applied},
	}, nil
}

func (t *ApplyEditsTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- symbol_search ---

type SymbolSearchTool struct{}

func NewSymbolSearchTool() *SymbolSearchTool { return &SymbolSearchTool{} }

func (t *SymbolSearchTool) ID() string          { return "symbol_search" }
func (t *SymbolSearchTool) Description() string { return "Search the editor's symbol index by name." }
func (t *SymbolSearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"query": {"type": "string"}},
		"required": ["query"]
	}`)
}

func (t *SymbolSearchTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in editorclient.SymbolSearchRequest
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}
	resp, err := c.SymbolSearch(ctx, in)
	if err != nil {
		return nil, err
	}
	out, _ := json.MarshalIndent(resp.Symbols, "", "  ")
	return &Result{Title: fmt.Sprintf("%d symbol(s)", len(resp.Symbols)), Output: string(out)}, nil
}

func (t *SymbolSearchTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- terminal_output_new ---

type TerminalOutputTool struct{}

func NewTerminalOutputTool() *TerminalOutputTool { return &TerminalOutputTool{} }

func (t *TerminalOutputTool) ID() string { return "terminal_output_new" }
func (t *TerminalOutputTool) Description() string {
	return "Run a command in a new editor-managed terminal and capture its output."
}
func (t *TerminalOutputTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string"},
			"cwd": {"type": "string"}
		},
		"required": ["command"]
	}`)
}

func (t *TerminalOutputTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in editorclient.TerminalOutputRequest
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}
	resp, err := c.TerminalOutputNew(ctx, in)
	if err != nil {
		return nil, err
	}
	return &Result{
		Title:    fmt.Sprintf("exit %d", resp.ExitCode),
		Output:   resp.Output,
		Metadata: map[string]any{"exit_code": resp.ExitCode},
	}, nil
}

func (t *TerminalOutputTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- inlay_hints ---

type InlayHintsTool struct{}

func NewInlayHintsTool() *InlayHintsTool { return &InlayHintsTool{} }

func (t *InlayHintsTool) ID() string          { return "inlay_hints" }
func (t *InlayHintsTool) Description() string { return "Fetch inlay hints (inferred types, parameter names) for a file." }
func (t *InlayHintsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"fs_file_path": {"type": "string"}},
		"required": ["fs_file_path"]
	}`)
}

func (t *InlayHintsTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in editorclient.InlayHintsRequest
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}
	resp, err := c.InlayHints(ctx, in)
	if err != nil {
		return nil, err
	}
	out, _ := json.MarshalIndent(resp.Hints, "", "  ")
	return &Result{Title: fmt.Sprintf("%d hint(s)", len(resp.Hints)), Output: string(out)}, nil
}

func (t *InlayHintsTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- quick_fix_list / quick_fix_invoke ---

type QuickFixListTool struct{}

func NewQuickFixListTool() *QuickFixListTool { return &QuickFixListTool{} }

func (t *QuickFixListTool) ID() string { return "quick_fix_list" }
func (t *QuickFixListTool) Description() string {
	return "List quick fixes the language server offers at a file position."
}
func (t *QuickFixListTool) Parameters() json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"type": "object",
		"properties": {
			"fs_file_path": {"type": "string"},
			%s
		},
		"required": ["fs_file_path", "position"]
	}`, positionParam("")))
}

func (t *QuickFixListTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in editorclient.QuickFixListRequest
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}
	resp, err := c.QuickFixList(ctx, in)
	if err != nil {
		return nil, err
	}
	out, _ := json.MarshalIndent(resp.QuickFixes, "", "  ")
	return &Result{Title: fmt.Sprintf("%d quick fix(es)", len(resp.QuickFixes)), Output: string(out)}, nil
}

func (t *QuickFixListTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

type QuickFixInvokeTool struct{}

func NewQuickFixInvokeTool() *QuickFixInvokeTool { return &QuickFixInvokeTool{} }

func (t *QuickFixInvokeTool) ID() string          { return "quick_fix_invoke" }
func (t *QuickFixInvokeTool) Description() string { return "Apply a specific quick fix returned by quick_fix_list." }
func (t *QuickFixInvokeTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"fs_file_path": {"type": "string"},
			"quick_fix_id": {"type": "string"}
		},
		"required": ["fs_file_path", "quick_fix_id"]
	}`)
}

func (t *QuickFixInvokeTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in editorclient.QuickFixInvokeRequest
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}
	resp, err := c.QuickFixInvoke(ctx, in)
	if err != nil {
		return nil, err
	}
	return &Result{
		Title:    fmt.Sprintf("applied=%v", resp.Applied),
		Output:   fmt.Sprintf("applied=%v", resp.Applied),
		Metadata: map[string]any{"fs_file_path": resp.FSPath, "applied": resp.Applied},
	}, nil
}

func (t *QuickFixInvokeTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- undo_session_changes ---

type UndoSessionChangesTool struct{}

func NewUndoSessionChangesTool() *UndoSessionChangesTool { return &UndoSessionChangesTool{} }

func (t *UndoSessionChangesTool) ID() string { return "undo_session_changes" }
func (t *UndoSessionChangesTool) Description() string {
	return "Revert workspace edits made at or after a given exchange in this session."
}
func (t *UndoSessionChangesTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"exchange_id": {"type": "string"}
		},
		"required": ["exchange_id"]
	}`)
}

func (t *UndoSessionChangesTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in struct {
		ExchangeID string `json:"exchange_id"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}
	sessionID := ""
	if toolCtx != nil {
		sessionID = toolCtx.SessionID
	}
	resp, err := c.UndoSessionChanges(ctx, editorclient.UndoSessionChangesRequest{
		SessionID:  sessionID,
		ExchangeID: in.ExchangeID,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Title:    "undo session changes",
		Output:   fmt.Sprintf("reverted=%v", resp.Reverted),
		Metadata: map[string]any{"reverted": resp.Reverted},
	}, nil
}

func (t *UndoSessionChangesTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- new_exchange ---

type NewExchangeTool struct{}

func NewNewExchangeTool() *NewExchangeTool { return &NewExchangeTool{} }

func (t *NewExchangeTool) ID() string { return "new_exchange" }
func (t *NewExchangeTool) Description() string {
	return "Ask the editor to open a fresh exchange in the current session."
}
func (t *NewExchangeTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *NewExchangeTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	c, err := editorClientFrom(toolCtx)
	if err != nil {
		return nil, err
	}
	sessionID := ""
	if toolCtx != nil {
		sessionID = toolCtx.SessionID
	}
	resp, err := c.NewExchange(ctx, editorclient.NewExchangeRequest{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	return &Result{
		Title:    "new exchange",
		Output:   resp.ExchangeID,
		Metadata: map[string]any{"exchange_id": resp.ExchangeID},
	}, nil
}

func (t *NewExchangeTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }
