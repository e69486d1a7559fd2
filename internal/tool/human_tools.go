package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"
)

// askCallbackKey is the Context.Extra key under which the session
// engine may stash a synchronous callback of the form
// func(question string, choices []string) (string, error); when
// present the human-interaction tools block on it to obtain a real
// answer, otherwise they degrade to reporting the question as their
// own output so the exchange can surface it to the chat transcript.
const askCallbackKey = "ask_callback"

// AskCallback is the callback signature human-interaction tools expect
// under Context.Extra["ask_callback"].
type AskCallback func(question string, choices []string) (string, error)

type askCallback = AskCallback

func askCallbackFrom(toolCtx *Context) askCallback {
	if toolCtx == nil || toolCtx.Extra == nil {
		return nil
	}
	cb, _ := toolCtx.Extra[askCallbackKey].(askCallback)
	return cb
}

// --- ask_followup_question ---

type AskFollowupQuestionTool struct{}

func NewAskFollowupQuestionTool() *AskFollowupQuestionTool { return &AskFollowupQuestionTool{} }

func (t *AskFollowupQuestionTool) ID() string { return "ask_followup_question" }
func (t *AskFollowupQuestionTool) Description() string {
	return "Ask the user a free-form clarifying question and wait for their reply before continuing."
}
func (t *AskFollowupQuestionTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"question": {"type": "string"}},
		"required": ["question"]
	}`)
}

type askFollowupInput struct {
	Question string `json:"question"`
}

func (t *AskFollowupQuestionTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in askFollowupInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if toolCtx != nil {
		toolCtx.SetMetadata("Asking followup question", map[string]any{"question": in.Question})
	}

	if cb := askCallbackFrom(toolCtx); cb != nil {
		answer, err := cb(in.Question, nil)
		if err != nil {
			return nil, err
		}
		return &Result{Title: in.Question, Output: answer}, nil
	}
	return &Result{
		Title:    in.Question,
		Output:   in.Question,
		Metadata: map[string]any{"awaiting_human": true},
	}, nil
}

func (t *AskFollowupQuestionTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- ask_choice ---

type AskChoiceTool struct{}

func NewAskChoiceTool() *AskChoiceTool { return &AskChoiceTool{} }

func (t *AskChoiceTool) ID() string { return "ask_choice" }
func (t *AskChoiceTool) Description() string {
	return "Ask the user to pick one of a fixed set of options and wait for their choice before continuing."
}
func (t *AskChoiceTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"question": {"type": "string"},
			"choices": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["question", "choices"]
	}`)
}

type askChoiceInput struct {
	Question string   `json:"question"`
	Choices  []string `json:"choices"`
}

func (t *AskChoiceTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in askChoiceInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if len(in.Choices) == 0 {
		return nil, fmt.Errorf("ask_choice: at least one choice is required")
	}
	if toolCtx != nil {
		toolCtx.SetMetadata("Asking for a choice", map[string]any{"question": in.Question, "choices": in.Choices})
	}

	if cb := askCallbackFrom(toolCtx); cb != nil {
		answer, err := cb(in.Question, in.Choices)
		if err != nil {
			return nil, err
		}
		return &Result{Title: in.Question, Output: answer}, nil
	}
	return &Result{
		Title:    in.Question,
		Output:   fmt.Sprintf("%s\nOptions: %s", in.Question, strings.Join(in.Choices, ", ")),
		Metadata: map[string]any{"awaiting_human": true, "choices": in.Choices},
	}, nil
}

func (t *AskChoiceTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- thinking ---

// ThinkingTool gives the agent a scratchpad to reason in before
// acting, without producing any side effect; the content is echoed
// back verbatim so it appears in the transcript the same way any other
// tool call/result pair does.
type ThinkingTool struct{}

func NewThinkingTool() *ThinkingTool { return &ThinkingTool{} }

func (t *ThinkingTool) ID() string { return "thinking" }
func (t *ThinkingTool) Description() string {
	return "Record a private reasoning step before choosing the next action. Has no effect on the workspace."
}
func (t *ThinkingTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"thought": {"type": "string"}},
		"required": ["thought"]
	}`)
}

type thinkingInput struct {
	Thought string `json:"thought"`
}

func (t *ThinkingTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in thinkingInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	return &Result{Title: "Thinking", Output: in.Thought}, nil
}

func (t *ThinkingTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }
