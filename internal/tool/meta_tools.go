package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/oklog/ulid/v2"

	"github.com/codeglide/sidecar/internal/llmbroker"
	"github.com/codeglide/sidecar/internal/mcts"
	"github.com/codeglide/sidecar/internal/storage"
	"github.com/codeglide/sidecar/pkg/types"
)

// --- attempt_completion ---

// AttemptCompletionTool is the terminal tool: calling it signals the
// agent believes the task is done. Both the ordinary session loop and
// the MCTS search treat it as the terminal action.
type AttemptCompletionTool struct{}

func NewAttemptCompletionTool() *AttemptCompletionTool { return &AttemptCompletionTool{} }

func (t *AttemptCompletionTool) ID() string { return "attempt_completion" }
func (t *AttemptCompletionTool) Description() string {
	return "Signal that the task is complete and report the final result to the user. This ends the current exchange."
}
func (t *AttemptCompletionTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"result": {"type": "string", "description": "A summary of what was accomplished"}
		},
		"required": ["result"]
	}`)
}

type attemptCompletionInput struct {
	Result string `json:"result"`
}

func (t *AttemptCompletionTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in attemptCompletionInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if toolCtx != nil {
		toolCtx.SetMetadata("Task complete", map[string]any{"result": in.Result})
	}
	return &Result{
		Title:    "Task complete",
		Output:   in.Result,
		Metadata: map[string]any{"terminal": true},
	}, nil
}

func (t *AttemptCompletionTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- mcts_search ---

// mctsBrokerKey/mctsProviderKey/mctsModelKey/mctsExecutorKey are the
// Context.Extra keys the session engine populates before this tool
// runs, mirroring editorClientKey.
const (
	mctsBrokerKey   = "llm_broker"
	mctsProviderKey = "llm_provider"
	mctsModelKey    = "llm_model"
	mctsExecutorKey = "tool_registry"
)

// McTSSearchTool runs a bounded Monte Carlo Tree Search over tool
// calls to find a good trajectory toward a goal, used when
// the agent is allowed to explore multiple candidate action sequences
// instead of committing to the first one it proposes.
type McTSSearchTool struct {
	settings mcts.AgentSettings
}

func NewMcTSSearchTool() *McTSSearchTool {
	return &McTSSearchTool{settings: mcts.DefaultAgentSettings()}
}

func (t *McTSSearchTool) ID() string { return "mcts_search" }
func (t *McTSSearchTool) Description() string {
	return "Explore multiple candidate tool-call trajectories toward a goal using Monte Carlo Tree Search, and report the best one found."
}
func (t *McTSSearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"goal": {"type": "string"},
			"max_iterations": {"type": "integer", "description": "Defaults to 10"}
		},
		"required": ["goal"]
	}`)
}

type mctsSearchInput struct {
	Goal          string `json:"goal"`
	MaxIterations int    `json:"max_iterations"`
}

func (t *McTSSearchTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in mctsSearchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	maxIterations := in.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 10
	}

	broker, providerKey, modelID, registry, err := mctsDeps(toolCtx)
	if err != nil {
		return nil, err
	}

	generator := newBrokerActionGenerator(broker, providerKey, modelID, registry)
	value := newBrokerValueFunction(broker, providerKey, modelID)
	executor := newRegistryToolExecutor(registry, toolCtx)

	search := mcts.NewSearch(generator, value, executor, t.settings)
	best, runErr := search.Run(ctx, in.Goal, maxIterations)
	if runErr != nil {
		return nil, fmt.Errorf("mcts_search: %w", runErr)
	}
	if best == nil {
		return &Result{Title: "No trajectory found", Output: "The search did not reach a completed trajectory."}, nil
	}

	path := search.Arena.PathTo(best.ID)

	var steps []string
	for _, id := range path {
		node := search.Arena.Get(id)
		if node == nil || node.Action == nil {
			continue
		}
		obsResult := ""
		if node.Observation != nil {
			obsResult = string(node.Observation.Result)
		}
		steps = append(steps, fmt.Sprintf("%s(%s) -> %s", node.Action.ToolName, string(node.Action.StructuredInput), obsResult))
	}

	plan := &types.Plan{
		ID:        ulid.Make().String(),
		NodeIDs:   path,
		CreatedAt: time.Now().UnixMilli(),
		Summary:   in.Goal,
	}
	if toolCtx != nil {
		plan.SessionID = toolCtx.SessionID
	}
	if store := t.planStore(toolCtx); store != nil {
		if err := store.Put(ctx, []string{"plans", plan.ID}, plan); err != nil {
			return nil, fmt.Errorf("mcts_search: persist plan: %w", err)
		}
	}

	return &Result{
		Title:  "Best trajectory",
		Output: strings.Join(steps, "\n"),
		Metadata: map[string]any{
			"node_count": len(search.Arena.AllNodes()),
			"best_q":     best.Q(),
			"depth":      best.Depth,
			"plan_id":    plan.ID,
		},
	}, nil
}

// planStore resolves the JSON store the winning trajectory is saved
// into, via the registry the session engine stashed in Extra.
func (t *McTSSearchTool) planStore(toolCtx *Context) *storage.Storage {
	if toolCtx == nil || toolCtx.Extra == nil {
		return nil
	}
	reg, ok := toolCtx.Extra[mctsExecutorKey].(*Registry)
	if !ok || reg == nil {
		return nil
	}
	return reg.Storage()
}

func (t *McTSSearchTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

func mctsDeps(toolCtx *Context) (*llmbroker.Broker, string, string, *Registry, error) {
	if toolCtx == nil || toolCtx.Extra == nil {
		return nil, "", "", nil, fmt.Errorf("mcts_search: missing tool context")
	}
	broker, ok := toolCtx.Extra[mctsBrokerKey].(*llmbroker.Broker)
	if !ok || broker == nil {
		return nil, "", "", nil, fmt.Errorf("mcts_search: no llm broker in tool context")
	}
	providerKey, _ := toolCtx.Extra[mctsProviderKey].(string)
	modelID, _ := toolCtx.Extra[mctsModelKey].(string)
	registry, ok := toolCtx.Extra[mctsExecutorKey].(*Registry)
	if !ok || registry == nil {
		return nil, "", "", nil, fmt.Errorf("mcts_search: no tool registry in tool context")
	}
	return broker, providerKey, modelID, registry, nil
}

// newBrokerActionGenerator builds an mcts.ActionGenerator that prompts
// the LLM Broker for the next ToolCall as JSON (AgentSettings.IsJSON),
// listing the trajectory so far and the available tool names.
func newBrokerActionGenerator(broker *llmbroker.Broker, providerKey, modelID string, registry *Registry) mcts.ActionGeneratorFunc {
	return func(ctx context.Context, traj mcts.Trajectory, settings mcts.AgentSettings) ([]types.ToolCall, error) {
		var toolList strings.Builder
		for _, id := range registry.IDs() {
			toolList.WriteString("- " + id + "\n")
		}

		trajJSON, _ := mcts.MarshalTrajectory(traj)
		prompt := fmt.Sprintf(
			"Goal: %s\n\nTrajectory so far:\n%s\n\nAvailable tools:\n%s\nRespond with a single JSON object {\"tool_name\": string, \"input\": object} naming the next tool call to try. If the goal is satisfied, respond with tool_name \"attempt_completion\".",
			traj.Goal, trajJSON, toolList.String(),
		)

		final, err := broker.StreamCompletion(ctx, providerKey, &llmbroker.Request{
			Model: modelID,
			Messages: []*schema.Message{
				{Role: schema.System, Content: "You propose the single next tool call for an exploratory search. Reply with JSON only."},
				{Role: schema.User, Content: prompt},
			},
			MaxTokens: 512,
		}, nil)
		if err != nil {
			return nil, err
		}
		if final.Cancelled {
			return nil, nil
		}

		call, parseErr := parseProposedToolCall(final.Content)
		if parseErr != nil {
			// A malformed proposal ends this branch of the search rather
			// than failing the whole run.
			return nil, nil
		}
		return []types.ToolCall{call}, nil
	}
}

type proposedToolCall struct {
	ToolName string          `json:"tool_name"`
	Input    json.RawMessage `json:"input"`
}

func parseProposedToolCall(content string) (types.ToolCall, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return types.ToolCall{}, fmt.Errorf("no JSON object found in proposal")
	}
	var p proposedToolCall
	if err := json.Unmarshal([]byte(content[start:end+1]), &p); err != nil {
		return types.ToolCall{}, err
	}
	if p.ToolName == "" {
		return types.ToolCall{}, fmt.Errorf("proposal missing tool_name")
	}
	return types.ToolCall{ToolName: p.ToolName, StructuredInput: p.Input}, nil
}

// newBrokerValueFunction builds an mcts.ValueFunction that asks the LLM
// to score an observation 0..1 with a short critique.
func newBrokerValueFunction(broker *llmbroker.Broker, providerKey, modelID string) mcts.ValueFunctionFunc {
	return func(ctx context.Context, traj mcts.Trajectory, obs types.ToolOutput) (mcts.Score, error) {
		prompt := fmt.Sprintf(
			"Goal: %s\n\nLatest tool result for %q:\n%s\n\nScore progress toward the goal from 0.0 (no progress) to 1.0 (goal achieved). Respond with JSON only: {\"reward\": number, \"critique\": string}.",
			traj.Goal, obs.ToolName, string(obs.Result),
		)

		final, err := broker.StreamCompletion(ctx, providerKey, &llmbroker.Request{
			Model: modelID,
			Messages: []*schema.Message{
				{Role: schema.System, Content: "You are a strict grader of agent progress. Reply with JSON only."},
				{Role: schema.User, Content: prompt},
			},
			MaxTokens: 256,
		}, nil)
		if err != nil {
			return mcts.Score{}, err
		}
		if final.Cancelled {
			return mcts.Score{}, nil
		}

		var scored struct {
			Reward   float64 `json:"reward"`
			Critique string  `json:"critique"`
		}
		start := strings.IndexByte(final.Content, '{')
		end := strings.LastIndexByte(final.Content, '}')
		if start >= 0 && end > start {
			_ = json.Unmarshal([]byte(final.Content[start:end+1]), &scored)
		}
		return mcts.Score{Reward: scored.Reward, Critique: scored.Critique}, nil
	}
}

// newRegistryToolExecutor adapts the Tool Broker's Registry to
// mcts.ToolExecutor, executing proposed calls for real so the search
// observes genuine tool output rather than a simulation.
func newRegistryToolExecutor(registry *Registry, toolCtx *Context) mcts.ToolExecutorFunc {
	return func(ctx context.Context, call types.ToolCall) types.ToolOutput {
		tl, ok := registry.Get(call.ToolName)
		if !ok {
			return types.ToolOutput{ToolName: call.ToolName, Error: "unknown tool: " + call.ToolName}
		}
		res, err := tl.Execute(ctx, call.StructuredInput, toolCtx)
		if err != nil {
			return types.ToolOutput{ToolName: call.ToolName, Error: err.Error()}
		}
		out, _ := json.Marshal(res)
		return types.ToolOutput{ToolName: call.ToolName, Result: out}
	}
}
