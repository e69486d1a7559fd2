package mcts

import (
	"context"

	"github.com/codeglide/sidecar/pkg/types"
)

// Trajectory is the sequence of (action, observation) pairs from the
// root to a given node, used as context for expansion, scoring, and
// feedback.
type Trajectory struct {
	Goal  string
	Steps []TrajectoryStep
}

// TrajectoryStep pairs one action with the observation it produced.
type TrajectoryStep struct {
	Action      types.ToolCall
	Observation *types.ToolOutput
	Feedback    *string
}

// ActionGenerator proposes candidate ToolCalls for expanding a node,
// given its trajectory so far. The "midwit"/"json" toggle
// lives in the AgentSettings passed alongside.
//
// The canonical implementation prompts the agent itself via the LLM
// Broker (internal/llmbroker) with the trajectory serialized into the
// prompt; this interface keeps the search algorithm decoupled from
// that prompting concern so it can be driven by a scripted generator
// in tests.
type ActionGenerator interface {
	Propose(ctx context.Context, traj Trajectory, settings AgentSettings) ([]types.ToolCall, error)
}

// ActionGeneratorFunc adapts a plain function to an ActionGenerator.
type ActionGeneratorFunc func(ctx context.Context, traj Trajectory, settings AgentSettings) ([]types.ToolCall, error)

func (f ActionGeneratorFunc) Propose(ctx context.Context, traj Trajectory, settings AgentSettings) ([]types.ToolCall, error) {
	return f(ctx, traj, settings)
}
