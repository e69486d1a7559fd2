package mcts

import (
	"context"

	"github.com/codeglide/sidecar/pkg/types"
)

// Score is the scalar reward plus optional critique text a
// ValueFunction produces for one (trajectory, observation) pair.
type Score struct {
	Reward   float64
	Critique string
}

// ValueFunction scores a trajectory ending in observation into a
// scalar reward, canonically by asking the LLM Broker to critique the
// step against the original goal.
type ValueFunction interface {
	Score(ctx context.Context, traj Trajectory, observation types.ToolOutput) (Score, error)
}

// ValueFunctionFunc adapts a plain function to a ValueFunction.
type ValueFunctionFunc func(ctx context.Context, traj Trajectory, observation types.ToolOutput) (Score, error)

func (f ValueFunctionFunc) Score(ctx context.Context, traj Trajectory, observation types.ToolOutput) (Score, error) {
	return f(ctx, traj, observation)
}

// ErrorPenalty is the reward assigned automatically, without invoking
// the value function, when a simulated action's observation carries an
// error — a bad trajectory is never worth scoring at the LLM's
// expense.
const ErrorPenalty = -1.0

// ScoreObservation wraps a ValueFunction so callers don't need to
// special-case the error-output short-circuit at every call site.
func ScoreObservation(ctx context.Context, vf ValueFunction, traj Trajectory, observation types.ToolOutput) (Score, error) {
	if observation.IsError() {
		return Score{Reward: ErrorPenalty, Critique: "tool invocation failed: " + observation.Error}, nil
	}
	return vf.Score(ctx, traj, observation)
}
