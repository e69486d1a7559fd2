package mcts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeglide/sidecar/pkg/types"
)

func TestArena_RootHasNoAction(t *testing.T) {
	a := NewArena()
	root := a.Get(a.Root())
	require.NotNil(t, root)
	assert.Nil(t, root.Action)
}

func TestArena_ExpandAndBackpropagate(t *testing.T) {
	a := NewArena()
	child, err := a.Expand(a.Root(), types.ToolCall{ToolName: "grep"})
	require.NoError(t, err)
	require.NotNil(t, child.Action)
	assert.Equal(t, 1, child.Depth)

	a.Backpropagate(child.ID, 1.0)

	root := a.Get(a.Root())
	updatedChild := a.Get(child.ID)

	// Invariant: visits(n) = sum(visits(children)) + 1_if_simulated(n)
	assert.Equal(t, 1, updatedChild.Visits)
	assert.Equal(t, 1, root.Visits)
	assert.InDelta(t, 1.0, updatedChild.Q(), 1e-9)
}

func TestArena_CannotExpandTerminalNode(t *testing.T) {
	a := NewArena()
	child, err := a.Expand(a.Root(), types.ToolCall{ToolName: "x"})
	require.NoError(t, err)
	require.NoError(t, a.SetObservation(child.ID, types.ToolOutput{}, true))

	_, err = a.Expand(child.ID, types.ToolCall{ToolName: "y"})
	assert.Error(t, err)
}

func TestSelector_PrefersUnvisitedChildren(t *testing.T) {
	a := NewArena()
	c1, _ := a.Expand(a.Root(), types.ToolCall{ToolName: "a"})
	c2, _ := a.Expand(a.Root(), types.ToolCall{ToolName: "b"})
	a.Backpropagate(c1.ID, 0.9)
	// c2 is unvisited: selector should still pick it over the already
	// visited, higher-reward c1.
	sel := NewSelector(a, DefaultExplorationConstant)
	chosen := sel.Select()
	assert.Equal(t, c2.ID, chosen)
}

func TestDecider_BestByQThenDepthThenID(t *testing.T) {
	a := NewArena()
	c1, _ := a.Expand(a.Root(), types.ToolCall{ToolName: "a"})
	c2, _ := a.Expand(a.Root(), types.ToolCall{ToolName: "b"})
	require.NoError(t, a.SetObservation(c1.ID, types.ToolOutput{}, true))
	require.NoError(t, a.SetObservation(c2.ID, types.ToolOutput{}, true))
	a.Backpropagate(c1.ID, 0.5)
	a.Backpropagate(c2.ID, 0.9)

	d := NewDecider(a)
	best := d.Best()
	require.NotNil(t, best)
	assert.Equal(t, c2.ID, best.ID)
}

func TestDecider_ReturnsNilWithNoCompletedLeaves(t *testing.T) {
	a := NewArena()
	d := NewDecider(a)
	assert.Nil(t, d.Best())
}

func TestScoreObservation_ErrorShortCircuitsValueFunction(t *testing.T) {
	called := false
	vf := ValueFunctionFunc(func(ctx context.Context, traj Trajectory, obs types.ToolOutput) (Score, error) {
		called = true
		return Score{Reward: 1}, nil
	})

	score, err := ScoreObservation(context.Background(), vf, Trajectory{}, types.ToolOutput{Error: "boom"})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, ErrorPenalty, score.Reward)
}

func TestSearch_Run_TerminatesOnAttemptCompletion(t *testing.T) {
	gen := ActionGeneratorFunc(func(ctx context.Context, traj Trajectory, settings AgentSettings) ([]types.ToolCall, error) {
		if len(traj.Steps) == 0 {
			return []types.ToolCall{{ToolName: "grep"}}, nil
		}
		return []types.ToolCall{{ToolName: "attempt_completion"}}, nil
	})
	vf := ValueFunctionFunc(func(ctx context.Context, traj Trajectory, obs types.ToolOutput) (Score, error) {
		return Score{Reward: 1}, nil
	})
	exec := ToolExecutorFunc(func(ctx context.Context, call types.ToolCall) types.ToolOutput {
		return types.ToolOutput{ToolName: call.ToolName}
	})

	s := NewSearch(gen, vf, exec, DefaultAgentSettings())
	best, err := s.Run(context.Background(), "find the bug", 10)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.True(t, best.Terminal)
}

func TestRepeatAvoidanceFeedback_ListsTriedTools(t *testing.T) {
	siblings := []*types.ActionNode{
		{Action: &types.ToolCall{ToolName: "grep"}},
		{Action: &types.ToolCall{ToolName: "grep"}},
	}
	hint := RepeatAvoidanceFeedback{}.Generate(Trajectory{}, siblings)
	assert.Contains(t, hint, "grep")
}
