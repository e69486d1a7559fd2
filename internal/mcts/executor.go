package mcts

import (
	"context"
	"encoding/json"

	"github.com/codeglide/sidecar/pkg/types"
)

// ToolExecutor runs a single ToolCall and returns its ToolOutput. The
// canonical implementation dispatches through the Tool Broker
// (internal/tool.Registry); this interface keeps the search algorithm
// decoupled from that package so it can be driven by a scripted
// executor in tests and so internal/tool can depend on internal/mcts
// (for its mcts_search meta tool) without an import cycle.
type ToolExecutor interface {
	Execute(ctx context.Context, call types.ToolCall) types.ToolOutput
}

// ToolExecutorFunc adapts a plain function to a ToolExecutor.
type ToolExecutorFunc func(ctx context.Context, call types.ToolCall) types.ToolOutput

func (f ToolExecutorFunc) Execute(ctx context.Context, call types.ToolCall) types.ToolOutput {
	return f(ctx, call)
}

// Search drives one full MCTS run: select, expand, simulate, score,
// backpropagate, repeat until the iteration budget is exhausted or the
// context is cancelled. It returns the Decider's best completed leaf's arena and
// trajectory so the caller (the mcts_search tool) can report it.
type Search struct {
	Arena      *Arena
	Selector   *Selector
	Generator  ActionGenerator
	Value      ValueFunction
	Feedback   FeedbackGenerator
	Executor   ToolExecutor
	Settings   AgentSettings
}

// NewSearch wires together a fresh Arena with the given components.
func NewSearch(generator ActionGenerator, value ValueFunction, executor ToolExecutor, settings AgentSettings) *Search {
	arena := NewArena()
	return &Search{
		Arena:     arena,
		Selector:  NewSelector(arena, DefaultExplorationConstant),
		Generator: generator,
		Value:     value,
		Feedback:  RepeatAvoidanceFeedback{},
		Executor:  executor,
		Settings:  settings,
	}
}

// Run executes up to maxIterations simulate/backprop cycles and
// returns early only when ctx is cancelled. An attempt_completion
// action marks its node terminal; an iteration whose selection lands
// on a terminal node does nothing, so the loop does not stop when the
// first completed leaf appears.
func (s *Search) Run(ctx context.Context, goal string, maxIterations int) (*types.ActionNode, error) {
	for i := 0; i < maxIterations; i++ {
		select {
		case <-ctx.Done():
			return s.finish()
		default:
		}

		nodeID := s.Selector.Select()
		node := s.Arena.Get(nodeID)
		if node == nil {
			break
		}

		if node.Terminal {
			continue // nothing left to do down this branch
		}

		if node.Depth >= s.Settings.MaxDepth {
			s.Arena.SetObservation(nodeID, types.ToolOutput{}, true)
			continue
		}

		traj := s.trajectoryTo(goal, nodeID)

		// Expand if this node has no action of its own yet simulated
		// (i.e. it's a leaf awaiting its first children), otherwise
		// expand a new candidate from the generator.
		candidates, err := s.Generator.Propose(ctx, traj, s.Settings)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			s.Arena.SetObservation(nodeID, types.ToolOutput{}, true)
			continue
		}

		var lastChild *types.ActionNode
		for _, call := range candidates {
			child, expandErr := s.Arena.Expand(nodeID, call)
			if expandErr != nil {
				continue
			}
			lastChild = child

			obs := s.Executor.Execute(ctx, call)
			terminal := call.ToolName == "attempt_completion"
			s.Arena.SetObservation(child.ID, obs, terminal)

			childTraj := s.trajectoryTo(goal, child.ID)
			score, scoreErr := ScoreObservation(ctx, s.Value, childTraj, obs)
			if scoreErr != nil {
				score = Score{Reward: 0}
			}
			s.Arena.Backpropagate(child.ID, score.Reward)

			siblings := s.Arena.Children(nodeID)
			hint := s.Feedback.Generate(childTraj, siblings)
			if hint != "" {
				s.Arena.SetFeedback(child.ID, hint)
			}
		}
		_ = lastChild
	}

	return s.finish()
}

func (s *Search) finish() (*types.ActionNode, error) {
	return NewDecider(s.Arena).Best(), nil
}

func (s *Search) trajectoryTo(goal, nodeID string) Trajectory {
	path := s.Arena.PathTo(nodeID)
	traj := Trajectory{Goal: goal}
	for _, id := range path {
		node := s.Arena.Get(id)
		if node == nil || node.Action == nil {
			continue
		}
		traj.Steps = append(traj.Steps, TrajectoryStep{
			Action:      *node.Action,
			Observation: node.Observation,
			Feedback:    node.Feedback,
		})
	}
	return traj
}

// MarshalTrajectory renders a Trajectory as a compact JSON blob for
// inclusion in a feedback/scoring prompt.
func MarshalTrajectory(t Trajectory) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
