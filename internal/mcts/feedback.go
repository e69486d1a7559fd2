package mcts

import (
	"fmt"
	"strings"

	"github.com/codeglide/sidecar/pkg/types"
)

// FeedbackGenerator inspects the current trajectory and its sibling
// attempts to produce a natural-language hint discouraging the next
// expansion from repeating them.
type FeedbackGenerator interface {
	Generate(traj Trajectory, siblings []*types.ActionNode) string
}

// RepeatAvoidanceFeedback is the default FeedbackGenerator: it lists
// the tool names already attempted at this point in the tree so the
// next expansion prompt can be told to try something different. This
// is deliberately cheap (no LLM call) — richer critique text already
// comes from the ValueFunction and is attached to each node's
// Observation.
type RepeatAvoidanceFeedback struct{}

func (RepeatAvoidanceFeedback) Generate(traj Trajectory, siblings []*types.ActionNode) string {
	tried := make(map[string]int)
	for _, s := range siblings {
		if s.Action != nil {
			tried[s.Action.ToolName]++
		}
	}
	if len(tried) == 0 {
		return ""
	}

	var parts []string
	for name, count := range tried {
		if count > 1 {
			parts = append(parts, fmt.Sprintf("%s (tried %d times)", name, count))
		} else {
			parts = append(parts, name)
		}
	}
	return "Already attempted at this point: " + strings.Join(parts, ", ") + ". Prefer a different approach."
}
