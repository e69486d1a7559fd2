package mcts

import (
	"github.com/codeglide/sidecar/pkg/types"
)

// Decider picks the best completed leaf from an Arena by Q, with ties broken by
// shallowest depth then earliest id.
type Decider struct {
	arena *Arena
}

// NewDecider creates a Decider over arena.
func NewDecider(arena *Arena) *Decider {
	return &Decider{arena: arena}
}

// Best returns the best completed (terminal, visited) leaf, or nil if
// the arena contains no completed leaves yet.
func (d *Decider) Best() *types.ActionNode {
	var best *types.ActionNode
	for _, node := range d.arena.AllNodes() {
		if !node.Terminal || node.Visits == 0 {
			continue
		}
		if best == nil || better(node, best) {
			best = node
		}
	}
	return best
}

// better reports whether candidate should replace current as the best
// leaf: higher Q wins; ties broken by shallower depth, then by
// lexicographically earlier id (a stable, deterministic tiebreak since
// ids are ULIDs and therefore also roughly creation-ordered).
func better(candidate, current *types.ActionNode) bool {
	cq, kq := candidate.Q(), current.Q()
	if cq != kq {
		return cq > kq
	}
	if candidate.Depth != current.Depth {
		return candidate.Depth < current.Depth
	}
	return candidate.ID < current.ID
}

// BestTrajectory returns the root-to-leaf path of node ids for the
// best completed leaf, suitable for persisting as a types.Plan.
func (d *Decider) BestTrajectory() []string {
	best := d.Best()
	if best == nil {
		return nil
	}
	return d.arena.PathTo(best.ID)
}
