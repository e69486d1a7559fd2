package mcts

import (
	"math"

	"github.com/codeglide/sidecar/pkg/types"
)

// DefaultExplorationConstant is the default UCT "C".
const DefaultExplorationConstant = 1.41421356 // sqrt(2), the canonical UCT default

// Selector walks the tree from the root choosing, at each step, the
// child that maximizes the UCT score, until it reaches a node with no
// children (a leaf ready for expansion) or a terminal node.
type Selector struct {
	arena *Arena
	c     float64
}

// NewSelector creates a Selector over arena with exploration constant c.
func NewSelector(arena *Arena, c float64) *Selector {
	if c <= 0 {
		c = DefaultExplorationConstant
	}
	return &Selector{arena: arena, c: c}
}

// Select descends from the arena root, returning the id of the node
// to expand or simulate next.
func (s *Selector) Select() string {
	cur := s.arena.Root()
	for {
		node := s.arena.Get(cur)
		if node == nil || node.Terminal {
			return cur
		}
		children := s.arena.Children(cur)
		if len(children) == 0 {
			return cur
		}
		cur = s.bestChild(node, children).ID
	}
}

// bestChild implements the UCT formula:
//
//	argmax_c  Q(c) + C * sqrt(ln N(parent) / N(c))
//
// with unvisited children given selection priority (their score is
// treated as +Inf so every child is tried at least once before any
// child is revisited).
func (s *Selector) bestChild(parent *types.ActionNode, children []*types.ActionNode) *types.ActionNode {
	var best *types.ActionNode
	bestScore := math.Inf(-1)

	for _, c := range children {
		var score float64
		if c.Visits == 0 {
			score = math.Inf(1)
		} else {
			exploitation := c.Q()
			exploration := s.c * math.Sqrt(math.Log(float64(parent.Visits))/float64(c.Visits))
			score = exploitation + exploration
		}
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best
}
