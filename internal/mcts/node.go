// Package mcts implements the Monte-Carlo tree search planner: an
// arena of ActionNodes, UCT selection, an LLM-driven action
// generator and value function, a feedback generator that discourages
// repeated trajectories, and a decider that picks the best completed
// leaf.
package mcts

import (
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/codeglide/sidecar/pkg/types"
)

// Arena owns every ActionNode in a single search, keyed by id.
// Components elsewhere hold ids, never node pointers directly.
type Arena struct {
	mu    sync.RWMutex
	nodes map[string]*types.ActionNode
	rootID string
}

// NewArena creates an Arena with a single root node (no action, depth 0).
func NewArena() *Arena {
	root := &types.ActionNode{ID: newNodeID()}
	a := &Arena{nodes: map[string]*types.ActionNode{root.ID: root}, rootID: root.ID}
	return a
}

func newNodeID() string {
	return ulid.Make().String()
}

// Root returns the arena's root node id.
func (a *Arena) Root() string { return a.rootID }

// Get returns a copy-free pointer to the node with id, or nil.
func (a *Arena) Get(id string) *types.ActionNode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.nodes[id]
}

// Expand creates a new child of parentID carrying action, returning
// the new node's id. Only non-root nodes carry an Action (invariant:
// only the root has no action).
func (a *Arena) Expand(parentID string, action types.ToolCall) (*types.ActionNode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	parent, ok := a.nodes[parentID]
	if !ok {
		return nil, fmt.Errorf("mcts: unknown parent node %q", parentID)
	}
	if parent.Terminal {
		return nil, fmt.Errorf("mcts: cannot expand terminal node %q", parentID)
	}

	child := &types.ActionNode{
		ID:       newNodeID(),
		ParentID: &parentID,
		Action:   &action,
		Depth:    parent.Depth + 1,
	}
	a.nodes[child.ID] = child
	parent.ChildrenIDs = append(parent.ChildrenIDs, child.ID)
	return child, nil
}

// Children returns the child nodes of id in insertion order.
func (a *Arena) Children(id string) []*types.ActionNode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	node, ok := a.nodes[id]
	if !ok {
		return nil
	}
	out := make([]*types.ActionNode, 0, len(node.ChildrenIDs))
	for _, cid := range node.ChildrenIDs {
		if c, ok := a.nodes[cid]; ok {
			out = append(out, c)
		}
	}
	return out
}

// SetObservation records the result of simulating node's action and
// marks it terminal if terminal is true.
func (a *Arena) SetObservation(id string, obs types.ToolOutput, terminal bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	node, ok := a.nodes[id]
	if !ok {
		return fmt.Errorf("mcts: unknown node %q", id)
	}
	node.Observation = &obs
	node.Terminal = terminal
	return nil
}

// SetFeedback attaches a natural-language feedback hint to node id.
func (a *Arena) SetFeedback(id, feedback string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if node, ok := a.nodes[id]; ok {
		node.Feedback = &feedback
	}
}

// Backpropagate adds reward to value_sum and increments visits along
// the path from id up to (and including) the root.
//
// Invariant: for every non-root node n, visits(n) equals the
// sum of its children's visits plus 1 if n itself was simulated —
// which holds here because every node on the backprop path from a
// freshly simulated leaf gets exactly one visit increment per
// simulation, and a parent is only visited when one of its children
// (or itself) was simulated.
func (a *Arena) Backpropagate(id string, reward float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur := id
	for {
		node, ok := a.nodes[cur]
		if !ok {
			return
		}
		node.Visits++
		node.ValueSum += reward
		if node.ParentID == nil {
			return
		}
		cur = *node.ParentID
	}
}

// AllNodes returns every node in the arena (for Decider traversal).
func (a *Arena) AllNodes() []*types.ActionNode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*types.ActionNode, 0, len(a.nodes))
	for _, n := range a.nodes {
		out = append(out, n)
	}
	return out
}

// PathTo returns the node ids from the root down to id, inclusive.
func (a *Arena) PathTo(id string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var reversed []string
	cur := id
	for {
		node, ok := a.nodes[cur]
		if !ok {
			break
		}
		reversed = append(reversed, cur)
		if node.ParentID == nil {
			break
		}
		cur = *node.ParentID
	}
	path := make([]string, len(reversed))
	for i, id := range reversed {
		path[len(reversed)-1-i] = id
	}
	return path
}
