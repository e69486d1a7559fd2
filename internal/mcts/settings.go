package mcts

// AgentSettings toggles how the action generator prompts the agent to
// enumerate candidate actions ("midwit or json").
type AgentSettings struct {
	// IsMidwit asks the agent for a single confident best guess rather
	// than a full enumeration — cheaper, lower-diversity expansion.
	IsMidwit bool
	// IsJSON requires the agent's enumeration to come back as
	// structured JSON rather than free-form numbered text.
	IsJSON bool
	// MaxCandidates bounds how many candidate ToolCalls a single
	// expansion may propose.
	MaxCandidates int
	// MaxDepth bounds how deep the search tree may grow before a node
	// is forced terminal regardless of the action it carries.
	MaxDepth int
}

// DefaultAgentSettings requests JSON enumeration of up to three
// candidates per expansion and forces nodes terminal at depth 12.
func DefaultAgentSettings() AgentSettings {
	return AgentSettings{
		IsMidwit:      false,
		IsJSON:        true,
		MaxCandidates: 3,
		MaxDepth:      12,
	}
}
