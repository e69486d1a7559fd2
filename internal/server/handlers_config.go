// Configuration, provider, agent, MCP, formatter and command handlers
// for the supplemental surface. Everything reported here is derived
// from the daemon's live state — the provider registry, the session
// agent profiles, the MCP client, the command executor — never from a
// static catalog.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/codeglide/sidecar/internal/command"
	"github.com/codeglide/sidecar/internal/mcp"
	"github.com/codeglide/sidecar/internal/session"
	"github.com/codeglide/sidecar/pkg/types"
)

// getConfig handles GET /config
func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	if s.appConfig != nil {
		s.appConfig.Keybinds = types.MergeKeybinds(types.DefaultKeybinds(), s.appConfig.Keybinds)
	}
	writeJSON(w, http.StatusOK, s.appConfig)
}

// updateConfig handles PATCH /config
func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	if model, ok := updates["model"].(string); ok {
		s.appConfig.Model = model
	}
	if smallModel, ok := updates["small_model"].(string); ok {
		s.appConfig.SmallModel = smallModel
	}

	writeJSON(w, http.StatusOK, s.appConfig)
}

// ProviderModelInfo describes one model a registered provider serves.
type ProviderModelInfo struct {
	ID                string `json:"id"`
	Name              string `json:"name,omitempty"`
	ContextLength     int    `json:"contextLength,omitempty"`
	MaxOutputTokens   int    `json:"maxOutputTokens,omitempty"`
	SupportsTools     bool   `json:"supportsTools"`
	SupportsReasoning bool   `json:"supportsReasoning,omitempty"`
}

// ProviderInfo describes one registered provider and its capability
// set: chat streaming is implied, the rest is what the exchange engine
// and FIM dispatcher actually branch on.
type ProviderInfo struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	SupportsCacheHints bool                `json:"supportsCacheHints"`
	InlineCompletion   bool                `json:"inlineCompletion"`
	Models             []ProviderModelInfo `json:"models"`
}

// ProvidersResponse is the response format for /config/providers.
type ProvidersResponse struct {
	Providers []ProviderInfo    `json:"providers"`
	Default   map[string]string `json:"default"`
}

// listProviders handles GET /config/providers, reporting the providers
// actually registered in this process and the models each serves.
func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	providers := make([]ProviderInfo, 0)
	defaults := make(map[string]string)

	for _, p := range s.providerReg.List() {
		info := ProviderInfo{
			ID:                 p.ID(),
			Name:               p.Name(),
			SupportsCacheHints: p.SupportsCacheHints(),
			// Every wired provider can serve raw-prompt completions,
			// so ghost text falls back across the whole registry.
			InlineCompletion: true,
		}
		for _, m := range p.Models() {
			info.Models = append(info.Models, ProviderModelInfo{
				ID:                m.ID,
				Name:              m.Name,
				ContextLength:     m.ContextLength,
				MaxOutputTokens:   m.MaxOutputTokens,
				SupportsTools:     m.SupportsTools,
				SupportsReasoning: m.SupportsReasoning,
			})
		}
		if len(info.Models) > 0 {
			defaults[p.ID()] = info.Models[0].ID
		}
		providers = append(providers, info)
	}

	if s.defaultProviderID != "" && s.defaultModelID != "" {
		defaults[s.defaultProviderID] = s.defaultModelID
	}

	writeJSON(w, http.StatusOK, ProvidersResponse{Providers: providers, Default: defaults})
}

// getLSPStatus handles GET /lsp. Language-server operations route
// through the editor, so the daemon only reports whether the editor
// bridge is expected to serve them.
func (s *Server) getLSPStatus(w http.ResponseWriter, r *http.Request) {
	enabled := true
	if s.appConfig != nil && s.appConfig.LSP != nil {
		enabled = !s.appConfig.LSP.Disabled
	}
	status := map[string]any{
		"enabled": enabled,
		"routed_through_editor": true,
	}
	writeJSON(w, http.StatusOK, status)
}

// MCPServerStatus represents the status of an MCP server.
// Status can be "connected", "disabled", or "failed".
type MCPServerStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"` // Only for failed status
}

// getMCPStatus handles GET /mcp
// Returns Record<string, MCPServerStatus> - a map from server name to status.
func (s *Server) getMCPStatus(w http.ResponseWriter, r *http.Request) {
	statuses := make(map[string]MCPServerStatus)

	if s.mcpClient != nil {
		for _, server := range s.mcpClient.Status() {
			status := MCPServerStatus{
				Status: string(server.Status),
			}
			if server.Error != nil {
				status.Error = *server.Error
			}
			statuses[server.Name] = status
		}
	}

	writeJSON(w, http.StatusOK, statuses)
}

// addMCPServer handles POST /mcp
func (s *Server) addMCPServer(w http.ResponseWriter, r *http.Request) {
	if s.mcpClient == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternalError, "MCP client not initialized")
		return
	}

	var req struct {
		Name        string            `json:"name"`
		Type        string            `json:"type"`
		URL         string            `json:"url,omitempty"`
		Command     []string          `json:"command,omitempty"`
		Headers     map[string]string `json:"headers,omitempty"`
		Environment map[string]string `json:"environment,omitempty"`
		Timeout     int               `json:"timeout,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Name is required")
		return
	}

	config := &mcp.Config{
		Enabled:     true,
		Type:        mcp.TransportType(req.Type),
		URL:         req.URL,
		Command:     req.Command,
		Headers:     req.Headers,
		Environment: req.Environment,
		Timeout:     req.Timeout,
	}

	if err := s.mcpClient.AddServer(r.Context(), req.Name, config); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	// Newly discovered tools join the broker so running sessions can
	// call them on their next iteration.
	mcp.RegisterMCPTools(s.mcpClient, s.toolReg)

	serverStatus, _ := s.mcpClient.GetServer(req.Name)
	writeJSON(w, http.StatusCreated, serverStatus)
}

// removeMCPServer handles DELETE /mcp/{name}
func (s *Server) removeMCPServer(w http.ResponseWriter, r *http.Request) {
	if s.mcpClient == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternalError, "MCP client not initialized")
		return
	}

	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Server name is required")
		return
	}

	if err := s.mcpClient.RemoveServer(name); err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}

	writeSuccess(w)
}

// getMCPTools handles GET /mcp/tools
func (s *Server) getMCPTools(w http.ResponseWriter, r *http.Request) {
	if s.mcpClient == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}

	tools := s.mcpClient.Tools()
	writeJSON(w, http.StatusOK, tools)
}

// executeMCPTool handles POST /mcp/tool/{name}
func (s *Server) executeMCPTool(w http.ResponseWriter, r *http.Request) {
	if s.mcpClient == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternalError, "MCP client not initialized")
		return
	}

	toolName := chi.URLParam(r, "name")
	if toolName == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Tool name is required")
		return
	}

	var args json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		// Empty body is ok
		args = nil
	}

	result, err := s.mcpClient.ExecuteTool(r.Context(), toolName, args)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

// getMCPResources handles GET /mcp/resources
func (s *Server) getMCPResources(w http.ResponseWriter, r *http.Request) {
	if s.mcpClient == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}

	resources, err := s.mcpClient.ListResources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resources)
}

// readMCPResource handles GET /mcp/resource
func (s *Server) readMCPResource(w http.ResponseWriter, r *http.Request) {
	if s.mcpClient == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternalError, "MCP client not initialized")
		return
	}

	uri := r.URL.Query().Get("uri")
	if uri == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "URI is required")
		return
	}

	result, err := s.mcpClient.ReadResource(r.Context(), uri)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// AgentInfo describes one agent profile the exchange engine can run.
type AgentInfo struct {
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Prompt        string            `json:"prompt,omitempty"`
	Temperature   float64           `json:"temperature,omitempty"`
	TopP          float64           `json:"topP,omitempty"`
	MaxIterations int               `json:"maxIterations,omitempty"`
	Tools         []string          `json:"tools,omitempty"`
	DisabledTools []string          `json:"disabledTools,omitempty"`
	Permission    map[string]string `json:"permission,omitempty"`
	Model         string            `json:"model,omitempty"`
	BuiltIn       bool              `json:"builtIn"`
}

// agentProfiles are the profiles the engine actually selects between:
// the default loop, the coding/planning variants, the anchor-edit
// scope and the tree-search explorer.
func agentProfiles() []*session.Agent {
	return []*session.Agent{
		session.DefaultAgent(),
		session.CodeAgent(),
		session.PlanAgent(),
		session.AnchorAgent(),
		session.ExploreAgent(),
	}
}

func agentInfoFrom(a *session.Agent, builtIn bool) AgentInfo {
	return AgentInfo{
		Name:          a.Name,
		Prompt:        a.Prompt,
		Temperature:   a.Temperature,
		TopP:          a.TopP,
		MaxIterations: a.MaxSteps,
		Tools:         a.Tools,
		DisabledTools: a.DisabledTools,
		Permission: map[string]string{
			"doom_loop": a.Permission.DoomLoop,
			"bash":      a.Permission.Bash,
			"write":     a.Permission.Write,
		},
		BuiltIn: builtIn,
	}
}

// listAgents handles GET /agent: the built-in profiles overlaid with
// any config-declared agents.
func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	agents := make([]AgentInfo, 0)
	byName := make(map[string]int)
	for _, a := range agentProfiles() {
		byName[a.Name] = len(agents)
		agents = append(agents, agentInfoFrom(a, true))
	}

	if s.appConfig != nil {
		for name, cfg := range s.appConfig.Agent {
			idx, exists := byName[name]
			if !exists {
				agents = append(agents, AgentInfo{Name: name})
				idx = len(agents) - 1
			}
			agent := &agents[idx]
			agent.BuiltIn = false
			if cfg.Description != "" {
				agent.Description = cfg.Description
			}
			if cfg.Prompt != "" {
				agent.Prompt = cfg.Prompt
			}
			if cfg.Temperature != nil {
				agent.Temperature = *cfg.Temperature
			}
			if cfg.TopP != nil {
				agent.TopP = *cfg.TopP
			}
			if cfg.Tools != nil {
				for id, enabled := range cfg.Tools {
					if enabled {
						agent.Tools = append(agent.Tools, id)
					} else {
						agent.DisabledTools = append(agent.DisabledTools, id)
					}
				}
			}
			if cfg.Model != "" {
				agent.Model = cfg.Model
			}
		}
	}

	writeJSON(w, http.StatusOK, agents)
}

// getFormatterStatus handles GET /formatter
func (s *Server) getFormatterStatus(w http.ResponseWriter, r *http.Request) {
	if s.formatterManager == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}

	status := s.formatterManager.Status()
	writeJSON(w, http.StatusOK, status)
}

// formatFile handles POST /formatter/format
func (s *Server) formatFile(w http.ResponseWriter, r *http.Request) {
	if s.formatterManager == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternalError, "Formatter not initialized")
		return
	}

	var req struct {
		Path  string   `json:"path"`
		Paths []string `json:"paths,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	if req.Path != "" {
		result, err := s.formatterManager.Format(r.Context(), req.Path)
		if err != nil {
			writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	if len(req.Paths) > 0 {
		results := s.formatterManager.FormatMultiple(r.Context(), req.Paths)
		writeJSON(w, http.StatusOK, results)
		return
	}

	writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Either 'path' or 'paths' is required")
}

// CommandInfo represents command information returned by the /command endpoint.
type CommandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Template    string `json:"template"`
	Agent       string `json:"agent,omitempty"`
	Model       string `json:"model,omitempty"`
	Subtask     bool   `json:"subtask,omitempty"`
}

// listCommands handles GET /command: the executor's built-in commands
// plus config- and file-declared custom commands.
func (s *Server) listCommands(w http.ResponseWriter, r *http.Request) {
	commands := make([]CommandInfo, 0)

	for _, cmd := range command.BuiltinCommands() {
		commands = append(commands, CommandInfo{
			Name:        cmd.Name,
			Description: cmd.Description,
			Template:    cmd.Template,
			Agent:       cmd.Agent,
			Model:       cmd.Model,
			Subtask:     cmd.Subtask,
		})
	}

	if s.commandExecutor != nil {
		for _, cmd := range s.commandExecutor.List() {
			commands = append(commands, CommandInfo{
				Name:        cmd.Name,
				Description: cmd.Description,
				Template:    cmd.Template,
				Agent:       cmd.Agent,
				Model:       cmd.Model,
				Subtask:     cmd.Subtask,
			})
		}
	}

	writeJSON(w, http.StatusOK, commands)
}

// executeCommand handles POST /command/{name}
func (s *Server) executeCommand(w http.ResponseWriter, r *http.Request) {
	if s.commandExecutor == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternalError, "Command executor not initialized")
		return
	}

	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Command name is required")
		return
	}

	var req struct {
		Args string `json:"args"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Empty body is ok
		req.Args = ""
	}

	result, err := s.commandExecutor.Execute(r.Context(), name, req.Args)
	if err != nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// getCommand handles GET /command/{name}
func (s *Server) getCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Command name is required")
		return
	}

	for _, cmd := range command.BuiltinCommands() {
		if cmd.Name == name {
			writeJSON(w, http.StatusOK, cmd)
			return
		}
	}

	if s.commandExecutor != nil {
		if cmd, ok := s.commandExecutor.Get(name); ok {
			writeJSON(w, http.StatusOK, cmd)
			return
		}
	}

	writeError(w, http.StatusNotFound, ErrCodeNotFound, "Command not found")
}

// getPath handles GET /path
func (s *Server) getPath(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"directory": getDirectory(r.Context()),
	})
}

// writeLog handles POST /log
func (s *Server) writeLog(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w)
}

// disposeInstance handles POST /instance/dispose
func (s *Server) disposeInstance(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w)
}

// getToolIDs handles GET /experimental/tool/ids
func (s *Server) getToolIDs(w http.ResponseWriter, r *http.Request) {
	tools := s.toolReg.List()
	ids := make([]string, len(tools))
	for i, t := range tools {
		ids[i] = t.ID()
	}
	writeJSON(w, http.StatusOK, ids)
}

// getToolDefinitions handles GET /experimental/tool
func (s *Server) getToolDefinitions(w http.ResponseWriter, r *http.Request) {
	tools := s.toolReg.List()
	defs := make([]map[string]any, len(tools))
	for i, t := range tools {
		defs[i] = map[string]any{
			"name":        t.ID(),
			"description": t.Description(),
			"parameters":  t.Parameters(),
		}
	}
	writeJSON(w, http.StatusOK, defs)
}
