package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/codeglide/sidecar/internal/editorclient"
	"github.com/codeglide/sidecar/internal/errs"
	"github.com/codeglide/sidecar/internal/event"
	"github.com/codeglide/sidecar/internal/llmbroker"
	"github.com/codeglide/sidecar/internal/logging"
	"github.com/codeglide/sidecar/internal/repomap"
	"github.com/codeglide/sidecar/internal/telemetry"
	"github.com/codeglide/sidecar/internal/tool"
	"github.com/codeglide/sidecar/internal/vcs"
	"github.com/codeglide/sidecar/internal/xmlstream"
	"github.com/codeglide/sidecar/pkg/types"
)

const (
	// DefaultMaxIterations bounds the tool-use loop within one exchange.
	DefaultMaxIterations = 25
	// RepoMapTokenBudget is the default budget for the repo-map outline
	// spliced into the prompt when codebase search is requested.
	RepoMapTokenBudget = 5000
	// repoMapMaxAge controls lazy rebuilds of per-workspace tag indexes.
	repoMapMaxAge = 5 * time.Minute
)

// Engine drives exchanges: it owns the session transcript while an
// exchange runs, streams UI events, dispatches tool calls and persists
// the session after every status transition. Exchanges within one
// session execute strictly serially; a new human turn preempts the
// running one by cancelling it.
type Engine struct {
	service     *Service
	broker      *llmbroker.Broker
	tools       *tool.Registry
	llmLog      *telemetry.Log
	providerKey string
	modelID     string

	mu       sync.Mutex
	running  map[string]*exchangeRun
	repoMaps map[string]*repomap.RepoMap
}

type exchangeRun struct {
	exchangeID string
	cancel     context.CancelFunc
	stream     *event.ExchangeStream
	done       chan struct{}
}

// NewEngine creates an exchange engine. llmLog may be nil, in which
// case prompt/response logging is skipped.
func NewEngine(service *Service, broker *llmbroker.Broker, tools *tool.Registry, llmLog *telemetry.Log, providerKey, modelID string) *Engine {
	return &Engine{
		service:     service,
		broker:      broker,
		tools:       tools,
		llmLog:      llmLog,
		providerKey: providerKey,
		modelID:     modelID,
		running:     make(map[string]*exchangeRun),
		repoMaps:    make(map[string]*repomap.RepoMap),
	}
}

// StartRequest carries everything a human turn supplies to open a new
// exchange.
type StartRequest struct {
	SessionID       string
	ExchangeID      string
	EditorURL       string
	UserQuery       string
	UserContext     string
	WorkspaceRoot   string
	AideRules       *string
	CodebaseSearch  bool
	DeepReasoning   bool
	Kind            types.ExchangeKind
	AnchoredSymbols []types.AnchoredSymbol
}

// Start opens a new exchange for the request's session and runs the
// tool-use loop on its own goroutine. The returned stream delivers the
// exchange's UI events in emission order and always ends with exactly
// one exchange_finished event.
func (e *Engine) Start(ctx context.Context, req StartRequest) (*event.ExchangeStream, error) {
	if req.Kind == "" {
		req.Kind = types.ExchangeHumanAgentic
	}

	sess, err := e.loadOrCreateSession(ctx, req)
	if err != nil {
		return nil, err
	}

	// A new human turn preempts a running exchange in the same session:
	// cancel it and wait for its goroutine to release the transcript.
	e.mu.Lock()
	if prev, ok := e.running[sess.ID]; ok {
		prev.cancel()
		e.mu.Unlock()
		<-prev.done
		e.mu.Lock()
	}

	ex := &types.Exchange{
		ID:        req.ExchangeID,
		SessionID: sess.ID,
		Kind:      req.Kind,
		Input:     req.UserQuery,
		Status:    types.ExchangeRunning,
		CreatedAt: time.Now().UnixMilli(),
	}
	if ex.ID == "" {
		ex.ID = generateID()
	}
	if n := len(sess.Exchanges); n > 0 {
		parent := sess.Exchanges[n-1].ID
		ex.ParentExchangeID = &parent
	}
	sess.Exchanges = append(sess.Exchanges, ex)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &exchangeRun{
		exchangeID: ex.ID,
		cancel:     cancel,
		stream:     event.NewExchangeStream(sess.ID, ex.ID),
		done:       make(chan struct{}),
	}
	e.running[sess.ID] = run
	e.mu.Unlock()

	if err := e.persistSession(runCtx, sess); err != nil {
		e.finishRun(sess.ID, run)
		return nil, err
	}

	go e.runExchange(runCtx, sess, ex, req, run)

	return run.stream, nil
}

// Cancel requests cancellation of the running exchange. It reports
// whether a matching exchange was found; cancelling an already-finished
// exchange is a no-op.
func (e *Engine) Cancel(sessionID, exchangeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	run, ok := e.running[sessionID]
	if !ok || (exchangeID != "" && run.exchangeID != exchangeID) {
		return false
	}
	run.cancel()
	return true
}

// Undo reverts workspace edits made at or after the given exchange and
// truncates the session's exchange list accordingly. When index is
// nil, the position of exchangeID within the session determines the
// truncation point.
func (e *Engine) Undo(ctx context.Context, sessionID, exchangeID string, index *int) error {
	sess, err := e.service.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	at := -1
	if index != nil {
		at = *index
	} else {
		for i, ex := range sess.Exchanges {
			if ex.ID == exchangeID {
				at = i
				break
			}
		}
	}
	if at < 0 || at > len(sess.Exchanges) {
		return fmt.Errorf("%w: exchange %q not found in session %q", errs.ErrInternal, exchangeID, sessionID)
	}

	if sess.EditorURL != "" {
		client := editorclient.New(sess.EditorURL, os.Getenv("AIDE_TEE_URL"))
		if _, err := client.UndoSessionChanges(ctx, editorclient.UndoSessionChangesRequest{
			SessionID:  sessionID,
			ExchangeID: exchangeID,
		}); err != nil {
			return fmt.Errorf("%w: %s", errs.ErrWorkspaceError, err.Error())
		}
	}

	sess.Exchanges = sess.Exchanges[:at]
	return e.persistSession(ctx, sess)
}

// Running reports the id of the in-flight exchange for a session, if any.
func (e *Engine) Running(sessionID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	run, ok := e.running[sessionID]
	if !ok {
		return "", false
	}
	return run.exchangeID, true
}

func (e *Engine) loadOrCreateSession(ctx context.Context, req StartRequest) (*types.Session, error) {
	sess, err := e.service.Get(ctx, req.SessionID)
	if err != nil {
		sess, err = e.service.Create(ctx, req.WorkspaceRoot, "")
		if err != nil {
			return nil, err
		}
		if req.SessionID != "" {
			// The editor chose the id; rekey the fresh session to it.
			if delErr := e.service.storage.Delete(ctx, []string{"session", sess.ProjectID, sess.ID}); delErr != nil {
				return nil, delErr
			}
			sess.ID = req.SessionID
		}
	}
	sess.EditorURL = req.EditorURL
	if req.AideRules != nil {
		sess.AideRules = req.AideRules
	}
	sess.AgentSettings = &types.AgentSettings{
		CodebaseSearch: req.CodebaseSearch,
		DeepReasoning:  req.DeepReasoning,
	}
	return sess, nil
}

func (e *Engine) persistSession(ctx context.Context, sess *types.Session) error {
	sess.Time.Updated = time.Now().UnixMilli()
	return e.service.storage.Put(ctx, []string{"session", sess.ProjectID, sess.ID}, sess)
}

// finishRun removes the run from the running set and signals done.
func (e *Engine) finishRun(sessionID string, run *exchangeRun) {
	e.mu.Lock()
	if cur, ok := e.running[sessionID]; ok && cur == run {
		delete(e.running, sessionID)
	}
	e.mu.Unlock()
	close(run.done)
}

// transition moves the exchange to a terminal status exactly once and
// persists the session.
func (e *Engine) transition(ctx context.Context, sess *types.Session, ex *types.Exchange, status types.ExchangeStatus) {
	if ex.Terminal() {
		return
	}
	ex.Status = status
	now := time.Now().UnixMilli()
	ex.EndedAt = &now
	if err := e.persistSession(ctx, sess); err != nil {
		logging.Error().Err(err).Str("session", sess.ID).Msg("failed to persist session")
	}
}

func (e *Engine) runExchange(ctx context.Context, sess *types.Session, ex *types.Exchange, req StartRequest, run *exchangeRun) {
	stream := run.stream
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Str("exchange", ex.ID).Msg("exchange panicked")
			e.transition(context.WithoutCancel(ctx), sess, ex, types.ExchangeFailed)
		}
		stream.Emit(event.UIExchangeFinished, func(ev *event.UIEvent) {
			ev.ExchangeFinished = &event.ExchangeFinishedData{Status: ex.Status}
		})
		e.finishRun(sess.ID, run)
	}()

	stream.Emit(event.UIExchangeStarted, nil)

	var editor *editorclient.Client
	if sess.EditorURL != "" {
		editor = editorclient.New(sess.EditorURL, os.Getenv("AIDE_TEE_URL"))
	}

	err := e.loop(ctx, sess, ex, req, editor, stream)
	final := context.WithoutCancel(ctx)
	switch {
	case err == nil:
		e.transition(final, sess, ex, types.ExchangeSucceeded)
	case errors.Is(err, context.Canceled), errors.Is(err, errs.ErrUserCancellation):
		e.transition(final, sess, ex, types.ExchangeCancelled)
	default:
		logging.Warn().Err(err).Str("exchange", ex.ID).Msg("exchange failed")
		e.transition(final, sess, ex, types.ExchangeFailed)
	}
}

// loop runs the tool-use agent loop for one exchange: build prompt,
// stream the completion, dispatch recognised tool calls, append results
// and go around until the agent completes, a fatal error fires, the
// exchange is cancelled, or the iteration budget is exhausted.
func (e *Engine) loop(ctx context.Context, sess *types.Session, ex *types.Exchange, req StartRequest, editor *editorclient.Client, stream *event.ExchangeStream) error {
	maxIterations := DefaultMaxIterations
	if sess.AgentSettings != nil && sess.AgentSettings.MaxIterations > 0 {
		maxIterations = sess.AgentSettings.MaxIterations
	}

	recent := e.fetchRecentChanges(ctx, editor)
	toolInfos, toolNames := e.promptTools(req.Kind)

	formatRetries := 0
	for iteration := 0; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return errs.ErrUserCancellation
		}
		if iteration >= maxIterations {
			return fmt.Errorf("%w: exchange exceeded %d iterations", errs.ErrInternal, maxIterations)
		}

		messages, cacheHints := e.buildPrompt(sess, ex, req, recent)

		brokerReq := &llmbroker.Request{
			Model:      e.modelID,
			Messages:   messages,
			Tools:      toolInfos,
			MaxTokens:  8192,
			CacheHints: cacheHints,
		}

		var done func(responseJSON, errMsg string)
		if e.llmLog != nil {
			reqJSON, _ := json.Marshal(brokerReq.Messages)
			done = e.llmLog.RecordCompletion(ctx, "exchange_completion", sess.ID, ex.ID, e.providerKey, e.modelID, string(reqJSON))
		}

		extractor := xmlstream.New(toolNames...)
		var xmlCalls []types.ToolCall

		final, err := e.broker.StreamCompletion(ctx, e.providerKey, brokerReq, func(d llmbroker.Delta) {
			if d.Reasoning != "" {
				stream.Emit(event.UIThinking, func(ev *event.UIEvent) {
					ev.Thinking = &event.ThinkingData{Content: d.Reasoning}
				})
			}
			if d.Content != "" {
				stream.Emit(event.UITextDelta, func(ev *event.UIEvent) {
					ev.TextDelta = &event.TextDeltaData{Content: d.Content}
				})
				for _, region := range extractor.Append(d.Content) {
					xmlCalls = append(xmlCalls, types.ToolCall{
						ToolName:        region.Tag,
						StructuredInput: xmlRegionToJSON(region.Content),
						InvocationID:    generateID(),
					})
				}
			}
		})
		if err != nil {
			if done != nil {
				done("", err.Error())
			}
			return err
		}
		if final.Cancelled {
			if done != nil {
				done("", "cancelled")
			}
			return errs.ErrUserCancellation
		}
		if done != nil {
			respJSON, _ := json.Marshal(final)
			done(string(respJSON), "")
		}

		assistant := &types.Message{
			ID:        generateID(),
			SessionID: sess.ID,
			Role:      "assistant",
			Content:   final.Content,
			Time:      types.MessageTime{Created: time.Now().UnixMilli()},
		}
		ex.OutputMessages = append(ex.OutputMessages, assistant)

		calls := nativeCalls(final.ToolCalls)
		calls = append(calls, xmlCalls...)

		if len(calls) == 0 {
			return nil
		}

		terminal, retryable, err := e.dispatchCalls(ctx, sess, ex, editor, stream, calls)
		if err != nil {
			if retryable && formatRetries == 0 {
				formatRetries++
				continue
			}
			return err
		}
		if terminal {
			return nil
		}

		if err := e.persistSession(ctx, sess); err != nil {
			return err
		}
	}
}

// dispatchCalls invokes each recognised tool call in order, appending
// invocation records and tool-result messages to the exchange. terminal
// reports that the agent invoked attempt_completion; retryable marks a
// ToolInputInvalid condition eligible for one corrective retry.
func (e *Engine) dispatchCalls(ctx context.Context, sess *types.Session, ex *types.Exchange, editor *editorclient.Client, stream *event.ExchangeStream, calls []types.ToolCall) (terminal, retryable bool, err error) {
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return false, false, errs.ErrUserCancellation
		}

		stream.Emit(event.UIToolCall, func(ev *event.UIEvent) {
			ev.ToolCall = &event.ToolCallData{
				Name:         call.ToolName,
				InvocationID: call.InvocationID,
				Input:        call.StructuredInput,
			}
		})

		out := e.invoke(ctx, sess, ex, editor, stream, call)
		ex.ToolInvocations = append(ex.ToolInvocations, types.ToolInvocation{Call: call, Output: &out})

		stream.Emit(event.UIToolResult, func(ev *event.UIEvent) {
			ev.ToolResult = &event.ToolResultData{
				InvocationID: call.InvocationID,
				Output:       out.Result,
				Error:        out.Error,
			}
		})

		toolMsg := &types.Message{
			ID:         generateID(),
			SessionID:  sess.ID,
			Role:       "tool",
			ToolCallID: call.InvocationID,
			Time:       types.MessageTime{Created: time.Now().UnixMilli()},
		}
		if out.IsError() {
			toolMsg.Content = "Error: " + out.Error
		} else {
			toolMsg.Content = string(out.Result)
		}
		ex.OutputMessages = append(ex.OutputMessages, toolMsg)

		if out.IsError() && out.Error == errs.ErrToolInputInvalid.Error() {
			// Surfaced to the LLM as the tool message above; one
			// corrective retry is allowed before the exchange fails.
			return false, true, fmt.Errorf("%w: %s", errs.ErrToolInputInvalid, call.ToolName)
		}
		if call.ToolName == "attempt_completion" {
			return true, false, nil
		}
	}
	return false, false, nil
}

// invoke validates and executes one tool call, mapping failures into a
// structured ToolOutput rather than an error — workspace and tool
// failures are data the agent reacts to, never transport failures.
func (e *Engine) invoke(ctx context.Context, sess *types.Session, ex *types.Exchange, editor *editorclient.Client, stream *event.ExchangeStream, call types.ToolCall) types.ToolOutput {
	out := types.ToolOutput{ToolName: call.ToolName, InvocationID: call.InvocationID}

	t, ok := e.tools.Get(call.ToolName)
	if !ok {
		out.Error = fmt.Sprintf("unknown tool: %s", call.ToolName)
		return out
	}
	if !json.Valid(call.StructuredInput) {
		out.Error = errs.ErrToolInputInvalid.Error()
		return out
	}

	toolCtx := &tool.Context{
		SessionID: sess.ID,
		MessageID: ex.ID,
		CallID:    call.InvocationID,
		WorkDir:   sess.Directory,
		AbortCh:   ctx.Done(),
		Extra: map[string]any{
			tool.ExtraEditorClient: editor,
			tool.ExtraLLMBroker:    e.broker,
			tool.ExtraLLMProvider:  e.providerKey,
			tool.ExtraLLMModel:     e.modelID,
			tool.ExtraToolRegistry: e.tools,
		},
	}

	result, err := t.Execute(ctx, call.StructuredInput, toolCtx)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if result.Error != nil {
		out.Error = result.Error.Error()
		return out
	}

	payload, err := json.Marshal(result.Output)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Result = payload

	e.emitFileEdit(stream, call, result)
	return out
}

// emitFileEdit surfaces workspace edits as file_edit UI events so the
// editor can update inline without re-reading the file.
func (e *Engine) emitFileEdit(stream *event.ExchangeStream, call types.ToolCall, result *tool.Result) {
	switch call.ToolName {
	case "apply_edits", "create_file", "anchor_edit", "edit", "write":
	default:
		return
	}
	var in struct {
		FSPath  string            `json:"fs_file_path"`
		Path    string            `json:"path"`
		Range   types.SymbolRange `json:"range"`
		NewText string            `json:"new_text"`
	}
	if err := json.Unmarshal(call.StructuredInput, &in); err != nil {
		return
	}
	path := in.FSPath
	if path == "" {
		path = in.Path
	}
	if path == "" {
		return
	}
	stream.Emit(event.UIFileEdit, func(ev *event.UIEvent) {
		ev.FileEdit = &event.FileEditData{Path: path, Range: in.Range, NewText: in.NewText}
	})
}

// promptTools selects the tool catalog offered for an exchange kind.
// Anchor edits are scoped: the agent may only rewrite the anchored
// symbol, check its references and declare completion.
func (e *Engine) promptTools(kind types.ExchangeKind) ([]*schema.ToolInfo, []string) {
	var selected []tool.Tool
	if kind == types.ExchangeHumanAnchorEdit {
		for _, id := range []string{"anchor_edit", "reference_check", "attempt_completion"} {
			if t, ok := e.tools.Get(id); ok {
				selected = append(selected, t)
			}
		}
	} else {
		selected = e.tools.List()
	}

	infos := make([]*schema.ToolInfo, 0, len(selected))
	names := make([]string, 0, len(selected))
	for _, t := range selected {
		params := parseJSONSchemaToParams(t.Parameters())
		infos = append(infos, &schema.ToolInfo{
			Name:        t.ID(),
			Desc:        t.Description(),
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
		names = append(names, t.ID())
	}
	return infos, names
}

// buildPrompt assembles the completion request messages: system
// preamble + aide rules, repo map when requested, recent-changes
// context (L2 marked as a cache point, then L1), the transcript of
// prior exchanges, and finally the current turn.
func (e *Engine) buildPrompt(sess *types.Session, ex *types.Exchange, req StartRequest, recent *types.DiffRecentChanges) ([]*schema.Message, []int) {
	var messages []*schema.Message
	var cacheHints []int

	agent := DefaultAgent()
	if req.Kind == types.ExchangeHumanAnchorEdit {
		agent = AnchorAgent()
	}
	system := NewSystemPrompt(sess, agent, e.providerKey, e.modelID).Build()
	if sess.AideRules != nil && *sess.AideRules != "" {
		system += "\n\n" + *sess.AideRules
	}
	messages = append(messages, &schema.Message{Role: schema.System, Content: system})

	if sess.AgentSettings != nil && sess.AgentSettings.CodebaseSearch {
		if outline := e.repoMapOutline(sess.Directory); outline != "" {
			messages = append(messages, &schema.Message{
				Role:    schema.User,
				Content: "Here is a map of the most relevant definitions in the repository:\n\n" + outline,
			})
		}
	}

	if !recent.Empty() {
		l2, l1 := recent.ToMessages()
		if l2 != "" {
			messages = append(messages, &schema.Message{Role: schema.User, Content: l2})
			cacheHints = append(cacheHints, len(messages)-1)
		}
		if l1 != "" {
			messages = append(messages, &schema.Message{Role: schema.User, Content: l1})
		}
	}

	for _, prior := range sess.Exchanges {
		if prior.ID == ex.ID {
			break
		}
		if prior.Input != "" {
			messages = append(messages, &schema.Message{Role: schema.User, Content: prior.Input})
		}
		messages = append(messages, exchangeMessages(prior)...)
	}

	turn := req.UserQuery
	if len(req.AnchoredSymbols) > 0 {
		turn += "\n\n" + renderAnchoredSymbols(req.AnchoredSymbols)
	}
	if req.UserContext != "" {
		turn += "\n\n" + req.UserContext
	}
	messages = append(messages, &schema.Message{Role: schema.User, Content: turn})

	// Replay what the agent has produced so far within this exchange so
	// the next iteration sees its own tool results.
	messages = append(messages, exchangeMessages(ex)...)

	return messages, cacheHints
}

// exchangeMessages converts an exchange's output messages to wire form.
func exchangeMessages(ex *types.Exchange) []*schema.Message {
	var out []*schema.Message
	for _, m := range ex.OutputMessages {
		role := schema.Assistant
		switch m.Role {
		case "user":
			role = schema.User
		case "system":
			role = schema.System
		case "tool":
			role = schema.Tool
		}
		msg := &schema.Message{Role: role, Content: m.Content}
		if m.ToolCallID != "" {
			msg.ToolCallID = m.ToolCallID
		}
		out = append(out, msg)
	}
	return out
}

func renderAnchoredSymbols(symbols []types.AnchoredSymbol) string {
	var b []byte
	for _, s := range symbols {
		b = append(b, fmt.Sprintf(
			"The edit is anchored to the symbol %q (lines %d-%d). Current content:\n```\n%s\n```\n",
			s.Identifier.Name, s.PossibleRange.StartLine, s.PossibleRange.EndLine, s.Content,
		)...)
	}
	return string(b)
}

// repoMapOutline returns the token-budgeted outline for a workspace,
// building or lazily refreshing its tag index. A branch switch in the
// workspace invalidates the cached index immediately rather than
// waiting out the staleness window.
func (e *Engine) repoMapOutline(root string) string {
	if root == "" {
		return ""
	}
	e.mu.Lock()
	m, ok := e.repoMaps[root]
	if !ok {
		m = repomap.New(root, repoMapMaxAge)
		e.repoMaps[root] = m
		if w, err := vcs.NewWatcher(root); err == nil && w != nil {
			w.Start()
			event.Subscribe(event.VcsBranchUpdated, func(event.Event) {
				m.Invalidate()
			})
		}
	}
	e.mu.Unlock()

	outline, err := m.RenderOutline(RepoMapTokenBudget)
	if err != nil {
		logging.Warn().Err(err).Str("root", root).Msg("repo map unavailable")
		return ""
	}
	return outline
}

// fetchRecentChanges pulls the editor's recent-edit hunks and splits
// them into the hot L1 set and the cacheable L2 set.
func (e *Engine) fetchRecentChanges(ctx context.Context, editor *editorclient.Client) *types.DiffRecentChanges {
	if editor == nil {
		return nil
	}
	resp, err := editor.RecentEdits(ctx, editorclient.RecentEditsRequest{})
	if err != nil {
		logging.Warn().Err(err).Msg("recent edits unavailable")
		return nil
	}
	return splitRecentEdits(resp)
}

// nativeCalls converts provider-native tool calls to the engine's form.
func nativeCalls(calls []schema.ToolCall) []types.ToolCall {
	var out []types.ToolCall
	for _, c := range calls {
		id := c.ID
		if id == "" {
			id = generateID()
		}
		out = append(out, types.ToolCall{
			ToolName:        c.Function.Name,
			StructuredInput: json.RawMessage(c.Function.Arguments),
			InvocationID:    id,
		})
	}
	return out
}

// xmlRegionToJSON converts the inner <param>value</param> pairs of an
// XML-emitted tool call into the JSON object the tool schema expects.
// Regions with no parameter tags become {"content": <text>}.
func xmlRegionToJSON(content string) json.RawMessage {
	params := map[string]string{}
	rest := content
	for {
		start := -1
		var name string
		for i := 0; i < len(rest); i++ {
			if rest[i] != '<' {
				continue
			}
			end := i + 1
			for end < len(rest) && rest[end] != '>' && rest[end] != '<' {
				end++
			}
			if end < len(rest) && rest[end] == '>' && end > i+1 && rest[i+1] != '/' {
				start = i
				name = rest[i+1 : end]
			}
			break
		}
		if start < 0 || name == "" {
			break
		}
		open := "<" + name + ">"
		closing := "</" + name + ">"
		openEnd := start + len(open)
		closeIdx := indexFrom(rest, closing, openEnd)
		if closeIdx < 0 {
			break
		}
		params[name] = rest[openEnd:closeIdx]
		rest = rest[closeIdx+len(closing):]
	}

	if len(params) == 0 {
		payload, _ := json.Marshal(map[string]string{"content": content})
		return payload
	}
	payload, _ := json.Marshal(params)
	return payload
}

func indexFrom(s, sub string, from int) int {
	if from >= len(s) {
		return -1
	}
	for i := from; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
