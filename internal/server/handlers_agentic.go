package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/codeglide/sidecar/internal/event"
	"github.com/codeglide/sidecar/internal/fim"
	"github.com/codeglide/sidecar/internal/logging"
	"github.com/codeglide/sidecar/internal/session"
	"github.com/codeglide/sidecar/pkg/types"
)

// agenticSessionRequest is the body of POST /api/agentic/session.
type agenticSessionRequest struct {
	SessionID      string  `json:"session_id"`
	ExchangeID     string  `json:"exchange_id"`
	EditorURL      string  `json:"editor_url"`
	UserQuery      string  `json:"user_query"`
	WorkspaceRoot  string  `json:"workspace_root"`
	AideRules      *string `json:"aide_rules,omitempty"`
	CodebaseSearch bool    `json:"codebase_search"`
	DeepReasoning  bool    `json:"deep_reasoning"`
	UserContext    string  `json:"user_context"`
}

// anchorEditRequest is the body of POST /api/agentic/anchor_edit.
type anchorEditRequest struct {
	agenticSessionRequest
	AnchoredSymbols []types.AnchoredSymbol `json:"anchored_symbols"`
}

func (s *Server) apiHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"done": true})
}

func (s *Server) apiVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version_hash":    s.versionHash,
		"package_version": s.packageVersion,
	})
}

func (s *Server) apiConfig(w http.ResponseWriter, r *http.Request) {
	providers := make([]string, 0)
	for _, p := range s.providerReg.List() {
		providers = append(providers, p.ID())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"directory": s.config.Directory,
		"providers": providers,
		"tools":     s.toolReg.IDs(),
	})
}

func (s *Server) apiAgenticSession(w http.ResponseWriter, r *http.Request) {
	var req agenticSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.streamExchange(w, r, req, types.ExchangeHumanAgentic, nil)
}

func (s *Server) apiAnchorEdit(w http.ResponseWriter, r *http.Request) {
	var req anchorEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.AnchoredSymbols) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "anchored_symbols is required")
		return
	}
	s.streamExchange(w, r, req.agenticSessionRequest, types.ExchangeHumanAnchorEdit, req.AnchoredSymbols)
}

// streamExchange starts the exchange and drains its UI events into the
// SSE response. The stream always terminates with exchange_finished.
func (s *Server) streamExchange(w http.ResponseWriter, r *http.Request, req agenticSessionRequest, kind types.ExchangeKind, symbols []types.AnchoredSymbol) {
	if req.SessionID == "" || req.UserQuery == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_id and user_query are required")
		return
	}

	stream, err := s.engine.Start(r.Context(), session.StartRequest{
		SessionID:       req.SessionID,
		ExchangeID:      req.ExchangeID,
		EditorURL:       req.EditorURL,
		UserQuery:       req.UserQuery,
		UserContext:     req.UserContext,
		WorkspaceRoot:   req.WorkspaceRoot,
		AideRules:       req.AideRules,
		CodebaseSearch:  req.CodebaseSearch,
		DeepReasoning:   req.DeepReasoning,
		Kind:            kind,
		AnchoredSymbols: symbols,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "exchange_failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sse, err := newSSEWriter(w)
	if err != nil {
		return
	}

	for {
		ev, ok := stream.Next()
		if !ok {
			return
		}
		if err := sse.writeEvent(string(ev.Type), ev); err != nil {
			// Client went away; the exchange keeps running so the
			// session can be resumed, unless it is cancelled explicitly.
			logging.Debug().Err(err).Str("exchange", ev.ExchangeID).Msg("sse client disconnected")
			for {
				if _, ok := stream.Next(); !ok {
					return
				}
			}
		}
		if ev.Type == event.UIExchangeFinished {
			return
		}
	}
}

func (s *Server) apiAgenticCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID  string `json:"session_id"`
		ExchangeID string `json:"exchange_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	accepted := s.engine.Cancel(req.SessionID, req.ExchangeID)
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": accepted})
}

func (s *Server) apiAgenticUndo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID  string `json:"session_id"`
		ExchangeID string `json:"exchange_id"`
		Index      *int   `json:"index,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.engine.Undo(r.Context(), req.SessionID, req.ExchangeID, req.Index); err != nil {
		writeError(w, http.StatusBadRequest, "undo_failed", err.Error())
		return
	}
	writeSuccess(w)
}

// inlineCompletionRequest is the body of POST /api/inline_completion.
type inlineCompletionRequest struct {
	RequestID string   `json:"request_id"`
	Prefix    string   `json:"prefix"`
	Suffix    string   `json:"suffix"`
	Model     string   `json:"model"`
	Provider  string   `json:"provider,omitempty"`
	StopWords []string `json:"stop_words,omitempty"`
}

func (s *Server) apiInlineCompletion(w http.ResponseWriter, r *http.Request) {
	var req inlineCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.RequestID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "request_id is required")
		return
	}

	providerID := req.Provider
	if providerID == "" {
		providerID = s.defaultProviderID
	}
	prov, err := s.providerReg.Get(providerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_provider", err.Error())
		return
	}

	completion, err := s.fimDispatcher.Complete(r.Context(), req.RequestID, prov, fim.Request{
		Prefix:    req.Prefix,
		Suffix:    req.Suffix,
		Model:     req.Model,
		StopWords: req.StopWords,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			writeJSON(w, http.StatusOK, map[string]any{"completion": completion, "cancelled": true})
			return
		}
		writeError(w, http.StatusBadGateway, "completion_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"completion": completion})
}

func (s *Server) apiInlineCompletionCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestID string `json:"request_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.fimRegistry.Cancel(req.RequestID)
	writeSuccess(w)
}
