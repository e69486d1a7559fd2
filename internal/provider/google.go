package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/codeglide/sidecar/pkg/types"
)

// GoogleProvider implements Provider for Google Gemini models directly
// against the genai SDK. No eino-ext binding for Gemini exists in the
// wired chat-model stack, so this provider talks to the SDK client
// itself and adapts its streaming iterator onto an eino
// schema.StreamReader, the same contract every other provider in this
// package returns.
type GoogleProvider struct {
	client *genai.Client
	models []types.Model
	config *GoogleConfig
}

// GoogleConfig holds configuration for the Google provider.
type GoogleConfig struct {
	ID        string
	APIKey    string
	Model     string
	MaxTokens int
}

// NewGoogleProvider creates a new Google Gemini provider.
func NewGoogleProvider(ctx context.Context, config *GoogleConfig) (*GoogleProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	return &GoogleProvider{
		client: client,
		models: googleModels(),
		config: config,
	}, nil
}

// ID returns the provider identifier.
func (p *GoogleProvider) ID() string {
	if p.config.ID != "" {
		return p.config.ID
	}
	return "google"
}

// Name returns the human-readable provider name.
func (p *GoogleProvider) Name() string { return "Google" }

// Models returns the list of available models.
func (p *GoogleProvider) Models() []types.Model { return p.models }

// ChatModel has no eino binding for this provider; CreateCompletion and
// StreamStringCompletion go straight to the genai client instead.
func (p *GoogleProvider) ChatModel() model.ToolCallingChatModel { return nil }

// SupportsCacheHints reports prompt-caching support. Gemini's explicit
// context caching requires a separate cache-creation call this
// provider does not yet issue, so cache hints are not honoured.
func (p *GoogleProvider) SupportsCacheHints() bool { return false }

// CreateCompletion creates a streaming completion against Gemini.
func (p *GoogleProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = "gemini-2.0-flash"
	}

	contents := convertToGeminiContents(req.Messages)
	genConfig := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		genConfig.Temperature = &temp
	}
	if len(req.Tools) > 0 {
		genConfig.Tools = convertToGeminiTools(req.Tools)
	}

	sr, sw := schema.Pipe[*schema.Message](1)

	go func() {
		defer sw.Close()

		iter := p.client.Models.GenerateContentStream(ctx, modelID, contents, genConfig)
		for resp, err := range iter {
			if err != nil {
				sw.Send(nil, fmt.Errorf("gemini stream error: %w", err))
				return
			}
			if resp == nil {
				continue
			}
			for _, candidate := range resp.Candidates {
				if candidate == nil || candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part == nil {
						continue
					}
					if part.Text != "" {
						sw.Send(&schema.Message{Role: schema.Assistant, Content: part.Text}, nil)
					}
					if part.FunctionCall != nil {
						sw.Send(toolCallMessage(part.FunctionCall), nil)
					}
				}
			}
		}
	}()

	return NewCompletionStream(sr), nil
}

// StreamStringCompletion issues a raw string completion against Gemini.
func (p *GoogleProvider) StreamStringCompletion(ctx context.Context, req *StringCompletionRequest) (*StringCompletionStream, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = "gemini-2.0-flash"
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: req.Prompt}},
	}}

	genConfig := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(req.MaxTokens)
	}
	temp := float32(req.Temperature)
	genConfig.Temperature = &temp
	if len(req.StopWords) > 0 {
		genConfig.StopSequences = req.StopWords
	}

	sr, sw := schema.Pipe[*schema.Message](1)

	go func() {
		defer sw.Close()
		iter := p.client.Models.GenerateContentStream(ctx, modelID, contents, genConfig)
		for resp, err := range iter {
			if err != nil {
				sw.Send(nil, fmt.Errorf("gemini stream error: %w", err))
				return
			}
			if resp == nil {
				continue
			}
			for _, candidate := range resp.Candidates {
				if candidate == nil || candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part != nil && part.Text != "" {
						sw.Send(&schema.Message{Role: schema.Assistant, Content: part.Text}, nil)
					}
				}
			}
		}
	}()

	return NewStringCompletionStream(sr), nil
}

func toolCallMessage(fc *genai.FunctionCall) *schema.Message {
	argsJSON := "{}"
	if fc.Args != nil {
		if b, err := json.Marshal(fc.Args); err == nil {
			argsJSON = string(b)
		}
	}
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{
				Function: schema.FunctionCall{
					Name:      fc.Name,
					Arguments: argsJSON,
				},
			},
		},
	}
}

func convertToGeminiContents(messages []*schema.Message) []*genai.Content {
	var result []*genai.Content
	for _, msg := range messages {
		if msg.Role == schema.System {
			continue
		}
		role := genai.RoleUser
		if msg.Role == schema.Assistant {
			role = genai.RoleModel
		}
		content := &genai.Content{Role: role}
		if msg.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: tc.Function.Name, Args: args},
			})
		}
		if len(content.Parts) > 0 {
			result = append(result, content)
		}
	}
	return result
}

func convertToGeminiTools(tools []*schema.ToolInfo) []*genai.Tool {
	var decls []*genai.FunctionDeclaration
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Desc,
		})
	}
	if len(decls) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// googleModels returns the list of Gemini models.
func googleModels() []types.Model {
	return []types.Model{
		{
			ID:              "gemini-2.0-flash",
			Name:            "Gemini 2.0 Flash",
			ProviderID:      "google",
			ContextLength:   1000000,
			MaxOutputTokens: 8192,
			SupportsTools:   true,
			SupportsVision:  true,
			InputPrice:      0.1,
			OutputPrice:     0.4,
		},
		{
			ID:              "gemini-1.5-pro",
			Name:            "Gemini 1.5 Pro",
			ProviderID:      "google",
			ContextLength:   2000000,
			MaxOutputTokens: 8192,
			SupportsTools:   true,
			SupportsVision:  true,
			InputPrice:      1.25,
			OutputPrice:     5.0,
		},
		{
			ID:              "gemini-1.5-flash",
			Name:            "Gemini 1.5 Flash",
			ProviderID:      "google",
			ContextLength:   1000000,
			MaxOutputTokens: 8192,
			SupportsTools:   true,
			SupportsVision:  true,
			InputPrice:      0.075,
			OutputPrice:     0.3,
		},
	}
}
