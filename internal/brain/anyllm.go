package brain

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

var anyLLMDefaultModels = map[string]string{
	"gemini":    DefaultGeminiModel,
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
	"ollama":    "llama3.2",
	"mistral":   "mistral-small-latest",
	"groq":      "llama-3.1-8b-instant",
}

func isAnyLLMProvider(name string) bool {
	_, ok := anyLLMDefaultModels[name]
	return ok
}

// AnyLLMAdapter generates replies through github.com/mozilla-ai/any-llm-go.
type AnyLLMAdapter struct {
	backend  anyllmlib.Provider
	provider string
	model    string
}

func NewAnyLLMAdapter(provider, model, apiKey, baseURL string) (*AnyLLMAdapter, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if strings.TrimSpace(model) == "" {
		model = anyLLMDefaultModels[provider]
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: no model configured for provider %q", provider)
	}

	var opts []anyllmlib.Option
	if strings.TrimSpace(apiKey) != "" {
		opts = append(opts, anyllmlib.WithAPIKey(apiKey))
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, anyllmlib.WithBaseURL(baseURL))
	}

	backend, err := createBackend(provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", provider, err)
	}
	return &AnyLLMAdapter{backend: backend, provider: provider, model: model}, nil
}

func createBackend(provider string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch provider {
	case "gemini":
		return gemini.New(opts...)
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}

func (a *AnyLLMAdapter) Generate(ctx context.Context, req MessageRequest) (MessageResponse, error) {
	var messages []anyllmlib.Message
	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		messages = append(messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: sys})
	}
	messages = append(messages, anyllmlib.Message{Role: "user", Content: req.InputText})

	resp, err := a.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model:    a.model,
		Messages: messages,
	})
	if err != nil {
		return MessageResponse{}, fmt.Errorf("%s completion: %w", a.provider, err)
	}
	if len(resp.Choices) == 0 {
		return MessageResponse{}, fmt.Errorf("%s completion: %w", a.provider, ErrEmptyReply)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.ContentString())
	if text == "" {
		return MessageResponse{}, fmt.Errorf("%s completion: %w", a.provider, ErrEmptyReply)
	}
	return MessageResponse{Text: text}, nil
}

// Model returns the configured model name.
func (a *AnyLLMAdapter) Model() string { return a.model }
