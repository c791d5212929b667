package brain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// DefaultSystemPrompt keeps replies short enough to be spoken back.
const DefaultSystemPrompt = "You are a helpful voice assistant. Reply in one to three short spoken sentences."

var ErrEmptyReply = errors.New("empty reply from model")

// MessageRequest is the normalized request sent to a reply generator.
type MessageRequest struct {
	SessionID    string `json:"session_id"`
	InputText    string `json:"input_text"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// MessageResponse is the generated reply.
type MessageResponse struct {
	Text string `json:"text"`
}

// Adapter turns a transcript into a reply.
type Adapter interface {
	Generate(ctx context.Context, req MessageRequest) (MessageResponse, error)
}

// Config controls adapter construction.
type Config struct {
	Mode    string
	Model   string
	APIKey  string
	BaseURL string
	HTTPURL string
}

// NewAdapter builds the adapter selected by cfg.Mode:
// anyllm provider names (gemini, openai, anthropic, ...), http, mock or auto.
func NewAdapter(cfg Config) (Adapter, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		a, name := newAutoAdapter(cfg)
		return a, name, nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, "", errors.New("brain HTTP url is required for http mode")
		}
		return NewHTTPAdapter(cfg.HTTPURL), "http", nil
	case "mock":
		return NewMockAdapter(), "mock", nil
	default:
		if !isAnyLLMProvider(mode) {
			return nil, "", fmt.Errorf("unsupported brain provider %q", cfg.Mode)
		}
		a, err := NewAnyLLMAdapter(mode, cfg.Model, cfg.APIKey, cfg.BaseURL)
		if err != nil {
			return nil, "", err
		}
		return a, mode, nil
	}
}

// newAutoAdapter prefers gemini when a key is configured, then the HTTP
// endpoint, then the echoing mock. With both a key and an HTTP endpoint the
// endpoint is used as fallback.
func newAutoAdapter(cfg Config) (Adapter, string) {
	var secondary Adapter
	secondaryName := "mock"
	if strings.TrimSpace(cfg.HTTPURL) != "" {
		secondary = NewHTTPAdapter(cfg.HTTPURL)
		secondaryName = "http"
	}

	if strings.TrimSpace(cfg.APIKey) != "" {
		primary, err := NewAnyLLMAdapter("gemini", cfg.Model, cfg.APIKey, cfg.BaseURL)
		if err == nil {
			if secondary != nil {
				return NewFallbackAdapter(primary, secondary), "gemini+http"
			}
			return primary, "gemini"
		}
		log.Printf("brain: gemini unavailable: %v", err)
	}

	if secondary != nil {
		return secondary, secondaryName
	}
	return NewMockAdapter(), secondaryName
}
