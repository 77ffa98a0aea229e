package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const llmSystemPrompt = "You are an agricultural market and post-harvest analyst. Given named numeric features, estimate the requested quantity. Respond with strict JSON only."

// LLMCaller returns raw model text for a prompt.
type LLMCaller interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

type AnthropicCaller struct {
	messages AnthropicMessager
}

func NewAnthropicCallerFromEnv() (*AnthropicCaller, error) {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	return &AnthropicCaller{messages: newAnthropicClient(apiKey)}, nil
}

func (a *AnthropicCaller) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.ModelClaudeSonnet4_20250514,
		MaxTokens:   512,
		System:      []anthropic.TextBlockParam{{Text: llmSystemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// LLMPredictor asks a language model for a single numeric estimate. It makes
// one attempt; the registry's timeout bounds it and any failure falls back.
type LLMPredictor struct {
	caller       LLMCaller
	featureNames []string
	instruction  string
}

func NewLLMPredictor(caller LLMCaller, featureNames []string, instruction string) *LLMPredictor {
	return &LLMPredictor{caller: caller, featureNames: append([]string(nil), featureNames...), instruction: instruction}
}

func (p *LLMPredictor) Predict(ctx context.Context, features []float64) (float64, error) {
	if len(features) != len(p.featureNames) {
		return 0, fmt.Errorf("expected %d features, got %d", len(p.featureNames), len(features))
	}
	raw, err := p.caller.GenerateJSON(ctx, p.prompt(features))
	if err != nil {
		return 0, fmt.Errorf("llm transport failure: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("llm returned empty response")
	}
	var out struct {
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &out); err != nil {
		return 0, fmt.Errorf("llm json parse: %w", err)
	}
	if out.Value == nil {
		return 0, errors.New("llm response missing value")
	}
	return *out.Value, nil
}

func (p *LLMPredictor) prompt(features []float64) string {
	var sb strings.Builder
	instr := strings.TrimSpace(p.instruction)
	if instr == "" {
		instr = "Estimate the target value."
	}
	sb.WriteString(instr)
	sb.WriteString("\n\nFeatures:\n")
	for i, name := range p.featureNames {
		fmt.Fprintf(&sb, "- %s: %g\n", name, features[i])
	}
	sb.WriteString("\nRespond with only valid JSON of the form {\"value\": <number>}.")
	return sb.String()
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
