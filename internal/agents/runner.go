/**
 * LLM agent runner.
 *
 * Runner is the narrow interface the analysis layer depends on; the
 * Anthropic implementation is the only production one. Tests substitute a
 * stub.
 */

package agents

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 4096

// Runner executes one prompt against a language model.
type Runner interface {
	Run(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// AnthropicRunner runs prompts against the Anthropic Messages API.
type AnthropicRunner struct {
	client anthropic.Client
	model  string
}

// NewAnthropicRunner creates a runner for the given model.
func NewAnthropicRunner(apiKey, model string) (*AnthropicRunner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	return &AnthropicRunner{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// Run sends the prompt and returns the concatenated text content.
func (r *AnthropicRunner) Run(ctx context.Context, systemPrompt, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: defaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	resp, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic message: %w", err)
	}

	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return content, nil
}
