package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/adaptest/internal/llm/prompts"
	"github.com/pavelanni/adaptest/internal/model"
)

// ErrUnknownChoice is returned when the model answers with an ID that is
// not one of the item's choices.
var ErrUnknownChoice = errors.New("model chose an unknown choice")

// go-openai drops a zero temperature from the request.
const defaultTemperature float32 = 0.1

// Answer is the JSON object the model is asked to reply with.
type Answer struct {
	ChoiceID  string `json:"choice_id"`
	Reasoning string `json:"reasoning,omitempty"`
}

// Client answers test items with an OpenAI-compatible chat model.
type Client struct {
	api         *openai.Client
	baseURL     string
	model       string
	variant     prompts.PromptVariant
	prompts     *prompts.Set
	temperature float32
}

// New creates a new LLM client. An empty baseURL uses the OpenAI default.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if modelName == "" {
		return nil, errors.New("model name is required")
	}
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	set, err := prompts.Default()
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:         openai.NewClientWithConfig(config),
		baseURL:     config.BaseURL,
		model:       modelName,
		variant:     prompts.PromptVariant(variant),
		prompts:     set,
		temperature: defaultTemperature,
	}, nil
}

// Ping checks that the endpoint is reachable and accepts the API key.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Metadata describes the model for the run metadata.
func (c *Client) Metadata() map[string]any {
	return map[string]any{
		model.ModelNameKey: c.model,
		"provider":         "openai-compatible",
		"base_url":         c.baseURL,
	}
}

// InferenceSetup describes how the model is prompted.
func (c *Client) InferenceSetup() map[string]any {
	return map[string]any{
		"prompt_variant":  string(c.variant),
		"temperature":     c.temperature,
		"response_format": "json_object",
	}
}

// ProcessItem asks the model to choose one of the item's choices.
func (c *Client) ProcessItem(ctx context.Context, item model.Item) (string, error) {
	system, err := c.prompts.System(c.variant)
	if err != nil {
		return "", err
	}
	user, err := c.prompts.Item(item)
	if err != nil {
		return "", err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "item_id", item.ID, "raw", raw)

	answer, err := parseAnswer(raw)
	if err != nil {
		return "", err
	}
	if !item.HasChoice(answer.ChoiceID) {
		return "", fmt.Errorf("%w: %q for item %s", ErrUnknownChoice, answer.ChoiceID, item.ID)
	}
	return answer.ChoiceID, nil
}

// parseAnswer decodes the model reply, tolerating a Markdown code fence
// around the JSON object.
func parseAnswer(raw string) (Answer, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}

	var a Answer
	if err := json.Unmarshal([]byte(text), &a); err != nil {
		return Answer{}, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	a.ChoiceID = strings.TrimSpace(a.ChoiceID)
	if a.ChoiceID == "" {
		return Answer{}, fmt.Errorf("parse LLM response: missing choice_id (raw: %s)", raw)
	}
	return a, nil
}
