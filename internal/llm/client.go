package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// RefusalError reports that the model explicitly declined to answer.
type RefusalError struct {
	Reason string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("model refused: %s", e.Reason)
}

var (
	// ErrTruncated reports that generation stopped at the length cap.
	// Truncated JSON is never partially trusted.
	ErrTruncated = errors.New("model response truncated at length limit")

	// ErrEmptyResponse reports a completion with no content at all.
	ErrEmptyResponse = errors.New("model returned no content")
)

// ChatCompletionService defines the interface for chat-completion calls.
// This abstraction enables testing without a running model endpoint.
type ChatCompletionService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client issues schema-constrained generation requests against an
// OpenAI-compatible chat-completions endpoint. One attempt per call, no
// automatic retries: retry policy belongs to the caller, and in this
// system the agents degrade instead of retrying.
type Client struct {
	chat  ChatCompletionService
	model string
}

// NewClient creates a Client for the configured endpoint and model.
// baseURL points at a local OpenAI-compatible server; apiKey may be empty
// for endpoints that do not check it.
func NewClient(baseURL, apiKey, model string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &Client{
		chat:  client.Chat.Completions,
		model: model,
	}
}

// NewClientWithService creates a Client backed by an explicit service,
// used by tests to inject a fake.
func NewClientWithService(chat ChatCompletionService, model string) *Client {
	return &Client{chat: chat, model: model}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Request describes one generation call.
type Request struct {
	// Prompt is the full rendered instruction, sent as a single user
	// message.
	Prompt string

	// Schema constrains decoding via response_format json_schema with
	// strict mode. When nil the request asks for plain json_object mode
	// instead (the keyword planner uses this).
	Schema *Schema

	Temperature float64

	// Timeout bounds the call. Zero means no client-side deadline; the
	// import path relies on this to tolerate slow local inference.
	Timeout time.Duration
}

// Generate performs a single schema-constrained completion and returns
// the raw content string. Terminal outcomes besides success: a deadline
// or transport error, *RefusalError, ErrTruncated, or ErrEmptyResponse.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.F(openai.ChatModel(c.model)),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		}),
		Temperature:    openai.F(req.Temperature),
		ResponseFormat: openai.F(responseFormat(req.Schema)),
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", &RefusalError{Reason: choice.Message.Refusal}
	}
	if choice.FinishReason == openai.ChatCompletionChoicesFinishReasonLength {
		return "", ErrTruncated
	}
	if choice.Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return choice.Message.Content, nil
}

// responseFormat builds the response_format parameter: strict
// json_schema when a schema is supplied, json_object otherwise.
func responseFormat(schema *Schema) openai.ChatCompletionNewParamsResponseFormatUnion {
	if schema == nil {
		return openai.ResponseFormatJSONObjectParam{
			Type: openai.F(openai.ResponseFormatJSONObjectTypeJSONObject),
		}
	}
	return openai.ResponseFormatJSONSchemaParam{
		Type: openai.F(openai.ResponseFormatJSONSchemaTypeJSONSchema),
		JSONSchema: openai.F(openai.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   openai.F(schema.Name),
			Schema: openai.F[any](schema.Definition),
			Strict: openai.F(true),
		}),
	}
}
