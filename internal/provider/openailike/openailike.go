// Package openailike implements structured generation against the OpenAI
// chat-completions dialect. Most providers speak this format with minor
// variations; concrete providers (groq, cerebras, openai) configure or wrap
// this base instead of duplicating it.
package openailike

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/jsonmux/internal/observability"
	"github.com/blueberrycongee/jsonmux/internal/provider"
	"github.com/blueberrycongee/jsonmux/internal/schemacompat"
	jmerrors "github.com/blueberrycongee/jsonmux/pkg/errors"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

// Info contains the per-provider variations on the shared dialect.
type Info struct {
	// Name is the provider identifier (e.g. "groq").
	Name string

	// DefaultBaseURL is used when the configuration leaves BaseURL empty.
	DefaultBaseURL string

	// Profile selects the schema compatibility pipeline.
	Profile schemacompat.Profile

	// ChatEndpoint defaults to "/chat/completions".
	ChatEndpoint string
}

// Client is the shared OpenAI-compatible adapter.
type Client struct {
	info      Info
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	http      *http.Client
	logger    *observability.Logger
}

// New creates an adapter for one OpenAI-compatible provider.
func New(cfg types.ProviderConfig, info Info, logger *observability.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, jmerrors.New(jmerrors.CodeInvalidRequest, info.Name, cfg.Model,
			"provider configuration is missing an API key")
	}
	if cfg.Model == "" {
		return nil, jmerrors.New(jmerrors.CodeInvalidRequest, info.Name, "",
			"provider configuration is missing a model")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = info.DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &Client{
		info:      info,
		apiKey:    cfg.APIKey,
		baseURL:   baseURL,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		http:      &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
	}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return c.info.Name }

// Model returns the configured model.
func (c *Client) Model() string { return c.model }

// ChatRequest is the wire envelope for the chat-completions endpoint.
type ChatRequest struct {
	Model          string              `json:"model"`
	Messages       []types.ChatMessage `json:"messages"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	Stop           []string            `json:"stop,omitempty"`
	Seed           *int                `json:"seed,omitempty"`
	ResponseFormat *ResponseFormat     `json:"response_format,omitempty"`
}

// ResponseFormat selects the provider's structured-output mode.
type ResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *JSONSchemaFormat `json:"json_schema,omitempty"`
}

// JSONSchemaFormat carries the transformed schema in strict mode.
type JSONSchemaFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

// GenerateStructured implements provider.Provider.
func (c *Client) GenerateStructured(ctx context.Context, req *provider.Request) (json.RawMessage, error) {
	c.logger.Debug("structured generation attempt",
		"provider", c.info.Name,
		"model", c.model,
		"schema", req.Spec.SchemaName,
		"request_id", req.RequestID,
	)

	schema, err := c.CompatSchema(req.Spec)
	if err != nil {
		return nil, err
	}

	env := c.BuildEnvelope(req, &ResponseFormat{
		Type: "json_schema",
		JSONSchema: &JSONSchemaFormat{
			Name:   req.Spec.SchemaName,
			Schema: schema,
			Strict: true,
		},
	})

	text, err := c.Complete(ctx, env)
	if err != nil {
		return nil, err
	}
	return provider.DecodeStructured(c.info.Name, c.model, req.Spec, text)
}

// CompatSchema runs the provider's compatibility pipeline over the canonical
// schema. Violations surface as a fatal pre-network incompatibility.
func (c *Client) CompatSchema(spec types.StructuredOutputSpec) (map[string]any, error) {
	schema, violations := schemacompat.ForProvider(spec.Schema, c.info.Profile)
	if len(violations) > 0 {
		return nil, jmerrors.New(jmerrors.CodeSchemaIncompatible, c.info.Name, c.model,
			fmt.Sprintf("schema %s cannot be expressed for this provider: %s",
				spec.SchemaName, strings.Join(violations, "; ")))
	}
	return schema, nil
}

// BuildEnvelope assembles the guardrailed message pair and request body.
func (c *Client) BuildEnvelope(req *provider.Request, format *ResponseFormat) *ChatRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	return &ChatRequest{
		Model: c.model,
		Messages: []types.ChatMessage{
			{Role: "system", Content: provider.GuardrailSystemPrompt(req.SystemPrompt, req.Spec)},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxTokens:      maxTokens,
		Stop:           req.Stop,
		Seed:           req.Seed,
		ResponseFormat: format,
	}
}

// Complete posts the envelope and returns the assistant's raw text.
func (c *Client) Complete(ctx context.Context, env *ChatRequest) (string, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return "", jmerrors.New(jmerrors.CodeInvalidRequest, c.info.Name, c.model,
			fmt.Sprintf("marshal request: %v", err)).WithCause(err)
	}

	endpoint := c.info.ChatEndpoint
	if endpoint == "" {
		endpoint = "/chat/completions"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return "", jmerrors.New(jmerrors.CodeInvalidRequest, c.info.Name, c.model,
			fmt.Sprintf("create request: %v", err)).WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return "", jmerrors.New(jmerrors.CodeTimeout, c.info.Name, c.model,
				fmt.Sprintf("request timed out: %v", err)).WithCause(err)
		}
		return "", jmerrors.New(jmerrors.CodeProvider, c.info.Name, c.model,
			fmt.Sprintf("execute request: %v", err)).WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", jmerrors.New(jmerrors.CodeProvider, c.info.Name, c.model,
			fmt.Sprintf("read response: %v", err)).WithCause(err)
	}

	if resp.StatusCode >= 400 {
		return "", c.MapError(resp.StatusCode, respBody)
	}

	text, err := ExtractText(respBody)
	if err != nil {
		return "", jmerrors.New(jmerrors.CodeEmptyResponse, c.info.Name, c.model,
			err.Error()).WithRaw(string(respBody)).WithCause(err)
	}
	return text, nil
}

// Chat implements the legacy plain-text operation.
func (c *Client) Chat(ctx context.Context, messages []types.ChatMessage, opts types.ChatOptions) (*types.ChatResponse, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	text, err := c.Complete(ctx, &ChatRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: maxTokens,
		Stop:      opts.Stop,
	})
	if err != nil {
		return nil, err
	}
	return &types.ChatResponse{Content: text, Model: c.model}, nil
}

// MapError converts an upstream error body into a typed error, preserving
// the provider's diagnostic message.
func (c *Client) MapError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}

	message := jmerrors.Truncate(string(body), jmerrors.RawPreviewLimit)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}
	return jmerrors.FromStatus(c.info.Name, c.model, statusCode, message).WithRaw(string(body))
}

// ExtractText pulls the assistant text out of either response envelope this
// dialect family produces: chat-completions choices, or the Responses API's
// output_text / output[].content[].text.
func ExtractText(body []byte) (string, error) {
	var envelope struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("unrecognized response envelope: %w", err)
	}

	if len(envelope.Choices) > 0 && envelope.Choices[0].Message.Content != "" {
		return envelope.Choices[0].Message.Content, nil
	}
	if envelope.OutputText != "" {
		return envelope.OutputText, nil
	}
	for _, out := range envelope.Output {
		for _, content := range out.Content {
			if content.Text != "" {
				return content.Text, nil
			}
		}
	}
	return "", fmt.Errorf("empty response: no assistant content in envelope")
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
