// Package vertexai implements the Google Vertex AI / Gemini provider
// adapter. It speaks the generateContent API and requests structured output
// through responseMimeType + responseJsonSchema.
// API Reference: https://cloud.google.com/vertex-ai/docs/generative-ai/model-reference/gemini
package vertexai

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

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "vertexai"

	// DefaultBaseURL is the Google AI Studio endpoint, used when no Cloud
	// project is configured.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultAPIVersion is the generateContent API version.
	DefaultAPIVersion = "v1beta"

	// DefaultLocation is the Vertex region used when none is configured.
	DefaultLocation = "us-central1"
)

// Client implements the Gemini generateContent adapter.
type Client struct {
	apiKey   string
	baseURL  string
	model    string
	project  string
	location string

	maxTokens int
	http      *http.Client
	logger    *observability.Logger
}

// New creates a new Vertex AI provider instance.
//
// Authentication uses the configured API key, either as a query parameter
// (AI Studio) or as a bearer token (Cloud project endpoints). Service
// account token exchange is expected to happen outside this adapter, with
// the resulting short-lived token supplied as the API key.
func New(cfg types.ProviderConfig, logger *observability.Logger) (provider.Provider, error) {
	if cfg.Model == "" {
		return nil, jmerrors.New(jmerrors.CodeInvalidRequest, ProviderName, "",
			"provider configuration is missing a model")
	}
	if cfg.APIKey == "" {
		return nil, jmerrors.New(jmerrors.CodeInvalidRequest, ProviderName, cfg.Model,
			"provider configuration is missing an API key or access token")
	}

	location := cfg.Location
	if location == "" {
		location = DefaultLocation
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Project != "" {
			baseURL = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", location)
		} else {
			baseURL = DefaultBaseURL
		}
	}

	return &Client{
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		model:     cfg.Model,
		project:   cfg.Project,
		location:  location,
		maxTokens: cfg.MaxTokens,
		http:      &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
	}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string { return ProviderName }

// Model returns the configured model.
func (c *Client) Model() string { return c.model }

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type generationConfig struct {
	MaxOutputTokens    int            `json:"maxOutputTokens,omitempty"`
	StopSequences      []string       `json:"stopSequences,omitempty"`
	Seed               *int           `json:"seed,omitempty"`
	ResponseMimeType   string         `json:"responseMimeType,omitempty"`
	ResponseJSONSchema map[string]any `json:"responseJsonSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// GenerateStructured implements provider.Provider.
func (c *Client) GenerateStructured(ctx context.Context, req *provider.Request) (json.RawMessage, error) {
	c.logger.Debug("structured generation attempt",
		"provider", ProviderName,
		"model", c.model,
		"schema", req.Spec.SchemaName,
		"request_id", req.RequestID,
	)

	schema, violations := schemacompat.ForProvider(req.Spec.Schema, schemacompat.ProfileVertex)
	if len(violations) > 0 {
		return nil, jmerrors.New(jmerrors.CodeSchemaIncompatible, ProviderName, c.model,
			fmt.Sprintf("schema %s cannot be expressed for this provider: %s",
				req.Spec.SchemaName, strings.Join(violations, "; ")))
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	env := &generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: req.UserPrompt}}},
		},
		SystemInstruction: &content{
			Parts: []part{{Text: provider.GuardrailSystemPrompt(req.SystemPrompt, req.Spec)}},
		},
		GenerationConfig: &generationConfig{
			MaxOutputTokens:    maxTokens,
			StopSequences:      req.Stop,
			Seed:               req.Seed,
			ResponseMimeType:   "application/json",
			ResponseJSONSchema: schema,
		},
	}

	text, err := c.generate(ctx, env)
	if err != nil {
		return nil, err
	}
	return provider.DecodeStructured(ProviderName, c.model, req.Spec, text)
}

// Chat implements the legacy plain-text operation.
func (c *Client) Chat(ctx context.Context, messages []types.ChatMessage, opts types.ChatOptions) (*types.ChatResponse, error) {
	env := &generateRequest{
		GenerationConfig: &generationConfig{
			MaxOutputTokens: opts.MaxTokens,
			StopSequences:   opts.Stop,
		},
	}
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			env.SystemInstruction = &content{Parts: []part{{Text: msg.Content}}}
		case "assistant":
			env.Contents = append(env.Contents, content{Role: "model", Parts: []part{{Text: msg.Content}}})
		default:
			env.Contents = append(env.Contents, content{Role: "user", Parts: []part{{Text: msg.Content}}})
		}
	}

	text, err := c.generate(ctx, env)
	if err != nil {
		return nil, err
	}
	return &types.ChatResponse{Content: text, Model: c.model}, nil
}

func (c *Client) endpoint() (url string, bearer bool) {
	if c.project != "" {
		return fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
			c.baseURL, c.project, c.location, c.model), true
	}
	return fmt.Sprintf("%s/%s/models/%s:generateContent?key=%s",
		c.baseURL, DefaultAPIVersion, c.model, c.apiKey), false
}

func (c *Client) generate(ctx context.Context, env *generateRequest) (string, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return "", jmerrors.New(jmerrors.CodeInvalidRequest, ProviderName, c.model,
			fmt.Sprintf("marshal request: %v", err)).WithCause(err)
	}

	url, bearer := c.endpoint()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", jmerrors.New(jmerrors.CodeInvalidRequest, ProviderName, c.model,
			fmt.Sprintf("create request: %v", err)).WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if bearer {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		var ne net.Error
		if ctx.Err() != nil || (errors.As(err, &ne) && ne.Timeout()) {
			return "", jmerrors.New(jmerrors.CodeTimeout, ProviderName, c.model,
				fmt.Sprintf("request timed out: %v", err)).WithCause(err)
		}
		return "", jmerrors.New(jmerrors.CodeProvider, ProviderName, c.model,
			fmt.Sprintf("execute request: %v", err)).WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", jmerrors.New(jmerrors.CodeProvider, ProviderName, c.model,
			fmt.Sprintf("read response: %v", err)).WithCause(err)
	}

	if resp.StatusCode >= 400 {
		return "", c.mapError(resp.StatusCode, respBody)
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", jmerrors.New(jmerrors.CodeProvider, ProviderName, c.model,
			fmt.Sprintf("unmarshal response: %v", err)).WithRaw(string(respBody)).WithCause(err)
	}
	if len(genResp.Candidates) == 0 {
		return "", jmerrors.New(jmerrors.CodeEmptyResponse, ProviderName, c.model,
			"empty response: no candidates").WithRaw(string(respBody))
	}

	var text strings.Builder
	for _, p := range genResp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), nil
}

func (c *Client) mapError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	message := jmerrors.Truncate(string(body), jmerrors.RawPreviewLimit)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}
	return jmerrors.FromStatus(ProviderName, c.model, statusCode, message).WithRaw(string(body))
}
