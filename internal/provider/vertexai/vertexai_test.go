package vertexai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/jsonmux/internal/observability"
	"github.com/blueberrycongee/jsonmux/internal/provider"
	jmerrors "github.com/blueberrycongee/jsonmux/pkg/errors"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

func testClient(t *testing.T, cfg types.ProviderConfig) provider.Provider {
	t.Helper()
	if cfg.APIKey == "" {
		cfg.APIKey = "AIzaTest"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	c, err := New(cfg, observability.Default())
	require.NoError(t, err)
	return c
}

func testRequest() *provider.Request {
	return &provider.Request{
		SystemPrompt: "be terse",
		UserPrompt:   "produce a result",
		Spec: types.StructuredOutputSpec{
			SchemaName: "result",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"result": map[string]any{"type": "string"},
				},
			},
		},
	}
}

func candidateEnvelope(text string) string {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	})
	return string(body)
}

func TestGenerateStructured(t *testing.T) {
	var captured generateRequest
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		query = r.URL.RawQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(candidateEnvelope(`{"result":"success"}`)))
	}))
	defer server.Close()

	out, err := testClient(t, types.ProviderConfig{BaseURL: server.URL}).
		GenerateStructured(context.Background(), testRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"success"}`, string(out))

	assert.Equal(t, "key=AIzaTest", query, "AI Studio mode authenticates via query parameter")
	require.NotNil(t, captured.GenerationConfig)
	assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)
	assert.NotNil(t, captured.GenerationConfig.ResponseJSONSchema)
	require.NotNil(t, captured.SystemInstruction)
	assert.Contains(t, captured.SystemInstruction.Parts[0].Text, "be terse")
	require.Len(t, captured.Contents, 1)
	assert.Equal(t, "user", captured.Contents[0].Role)
}

func TestGenerateStructuredProjectEndpoint(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t,
			"/projects/my-proj/locations/europe-west1/publishers/google/models/gemini-2.0-flash:generateContent",
			r.URL.Path)
		auth = r.Header.Get("Authorization")
		w.Write([]byte(candidateEnvelope(`{"result":"ok"}`)))
	}))
	defer server.Close()

	out, err := testClient(t, types.ProviderConfig{
		BaseURL:  server.URL,
		Project:  "my-proj",
		Location: "europe-west1",
		APIKey:   "ya29.token",
	}).GenerateStructured(context.Background(), testRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"ok"}`, string(out))
	assert.Equal(t, "Bearer ya29.token", auth, "project mode authenticates via bearer token")
}

func TestGenerateStructuredMultiPartText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"text": `{"result":`},
					{"text": `"split"}`},
				}}},
			},
		})
		w.Write(body)
	}))
	defer server.Close()

	out, err := testClient(t, types.ProviderConfig{BaseURL: server.URL}).
		GenerateStructured(context.Background(), testRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"split"}`, string(out))
}

func TestGenerateStructuredNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	_, err := testClient(t, types.ProviderConfig{BaseURL: server.URL}).
		GenerateStructured(context.Background(), testRequest())
	var le *jmerrors.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, jmerrors.CodeEmptyResponse, le.Code)
}

func TestGenerateStructuredUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	_, err := testClient(t, types.ProviderConfig{BaseURL: server.URL}).
		GenerateStructured(context.Background(), testRequest())
	var le *jmerrors.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, jmerrors.CodeRateLimit, le.Code)
	assert.Contains(t, le.Message, "quota exceeded")
}

func TestChatRoleMapping(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(candidateEnvelope("done")))
	}))
	defer server.Close()

	resp, err := testClient(t, types.ProviderConfig{BaseURL: server.URL}).
		Chat(context.Background(), []types.ChatMessage{
			{Role: "system", Content: "stay factual"},
			{Role: "user", Content: "first"},
			{Role: "assistant", Content: "reply"},
			{Role: "user", Content: "second"},
		}, types.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)

	require.NotNil(t, captured.SystemInstruction)
	require.Len(t, captured.Contents, 3)
	assert.Equal(t, "user", captured.Contents[0].Role)
	assert.Equal(t, "model", captured.Contents[1].Role)
	assert.Equal(t, "user", captured.Contents[2].Role)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(types.ProviderConfig{Model: "gemini-2.0-flash"}, observability.Default())
	var le *jmerrors.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, jmerrors.CodeInvalidRequest, le.Code)

	_, err = New(types.ProviderConfig{APIKey: "k"}, observability.Default())
	require.ErrorAs(t, err, &le)
	assert.Equal(t, jmerrors.CodeInvalidRequest, le.Code)
}
