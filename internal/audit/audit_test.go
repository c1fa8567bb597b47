package audit

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/jsonmux/internal/observability"
	"github.com/blueberrycongee/jsonmux/internal/provider"
	"github.com/blueberrycongee/jsonmux/internal/provider/fake"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

func testRequest() *provider.Request {
	return &provider.Request{
		SystemPrompt: "  be terse  ",
		UserPrompt:   "summarize chapter one",
		Spec: types.StructuredOutputSpec{
			SchemaName: "Episode",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{"type": "string"},
				},
			},
		},
		Telemetry: map[string]any{"jobId": "j-1"},
	}
}

func TestWrapDisabledReturnsSameAdapter(t *testing.T) {
	inner := fake.NewWith(json.RawMessage(`{"title":"ok"}`))
	wrapped := Wrap(inner, Config{Enabled: false}, observability.Default())
	assert.Same(t, any(inner), any(wrapped))
}

func TestRecorderAppendsOneLinePerCall(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "audit")
	inner := fake.NewWith(json.RawMessage(`{"title":"ok"}`))
	wrapped := Wrap(inner, Config{Enabled: true, Dir: dir}, observability.Default())

	for i := 0; i < 2; i++ {
		_, err := wrapped.GenerateStructured(context.Background(), testRequest())
		require.NoError(t, err)
	}

	lines := readLines(t, filepath.Join(dir, "structured.ndjson"))
	require.Len(t, lines, 2)

	var rec struct {
		Ts     string `json:"ts"`
		Kind   string `json:"kind"`
		Prompt struct {
			Provider     string         `json:"provider"`
			SchemaName   string         `json:"schemaName"`
			SystemPrompt string         `json:"systemPrompt"`
			UserPrompt   string         `json:"userPrompt"`
			Telemetry    map[string]any `json:"telemetry"`
		} `json:"prompt"`
		Response *string `json:"response"`
		Error    string  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))

	assert.Equal(t, "structured", rec.Kind)
	assert.NotEmpty(t, rec.Ts)
	assert.Equal(t, "fake", rec.Prompt.Provider)
	assert.Equal(t, "Episode", rec.Prompt.SchemaName)
	assert.Equal(t, "be terse", rec.Prompt.SystemPrompt, "prompts are trimmed")
	assert.Equal(t, "summarize chapter one", rec.Prompt.UserPrompt)
	assert.Equal(t, "j-1", rec.Prompt.Telemetry["jobId"])
	require.NotNil(t, rec.Response)
	assert.JSONEq(t, `{"title":"ok"}`, *rec.Response)
	assert.Empty(t, rec.Error)
}

func TestRecorderLogsErrorsWithNullResponse(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("upstream exploded")
	inner := fake.NewWith(nil, boom)
	wrapped := Wrap(inner, Config{Enabled: true, Dir: dir}, observability.Default())

	_, err := wrapped.GenerateStructured(context.Background(), testRequest())
	require.ErrorIs(t, err, boom)

	lines := readLines(t, filepath.Join(dir, "structured.ndjson"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Nil(t, rec["response"])
	assert.Contains(t, rec["error"], "upstream exploded")
}

func TestAppendFailureNeverFailsTheCall(t *testing.T) {
	// Point the audit dir at an existing file so MkdirAll fails.
	base := t.TempDir()
	blocked := filepath.Join(base, "occupied")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o640))

	inner := fake.NewWith(json.RawMessage(`{"title":"ok"}`))
	wrapped := Wrap(inner, Config{Enabled: true, Dir: blocked}, observability.Default())

	value, err := wrapped.GenerateStructured(context.Background(), testRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"ok"}`, string(value))
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}
