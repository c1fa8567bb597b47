package jsonmux

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/jsonmux/internal/provider/fake"
	llmerrors "github.com/blueberrycongee/jsonmux/pkg/errors"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

var testSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"result": map[string]any{"type": "string"},
	},
}

func testParams() types.GenerateParams {
	return types.GenerateParams{
		UserPrompt: "produce a result",
		Spec: types.StructuredOutputSpec{
			Schema:     testSchema,
			SchemaName: "result",
		},
	}
}

var fastRetry = RetryPolicy{
	MaxAttempts:        3,
	InitialDelay:       time.Millisecond,
	BackoffFactor:      2.0,
	MaxDelay:           5 * time.Millisecond,
	OnSchemaValidation: true,
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := New(append([]Option{WithRetry(fastRetry)}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestGenerateStructured(t *testing.T) {
	f := fake.NewWith(json.RawMessage(`{"result":"success"}`))
	c := newTestClient(t,
		WithProviders("fake"),
		WithProviderInstance("fake", f),
	)

	out, err := c.GenerateStructured(context.Background(), testParams())
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"success"}`, string(out))
	assert.EqualValues(t, 1, f.Calls())
}

func TestGenerateStructuredValidation(t *testing.T) {
	c := newTestClient(t,
		WithProviders("fake"),
		WithProviderInstance("fake", fake.NewWith(json.RawMessage(`{}`))),
	)

	tests := []struct {
		name   string
		mutate func(*types.GenerateParams)
	}{
		{"empty prompt", func(p *types.GenerateParams) { p.UserPrompt = "" }},
		{"missing schema name", func(p *types.GenerateParams) { p.Spec.SchemaName = "" }},
		{"missing schema", func(p *types.GenerateParams) { p.Spec.Schema = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := testParams()
			tt.mutate(&params)
			_, err := c.GenerateStructured(context.Background(), params)
			var le *llmerrors.Error
			require.ErrorAs(t, err, &le)
			assert.Equal(t, llmerrors.CodeInvalidRequest, le.Code)
		})
	}
}

func TestRetrySameProviderOnParseFailure(t *testing.T) {
	parseErr := llmerrors.New(llmerrors.CodeJSONParse, "fake", "fake-model", "no JSON found")
	f := fake.NewWith(json.RawMessage(`{"result":"ok"}`), parseErr, parseErr)
	c := newTestClient(t,
		WithProviders("fake"),
		WithProviderInstance("fake", f),
	)

	out, err := c.GenerateStructured(context.Background(), testParams())
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"ok"}`, string(out))
	assert.EqualValues(t, 3, f.Calls(), "two retries after the initial attempt")
}

func TestRetryExhaustionKeepsLastError(t *testing.T) {
	parseErr := llmerrors.New(llmerrors.CodeJSONParse, "fake", "fake-model", "no JSON found")
	f := fake.NewWith(nil, parseErr, parseErr, parseErr)
	c := newTestClient(t,
		WithProviders("fake"),
		WithProviderInstance("fake", f),
	)

	_, err := c.GenerateStructured(context.Background(), testParams())
	assert.Same(t, parseErr, err)
	assert.EqualValues(t, 3, f.Calls())
}

func TestConnectivitySwitchesProvider(t *testing.T) {
	primary := fake.NewWith(nil, fmt.Errorf("read tcp 10.0.0.1:443: ECONNRESET"))
	backup := fake.NewWith(json.RawMessage(`{"result":"from backup"}`))
	c := newTestClient(t,
		WithProviders("fake", "cerebras"),
		WithProviderInstance("fake", primary),
		WithProviderInstance("cerebras", backup),
	)

	out, err := c.GenerateStructured(context.Background(), testParams())
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"from backup"}`, string(out))
	assert.EqualValues(t, 1, primary.Calls(), "connectivity failures are not retried in place")
	assert.EqualValues(t, 1, backup.Calls())
}

func TestPostResponseNeverSwitchesProvider(t *testing.T) {
	valErr := llmerrors.New(llmerrors.CodeSchemaValidation, "fake", "fake-model",
		"schema validation failed for result")
	primary := fake.NewWith(nil, valErr, valErr, valErr)
	backup := fake.NewWith(json.RawMessage(`{"result":"unused"}`))
	c := newTestClient(t,
		WithProviders("fake", "cerebras"),
		WithProviderInstance("fake", primary),
		WithProviderInstance("cerebras", backup),
	)

	_, err := c.GenerateStructured(context.Background(), testParams())
	assert.Same(t, valErr, err)
	assert.EqualValues(t, 0, backup.Calls())
}

func TestExhaustionReturnsLastProviderError(t *testing.T) {
	firstErr := fmt.Errorf("dial tcp: connection refused")
	lastErr := llmerrors.New(llmerrors.CodeTimeout, "cerebras", "m", "request timed out").
		WithStatus(408)
	c := newTestClient(t,
		WithProviders("fake", "cerebras"),
		WithProviderInstance("fake", fake.NewWith(nil, firstErr)),
		WithProviderInstance("cerebras", fake.NewWith(nil, lastErr)),
	)

	_, err := c.GenerateStructured(context.Background(), testParams())
	assert.Same(t, lastErr, err, "exhaustion re-raises the last error unchanged")
}

func TestConcurrentIdenticalCallsCoalesce(t *testing.T) {
	f := fake.NewWith(json.RawMessage(`{"result":"shared"}`))
	c := newTestClient(t,
		WithProviders("fake"),
		WithProviderInstance("fake", f),
	)

	const callers = 8
	results := make([]json.RawMessage, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := c.GenerateStructured(context.Background(), testParams())
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, f.Calls(), "identical requests share one upstream call")
	for i := 1; i < callers; i++ {
		assert.Equal(t, results[0], results[i])
	}
	results[0][0] = 'X'
	assert.NotEqual(t, results[0], results[1], "callers receive independent copies")
}

func TestFailureIsNotCached(t *testing.T) {
	fatal := llmerrors.New(llmerrors.CodeProvider, "fake", "fake-model", "upstream exploded")
	f := fake.NewWith(json.RawMessage(`{"result":"recovered"}`), fatal)
	c := newTestClient(t,
		WithProviders("fake"),
		WithProviderInstance("fake", f),
	)

	_, err := c.GenerateStructured(context.Background(), testParams())
	require.Error(t, err)

	out, err := c.GenerateStructured(context.Background(), testParams())
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"recovered"}`, string(out))
	assert.EqualValues(t, 2, f.Calls(), "failed generations are retried from scratch")
}

func TestCacheDisabled(t *testing.T) {
	f := fake.NewWith(json.RawMessage(`{"result":"x"}`))
	c := newTestClient(t,
		WithProviders("fake"),
		WithProviderInstance("fake", f),
		WithoutCache(),
	)

	for i := 0; i < 3; i++ {
		_, err := c.GenerateStructured(context.Background(), testParams())
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, f.Calls())
}

func TestGenerate(t *testing.T) {
	type result struct {
		Result string `json:"result"`
	}
	c := newTestClient(t,
		WithProviders("fake"),
		WithProviderInstance("fake", fake.NewWith(json.RawMessage(`{"result":"typed"}`))),
	)

	out, err := Generate[result](context.Background(), c, testParams())
	require.NoError(t, err)
	assert.Equal(t, "typed", out.Result)
}

func TestChat(t *testing.T) {
	c := newTestClient(t,
		WithProviders("fake"),
		WithProviderInstance("fake", fake.NewWith(nil)),
	)

	resp, err := c.Chat(context.Background(), []types.ChatMessage{
		{Role: "user", Content: "hello"},
	}, types.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", resp.Content)
}
