// Package audit decorates a provider adapter with an append-only NDJSON
// record per call. It exists for operators: every structured generation
// leaves one line with the redacted prompt snapshot and the serialized
// response or error.
package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/jsonmux/internal/observability"
	"github.com/blueberrycongee/jsonmux/internal/provider"
	"github.com/blueberrycongee/jsonmux/pkg/types"
)

// Config controls the audit decorator.
type Config struct {
	// Enabled gates the whole feature; when false Wrap returns the adapter
	// unchanged with zero overhead.
	Enabled bool

	// Dir is the log directory, created lazily on first write.
	Dir string

	// FileName defaults to "structured.ndjson".
	FileName string
}

// Wrap returns p decorated with audit logging, or p itself when disabled.
func Wrap(p provider.Provider, cfg Config, logger *observability.Logger) provider.Provider {
	if !cfg.Enabled {
		return p
	}
	if cfg.FileName == "" {
		cfg.FileName = "structured.ndjson"
	}
	return &recorder{
		inner:    p,
		appender: &appender{dir: cfg.Dir, path: filepath.Join(cfg.Dir, cfg.FileName)},
		logger:   logger,
	}
}

// record is one NDJSON line.
type record struct {
	Ts       string       `json:"ts"`
	Kind     string       `json:"kind"`
	Prompt   promptRecord `json:"prompt"`
	Response *string      `json:"response"`
	Error    string       `json:"error,omitempty"`
}

type promptRecord struct {
	Provider     string         `json:"provider"`
	SchemaName   string         `json:"schemaName"`
	SystemPrompt string         `json:"systemPrompt,omitempty"`
	UserPrompt   string         `json:"userPrompt"`
	Telemetry    map[string]any `json:"telemetry,omitempty"`
}

type recorder struct {
	inner    provider.Provider
	appender *appender
	logger   *observability.Logger
}

func (r *recorder) Name() string  { return r.inner.Name() }
func (r *recorder) Model() string { return r.inner.Model() }

func (r *recorder) GenerateStructured(ctx context.Context, req *provider.Request) (json.RawMessage, error) {
	value, err := r.inner.GenerateStructured(ctx, req)

	rec := record{
		Ts:   time.Now().UTC().Format(time.RFC3339Nano),
		Kind: "structured",
		Prompt: promptRecord{
			Provider:     r.inner.Name(),
			SchemaName:   req.Spec.SchemaName,
			SystemPrompt: r.logger.Redact(strings.TrimSpace(req.SystemPrompt)),
			UserPrompt:   r.logger.Redact(strings.TrimSpace(req.UserPrompt)),
			Telemetry:    req.Telemetry,
		},
	}
	if err != nil {
		rec.Error = err.Error()
	} else {
		s := string(value)
		rec.Response = &s
	}

	if appendErr := r.appender.append(rec); appendErr != nil {
		// Audit failures are reported, never propagated.
		r.logger.Error("audit append failed", "error", appendErr, "provider", r.inner.Name())
	}
	return value, err
}

func (r *recorder) Chat(ctx context.Context, messages []types.ChatMessage, opts types.ChatOptions) (*types.ChatResponse, error) {
	return r.inner.Chat(ctx, messages, opts)
}

// appender serializes writes to the log file. The directory is created at
// most once; concurrent first appends share the single sync.Once result.
type appender struct {
	dir  string
	path string

	mkdir    sync.Once
	mkdirErr error

	mu sync.Mutex
}

func (a *appender) append(rec record) error {
	a.mkdir.Do(func() {
		a.mkdirErr = os.MkdirAll(a.dir, 0o750)
	})
	if a.mkdirErr != nil {
		return a.mkdirErr
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(line)
	return err
}
