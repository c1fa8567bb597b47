// Package main is a command-line front end for structured generation: it
// reads a JSON Schema and a prompt, runs the provider chain, and prints the
// resulting JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blueberrycongee/jsonmux"
	"github.com/blueberrycongee/jsonmux/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "jsonmux:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "jsonmux.yaml", "path to configuration file")
	schemaPath := flag.String("schema", "", "path to the JSON Schema file (required)")
	schemaName := flag.String("name", "output", "schema name sent to the provider")
	system := flag.String("system", "", "system prompt")
	prompt := flag.String("prompt", "", "user prompt (required)")
	maxTokens := flag.Int("max-tokens", 0, "max output tokens (0 = provider default)")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall request timeout")
	metricsAddr := flag.String("metrics", "", "expose Prometheus metrics on this address (e.g. :9090)")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	if *schemaPath == "" || *prompt == "" {
		flag.Usage()
		return fmt.Errorf("both -schema and -prompt are required")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logger := observability.NewLogger(observability.LoggerConfig{
		Level:      level,
		Output:     os.Stderr,
		JSONFormat: true,
	}, observability.NewRedactor())

	raw, err := os.ReadFile(*schemaPath)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	client, err := jsonmux.New(
		jsonmux.WithConfigFile(*configPath),
		jsonmux.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := client.GenerateStructured(ctx, jsonmux.GenerateParams{
		SystemPrompt: *system,
		UserPrompt:   *prompt,
		Spec: jsonmux.StructuredOutputSpec{
			Schema:     schema,
			SchemaName: *schemaName,
		},
		Options: jsonmux.GenerateOptions{MaxTokens: *maxTokens},
	})
	if err != nil {
		return err
	}

	var pretty any
	if err := json.Unmarshal(result, &pretty); err == nil {
		if out, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			fmt.Println(string(out))
			return nil
		}
	}
	fmt.Println(string(result))
	return nil
}
