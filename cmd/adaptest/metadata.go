package main

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/adaptest/internal/llm"
	"github.com/pavelanni/adaptest/internal/model"
	"github.com/pavelanni/adaptest/internal/runner"
)

// loadMetadata reads run metadata from a YAML file. An empty path yields
// empty metadata.
func loadMetadata(path string) (model.RunMetadata, error) {
	var meta model.RunMetadata
	if path == "" {
		return meta, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return meta, fmt.Errorf("read metadata %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("parse metadata %s: %w", path, err)
	}
	return meta, nil
}

// describedProcessor is an item processor that can describe itself in run
// metadata.
type describedProcessor struct {
	runner.ItemProcessor
	model     map[string]any
	inference map[string]any
}

// withProcessor fills the model and inference sections of meta that the
// file left out.
func withProcessor(meta model.RunMetadata, p describedProcessor) model.RunMetadata {
	out := model.RunMetadata{
		ModelMetadata:     maps.Clone(p.model),
		TestConfiguration: maps.Clone(meta.TestConfiguration),
		InferenceSetup:    maps.Clone(p.inference),
	}
	if out.ModelMetadata == nil {
		out.ModelMetadata = map[string]any{}
	}
	if out.InferenceSetup == nil {
		out.InferenceSetup = map[string]any{}
	}
	maps.Copy(out.ModelMetadata, meta.ModelMetadata)
	maps.Copy(out.InferenceSetup, meta.InferenceSetup)
	return out
}

type processorConfig struct {
	kind    string
	seed    uint64
	url     string
	key     string
	model   string
	variant string
}

func newProcessor(ctx context.Context, cfg processorConfig) (describedProcessor, error) {
	switch cfg.kind {
	case "first":
		return describedProcessor{
			ItemProcessor: runner.FirstChoice,
			model:         map[string]any{model.ModelNameKey: "first-choice", "provider": "builtin"},
		}, nil
	case "random":
		seed := cfg.seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		return describedProcessor{
			ItemProcessor: runner.NewRandomChoice(seed),
			model:         map[string]any{model.ModelNameKey: "random-choice", "provider": "builtin"},
			inference:     map[string]any{"seed": seed},
		}, nil
	case "llm":
		c, err := llm.New(cfg.url, cfg.key, cfg.model, cfg.variant)
		if err != nil {
			return describedProcessor{}, fmt.Errorf("create LLM client: %w", err)
		}
		if err := c.Ping(ctx); err != nil {
			return describedProcessor{}, fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", cfg.url, "model", cfg.model)
		return describedProcessor{ItemProcessor: c, model: c.Metadata(), inference: c.InferenceSetup()}, nil
	default:
		return describedProcessor{}, fmt.Errorf("unknown processor %q (want llm, first or random)", cfg.kind)
	}
}
