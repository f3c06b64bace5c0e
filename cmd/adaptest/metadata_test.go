package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pavelanni/adaptest/internal/model"
)

func TestLoadMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.yaml")
	data := `model_metadata:
  name: llama3.2
  size: 3B
test_configuration:
  shots: 0
inference_setup:
  temperature: 0.2
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	meta, err := loadMetadata(path)
	if err != nil {
		t.Fatalf("loadMetadata: %v", err)
	}
	if meta.ModelName() != "llama3.2" {
		t.Errorf("model name = %q", meta.ModelName())
	}
	if meta.TestConfiguration["shots"] != 0 {
		t.Errorf("shots = %v", meta.TestConfiguration["shots"])
	}
	if meta.InferenceSetup["temperature"] != 0.2 {
		t.Errorf("temperature = %v", meta.InferenceSetup["temperature"])
	}
}

func TestLoadMetadataErrors(t *testing.T) {
	if meta, err := loadMetadata(""); err != nil || meta.ModelMetadata != nil {
		t.Errorf("empty path: %v %v", meta, err)
	}
	if _, err := loadMetadata(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("model_metadata: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadMetadata(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestWithProcessor(t *testing.T) {
	p, err := newProcessor(context.Background(), processorConfig{kind: "random", seed: 7})
	if err != nil {
		t.Fatalf("newProcessor: %v", err)
	}
	file := model.RunMetadata{ModelMetadata: map[string]any{model.ModelNameKey: "custom"}}

	meta := withProcessor(file, p)
	if meta.ModelName() != "custom" {
		t.Errorf("file values must win, got %q", meta.ModelName())
	}
	if meta.ModelMetadata["provider"] != "builtin" {
		t.Errorf("provider = %v", meta.ModelMetadata["provider"])
	}
	if meta.InferenceSetup["seed"] != uint64(7) {
		t.Errorf("seed = %v", meta.InferenceSetup["seed"])
	}
	if meta.TestConfiguration != nil {
		t.Errorf("test configuration = %v", meta.TestConfiguration)
	}
}

func TestNewProcessorUnknown(t *testing.T) {
	if _, err := newProcessor(context.Background(), processorConfig{kind: "oracle"}); err == nil {
		t.Error("expected error")
	}
}
