package model

import (
	"testing"
	"time"
)

func TestRunStateScore(t *testing.T) {
	tests := []struct {
		name  string
		state RunState
		want  *Score
	}{
		{"empty", RunState{}, nil},
		{"no std errors", RunState{Thetas: []float64{0.1}}, nil},
		{"latest values", RunState{Thetas: []float64{0.1, 0.4}, StdErrorHistory: []float64{1, 0.7}}, &Score{Theta: 0.4, StdError: 0.7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.state.Score()
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("Score() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("Score() = %+v, want %+v", *got, *tt.want)
			}
		})
	}
}

func TestItemHasChoice(t *testing.T) {
	it := Item{ID: "i", Choices: []Choice{{ID: "a"}, {ID: "b"}}}
	if !it.HasChoice("b") || it.HasChoice("c") {
		t.Error("unexpected HasChoice result")
	}
}

func TestRunResponseStatus(t *testing.T) {
	if (RunResponse{}).Status() != StatusActive {
		t.Error("expected active")
	}
	if (RunResponse{Completed: true}).Status() != StatusCompleted {
		t.Error("expected completed")
	}
}

func TestRunMetadataToMap(t *testing.T) {
	m := RunMetadata{ModelMetadata: map[string]any{ModelNameKey: "m"}}.ToMap()
	for _, k := range []string{"model_metadata", "test_configuration", "inference_setup"} {
		v, ok := m[k].(map[string]any)
		if !ok || v == nil {
			t.Errorf("%s = %#v, want a non-nil map", k, m[k])
		}
	}
	if (RunMetadata{}).ModelName() != "" {
		t.Error("expected empty model name")
	}
}

func TestCountCorrect(t *testing.T) {
	recs := []ResponseRecord{{Correct: true}, {Correct: false}, {Correct: true}}
	if got := CountCorrect(recs); got != 2 {
		t.Errorf("CountCorrect = %d, want 2", got)
	}
	if got := CountCorrect(nil); got != 0 {
		t.Errorf("CountCorrect(nil) = %d", got)
	}
}

func TestMetricValueType(t *testing.T) {
	tests := []struct {
		v    any
		want string
	}{
		{true, "Boolean"},
		{3, "Float"},
		{0.5, "Float"},
		{"x", "String"},
		{map[string]any{"a": 1}, "Object"},
		{nil, "Object"},
	}
	for _, tt := range tests {
		if got := MetricValueType(tt.v); got != tt.want {
			t.Errorf("MetricValueType(%#v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestNewRunRecord(t *testing.T) {
	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	meta := RunMetadata{ModelMetadata: map[string]any{ModelNameKey: "m"}}

	rec := NewRunRecord(Result{
		RunID: "r1", TestID: "T", Score: &Score{Theta: 0.5, StdError: 0.2},
		ResponsesCorrect: 1, ResponsesTotal: 2,
	}, "p", "e", meta, at)
	if rec.Mode != ModeAdaptive || rec.ReplayOf != "" {
		t.Errorf("mode = %s, replay_of = %q", rec.Mode, rec.ReplayOf)
	}
	if rec.Theta == nil || *rec.Theta != 0.5 || rec.StdError == nil || *rec.StdError != 0.2 {
		t.Errorf("score not copied: %v %v", rec.Theta, rec.StdError)
	}
	if rec.ProjectID != "p" || rec.Experiment != "e" || !rec.CreatedAt.Equal(at) {
		t.Errorf("unexpected record %+v", rec)
	}

	replay := NewRunRecord(Result{RunID: "r2", ReplayOf: "r1", TestID: "T"}, "", "", meta, at)
	if replay.Mode != ModeReplay || replay.ReplayOf != "r1" {
		t.Errorf("mode = %s, replay_of = %q", replay.Mode, replay.ReplayOf)
	}
	if replay.Theta != nil {
		t.Error("expected no theta without a score")
	}
}
