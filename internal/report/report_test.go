package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	appI18n "github.com/pavelanni/adaptest/internal/i18n"
	"github.com/pavelanni/adaptest/internal/model"
)

func render(t *testing.T, lang string, exp model.LedgerExport) string {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx := appI18n.WithLanguage(context.Background(), lang)
	var buf bytes.Buffer
	if err := LedgerPage(exp).Render(ctx, &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func testExport() model.LedgerExport {
	theta, se := 0.42, 0.31
	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	return model.LedgerExport{
		GeneratedAt: at,
		ServiceURL:  "https://example.test/api",
		NumRuns:     2,
		Runs: []model.RunView{
			{
				Run: model.RunRecord{
					ID: "run-1", TestID: "DEMO1", Mode: model.ModeAdaptive,
					Theta: &theta, StdError: &se, ResponsesCorrect: 2, ResponsesTotal: 3,
					Metadata:  model.RunMetadata{ModelMetadata: map[string]any{"name": "<b>model</b>"}},
					CreatedAt: at,
				},
				Responses: []model.ResponseRecord{
					{ItemID: "i1", Value: "a", Correct: true},
					{ItemID: "i2", Value: "b", Correct: false},
					{ItemID: "i3", Value: "c", Correct: true},
				},
			},
			{
				Run: model.RunRecord{ID: "run-2", TestID: "DEMO1", Mode: model.ModeReplay, ReplayOf: "run-1", CreatedAt: at},
			},
		},
	}
}

func TestLedgerPage(t *testing.T) {
	out := render(t, "en", testExport())

	for _, want := range []string{
		"<title>Adaptive test runs</title>",
		`<a href="#run-run-1">run-1</a>`,
		"0.420", "0.310", "2 / 3",
		`<td class="incorrect">incorrect</td>`,
		"replay ← run-1",
		`<h2 id="run-run-2">`,
		"https://example.test/api",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "<b>model</b>") {
		t.Error("model name was not escaped")
	}
	if n := strings.Count(out, `<td class="`); n != 3 {
		t.Errorf("expected 3 response rows, got %d", n)
	}
}

func TestLedgerPageRussian(t *testing.T) {
	out := render(t, "ru", testExport())
	if !strings.Contains(out, "Прогоны адаптивных тестов") || !strings.Contains(out, "неверно") {
		t.Error("expected Russian labels")
	}
}

func TestLedgerPageEmpty(t *testing.T) {
	out := render(t, "en", model.LedgerExport{})
	if !strings.Contains(out, "No runs recorded yet") || strings.Contains(out, "<table>") {
		t.Errorf("unexpected empty page: %s", out)
	}
}

func TestLedgerPageEscapesAttributes(t *testing.T) {
	exp := model.LedgerExport{Runs: []model.RunView{{
		Run: model.RunRecord{ID: `x"><script>`, TestID: "DEMO1", Mode: model.ModeAdaptive},
	}}}
	out := render(t, "en", exp)

	if !strings.HasPrefix(out, "<!doctype html>") {
		t.Errorf("expected doctype prefix, got %.40q", out)
	}
	if strings.Contains(out, "<script>") {
		t.Error("run ID was not escaped")
	}
	if !strings.Contains(out, `<h2 id="run-x&#34;&gt;&lt;script&gt;">`) {
		t.Errorf("unexpected heading: %s", out)
	}
	// Theta and standard error are unset.
	if n := strings.Count(out, "<td>—</td>"); n != 2 {
		t.Errorf("expected 2 empty estimate cells, got %d", n)
	}
}
