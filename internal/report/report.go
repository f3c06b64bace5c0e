// Package report renders the run ledger as a standalone HTML page.
//
// The components live in report.templ; run `templ generate` after editing it.
package report

import (
	"context"
	"fmt"
	"strconv"
	"time"

	appI18n "github.com/pavelanni/adaptest/internal/i18n"
	"github.com/pavelanni/adaptest/internal/model"
)

var runColumns = []string{"ColRun", "ColTest", "ColMode", "ColModel", "ColTheta", "ColStdError", "ColCorrect", "ColCreated"}

func subtitle(ctx context.Context, exp model.LedgerExport) string {
	at := appI18n.Td(ctx, "GeneratedAt", map[string]any{"Time": exp.GeneratedAt.Format(time.RFC3339)})
	if exp.ServiceURL == "" {
		return at
	}
	return at + " · " + exp.ServiceURL
}

func modeLabel(ctx context.Context, r model.RunRecord) string {
	if r.Mode == model.ModeReplay {
		return appI18n.T(ctx, "ModeReplay") + " ← " + r.ReplayOf
	}
	return appI18n.T(ctx, "ModeAdaptive")
}

func formatFloat(f *float64) string {
	if f == nil {
		return "—"
	}
	return strconv.FormatFloat(*f, 'f', 3, 64)
}

func score(r model.RunRecord) string {
	return fmt.Sprintf("%d / %d", r.ResponsesCorrect, r.ResponsesTotal)
}
