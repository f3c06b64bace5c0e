package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	appI18n "github.com/pavelanni/adaptest/internal/i18n"
	"github.com/pavelanni/adaptest/internal/model"
	"github.com/pavelanni/adaptest/internal/report"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	cmd.Flags().String("test", "", "Only list runs of this test")
	addStoreFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run with its responses",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
	addStoreFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded runs as JSON or HTML",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("format", "json", "Output format (json, html)")
	f.String("test", "", "Only export runs of this test")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("base-url", "", "Service URL recorded in the export")
	addStoreFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func formatScore(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', 3, 64)
}

func modeLabel(ctx context.Context, rec model.RunRecord) string {
	if rec.Mode == model.ModeReplay {
		return appI18n.T(ctx, "ModeReplay")
	}
	return appI18n.T(ctx, "ModeAdaptive")
}

// runTable renders runs as a terminal table.
func runTable(ctx context.Context, runs []model.RunRecord) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(
			appI18n.T(ctx, "ColRun"), appI18n.T(ctx, "ColTest"), appI18n.T(ctx, "ColMode"),
			appI18n.T(ctx, "ColModel"), appI18n.T(ctx, "ColTheta"), appI18n.T(ctx, "ColStdError"),
			appI18n.T(ctx, "ColCorrect"), appI18n.T(ctx, "ColCreated"),
		)
	for _, r := range runs {
		t.Row(
			r.ID, r.TestID, modeLabel(ctx, r), r.Metadata.ModelName(),
			formatScore(r.Theta), formatScore(r.StdError),
			fmt.Sprintf("%d/%d", r.ResponsesCorrect, r.ResponsesTotal),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return t.String()
}

func runHistory(cmd *cobra.Command, _ []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}
	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	runs, err := db.ListRuns(v.GetString("test"))
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, appI18n.T(ctx, "NoRuns"))
		return nil
	}
	fmt.Fprintln(out, runTable(ctx, runs))
	total, err := db.RunCount()
	if err != nil {
		return fmt.Errorf("count runs: %w", err)
	}
	fmt.Fprintln(out, appI18n.Tp(ctx, "RunsInLedger", total))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}
	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	view, err := db.GetRunView(args[0])
	if err != nil {
		return fmt.Errorf("get run %s: %w", args[0], err)
	}
	if view == nil {
		return fmt.Errorf("run %s is not in the ledger", args[0])
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, runTable(ctx, []model.RunRecord{view.Run}))

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("#", appI18n.T(ctx, "ColItem"), appI18n.T(ctx, "ColAnswer"), appI18n.T(ctx, "ColResult"))
	for i, r := range view.Responses {
		mark := appI18n.T(ctx, "Incorrect")
		if r.Correct {
			mark = appI18n.T(ctx, "Correct")
		}
		t.Row(strconv.Itoa(i+1), r.ItemID, r.Value, mark)
	}
	fmt.Fprintln(out, t.String())
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}
	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	export, err := db.ExportRuns(v.GetString("test"), v.GetString("base-url"))
	if err != nil {
		return fmt.Errorf("export runs: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch v.GetString("format") {
	case "html":
		if err := report.LedgerPage(export).Render(cmd.Context(), w); err != nil {
			return fmt.Errorf("render report: %w", err)
		}
		return nil
	case "json":
		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		// Ensure trailing newline.
		_, _ = fmt.Fprintln(w)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want json or html)", v.GetString("format"))
	}
}
