package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/adaptest/internal/client"
	appI18n "github.com/pavelanni/adaptest/internal/i18n"
	"github.com/pavelanni/adaptest/internal/llm/prompts"
	"github.com/pavelanni/adaptest/internal/model"
	"github.com/pavelanni/adaptest/internal/progress"
	"github.com/pavelanni/adaptest/internal/runner"
	"github.com/pavelanni/adaptest/internal/store"
)

func addProcessorFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("processor", "llm", "Item processor (llm, first, random)")
	f.Uint64("seed", 0, "Seed of the random processor (0 = time based)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.PromptDirect), "Answer prompt variant (direct, reasoning)")
	f.String("metadata", "", "YAML file with run metadata")
	f.Bool("with-responses", false, "Print the per-item responses")
	f.Bool("json", false, "Print results as JSON")
	f.Bool("no-record", false, "Do not record the result in the run ledger")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <test-id>...",
		Short: "Run adaptive tests with an item processor",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRun,
	}
	f := cmd.Flags()
	f.String("project", "", "Project ID")
	f.String("experiment", "", "Experiment name")
	f.Int("concurrency", 1, "Number of tests run at the same time")
	f.Bool("async", false, "Start runs in the background and wait for them")
	addProcessorFlags(cmd)
	addServiceFlags(cmd)
	addStoreFlags(cmd)
	return cmd
}

func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [run-id]",
		Short: "Answer the recorded items of a previous run again",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runReplay,
	}
	cmd.Flags().String("last", "", "Replay the latest recorded run of this test")
	addProcessorFlags(cmd)
	addServiceFlags(cmd)
	addStoreFlags(cmd)
	return cmd
}

// session holds what run and replay share.
type session struct {
	v       *viper.Viper
	client  *client.Client
	proc    describedProcessor
	meta    model.RunMetadata
	db      *store.Store
	metrics *http.Server
}

func openSession(cmd *cobra.Command) (*session, error) {
	v, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	s := &session{v: v}

	var metrics *client.Metrics
	if addr := v.GetString("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		if metrics, err = client.NewMetrics(reg); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		s.metrics = serveMetrics(addr, reg)
	}

	if s.client, err = newClient(v, metrics); err != nil {
		s.close()
		return nil, err
	}
	s.proc, err = newProcessor(cmd.Context(), processorConfig{
		kind:    v.GetString("processor"),
		seed:    v.GetUint64("seed"),
		url:     v.GetString("llm-url"),
		key:     v.GetString("llm-key"),
		model:   v.GetString("llm-model"),
		variant: v.GetString("prompt-variant"),
	})
	if err != nil {
		s.close()
		return nil, err
	}
	file, err := loadMetadata(v.GetString("metadata"))
	if err != nil {
		s.close()
		return nil, err
	}
	s.meta = withProcessor(file, s.proc)

	if !v.GetBool("no-record") {
		if s.db, err = openStore(v); err != nil {
			s.close()
			return nil, err
		}
	}
	return s, nil
}

func (s *session) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.Shutdown(ctx)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return srv
}

// record stores res in the ledger unless recording is disabled.
func (s *session) record(res *model.Result, projectID, experiment string) {
	if s.db == nil {
		return
	}
	rec := model.NewRunRecord(*res, projectID, experiment, s.meta, time.Now().UTC())
	if err := s.db.SaveRun(rec, res.Responses); err != nil {
		slog.Error("failed to record run", "run_id", res.RunID, "error", err)
		return
	}
	if err := s.db.SetLastRun(res.TestID, res.RunID); err != nil {
		slog.Warn("failed to remember last run", "run_id", res.RunID, "error", err)
	}
}

func (s *session) print(ctx context.Context, w io.Writer, res *model.Result) error {
	withResponses := s.v.GetBool("with-responses")
	if s.v.GetBool("json") {
		out := *res
		if !withResponses {
			out.Responses = nil
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	printResult(ctx, w, res, withResponses)
	return nil
}

func printResult(ctx context.Context, w io.Writer, res *model.Result, withResponses bool) {
	if res.ReplayOf != "" {
		fmt.Fprintln(w, appI18n.Td(ctx, "ReplayCompleted", map[string]any{"RunID": res.RunID, "ReplayOf": res.ReplayOf}))
	} else {
		fmt.Fprintln(w, appI18n.Td(ctx, "RunCompleted", map[string]any{"RunID": res.RunID, "TestID": res.TestID}))
	}
	fmt.Fprintln(w, "  "+appI18n.Tpd(ctx, "ResponsesCorrect", res.ResponsesTotal, map[string]any{"Correct": res.ResponsesCorrect}))
	if res.Score != nil {
		fmt.Fprintln(w, "  "+appI18n.Td(ctx, "Score", map[string]any{
			"Theta":    fmt.Sprintf("%.3f", res.Score.Theta),
			"StdError": fmt.Sprintf("%.3f", res.Score.StdError),
		}))
	} else {
		fmt.Fprintln(w, "  "+appI18n.T(ctx, "NoScore"))
	}
	if !withResponses {
		return
	}
	for i, r := range res.Responses {
		mark := appI18n.T(ctx, "Incorrect")
		if r.Correct {
			mark = appI18n.T(ctx, "Correct")
		}
		fmt.Fprintf(w, "  %3d  %-24s %-16s %s\n", i+1, r.ItemID, r.Value, mark)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()
	ctx := cmd.Context()
	v := s.v
	out := cmd.OutOrStdout()

	// The ledger keeps responses, so ask for them whenever recording.
	base := runner.RunRequest{
		ProjectID:     v.GetString("project"),
		Experiment:    v.GetString("experiment"),
		Metadata:      s.meta,
		WithResponses: s.db != nil || v.GetBool("with-responses"),
	}

	if len(args) == 1 {
		req := base
		req.TestID = args[0]
		r := runner.New(s.client, runner.WithProgress(progress.ForStderr(req.TestID, slog.Default(), "test_id", req.TestID)))
		var res *model.Result
		if v.GetBool("async") {
			res, err = r.Start(ctx, req, s.proc).Wait(ctx)
		} else {
			res, err = r.Run(ctx, req, s.proc)
		}
		if err != nil {
			return err
		}
		s.record(res, req.ProjectID, req.Experiment)
		return s.print(ctx, out, res)
	}

	jobs := make([]runner.Job, 0, len(args))
	for _, id := range args {
		req := base
		req.TestID = id
		jobs = append(jobs, runner.Job{
			Request:   req,
			Processor: s.proc,
			Progress:  progress.NewLog(slog.Default(), "test_id", id),
		})
	}
	outcomes := runner.New(s.client).RunAll(ctx, jobs, v.GetInt("concurrency"))

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			fmt.Fprintln(out, appI18n.Td(ctx, "RunFailed", map[string]any{"TestID": o.Request.TestID, "Error": o.Err.Error()}))
			continue
		}
		s.record(o.Result, o.Request.ProjectID, o.Request.Experiment)
		if err := s.print(ctx, out, o.Result); err != nil {
			return err
		}
	}
	fmt.Fprintln(out, appI18n.Tpd(ctx, "RunsFinished", len(outcomes)-failed, map[string]any{"Failed": failed}))
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(outcomes))
	}
	return nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()
	ctx := cmd.Context()

	prev, projectID, experiment, err := s.replayTarget(args)
	if err != nil {
		return err
	}

	r := runner.New(s.client, runner.WithProgress(progress.ForStderr(prev, slog.Default(), "replay_of", prev)))
	res, err := r.Replay(ctx, runner.ReplayRequest{
		PreviousRunID: prev,
		Metadata:      s.meta,
		WithResponses: s.db != nil || s.v.GetBool("with-responses"),
	}, s.proc)
	if err != nil {
		return err
	}
	s.record(res, projectID, experiment)
	return s.print(ctx, cmd.OutOrStdout(), res)
}

// replayTarget picks the run to replay from the argument or the ledger's
// last run, and returns the project and experiment it was recorded with.
func (s *session) replayTarget(args []string) (runID, projectID, experiment string, err error) {
	if len(args) == 1 {
		runID = args[0]
	} else {
		if s.db == nil {
			return "", "", "", errors.New("a run ID is required when recording is disabled")
		}
		if runID, err = s.db.LastRun(s.v.GetString("last")); err != nil {
			return "", "", "", fmt.Errorf("look up last run: %w", err)
		}
		if runID == "" {
			return "", "", "", errors.New("no recorded run to replay")
		}
	}
	if s.db != nil {
		rec, err := s.db.GetRun(runID)
		if err != nil {
			return "", "", "", fmt.Errorf("get run %s: %w", runID, err)
		}
		if rec != nil {
			projectID, experiment = rec.ProjectID, rec.Experiment
		}
	}
	return runID, projectID, experiment, nil
}
