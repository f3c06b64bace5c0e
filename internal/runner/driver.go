package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/adaptest/internal/model"
)

// Service is the part of the transport the driver needs. *client.Client
// implements it.
type Service interface {
	StartRun(ctx context.Context, testID, projectID, experiment string, meta model.RunMetadata) (model.RunResponse, error)
	ContinueRun(ctx context.Context, runID, choiceID string) (model.RunResponse, error)
	RunSummary(ctx context.Context, runID string) (model.RunSummary, error)
	SubmitReplay(ctx context.Context, runID string, responses []model.ReplayResponse, meta model.RunMetadata) (model.ReplayResult, error)
}

// driver runs one session at a time. It holds no per-run state, so a single
// driver value may serve concurrent runs.
type driver struct {
	svc      Service
	maxItems int
	progress Reporter
	logger   *slog.Logger
}

// run opens a session and answers items until the service completes it.
// Every request waits for the previous reply, so fetch and answer strictly
// alternate.
func (d *driver) run(ctx context.Context, req RunRequest, proc ItemProcessor) (*model.Result, error) {
	resp, err := d.svc.StartRun(ctx, req.TestID, req.ProjectID, req.Experiment, req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", req.TestID, err)
	}
	runID := resp.RunInfo.ID
	log := d.logger.With("run_id", runID, "test_id", req.TestID)
	log.Info("run started", "status", resp.Status(), "model", req.Metadata.ModelName())

	last := resp.State
	answered := 0
	for resp.Status() == model.StatusActive && resp.NextItem != nil {
		if err := ctx.Err(); err != nil {
			log.Warn("run abandoned", "answered", answered)
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		item := *resp.NextItem
		choice, err := proc.ProcessItem(ctx, item)
		if err != nil {
			return nil, &ProcessorError{RunID: runID, ItemID: item.ID, Index: answered, Err: err}
		}
		resp, err = d.svc.ContinueRun(ctx, runID, choice)
		if err != nil {
			return nil, fmt.Errorf("run %s: answer item %s: %w", runID, item.ID, err)
		}
		answered++
		last = resp.State

		total := answered
		if resp.Status() == model.StatusActive && resp.NextItem != nil {
			total = max(d.maxItems, answered+1)
		}
		d.progress.Report(answered, total)
		log.Debug("item answered", "item_id", item.ID, "choice_id", choice, "answered", answered)
	}

	summary, err := d.svc.RunSummary(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	if len(summary.Responses) != answered {
		log.Warn("service response count differs from answered items",
			"service_total", len(summary.Responses), "answered", answered)
	}

	score := summary.State.Score()
	if score == nil {
		score = last.Score()
	}
	res := &model.Result{
		RunID:            runID,
		TestID:           req.TestID,
		Score:            score,
		ResponsesCorrect: model.CountCorrect(summary.Responses),
		ResponsesTotal:   len(summary.Responses),
	}
	if req.WithResponses {
		res.Responses = summary.Responses
	}
	log.Info("run completed", "correct", res.ResponsesCorrect, "total", res.ResponsesTotal)
	return res, nil
}

// replay presents the recorded item sequence of a previous run to proc in
// its original order and submits all answers in one request.
func (d *driver) replay(ctx context.Context, req ReplayRequest, proc ItemProcessor) (*model.Result, error) {
	summary, err := d.svc.RunSummary(ctx, req.PreviousRunID)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", req.PreviousRunID, err)
	}
	log := d.logger.With("replay_of", req.PreviousRunID, "test_id", summary.DatasetID)
	log.Info("replay started", "items", len(summary.Dataset), "model", req.Metadata.ModelName())

	total := len(summary.Dataset)
	responses := make([]model.ReplayResponse, 0, total)
	for i, item := range summary.Dataset {
		if err := ctx.Err(); err != nil {
			log.Warn("replay abandoned", "answered", i)
			return nil, fmt.Errorf("replay %s: %w", req.PreviousRunID, err)
		}
		choice, err := proc.ProcessItem(ctx, item)
		if err != nil {
			return nil, &ProcessorError{RunID: req.PreviousRunID, ItemID: item.ID, Index: i, Err: err}
		}
		responses = append(responses, model.ReplayResponse{ItemID: item.ID, ChoiceID: choice})
		d.progress.Report(i+1, total)
	}

	rr, err := d.svc.SubmitReplay(ctx, req.PreviousRunID, responses, req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", req.PreviousRunID, err)
	}
	replayOf := rr.ReplayOfRun
	if replayOf == "" {
		replayOf = req.PreviousRunID
	}
	res := &model.Result{
		RunID:            rr.ID,
		ReplayOf:         replayOf,
		TestID:           rr.DatasetID,
		Score:            rr.State.Score(),
		ResponsesCorrect: model.CountCorrect(rr.Responses),
		ResponsesTotal:   len(rr.Responses),
	}
	if req.WithResponses {
		res.Responses = rr.Responses
	}
	log.Info("replay completed", "run_id", rr.ID, "correct", res.ResponsesCorrect, "total", res.ResponsesTotal)
	return res, nil
}
