package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pavelanni/adaptest/internal/model"
)

// fakeService is a scripted Service. Every test id maps to a fixed item
// bank; an item is answered correctly with choice "<item>-ok". Calls are
// appended to a shared journal together with processor calls recorded by
// journalProcessor, so tests can assert their interleaving.
type fakeService struct {
	mu       sync.Mutex
	banks    map[string][]model.Item
	runs     map[string]*fakeRun
	journal  []string
	nextID   int
	maxItems int

	startErr   error
	noThetas   bool
	replayFail error
}

type fakeRun struct {
	testID    string
	pos       int
	responses []model.ResponseRecord
	thetas    []float64
	stderrs   []float64
}

func newFakeService(banks map[string]int) *fakeService {
	f := &fakeService{
		banks: make(map[string][]model.Item),
		runs:  make(map[string]*fakeRun),
	}
	for testID, n := range banks {
		items := make([]model.Item, n)
		for i := range items {
			id := fmt.Sprintf("%s-item-%d", testID, i+1)
			items[i] = model.Item{
				ID:       id,
				Question: "question " + id,
				Choices: []model.Choice{
					{ID: id + "-ok", Text: "right"},
					{ID: id + "-bad", Text: "wrong"},
				},
			}
		}
		f.banks[testID] = items
	}
	return f
}

func (f *fakeService) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.journal = append(f.journal, fmt.Sprintf(format, args...))
}

func (f *fakeService) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.journal...)
}

func (f *fakeService) MaxItems() int { return f.maxItems }

func (f *fakeService) state(run *fakeRun) model.RunState {
	st := model.RunState{Responses: []string{}, Thetas: []float64{}, StdErrorHistory: []float64{}}
	for _, r := range run.responses {
		st.Responses = append(st.Responses, r.ItemID)
	}
	if !f.noThetas {
		st.Thetas = append(st.Thetas, run.thetas...)
		st.StdErrorHistory = append(st.StdErrorHistory, run.stderrs...)
	}
	return st
}

func (f *fakeService) reply(id string, run *fakeRun) model.RunResponse {
	bank := f.banks[run.testID]
	resp := model.RunResponse{RunInfo: model.RunInfo{ID: id}, State: f.state(run)}
	if run.pos >= len(bank) {
		resp.Completed = true
		return resp
	}
	item := bank[run.pos]
	resp.NextItem = &item
	return resp
}

func (f *fakeService) StartRun(_ context.Context, testID, _, _ string, _ model.RunMetadata) (model.RunResponse, error) {
	f.record("start %s", testID)
	if f.startErr != nil {
		return model.RunResponse{}, f.startErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.banks[testID]; !ok {
		return model.RunResponse{}, fmt.Errorf("unknown test %s", testID)
	}
	f.nextID++
	id := fmt.Sprintf("run-%d", f.nextID)
	run := &fakeRun{testID: testID}
	f.runs[id] = run
	return f.reply(id, run), nil
}

func (f *fakeService) ContinueRun(_ context.Context, runID, choiceID string) (model.RunResponse, error) {
	f.record("continue %s", choiceID)
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return model.RunResponse{}, fmt.Errorf("unknown run %s", runID)
	}
	item := f.banks[run.testID][run.pos]
	correct := strings.HasSuffix(choiceID, "-ok")
	run.responses = append(run.responses, model.ResponseRecord{ItemID: item.ID, Value: choiceID, Correct: correct})
	theta := 0.0
	if len(run.thetas) > 0 {
		theta = run.thetas[len(run.thetas)-1]
	}
	if correct {
		theta += 0.5
	} else {
		theta -= 0.5
	}
	run.thetas = append(run.thetas, theta)
	run.stderrs = append(run.stderrs, 1/float64(len(run.responses)))
	run.pos++
	return f.reply(runID, run), nil
}

func (f *fakeService) RunSummary(_ context.Context, runID string) (model.RunSummary, error) {
	f.record("summary %s", runID)
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return model.RunSummary{}, fmt.Errorf("unknown run %s", runID)
	}
	bank := f.banks[run.testID]
	return model.RunSummary{
		ID:        runID,
		DatasetID: run.testID,
		State:     f.state(run),
		Dataset:   append([]model.Item(nil), bank[:run.pos]...),
		Responses: append([]model.ResponseRecord{}, run.responses...),
		Metadata:  map[string]any{},
	}, nil
}

func (f *fakeService) SubmitReplay(_ context.Context, runID string, responses []model.ReplayResponse, _ model.RunMetadata) (model.ReplayResult, error) {
	f.record("replay %s %d", runID, len(responses))
	if f.replayFail != nil {
		return model.ReplayResult{}, f.replayFail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.runs[runID]
	if !ok {
		return model.ReplayResult{}, fmt.Errorf("unknown run %s", runID)
	}
	f.nextID++
	id := fmt.Sprintf("run-%d", f.nextID)
	run := &fakeRun{testID: prev.testID}
	for _, r := range responses {
		correct := strings.HasSuffix(r.ChoiceID, "-ok")
		run.responses = append(run.responses, model.ResponseRecord{ItemID: r.ItemID, Value: r.ChoiceID, Correct: correct})
		run.thetas = append(run.thetas, float64(len(run.responses)))
		run.stderrs = append(run.stderrs, 1/float64(len(run.responses)))
	}
	run.pos = len(responses)
	f.runs[id] = run
	return model.ReplayResult{
		ID:          id,
		DatasetID:   prev.testID,
		State:       f.state(run),
		ReplayOfRun: runID,
		Metadata:    map[string]any{},
		Responses:   append([]model.ResponseRecord{}, run.responses...),
	}, nil
}

// journalProcessor wraps proc and records each call in f's journal.
func journalProcessor(f *fakeService, proc ItemProcessor) ItemProcessor {
	return ProcessorFunc(func(ctx context.Context, item model.Item) (string, error) {
		f.record("process %s", item.ID)
		return proc.ProcessItem(ctx, item)
	})
}

// answerPattern answers correctly except for the listed zero-based positions.
func answerPattern(wrong ...int) ItemProcessor {
	var mu sync.Mutex
	n := 0
	return ProcessorFunc(func(_ context.Context, item model.Item) (string, error) {
		mu.Lock()
		i := n
		n++
		mu.Unlock()
		for _, w := range wrong {
			if w == i {
				return item.ID + "-bad", nil
			}
		}
		return item.ID + "-ok", nil
	})
}

type progressCall struct{ current, total int }

type progressRecorder struct {
	mu    sync.Mutex
	calls []progressCall
}

func (p *progressRecorder) Report(current, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, progressCall{current, total})
}

func (p *progressRecorder) snapshot() []progressCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]progressCall(nil), p.calls...)
}
