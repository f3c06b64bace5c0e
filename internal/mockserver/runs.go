package mockserver

import (
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type run struct {
	id        string
	dataset   Dataset
	metadata  map[string]any
	presented []BankItem
	responses []responseJSON
	state     stateJSON
	replayOf  string
	createdAt time.Time
}

func newState() stateJSON {
	return stateJSON{
		Responses:             []string{},
		Thetas:                []float64{},
		StdErrorHistory:       []float64{},
		KLInfoHistory:         []float64{},
		EffectiveDifficulties: []float64{},
	}
}

// answer scores choiceID for item and steps the estimate.
func (r *run) answer(item BankItem, choiceID string) {
	correct := choiceID == item.Correct
	r.responses = append(r.responses, responseJSON{DatasetItemID: item.Item.ID, Value: choiceID, Correct: correct})

	n := float64(len(r.responses))
	theta := 0.0
	if k := len(r.state.Thetas); k > 0 {
		theta = r.state.Thetas[k-1]
	}
	step := 1 / math.Sqrt(n)
	if !correct {
		step = -step
	}
	r.state.Responses = append(r.state.Responses, choiceID)
	r.state.Thetas = append(r.state.Thetas, theta+step)
	r.state.StdErrorHistory = append(r.state.StdErrorHistory, 1/math.Sqrt(n))
	r.state.KLInfoHistory = append(r.state.KLInfoHistory, 1/n)
	r.state.EffectiveDifficulties = append(r.state.EffectiveDifficulties, theta)
}

// present moves to the next bank item and returns the reply carrying it.
// The run is completed once every item has been presented and answered.
func (r *run) present() runResponseJSON {
	resp := runResponseJSON{RunInfo: runInfoJSON{ID: r.id}, State: r.state}
	if len(r.presented) == len(r.dataset.Items) {
		resp.Completed = true
		return resp
	}
	next := r.dataset.Items[len(r.presented)]
	r.presented = append(r.presented, next)
	it := toItemJSON(next.Item)
	resp.NextItem = &it
	return resp
}

func (r *run) answeredItems() []itemJSON {
	out := make([]itemJSON, 0, len(r.responses))
	for _, it := range r.presented[:len(r.responses)] {
		out = append(out, toItemJSON(it.Item))
	}
	return out
}

type startRunBody struct {
	DatasetID  string         `json:"datasetId"`
	ProjectID  string         `json:"projectId"`
	Experiment string         `json:"experiment"`
	Metadata   map[string]any `json:"metadata"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var body startRunBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.DatasetID == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "datasetId is required.")
		return
	}
	if metadataTooLarge(w, body.Metadata) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.dataset(body.DatasetID)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "Unknown dataset "+body.DatasetID+".")
		return
	}
	rn := &run{
		id:        uuid.NewString(),
		dataset:   ds,
		metadata:  body.Metadata,
		state:     newState(),
		createdAt: s.now(),
	}
	s.runs[rn.id] = rn
	s.record("start %s", ds.ID)

	writeJSON(w, http.StatusOK, rn.present())
}

type continueRunBody struct {
	RunID        string `json:"runId"`
	ItemChoiceID string `json:"itemChoiceId"`
}

func (s *Server) handleContinueRun(w http.ResponseWriter, r *http.Request) {
	var body continueRunBody
	if !decodeBody(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rn, ok := s.runs[body.RunID]
	if !ok || rn.replayOf != "" {
		notFound(w, "Run")
		return
	}
	if len(rn.responses) >= len(rn.presented) {
		writeDetail(w, http.StatusUnprocessableEntity, "Run "+rn.id+" has no pending item.")
		return
	}
	item := rn.presented[len(rn.responses)]
	if !item.Item.HasChoice(body.ItemChoiceID) {
		writeDetail(w, http.StatusUnprocessableEntity, "Choice "+body.ItemChoiceID+" does not belong to item "+item.Item.ID+".")
		return
	}
	s.record("continue %s", body.ItemChoiceID)
	rn.answer(item, body.ItemChoiceID)
	writeJSON(w, http.StatusOK, rn.present())
}

func (s *Server) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")

	s.mu.Lock()
	defer s.mu.Unlock()
	rn, ok := s.runs[id]
	if !ok {
		notFound(w, "Run")
		return
	}
	s.record("summary %s", id)
	writeJSON(w, http.StatusOK, summaryJSON{
		ID:        rn.id,
		DatasetID: rn.dataset.ID,
		State:     rn.state,
		Dataset:   rn.answeredItems(),
		Responses: append([]responseJSON{}, rn.responses...),
		Metadata:  rn.metadata,
	})
}

type replayBody struct {
	Responses []struct {
		ItemID       string `json:"itemId"`
		ItemChoiceID string `json:"itemChoiceId"`
	} `json:"responses"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	prevID := chi.URLParam(r, "runID")
	var body replayBody
	if !decodeBody(w, r, &body) {
		return
	}
	if metadataTooLarge(w, body.Metadata) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.runs[prevID]
	if !ok {
		notFound(w, "Run")
		return
	}

	rn := &run{
		id:        uuid.NewString(),
		dataset:   prev.dataset,
		metadata:  body.Metadata,
		state:     newState(),
		replayOf:  prev.id,
		createdAt: s.now(),
	}
	seen := make(map[string]bool, len(body.Responses))
	for _, resp := range body.Responses {
		item, ok := prev.dataset.item(resp.ItemID)
		if !ok {
			writeDetail(w, http.StatusUnprocessableEntity, "Unknown item "+resp.ItemID+".")
			return
		}
		if seen[resp.ItemID] {
			writeDetail(w, http.StatusUnprocessableEntity, "Duplicate item "+resp.ItemID+".")
			return
		}
		if !item.Item.HasChoice(resp.ItemChoiceID) {
			writeDetail(w, http.StatusUnprocessableEntity, "Choice "+resp.ItemChoiceID+" does not belong to item "+resp.ItemID+".")
			return
		}
		seen[resp.ItemID] = true
		rn.presented = append(rn.presented, item)
		rn.answer(item, resp.ItemChoiceID)
	}
	s.runs[rn.id] = rn
	s.record("replay %s %d", prevID, len(body.Responses))

	ts := rn.createdAt.Format(time.RFC3339)
	writeJSON(w, http.StatusOK, replayJSON{
		ID:          rn.id,
		DatasetID:   rn.dataset.ID,
		State:       rn.state,
		ReplayOfRun: prev.id,
		CompletedAt: ts,
		CreatedAt:   ts,
		Metadata:    rn.metadata,
		Dataset:     rn.answeredItems(),
		Responses:   append([]responseJSON{}, rn.responses...),
	})
}

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("datasets")
	data := make([]datasetJSON, 0, len(s.datasets))
	for _, d := range s.datasets {
		data = append(data, datasetJSON{ID: d.ID, Name: d.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}
