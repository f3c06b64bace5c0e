package model

import "time"

// RunRecord is one finished run as kept in the local ledger.
type RunRecord struct {
	ID               string      `json:"id"`
	TestID           string      `json:"test_id"`
	ProjectID        string      `json:"project_id,omitempty"`
	Experiment       string      `json:"experiment,omitempty"`
	Mode             RunMode     `json:"mode"`
	ReplayOf         string      `json:"replay_of,omitempty"`
	Theta            *float64    `json:"theta,omitempty"`
	StdError         *float64    `json:"std_error,omitempty"`
	ResponsesCorrect int         `json:"responses_correct"`
	ResponsesTotal   int         `json:"responses_total"`
	Metadata         RunMetadata `json:"metadata"`
	CreatedAt        time.Time   `json:"created_at"`
}

// NewRunRecord builds a ledger record from a run result.
func NewRunRecord(res Result, projectID, experiment string, meta RunMetadata, at time.Time) RunRecord {
	rec := RunRecord{
		ID:               res.RunID,
		TestID:           res.TestID,
		ProjectID:        projectID,
		Experiment:       experiment,
		Mode:             ModeAdaptive,
		ReplayOf:         res.ReplayOf,
		ResponsesCorrect: res.ResponsesCorrect,
		ResponsesTotal:   res.ResponsesTotal,
		Metadata:         meta,
		CreatedAt:        at,
	}
	if res.ReplayOf != "" {
		rec.Mode = ModeReplay
	}
	if res.Score != nil {
		theta, se := res.Score.Theta, res.Score.StdError
		rec.Theta = &theta
		rec.StdError = &se
	}
	return rec
}

// RunView combines a ledger record with its stored responses for display.
type RunView struct {
	Run       RunRecord        `json:"run"`
	Responses []ResponseRecord `json:"responses"`
}

// LedgerExport is the top-level JSON structure for ledger export.
type LedgerExport struct {
	GeneratedAt time.Time `json:"generated_at"`
	ServiceURL  string    `json:"service_url"`
	NumRuns     int       `json:"num_runs"`
	Runs        []RunView `json:"runs"`
}
