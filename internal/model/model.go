package model

import "time"

// RunStatus represents the lifecycle state of an adaptive run on the service.
type RunStatus string

const (
	StatusActive    RunStatus = "active"
	StatusCompleted RunStatus = "completed"
)

// RunMode distinguishes live adaptive runs from replays of a recorded sequence.
type RunMode string

const (
	ModeAdaptive RunMode = "adaptive"
	ModeReplay   RunMode = "replay"
)

// Choice is one answer option of an item.
type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Item is a single multiple-choice question served by the service.
type Item struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Choices  []Choice `json:"choices"`
}

// HasChoice reports whether id names one of the item's choices.
func (it Item) HasChoice(id string) bool {
	for _, c := range it.Choices {
		if c.ID == id {
			return true
		}
	}
	return false
}

// RunInfo identifies a run on the service. The ID is the session identifier.
type RunInfo struct {
	ID string `json:"id"`
}

// RunState is the estimator history the service reports after every step.
type RunState struct {
	Responses             []string  `json:"responses"`
	Thetas                []float64 `json:"thetas"`
	StdErrorHistory       []float64 `json:"std_error_history"`
	KLInfoHistory         []float64 `json:"kl_info_history"`
	EffectiveDifficulties []float64 `json:"effective_difficulties"`
}

// Score returns the latest theta and standard error, or nil when the
// service has not produced an estimate yet.
func (s RunState) Score() *Score {
	if len(s.Thetas) == 0 || len(s.StdErrorHistory) == 0 {
		return nil
	}
	return &Score{
		Theta:    s.Thetas[len(s.Thetas)-1],
		StdError: s.StdErrorHistory[len(s.StdErrorHistory)-1],
	}
}

// RunResponse is returned when a run is opened and after every submitted answer.
// NextItem is nil once the run is completed.
type RunResponse struct {
	RunInfo   RunInfo
	State     RunState
	NextItem  *Item
	Completed bool
}

// Status derives the run status from the completion flag.
func (r RunResponse) Status() RunStatus {
	if r.Completed {
		return StatusCompleted
	}
	return StatusActive
}

// ModelNameKey is the model metadata entry holding the model name.
const ModelNameKey = "name"

// RunMetadata describes the model and configuration under test.
// It is attached when a run is opened and is never modified afterwards.
type RunMetadata struct {
	ModelMetadata     map[string]any `json:"model_metadata" yaml:"model_metadata"`
	TestConfiguration map[string]any `json:"test_configuration" yaml:"test_configuration"`
	InferenceSetup    map[string]any `json:"inference_setup" yaml:"inference_setup"`
}

// ModelName returns the "name" entry of the model metadata, if any.
func (m RunMetadata) ModelName() string {
	name, _ := m.ModelMetadata[ModelNameKey].(string)
	return name
}

// ToMap returns the wire representation, replacing nil maps with empty ones.
func (m RunMetadata) ToMap() map[string]any {
	return map[string]any{
		"model_metadata":     nonNil(m.ModelMetadata),
		"test_configuration": nonNil(m.TestConfiguration),
		"inference_setup":    nonNil(m.InferenceSetup),
	}
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// ResponseRecord is the service's record of one answered item.
type ResponseRecord struct {
	ItemID  string `json:"item_id"`
	Value   string `json:"value"`
	Correct bool   `json:"correct"`
}

// ReplayResponse is one answer of a replay submission.
type ReplayResponse struct {
	ItemID   string `json:"itemId"`
	ChoiceID string `json:"itemChoiceId"`
}

// RunSummary is the service's full view of a run: recorded items, responses and state.
type RunSummary struct {
	ID        string
	DatasetID string
	State     RunState
	Dataset   []Item
	Responses []ResponseRecord
	Metadata  map[string]any
}

// ReplayResult is the service's reply to a replay submission.
type ReplayResult struct {
	ID          string
	DatasetID   string
	State       RunState
	ReplayOfRun string
	CompletedAt *time.Time
	CreatedAt   *time.Time
	Metadata    map[string]any
	Dataset     []Item
	Responses   []ResponseRecord
}

// Score is the ability estimate of a finished run.
type Score struct {
	Theta    float64 `json:"theta"`
	StdError float64 `json:"std_error"`
}

// Result is the outcome of a completed run or replay.
type Result struct {
	RunID            string           `json:"run_id"`
	ReplayOf         string           `json:"replay_of,omitempty"`
	TestID           string           `json:"test_id"`
	Score            *Score           `json:"score"`
	ResponsesCorrect int              `json:"responses_correct"`
	ResponsesTotal   int              `json:"responses_total"`
	Responses        []ResponseRecord `json:"responses,omitempty"`
}

// CountCorrect returns the number of correct records.
func CountCorrect(records []ResponseRecord) int {
	n := 0
	for _, r := range records {
		if r.Correct {
			n++
		}
	}
	return n
}

// Dataset is a test available on the service.
type Dataset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Project groups experiments on the service.
type Project struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	OrganizationID string `json:"organization_id"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// UserInfo describes the owner of an API key.
type UserInfo struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	CreatedAt string `json:"created_at,omitempty"`
	AccountID string `json:"account_id,omitempty"`
}

// Team is a team membership of the API key owner.
type Team struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	AccountID string `json:"account_id"`
}

// Me is the identity behind the configured API key.
type Me struct {
	User  UserInfo `json:"user"`
	Teams []Team   `json:"teams"`
}
