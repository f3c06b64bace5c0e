package mapper

import "encoding/json"

// Wire DTOs mirror the service's JSON. Pointers mark fields whose presence,
// not value, is required.

type runInfoDTO struct {
	ID string `json:"id" validate:"required"`
}

type runStateDTO struct {
	Responses             []json.RawMessage `json:"responses"`
	Thetas                []float64         `json:"thetas"`
	StdErrorHistory       []float64         `json:"std_error_history"`
	KLInfoHistory         []float64         `json:"kl_info_history"`
	EffectiveDifficulties []float64         `json:"effective_difficulties"`
}

type choiceDTO struct {
	ID    string  `json:"id" validate:"required"`
	Value *string `json:"value" validate:"required"`
}

type itemDTO struct {
	ID       string      `json:"id" validate:"required"`
	Type     string      `json:"type"`
	Question *string     `json:"question"`
	Choices  []choiceDTO `json:"choices" validate:"omitempty,dive"`
}

type runResponseDTO struct {
	RunInfo   *runInfoDTO     `json:"runInfo" validate:"required"`
	State     *runStateDTO    `json:"state" validate:"required"`
	NextItem  json.RawMessage `json:"nextItem"`
	Completed bool            `json:"completed"`
}

type responseDTO struct {
	DatasetItemID string          `json:"datasetItemId" validate:"required"`
	Value         json.RawMessage `json:"value"`
	Correct       *bool           `json:"correct" validate:"required"`
}

type runSummaryDTO struct {
	ID        string            `json:"id" validate:"required"`
	DatasetID string            `json:"datasetId" validate:"required"`
	State     *runStateDTO      `json:"state" validate:"required"`
	Dataset   []json.RawMessage `json:"dataset"`
	Responses []responseDTO     `json:"responses" validate:"omitempty,dive"`
	Metadata  map[string]any    `json:"metadata"`
}

type replayResponseDTO struct {
	ID          string            `json:"id" validate:"required"`
	DatasetID   string            `json:"datasetId" validate:"required"`
	State       *runStateDTO      `json:"state" validate:"required"`
	ReplayOfRun string            `json:"replayOfRun" validate:"required"`
	CompletedAt *string           `json:"completedAt"`
	CreatedAt   *string           `json:"createdAt"`
	Metadata    map[string]any    `json:"metadata"`
	Dataset     []json.RawMessage `json:"dataset"`
	Responses   []responseDTO     `json:"responses" validate:"omitempty,dive"`
}

type datasetDTO struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

type datasetsDTO struct {
	Data []datasetDTO `json:"data" validate:"required,dive"`
}

type userDTO struct {
	ID        string `json:"id" validate:"required"`
	Email     string `json:"email" validate:"required"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	CreatedAt string `json:"createdAt"`
	AccountID string `json:"accountId"`
}

type teamDTO struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Role      string `json:"role" validate:"required"`
	AccountID string `json:"accountId" validate:"required"`
}

type meDTO struct {
	User  *userDTO  `json:"user" validate:"required"`
	Teams []teamDTO `json:"teams" validate:"required,dive"`
}

type projectDTO struct {
	ID             string  `json:"id" validate:"required"`
	Name           string  `json:"name" validate:"required"`
	Description    *string `json:"description"`
	OrganizationID string  `json:"organizationId" validate:"required"`
	CreatedAt      string  `json:"createdAt" validate:"required"`
	UpdatedAt      string  `json:"updatedAt" validate:"required"`
}

type classicEvalResponseDTO struct {
	ID              string         `json:"id" validate:"required"`
	AccountID       string         `json:"accountId" validate:"required"`
	ProjectID       string         `json:"projectId" validate:"required"`
	ExperimentID    string         `json:"experimentId" validate:"required"`
	ExperimentName  string         `json:"experimentName" validate:"required"`
	DatasetID       string         `json:"datasetId" validate:"required"`
	UserID          string         `json:"userId" validate:"required"`
	Type            string         `json:"type" validate:"required"`
	ModelName       string         `json:"modelName" validate:"required"`
	Hyperparameters map[string]any `json:"hyperparameters"`
	CreatedAt       string         `json:"createdAt" validate:"required"`
	User            *userDTO       `json:"user" validate:"required"`
	ResponseCount   *int           `json:"responseCount" validate:"required"`
}
