package mockserver

import "github.com/pavelanni/adaptest/internal/model"

// Reply bodies in the service's JSON shape.

type choiceJSON struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type itemJSON struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Question string       `json:"question"`
	Choices  []choiceJSON `json:"choices"`
}

func toItemJSON(it model.Item) itemJSON {
	out := itemJSON{ID: it.ID, Type: "MultipleChoiceText", Question: it.Question, Choices: make([]choiceJSON, 0, len(it.Choices))}
	for _, c := range it.Choices {
		out.Choices = append(out.Choices, choiceJSON{ID: c.ID, Value: c.Text})
	}
	return out
}

type stateJSON struct {
	Responses             []string  `json:"responses"`
	Thetas                []float64 `json:"thetas"`
	StdErrorHistory       []float64 `json:"std_error_history"`
	KLInfoHistory         []float64 `json:"kl_info_history"`
	EffectiveDifficulties []float64 `json:"effective_difficulties"`
}

type runInfoJSON struct {
	ID string `json:"id"`
}

type runResponseJSON struct {
	RunInfo   runInfoJSON `json:"runInfo"`
	State     stateJSON   `json:"state"`
	NextItem  *itemJSON   `json:"nextItem"`
	Completed bool        `json:"completed"`
}

type responseJSON struct {
	DatasetItemID string `json:"datasetItemId"`
	Value         string `json:"value"`
	Correct       bool   `json:"correct"`
}

type summaryJSON struct {
	ID        string         `json:"id"`
	DatasetID string         `json:"datasetId"`
	State     stateJSON      `json:"state"`
	Dataset   []itemJSON     `json:"dataset"`
	Responses []responseJSON `json:"responses"`
	Metadata  map[string]any `json:"metadata"`
}

type replayJSON struct {
	ID          string         `json:"id"`
	DatasetID   string         `json:"datasetId"`
	State       stateJSON      `json:"state"`
	ReplayOfRun string         `json:"replayOfRun"`
	CompletedAt string         `json:"completedAt"`
	CreatedAt   string         `json:"createdAt"`
	Metadata    map[string]any `json:"metadata"`
	Dataset     []itemJSON     `json:"dataset"`
	Responses   []responseJSON `json:"responses"`
}

type datasetJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type userJSON struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	CreatedAt string `json:"createdAt"`
	AccountID string `json:"accountId"`
}

type teamJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	AccountID string `json:"accountId"`
}

type projectJSON struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	OrganizationID string `json:"organizationId"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

type classicJSON struct {
	ID              string         `json:"id"`
	AccountID       string         `json:"accountId"`
	ProjectID       string         `json:"projectId"`
	ExperimentID    string         `json:"experimentId"`
	ExperimentName  string         `json:"experimentName"`
	DatasetID       string         `json:"datasetId"`
	UserID          string         `json:"userId"`
	Type            string         `json:"type"`
	ModelName       string         `json:"modelName"`
	Hyperparameters map[string]any `json:"hyperparameters"`
	CreatedAt       string         `json:"createdAt"`
	User            userJSON       `json:"user"`
	ResponseCount   int            `json:"responseCount"`
}
