package model

// ClassicEvalItem is one pre-computed model output of a classic (non-adaptive) evaluation.
type ClassicEvalItem struct {
	DatasetItemID string         `json:"datasetItemId" yaml:"dataset_item_id" validate:"required"`
	ModelInput    string         `json:"modelInput" yaml:"model_input"`
	ModelOutput   string         `json:"modelOutput" yaml:"model_output"`
	GoldOutput    string         `json:"goldOutput" yaml:"gold_output"`
	Metrics       map[string]any `json:"metrics" yaml:"metrics"`
}

// ClassicEvalMetric is an aggregate metric of a classic evaluation.
type ClassicEvalMetric struct {
	MetricID string `json:"metricId" yaml:"metric_id" validate:"required"`
	Value    any    `json:"value" yaml:"value"`
}

// ClassicEvalRequest submits the results of an evaluation computed elsewhere.
type ClassicEvalRequest struct {
	ProjectID       string              `json:"projectId" yaml:"project_id" validate:"required"`
	ExperimentName  string              `json:"experimentName" yaml:"experiment_name" validate:"required"`
	DatasetID       string              `json:"datasetId" yaml:"dataset_id" validate:"required"`
	ModelName       string              `json:"modelName" yaml:"model_name" validate:"required"`
	Hyperparameters map[string]any      `json:"hyperparameters" yaml:"hyperparameters"`
	Items           []ClassicEvalItem   `json:"items" yaml:"items" validate:"dive"`
	Metrics         []ClassicEvalMetric `json:"metrics" yaml:"metrics" validate:"dive"`
}

// ClassicEvalResponse is the stored classic evaluation run.
type ClassicEvalResponse struct {
	ID              string         `json:"id"`
	AccountID       string         `json:"account_id"`
	ProjectID       string         `json:"project_id"`
	ExperimentID    string         `json:"experiment_id"`
	ExperimentName  string         `json:"experiment_name"`
	DatasetID       string         `json:"dataset_id"`
	UserID          string         `json:"user_id"`
	Type            string         `json:"type"`
	ModelName       string         `json:"model_name"`
	Hyperparameters map[string]any `json:"hyperparameters"`
	CreatedAt       string         `json:"created_at"`
	User            UserInfo       `json:"user"`
	ResponseCount   int            `json:"response_count"`
}

// MetricValueType names the wire type of a classic metric value.
func MetricValueType(v any) string {
	switch v.(type) {
	case bool:
		return "Boolean"
	case int, int32, int64, float32, float64:
		return "Float"
	case string:
		return "String"
	default:
		return "Object"
	}
}
