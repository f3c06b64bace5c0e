package mockserver

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	fakeAccountID = "acct-1"
	fakeUserID    = "user-1"
)

func (s *Server) fakeUser() userJSON {
	return userJSON{
		ID:        fakeUserID,
		Email:     "dev@example.com",
		FirstName: "Dev",
		LastName:  "User",
		CreatedAt: "2025-01-01T00:00:00Z",
		AccountID: fakeAccountID,
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.record("me")
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  s.fakeUser(),
		"teams": []teamJSON{{ID: "team-1", Name: "Evaluation", Role: "owner", AccountID: fakeAccountID}},
	})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("projects")
	writeJSON(w, http.StatusOK, append([]projectJSON{}, s.projects...))
}

type createProjectBody struct {
	Name        string `json:"name"`
	TeamID      string `json:"teamId"`
	Description string `json:"description"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body createProjectBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Name == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "name is required.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().Format(time.RFC3339)
	p := projectJSON{
		ID:             uuid.NewString(),
		Name:           body.Name,
		Description:    body.Description,
		OrganizationID: fakeAccountID,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	s.projects = append(s.projects, p)
	s.record("create project %s", body.Name)
	writeJSON(w, http.StatusOK, p)
}

type classicBody struct {
	ProjectID       string           `json:"projectId"`
	ExperimentName  string           `json:"experimentName"`
	DatasetID       string           `json:"datasetId"`
	ModelName       string           `json:"modelName"`
	Hyperparameters map[string]any   `json:"hyperparameters"`
	Items           []map[string]any `json:"items"`
}

func (s *Server) handleClassic(w http.ResponseWriter, r *http.Request) {
	var body classicBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ProjectID == "" || body.DatasetID == "" || body.ModelName == "" || body.ExperimentName == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "projectId, experimentName, datasetId and modelName are required.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("classic %s %d", body.DatasetID, len(body.Items))
	writeJSON(w, http.StatusOK, classicJSON{
		ID:              uuid.NewString(),
		AccountID:       fakeAccountID,
		ProjectID:       body.ProjectID,
		ExperimentID:    uuid.NewString(),
		ExperimentName:  body.ExperimentName,
		DatasetID:       body.DatasetID,
		UserID:          fakeUserID,
		Type:            "Classic",
		ModelName:       body.ModelName,
		Hyperparameters: body.Hyperparameters,
		CreatedAt:       s.now().Format(time.RFC3339),
		User:            s.fakeUser(),
		ResponseCount:   len(body.Items),
	})
}
