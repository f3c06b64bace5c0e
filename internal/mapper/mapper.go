// Package mapper converts raw JSON payloads of the adaptive-testing service
// into the typed entities of package model.
//
// Every function is pure. A payload missing a required field fails with an
// *Error instead of being silently defaulted; optional collections default
// to empty.
package mapper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/adaptest/internal/model"
)

// ErrUnrecognizedItem is returned for items that are not multiple-choice text items.
var ErrUnrecognizedItem = errors.New("unrecognized item type")

// Error reports a payload that could not be mapped onto an entity.
type Error struct {
	Entity string
	Field  string
	Err    error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("map %s: field %q: %v", e.Entity, e.Field, e.Err)
	}
	return fmt.Sprintf("map %s: %v", e.Entity, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode unmarshals raw into dst and checks its required fields.
func decode(entity string, raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return &Error{Entity: entity, Err: err}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &Error{
				Entity: entity,
				Field:  fieldPath(fe.Namespace()),
				Err:    fmt.Errorf("failed %q check", fe.Tag()),
			}
		}
		return &Error{Entity: entity, Err: err}
	}
	return nil
}

// fieldPath drops the DTO type name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// ToItem maps a single item. Only multiple-choice text items are supported.
func ToItem(raw []byte) (model.Item, error) {
	var dto itemDTO
	if err := decode("item", raw, &dto); err != nil {
		return model.Item{}, err
	}
	return itemFromDTO(dto)
}

func itemFromDTO(dto itemDTO) (model.Item, error) {
	if dto.Question == nil || dto.Choices == nil {
		typ := dto.Type
		if typ == "" {
			typ = "unknown"
		}
		return model.Item{}, &Error{Entity: "item", Err: fmt.Errorf("%w: %s", ErrUnrecognizedItem, typ)}
	}
	item := model.Item{
		ID:       dto.ID,
		Question: *dto.Question,
		Choices:  make([]model.Choice, 0, len(dto.Choices)),
	}
	for _, c := range dto.Choices {
		item.Choices = append(item.Choices, model.Choice{ID: c.ID, Text: *c.Value})
	}
	return item, nil
}

func itemsFromRaw(raws []json.RawMessage) ([]model.Item, error) {
	items := make([]model.Item, 0, len(raws))
	for i, raw := range raws {
		item, err := ToItem(raw)
		if err != nil {
			return nil, fmt.Errorf("dataset[%d]: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func stateFromDTO(dto *runStateDTO) model.RunState {
	st := model.RunState{
		Responses:             make([]string, 0, len(dto.Responses)),
		Thetas:                orEmpty(dto.Thetas),
		StdErrorHistory:       orEmpty(dto.StdErrorHistory),
		KLInfoHistory:         orEmpty(dto.KLInfoHistory),
		EffectiveDifficulties: orEmpty(dto.EffectiveDifficulties),
	}
	for _, r := range dto.Responses {
		st.Responses = append(st.Responses, rawString(r))
	}
	return st
}

func orEmpty(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

// rawString returns the unquoted value of a JSON string, or the compact JSON text otherwise.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func responsesFromDTO(dtos []responseDTO) []model.ResponseRecord {
	out := make([]model.ResponseRecord, 0, len(dtos))
	for _, r := range dtos {
		out = append(out, model.ResponseRecord{
			ItemID:  r.DatasetItemID,
			Value:   rawString(r.Value),
			Correct: *r.Correct,
		})
	}
	return out
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// ToRunResponse maps the reply of the start and continue endpoints.
func ToRunResponse(raw []byte) (model.RunResponse, error) {
	var dto runResponseDTO
	if err := decode("run response", raw, &dto); err != nil {
		return model.RunResponse{}, err
	}
	resp := model.RunResponse{
		RunInfo:   model.RunInfo{ID: dto.RunInfo.ID},
		State:     stateFromDTO(dto.State),
		Completed: dto.Completed,
	}
	if len(dto.NextItem) > 0 && !bytes.Equal(bytes.TrimSpace(dto.NextItem), []byte("null")) {
		item, err := ToItem(dto.NextItem)
		if err != nil {
			return model.RunResponse{}, fmt.Errorf("nextItem: %w", err)
		}
		resp.NextItem = &item
	}
	return resp, nil
}

// ToRunSummary maps the adaptive run summary, including the recorded item sequence.
func ToRunSummary(raw []byte) (model.RunSummary, error) {
	var dto runSummaryDTO
	if err := decode("run summary", raw, &dto); err != nil {
		return model.RunSummary{}, err
	}
	dataset, err := itemsFromRaw(dto.Dataset)
	if err != nil {
		return model.RunSummary{}, err
	}
	return model.RunSummary{
		ID:        dto.ID,
		DatasetID: dto.DatasetID,
		State:     stateFromDTO(dto.State),
		Dataset:   dataset,
		Responses: responsesFromDTO(dto.Responses),
		Metadata:  metadataOrEmpty(dto.Metadata),
	}, nil
}

// ToReplayResult maps the reply of the replay endpoint.
func ToReplayResult(raw []byte) (model.ReplayResult, error) {
	var dto replayResponseDTO
	if err := decode("replay response", raw, &dto); err != nil {
		return model.ReplayResult{}, err
	}
	dataset, err := itemsFromRaw(dto.Dataset)
	if err != nil {
		return model.ReplayResult{}, err
	}
	completedAt, err := parseOptionalTime("completedAt", dto.CompletedAt)
	if err != nil {
		return model.ReplayResult{}, err
	}
	createdAt, err := parseOptionalTime("createdAt", dto.CreatedAt)
	if err != nil {
		return model.ReplayResult{}, err
	}
	return model.ReplayResult{
		ID:          dto.ID,
		DatasetID:   dto.DatasetID,
		State:       stateFromDTO(dto.State),
		ReplayOfRun: dto.ReplayOfRun,
		CompletedAt: completedAt,
		CreatedAt:   createdAt,
		Metadata:    metadataOrEmpty(dto.Metadata),
		Dataset:     dataset,
		Responses:   responsesFromDTO(dto.Responses),
	}, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// parseOptionalTime accepts RFC 3339 or zone-less ISO 8601 timestamps (read as UTC).
func parseOptionalTime(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, &Error{Entity: "replay response", Field: field, Err: fmt.Errorf("invalid timestamp %q", *s)}
}

// ToDatasets maps the dataset listing.
func ToDatasets(raw []byte) ([]model.Dataset, error) {
	var dto datasetsDTO
	if err := decode("datasets", raw, &dto); err != nil {
		return nil, err
	}
	out := make([]model.Dataset, 0, len(dto.Data))
	for _, d := range dto.Data {
		out = append(out, model.Dataset{ID: d.ID, Name: d.Name})
	}
	return out, nil
}

// ToMe maps the API key owner's identity.
func ToMe(raw []byte) (model.Me, error) {
	var dto meDTO
	if err := decode("me", raw, &dto); err != nil {
		return model.Me{}, err
	}
	me := model.Me{
		User:  userFromDTO(dto.User),
		Teams: make([]model.Team, 0, len(dto.Teams)),
	}
	for _, t := range dto.Teams {
		me.Teams = append(me.Teams, model.Team{ID: t.ID, Name: t.Name, Role: t.Role, AccountID: t.AccountID})
	}
	return me, nil
}

func userFromDTO(u *userDTO) model.UserInfo {
	return model.UserInfo{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt,
		AccountID: u.AccountID,
	}
}

// ToProject maps a single project.
func ToProject(raw []byte) (model.Project, error) {
	var dto projectDTO
	if err := decode("project", raw, &dto); err != nil {
		return model.Project{}, err
	}
	return projectFromDTO(dto), nil
}

func projectFromDTO(dto projectDTO) model.Project {
	p := model.Project{
		ID:             dto.ID,
		Name:           dto.Name,
		OrganizationID: dto.OrganizationID,
		CreatedAt:      dto.CreatedAt,
		UpdatedAt:      dto.UpdatedAt,
	}
	if dto.Description != nil {
		p.Description = *dto.Description
	}
	return p
}

// ToProjects maps a project listing. Both a bare array and a {"data": [...]}
// envelope are accepted.
func ToProjects(raw []byte) ([]model.Project, error) {
	trimmed := bytes.TrimSpace(raw)
	var elems []json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, &Error{Entity: "projects", Err: err}
		}
	} else {
		var env struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, &Error{Entity: "projects", Err: err}
		}
		if env.Data == nil {
			return nil, &Error{Entity: "projects", Field: "data", Err: errors.New(`failed "required" check`)}
		}
		elems = env.Data
	}
	out := make([]model.Project, 0, len(elems))
	for i, e := range elems {
		p, err := ToProject(e)
		if err != nil {
			return nil, fmt.Errorf("projects[%d]: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ToClassicEvalResponse maps the stored classic evaluation run.
func ToClassicEvalResponse(raw []byte) (model.ClassicEvalResponse, error) {
	var dto classicEvalResponseDTO
	if err := decode("classic eval response", raw, &dto); err != nil {
		return model.ClassicEvalResponse{}, err
	}
	return model.ClassicEvalResponse{
		ID:              dto.ID,
		AccountID:       dto.AccountID,
		ProjectID:       dto.ProjectID,
		ExperimentID:    dto.ExperimentID,
		ExperimentName:  dto.ExperimentName,
		DatasetID:       dto.DatasetID,
		UserID:          dto.UserID,
		Type:            dto.Type,
		ModelName:       dto.ModelName,
		Hyperparameters: metadataOrEmpty(dto.Hyperparameters),
		CreatedAt:       dto.CreatedAt,
		User:            userFromDTO(dto.User),
		ResponseCount:   *dto.ResponseCount,
	}, nil
}
