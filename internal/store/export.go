package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/adaptest/internal/model"
)

// ExportRuns builds the ledger export document. An empty testID exports
// every test.
func (s *Store) ExportRuns(testID, serviceURL string) (model.LedgerExport, error) {
	runs, err := s.ListRuns(testID)
	if err != nil {
		return model.LedgerExport{}, fmt.Errorf("list runs: %w", err)
	}

	views := make([]model.RunView, 0, len(runs))
	for _, rec := range runs {
		responses, err := s.GetResponses(rec.ID)
		if err != nil {
			return model.LedgerExport{}, fmt.Errorf("get responses of run %s: %w", rec.ID, err)
		}
		if responses == nil {
			responses = []model.ResponseRecord{}
		}
		views = append(views, model.RunView{Run: rec, Responses: responses})
	}

	return model.LedgerExport{
		GeneratedAt: time.Now().UTC(),
		ServiceURL:  serviceURL,
		NumRuns:     len(views),
		Runs:        views,
	}, nil
}
