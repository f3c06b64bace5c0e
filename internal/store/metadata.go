package store

import "database/sql"

const lastRunKey = "last_run"

// SetMetadata upserts a key-value pair in the ledger_metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO ledger_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM ledger_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetLastRun remembers runID as the latest run of testID and of the ledger.
func (s *Store) SetLastRun(testID, runID string) error {
	if err := s.SetMetadata(lastRunKey+":"+testID, runID); err != nil {
		return err
	}
	return s.SetMetadata(lastRunKey, runID)
}

// LastRun returns the latest run of testID, or of any test when testID is
// empty. It returns "" when there is none.
func (s *Store) LastRun(testID string) (string, error) {
	if testID == "" {
		return s.GetMetadata(lastRunKey)
	}
	return s.GetMetadata(lastRunKey + ":" + testID)
}
