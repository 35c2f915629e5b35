// Package snapshot writes the per-run JSON copy of the fetched measurement
// series, one document per user, using the source API's field names.
package snapshot

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/scalesync/internal/filex"
	"github.com/dmitrijs2005/scalesync/internal/models"
)

// Write stores records as data/weight_data_<username>.json under dir and
// returns the file path. Nothing is written for an empty series.
func Write(dir, username string, records []models.Measurement) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	path := filepath.Join(abs, fmt.Sprintf("weight_data_%s.json", username))
	if err := filex.WriteFileAtomic(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
