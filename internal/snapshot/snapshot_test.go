package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/scalesync/internal/models"
)

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 3, 3, 7, 31, 0, 0, time.UTC)
	records := []models.Measurement{
		{Timestamp: ts, Weight: 70.5, BMI: models.Float64Ptr(22.8)},
		{Timestamp: ts.Add(-24 * time.Hour), Weight: 71.0},
	}

	path, err := Write(dir, "alice", records)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "weight_data_alice.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	// Key naming must match the source API's field names.
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, 70.5, decoded[0]["Weight"])
	assert.Equal(t, 22.8, decoded[0]["BMI"])
	assert.Contains(t, decoded[0], "Date")
	// Absent optional metrics stay absent rather than appearing as null.
	assert.NotContains(t, decoded[1], "BMI")
}

func TestWrite_EmptySeries_NoFile(t *testing.T) {
	dir := t.TempDir()

	path, err := Write(dir, "alice", nil)
	require.NoError(t, err)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
