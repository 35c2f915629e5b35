package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrijs2005/scalesync/internal/models"
)

func weights(values ...float64) []models.Measurement {
	ts := time.Date(2024, 3, 3, 7, 31, 0, 0, time.UTC)
	records := make([]models.Measurement, len(values))
	for i, v := range values {
		records[i] = models.Measurement{Timestamp: ts.Add(-time.Duration(i) * 24 * time.Hour), Weight: v}
	}
	return records
}

func TestComputeStatistics(t *testing.T) {
	s := ComputeStatistics(weights(70.5, 71.0, 69.8))

	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 70.5, s.Latest, "latest is the first (newest) element")
	assert.Equal(t, 70.43, s.Average, "average rounds to two decimals")
	assert.Equal(t, 69.8, s.Min)
	assert.Equal(t, 71.0, s.Max)
}

func TestComputeStatistics_Empty(t *testing.T) {
	s := ComputeStatistics(nil)
	assert.Zero(t, s.Count)
	assert.Zero(t, s.Latest)
}

func TestDisplayMeasurements(t *testing.T) {
	records := weights(70.5, 71.0, 69.8)
	records[0].BMI = models.Float64Ptr(22.8)
	records[0].BodyFat = models.Float64Ptr(18.4)

	var buf bytes.Buffer
	DisplayMeasurements(&buf, records, 2)
	out := buf.String()

	assert.Contains(t, out, "Total Records: 3")
	assert.Contains(t, out, "Showing latest 2 records:")
	assert.Contains(t, out, "Record #1")
	assert.Contains(t, out, "Record #2")
	assert.NotContains(t, out, "Record #3", "limit is display-only but must be honored")
	assert.Contains(t, out, "BMI: 22.8")
	assert.Contains(t, out, "BMI: N/A", "the BMI row is printed even without a reading")
	assert.Contains(t, out, "Body Fat: 18.4%")
	assert.NotContains(t, out, "Muscle Mass", "absent metrics are not printed")
	assert.Contains(t, out, "Average Weight: 70.43 kg")
}

func TestDisplayMeasurements_Empty(t *testing.T) {
	var buf bytes.Buffer
	DisplayMeasurements(&buf, nil, 10)
	assert.Equal(t, "No weight data found.\n", buf.String())
}

func TestUploadStatus(t *testing.T) {
	var buf bytes.Buffer

	UploadStatus(&buf, "SUCCESS")
	assert.Contains(t, buf.String(), "✅")

	buf.Reset()
	UploadStatus(&buf, "DUPLICATE")
	assert.Contains(t, buf.String(), "ℹ️")

	buf.Reset()
	UploadStatus(&buf, "413 Request Entity Too Large")
	assert.Contains(t, buf.String(), "❌")
	assert.Contains(t, buf.String(), "413")
}

func TestArtifactGenerated(t *testing.T) {
	var buf bytes.Buffer
	ArtifactGenerated(&buf, "/tmp/weight_alice.fit", 1234)
	assert.Contains(t, buf.String(), "weight_alice.fit")
	assert.Contains(t, buf.String(), "1.2 kB")
}
