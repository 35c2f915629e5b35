// Package report renders the operator-facing console output: per-record
// cards, the statistics block, and per-stage status lines. It writes plain
// text to an io.Writer; diagnostics belong to the structured logger, not
// here.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/scalesync/internal/models"
)

const rule = "================================================================================"

// Statistics summarizes a measurement series. Latest is the first element of
// the newest-first series.
type Statistics struct {
	Count   int
	Latest  float64
	Average float64
	Min     float64
	Max     float64
}

// ComputeStatistics derives weight statistics from a newest-first series.
// The average is rounded to two decimals; an empty series yields zero values.
func ComputeStatistics(records []models.Measurement) Statistics {
	s := Statistics{Count: len(records)}
	if len(records) == 0 {
		return s
	}

	s.Latest = records[0].Weight
	s.Min = records[0].Weight
	s.Max = records[0].Weight

	var sum float64
	for _, r := range records {
		sum += r.Weight
		s.Min = math.Min(s.Min, r.Weight)
		s.Max = math.Max(s.Max, r.Weight)
	}
	s.Average = math.Round(sum/float64(len(records))*100) / 100
	return s
}

// DisplayMeasurements prints up to limit record cards plus the statistics
// block, mirroring the layout operators already know.
func DisplayMeasurements(w io.Writer, records []models.Measurement, limit int) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No weight data found.")
		return
	}

	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "📊 Weight Data Summary - Total Records: %d\n", len(records))
	fmt.Fprintf(w, "%s\n\n", rule)

	count := limit
	if count > len(records) || count <= 0 {
		count = len(records)
	}
	fmt.Fprintf(w, "Showing latest %d records:\n\n", count)

	for i, r := range records[:count] {
		fmt.Fprintf(w, "Record #%d - %s\n", i+1, r.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "  Weight: %.2f kg\n", r.Weight)
		// BMI keeps its row even when the scale did not report one.
		fmt.Fprintf(w, "  BMI: %s\n", optValue(r.BMI))
		writeOpt(w, "Body Fat", r.BodyFat, "%")
		writeOpt(w, "Body Water", r.BodyWater, "%")
		writeOpt(w, "Muscle Mass", r.MuscleMass, " kg")
		writeOpt(w, "Bone Mass", r.BoneMass, " kg")
		writeOpt(w, "Visceral Fat", r.VisceralFat, "")
		writeOpt(w, "Basal Metabolism", r.BasalMetabolism, " kcal")
		writeOpt(w, "Metabolic Age", r.MetabolicAge, " years")
		writeOpt(w, "Body Score", r.BodyScore, "")
		writeOpt(w, "Heart Rate", r.HeartRate, " bpm")
		fmt.Fprintln(w)
	}

	s := ComputeStatistics(records)
	fmt.Fprintf(w, "%s\n📈 Statistics\n%s\n", rule, rule)
	fmt.Fprintf(w, "  Latest Weight: %.1f kg\n", s.Latest)
	fmt.Fprintf(w, "  Average Weight: %.2f kg\n", s.Average)
	fmt.Fprintf(w, "  Min Weight: %.1f kg\n", s.Min)
	fmt.Fprintf(w, "  Max Weight: %.1f kg\n", s.Max)
	fmt.Fprintf(w, "%s\n\n", rule)
}

func writeOpt(w io.Writer, label string, v *float64, unit string) {
	if v == nil {
		return
	}
	fmt.Fprintf(w, "  %s: %s%s\n", label, optValue(v), unit)
}

func optValue(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", *v), "0"), ".")
}

// ArtifactGenerated reports a written activity file with its size.
func ArtifactGenerated(w io.Writer, path string, size int) {
	fmt.Fprintf(w, "FIT file generated: %s (%s)\n", path, humanize.Bytes(uint64(size)))
}

// UploadStatus renders the classified upload outcome with its symbol.
func UploadStatus(w io.Writer, status string) {
	switch status {
	case "SUCCESS":
		fmt.Fprintln(w, "✅ Successfully synchronized weight data to Garmin Connect!")
	case "DUPLICATE":
		fmt.Fprintln(w, "ℹ️ Data already exists on Garmin Connect (Duplicate).")
	default:
		fmt.Fprintf(w, "❌ Garmin sync failed: %s\n", status)
	}
}
