package models

import "time"

// Measurement is a single scale reading. Timestamp and Weight are mandatory;
// every derived metric is optional and independently present. JSON field names
// follow the source API so the per-run snapshot file matches what the cloud
// returned.
type Measurement struct {
	Timestamp       time.Time `json:"Date"`
	Weight          float64   `json:"Weight"`
	BMI             *float64  `json:"BMI,omitempty"`
	BodyFat         *float64  `json:"BodyFat,omitempty"`
	BodyWater       *float64  `json:"BodyWater,omitempty"`
	MuscleMass      *float64  `json:"MuscleMass,omitempty"`
	BoneMass        *float64  `json:"BoneMass,omitempty"`
	VisceralFat     *float64  `json:"VisceralFat,omitempty"`
	BasalMetabolism *float64  `json:"BasalMetabolism,omitempty"`
	MetabolicAge    *float64  `json:"MetabolicAge,omitempty"`
	BodyScore       *float64  `json:"BodyScore,omitempty"`
	HeartRate       *float64  `json:"HeartRate,omitempty"`
}

// Valid reports whether the mandatory fields are usable for encoding.
func (m *Measurement) Valid() bool {
	return !m.Timestamp.IsZero() && m.Weight > 0
}

// Float64Ptr is a convenience helper for building optional metric fields.
func Float64Ptr(v float64) *float64 {
	return &v
}
