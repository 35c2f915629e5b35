package fit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/scalesync/internal/common"
	"github.com/dmitrijs2005/scalesync/internal/models"
)

func sampleRecords(t *testing.T) []models.Measurement {
	t.Helper()
	ts := func(s string) time.Time {
		v, err := time.Parse(time.RFC3339, s)
		require.NoError(t, err)
		return v
	}
	// Newest first, matching the source API ordering.
	return []models.Measurement{
		{
			Timestamp:       ts("2024-03-03T07:31:00Z"),
			Weight:          70.5,
			BMI:             models.Float64Ptr(22.8),
			BodyFat:         models.Float64Ptr(18.4),
			BodyWater:       models.Float64Ptr(55.2),
			MuscleMass:      models.Float64Ptr(52.3),
			BoneMass:        models.Float64Ptr(3.1),
			VisceralFat:     models.Float64Ptr(7),
			BasalMetabolism: models.Float64Ptr(1620),
			MetabolicAge:    models.Float64Ptr(28),
			BodyScore:       models.Float64Ptr(88),
			HeartRate:       models.Float64Ptr(62),
		},
		{
			Timestamp: ts("2024-03-02T07:29:00Z"),
			Weight:    71.0,
		},
		{
			Timestamp: ts("2024-03-01T07:35:00Z"),
			Weight:    69.8,
			BodyFat:   models.Float64Ptr(18.9),
		},
	}
}

var generatedAt = time.Date(2024, 3, 3, 8, 0, 0, 0, time.UTC)

func TestEncode_Deterministic(t *testing.T) {
	enc := NewEncoder("alice")
	records := sampleRecords(t)

	a, err := enc.Encode(records, generatedAt)
	require.NoError(t, err)
	b, err := enc.Encode(records, generatedAt)
	require.NoError(t, err)

	assert.Equal(t, a, b, "same inputs must produce identical bytes")
}

func TestEncode_SerialStablePerUser(t *testing.T) {
	assert.Equal(t, NewEncoder("alice").Serial(), NewEncoder("alice").Serial())
	assert.NotEqual(t, NewEncoder("alice").Serial(), NewEncoder("bob").Serial())
	assert.NotZero(t, NewEncoder("alice").Serial())
}

func TestEncode_EmptyRecords(t *testing.T) {
	_, err := NewEncoder("alice").Encode(nil, generatedAt)
	require.ErrorIs(t, err, common.ErrEncoding)
}

func TestEncode_MissingMandatoryFields(t *testing.T) {
	t.Run("zero weight", func(t *testing.T) {
		records := []models.Measurement{{Timestamp: generatedAt}}
		_, err := NewEncoder("alice").Encode(records, generatedAt)
		require.ErrorIs(t, err, common.ErrEncoding)
	})

	t.Run("zero timestamp", func(t *testing.T) {
		records := []models.Measurement{{Weight: 70}}
		_, err := NewEncoder("alice").Encode(records, generatedAt)
		require.ErrorIs(t, err, common.ErrEncoding)
	})
}

func TestEncode_RoundTrip(t *testing.T) {
	records := sampleRecords(t)
	enc := NewEncoder("alice")

	data, err := enc.Encode(records, generatedAt)
	require.NoError(t, err)

	f, err := Decode(data)
	require.NoError(t, err)

	assert.EqualValues(t, fileTypeWeight, f.FileType)
	assert.EqualValues(t, manufacturerGarmin, f.Manufacturer)
	assert.Equal(t, enc.Serial(), f.SerialNumber)
	assert.True(t, generatedAt.Equal(f.TimeCreated), "time_created mismatch: %s", f.TimeCreated)

	require.Len(t, f.Records, len(records))
	for i, got := range f.Records {
		want := records[i]
		// Mandatory fields round-trip exactly (weight within the u16/100
		// fixed-point grid, which all sample values sit on).
		assert.True(t, want.Timestamp.Equal(got.Timestamp), "record %d timestamp mismatch: %s", i, got.Timestamp)
		assert.InDelta(t, want.Weight, got.Weight, 0.005, "record %d weight", i)
	}

	// Optional metrics survive within scale precision; absent stays absent.
	first := f.Records[0]
	require.NotNil(t, first.BMI)
	assert.InDelta(t, 22.8, *first.BMI, 0.05)
	require.NotNil(t, first.BodyFat)
	assert.InDelta(t, 18.4, *first.BodyFat, 0.005)
	require.NotNil(t, first.BasalMetabolism)
	assert.InDelta(t, 1620, *first.BasalMetabolism, 0.25)
	require.NotNil(t, first.MetabolicAge)
	assert.Equal(t, 28.0, *first.MetabolicAge)
	require.NotNil(t, first.VisceralFat)
	assert.Equal(t, 7.0, *first.VisceralFat)

	second := f.Records[1]
	assert.Nil(t, second.BMI)
	assert.Nil(t, second.BodyFat)
	assert.Nil(t, second.MuscleMass)

	// Newest-first input order is preserved through the file.
	assert.True(t, f.Records[0].Timestamp.After(f.Records[1].Timestamp))
	assert.True(t, f.Records[1].Timestamp.After(f.Records[2].Timestamp))
}

func TestEncode_UnrepresentableOptionalOmitted(t *testing.T) {
	records := []models.Measurement{{
		Timestamp: generatedAt,
		Weight:    70,
		// u16 with scale 100 tops out below this; must be dropped, not clamped.
		MuscleMass:   models.Float64Ptr(70000),
		MetabolicAge: models.Float64Ptr(-3),
	}}

	data, err := NewEncoder("alice").Encode(records, generatedAt)
	require.NoError(t, err)

	f, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, f.Records, 1)
	assert.Nil(t, f.Records[0].MuscleMass)
	assert.Nil(t, f.Records[0].MetabolicAge)
}

func TestEncode_UnrepresentableWeightFails(t *testing.T) {
	records := []models.Measurement{{Timestamp: generatedAt, Weight: 70000}}
	_, err := NewEncoder("alice").Encode(records, generatedAt)
	require.ErrorIs(t, err, common.ErrEncoding)
}

func TestEncode_TimeBeforeFitEpochFails(t *testing.T) {
	old := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []models.Measurement{{Timestamp: old, Weight: 70}}
	_, err := NewEncoder("alice").Encode(records, generatedAt)
	require.ErrorIs(t, err, common.ErrEncoding)
}

func TestDecode_CorruptionDetected(t *testing.T) {
	data, err := NewEncoder("alice").Encode(sampleRecords(t), generatedAt)
	require.NoError(t, err)

	// Flipping any single body byte must invalidate the trailing checksum.
	for i := headerSize; i < len(data)-2; i++ {
		mutated := append([]byte(nil), data...)
		mutated[i] ^= 0x01
		_, err := Decode(mutated)
		assert.Error(t, err, "flip at offset %d went undetected", i)
	}
}

func TestDecode_Truncated(t *testing.T) {
	data, err := NewEncoder("alice").Encode(sampleRecords(t), generatedAt)
	require.NoError(t, err)

	_, err = Decode(data[:10])
	require.Error(t, err)

	_, err = Decode(data[:len(data)-4])
	require.Error(t, err)
}

func TestDecode_BadMagic(t *testing.T) {
	data, err := NewEncoder("alice").Encode(sampleRecords(t), generatedAt)
	require.NoError(t, err)

	data[8] = 'X'
	_, err = Decode(data)
	require.Error(t, err)
}

func TestChecksum_Basics(t *testing.T) {
	assert.Zero(t, Checksum(nil))
	assert.NotEqual(t, Checksum([]byte{0x01}), Checksum([]byte{0x02}))
}

func TestFilename(t *testing.T) {
	got := Filename("alice", generatedAt)
	assert.Equal(t, "weight_alice_20240303080000.fit", got)
}
