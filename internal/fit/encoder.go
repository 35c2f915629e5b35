// Package fit encodes an ordered series of scale measurements into a FIT
// weight file and decodes such files back for verification.
//
// The writer produces exactly the message sequence Garmin Connect expects
// from a body-composition upload: a file_id framing message followed by one
// weight_scale message per measurement, wrapped in the standard 14-byte
// header and trailing CRC-16. Encoding is a pure function of its inputs, so
// the same records and generation time always yield identical bytes.
package fit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/scalesync/internal/common"
	"github.com/dmitrijs2005/scalesync/internal/models"
)

const (
	headerSize      = 14
	protocolVersion = 0x20 // 2.0
	profileVersion  = 2194 // 21.94

	// FIT date_time counts seconds from 1989-12-31T00:00:00Z.
	fitEpochOffset = 631065600

	fileTypeWeight       = 9
	manufacturerGarmin   = 1
	globalMsgFileID      = 0
	globalMsgWeightScale = 30

	// Base types.
	baseEnum    = 0x00
	baseUint8   = 0x02
	baseUint16  = 0x84
	baseUint32  = 0x86
	baseUint32z = 0x8C

	invalidUint8  = 0xFF
	invalidUint16 = 0xFFFF
)

// weight_scale field numbers per the FIT profile.
const (
	fieldTimestamp        = 253
	fieldWeight           = 0
	fieldPercentFat       = 1
	fieldPercentHydration = 2
	fieldBoneMass         = 4
	fieldMuscleMass       = 5
	fieldBasalMet         = 7
	fieldMetabolicAge     = 10
	fieldVisceralFat      = 11
	fieldBMI              = 13
)

// file_id field numbers.
const (
	fieldFileType     = 0
	fieldManufacturer = 1
	fieldProduct      = 2
	fieldSerialNumber = 3
	fieldTimeCreated  = 4
)

type fieldDef struct {
	num      byte
	size     byte
	baseType byte
}

var fileIDFields = []fieldDef{
	{fieldFileType, 1, baseEnum},
	{fieldManufacturer, 2, baseUint16},
	{fieldProduct, 2, baseUint16},
	{fieldSerialNumber, 4, baseUint32z},
	{fieldTimeCreated, 4, baseUint32},
}

var weightScaleFields = []fieldDef{
	{fieldTimestamp, 4, baseUint32},
	{fieldWeight, 2, baseUint16},
	{fieldPercentFat, 2, baseUint16},
	{fieldPercentHydration, 2, baseUint16},
	{fieldBoneMass, 2, baseUint16},
	{fieldMuscleMass, 2, baseUint16},
	{fieldBasalMet, 2, baseUint16},
	{fieldMetabolicAge, 1, baseUint8},
	{fieldVisceralFat, 1, baseUint8},
	{fieldBMI, 2, baseUint16},
}

// Encoder produces weight FIT files for one user. The device serial number is
// derived deterministically from the username so reruns generate files the
// destination can fingerprint consistently.
type Encoder struct {
	serial uint32
}

// NewEncoder builds an Encoder whose serial number is a stable function of
// the username.
func NewEncoder(username string) *Encoder {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("scalesync:"+username))
	serial := binary.BigEndian.Uint32(id[0:4])
	if serial == 0 {
		// 0 is the invalid sentinel for uint32z.
		serial = 1
	}
	return &Encoder{serial: serial}
}

// Serial exposes the derived device serial, mainly for tests and reporting.
func (e *Encoder) Serial() uint32 {
	return e.serial
}

// Encode converts the ordered measurement series into FIT bytes. The
// generation timestamp is passed explicitly so output is reproducible.
// Returns common.ErrEncoding when records is empty or a record is missing a
// mandatory field.
func (e *Encoder) Encode(records []models.Measurement, generated time.Time) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records", common.ErrEncoding)
	}
	for i := range records {
		if !records[i].Valid() {
			return nil, fmt.Errorf("%w: record %d missing timestamp or weight", common.ErrEncoding, i)
		}
	}
	created, err := fitTime(generated)
	if err != nil {
		return nil, fmt.Errorf("%w: generation time: %v", common.ErrEncoding, err)
	}

	var body bytes.Buffer

	writeDefinition(&body, 0, globalMsgFileID, fileIDFields)
	e.writeFileID(&body, created)

	writeDefinition(&body, 1, globalMsgWeightScale, weightScaleFields)
	for i := range records {
		if err := writeWeightScale(&body, &records[i]); err != nil {
			return nil, err
		}
	}

	out := make([]byte, 0, headerSize+body.Len()+2)
	out = append(out, buildHeader(body.Len())...)
	out = append(out, body.Bytes()...)
	out = binary.LittleEndian.AppendUint16(out, Checksum(out))
	return out, nil
}

// buildHeader assembles the 14-byte file header: size, protocol and profile
// versions, body length, ".FIT" magic, and a CRC over the first 12 bytes.
func buildHeader(dataSize int) []byte {
	h := make([]byte, 0, headerSize)
	h = append(h, headerSize, protocolVersion)
	h = binary.LittleEndian.AppendUint16(h, profileVersion)
	h = binary.LittleEndian.AppendUint32(h, uint32(dataSize))
	h = append(h, '.', 'F', 'I', 'T')
	h = binary.LittleEndian.AppendUint16(h, Checksum(h))
	return h
}

// writeDefinition emits a definition message binding localType to the given
// global message and field layout (little-endian architecture).
func writeDefinition(buf *bytes.Buffer, localType byte, globalMsg uint16, fields []fieldDef) {
	buf.WriteByte(0x40 | localType)
	buf.WriteByte(0) // reserved
	buf.WriteByte(0) // architecture: little-endian
	var g [2]byte
	binary.LittleEndian.PutUint16(g[:], globalMsg)
	buf.Write(g[:])
	buf.WriteByte(byte(len(fields)))
	for _, f := range fields {
		buf.WriteByte(f.num)
		buf.WriteByte(f.size)
		buf.WriteByte(f.baseType)
	}
}

func (e *Encoder) writeFileID(buf *bytes.Buffer, created uint32) {
	buf.WriteByte(0x00) // data message, local type 0
	buf.WriteByte(fileTypeWeight)
	writeUint16(buf, manufacturerGarmin)
	writeUint16(buf, 0) // product
	writeUint32(buf, e.serial)
	writeUint32(buf, created)
}

func writeWeightScale(buf *bytes.Buffer, m *models.Measurement) error {
	ts, err := fitTime(m.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrEncoding, err)
	}
	weight, ok := scaledUint16(m.Weight, 100)
	if !ok {
		return fmt.Errorf("%w: weight %.2f not representable", common.ErrEncoding, m.Weight)
	}

	buf.WriteByte(0x01) // data message, local type 1
	writeUint32(buf, ts)
	writeUint16(buf, weight)
	writeUint16(buf, optUint16(m.BodyFat, 100))
	writeUint16(buf, optUint16(m.BodyWater, 100))
	writeUint16(buf, optUint16(m.BoneMass, 100))
	writeUint16(buf, optUint16(m.MuscleMass, 100))
	writeUint16(buf, optUint16(m.BasalMetabolism, 4))
	buf.WriteByte(optUint8(m.MetabolicAge))
	buf.WriteByte(optUint8(m.VisceralFat))
	writeUint16(buf, optUint16(m.BMI, 10))
	return nil
}

// fitTime converts a wall-clock timestamp to the format's epoch-relative
// seconds. Times before the FIT epoch are not representable.
func fitTime(t time.Time) (uint32, error) {
	s := t.Unix() - fitEpochOffset
	if s < 0 || s > math.MaxUint32 {
		return 0, fmt.Errorf("time %s outside representable range", t)
	}
	return uint32(s), nil
}

// scaledUint16 converts v with the given scale into the wire integer.
// The second return is false when the result would not fit.
func scaledUint16(v float64, scale float64) (uint16, bool) {
	scaled := math.Round(v * scale)
	if scaled < 0 || scaled >= invalidUint16 {
		return 0, false
	}
	return uint16(scaled), true
}

// optUint16 encodes an optional metric; absent or unrepresentable values
// become the type's invalid sentinel, which readers treat as "field absent".
func optUint16(v *float64, scale float64) uint16 {
	if v == nil {
		return invalidUint16
	}
	scaled, ok := scaledUint16(*v, scale)
	if !ok {
		return invalidUint16
	}
	return scaled
}

func optUint8(v *float64) byte {
	if v == nil {
		return invalidUint8
	}
	scaled := math.Round(*v)
	if scaled < 0 || scaled >= invalidUint8 {
		return invalidUint8
	}
	return byte(scaled)
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// Filename returns the deterministic artifact name for one generation run.
func Filename(username string, generated time.Time) string {
	return fmt.Sprintf("weight_%s_%s.fit", username, generated.Format("20060102150405"))
}
