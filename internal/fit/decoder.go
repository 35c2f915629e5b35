package fit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/scalesync/internal/models"
)

// File is the decoded view of a weight FIT file: the framing identity fields
// plus the body-composition records in file order. Optional metrics whose
// wire value is the invalid sentinel come back as nil pointers.
type File struct {
	FileType     byte
	Manufacturer uint16
	Product      uint16
	SerialNumber uint32
	TimeCreated  time.Time
	Records      []models.Measurement
}

var (
	errTruncated = errors.New("truncated file")
	errBadMagic  = errors.New("bad magic")
	errBadCRC    = errors.New("checksum mismatch")
)

type definition struct {
	globalMsg uint16
	fields    []fieldDef
	size      int
}

// Decode parses and verifies a FIT weight file produced by Encode. It
// validates the header magic, the declared body length, and both CRCs, then
// walks the message stream. Unknown global messages are skipped by size.
func Decode(data []byte) (*File, error) {
	if len(data) < headerSize+2 {
		return nil, errTruncated
	}

	hdrSize := int(data[0])
	if hdrSize != headerSize && hdrSize != 12 {
		return nil, fmt.Errorf("unexpected header size %d", hdrSize)
	}
	if string(data[8:12]) != ".FIT" {
		return nil, errBadMagic
	}
	if hdrSize == headerSize {
		declared := binary.LittleEndian.Uint16(data[12:14])
		// A zero header CRC is allowed by the format.
		if declared != 0 && declared != Checksum(data[:12]) {
			return nil, fmt.Errorf("header %w", errBadCRC)
		}
	}

	dataSize := int(binary.LittleEndian.Uint32(data[4:8]))
	if len(data) < hdrSize+dataSize+2 {
		return nil, errTruncated
	}

	body := data[hdrSize : hdrSize+dataSize]
	trailer := binary.LittleEndian.Uint16(data[hdrSize+dataSize : hdrSize+dataSize+2])
	if trailer != Checksum(data[:hdrSize+dataSize]) {
		return nil, errBadCRC
	}

	f := &File{}
	defs := map[byte]*definition{}

	for off := 0; off < len(body); {
		hdr := body[off]
		off++

		if hdr&0x40 != 0 {
			// Definition message.
			local := hdr & 0x0F
			def, n, err := parseDefinition(body[off:])
			if err != nil {
				return nil, err
			}
			defs[local] = def
			off += n
			continue
		}

		local := hdr & 0x0F
		def, ok := defs[local]
		if !ok {
			return nil, fmt.Errorf("data message for undefined local type %d", local)
		}
		if off+def.size > len(body) {
			return nil, errTruncated
		}
		payload := body[off : off+def.size]
		off += def.size

		switch def.globalMsg {
		case globalMsgFileID:
			f.applyFileID(def, payload)
		case globalMsgWeightScale:
			f.Records = append(f.Records, decodeWeightScale(def, payload))
		}
	}

	return f, nil
}

func parseDefinition(b []byte) (*definition, int, error) {
	if len(b) < 5 {
		return nil, 0, errTruncated
	}
	arch := b[1]
	if arch != 0 {
		return nil, 0, fmt.Errorf("unsupported architecture %d", arch)
	}
	def := &definition{globalMsg: binary.LittleEndian.Uint16(b[2:4])}
	count := int(b[4])
	need := 5 + count*3
	if len(b) < need {
		return nil, 0, errTruncated
	}
	for i := 0; i < count; i++ {
		fd := fieldDef{num: b[5+i*3], size: b[6+i*3], baseType: b[7+i*3]}
		def.fields = append(def.fields, fd)
		def.size += int(fd.size)
	}
	return def, need, nil
}

func (f *File) applyFileID(def *definition, payload []byte) {
	off := 0
	for _, fd := range def.fields {
		v := payload[off : off+int(fd.size)]
		switch fd.num {
		case fieldFileType:
			f.FileType = v[0]
		case fieldManufacturer:
			f.Manufacturer = binary.LittleEndian.Uint16(v)
		case fieldProduct:
			f.Product = binary.LittleEndian.Uint16(v)
		case fieldSerialNumber:
			f.SerialNumber = binary.LittleEndian.Uint32(v)
		case fieldTimeCreated:
			f.TimeCreated = wallTime(binary.LittleEndian.Uint32(v))
		}
		off += int(fd.size)
	}
}

func decodeWeightScale(def *definition, payload []byte) models.Measurement {
	var m models.Measurement
	off := 0
	for _, fd := range def.fields {
		v := payload[off : off+int(fd.size)]
		switch fd.num {
		case fieldTimestamp:
			m.Timestamp = wallTime(binary.LittleEndian.Uint32(v))
		case fieldWeight:
			if raw := binary.LittleEndian.Uint16(v); raw != invalidUint16 {
				m.Weight = float64(raw) / 100
			}
		case fieldPercentFat:
			m.BodyFat = descale16(v, 100)
		case fieldPercentHydration:
			m.BodyWater = descale16(v, 100)
		case fieldBoneMass:
			m.BoneMass = descale16(v, 100)
		case fieldMuscleMass:
			m.MuscleMass = descale16(v, 100)
		case fieldBasalMet:
			m.BasalMetabolism = descale16(v, 4)
		case fieldMetabolicAge:
			m.MetabolicAge = descale8(v)
		case fieldVisceralFat:
			m.VisceralFat = descale8(v)
		case fieldBMI:
			m.BMI = descale16(v, 10)
		}
		off += int(fd.size)
	}
	return m
}

func descale16(v []byte, scale float64) *float64 {
	raw := binary.LittleEndian.Uint16(v)
	if raw == invalidUint16 {
		return nil
	}
	f := float64(raw) / scale
	return &f
}

func descale8(v []byte) *float64 {
	if v[0] == invalidUint8 {
		return nil
	}
	f := float64(v[0])
	return &f
}

func wallTime(fit uint32) time.Time {
	return time.Unix(int64(fit)+fitEpochOffset, 0).UTC()
}
