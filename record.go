package wwvb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/sigurn/crc16"
)

// Record sync word
const (
	SyncAA    = 0xAA
	SyncFrame = 0x57
)

// recordCRC is CRC-16/CCITT-FALSE, the checksum C37.118 frames carry
var recordCRC = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// Checksum returns the CRC of a packed record without its trailing CHK field
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, recordCRC)
}

// Record layout sizes
const (
	packedSlotBytes = FrameSlots / 4
	RecordSize      = 2 + 2 + 2 + 4 + packedSlotBytes + 2
)

// FrameRecord is the feed representation of one published frame
type FrameRecord struct {
	Sync      uint16
	FrameSize uint16
	StationID uint16
	// SOC is the unix time of the minute the frame encodes
	SOC   uint32
	Slots [packedSlotBytes]byte
	CHK   uint16
}

// MaxRecordYear is the last year whose minutes fit the 32-bit SOC field
const MaxRecordYear = 2105

// NewFrameRecord packs cf for station stationID
func NewFrameRecord(stationID uint16, cf *CommittedFrame) (*FrameRecord, error) {
	if cf.Sample.Year < 1970 || cf.Sample.Year > MaxRecordYear {
		return nil, fmt.Errorf("%w: year %d outside the feed record range", ErrInvalidTimeSample, cf.Sample.Year)
	}
	r := &FrameRecord{
		Sync:      (SyncAA << 8) | SyncFrame,
		FrameSize: RecordSize,
		StationID: stationID,
		SOC:       uint32(cf.Sample.MinuteStart().Unix()),
	}
	r.SetFrame(&cf.Frame)
	return r, nil
}

// SetFrame packs the slots two bits each, most significant pair first
func (r *FrameRecord) SetFrame(f *Frame) {
	r.Slots = [packedSlotBytes]byte{}
	for i, v := range f {
		r.Slots[i/4] |= byte(v&0x3) << (6 - 2*(i%4))
	}
}

// Frame unpacks the slots
func (r *FrameRecord) Frame() (Frame, error) {
	var f Frame
	for i := range f {
		v := SlotValue(r.Slots[i/4]>>(6-2*(i%4))) & 0x3
		if v > Marker {
			return f, ErrInvalidFrame
		}
		f[i] = v
	}
	return f, nil
}

// MinuteStart returns the encoded minute as a UTC time
func (r *FrameRecord) MinuteStart() time.Time {
	return time.Unix(int64(r.SOC), 0).UTC()
}

// Pack converts the record to bytes
func (r *FrameRecord) Pack() ([]byte, error) {
	r.FrameSize = RecordSize

	buf := new(bytes.Buffer)

	if err := putFields(buf, r.Sync, r.FrameSize, r.StationID, r.SOC); err != nil {
		return nil, err
	}
	buf.Write(r.Slots[:])

	// Calculate and write CRC
	data := buf.Bytes()
	crc := Checksum(data)
	if err := binary.Write(buf, binary.BigEndian, crc); err != nil {
		return nil, err
	}
	r.CHK = crc

	return buf.Bytes(), nil
}

// Unpack parses bytes into the record
func (r *FrameRecord) Unpack(data []byte) error {
	if len(data) < RecordSize {
		return ErrInvalidSize
	}

	buf := bytes.NewReader(data)

	if err := getFields(buf, &r.Sync, &r.FrameSize); err != nil {
		return err
	}

	if r.Sync != (SyncAA<<8)|SyncFrame {
		return ErrInvalidFrame
	}
	if r.FrameSize != RecordSize {
		return ErrInvalidSize
	}

	if err := getFields(buf, &r.StationID, &r.SOC, &r.Slots, &r.CHK); err != nil {
		return err
	}

	// Verify CRC
	crcData := data[:r.FrameSize-2]
	if Checksum(crcData) != r.CHK {
		return ErrCRCFailed
	}

	return nil
}

// putFields writes each value big endian
func putFields(w io.Writer, values ...any) error {
	for _, v := range values {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// getFields reads each value big endian, in order
func getFields(r io.Reader, values ...any) error {
	for _, v := range values {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return nil
}
