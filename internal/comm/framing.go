package comm

import (
	"encoding/binary"
	"fmt"

	"pkg.jsn.cam/kwcount/pkg/kwcount"
)

// Codec turns a record slice into one wire buffer and back.
type Codec interface {
	Encode(records []string) ([]byte, error)
	Decode(buf []byte) ([]string, error)
}

// NewCodec returns the codec for framing. width is the largest record the
// codec accepts, in bytes.
func NewCodec(framing kwcount.Framing, width int) Codec {
	if framing == kwcount.FramingLengthPrefixed {
		return LengthPrefixed{Max: width}
	}
	return FixedWidth{Width: width}
}

// fixedHeader holds the record length at the front of each fixed slot.
const fixedHeader = 4

// FixedWidth lays every record out in a slot of the same size: a 4-byte
// big-endian length followed by Width bytes, zero padded. Short records
// waste bandwidth but every slot costs the same regardless of partition.
type FixedWidth struct {
	Width int
}

func (f FixedWidth) slot() int {
	return fixedHeader + f.Width
}

func (f FixedWidth) Encode(records []string) ([]byte, error) {
	buf := make([]byte, len(records)*f.slot())

	for i, rec := range records {
		if len(rec) > f.Width {
			return nil, fmt.Errorf("%w: record %d is %d bytes, slot holds %d", kwcount.ErrRecordTooLong, i, len(rec), f.Width)
		}
		off := i * f.slot()
		binary.BigEndian.PutUint32(buf[off:], uint32(len(rec)))
		copy(buf[off+fixedHeader:], rec)
	}

	return buf, nil
}

func (f FixedWidth) Decode(buf []byte) ([]string, error) {
	if len(buf)%f.slot() != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of slot size %d", kwcount.ErrFrameCorrupt, len(buf), f.slot())
	}

	n := len(buf) / f.slot()
	records := make([]string, n)
	for i := range n {
		off := i * f.slot()
		size := int(binary.BigEndian.Uint32(buf[off:]))
		if size > f.Width {
			return nil, fmt.Errorf("%w: slot %d claims %d bytes, width is %d", kwcount.ErrFrameCorrupt, i, size, f.Width)
		}
		records[i] = string(buf[off+fixedHeader : off+fixedHeader+size])
	}

	return records, nil
}

// LengthPrefixed writes a uvarint count, then a uvarint length before each
// record. Records longer than Max are refused in both directions.
type LengthPrefixed struct {
	Max int
}

func (l LengthPrefixed) Encode(records []string) ([]byte, error) {
	size := binary.MaxVarintLen64
	for _, rec := range records {
		size += binary.MaxVarintLen64 + len(rec)
	}

	buf := make([]byte, 0, size)
	buf = binary.AppendUvarint(buf, uint64(len(records)))
	for i, rec := range records {
		if l.Max > 0 && len(rec) > l.Max {
			return nil, fmt.Errorf("%w: record %d is %d bytes, cap is %d", kwcount.ErrRecordTooLong, i, len(rec), l.Max)
		}
		buf = binary.AppendUvarint(buf, uint64(len(rec)))
		buf = append(buf, rec...)
	}

	return buf, nil
}

func (l LengthPrefixed) Decode(buf []byte) ([]string, error) {
	count, n := binary.Uvarint(buf)
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad record count", kwcount.ErrFrameCorrupt)
	}
	buf = buf[n:]

	// every record needs at least one length byte
	if count > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: %d records cannot fit in %d bytes", kwcount.ErrFrameCorrupt, count, len(buf))
	}

	records := make([]string, 0, count)
	for i := range count {
		size, n := binary.Uvarint(buf)
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad length for record %d", kwcount.ErrFrameCorrupt, i)
		}
		buf = buf[n:]

		if size > uint64(len(buf)) || (l.Max > 0 && size > uint64(l.Max)) {
			return nil, fmt.Errorf("%w: record %d claims %d bytes", kwcount.ErrFrameCorrupt, i, size)
		}
		records = append(records, string(buf[:size]))
		buf = buf[size:]
	}

	if len(buf) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", kwcount.ErrFrameCorrupt, len(buf))
	}

	return records, nil
}
