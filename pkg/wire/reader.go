package wire

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

var (
	ErrTruncated = errors.New("truncated input")
	ErrBadLength = errors.New("length prefix out of range")
)

// ReadU32Incl reads a field whose u32 length prefix counts itself
func ReadU32Incl(s *cryptobyte.String, out *[]byte) bool {
	var n uint32
	if !s.ReadUint32(&n) || n < 4 {
		return false
	}
	return s.ReadBytes(out, int(n-4))
}

// ReadU16Incl reads a field whose u16 length prefix counts itself
func ReadU16Incl(s *cryptobyte.String, out *[]byte) bool {
	var n uint16
	if !s.ReadUint16(&n) || n < 2 {
		return false
	}
	return s.ReadBytes(out, int(n-2))
}

// ReadU16Bytes reads a field behind an exclusive u16 length prefix
func ReadU16Bytes(s *cryptobyte.String, out *[]byte) bool {
	var n uint16
	if !s.ReadUint16(&n) {
		return false
	}
	return s.ReadBytes(out, int(n))
}

// ReadU32Bytes reads a field behind an exclusive u32 length prefix
func ReadU32Bytes(s *cryptobyte.String, out *[]byte) bool {
	var n uint32
	if !s.ReadUint32(&n) || uint64(n) > uint64(len(*s)) {
		return false
	}
	return s.ReadBytes(out, int(n))
}

// ReadInt32 reads a signed big-endian int32
func ReadInt32(s *cryptobyte.String, out *int32) bool {
	var v uint32
	if !s.ReadUint32(&v) {
		return false
	}
	*out = int32(v)
	return true
}

// TLVMap maps a tag to its value. A repeated tag keeps the last value.
type TLVMap map[uint16][]byte

// Has reports whether tag is present
func (m TLVMap) Has(tag uint16) bool {
	_, ok := m[tag]
	return ok
}

// ReadTLVMap decodes a sequence of TLVs. tagSize is 1, 2 or 4 bytes, the
// value length is always a u16.
func ReadTLVMap(data []byte, tagSize int) (TLVMap, error) {
	s := cryptobyte.String(data)
	m := make(TLVMap)
	for !s.Empty() {
		var tag uint16
		switch tagSize {
		case 1:
			var t uint8
			if !s.ReadUint8(&t) {
				return nil, ErrTruncated
			}
			tag = uint16(t)
		case 2:
			if !s.ReadUint16(&tag) {
				return nil, ErrTruncated
			}
		case 4:
			var t uint32
			if !s.ReadUint32(&t) {
				return nil, ErrTruncated
			}
			tag = uint16(t)
		default:
			return nil, fmt.Errorf("unsupported tag size %d: %w", tagSize, ErrBadLength)
		}

		// 0xFF terminates a list early
		if tag == 0xFF {
			break
		}

		var value []byte
		if !ReadU16Bytes(&s, &value) {
			return nil, fmt.Errorf("tlv 0x%x: %w", tag, ErrTruncated)
		}
		m[tag] = value
	}
	return m, nil
}
