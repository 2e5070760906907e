package consensus

import (
	"encoding/binary"
	"fmt"
)

// CompactSize is a Bitcoin-style variable-length unsigned integer encoding:
// values below 0xfd encode as a single byte; larger values are prefixed by
// 0xfd/0xfe/0xff followed by a fixed-width little-endian integer. Encoders
// must always choose the shortest valid form; decoders reject non-minimal
// encodings so wire bytes have a single canonical form.
const (
	compactSize16Prefix = 0xfd
	compactSize32Prefix = 0xfe
	compactSize64Prefix = 0xff
)

// EncodeCompactSize appends the compact-size encoding of v to dst and
// returns the extended slice.
func EncodeCompactSize(dst []byte, v uint64) []byte {
	switch {
	case v < compactSize16Prefix:
		return append(dst, byte(v))
	case v <= 0xffff:
		dst = append(dst, compactSize16Prefix)
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(v))
		return append(dst, buf[:]...)
	case v <= 0xffffffff:
		dst = append(dst, compactSize32Prefix)
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(v))
		return append(dst, buf[:]...)
	default:
		dst = append(dst, compactSize64Prefix)
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], v)
		return append(dst, buf[:]...)
	}
}

// DecodeCompactSize reads a compact-size integer from src, returning the
// value and the number of bytes consumed. It rejects encodings that are not
// minimal for the decoded value.
func DecodeCompactSize(src []byte) (uint64, int, error) {
	if len(src) < 1 {
		return 0, 0, fmt.Errorf("consensus: compactsize: empty input")
	}
	switch prefix := src[0]; {
	case prefix < compactSize16Prefix:
		return uint64(prefix), 1, nil
	case prefix == compactSize16Prefix:
		if len(src) < 3 {
			return 0, 0, fmt.Errorf("consensus: compactsize: truncated u16 form")
		}
		v := binary.LittleEndian.Uint16(src[1:3])
		if v < compactSize16Prefix {
			return 0, 0, fmt.Errorf("consensus: compactsize: non-minimal u16 encoding")
		}
		return uint64(v), 3, nil
	case prefix == compactSize32Prefix:
		if len(src) < 5 {
			return 0, 0, fmt.Errorf("consensus: compactsize: truncated u32 form")
		}
		v := binary.LittleEndian.Uint32(src[1:5])
		if v <= 0xffff {
			return 0, 0, fmt.Errorf("consensus: compactsize: non-minimal u32 encoding")
		}
		return uint64(v), 5, nil
	default: // compactSize64Prefix
		if len(src) < 9 {
			return 0, 0, fmt.Errorf("consensus: compactsize: truncated u64 form")
		}
		v := binary.LittleEndian.Uint64(src[1:9])
		if v <= 0xffffffff {
			return 0, 0, fmt.Errorf("consensus: compactsize: non-minimal u64 encoding")
		}
		return v, 9, nil
	}
}
