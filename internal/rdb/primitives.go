// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rdb

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/maplestoria/redisync/internal/lzf"
)

// byteSource is the minimal read surface the primitive decoders need. Both
// *transport.Transport (the wire) and *cursor (an already-buffered packed
// encoding) satisfy it, so readLength/readString/readDouble work unchanged
// against either.
type byteSource interface {
	ReadByte() (byte, error)
	ReadExact(buf []byte) error
}

// readLength decodes the variable-length integer that prefixes strings,
// container counts and selectdb/resizedb values. When the top two bits are
// 11, the remaining six bits are a string-encoding selector rather than a
// length, and encoded is reported true.
func readLength(src byteSource) (length int64, encoded bool, err error) {
	b, err := src.ReadByte()
	if err != nil {
		return 0, false, err
	}

	switch b >> 6 {
	case 0:
		return int64(b & 0x3F), false, nil
	case 1:
		b2, err := src.ReadByte()
		if err != nil {
			return 0, false, err
		}
		return int64(b&0x3F)<<8 | int64(b2), false, nil
	case 3:
		return int64(b & 0x3F), true, nil
	default: // 2: either a 32-bit or 64-bit length, tagged by the exact byte
		switch b {
		case 0x80:
			var buf [4]byte
			if err := src.ReadExact(buf[:]); err != nil {
				return 0, false, err
			}
			return int64(binary.BigEndian.Uint32(buf[:])), false, nil
		case 0x81:
			var buf [8]byte
			if err := src.ReadExact(buf[:]); err != nil {
				return 0, false, err
			}
			return int64(binary.BigEndian.Uint64(buf[:])), false, nil
		default:
			return 0, false, corruptf("length prefix", "invalid length-prefix byte 0x%02x", b)
		}
	}
}

// readString decodes a length-prefixed string, including the three
// integer-as-string selectors and the LZF-compressed selector.
func readString(src byteSource) ([]byte, error) {
	length, encoded, err := readLength(src)
	if err != nil {
		return nil, err
	}
	if !encoded {
		buf := make([]byte, length)
		if err := src.ReadExact(buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	switch length {
	case 0: // 8-bit signed int
		b, err := src.ReadByte()
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(int8(b)), 10)), nil
	case 1: // 16-bit signed int, little-endian
		var buf [2]byte
		if err := src.ReadExact(buf[:]); err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(int16(binary.LittleEndian.Uint16(buf[:]))), 10)), nil
	case 2: // 32-bit signed int, little-endian
		var buf [4]byte
		if err := src.ReadExact(buf[:]); err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(buf[:]))), 10)), nil
	case 3: // LZF-compressed
		compLen, _, err := readLength(src)
		if err != nil {
			return nil, err
		}
		origLen, _, err := readLength(src)
		if err != nil {
			return nil, err
		}
		compressed := make([]byte, compLen)
		if err := src.ReadExact(compressed); err != nil {
			return nil, err
		}
		out := make([]byte, origLen)
		if err := lzf.Decompress(compressed, out); err != nil {
			return nil, corruptf("lzf string", "%w", err)
		}
		return out, nil
	default:
		return nil, corruptf("string selector", "unknown string-encoding selector %d", length)
	}
}

// readDouble decodes the legacy ASCII-text double format used by the
// version-1 sorted-set encoding: a length byte, three sentinel values for
// the non-finite cases, else that many ASCII digits.
func readDouble(src byteSource) (float64, error) {
	b, err := src.ReadByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case 255:
		return math.Inf(-1), nil
	case 254:
		return math.Inf(1), nil
	case 253:
		return math.NaN(), nil
	}

	buf := make([]byte, b)
	if err := src.ReadExact(buf); err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(string(buf), 64)
	if err != nil {
		return 0, corruptf("legacy double", "%w", err)
	}
	return v, nil
}
