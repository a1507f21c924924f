// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rdb

import (
	"encoding/binary"
	"strconv"
)

// ziplistHeader is the fixed 10-byte prefix: 4-byte total size, 4-byte
// offset to the last entry, 2-byte entry count. The decoder does not need
// any of these three values — it walks entries until it hits the 0xFF
// terminator — but they still have to be skipped off the front.
const ziplistHeaderSize = 10

// ziplistEntries decodes every entry of a ziplist payload (as produced by
// readString off the wire) into its flat byte-string representation,
// integers rendered as ASCII decimal.
func ziplistEntries(payload []byte) ([][]byte, error) {
	c := newCursor(payload)
	if err := c.skip(ziplistHeaderSize); err != nil {
		return nil, corruptf("ziplist header", "%w", err)
	}

	var out [][]byte
	for {
		b, err := c.ReadByte()
		if err != nil {
			return nil, corruptf("ziplist entry", "%w", err)
		}
		if b == 0xFF {
			return out, nil
		}

		if err := skipPrevLen(c, b); err != nil {
			return nil, err
		}

		val, err := readZiplistValue(c)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
}

// skipPrevLen consumes the prev-entry-length field given its already-read
// first byte: one byte if under 254, or four more little-endian bytes if
// the first byte is exactly 254.
func skipPrevLen(c *cursor, first byte) error {
	if first < 254 {
		return nil
	}
	return c.skip(4)
}

func readZiplistValue(c *cursor) ([]byte, error) {
	flag, err := c.ReadByte()
	if err != nil {
		return nil, corruptf("ziplist flag", "%w", err)
	}

	switch flag >> 6 {
	case 0: // 6-bit raw string length
		return readZiplistRaw(c, int(flag&0x3F))
	case 1: // 14-bit raw string length
		b2, err := c.ReadByte()
		if err != nil {
			return nil, corruptf("ziplist 14-bit length", "%w", err)
		}
		return readZiplistRaw(c, int(flag&0x3F)<<8|int(b2))
	case 2: // 32-bit big-endian raw string length
		var buf [4]byte
		if err := c.ReadExact(buf[:]); err != nil {
			return nil, corruptf("ziplist 32-bit length", "%w", err)
		}
		return readZiplistRaw(c, int(binary.BigEndian.Uint32(buf[:])))
	}

	switch flag {
	case 0xC0: // 16-bit little-endian int
		var buf [2]byte
		if err := c.ReadExact(buf[:]); err != nil {
			return nil, corruptf("ziplist int16", "%w", err)
		}
		return asciiInt(int64(int16(binary.LittleEndian.Uint16(buf[:])))), nil
	case 0xD0: // 32-bit little-endian int
		var buf [4]byte
		if err := c.ReadExact(buf[:]); err != nil {
			return nil, corruptf("ziplist int32", "%w", err)
		}
		return asciiInt(int64(int32(binary.LittleEndian.Uint32(buf[:])))), nil
	case 0xE0: // 64-bit little-endian int
		var buf [8]byte
		if err := c.ReadExact(buf[:]); err != nil {
			return nil, corruptf("ziplist int64", "%w", err)
		}
		return asciiInt(int64(binary.LittleEndian.Uint64(buf[:]))), nil
	case 0xF0: // 24-bit little-endian int, sign-extended
		var buf [3]byte
		if err := c.ReadExact(buf[:]); err != nil {
			return nil, corruptf("ziplist int24", "%w", err)
		}
		v := int32(buf[0]) | int32(buf[1])<<8 | int32(buf[2])<<16
		if v&0x800000 != 0 {
			v |= ^int32(0xFFFFFF) // sign-extend bit 23
		}
		return asciiInt(int64(v)), nil
	case 0xFE: // 8-bit int
		b, err := c.ReadByte()
		if err != nil {
			return nil, corruptf("ziplist int8", "%w", err)
		}
		return asciiInt(int64(int8(b))), nil
	}

	if flag >= 0xF1 && flag <= 0xFD {
		return asciiInt(int64(flag) - 0xF1), nil
	}

	return nil, corruptf("ziplist flag", "unrecognized entry flag 0x%02x", flag)
}

func readZiplistRaw(c *cursor, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := c.ReadExact(buf); err != nil {
		return nil, corruptf("ziplist string", "%w", err)
	}
	return buf, nil
}

func asciiInt(v int64) []byte {
	return []byte(strconv.FormatInt(v, 10))
}
