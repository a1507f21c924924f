// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rdb

import "encoding/binary"

// intsetEntries decodes an intset payload: a 4-byte little-endian encoding
// width (2, 4 or 8 bytes per element), a 4-byte little-endian element
// count, then that many little-endian signed integers of the declared
// width, rendered as ASCII decimal.
func intsetEntries(payload []byte) ([][]byte, error) {
	c := newCursor(payload)

	var hdr [8]byte
	if err := c.ReadExact(hdr[:]); err != nil {
		return nil, corruptf("intset header", "%w", err)
	}
	width := binary.LittleEndian.Uint32(hdr[0:4])
	count := binary.LittleEndian.Uint32(hdr[4:8])

	switch width {
	case 2, 4, 8:
	default:
		return nil, corruptf("intset header", "invalid element width %d", width)
	}

	out := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		buf := make([]byte, width)
		if err := c.ReadExact(buf); err != nil {
			return nil, corruptf("intset element", "%w", err)
		}
		var v int64
		switch width {
		case 2:
			v = int64(int16(binary.LittleEndian.Uint16(buf)))
		case 4:
			v = int64(int32(binary.LittleEndian.Uint32(buf)))
		case 8:
			v = int64(binary.LittleEndian.Uint64(buf))
		}
		out = append(out, asciiInt(v))
	}
	return out, nil
}
