// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rdb

import "encoding/binary"

// zipmapEntries decodes a zipmap payload into name/value Field pairs. The
// leading size-hint byte is advisory only (Redis itself stops trusting it
// past 254 entries) so the decoder ignores it and walks to the 0xFF
// terminator instead.
func zipmapEntries(payload []byte) ([]Field, error) {
	c := newCursor(payload)
	if _, err := c.ReadByte(); err != nil { // size hint, unused
		return nil, corruptf("zipmap header", "%w", err)
	}

	var fields []Field
	for {
		b, err := c.ReadByte()
		if err != nil {
			return nil, corruptf("zipmap entry", "%w", err)
		}
		if b == 0xFF {
			return fields, nil
		}

		nameLen, err := zipmapLen(c, b)
		if err != nil {
			return nil, err
		}
		name := make([]byte, nameLen)
		if err := c.ReadExact(name); err != nil {
			return nil, corruptf("zipmap name", "%w", err)
		}

		vb, err := c.ReadByte()
		if err != nil {
			return nil, corruptf("zipmap value length", "%w", err)
		}
		valLen, err := zipmapLen(c, vb)
		if err != nil {
			return nil, err
		}
		free, err := c.ReadByte()
		if err != nil {
			return nil, corruptf("zipmap free byte", "%w", err)
		}
		value := make([]byte, valLen)
		if err := c.ReadExact(value); err != nil {
			return nil, corruptf("zipmap value", "%w", err)
		}
		if err := c.skip(int(free)); err != nil {
			return nil, corruptf("zipmap free padding", "%w", err)
		}

		fields = append(fields, Field{Name: name, Value: value})
	}
}

// zipmapLen decodes one zipmap length field given its already-read first
// byte: the byte itself if under 254, or four more big-endian bytes if the
// first byte is exactly 254.
func zipmapLen(c *cursor, first byte) (int, error) {
	if first < 254 {
		return int(first), nil
	}
	var buf [4]byte
	if err := c.ReadExact(buf[:]); err != nil {
		return 0, corruptf("zipmap extended length", "%w", err)
	}
	return int(binary.BigEndian.Uint32(buf[:])), nil
}
