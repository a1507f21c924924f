// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package lzf decompresses the LZF-variant back-reference stream used by
// the snapshot format for compressed string encodings.
package lzf

import "fmt"

// Decompress expands in (a declared in_len-byte run) into out, which must
// already be sized to the declared original length. It writes exactly
// len(out) bytes on success.
//
// The control byte grammar: a control byte c < 32 introduces a literal run
// of c+1 raw bytes. Otherwise it introduces a back-reference: the length is
// c>>5, bumped by a following length byte when that nibble equals 7, and the
// offset is (((c&0x1F)<<8) | next_byte) + 1, read backwards from the current
// output position. The copy is length+2 bytes long and proceeds byte by
// byte — source and destination ranges may overlap, and the overlap is
// exploited deliberately to run-length-expand short back-references.
func Decompress(in []byte, out []byte) error {
	var iidx, oidx int

	for iidx < len(in) {
		ctrl := int(in[iidx])
		iidx++

		if ctrl < 32 {
			length := ctrl + 1
			if iidx+length > len(in) {
				return fmt.Errorf("lzf: literal run of %d bytes exceeds input", length)
			}
			if oidx+length > len(out) {
				return fmt.Errorf("lzf: literal run overruns output buffer (have %d, need %d)", len(out)-oidx, length)
			}
			copy(out[oidx:oidx+length], in[iidx:iidx+length])
			oidx += length
			iidx += length
			continue
		}

		length := ctrl >> 5
		if length == 7 {
			if iidx >= len(in) {
				return fmt.Errorf("lzf: truncated extended length byte")
			}
			length += int(in[iidx])
			iidx++
		}
		if iidx >= len(in) {
			return fmt.Errorf("lzf: truncated back-reference offset byte")
		}
		offset := ((ctrl & 0x1F) << 8) | int(in[iidx])
		iidx++
		offset++

		reference := oidx - offset
		if reference < 0 {
			return fmt.Errorf("lzf: back-reference points before start of output (offset %d at position %d)", offset, oidx)
		}

		copyLen := length + 2
		if oidx+copyLen > len(out) {
			return fmt.Errorf("lzf: back-reference copy overruns output buffer (have %d, need %d)", len(out)-oidx, copyLen)
		}

		// Byte-by-byte: overlapping ranges are intentional (they produce
		// the run-length expansion short back-references rely on), so a
		// bulk copy that assumes disjoint ranges would be wrong here.
		for i := 0; i < copyLen; i++ {
			out[oidx] = out[reference]
			oidx++
			reference++
		}
	}

	if oidx != len(out) {
		return fmt.Errorf("lzf: decompressed %d bytes, expected %d", oidx, len(out))
	}
	return nil
}
