// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package resp decodes the line-based request/response protocol used for
// the replication handshake and for the post-snapshot command stream.
package resp

import (
	"bufio"
	"fmt"
	"strconv"
)

const (
	typeString byte = '+'
	typeError  byte = '-'
	typeInt    byte = ':'
	typeBulk   byte = '$'
	typeArray  byte = '*'
)

// Error reports a server-side error reply (a "-" line).
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// BulkReader is invoked instead of the ordinary bulk-bytes path when a
// caller needs to take over the transport mid-reply — the snapshot decoder
// uses this seam to consume the full-resync payload itself instead of
// having it buffered into a byte slice.
type BulkReader func(r ByteReader, length int64) ([]byte, error)

// ByteReader is the minimal read surface resp needs from the transport.
// It is satisfied by *transport.Transport.
type ByteReader interface {
	ReadByte() (byte, error)
	ReadExact(buf []byte) error
}

// Decode reads one reply from r. The default bulk handler copies the
// declared length verbatim; pass a non-nil bulk to reroute bulk-bytes
// handling (used once, for the snapshot payload).
//
// Arrays are flattened: nested array elements are appended directly into
// the parent's flat sequence rather than preserved as a nested structure,
// since the protocol here never nests meaningfully.
func Decode(r ByteReader, bulk BulkReader) ([][]byte, error) {
	if bulk == nil {
		bulk = readBulkBytes
	}
	return decode(r, bulk)
}

func decode(r ByteReader, bulk BulkReader) ([][]byte, error) {
	// A bare LF between replies is tolerated here — the two-phase
	// handshake occasionally leaves one on the wire after an array's
	// element count, ahead of the next reply's type byte.
	var b byte
	var err error
	for {
		b, err = r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != '\n' {
			break
		}
	}

	switch b {
	case typeString:
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		return [][]byte{line}, nil

	case typeError:
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		return nil, &Error{Message: string(line)}

	case typeInt:
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		return [][]byte{line}, nil

	case typeBulk:
		length, err := readLength(r)
		if err != nil {
			return nil, err
		}
		if length < 0 {
			return [][]byte{nil}, nil
		}
		payload, err := bulk(r, length)
		if err != nil {
			return nil, err
		}
		return [][]byte{payload}, nil

	case typeArray:
		count, err := readLength(r)
		if err != nil {
			return nil, err
		}
		if count <= 0 {
			return nil, nil
		}
		flat := make([][]byte, 0, count)
		for i := int64(0); i < count; i++ {
			elems, err := decode(r, readBulkBytes)
			if err != nil {
				return nil, err
			}
			if elems == nil {
				return nil, fmt.Errorf("resp: expected a value, got empty response")
			}
			flat = append(flat, elems...)
		}
		return flat, nil

	default:
		return nil, fmt.Errorf("resp: unexpected type byte 0x%02x", b)
	}
}

// readBulkBytes is the ordinary handler for "$<len>\r\n<len bytes>\r\n".
func readBulkBytes(r ByteReader, length int64) ([]byte, error) {
	buf := make([]byte, length)
	if err := r.ReadExact(buf); err != nil {
		return nil, err
	}
	if err := expectCRLF(r); err != nil {
		return nil, err
	}
	return buf, nil
}

// readLine reads bytes up to (and consuming) CRLF, returning everything
// before the CR. A CR not followed by LF is an error; bare LFs ahead of a
// reply's type byte are skipped by decode, not here.
func readLine(r ByteReader) ([]byte, error) {
	var line []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == '\r' {
			break
		}
		line = append(line, b)
	}
	lf, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if lf != '\n' {
		return nil, fmt.Errorf("resp: expected LF after CR, got 0x%02x", lf)
	}
	return line, nil
}

func expectCRLF(r ByteReader) error {
	var end [2]byte
	if err := r.ReadExact(end[:]); err != nil {
		return err
	}
	if end[0] != '\r' || end[1] != '\n' {
		return fmt.Errorf("resp: expected CRLF terminator, got %v", end)
	}
	return nil
}

// readLength reads an ASCII-decimal integer terminated by CRLF.
func readLength(r ByteReader) (int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}

	var digits []byte
	for b != '\r' {
		digits = append(digits, b)
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
	}
	lf, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if lf != '\n' {
		return 0, fmt.Errorf("resp: expected LF after CR, got 0x%02x", lf)
	}

	n, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("resp: malformed length %q: %w", digits, err)
	}
	return n, nil
}

// WriteCommand writes a command as a RESP array of bulk strings, e.g.
// "*2\r\n$6\r\nSELECT\r\n$1\r\n0\r\n".
func WriteCommand(w *bufio.Writer, args ...[]byte) error {
	if _, err := fmt.Fprintf(w, "*%d\r\n", len(args)); err != nil {
		return err
	}
	for _, arg := range args {
		if _, err := fmt.Fprintf(w, "$%d\r\n", len(arg)); err != nil {
			return err
		}
		if _, err := w.Write(arg); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return err
		}
	}
	return w.Flush()
}
