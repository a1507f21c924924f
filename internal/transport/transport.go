// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package transport provides a buffered, byte-counting reader over a TCP
// connection to a replication primary. The same Transport is shared by the
// wire-protocol decoder and the snapshot decoder — control passes between
// them sequentially, never concurrently.
package transport

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
)

// ErrNotMarked is returned by Unmark when the transport was not marked.
var ErrNotMarked = errors.New("transport: unmark called while not marked")

// Transport is a buffered byte source with an opt-in byte counter. While
// marked, every byte delivered to a caller is tallied; Unmark returns the
// tally and resets it. Entering marked state always starts the counter
// at zero.
type Transport struct {
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	marked bool
	count  int64
}

// New wraps conn in a Transport with a default-sized read buffer.
func New(conn net.Conn) *Transport {
	return NewWithReader(conn, conn)
}

// NewWithReader wraps conn in a Transport that reads through r instead of
// reading from conn directly — the seam that lets a caller interpose a
// rate-limited or otherwise wrapped reader (see ThrottledReader) while
// still writing to, and closing, the real connection.
func NewWithReader(conn net.Conn, r io.Reader) *Transport {
	return &Transport{
		conn: conn,
		r:    bufio.NewReaderSize(r, 64*1024),
		w:    bufio.NewWriterSize(conn, 16*1024),
	}
}

// Conn returns the underlying network connection.
func (t *Transport) Conn() net.Conn { return t.conn }

// Writer exposes the buffered writer for sending commands.
func (t *Transport) Writer() *bufio.Writer { return t.w }

// Close closes the underlying connection.
func (t *Transport) Close() error { return t.conn.Close() }

// Mark begins counting bytes read from this point. Counting restarts at
// zero even if a previous mark/unmark cycle already ran.
func (t *Transport) Mark() {
	t.marked = true
	t.count = 0
}

// Unmark stops counting and returns the number of bytes delivered since
// Mark. Calling Unmark while unmarked is a usage error.
func (t *Transport) Unmark() (int64, error) {
	if !t.marked {
		return 0, ErrNotMarked
	}
	n := t.count
	t.marked = false
	t.count = 0
	return n, nil
}

// ReadByte reads a single unsigned byte.
func (t *Transport) ReadByte() (byte, error) {
	b, err := t.r.ReadByte()
	if err != nil {
		return 0, err
	}
	t.tally(1)
	return b, nil
}

// ReadInt8 reads a single signed byte.
func (t *Transport) ReadInt8() (int8, error) {
	b, err := t.ReadByte()
	return int8(b), err
}

// ReadExact reads exactly len(buf) bytes into buf.
func (t *Transport) ReadExact(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	n, err := io.ReadFull(t.r, buf)
	t.tally(int64(n))
	return err
}

// ReadUint64 reads an 8-byte unsigned integer in the given byte order.
func (t *Transport) ReadUint64(order binary.ByteOrder) (uint64, error) {
	var buf [8]byte
	if err := t.ReadExact(buf[:]); err != nil {
		return 0, err
	}
	return order.Uint64(buf[:]), nil
}

// ReadUint32 reads a 4-byte unsigned integer in the given byte order.
func (t *Transport) ReadUint32(order binary.ByteOrder) (uint32, error) {
	var buf [4]byte
	if err := t.ReadExact(buf[:]); err != nil {
		return 0, err
	}
	return order.Uint32(buf[:]), nil
}

func (t *Transport) tally(n int64) {
	if t.marked {
		t.count += n
	}
}
