// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package rdb decodes the primary's binary snapshot format: a stream of
// opcodes carrying key metadata followed by one of nine value encodings,
// some of them packed bytewise inside an in-memory byte-string.
package rdb

// Kind tags the variant an Object carries.
type Kind int

const (
	// BOR marks the start of a snapshot.
	BOR Kind = iota
	// EOR marks the end of a snapshot.
	EOR
	String
	List
	Set
	SortedSet
	Hash
)

// ExpireKind tags whether, and in what unit, a key's metadata carries an
// expiry.
type ExpireKind int

const (
	ExpireNone ExpireKind = iota
	ExpireSeconds
	ExpireMilliseconds
)

// Meta carries the per-key metadata in effect when an object is decoded:
// the selected database index and, when the preceding opcode declared one,
// the key's expiry. It is passed by read-only reference to every emission
// and reverts to {db, ExpireNone, _} after each key.
type Meta struct {
	DB          uint64
	ExpireKind  ExpireKind
	ExpireValue int64
}

// Item is one member/score pair of a sorted set.
type Item struct {
	Member []byte
	Score  float64
}

// Field is one name/value pair of a hash.
type Field struct {
	Name  []byte
	Value []byte
}

// Object is the tagged variant emitted to a Handler. Only the fields
// relevant to Kind are populated; byte-string fields borrow from buffers
// owned by the decoder and must not be retained past the callback.
type Object struct {
	Kind Kind
	Meta *Meta

	Key   []byte
	Value []byte // String

	Elements [][]byte // List, Set (one batch, up to 64 elements)
	Items    []Item   // SortedSet (one batch)
	Fields   []Field  // Hash (one batch)
}

// Handler receives decoded objects in stream order, including the BOR/EOR
// sentinels bracketing the snapshot.
type Handler interface {
	OnObject(obj *Object)
}

// batchSize bounds how many elements accumulate before a container's
// partial contents are handed to the handler. It bounds peak memory for
// very large keys while keeping callback overhead low.
const batchSize = 64
