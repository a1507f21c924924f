// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package redisync is a replication client for a Redis-compatible
// in-memory store: it speaks the replication handshake, decodes the
// primary's full-database snapshot, and decodes the inline command stream
// that follows, surfacing both to caller-supplied handlers.
package redisync

import "github.com/maplestoria/redisync/internal/rdb"

// Object is a decoded snapshot entry: the BOR/EOR sentinels, or one key's
// string/list/set/sorted-set/hash value (possibly split across several
// callbacks for a large container — see Object.Elements/Items/Fields).
type Object = rdb.Object

// ObjectKind tags the variant carried by an Object.
type ObjectKind = rdb.Kind

// Sentinel and value kinds an Object may carry.
const (
	BOR       = rdb.BOR
	EOR       = rdb.EOR
	String    = rdb.String
	List      = rdb.List
	Set       = rdb.Set
	SortedSet = rdb.SortedSet
	Hash      = rdb.Hash
)

// ExpireKind tags whether, and in what unit, an Object's Meta carries an
// expiry.
type ExpireKind = rdb.ExpireKind

const (
	ExpireNone         = rdb.ExpireNone
	ExpireSeconds      = rdb.ExpireSeconds
	ExpireMilliseconds = rdb.ExpireMilliseconds
)

// Meta is the per-key metadata record: selected database and, when
// declared by the preceding opcode, the key's expiry.
type Meta = rdb.Meta

// Item is one sorted-set member/score pair.
type Item = rdb.Item

// Field is one hash name/value pair.
type Field = rdb.Field

// SnapshotHandler receives decoded snapshot objects in stream order,
// including the BOR/EOR sentinels. Implementations must not retain any
// byte-slice field past the call — they borrow from buffers owned by the
// decoder.
type SnapshotHandler interface {
	OnObject(obj *Object)
}

// CommandHandler receives each command array decoded from the post-
// snapshot stream, in wire order. args is the flattened sequence of
// byte-strings the wire-protocol decoder produced; args[0] is the command
// name. Implementations must not retain args past the call.
type CommandHandler interface {
	OnCommand(args [][]byte)
}

// snapshotFanOut dispatches one object to every registered SnapshotHandler,
// in registration order, implementing rdb.Handler.
type snapshotFanOut struct {
	handlers []SnapshotHandler
}

func (f *snapshotFanOut) OnObject(obj *Object) {
	for _, h := range f.handlers {
		h.OnObject(obj)
	}
}
