// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rdb

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/maplestoria/redisync/internal/transport"
)

// Opcodes that precede a key/value pair, or stand alone between pairs.
const (
	opAux       = 0xFA
	opResizeDB  = 0xFB
	opExpireMS  = 0xFC
	opExpireSec = 0xFD
	opSelectDB  = 0xFE
	opEOF       = 0xFF
	opIdle      = 0xF8
	opFreq      = 0xF9
	opModuleAux = 0xF7
)

// Value-type tags, read as the byte following any expire/freq/idle
// prefixes.
const (
	valString          = 0
	valList            = 1
	valSet             = 2
	valZSet            = 3
	valHash            = 4
	valZSet2           = 5
	valModule          = 6
	valModule2         = 7
	valHashZipmap      = 9
	valListZiplist     = 10
	valSetIntset       = 11
	valZSetZiplist     = 12
	valHashZiplist     = 13
	valListQuicklist   = 14
	valStreamListpacks = 15
)

// Decode reads a complete snapshot off tr, emitting one BOR object, the
// decoded keys in stream order, and one EOR object. It returns as soon as
// the primary's stream has been fully consumed through the EOF opcode and
// its trailing checksum; decode errors are returned immediately and leave
// tr positioned wherever the failure occurred (the caller should treat the
// connection as unusable past that point).
func Decode(tr *transport.Transport, handler Handler) error {
	var magic [9]byte
	if err := tr.ReadExact(magic[:]); err != nil {
		return fmt.Errorf("rdb: reading magic: %w", err)
	}
	if string(magic[0:5]) != "REDIS" {
		return corruptf("magic", "stream does not start with REDIS, got %q", magic[0:5])
	}
	if _, err := strconv.Atoi(string(magic[5:9])); err != nil {
		return corruptf("version", "non-numeric version field %q", magic[5:9])
	}

	handler.OnObject(&Object{Kind: BOR})

	db := uint64(0)
	for {
		b, err := tr.ReadByte()
		if err != nil {
			return fmt.Errorf("rdb: reading opcode: %w", err)
		}

		switch b {
		case opEOF:
			var checksum [8]byte
			if err := tr.ReadExact(checksum[:]); err != nil {
				return fmt.Errorf("rdb: reading eof checksum: %w", err)
			}
			handler.OnObject(&Object{Kind: EOR})
			return nil

		case opSelectDB:
			idx, _, err := readLength(tr)
			if err != nil {
				return fmt.Errorf("rdb: reading selectdb index: %w", err)
			}
			db = uint64(idx)

		case opResizeDB:
			if _, _, err := readLength(tr); err != nil {
				return fmt.Errorf("rdb: reading resizedb hash-table size: %w", err)
			}
			if _, _, err := readLength(tr); err != nil {
				return fmt.Errorf("rdb: reading resizedb expires size: %w", err)
			}

		case opAux:
			if _, err := readString(tr); err != nil {
				return fmt.Errorf("rdb: reading aux field name: %w", err)
			}
			if _, err := readString(tr); err != nil {
				return fmt.Errorf("rdb: reading aux field value: %w", err)
			}

		case opModuleAux:
			return &UnsupportedError{Feature: "module-aux opcode"}

		default:
			valueType, expireKind, expireVal, err := readExpireAndHints(tr, b)
			if err != nil {
				return err
			}
			meta := &Meta{DB: db, ExpireKind: expireKind, ExpireValue: expireVal}
			if err := decodeObject(tr, valueType, meta, handler); err != nil {
				return err
			}
		}
	}
}

// readExpireAndHints consumes any run of expire/freq/idle opcodes leading
// up to a key, starting from its already-read first byte, and returns the
// value-type byte that terminates the run along with whatever expiry was
// declared.
func readExpireAndHints(tr *transport.Transport, first byte) (valueType byte, kind ExpireKind, value int64, err error) {
	b := first
	kind = ExpireNone

	for {
		switch b {
		case opExpireSec:
			sec, err := tr.ReadUint32(binary.LittleEndian)
			if err != nil {
				return 0, 0, 0, fmt.Errorf("rdb: reading expire-seconds: %w", err)
			}
			kind, value = ExpireSeconds, int64(sec)

		case opExpireMS:
			ms, err := tr.ReadUint64(binary.LittleEndian)
			if err != nil {
				return 0, 0, 0, fmt.Errorf("rdb: reading expire-milliseconds: %w", err)
			}
			kind, value = ExpireMilliseconds, int64(ms)

		case opFreq:
			if _, err := tr.ReadByte(); err != nil {
				return 0, 0, 0, fmt.Errorf("rdb: reading lfu frequency: %w", err)
			}

		case opIdle:
			if _, _, err := readLength(tr); err != nil {
				return 0, 0, 0, fmt.Errorf("rdb: reading lru idle time: %w", err)
			}

		default:
			return b, kind, value, nil
		}

		b, err = tr.ReadByte()
		if err != nil {
			return 0, 0, 0, fmt.Errorf("rdb: reading value type after prefix: %w", err)
		}
	}
}

func decodeObject(tr *transport.Transport, valueType byte, meta *Meta, handler Handler) error {
	key, err := readString(tr)
	if err != nil {
		return fmt.Errorf("rdb: reading key: %w", err)
	}

	switch valueType {
	case valString:
		val, err := readString(tr)
		if err != nil {
			return fmt.Errorf("rdb: reading string value: %w", err)
		}
		handler.OnObject(&Object{Kind: String, Meta: meta, Key: key, Value: val})
		return nil

	case valList, valSet:
		n, _, err := readLength(tr)
		if err != nil {
			return fmt.Errorf("rdb: reading container length: %w", err)
		}
		kind := List
		if valueType == valSet {
			kind = Set
		}
		return drain(elementIter(tr, n), func(batch [][]byte) error {
			handler.OnObject(&Object{Kind: kind, Meta: meta, Key: key, Elements: batch})
			return nil
		})

	case valHash:
		n, _, err := readLength(tr)
		if err != nil {
			return fmt.Errorf("rdb: reading hash length: %w", err)
		}
		return drain(hashFieldIter(tr, n), func(batch []Field) error {
			handler.OnObject(&Object{Kind: Hash, Meta: meta, Key: key, Fields: batch})
			return nil
		})

	case valZSet, valZSet2:
		n, _, err := readLength(tr)
		if err != nil {
			return fmt.Errorf("rdb: reading sorted set length: %w", err)
		}
		return drain(sortedSetIter(tr, n, valueType == valZSet2), func(batch []Item) error {
			handler.OnObject(&Object{Kind: SortedSet, Meta: meta, Key: key, Items: batch})
			return nil
		})

	case valHashZipmap:
		payload, err := readString(tr)
		if err != nil {
			return fmt.Errorf("rdb: reading zipmap payload: %w", err)
		}
		fields, err := zipmapEntries(payload)
		if err != nil {
			return err
		}
		return sliceBatches(fields, func(batch []Field) error {
			handler.OnObject(&Object{Kind: Hash, Meta: meta, Key: key, Fields: batch})
			return nil
		})

	case valListZiplist:
		payload, err := readString(tr)
		if err != nil {
			return fmt.Errorf("rdb: reading ziplist payload: %w", err)
		}
		elems, err := ziplistEntries(payload)
		if err != nil {
			return err
		}
		return sliceBatches(elems, func(batch [][]byte) error {
			handler.OnObject(&Object{Kind: List, Meta: meta, Key: key, Elements: batch})
			return nil
		})

	case valSetIntset:
		payload, err := readString(tr)
		if err != nil {
			return fmt.Errorf("rdb: reading intset payload: %w", err)
		}
		elems, err := intsetEntries(payload)
		if err != nil {
			return err
		}
		return sliceBatches(elems, func(batch [][]byte) error {
			handler.OnObject(&Object{Kind: Set, Meta: meta, Key: key, Elements: batch})
			return nil
		})

	case valZSetZiplist:
		payload, err := readString(tr)
		if err != nil {
			return fmt.Errorf("rdb: reading sorted-set ziplist payload: %w", err)
		}
		flat, err := ziplistEntries(payload)
		if err != nil {
			return err
		}
		items, err := pairToItems(flat)
		if err != nil {
			return err
		}
		return sliceBatches(items, func(batch []Item) error {
			handler.OnObject(&Object{Kind: SortedSet, Meta: meta, Key: key, Items: batch})
			return nil
		})

	case valHashZiplist:
		payload, err := readString(tr)
		if err != nil {
			return fmt.Errorf("rdb: reading hash ziplist payload: %w", err)
		}
		flat, err := ziplistEntries(payload)
		if err != nil {
			return err
		}
		fields, err := pairToFields(flat)
		if err != nil {
			return err
		}
		return sliceBatches(fields, func(batch []Field) error {
			handler.OnObject(&Object{Kind: Hash, Meta: meta, Key: key, Fields: batch})
			return nil
		})

	case valListQuicklist:
		n, _, err := readLength(tr)
		if err != nil {
			return fmt.Errorf("rdb: reading quicklist node count: %w", err)
		}
		elems, err := quicklistEntries(tr, n)
		if err != nil {
			return err
		}
		return sliceBatches(elems, func(batch [][]byte) error {
			handler.OnObject(&Object{Kind: List, Meta: meta, Key: key, Elements: batch})
			return nil
		})

	case valModule, valModule2:
		return &UnsupportedError{Feature: "module value type"}

	case valStreamListpacks:
		return &UnsupportedError{Feature: "stream-listpacks value type"}

	default:
		return corruptf("value type", "unrecognized value-type byte %d", valueType)
	}
}
