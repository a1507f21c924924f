// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rdb

import (
	"encoding/binary"
	"strconv"
)

// drain pulls values from next until it reports no more are available,
// handing the handler successive slices capped at batchSize elements. A
// trailing partial batch is delivered; an exactly-full final batch is not
// followed by an empty one.
func drain[T any](next func() (T, bool, error), emit func([]T) error) error {
	batch := make([]T, 0, batchSize)
	for {
		v, ok, err := next()
		if err != nil {
			return err
		}
		if !ok {
			if len(batch) > 0 {
				return emit(batch)
			}
			return nil
		}
		batch = append(batch, v)
		if len(batch) == batchSize {
			if err := emit(batch); err != nil {
				return err
			}
			batch = make([]T, 0, batchSize)
		}
	}
}

// elementIter returns a next func over a fixed count of plain strings, used
// by the unpacked list and set encodings.
func elementIter(src byteSource, count int64) func() ([]byte, bool, error) {
	remaining := count
	return func() ([]byte, bool, error) {
		if remaining == 0 {
			return nil, false, nil
		}
		remaining--
		v, err := readString(src)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}
}

// hashFieldIter returns a next func over a fixed count of name/value string
// pairs, used by the unpacked hash encoding.
func hashFieldIter(src byteSource, count int64) func() (Field, bool, error) {
	remaining := count
	return func() (Field, bool, error) {
		if remaining == 0 {
			return Field{}, false, nil
		}
		remaining--
		name, err := readString(src)
		if err != nil {
			return Field{}, false, err
		}
		value, err := readString(src)
		if err != nil {
			return Field{}, false, err
		}
		return Field{Name: name, Value: value}, true, nil
	}
}

// sortedSetIter returns a next func over a fixed count of member/score
// pairs. v2 reproduces the upstream score defect faithfully: the encoder
// writes an IEEE-754 double, but this decoder reinterprets the same eight
// bytes as a little-endian signed integer instead of the double's bit
// pattern, reproducing the upstream decoder this package was ported from
// byte for byte rather than the primary's on-wire format.
func sortedSetIter(src byteSource, count int64, v2 bool) func() (Item, bool, error) {
	remaining := count
	return func() (Item, bool, error) {
		if remaining == 0 {
			return Item{}, false, nil
		}
		remaining--
		member, err := readString(src)
		if err != nil {
			return Item{}, false, err
		}
		var score float64
		if v2 {
			score, err = readBuggyV2Score(src)
		} else {
			score, err = readDouble(src)
		}
		if err != nil {
			return Item{}, false, err
		}
		return Item{Member: member, Score: score}, true, nil
	}
}

func readBuggyV2Score(src byteSource) (float64, error) {
	var buf [8]byte
	if err := src.ReadExact(buf[:]); err != nil {
		return 0, err
	}
	return float64(int64(binary.LittleEndian.Uint64(buf[:]))), nil
}

// sliceBatches splits an already-fully-decoded packed container (ziplist,
// zipmap, intset all arrive as one contiguous payload, not an incremental
// stream) into the same batchSize chunks an unpacked container would
// produce, so the handler sees uniform batching regardless of encoding.
func sliceBatches[T any](all []T, emit func([]T) error) error {
	for i := 0; i < len(all); i += batchSize {
		end := i + batchSize
		if end > len(all) {
			end = len(all)
		}
		if err := emit(all[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// pairToFields and pairToItems group a flat sequence of raw ziplist entries
// into Field or Item pairs before batching — used when a hash or sorted set arrives
// packed, where name and value (or member and score) are adjacent flat
// entries rather than separate iterator outputs.
func pairToFields(flat [][]byte) ([]Field, error) {
	if len(flat)%2 != 0 {
		return nil, corruptf("packed hash", "odd number of entries (%d)", len(flat))
	}
	fields := make([]Field, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		fields = append(fields, Field{Name: flat[i], Value: flat[i+1]})
	}
	return fields, nil
}

func pairToItems(flat [][]byte) ([]Item, error) {
	if len(flat)%2 != 0 {
		return nil, corruptf("packed sorted set", "odd number of entries (%d)", len(flat))
	}
	items := make([]Item, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		score, err := parseZiplistScore(flat[i+1])
		if err != nil {
			return nil, err
		}
		items = append(items, Item{Member: flat[i], Score: score})
	}
	return items, nil
}

// parseZiplistScore converts a packed zset's score entry — always rendered
// as an ASCII string by ziplistEntries, whether it started as a ziplist
// integer or a literal string — back into a float64.
func parseZiplistScore(raw []byte) (float64, error) {
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, corruptf("packed sorted set score", "%w", err)
	}
	return v, nil
}
