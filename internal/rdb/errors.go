// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rdb

import "fmt"

// CorruptionError reports a snapshot byte sequence that does not match any
// encoding this decoder knows how to parse: a bad length prefix, a string
// selector out of range, a ziplist header that claims more bytes than the
// entry carries.
type CorruptionError struct {
	Context string
	Err     error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("rdb: corrupt snapshot (%s): %v", e.Context, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

func corruptf(context, format string, args ...any) error {
	return &CorruptionError{Context: context, Err: fmt.Errorf(format, args...)}
}

// UnsupportedError reports a value type or opcode this decoder deliberately
// does not implement: modules, module-2, or stream-listpacks. The caller
// should treat this as a clean, expected failure mode rather than data
// corruption.
type UnsupportedError struct {
	Feature string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("rdb: unsupported encoding: %s", e.Feature)
}
