// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rdb

import "testing"

func TestQuicklistEntries_FlattensNodes(t *testing.T) {
	node1 := buildZiplist(ziplistEntry(0x01, 'a'))
	node2 := buildZiplist(ziplistEntry(0x01, 'b'), append([]byte{0x02}, 0x01, 'c'))

	// Two nodes, each prefixed as a raw (unencoded) string.
	src := newCursor(append(
		append([]byte{byte(len(node1))}, node1...),
		append([]byte{byte(len(node2))}, node2...)...,
	))

	got, err := quicklistEntries(src, 2)
	if err != nil {
		t.Fatalf("quicklistEntries: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i, w := range want {
		if string(got[i]) != w {
			t.Errorf("entry %d = %q, want %q", i, got[i], w)
		}
	}
}
