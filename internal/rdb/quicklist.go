// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rdb

// quicklistEntries decodes a quicklist-encoded list: a count of nodes, each
// node itself a ziplist string. The flattened element order across nodes
// is the list's element order.
func quicklistEntries(src byteSource, nodeCount int64) ([][]byte, error) {
	var out [][]byte
	for i := int64(0); i < nodeCount; i++ {
		node, err := readString(src)
		if err != nil {
			return nil, corruptf("quicklist node", "%w", err)
		}
		entries, err := ziplistEntries(node)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}
