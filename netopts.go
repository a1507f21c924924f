// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package redisync

import (
	"net"

	"github.com/maplestoria/redisync/internal/transport"
)

func applyLowLatency(conn net.Conn) error {
	return transport.ApplyLowLatency(conn)
}

func applyDSCP(conn net.Conn, name string) error {
	value, err := transport.ParseDSCP(name)
	if err != nil {
		return err
	}
	return transport.ApplyDSCP(conn, value)
}
