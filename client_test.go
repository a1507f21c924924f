// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package redisync

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strconv"
	"testing"

	"github.com/maplestoria/redisync/internal/config"
	"github.com/maplestoria/redisync/internal/transport"
)

type recordingSnapshotHandler struct {
	objects []*Object
}

func (h *recordingSnapshotHandler) OnObject(obj *Object) {
	cp := *obj
	h.objects = append(h.objects, &cp)
}

type recordingCommandHandler struct {
	commands [][][]byte
}

func (h *recordingCommandHandler) OnCommand(args [][]byte) {
	cp := make([][]byte, len(args))
	copy(cp, args)
	h.commands = append(h.commands, cp)
}

// minimalSnapshot builds a full-resync payload containing a single
// select-db opcode and the EOF marker with a zeroed checksum.
func minimalSnapshot() []byte {
	data := []byte("REDIS0011")
	data = append(data, 0xFE, 0x00) // selectdb 0
	data = append(data, 0xFF)       // EOF
	data = append(data, make([]byte, 8)...)
	return data
}

// fixedLengthArray builds a one-element RESP array whose total encoded
// byte length is exactly n, by solving for the bulk payload length that
// makes the frame "*1\r\n$<len>\r\n<payload>\r\n" come out to n bytes.
func fixedLengthArray(t *testing.T, n int) []byte {
	t.Helper()
	for padLen := 0; padLen < n; padLen++ {
		var buf bytes.Buffer
		buf.WriteString("*1\r\n$")
		buf.WriteString(strconv.Itoa(padLen))
		buf.WriteString("\r\n")
		buf.Write(bytes.Repeat([]byte{'x'}, padLen))
		buf.WriteString("\r\n")
		if buf.Len() == n {
			return buf.Bytes()
		}
	}
	t.Fatalf("could not construct a %d-byte array frame", n)
	return nil
}

// readArray drains one RESP array frame the client wrote, without
// interpreting its contents — used by the fake-primary goroutine to
// consume the handshake's outbound commands.
func readArray(t *testing.T, r *bufio.Reader) {
	t.Helper()
	header, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("reading array header: %v", err)
	}
	count, err := strconv.Atoi(header[1 : len(header)-2])
	if err != nil {
		t.Fatalf("parsing array count %q: %v", header, err)
	}
	for i := 0; i < count; i++ {
		lenLine, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading bulk length: %v", err)
		}
		n, err := strconv.Atoi(lenLine[1 : len(lenLine)-2])
		if err != nil {
			t.Fatalf("parsing bulk length %q: %v", lenLine, err)
		}
		buf := make([]byte, n+2) // payload + trailing CRLF
		if _, err := io.ReadFull(r, buf); err != nil {
			t.Fatalf("reading bulk payload: %v", err)
		}
	}
}

func TestClient_HandshakeAndOffsetAccounting(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	cfg := &config.Config{}
	cfg.Replication.ReplID = "?"
	cfg.Replication.ReplOffset = -1
	cfg.Stats.Schedule = "@every 1h"

	c := New(cfg, nil)
	c.tr = transport.New(clientConn)

	snap := &recordingSnapshotHandler{}
	cmds := &recordingCommandHandler{}
	c.AddSnapshotHandler(snap)
	c.AddCommandHandler(cmds)

	go c.heartbeatLoop()
	defer c.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		r := bufio.NewReader(serverConn)

		readArray(t, r) // REPLCONF listening-port <port>
		serverConn.Write([]byte("+OK\r\n"))

		readArray(t, r) // PSYNC ? -1
		serverConn.Write([]byte("+FULLRESYNC abcd1234 0\r\n"))

		snapshot := minimalSnapshot()
		serverConn.Write([]byte("$" + strconv.Itoa(len(snapshot)) + "\r\n"))
		serverConn.Write(snapshot)

		for _, n := range []int{30, 42, 18} {
			serverConn.Write(fixedLengthArray(t, n))
		}
	}()

	if err := c.authenticate(); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := c.announcePort(); err != nil {
		t.Fatalf("announcePort: %v", err)
	}
	if err := c.sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if c.ReplicationID() != "abcd1234" {
		t.Errorf("repl id = %q, want abcd1234", c.ReplicationID())
	}

	var sawEOR bool
	for _, o := range snap.objects {
		if o.Kind == EOR {
			sawEOR = true
		}
	}
	if !sawEOR {
		t.Fatal("snapshot handler never saw an EOR sentinel")
	}

	wantOffsets := []int64{30, 72, 90}
	for i, want := range wantOffsets {
		_, n, err := c.readOneCommand()
		if err != nil {
			t.Fatalf("command %d: %v", i, err)
		}
		got := c.Offset() + n
		c.replOffset = got
		if got != want {
			t.Errorf("after command %d: offset = %d, want %d", i, got, want)
		}
	}

	<-serverDone
}
