// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rdb

import (
	"net"
	"testing"

	"github.com/maplestoria/redisync/internal/transport"
)

func pipeTransport(t *testing.T, data []byte) *transport.Transport {
	t.Helper()
	client, server := net.Pipe()
	go func() {
		server.Write(data)
		server.Close()
	}()
	t.Cleanup(func() { client.Close() })
	return transport.New(client)
}

type collectingHandler struct {
	objects []*Object
}

func (h *collectingHandler) OnObject(obj *Object) {
	h.objects = append(h.objects, obj)
}

func TestDecode_EmptySnapshot(t *testing.T) {
	// magic + version, selectdb 0, then EOF + 8-byte checksum.
	data := []byte("REDIS0011")
	data = append(data, opSelectDB, 0x00)
	data = append(data, opEOF)
	data = append(data, make([]byte, 8)...)

	tr := pipeTransport(t, data)
	h := &collectingHandler{}
	if err := Decode(tr, h); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(h.objects) != 2 {
		t.Fatalf("got %d objects, want 2 (BOR, EOR)", len(h.objects))
	}
	if h.objects[0].Kind != BOR || h.objects[1].Kind != EOR {
		t.Errorf("got kinds %v, %v, want BOR, EOR", h.objects[0].Kind, h.objects[1].Kind)
	}
}

func TestDecode_RejectsBadMagic(t *testing.T) {
	tr := pipeTransport(t, []byte("NOTREDIS1"))
	h := &collectingHandler{}
	if err := Decode(tr, h); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestDecode_StringKey(t *testing.T) {
	data := []byte("REDIS0011")
	data = append(data, opSelectDB, 0x00)
	data = append(data, valString)
	data = append(data, 0x03, 'f', 'o', 'o') // key "foo"
	data = append(data, 0x03, 'b', 'a', 'r') // value "bar"
	data = append(data, opEOF)
	data = append(data, make([]byte, 8)...)

	tr := pipeTransport(t, data)
	h := &collectingHandler{}
	if err := Decode(tr, h); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	var found bool
	for _, o := range h.objects {
		if o.Kind == String {
			found = true
			if string(o.Key) != "foo" || string(o.Value) != "bar" {
				t.Errorf("got key=%q value=%q, want foo=bar", o.Key, o.Value)
			}
			if o.Meta.DB != 0 {
				t.Errorf("got db=%d, want 0", o.Meta.DB)
			}
		}
	}
	if !found {
		t.Fatal("no String object emitted")
	}
}

func TestDecode_ExpireSecondsPrefix(t *testing.T) {
	data := []byte("REDIS0011")
	data = append(data, opExpireSec, 0x64, 0x00, 0x00, 0x00) // 100 seconds, little-endian
	data = append(data, valString)
	data = append(data, 0x01, 'k')
	data = append(data, 0x01, 'v')
	data = append(data, opEOF)
	data = append(data, make([]byte, 8)...)

	tr := pipeTransport(t, data)
	h := &collectingHandler{}
	if err := Decode(tr, h); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	for _, o := range h.objects {
		if o.Kind == String {
			if o.Meta.ExpireKind != ExpireSeconds || o.Meta.ExpireValue != 100 {
				t.Errorf("got expire kind=%v value=%d, want Seconds/100", o.Meta.ExpireKind, o.Meta.ExpireValue)
			}
		}
	}
}

func TestDecode_UnsupportedModuleType(t *testing.T) {
	data := []byte("REDIS0011")
	data = append(data, valModule)
	data = append(data, 0x01, 'k')

	tr := pipeTransport(t, data)
	h := &collectingHandler{}
	err := Decode(tr, h)
	if err == nil {
		t.Fatal("expected UnsupportedError")
	}
	if _, ok := err.(*UnsupportedError); !ok {
		t.Errorf("got %T, want *UnsupportedError", err)
	}
}

func TestDecode_SortedSetV2BuggyScore(t *testing.T) {
	data := []byte("REDIS0011")
	data = append(data, valZSet2)
	data = append(data, 0x03, 'k', 'e', 'y')
	data = append(data, 0x01) // one member
	data = append(data, 0x01, 'm')
	// score bytes: int64 little-endian value 7, NOT an IEEE-754 double.
	data = append(data, 7, 0, 0, 0, 0, 0, 0, 0)
	data = append(data, opEOF)
	data = append(data, make([]byte, 8)...)

	tr := pipeTransport(t, data)
	h := &collectingHandler{}
	if err := Decode(tr, h); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	var found bool
	for _, o := range h.objects {
		if o.Kind == SortedSet {
			found = true
			if len(o.Items) != 1 || o.Items[0].Score != 7 {
				t.Errorf("got items %+v, want one item scored 7", o.Items)
			}
		}
	}
	if !found {
		t.Fatal("no SortedSet object emitted")
	}
}

func TestDecode_HashZipmap(t *testing.T) {
	zipmap := []byte{
		0x01,
		0x01, 'k',
		0x01, 0x00, 'v',
		0xFF,
	}
	data := []byte("REDIS0011")
	data = append(data, valHashZipmap)
	data = append(data, 0x01, 'h') // key "h"
	data = append(data, byte(len(zipmap)))
	data = append(data, zipmap...)
	data = append(data, opEOF)
	data = append(data, make([]byte, 8)...)

	tr := pipeTransport(t, data)
	h := &collectingHandler{}
	if err := Decode(tr, h); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	var found bool
	for _, o := range h.objects {
		if o.Kind == Hash {
			found = true
			if len(o.Fields) != 1 || string(o.Fields[0].Name) != "k" || string(o.Fields[0].Value) != "v" {
				t.Errorf("got fields %+v, want [k=v]", o.Fields)
			}
		}
	}
	if !found {
		t.Fatal("no Hash object emitted")
	}
}
