// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package rdb

import (
	"math"
	"testing"
)

func TestReadLength_SixBit(t *testing.T) {
	c := newCursor([]byte{0x3F}) // 00111111 -> 63
	length, encoded, err := readLength(c)
	if err != nil {
		t.Fatalf("readLength: %v", err)
	}
	if encoded {
		t.Fatal("expected non-encoded length")
	}
	if length != 63 {
		t.Errorf("length = %d, want 63", length)
	}
}

func TestReadLength_FourteenBit(t *testing.T) {
	// 01000000 00000000 -> (0<<8)|0 = 0; use a value straddling the 6-bit
	// boundary: 64 requires the 14-bit form.
	c := newCursor([]byte{0x40, 0x40}) // top=01, low6=0, next byte 0x40 -> 0<<8|64 = 64
	length, encoded, err := readLength(c)
	if err != nil {
		t.Fatalf("readLength: %v", err)
	}
	if encoded {
		t.Fatal("expected non-encoded length")
	}
	if length != 64 {
		t.Errorf("length = %d, want 64", length)
	}
}

func TestReadLength_FourteenBitUpperBound(t *testing.T) {
	// 14-bit max is 0x3FFF = 16383. Next integer, 16384, needs the 32-bit form.
	c := newCursor([]byte{0x80, 0x00, 0x00, 0x40, 0x00})
	length, encoded, err := readLength(c)
	if err != nil {
		t.Fatalf("readLength: %v", err)
	}
	if encoded {
		t.Fatal("expected non-encoded length")
	}
	if length != 16384 {
		t.Errorf("length = %d, want 16384", length)
	}
}

func TestReadLength_64Bit(t *testing.T) {
	c := newCursor([]byte{0x81, 0, 0, 0, 1, 0, 0, 0, 0})
	length, encoded, err := readLength(c)
	if err != nil {
		t.Fatalf("readLength: %v", err)
	}
	if encoded {
		t.Fatal("expected non-encoded length")
	}
	if length != 1<<32 {
		t.Errorf("length = %d, want %d", length, int64(1)<<32)
	}
}

func TestReadLength_EncodedSelector(t *testing.T) {
	c := newCursor([]byte{0xC3}) // 11 000011 -> selector 3 (LZF)
	length, encoded, err := readLength(c)
	if err != nil {
		t.Fatalf("readLength: %v", err)
	}
	if !encoded {
		t.Fatal("expected encoded selector")
	}
	if length != 3 {
		t.Errorf("selector = %d, want 3", length)
	}
}

func TestReadLength_InvalidPrefix(t *testing.T) {
	c := newCursor([]byte{0x82}) // top=10 but not 0x80/0x81
	if _, _, err := readLength(c); err == nil {
		t.Fatal("expected error for invalid length prefix")
	}
}

func TestReadString_Raw(t *testing.T) {
	c := newCursor([]byte{0x05, 'h', 'e', 'l', 'l', 'o'})
	s, err := readString(c)
	if err != nil {
		t.Fatalf("readString: %v", err)
	}
	if string(s) != "hello" {
		t.Errorf("got %q, want %q", s, "hello")
	}
}

func TestReadString_Int8(t *testing.T) {
	c := newCursor([]byte{0xC0, 0xFB}) // selector 0, byte 0xFB = -5
	s, err := readString(c)
	if err != nil {
		t.Fatalf("readString: %v", err)
	}
	if string(s) != "-5" {
		t.Errorf("got %q, want %q", s, "-5")
	}
}

func TestReadString_Int16(t *testing.T) {
	c := newCursor([]byte{0xC1, 0x2C, 0x01}) // selector 1, LE 0x012C = 300
	s, err := readString(c)
	if err != nil {
		t.Fatalf("readString: %v", err)
	}
	if string(s) != "300" {
		t.Errorf("got %q, want %q", s, "300")
	}
}

func TestReadString_Int32(t *testing.T) {
	c := newCursor([]byte{0xC2, 0x00, 0x00, 0x01, 0x00}) // selector 2, LE -> 65536
	s, err := readString(c)
	if err != nil {
		t.Fatalf("readString: %v", err)
	}
	if string(s) != "65536" {
		t.Errorf("got %q, want %q", s, "65536")
	}
}

func TestReadString_LZFCompressed(t *testing.T) {
	// selector 3: complen, origlen, then compressed bytes decoding to "AAAAA"
	compressed := []byte{0x00, 'A', 0x40, 0x00}
	buf := []byte{0xC3, byte(len(compressed)), 5}
	buf = append(buf, compressed...)
	c := newCursor(buf)
	s, err := readString(c)
	if err != nil {
		t.Fatalf("readString: %v", err)
	}
	if string(s) != "AAAAA" {
		t.Errorf("got %q, want %q", s, "AAAAA")
	}
}

func TestReadDouble_Sentinels(t *testing.T) {
	tests := []struct {
		name string
		in   byte
		want float64
	}{
		{"negative infinity", 255, math.Inf(-1)},
		{"positive infinity", 254, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCursor([]byte{tt.in})
			v, err := readDouble(c)
			if err != nil {
				t.Fatalf("readDouble: %v", err)
			}
			if v != tt.want {
				t.Errorf("got %v, want %v", v, tt.want)
			}
		})
	}

	c := newCursor([]byte{253})
	v, err := readDouble(c)
	if err != nil {
		t.Fatalf("readDouble: %v", err)
	}
	if !math.IsNaN(v) {
		t.Errorf("got %v, want NaN", v)
	}
}

func TestReadDouble_ASCII(t *testing.T) {
	text := "3.14159"
	buf := append([]byte{byte(len(text))}, []byte(text)...)
	c := newCursor(buf)
	v, err := readDouble(c)
	if err != nil {
		t.Fatalf("readDouble: %v", err)
	}
	if v != 3.14159 {
		t.Errorf("got %v, want 3.14159", v)
	}
}
