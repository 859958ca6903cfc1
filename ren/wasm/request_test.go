package wasm

import (
	"encoding/binary"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	in := guestRequest{
		device:  1,
		command: 5,
		modes:   1,
		flags:   0x80000001,
		errcode: 1020,
		data:    0xdead0,
		length:  64,
		actual:  63,
	}
	b := make([]byte, requestSize)
	in.encode(b)
	if out := decodeRequest(b); out != in {
		t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", in, out)
	}
}

// TestRequestLayout pins the record's wire offsets; the guest compiles
// against the same layout.
func TestRequestLayout(t *testing.T) {
	b := make([]byte, requestSize)
	guestRequest{
		device:  2,
		command: 4,
		modes:   3,
		flags:   5,
		errcode: 7,
		data:    9,
		length:  11,
		actual:  13,
	}.encode(b)

	if b[0] != 2 {
		t.Errorf("offset 0 (device): want 2, got %d", b[0])
	}
	if b[1] != 4 {
		t.Errorf("offset 1 (command): want 4, got %d", b[1])
	}
	words := []struct {
		off  int
		want uint32
	}{
		{4, 3}, {8, 5}, {12, 7}, {16, 9}, {20, 11}, {24, 13},
	}
	for _, w := range words {
		if got := binary.LittleEndian.Uint32(b[w.off:]); got != w.want {
			t.Errorf("offset %d: want %d, got %d", w.off, w.want, got)
		}
	}
}
