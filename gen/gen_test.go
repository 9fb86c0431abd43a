package gen

import (
	"testing"

	"github.com/bikebus/epbus/crc"
)

func TestUnpackBits(t *testing.T) {
	bits := UnpackBits([]byte{0xCE, 0x81})
	want := []byte{1, 1, 0, 0, 1, 1, 1, 0, 1, 0, 0, 0, 0, 0, 0, 1}

	if len(bits) != len(want) {
		t.Fatalf("got %d bits, want %d", len(bits), len(want))
	}
	for idx := range bits {
		if bits[idx] != want[idx] {
			t.Fatalf("bit %d: got %d, want %d", idx, bits[idx], want[idx])
		}
	}
}

func TestOOK(t *testing.T) {
	signal := OOK([]byte{0, 1, 0}, 5000000, 1000000, 500000, 100.0)

	if len(signal) != 30 {
		t.Fatalf("got %d samples, want 30", len(signal))
	}

	// Unkeyed periods sit at the line's DC level.
	for _, idx := range []int{0, 5, 9, 20, 25, 29} {
		if signal[idx] != 128 {
			t.Fatalf("sample %d: got %d, want 128", idx, signal[idx])
		}
	}

	// The keyed period swings around it.
	var above, below bool
	for _, s := range signal[10:20] {
		above = above || s > 128
		below = below || s < 127
	}
	if !above || !below {
		t.Fatalf("carrier does not swing: %v", signal[10:20])
	}
}

func TestNewRandReply(t *testing.T) {
	sum := crc.NewBusCRC()

	for idx := 0; idx < 64; idx++ {
		pkt, err := NewRandReply(0x1A)
		if err != nil {
			t.Fatalf("%+v\n", err)
		}

		if len(pkt) != 8 {
			t.Fatalf("got %d bytes, want 8", len(pkt))
		}
		if pkt[0] != 0xCE {
			t.Fatalf("start byte: %02X", pkt[0])
		}
		if pkt[1] != 0x1A {
			t.Fatalf("unit id: %02X", pkt[1])
		}
		if pkt[3]&0xC0 != 0xC0 {
			t.Fatalf("transport byte: %02X", pkt[3])
		}
		if !sum.Verify(pkt) {
			t.Fatalf("checksum does not verify: % 02X", pkt)
		}
	}
}
