package gpucache

import (
	"testing"
)

func TestBlockBytes(t *testing.T) {
	b := Block{1.5, -2, 0, 3.25}
	p := b.appendBytes(nil)
	if len(p) != BlockSize {
		t.Fatalf("len = %d, want %d", len(p), BlockSize)
	}
	if got := BlockFromBytes(p); got != b {
		t.Errorf("BlockFromBytes() = %v, want %v", got, b)
	}
	// little-endian 1.5 = 0x3FC00000
	if p[0] != 0x00 || p[3] != 0x3F || p[2] != 0xC0 {
		t.Errorf("first float bytes = % x, want 00 00 c0 3f", p[:4])
	}
}

func TestBlocksToBytesAppends(t *testing.T) {
	prefix := []byte{0xAA}
	got := blocksToBytes(prefix, []Block{{1, 1, 1, 1}, {2, 2, 2, 2}})
	if len(got) != 1+2*BlockSize {
		t.Fatalf("len = %d, want %d", len(got), 1+2*BlockSize)
	}
	if got[0] != 0xAA {
		t.Error("prefix overwritten")
	}
	if BlockFromBytes(got[1+BlockSize:]) != (Block{2, 2, 2, 2}) {
		t.Error("second block mismatch")
	}
}

func TestAddressString(t *testing.T) {
	if got := (Address{Row: 3, Column: 17}).String(); got != "(3,17)" {
		t.Errorf("String() = %q, want %q", got, "(3,17)")
	}
}

func TestBusKindString(t *testing.T) {
	tests := []struct {
		kind BusKind
		want string
	}{
		{BusPixelBuffer, "PixelBuffer"},
		{BusScatter, "Scatter"},
		{BusKind(9), "Unknown(9)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("BusKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
