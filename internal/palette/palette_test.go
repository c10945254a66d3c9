package palette

import (
	"bytes"
	"testing"

	"spriterefine/internal/quantize"
)

func TestLookupKnownPalettes(t *testing.T) {
	for _, name := range []string{"gb_legacy", "pico8", "nes", "c64", "arne16", "mono"} {
		pal, ok := Lookup(name)
		if !ok {
			t.Fatalf("expected palette %q to be registered", name)
		}
		if len(pal) == 0 {
			t.Fatalf("palette %q is empty", name)
		}
	}
}

func TestLookupUnknownPalette(t *testing.T) {
	if _, ok := Lookup("does-not-exist"); ok {
		t.Fatalf("expected unknown palette to be absent")
	}
}

func TestLookupReturnsIndependentCopy(t *testing.T) {
	pal, _ := Lookup("mono")
	pal[0] = quantize.RGB{R: 9, G: 9, B: 9}
	pal2, _ := Lookup("mono")
	if pal2[0] == (quantize.RGB{R: 9, G: 9, B: 9}) {
		t.Fatalf("mutating a returned palette leaked into the registry")
	}
}

func TestRIFFRoundTrip(t *testing.T) {
	pal := quantize.Palette{{R: 10, G: 20, B: 30}, {R: 255, G: 0, B: 128}}
	var buf bytes.Buffer
	if _, err := WriteRIFF(&buf, []quantize.Palette{pal}); err != nil {
		t.Fatalf("WriteRIFF: %v", err)
	}

	got, err := ReadRIFF(&buf)
	if err != nil {
		t.Fatalf("ReadRIFF: %v", err)
	}
	if len(got) != 1 || len(got[0]) != len(pal) {
		t.Fatalf("round trip shape mismatch: %+v", got)
	}
	for i, c := range pal {
		if got[0][i] != c {
			t.Fatalf("entry %d mismatch: want %+v got %+v", i, c, got[0][i])
		}
	}
}
