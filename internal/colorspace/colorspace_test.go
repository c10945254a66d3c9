package colorspace

import "testing"

func TestRoundTrip(t *testing.T) {
	for r := 0; r <= 255; r += 17 {
		for g := 0; g <= 255; g += 23 {
			for b := 0; b <= 255; b += 29 {
				lab := SRGBToOklab(byte(r), byte(g), byte(b))
				rr, gg, bb := OklabToSRGB(lab)
				if diff(rr, byte(r)) > 1 || diff(gg, byte(g)) > 1 || diff(bb, byte(b)) > 1 {
					t.Fatalf("round trip (%d,%d,%d) -> (%d,%d,%d), want within +/-1", r, g, b, rr, gg, bb)
				}
			}
		}
	}
}

func diff(a, b byte) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestDistSqZeroForEqual(t *testing.T) {
	c := SRGBToOklab(120, 45, 200)
	if DistSq(c, c) != 0 {
		t.Fatalf("expected zero self-distance")
	}
}
