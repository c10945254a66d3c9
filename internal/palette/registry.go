// Package palette provides the built-in retro palette registry and
// RIFF .PAL import/export.
package palette

import (
	"fmt"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"

	"spriterefine/internal/quantize"
)

func fromHex(hexes ...string) quantize.Palette {
	pal := make(quantize.Palette, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(fmt.Sprintf("palette: invalid built-in hex constant %q: %v", h, err))
		}
		r, g, b := c.Clamped().RGB255()
		pal[i] = quantize.RGB{R: r, G: g, B: b}
	}
	return pal
}

var (
	gbLegacy = fromHex("#0f380f", "#306230", "#8bac0f", "#9bbc0f")
	gbPocket = fromHex("#000000", "#555555", "#a9a9a9", "#ffffff")
	gbLight  = fromHex("#2b2103", "#5b7618", "#a5b721", "#e6f8da")

	monochrome = fromHex("#000000", "#ffffff")

	pico8 = fromHex(
		"#000000", "#1D2B53", "#7E2553", "#008751",
		"#AB5236", "#5F574F", "#C2C3C7", "#FFF1E8",
		"#FF004D", "#FFA300", "#FFEC27", "#00E436",
		"#29ADFF", "#83769C", "#FF77A8", "#FFCCAA",
	)

	msx = fromHex(
		"#000000", "#3EB849", "#74D07D", "#5955E0",
		"#8076F1", "#B95E51", "#65DBEF", "#DB6559",
		"#FF897D", "#CCC35E", "#DED087", "#3AA241",
		"#B766B5", "#CCCCCC", "#FFFFFF",
	)

	c64 = fromHex(
		"#000000", "#FFFFFF", "#68372B", "#70A4B2",
		"#6F3D86", "#588D43", "#352879", "#B8C76F",
		"#6F4F25", "#433900", "#9A6759", "#444444",
		"#6C6C6C", "#9AD284", "#6C5EB5", "#959595",
	)

	arne16 = fromHex(
		"#000000", "#9D9D9D", "#FFFFFF", "#BE2633",
		"#E06F8B", "#493C2B", "#A46422", "#EB8931",
		"#F7E26B", "#2F484E", "#44891A", "#A3CE27",
		"#1B2632", "#005784", "#31A2F2", "#B2DCEF",
	)

	// pc98 approximates the machine's default 16-color digital-RGB text
	// mode palette (EGA-style RGBI), not a hardware-accurate dump.
	pc98 = fromHex(
		"#000000", "#0000A8", "#A80000", "#A800A8",
		"#00A800", "#00A8A8", "#A85400", "#A8A8A8",
		"#545454", "#5454FC", "#FC5454", "#FC54FC",
		"#54FC54", "#54FCFC", "#FCFC54", "#FCFCFC",
	)

	nes = fromHex(
		"#7C7C7C", "#0000FC", "#0000BC", "#4428BC", "#940084", "#A80020", "#A81000", "#881400",
		"#503000", "#007800", "#006800", "#005800", "#004058", "#000000", "#000000", "#000000",
		"#BCBCBC", "#0078F8", "#0058F8", "#6844FC", "#D800CC", "#E40058", "#F83800", "#E45C10",
		"#AC7C00", "#00B800", "#00A800", "#00A844", "#008888", "#000000", "#000000", "#000000",
		"#F8F8F8", "#3CBCFC", "#6888FC", "#9878F8", "#F878F8", "#F85898", "#F87858", "#FCA044",
		"#F8B800", "#B8F818", "#58D854", "#58F898", "#00E8D8", "#787878", "#000000", "#000000",
		"#FCFCFC", "#A4E4FC", "#B8B8F8", "#D8B8F8", "#F8B8F8", "#F8A4C0", "#F0D0B0", "#FCE0A8",
		"#F8D878", "#D8F878", "#B8F8B8", "#B8F8D8", "#00FCFC", "#F8D8F8", "#000000", "#000000",
	)

	registry = map[string]quantize.Palette{
		"gb_legacy": gbLegacy,
		"gb_pocket": gbPocket,
		"gb_light":  gbLight,
		"mono":      monochrome,
		"pico8":     pico8,
		"nes":       nes,
		"pc98":      pc98,
		"msx":       msx,
		"c64":       c64,
		"arne16":    arne16,
	}
)

// Lookup returns a copy of the named built-in palette.
func Lookup(name string) (quantize.Palette, bool) {
	pal, ok := registry[name]
	if !ok {
		return nil, false
	}
	out := make(quantize.Palette, len(pal))
	copy(out, pal)
	return out, true
}

// Names returns the sorted set of registered built-in palette names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
