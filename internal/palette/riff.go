package palette

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/image/riff"

	"spriterefine/internal/quantize"
)

// Microsoft RIFF PAL: a two-byte version (3), a two-byte little-endian
// entry count, then that many 4-byte (R,G,B,flags) entries.

var (
	riffType = riff.FourCC{'R', 'I', 'F', 'F'}
	palType  = riff.FourCC{'P', 'A', 'L', ' '}
	dataType = riff.FourCC{'d', 'a', 't', 'a'}
)

// ReadRIFF reads every PAL chunk from r and returns each as a Palette.
func ReadRIFF(r io.Reader) ([]quantize.Palette, error) {
	formType, rd, err := riff.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not open RIFF stream: %w", err)
	} else if formType != palType {
		return nil, fmt.Errorf("unsupported RIFF content type: %s", string(formType[:]))
	}
	return readPalettes(rd, string(formType[:]))
}

func readPalettes(r *riff.Reader, ident string) ([]quantize.Palette, error) {
	var res []quantize.Palette

	for {
		id, size, data, err := r.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return res, fmt.Errorf("could not read chunk %q#%d: %w", ident, len(res), err)
		}

		if id == riff.LIST {
			listType, list, lerr := riff.NewListReader(size, data)
			if lerr != nil {
				return res, fmt.Errorf("could not read list from chunk %q#%d: %w", ident, len(res), lerr)
			} else if listType != palType {
				return nil, fmt.Errorf("chunk %q#%d unsupported type: %s", ident, len(res), string(listType[:]))
			}
			listRes, lerr := readPalettes(list, fmt.Sprintf("%s%d.%s", ident, len(res), listType[:]))
			if lerr != nil {
				return append(res, listRes...), lerr
			}
			res = append(res, listRes...)
			continue
		} else if id != dataType {
			return res, fmt.Errorf("unsupported chunk type in %q#%d: %s", ident, len(res), id)
		}

		pal, err := readPalette(data, fmt.Sprintf("%s%d", ident, len(res)))
		if err != nil {
			return res, err
		}
		res = append(res, pal)
	}

	return res, nil
}

func readPalette(r io.Reader, ident string) (quantize.Palette, error) {
	buf := make([]byte, 2)

	if n, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("could not read version from chunk %s: %w", ident, err)
	} else if n != 2 {
		return nil, fmt.Errorf("not enough bytes in %s to read version number: %d", ident, n)
	}
	if ver := binary.BigEndian.Uint16(buf); ver != 3 {
		return nil, fmt.Errorf("unsupported palette version in chunk %s: %d", ident, ver)
	}

	if n, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("could not read number of entries from chunk %s: %w", ident, err)
	} else if n != 2 {
		return nil, fmt.Errorf("not enough bytes in %s to read number of entries: %d", ident, n)
	} else {
		count := binary.LittleEndian.Uint16(buf)
		res := make(quantize.Palette, count)
		buf4 := make([]byte, 4)
		for i := uint16(0); i < count; i++ {
			if n, err := io.ReadFull(r, buf4); err != nil {
				return res, fmt.Errorf("could not read color %d/%d from chunk %s: %w", i, count, ident, err)
			} else if n != 4 {
				return res, fmt.Errorf("not enough bytes to read color %d/%d from chunk %s: %d", i, count, ident, n)
			}
			res[i] = quantize.RGB{R: buf4[0], G: buf4[1], B: buf4[2]}
		}
		return res, nil
	}
}

// WriteRIFF writes each palette as a data chunk within a RIFF PAL document.
func WriteRIFF(w io.Writer, pals []quantize.Palette) (int64, error) {
	n := 4
	for _, pal := range pals {
		n += 4 + 4 + 4 + len(pal)*4
	}

	if err := writeBytes(w, riffType[:]); err != nil {
		return 0, fmt.Errorf("could not write RIFF magic: %w", err)
	}
	if err := writeBytes(w, binary.LittleEndian.AppendUint32(nil, uint32(n))); err != nil {
		return 0, fmt.Errorf("could not write document size: %w", err)
	}
	if err := writeBytes(w, palType[:]); err != nil {
		return 0, fmt.Errorf("could not write content type: %w", err)
	}

	var count int64
	for i, pal := range pals {
		written, err := writePalette(w, pal)
		count += written
		if err != nil {
			return count, fmt.Errorf("could not write chunk %d: %w", i, err)
		}
	}
	return count, nil
}

func writePalette(w io.Writer, pal quantize.Palette) (int64, error) {
	if err := writeBytes(w, dataType[:]); err != nil {
		return 0, fmt.Errorf("could not write type: %w", err)
	}

	n := 4 + len(pal)*4
	if err := writeBytes(w, binary.LittleEndian.AppendUint32(nil, uint32(n))); err != nil {
		return 0, fmt.Errorf("could not write chunk size: %w", err)
	}
	if err := writeBytes(w, []byte{0, 0x03}); err != nil {
		return 0, fmt.Errorf("could not write palette version: %w", err)
	}
	if err := writeBytes(w, binary.LittleEndian.AppendUint16(nil, uint16(len(pal)))); err != nil {
		return 0, fmt.Errorf("could not write number of colors: %w", err)
	}

	for i, c := range pal {
		if err := writeBytes(w, []byte{c.R, c.G, c.B, 0x00}); err != nil {
			return int64(i), fmt.Errorf("could not write color %d/%d: %w", i, len(pal), err)
		}
	}
	return int64(len(pal)), nil
}

func writeBytes(w io.Writer, b []byte) error {
	n, err := w.Write(b)
	if err != nil {
		return err
	} else if n != len(b) {
		return fmt.Errorf("wrote only %d/%d bytes", n, len(b))
	}
	return nil
}
