package filters

import (
	"errors"

	"pdfguard/ir/raw"
)

func dictInt(d raw.Dictionary, key string, def int64) int64 {
	if d == nil {
		return def
	}
	v, ok := d.Get(raw.NameObj{Val: key})
	if !ok {
		return def
	}
	n, ok := v.(raw.NumberObj)
	if !ok {
		return def
	}
	return n.Int()
}

// applyPredictor undoes the Predictor declared in DecodeParms. Predictor
// 1 (or absent) is the identity; 2 is TIFF horizontal differencing; 10
// and above are the PNG filter set applied per row.
func applyPredictor(data []byte, params raw.Dictionary) ([]byte, error) {
	pred := dictInt(params, "Predictor", 1)
	if pred <= 1 {
		return data, nil
	}
	colors := int(dictInt(params, "Colors", 1))
	bpc := int(dictInt(params, "BitsPerComponent", 8))
	columns := int(dictInt(params, "Columns", 1))
	if colors < 1 || bpc < 1 || columns < 1 {
		return nil, errors.New("invalid predictor parameters")
	}
	bpp := (colors*bpc + 7) / 8
	rowLen := (colors*bpc*columns + 7) / 8

	if pred == 2 {
		if bpc != 8 {
			// Sub-byte TIFF differencing is vanishingly rare in practice.
			return nil, errors.New("TIFF predictor requires 8 bits per component")
		}
		out := make([]byte, len(data))
		copy(out, data)
		for r := 0; r+rowLen <= len(out); r += rowLen {
			row := out[r : r+rowLen]
			for i := bpp; i < len(row); i++ {
				row[i] += row[i-bpp]
			}
		}
		return out, nil
	}

	// PNG predictors: every row is prefixed with a filter-type byte.
	stride := rowLen + 1
	if len(data)%stride != 0 {
		return nil, errors.New("predictor row length mismatch")
	}
	rows := len(data) / stride
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)
	cur := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		ft := data[r*stride]
		copy(cur, data[r*stride+1:(r+1)*stride])
		switch ft {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				cur[i] += cur[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				cur[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left int
				if i >= bpp {
					left = int(cur[i-bpp])
				}
				cur[i] += byte((left + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft int
				if i >= bpp {
					left = int(cur[i-bpp])
					upLeft = int(prev[i-bpp])
				}
				cur[i] += paeth(left, int(prev[i]), upLeft)
			}
		default:
			return nil, errors.New("unknown PNG filter type")
		}
		out = append(out, cur...)
		prev, cur = cur, prev
	}
	return out, nil
}

func paeth(a, b, c int) byte {
	p := a + b - c
	pa, pb, pc := abs(p-a), abs(p-b), abs(p-c)
	switch {
	case pa <= pb && pa <= pc:
		return byte(a)
	case pb <= pc:
		return byte(b)
	default:
		return byte(c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
