package filters

import (
	"bytes"
	"errors"
)

const (
	lzwClearCode = 256
	lzwEODCode   = 257
	lzwFirstFree = 258
	lzwMaxBits   = 12
)

// decodeLZWEarly decodes MSB-first LZW with the EarlyChange 1 semantics
// used by PDF producers: the code width grows one entry before the
// dictionary actually fills the current width.
func decodeLZWEarly(in []byte) ([]byte, error) {
	var out bytes.Buffer
	br := bitReader{data: in}

	var table [][]byte
	reset := func() {
		table = table[:0]
		for i := 0; i < 256; i++ {
			table = append(table, []byte{byte(i)})
		}
		// placeholders for clear and EOD
		table = append(table, nil, nil)
	}
	reset()

	width := 9
	var prev []byte
	for {
		code, ok := br.read(width)
		if !ok {
			// Truncated input past the last complete code is tolerated;
			// many producers omit the explicit EOD marker.
			return out.Bytes(), nil
		}
		switch {
		case code == lzwClearCode:
			reset()
			width = 9
			prev = nil
			continue
		case code == lzwEODCode:
			return out.Bytes(), nil
		}

		var seq []byte
		switch {
		case code < len(table):
			seq = table[code]
		case code == len(table) && prev != nil:
			seq = append(append([]byte{}, prev...), prev[0])
		default:
			return nil, errors.New("invalid LZW code")
		}
		out.Write(seq)

		if prev != nil {
			entry := append(append([]byte{}, prev...), seq[0])
			table = append(table, entry)
		}
		prev = seq

		// EarlyChange: widen when one short of the current ceiling.
		if len(table)+1 >= 1<<width && width < lzwMaxBits {
			width++
		}
	}
}

type bitReader struct {
	data []byte
	pos  int
	bits uint32
	n    int
}

func (r *bitReader) read(width int) (int, bool) {
	for r.n < width {
		if r.pos >= len(r.data) {
			return 0, false
		}
		r.bits = r.bits<<8 | uint32(r.data[r.pos])
		r.pos++
		r.n += 8
	}
	r.n -= width
	v := int(r.bits>>uint(r.n)) & ((1 << width) - 1)
	return v, true
}
