package xref

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"pdfguard/ir/raw"
	"pdfguard/recovery"
)

// Table holds object offsets resolved from xref information.
type Table interface {
	Lookup(objNum int) (offset int64, gen int, found bool)
	Objects() []int
	Trailer() raw.Dictionary
	Type() string
}

// Resolver locates and parses xref information in a PDF.
type Resolver interface {
	Resolve(ctx context.Context, r io.ReaderAt) (Table, error)
}

type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
}

// NewResolver returns a classic-table resolver that follows /Prev chains.
// Cross-reference streams are not parsed here; documents using them fall
// through to Repair, which reconstructs offsets by linear scan.
func NewResolver(cfg ResolverConfig) Resolver {
	depth := cfg.MaxXRefDepth
	if depth <= 0 {
		depth = 50
	}
	return &tableResolver{maxDepth: depth}
}

type tableResolver struct {
	maxDepth int
}

func (t *tableResolver) Resolve(ctx context.Context, r io.ReaderAt) (Table, error) {
	data := readAll(r)

	startxref := bytes.LastIndex(data, []byte("startxref"))
	if startxref < 0 {
		return nil, errors.New("startxref not found")
	}
	rest := data[startxref+len("startxref"):]
	lines := bufio.NewScanner(bytes.NewReader(rest))
	offset := int64(-1)
	for lines.Scan() {
		text := strings.TrimSpace(lines.Text())
		if text == "" {
			continue
		}
		val, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse startxref: %w", err)
		}
		offset = val
		break
	}
	if offset < 0 || offset >= int64(len(data)) {
		return nil, fmt.Errorf("xref offset out of range: %d", offset)
	}

	entries := make(map[int]entry)
	var trailer *raw.DictObj
	seen := make(map[int64]bool)

	for depth := 0; depth < t.maxDepth; depth++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if seen[offset] {
			return nil, errors.New("xref Prev chain loop")
		}
		seen[offset] = true

		sectionTrailer, prev, err := parseSection(data, offset, entries)
		if err != nil {
			return nil, err
		}
		if trailer == nil {
			trailer = sectionTrailer
		}
		if prev < 0 {
			break
		}
		if prev >= int64(len(data)) {
			return nil, fmt.Errorf("xref Prev offset out of range: %d", prev)
		}
		offset = prev
	}

	if len(entries) == 0 {
		return nil, errors.New("empty xref table")
	}
	return &table{entries: entries, trailer: trailer}, nil
}

// parseSection parses one classic xref section at offset, adding entries
// that are not already present (later sections in the chain are older).
// It returns the section trailer and the /Prev offset (-1 if absent).
func parseSection(data []byte, offset int64, entries map[int]entry) (*raw.DictObj, int64, error) {
	sc := bufio.NewScanner(bytes.NewReader(data[offset:]))
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "xref" {
		return nil, -1, errors.New("xref keyword not found at offset")
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "trailer") {
			break
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, -1, fmt.Errorf("invalid xref subsection header: %q", line)
		}
		startObj, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, -1, fmt.Errorf("parse xref start: %w", err)
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, -1, fmt.Errorf("parse xref count: %w", err)
		}
		for i := 0; i < count; i++ {
			if !sc.Scan() {
				return nil, -1, errors.New("unexpected end of xref section")
			}
			entryLine := strings.TrimSpace(sc.Text())
			fields := strings.Fields(entryLine)
			if len(fields) < 3 {
				return nil, -1, fmt.Errorf("invalid xref entry: %q", entryLine)
			}
			off, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, -1, fmt.Errorf("parse xref offset: %w", err)
			}
			gen, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, -1, fmt.Errorf("parse xref gen: %w", err)
			}
			if len(fields[2]) == 0 || fields[2][0] != 'n' {
				continue // free entry
			}
			if _, exists := entries[startObj+i]; !exists {
				entries[startObj+i] = entry{offset: off, gen: gen}
			}
		}
	}

	tIdx := bytes.Index(data[offset:], []byte("trailer"))
	if tIdx < 0 {
		return nil, -1, nil
	}
	trailer, err := parseTrailerDict(data, offset+int64(tIdx)+int64(len("trailer")))
	if err != nil {
		return nil, -1, err
	}
	prev := int64(-1)
	if trailer != nil {
		if v, ok := trailer.Get(raw.NameObj{Val: "Prev"}); ok {
			if n, ok := v.(raw.NumberObj); ok && n.IsInteger() {
				prev = n.Int()
			}
		}
	}
	return trailer, prev, nil
}

// parseTrailerDict finds the first dictionary at or after pos.
func parseTrailerDict(data []byte, pos int64) (*raw.DictObj, error) {
	idx := bytes.Index(data[pos:], []byte("<<"))
	if idx < 0 {
		return nil, errors.New("trailer dictionary not found")
	}
	obj, err := ParseObjectAt(data, pos+int64(idx))
	if err != nil {
		return nil, fmt.Errorf("parse trailer: %w", err)
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("trailer is not a dictionary")
	}
	return dict, nil
}

type entry struct {
	offset int64
	gen    int
}

type table struct {
	entries map[int]entry
	trailer *raw.DictObj
}

func (t *table) Lookup(objNum int) (int64, int, bool) {
	e, ok := t.entries[objNum]
	if !ok {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (t *table) Trailer() raw.Dictionary {
	if t.trailer == nil {
		return nil
	}
	return t.trailer
}

func (t *table) Type() string { return "table" }

func readAll(r io.ReaderAt) []byte {
	var buf bytes.Buffer
	const chunk = int64(32 * 1024)
	for off := int64(0); ; off += chunk {
		tmp := make([]byte, chunk)
		n, err := r.ReadAt(tmp, off)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil {
			break
		}
		if int64(n) < chunk {
			break
		}
	}
	return buf.Bytes()
}
