package parser

import (
	"context"
	"errors"
	"fmt"
	"io"

	"pdfguard/ir/raw"
	"pdfguard/recovery"
	"pdfguard/scanner"
	"pdfguard/security"
	"pdfguard/xref"
)

// objectLoader reads individual indirect objects by xref offset. One
// loader owns one scanner; load seeks it per object.
type objectLoader struct {
	r       io.ReaderAt
	size    int64
	table   xref.Table
	limits  security.Limits
	scanCfg scanner.Config
	s       scanner.Scanner
	tr      tokenReader

	lastOffset int64
}

type tokenReader struct {
	s   scanner.Scanner
	buf []scanner.Token
}

func (r *tokenReader) next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) { r.buf = append(r.buf, tok) }

func newObjectLoader(r io.ReaderAt, size int64, table xref.Table, limits security.Limits, strategy recovery.Strategy) *objectLoader {
	cfg := scanner.Config{
		MaxStringLength: int64(limits.MaxStringLength),
		MaxArrayDepth:   limits.MaxNestingDepth,
		MaxDictDepth:    limits.MaxNestingDepth,
		MaxStreamLength: limits.MaxStreamLength,
		Recovery:        strategy,
	}
	s := scanner.New(r, cfg)
	return &objectLoader{
		r:       r,
		size:    size,
		table:   table,
		limits:  limits,
		scanCfg: cfg,
		s:       s,
		tr:      tokenReader{s: s},
	}
}

// load reads the object with the given number at its xref offset and
// returns the parsed body plus the generation from the object header.
func (l *objectLoader) load(ctx context.Context, num int) (raw.Object, int, error) {
	offset, _, ok := l.table.Lookup(num)
	if !ok {
		return nil, 0, fmt.Errorf("object %d not in xref", num)
	}
	if offset < 0 || offset >= l.size {
		return nil, 0, fmt.Errorf("object %d offset %d out of range", num, offset)
	}
	l.lastOffset = offset
	l.tr.buf = nil
	if err := l.s.SeekTo(offset); err != nil {
		return nil, 0, err
	}

	gen, err := l.readObjectHeader(num)
	if err != nil {
		return nil, 0, err
	}

	obj, err := l.parseObject(ctx, 0)
	if err != nil {
		return nil, 0, err
	}

	// A dictionary may be followed by stream data.
	if dict, ok := obj.(*raw.DictObj); ok {
		stream, err := l.attachStream(ctx, dict)
		if err != nil {
			return nil, 0, err
		}
		if stream != nil {
			return stream, gen, nil
		}
	}
	return obj, gen, nil
}

// readObjectHeader consumes "<num> <gen> obj" and returns the generation.
func (l *objectLoader) readObjectHeader(num int) (int, error) {
	tokNum, err := l.tr.next()
	if err != nil {
		return 0, err
	}
	if tokNum.Type != scanner.TokenNumber || !tokNum.IsInt {
		return 0, fmt.Errorf("expected object number, got %v", tokNum.Type)
	}
	if int(tokNum.Int) != num {
		return 0, fmt.Errorf("xref points at object %d, header says %d", num, tokNum.Int)
	}
	tokGen, err := l.tr.next()
	if err != nil {
		return 0, err
	}
	if tokGen.Type != scanner.TokenNumber || !tokGen.IsInt {
		return 0, errors.New("expected generation number")
	}
	tokObj, err := l.tr.next()
	if err != nil {
		return 0, err
	}
	if tokObj.Type != scanner.TokenKeyword || tokObj.Str != "obj" {
		return 0, errors.New("expected obj keyword")
	}
	return int(tokGen.Int), nil
}

// attachStream checks whether stream data follows the dictionary and
// returns the stream object, or nil when the dict stands alone.
func (l *objectLoader) attachStream(ctx context.Context, dict *raw.DictObj) (raw.Object, error) {
	length := l.resolveStreamLength(dict)
	l.s.SetNextStreamLength(length)
	tok, err := l.tr.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			l.s.SetNextStreamLength(-1)
			return nil, nil
		}
		return nil, err
	}
	if tok.Type != scanner.TokenStream {
		l.s.SetNextStreamLength(-1)
		l.tr.unread(tok)
		return nil, nil
	}
	if l.limits.MaxStreamLength > 0 && int64(len(tok.Bytes)) > l.limits.MaxStreamLength {
		return nil, fmt.Errorf("stream length %d exceeds limit", len(tok.Bytes))
	}
	return raw.NewStream(dict, tok.Bytes), nil
}

// resolveStreamLength resolves /Length, following one level of
// indirection with a dedicated scanner so the main position is kept.
// Returns -1 when unknown; the scanner then searches for endstream.
func (l *objectLoader) resolveStreamLength(dict *raw.DictObj) int64 {
	v, ok := dict.Get(raw.NameObj{Val: "Length"})
	if !ok {
		return -1
	}
	switch n := v.(type) {
	case raw.NumberObj:
		if n.IsInteger() {
			return n.Int()
		}
	case raw.RefObj:
		offset, _, ok := l.table.Lookup(n.R.Num)
		if !ok || offset < 0 || offset >= l.size {
			return -1
		}
		side := scanner.New(l.r, l.scanCfg)
		if err := side.SeekTo(offset); err != nil {
			return -1
		}
		// num gen obj <integer>
		for i := 0; i < 3; i++ {
			if _, err := side.Next(); err != nil {
				return -1
			}
		}
		tok, err := side.Next()
		if err != nil || tok.Type != scanner.TokenNumber || !tok.IsInt {
			return -1
		}
		return tok.Int
	}
	return -1
}

func (l *objectLoader) parseObject(ctx context.Context, depth int) (raw.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.limits.MaxNestingDepth > 0 && depth > l.limits.MaxNestingDepth {
		return nil, errors.New("nesting depth exceeded")
	}
	tok, err := l.tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenString:
		return raw.Str(tok.Bytes), nil
	case scanner.TokenRef:
		return raw.Ref(int(tok.Int), tok.Gen), nil
	case scanner.TokenArray:
		return l.parseArray(ctx, depth+1)
	case scanner.TokenDict:
		return l.parseDict(ctx, depth+1)
	}
	return nil, fmt.Errorf("unexpected token %v at %d", tok.Type, tok.Pos)
}

func (l *objectLoader) parseArray(ctx context.Context, depth int) (raw.Object, error) {
	arr := raw.NewArray()
	for {
		tok, err := l.tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		l.tr.unread(tok)
		item, err := l.parseObject(ctx, depth)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func (l *objectLoader) parseDict(ctx context.Context, depth int) (raw.Object, error) {
	dict := raw.Dict()
	for {
		tok, err := l.tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return dict, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("expected name key in dict, got %v", tok.Type)
		}
		val, err := l.parseObject(ctx, depth)
		if err != nil {
			return nil, err
		}
		dict.Set(raw.NameObj{Val: tok.Str}, val)
	}
}
