package xref

import (
	"bytes"
	"errors"

	"pdfguard/ir/raw"
	"pdfguard/scanner"
)

// Minimal object parsing for trailer dictionaries and repair scans.
// Streams are not handled here; object bodies are the parser's concern.

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

// ParseObjectAt parses a single object starting at offset in data.
func ParseObjectAt(data []byte, offset int64) (raw.Object, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{})
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	return parseObject(&tokenReader{s: s})
}

func parseObject(tr *tokenReader) (raw.Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberObj{I: tok.Int, IsInt: true}, nil
		}
		return raw.NumberObj{F: tok.Float, IsInt: false}, nil
	case scanner.TokenBoolean:
		return raw.BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: tok.Bytes}, nil
	case scanner.TokenRef:
		return raw.RefObj{R: raw.ObjectRef{Num: int(tok.Int), Gen: tok.Gen}}, nil
	case scanner.TokenArray:
		arr := &raw.ArrayObj{}
		for {
			t, err := tr.next()
			if err != nil {
				return nil, err
			}
			if t.Type == scanner.TokenKeyword && t.Str == "]" {
				return arr, nil
			}
			tr.unread(t)
			item, err := parseObject(tr)
			if err != nil {
				return nil, err
			}
			arr.Append(item)
		}
	case scanner.TokenDict:
		d := raw.Dict()
		for {
			t, err := tr.next()
			if err != nil {
				return nil, err
			}
			if t.Type == scanner.TokenKeyword && t.Str == ">>" {
				return d, nil
			}
			if t.Type != scanner.TokenName {
				return nil, errors.New("expected name in dict")
			}
			val, err := parseObject(tr)
			if err != nil {
				return nil, err
			}
			d.Set(raw.NameObj{Val: t.Str}, val)
		}
	}
	return nil, errors.New("unexpected token")
}
