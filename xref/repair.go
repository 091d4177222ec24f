package xref

import (
	"context"
	"errors"
	"io"

	"pdfguard/ir/raw"
	"pdfguard/scanner"
)

// Repair scans the entire file to reconstruct the xref table. It looks
// for "<num> <gen> obj" patterns and the last trailer dictionary. This
// is the recovery path for files whose table is missing or corrupt.
func Repair(ctx context.Context, r io.ReaderAt) (Table, error) {
	s := scanner.New(r, scanner.Config{})
	tr := &tokenReader{s: s}
	entries := make(map[int]entry)
	var lastTrailer *raw.DictObj

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		tok, err := tr.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Skip unreadable bytes during a repair scan.
			tr.buf = nil
			if serr := s.SeekTo(s.Position() + 1); serr != nil {
				break
			}
			continue
		}

		if tok.Type == scanner.TokenNumber && tok.IsInt {
			objNum := int(tok.Int)
			objPos := tok.Pos

			tokGen, err := tr.next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				continue
			}
			if tokGen.Type == scanner.TokenNumber && tokGen.IsInt {
				tokObj, err := tr.next()
				if err != nil {
					if errors.Is(err, io.EOF) {
						break
					}
					continue
				}
				if tokObj.Type == scanner.TokenKeyword && tokObj.Str == "obj" {
					// Later definitions of the same object win: incremental
					// updates append the newer body.
					entries[objNum] = entry{offset: objPos, gen: int(tokGen.Int)}
					if err := skipObjectBody(tr, s); err != nil && !errors.Is(err, io.EOF) {
						break
					}
					continue
				}
				// Backtrack so "1 2 0 obj" is not missed after reading "1 2".
				tr.buf = nil
				if err := s.SeekTo(tokGen.Pos); err != nil {
					return nil, err
				}
				continue
			}
		} else if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			obj, err := parseObject(tr)
			if err == nil {
				if dict, ok := obj.(*raw.DictObj); ok {
					lastTrailer = dict
				}
			}
		}
	}

	if len(entries) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}

	if lastTrailer == nil {
		// Minimal trailer; the parser locates /Root by catalog scan.
		lastTrailer = raw.Dict()
		lastTrailer.Set(raw.NameObj{Val: "Size"}, raw.NumberObj{I: int64(len(entries) + 1), IsInt: true})
	}

	return &table{entries: entries, trailer: lastTrailer}, nil
}

// skipObjectBody advances past the current object so stream payload
// bytes are not re-tokenized as object headers.
func skipObjectBody(tr *tokenReader, s scanner.Scanner) error {
	obj, err := parseObject(tr)
	if err != nil {
		return err
	}
	if dict, ok := obj.(*raw.DictObj); ok {
		if v, ok := dict.Get(raw.NameObj{Val: "Length"}); ok {
			if n, ok := v.(raw.NumberObj); ok && n.IsInteger() {
				s.SetNextStreamLength(n.Int())
			}
		}
		tok, err := tr.next()
		if err != nil {
			return err
		}
		if tok.Type != scanner.TokenStream {
			s.SetNextStreamLength(-1)
			tr.unread(tok)
		}
	}
	return nil
}
