// Package writer serializes a raw.Document back to bytes with a
// classic cross-reference table and a rebuilt trailer.
package writer

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"pdfguard/ir/raw"
)

// Serialize emits the document: header, every object in ascending
// reference order, one contiguous xref section, and the trailer.
func Serialize(doc *raw.Document) ([]byte, error) {
	if doc == nil || len(doc.Objects) == 0 {
		return nil, errors.New("nothing to serialize")
	}
	var buf bytes.Buffer
	version := doc.Version
	if version == "" {
		version = "1.7"
	}
	fmt.Fprintf(&buf, "%%PDF-%s\n", version)
	// Binary marker comment so transfer tools treat the file as binary.
	buf.Write([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})

	refs := doc.SortedRefs()
	offsets := make(map[int]int64, len(refs))
	gens := make(map[int]int, len(refs))
	maxNum := 0
	for _, ref := range refs {
		if _, dup := offsets[ref.Num]; dup {
			// Same number at two generations: the lowest generation comes
			// first in ref order and wins; later duplicates are dropped.
			continue
		}
		offsets[ref.Num] = int64(buf.Len())
		gens[ref.Num] = ref.Gen
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
		fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
		if err := SerializeObject(&buf, doc.Objects[ref]); err != nil {
			return nil, fmt.Errorf("object %s: %w", ref, err)
		}
		buf.WriteString("\nendobj\n")
	}

	xrefOff := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= maxNum; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(&buf, "%010d %05d n \n", off, gens[num])
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}

	trailer := buildTrailer(doc, maxNum+1)
	buf.WriteString("trailer\n")
	if err := SerializeObject(&buf, trailer); err != nil {
		return nil, fmt.Errorf("trailer: %w", err)
	}
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOff)
	return buf.Bytes(), nil
}

// buildTrailer keeps only the entries that still make sense for a
// full rewrite; /Prev and /XRefStm point at structures that no longer
// exist, and /Encrypt never survives this writer.
func buildTrailer(doc *raw.Document, size int) *raw.DictObj {
	trailer := raw.Dict()
	trailer.Set(raw.NameObj{Val: "Size"}, raw.NumberInt(int64(size)))
	if doc.Trailer != nil {
		for _, key := range []string{"Root", "Info", "ID"} {
			if v, ok := doc.Trailer.Get(raw.NameObj{Val: key}); ok {
				trailer.Set(raw.NameObj{Val: key}, v)
			}
		}
	}
	return trailer
}

// SerializeObject writes one object body.
func SerializeObject(buf *bytes.Buffer, obj raw.Object) error {
	switch o := obj.(type) {
	case nil:
		buf.WriteString("null")
	case raw.NullObj:
		buf.WriteString("null")
	case raw.BoolObj:
		if o.V {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case raw.NumberObj:
		if o.IsInt {
			fmt.Fprintf(buf, "%d", o.I)
		} else {
			fmt.Fprintf(buf, "%g", o.F)
		}
	case raw.NameObj:
		writeName(buf, o.Val)
	case raw.StringObj:
		writeLiteralString(buf, o.Bytes)
	case raw.RefObj:
		fmt.Fprintf(buf, "%d %d R", o.R.Num, o.R.Gen)
	case *raw.ArrayObj:
		buf.WriteByte('[')
		for i := 0; i < o.Len(); i++ {
			if i > 0 {
				buf.WriteByte(' ')
			}
			item, _ := o.Get(i)
			if err := SerializeObject(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *raw.DictObj:
		return serializeDict(buf, o)
	case *raw.StreamObj:
		// /Length is rewritten so the header always matches the payload.
		dict := o.Dict
		if dict == nil {
			dict = raw.Dict()
		}
		dict.Set(raw.NameObj{Val: "Length"}, raw.NumberInt(int64(len(o.Data))))
		if err := serializeDict(buf, dict); err != nil {
			return err
		}
		buf.WriteString("\nstream\n")
		buf.Write(o.Data)
		buf.WriteString("\nendstream")
	default:
		return fmt.Errorf("cannot serialize %T", obj)
	}
	return nil
}

// serializeDict emits keys in sorted order so identical documents
// serialize identically.
func serializeDict(buf *bytes.Buffer, dict *raw.DictObj) error {
	keys := make([]string, 0, dict.Len())
	for _, k := range dict.Keys() {
		keys = append(keys, k.Value())
	}
	sort.Strings(keys)
	buf.WriteString("<<")
	for _, key := range keys {
		buf.WriteByte(' ')
		writeName(buf, key)
		buf.WriteByte(' ')
		v, _ := dict.Get(raw.NameObj{Val: key})
		if err := SerializeObject(buf, v); err != nil {
			return err
		}
	}
	buf.WriteString(" >>")
	return nil
}

func writeName(buf *bytes.Buffer, name string) {
	buf.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= 0x20 || c >= 0x7F || isDelimiterByte(c) || c == '#' {
			fmt.Fprintf(buf, "#%02X", c)
			continue
		}
		buf.WriteByte(c)
	}
}

func writeLiteralString(buf *bytes.Buffer, data []byte) {
	buf.WriteByte('(')
	for _, c := range data {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if c < 0x20 || c >= 0x7F {
				fmt.Fprintf(buf, "\\%03o", c)
			} else {
				buf.WriteByte(c)
			}
		}
	}
	buf.WriteByte(')')
}

func isDelimiterByte(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
