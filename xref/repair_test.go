package xref

import (
	"bytes"
	"context"
	"testing"

	"pdfguard/ir/raw"
)

func TestRepair_ReconstructsMissingTable(t *testing.T) {
	// No xref table at all, just object bodies and a trailer.
	data := []byte("%PDF-1.4\n" +
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
		"2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n" +
		"trailer\n<< /Size 3 /Root 1 0 R >>\n")

	table, err := Repair(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	for _, num := range []int{1, 2} {
		off, _, ok := table.Lookup(num)
		if !ok {
			t.Fatalf("object %d not recovered", num)
		}
		if data[off] != byte('0'+num) {
			t.Fatalf("offset for object %d points at %q", num, data[off:off+8])
		}
	}
	trailer := table.Trailer()
	if trailer == nil {
		t.Fatal("expected recovered trailer")
	}
	if _, ok := trailer.Get(raw.NameObj{Val: "Root"}); !ok {
		t.Fatal("recovered trailer missing Root")
	}
}

func TestRepair_IncrementalUpdateWins(t *testing.T) {
	data := []byte("%PDF-1.4\n" +
		"1 0 obj\n(old)\nendobj\n" +
		"1 0 obj\n(new)\nendobj\n")

	table, err := Repair(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	off, _, ok := table.Lookup(1)
	if !ok {
		t.Fatal("object 1 not recovered")
	}
	if !bytes.Contains(data[off:], []byte("(new)")) || bytes.Contains(data[off:], []byte("(old)")) {
		t.Fatalf("expected offset of the newer definition, got %q", data[off:])
	}
}

func TestRepair_StreamPayloadNotMisread(t *testing.T) {
	// Stream payload contains a fake object header; the declared Length
	// lets repair skip over it.
	payload := "9 0 obj fake"
	data := []byte("%PDF-1.4\n" +
		"1 0 obj\n<< /Length 12 >>\nstream\n" + payload + "\nendstream\nendobj\n" +
		"2 0 obj\n(x)\nendobj\n")

	table, err := Repair(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	if _, _, ok := table.Lookup(9); ok {
		t.Fatal("fake header inside stream payload was indexed")
	}
	if _, _, ok := table.Lookup(2); !ok {
		t.Fatal("object 2 after the stream was missed")
	}
}

func TestRepair_EmptyInput(t *testing.T) {
	if _, err := Repair(context.Background(), bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error for empty input")
	}
}
