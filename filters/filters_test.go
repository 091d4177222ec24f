package filters

import (
	"bytes"
	"compress/zlib"
	"context"
	"testing"

	"pdfguard/ir/raw"
)

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFlateDecode(t *testing.T) {
	plain := []byte("BT /F1 12 Tf (Hello) Tj ET")
	p := NewDefaultPipeline(Limits{})
	out, err := p.Decode(context.Background(), zlibCompress(t, plain), []string{"FlateDecode"}, nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(out, plain) {
		t.Fatalf("round trip mismatch: %q", out)
	}
}

func TestFlateDecodeSizeLimit(t *testing.T) {
	plain := bytes.Repeat([]byte("A"), 4096)
	p := NewDefaultPipeline(Limits{MaxDecompressedSize: 100})
	if _, err := p.Decode(context.Background(), zlibCompress(t, plain), []string{"FlateDecode"}, nil); err == nil {
		t.Fatal("expected size limit error")
	}
}

func TestASCIIHexDecode(t *testing.T) {
	p := NewDefaultPipeline(Limits{})
	out, err := p.Decode(context.Background(), []byte("48 65 6C 6C 6F>"), []string{"ASCIIHexDecode"}, nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if string(out) != "Hello" {
		t.Fatalf("got %q", out)
	}
}

func TestASCIIHexDecodeOddLength(t *testing.T) {
	p := NewDefaultPipeline(Limits{})
	out, err := p.Decode(context.Background(), []byte("413>"), []string{"ASCIIHexDecode"}, nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(out, []byte{0x41, 0x30}) {
		t.Fatalf("got %x", out)
	}
}

func TestASCII85Decode(t *testing.T) {
	p := NewDefaultPipeline(Limits{})
	out, err := p.Decode(context.Background(), []byte("87cUR~>"), []string{"ASCII85Decode"}, nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if string(out) != "Hell" {
		t.Fatalf("got %q", out)
	}
}

func TestRunLengthDecode(t *testing.T) {
	// literal "ab", then 'c' repeated 257-253 = 4 times, then EOD
	in := []byte{1, 'a', 'b', 253, 'c', 128}
	p := NewDefaultPipeline(Limits{})
	out, err := p.Decode(context.Background(), in, []string{"RunLengthDecode"}, nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if string(out) != "abcccc" {
		t.Fatalf("got %q", out)
	}
}

func TestRunLengthDecodeTruncated(t *testing.T) {
	p := NewDefaultPipeline(Limits{})
	if _, err := p.Decode(context.Background(), []byte{5, 'a'}, []string{"RunLengthDecode"}, nil); err == nil {
		t.Fatal("expected truncation error")
	}
}

func TestChainedFilters(t *testing.T) {
	plain := []byte("chained payload")
	hexed := make([]byte, 0)
	for _, b := range zlibCompress(t, plain) {
		hexed = append(hexed, "0123456789ABCDEF"[b>>4], "0123456789ABCDEF"[b&0x0F])
	}
	hexed = append(hexed, '>')

	p := NewDefaultPipeline(Limits{})
	out, err := p.Decode(context.Background(), hexed, []string{"ASCIIHexDecode", "FlateDecode"}, nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(out, plain) {
		t.Fatalf("got %q", out)
	}
}

func TestUnknownFilter(t *testing.T) {
	p := NewDefaultPipeline(Limits{})
	if _, err := p.Decode(context.Background(), []byte("x"), []string{"MadeUpDecode"}, nil); err == nil {
		t.Fatal("expected unknown filter error")
	}
}

func TestPassthroughStopsChain(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	p := NewDefaultPipeline(Limits{})
	out, err := p.Decode(context.Background(), jpeg, []string{"DCTDecode"}, nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(out, jpeg) {
		t.Fatal("passthrough should return payload untouched")
	}
}

func TestKnown(t *testing.T) {
	p := NewDefaultPipeline(Limits{})
	for _, name := range []string{"FlateDecode", "LZWDecode", "ASCIIHexDecode", "ASCII85Decode", "RunLengthDecode", "DCTDecode", "JPXDecode"} {
		if !p.Known(name) {
			t.Errorf("%s should be known", name)
		}
	}
	if p.Known("EvilDecode") {
		t.Error("EvilDecode should not be known")
	}
}

func TestPNGPredictorUp(t *testing.T) {
	// Two rows of 4 bytes, filter type 2 (Up) on the second row.
	raw_ := []byte{
		0, 1, 2, 3, 4,
		2, 1, 1, 1, 1,
	}
	params := raw.Dict()
	params.Set(raw.NameObj{Val: "Predictor"}, raw.NumberObj{I: 12, IsInt: true})
	params.Set(raw.NameObj{Val: "Columns"}, raw.NumberObj{I: 4, IsInt: true})

	out, err := applyPredictor(raw_, params)
	if err != nil {
		t.Fatalf("predictor failed: %v", err)
	}
	want := []byte{1, 2, 3, 4, 2, 3, 4, 5}
	if !bytes.Equal(out, want) {
		t.Fatalf("got %v want %v", out, want)
	}
}

func TestTIFFPredictor(t *testing.T) {
	params := raw.Dict()
	params.Set(raw.NameObj{Val: "Predictor"}, raw.NumberObj{I: 2, IsInt: true})
	params.Set(raw.NameObj{Val: "Columns"}, raw.NumberObj{I: 4, IsInt: true})

	out, err := applyPredictor([]byte{10, 1, 1, 1}, params)
	if err != nil {
		t.Fatalf("predictor failed: %v", err)
	}
	want := []byte{10, 11, 12, 13}
	if !bytes.Equal(out, want) {
		t.Fatalf("got %v want %v", out, want)
	}
}
