package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"pdfguard/ir/raw"
	"pdfguard/observability"
	"pdfguard/recovery"
	"pdfguard/security"
	"pdfguard/xref"
)

// ErrMalformed marks documents whose structure cannot be parsed even
// after repair. Match with errors.Is.
var ErrMalformed = errors.New("malformed document")

type Config struct {
	Limits   security.Limits
	Recovery recovery.Strategy
	Logger   observability.Logger
}

// DocumentParser loads a raw.Document from bytes: header, cross
// references (with repair fallback), then every reachable object.
type DocumentParser struct {
	cfg Config
}

func New(cfg Config) *DocumentParser {
	if cfg.Limits == (security.Limits{}) {
		cfg.Limits = security.DefaultLimits()
	}
	if cfg.Recovery == nil {
		cfg.Recovery = recovery.NewLenientStrategy()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return &DocumentParser{cfg: cfg}
}

func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt, size int64) (*raw.Document, error) {
	version, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	table, repaired, err := p.resolveXRef(ctx, r)
	if err != nil {
		return nil, err
	}
	if repaired {
		p.cfg.Logger.Warn("cross-reference table reconstructed by linear scan")
	}

	loader := newObjectLoader(r, size, table, p.cfg.Limits, p.cfg.Recovery)

	trailer := table.Trailer()
	if _, err := security.DetectEncryption(trailer, func(ref raw.ObjectRef) raw.Object {
		obj, _, err := loader.load(ctx, ref.Num)
		if err != nil {
			return raw.NullObj{}
		}
		return obj
	}); err != nil {
		return nil, err
	}

	doc := &raw.Document{
		Objects: make(map[raw.ObjectRef]raw.Object),
		Trailer: trailer,
		Version: version,
	}

	nums := table.Objects()
	if p.cfg.Limits.MaxObjectCount > 0 && len(nums) > p.cfg.Limits.MaxObjectCount {
		return nil, fmt.Errorf("%w: object count %d exceeds limit", ErrMalformed, len(nums))
	}
	for _, num := range nums {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obj, gen, err := loader.load(ctx, num)
		if err != nil {
			loc := recovery.Location{ByteOffset: loader.lastOffset, ObjectNum: num, Component: "loader"}
			if p.cfg.Recovery.OnError(ctx, err, loc) == recovery.ActionFail {
				return nil, fmt.Errorf("%w: object %d: %v", ErrMalformed, num, err)
			}
			doc.LoadErrors = append(doc.LoadErrors, fmt.Errorf("object %d: %w", num, err))
			continue
		}
		doc.Objects[raw.ObjectRef{Num: num, Gen: gen}] = obj
	}

	if len(doc.Objects) == 0 {
		return nil, fmt.Errorf("%w: no loadable objects", ErrMalformed)
	}

	ensureRoot(doc)
	populateMetadata(doc)
	return doc, nil
}

// resolveXRef resolves the cross-reference table, falling back to a
// full-file repair scan when the table is missing or corrupt.
func (p *DocumentParser) resolveXRef(ctx context.Context, r io.ReaderAt) (xref.Table, bool, error) {
	resolver := xref.NewResolver(xref.ResolverConfig{
		MaxXRefDepth: p.cfg.Limits.MaxXRefDepth,
		Recovery:     p.cfg.Recovery,
	})
	table, err := resolver.Resolve(ctx, r)
	if err == nil {
		return table, false, nil
	}
	p.cfg.Logger.Warn("cross-reference resolution failed, attempting repair",
		observability.Error("error", err))
	table, rerr := xref.Repair(ctx, r)
	if rerr != nil {
		return nil, false, fmt.Errorf("%w: xref resolve: %v; repair: %v", ErrMalformed, err, rerr)
	}
	return table, true, nil
}

// readHeader locates the %PDF-x.y marker. Producers may prepend junk;
// the marker is accepted anywhere in the first kilobyte.
func readHeader(r io.ReaderAt) (string, error) {
	buf := make([]byte, 1024)
	n, err := r.ReadAt(buf, 0)
	if n == 0 && err != nil {
		return "", err
	}
	buf = buf[:n]
	idx := bytes.Index(buf, []byte("%PDF-"))
	if idx < 0 {
		return "", errors.New("missing %PDF header")
	}
	rest := buf[idx+5:]
	end := 0
	for end < len(rest) && (rest[end] == '.' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	if end == 0 {
		return "", errors.New("missing version in header")
	}
	return string(rest[:end]), nil
}

// ensureRoot repairs a trailer that lacks /Root by locating the first
// catalog dictionary.
func ensureRoot(doc *raw.Document) {
	if doc.Trailer == nil {
		doc.Trailer = raw.Dict()
	}
	if _, _, ok := doc.Catalog(); ok {
		return
	}
	for _, ref := range doc.SortedRefs() {
		dict, ok := doc.Objects[ref].(*raw.DictObj)
		if !ok {
			continue
		}
		if t, ok := dict.GetName("Type"); ok && t == "Catalog" {
			doc.Trailer.Set(raw.NameObj{Val: "Root"}, raw.RefObj{R: ref})
			return
		}
	}
}

func populateMetadata(doc *raw.Document) {
	if doc.Trailer == nil {
		return
	}
	infoObj, ok := doc.Trailer.Get(raw.NameObj{Val: "Info"})
	if !ok {
		return
	}
	info, ok := doc.Resolve(infoObj).(*raw.DictObj)
	if !ok {
		return
	}
	get := func(key string) string {
		v, ok := info.Get(raw.NameObj{Val: key})
		if !ok {
			return ""
		}
		if s, ok := doc.Resolve(v).(raw.StringObj); ok {
			return string(s.Bytes)
		}
		return ""
	}
	doc.Metadata = raw.DocumentMetadata{
		Producer: get("Producer"),
		Creator:  get("Creator"),
		Title:    get("Title"),
		Author:   get("Author"),
	}
}
