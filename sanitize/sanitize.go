// Package sanitize produces a neutralized copy of a flagged document.
// Offending constructs are cleared or emptied in place while the page
// tree and unrelated content survive, so the output stays renderable.
package sanitize

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"pdfguard/ir/raw"
	"pdfguard/observability"
	"pdfguard/risk"
	"pdfguard/writer"
)

// ErrIrreparable is returned when neutralizing the flagged objects
// would break mandatory document structure. No partial output is ever
// produced alongside it.
var ErrIrreparable = errors.New("document structure cannot be sanitized")

type Config struct {
	Parser raw.Parser
	Engine *risk.Engine
	Logger observability.Logger
}

type Sanitizer struct {
	cfg Config
}

func New(cfg Config) *Sanitizer {
	if cfg.Engine == nil {
		cfg.Engine = risk.NewEngine(risk.EngineConfig{})
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return &Sanitizer{cfg: cfg}
}

// Sanitize re-parses the original bytes, neutralizes every flagged
// construct, and re-serializes. The result is verified by an internal
// re-scan: output that would not scan Clean is never returned.
func (s *Sanitizer) Sanitize(ctx context.Context, original []byte, report risk.Report) ([]byte, error) {
	if report.Verdict == risk.VerdictClean {
		return nil, errors.New("document is already clean")
	}
	doc, err := s.cfg.Parser.Parse(ctx, bytes.NewReader(original), int64(len(original)))
	if err != nil {
		return nil, fmt.Errorf("reloading document: %w", err)
	}

	protected := protectedRefs(doc)
	for _, ind := range report.Indicators {
		if err := s.neutralize(doc, ind, protected); err != nil {
			return nil, err
		}
	}
	stripTriggerWiring(doc)

	// Re-scan before serializing; residual indicators mean the flagged
	// construct is woven into structure we refuse to destroy.
	verify, err := s.cfg.Engine.Scan(ctx, doc, report.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("verifying sanitized document: %w", err)
	}
	if verify.Verdict != risk.VerdictClean {
		return nil, fmt.Errorf("%w: %d indicators survive neutralization", ErrIrreparable, len(verify.Indicators))
	}

	out, err := writer.Serialize(doc)
	if err != nil {
		return nil, fmt.Errorf("serializing sanitized document: %w", err)
	}
	s.cfg.Logger.Info("document sanitized",
		observability.String("document", report.DocumentID),
		observability.Int(observability.MetricIndicatorCount, len(report.Indicators)))
	return out, nil
}

// protectedRefs collects objects whose destruction would orphan the
// document: the catalog and the page-tree root.
func protectedRefs(doc *raw.Document) map[raw.ObjectRef]bool {
	protected := make(map[raw.ObjectRef]bool)
	cat, catRef, ok := doc.Catalog()
	if !ok {
		return protected
	}
	protected[catRef] = true
	if pages, ok := cat.Get(raw.NameObj{Val: "Pages"}); ok {
		if ref, ok := pages.(raw.RefObj); ok {
			protected[ref.R] = true
		}
	}
	return protected
}

func (s *Sanitizer) neutralize(doc *raw.Document, ind risk.Indicator, protected map[raw.ObjectRef]bool) error {
	obj, ok := doc.Objects[ind.Ref]
	if !ok {
		return nil
	}

	switch ind.Kind {
	case risk.KindEmbeddedJavaScript, risk.KindLaunchAction:
		// An indicator on an object that is not itself an action came
		// from an action written directly under a trigger key; dropping
		// those keys removes it without destroying the host.
		if host, ok := actionHost(obj); ok {
			host.Delete(raw.NameObj{Val: "A"})
			host.Delete(raw.NameObj{Val: "AA"})
			host.Delete(raw.NameObj{Val: "OpenAction"})
			return nil
		}
		if protected[ind.Ref] {
			return fmt.Errorf("%w: %s action on object %s", ErrIrreparable, ind.Kind, ind.Ref)
		}
		clearObject(doc, ind.Ref, obj)

	case risk.KindEmbeddedFile:
		switch o := obj.(type) {
		case *raw.StreamObj:
			// Zero-length placeholder keeps file specifications valid.
			o.Data = nil
			o.Dict.Clear()
			o.Dict.Set(raw.NameObj{Val: "Length"}, raw.NumberInt(0))
		case *raw.DictObj:
			o.Delete(raw.NameObj{Val: "EF"})
		}

	case risk.KindAutoAction:
		// When the trigger lives on a structural object the wiring keys
		// are stripped instead of clearing the object itself.
		if protected[ind.Ref] || isStructural(obj) {
			if dict, ok := obj.(*raw.DictObj); ok {
				dict.Delete(raw.NameObj{Val: "OpenAction"})
				dict.Delete(raw.NameObj{Val: "AA"})
			}
			return nil
		}
		clearObject(doc, ind.Ref, obj)

	case risk.KindSuspiciousStream:
		if protected[ind.Ref] {
			return fmt.Errorf("%w: suspicious stream is a structural object %s", ErrIrreparable, ind.Ref)
		}
		doc.Objects[ind.Ref] = raw.NullObj{}
	}
	return nil
}

func clearObject(doc *raw.Document, ref raw.ObjectRef, obj raw.Object) {
	switch o := obj.(type) {
	case *raw.DictObj:
		o.Clear()
	case *raw.StreamObj:
		doc.Objects[ref] = raw.Dict()
	default:
		doc.Objects[ref] = raw.NullObj{}
	}
}

// actionHost reports whether the flagged dictionary only carries the
// offending action under a trigger key rather than being the action
// dictionary itself.
func actionHost(obj raw.Object) (*raw.DictObj, bool) {
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, false
	}
	if s, _ := dict.GetName("S"); s == "JavaScript" || s == "Launch" {
		return nil, false
	}
	if _, ok := dict.Get(raw.NameObj{Val: "JS"}); ok {
		return nil, false
	}
	for _, key := range []string{"A", "AA", "OpenAction"} {
		if _, ok := dict.Get(raw.NameObj{Val: key}); ok {
			return dict, true
		}
	}
	return nil, false
}

func isStructural(obj raw.Object) bool {
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return false
	}
	switch t, _ := dict.GetName("Type"); t {
	case "Catalog", "Pages", "Page", "Annot":
		return true
	}
	// Form fields carry /T or /Kids instead of /Type.
	if _, ok := dict.Get(raw.NameObj{Val: "T"}); ok {
		return true
	}
	return false
}

// stripTriggerWiring removes every entry point that would re-trigger a
// rule on the neutralized objects: the catalog /OpenAction, /AA on any
// object, file-specification /EF entries, and the name-tree branch
// that registers document-level scripts.
func stripTriggerWiring(doc *raw.Document) {
	for _, ref := range doc.SortedRefs() {
		dict, ok := doc.Objects[ref].(*raw.DictObj)
		if !ok {
			continue
		}
		dict.Delete(raw.NameObj{Val: "AA"})
		dict.Delete(raw.NameObj{Val: "EF"})
		if t, _ := dict.GetName("Type"); t == "Catalog" {
			dict.Delete(raw.NameObj{Val: "OpenAction"})
			if namesObj, ok := dict.Get(raw.NameObj{Val: "Names"}); ok {
				if names, ok := doc.Resolve(namesObj).(*raw.DictObj); ok {
					names.Delete(raw.NameObj{Val: "JavaScript"})
				}
			}
		}
	}
}
