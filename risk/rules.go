package risk

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"pdfguard/filters"
	"pdfguard/ir/raw"
	"pdfguard/observability"
	"pdfguard/scripting"
)

// RuleConfig adjusts a single rule. The zero value keeps defaults.
type RuleConfig struct {
	Disabled    bool
	Severity    Severity
	SeveritySet bool
}

type EngineConfig struct {
	Pipeline  *filters.Pipeline
	Inspector scripting.Inspector
	Logger    observability.Logger
	Rules     map[Kind]RuleConfig
}

// Engine evaluates the rule set over a parsed document. Evaluation is
// read-only and deterministic: identical bytes yield identical reports.
type Engine struct {
	cfg EngineConfig
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Pipeline == nil {
		cfg.Pipeline = filters.NewDefaultPipeline(filters.Limits{})
	}
	if cfg.Inspector == nil {
		cfg.Inspector = scripting.NewInspector()
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return &Engine{cfg: cfg}
}

type dedupKey struct {
	kind Kind
	ref  raw.ObjectRef
}

// Scan walks every object in ascending reference order and applies all
// rules; every applicable rule fires and contributes its own indicator.
func (e *Engine) Scan(ctx context.Context, doc *raw.Document, documentID string) (Report, error) {
	var indicators []Indicator
	seen := make(map[dedupKey]bool)

	add := func(kind Kind, ref raw.ObjectRef, description string) {
		rc := e.cfg.Rules[kind]
		if rc.Disabled {
			return
		}
		key := dedupKey{kind: kind, ref: ref}
		if seen[key] {
			return
		}
		seen[key] = true
		severity := DefaultSeverity(kind)
		if rc.SeveritySet {
			severity = rc.Severity
		}
		indicators = append(indicators, Indicator{Kind: kind, Ref: ref, Description: description, Severity: severity})
	}

	for _, ref := range doc.SortedRefs() {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		switch obj := doc.Objects[ref].(type) {
		case *raw.DictObj:
			e.checkDict(ctx, doc, ref, obj, add)
		case *raw.StreamObj:
			e.checkDict(ctx, doc, ref, obj.Dict, add)
			e.checkStream(ctx, doc, ref, obj, add)
		}
	}

	sortIndicators(indicators)
	report := Report{
		DocumentID: documentID,
		Indicators: indicators,
		Verdict:    DeriveVerdict(indicators),
	}
	e.cfg.Logger.Info("scan evaluated",
		observability.String("document", documentID),
		observability.Int(observability.MetricIndicatorCount, len(indicators)),
		observability.String("verdict", report.Verdict.String()))
	return report, nil
}

func (e *Engine) checkDict(ctx context.Context, doc *raw.Document, ref raw.ObjectRef, dict *raw.DictObj, add func(Kind, raw.ObjectRef, string)) {
	if dict == nil {
		return
	}
	subtype, _ := dict.GetName("S")

	if subtype == "JavaScript" || hasKey(dict, "JS") {
		add(KindEmbeddedJavaScript, ref, e.describeJavaScript(ctx, doc, dict))
	}

	if subtype == "Launch" {
		add(KindLaunchAction, ref, describeLaunch(doc, dict))
	}

	// Action dictionaries may be written directly under their trigger
	// key instead of as indirect objects; those never show up in the
	// object walk on their own, so the action rules recurse into them
	// here, attributing the indicator to the containing object.
	if aObj, ok := dict.Get(raw.NameObj{Val: "A"}); ok {
		e.checkInlineAction(ctx, doc, ref, aObj, add, 0)
	}
	if subtype != "" {
		if next, ok := dict.Get(raw.NameObj{Val: "Next"}); ok {
			e.checkInlineAction(ctx, doc, ref, next, add, 0)
		}
	}

	if t, _ := dict.GetName("Type"); t == "EmbeddedFile" {
		add(KindEmbeddedFile, ref, "embedded file stream")
	}

	// A file specification wires an embedded payload into the document.
	if efObj, ok := dict.Get(raw.NameObj{Val: "EF"}); ok {
		if ef, ok := doc.Resolve(efObj).(*raw.DictObj); ok {
			name := filespecName(dict)
			for _, key := range []string{"F", "UF"} {
				v, ok := ef.Get(raw.NameObj{Val: key})
				if !ok {
					continue
				}
				target := ref
				if r, ok := v.(raw.RefObj); ok {
					target = r.R
				}
				desc := "embedded file stream"
				if name != "" {
					desc = fmt.Sprintf("embedded file %q", name)
				}
				add(KindEmbeddedFile, target, desc)
			}
		}
	}

	// /AA holds event-triggered actions (page open, field format, ...).
	if aaObj, ok := dict.Get(raw.NameObj{Val: "AA"}); ok {
		if aa, ok := doc.Resolve(aaObj).(*raw.DictObj); ok {
			for _, event := range sortedKeys(aa) {
				v, _ := aa.Get(raw.NameObj{Val: event})
				target := ref
				if r, ok := v.(raw.RefObj); ok {
					target = r.R
				}
				add(KindAutoAction, target, fmt.Sprintf("automatic trigger /AA (%s event)", event))
				e.checkInlineAction(ctx, doc, ref, v, add, 0)
			}
		}
	}

	if t, _ := dict.GetName("Type"); t == "Catalog" {
		if oaObj, ok := dict.Get(raw.NameObj{Val: "OpenAction"}); ok {
			target := ref
			if r, ok := oaObj.(raw.RefObj); ok {
				target = r.R
			}
			// A destination array is plain navigation, not an action.
			if _, isArray := doc.Resolve(oaObj).(*raw.ArrayObj); !isArray {
				add(KindAutoAction, target, "document-open action (/OpenAction)")
				e.checkInlineAction(ctx, doc, ref, oaObj, add, 0)
			}
		}
	}
}

// maxActionChain bounds /Next recursion so a self-referential chain of
// direct dictionaries cannot loop the walk.
const maxActionChain = 8

// checkInlineAction applies the JavaScript and Launch rules to an
// action written directly inside its trigger value. Indirect actions
// are skipped: they are objects of their own and the walk reaches
// them at their own reference.
func (e *Engine) checkInlineAction(ctx context.Context, doc *raw.Document, ref raw.ObjectRef, v raw.Object, add func(Kind, raw.ObjectRef, string), depth int) {
	if depth > maxActionChain {
		return
	}
	switch action := v.(type) {
	case *raw.ArrayObj:
		for i := 0; i < action.Len(); i++ {
			item, _ := action.Get(i)
			e.checkInlineAction(ctx, doc, ref, item, add, depth+1)
		}
	case *raw.DictObj:
		s, _ := action.GetName("S")
		if s == "JavaScript" || hasKey(action, "JS") {
			add(KindEmbeddedJavaScript, ref, e.describeJavaScript(ctx, doc, action))
		}
		if s == "Launch" {
			add(KindLaunchAction, ref, describeLaunch(doc, action))
		}
		if next, ok := action.Get(raw.NameObj{Val: "Next"}); ok {
			e.checkInlineAction(ctx, doc, ref, next, add, depth+1)
		}
	}
}

func (e *Engine) checkStream(ctx context.Context, doc *raw.Document, ref raw.ObjectRef, stream *raw.StreamObj, add func(Kind, raw.ObjectRef, string)) {
	names, parms := filtersForStream(doc, stream.Dict)

	for _, name := range names {
		if !e.cfg.Pipeline.Known(name) {
			add(KindSuspiciousStream, ref, fmt.Sprintf("stream declares unknown filter /%s", name))
			return
		}
	}
	for _, name := range names {
		if filters.Passthrough(name) {
			// Image payloads are opaque to the content check.
			return
		}
	}

	decoded := stream.Data
	if len(names) > 0 {
		out, err := e.cfg.Pipeline.Decode(ctx, stream.Data, names, parms)
		if err != nil {
			add(KindSuspiciousStream, ref, fmt.Sprintf("stream filter chain failed to decode: %v", err))
			return
		}
		decoded = out
	}
	if sig := executableSignature(decoded); sig != "" {
		add(KindSuspiciousStream, ref, fmt.Sprintf("decoded stream begins with %s signature", sig))
	}
}

// describeJavaScript pulls the script source out of /JS and enriches
// the indicator with static-analysis findings when any exist.
func (e *Engine) describeJavaScript(ctx context.Context, doc *raw.Document, dict *raw.DictObj) string {
	source := e.scriptSource(ctx, doc, dict)
	if len(source) == 0 {
		return "JavaScript action"
	}
	insp, err := e.cfg.Inspector.Inspect(ctx, source)
	if err != nil || !insp.Suspicious() {
		return "JavaScript action"
	}
	descs := make([]string, 0, len(insp.Findings))
	for _, f := range insp.Findings {
		descs = append(descs, f.Description)
	}
	if len(descs) > 3 {
		descs = descs[:3]
	}
	return "JavaScript action (" + strings.Join(descs, "; ") + ")"
}

func (e *Engine) scriptSource(ctx context.Context, doc *raw.Document, dict *raw.DictObj) []byte {
	v, ok := dict.Get(raw.NameObj{Val: "JS"})
	if !ok {
		return nil
	}
	switch src := doc.Resolve(v).(type) {
	case raw.StringObj:
		return src.Bytes
	case *raw.StreamObj:
		names, parms := filtersForStream(doc, src.Dict)
		out, err := e.cfg.Pipeline.Decode(ctx, src.Data, names, parms)
		if err != nil {
			return src.Data
		}
		return out
	}
	return nil
}

func describeLaunch(doc *raw.Document, dict *raw.DictObj) string {
	v, ok := dict.Get(raw.NameObj{Val: "F"})
	if !ok {
		return "launch action"
	}
	switch f := doc.Resolve(v).(type) {
	case raw.StringObj:
		return fmt.Sprintf("launch action targeting %q", string(f.Bytes))
	case *raw.DictObj:
		if name := filespecName(f); name != "" {
			return fmt.Sprintf("launch action targeting %q", name)
		}
	}
	return "launch action"
}

// filtersForStream resolves /Filter and /DecodeParms into parallel
// slices; both entries may be single values or arrays.
func filtersForStream(doc *raw.Document, dict *raw.DictObj) ([]string, []raw.Dictionary) {
	if dict == nil {
		return nil, nil
	}
	var names []string
	switch f := doc.Resolve(mustGet(dict, "Filter")).(type) {
	case raw.NameObj:
		names = []string{f.Val}
	case *raw.ArrayObj:
		for i := 0; i < f.Len(); i++ {
			item, _ := f.Get(i)
			if n, ok := doc.Resolve(item).(raw.NameObj); ok {
				names = append(names, n.Val)
			}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	parms := make([]raw.Dictionary, len(names))
	switch p := doc.Resolve(mustGet(dict, "DecodeParms")).(type) {
	case *raw.DictObj:
		parms[0] = p
	case *raw.ArrayObj:
		for i := 0; i < p.Len() && i < len(parms); i++ {
			item, _ := p.Get(i)
			if d, ok := doc.Resolve(item).(*raw.DictObj); ok {
				parms[i] = d
			}
		}
	}
	return names, parms
}

func mustGet(dict *raw.DictObj, key string) raw.Object {
	v, ok := dict.Get(raw.NameObj{Val: key})
	if !ok {
		return raw.NullObj{}
	}
	return v
}

func hasKey(dict *raw.DictObj, key string) bool {
	_, ok := dict.Get(raw.NameObj{Val: key})
	return ok
}

func filespecName(dict *raw.DictObj) string {
	for _, key := range []string{"UF", "F"} {
		if v, ok := dict.Get(raw.NameObj{Val: key}); ok {
			if s, ok := v.(raw.StringObj); ok {
				return string(s.Bytes)
			}
		}
	}
	return ""
}

func sortedKeys(dict *raw.DictObj) []string {
	keys := make([]string, 0, dict.Len())
	for _, k := range dict.Keys() {
		keys = append(keys, k.Value())
	}
	sort.Strings(keys)
	return keys
}

var executableMagics = []struct {
	prefix []byte
	name   string
}{
	{[]byte{'M', 'Z'}, "DOS/PE executable"},
	{[]byte{0x7F, 'E', 'L', 'F'}, "ELF executable"},
	{[]byte{'#', '!'}, "shebang script"},
	{[]byte{0xFE, 0xED, 0xFA, 0xCE}, "Mach-O executable"},
	{[]byte{0xFE, 0xED, 0xFA, 0xCF}, "Mach-O executable"},
	{[]byte{0xCE, 0xFA, 0xED, 0xFE}, "Mach-O executable"},
	{[]byte{0xCF, 0xFA, 0xED, 0xFE}, "Mach-O executable"},
	{[]byte{'P', 'K', 0x03, 0x04}, "ZIP archive"},
}

func executableSignature(data []byte) string {
	for _, m := range executableMagics {
		if bytes.HasPrefix(data, m.prefix) {
			return m.name
		}
	}
	return ""
}
