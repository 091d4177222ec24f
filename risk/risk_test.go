package risk

import (
	"bytes"
	"compress/zlib"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfguard/ir/raw"
)

func newDoc() *raw.Document {
	return &raw.Document{
		Objects: make(map[raw.ObjectRef]raw.Object),
		Trailer: raw.Dict(),
	}
}

func put(doc *raw.Document, num int, obj raw.Object) raw.ObjectRef {
	ref := raw.ObjectRef{Num: num}
	doc.Objects[ref] = obj
	return ref
}

func scan(t *testing.T, doc *raw.Document) Report {
	t.Helper()
	report, err := NewEngine(EngineConfig{}).Scan(context.Background(), doc, "test-doc")
	require.NoError(t, err)
	return report
}

func TestScan_CleanDocument(t *testing.T) {
	doc := newDoc()
	cat := raw.Dict()
	cat.Set(raw.NameObj{Val: "Type"}, raw.NameLiteral("Catalog"))
	cat.Set(raw.NameObj{Val: "Pages"}, raw.Ref(2, 0))
	put(doc, 1, cat)
	pages := raw.Dict()
	pages.Set(raw.NameObj{Val: "Type"}, raw.NameLiteral("Pages"))
	put(doc, 2, pages)

	report := scan(t, doc)
	assert.Equal(t, VerdictClean, report.Verdict)
	assert.Empty(t, report.Indicators)
}

func TestScan_JavaScriptAction(t *testing.T) {
	doc := newDoc()
	js := raw.Dict()
	js.Set(raw.NameObj{Val: "S"}, raw.NameLiteral("JavaScript"))
	js.Set(raw.NameObj{Val: "JS"}, raw.Str([]byte(`app.alert("x");`)))
	put(doc, 3, js)

	report := scan(t, doc)
	require.Len(t, report.Indicators, 1)
	ind := report.Indicators[0]
	assert.Equal(t, KindEmbeddedJavaScript, ind.Kind)
	assert.Equal(t, SeverityHigh, ind.Severity)
	assert.Equal(t, 3, ind.Ref.Num)
	assert.Equal(t, VerdictDangerous, report.Verdict)
}

func TestScan_JavaScriptFindingsEnrichDescription(t *testing.T) {
	doc := newDoc()
	js := raw.Dict()
	js.Set(raw.NameObj{Val: "S"}, raw.NameLiteral("JavaScript"))
	js.Set(raw.NameObj{Val: "JS"}, raw.Str([]byte(`eval(unescape("%u9090"));`)))
	put(doc, 1, js)

	report := scan(t, doc)
	require.Len(t, report.Indicators, 1)
	assert.Contains(t, report.Indicators[0].Description, "dynamic code evaluation")
}

func TestScan_OpenActionToJavaScript_SharedRef(t *testing.T) {
	// /OpenAction pointing at a JavaScript action: both indicators must
	// be attributed to the action object itself.
	doc := newDoc()
	cat := raw.Dict()
	cat.Set(raw.NameObj{Val: "Type"}, raw.NameLiteral("Catalog"))
	cat.Set(raw.NameObj{Val: "OpenAction"}, raw.Ref(5, 0))
	put(doc, 1, cat)
	page := raw.Dict()
	page.Set(raw.NameObj{Val: "Type"}, raw.NameLiteral("Page"))
	put(doc, 2, page)
	js := raw.Dict()
	js.Set(raw.NameObj{Val: "S"}, raw.NameLiteral("JavaScript"))
	js.Set(raw.NameObj{Val: "JS"}, raw.Str([]byte("1")))
	put(doc, 5, js)

	report := scan(t, doc)
	require.Len(t, report.Indicators, 2)
	assert.Equal(t, KindEmbeddedJavaScript, report.Indicators[0].Kind)
	assert.Equal(t, KindAutoAction, report.Indicators[1].Kind)
	assert.Equal(t, report.Indicators[0].Ref, report.Indicators[1].Ref)
	assert.Equal(t, 5, report.Indicators[0].Ref.Num)
	assert.Equal(t, VerdictDangerous, report.Verdict)
}

func TestScan_InlineAnnotationJavaScript(t *testing.T) {
	// The action lives directly under /A, so it never appears in the
	// object walk on its own; the rule must find it through the annot.
	doc := newDoc()
	annot := raw.Dict()
	annot.Set(raw.NameObj{Val: "Type"}, raw.NameLiteral("Annot"))
	a := raw.Dict()
	a.Set(raw.NameObj{Val: "S"}, raw.NameLiteral("JavaScript"))
	a.Set(raw.NameObj{Val: "JS"}, raw.Str([]byte(`eval(unescape("%u9090"));`)))
	annot.Set(raw.NameObj{Val: "A"}, a)
	put(doc, 4, annot)

	report := scan(t, doc)
	require.Len(t, report.Indicators, 1)
	ind := report.Indicators[0]
	assert.Equal(t, KindEmbeddedJavaScript, ind.Kind)
	assert.Equal(t, 4, ind.Ref.Num)
	assert.Contains(t, ind.Description, "dynamic code evaluation")
	assert.Equal(t, VerdictDangerous, report.Verdict)
}

func TestScan_InlineOpenActionJavaScript(t *testing.T) {
	doc := newDoc()
	cat := raw.Dict()
	cat.Set(raw.NameObj{Val: "Type"}, raw.NameLiteral("Catalog"))
	oa := raw.Dict()
	oa.Set(raw.NameObj{Val: "S"}, raw.NameLiteral("JavaScript"))
	oa.Set(raw.NameObj{Val: "JS"}, raw.Str([]byte("1")))
	cat.Set(raw.NameObj{Val: "OpenAction"}, oa)
	put(doc, 1, cat)

	report := scan(t, doc)
	require.Len(t, report.Indicators, 2)
	assert.Equal(t, KindEmbeddedJavaScript, report.Indicators[0].Kind)
	assert.Equal(t, KindAutoAction, report.Indicators[1].Kind)
	assert.Equal(t, 1, report.Indicators[0].Ref.Num)
	assert.Equal(t, 1, report.Indicators[1].Ref.Num)
	assert.Equal(t, VerdictDangerous, report.Verdict)
}

func TestScan_InlineAAEventLaunch(t *testing.T) {
	doc := newDoc()
	page := raw.Dict()
	page.Set(raw.NameObj{Val: "Type"}, raw.NameLiteral("Page"))
	launch := raw.Dict()
	launch.Set(raw.NameObj{Val: "S"}, raw.NameLiteral("Launch"))
	launch.Set(raw.NameObj{Val: "F"}, raw.Str([]byte("calc.exe")))
	aa := raw.Dict()
	aa.Set(raw.NameObj{Val: "O"}, launch)
	page.Set(raw.NameObj{Val: "AA"}, aa)
	put(doc, 3, page)

	report := scan(t, doc)
	require.Len(t, report.Indicators, 2)
	assert.Equal(t, KindLaunchAction, report.Indicators[0].Kind)
	assert.Contains(t, report.Indicators[0].Description, "calc.exe")
	assert.Equal(t, KindAutoAction, report.Indicators[1].Kind)
	assert.Equal(t, 3, report.Indicators[0].Ref.Num)
	assert.Equal(t, VerdictDangerous, report.Verdict)
}

func TestScan_NextChainJavaScript(t *testing.T) {
	// A benign first action can chain to a hostile one via /Next.
	doc := newDoc()
	goTo := raw.Dict()
	goTo.Set(raw.NameObj{Val: "S"}, raw.NameLiteral("GoTo"))
	js := raw.Dict()
	js.Set(raw.NameObj{Val: "S"}, raw.NameLiteral("JavaScript"))
	js.Set(raw.NameObj{Val: "JS"}, raw.Str([]byte("1")))
	goTo.Set(raw.NameObj{Val: "Next"}, js)
	put(doc, 2, goTo)

	report := scan(t, doc)
	require.Len(t, report.Indicators, 1)
	assert.Equal(t, KindEmbeddedJavaScript, report.Indicators[0].Kind)
	assert.Equal(t, 2, report.Indicators[0].Ref.Num)
	assert.Equal(t, VerdictDangerous, report.Verdict)
}

func TestScan_OpenActionDestinationArrayNotFlagged(t *testing.T) {
	doc := newDoc()
	cat := raw.Dict()
	cat.Set(raw.NameObj{Val: "Type"}, raw.NameLiteral("Catalog"))
	cat.Set(raw.NameObj{Val: "OpenAction"}, raw.NewArray(raw.Ref(2, 0), raw.NameLiteral("Fit")))
	put(doc, 1, cat)
	put(doc, 2, raw.Dict())

	report := scan(t, doc)
	assert.Equal(t, VerdictClean, report.Verdict)
}

func TestScan_LaunchAction(t *testing.T) {
	doc := newDoc()
	launch := raw.Dict()
	launch.Set(raw.NameObj{Val: "S"}, raw.NameLiteral("Launch"))
	launch.Set(raw.NameObj{Val: "F"}, raw.Str([]byte("cmd.exe")))
	put(doc, 4, launch)

	report := scan(t, doc)
	require.Len(t, report.Indicators, 1)
	assert.Equal(t, KindLaunchAction, report.Indicators[0].Kind)
	assert.Equal(t, SeverityHigh, report.Indicators[0].Severity)
	assert.Contains(t, report.Indicators[0].Description, "cmd.exe")
	assert.Equal(t, VerdictDangerous, report.Verdict)
}

func TestScan_EmbeddedFile(t *testing.T) {
	doc := newDoc()
	fsDict := raw.Dict()
	fsDict.Set(raw.NameObj{Val: "Type"}, raw.NameLiteral("Filespec"))
	fsDict.Set(raw.NameObj{Val: "F"}, raw.Str([]byte("payload.bin")))
	ef := raw.Dict()
	ef.Set(raw.NameObj{Val: "F"}, raw.Ref(3, 0))
	fsDict.Set(raw.NameObj{Val: "EF"}, ef)
	put(doc, 2, fsDict)

	efStream := raw.Dict()
	efStream.Set(raw.NameObj{Val: "Type"}, raw.NameLiteral("EmbeddedFile"))
	put(doc, 3, raw.NewStream(efStream, []byte("not executable")))

	report := scan(t, doc)
	require.Len(t, report.Indicators, 1)
	ind := report.Indicators[0]
	assert.Equal(t, KindEmbeddedFile, ind.Kind)
	assert.Equal(t, 3, ind.Ref.Num)
	assert.Equal(t, SeverityMedium, ind.Severity)
	assert.Equal(t, VerdictWarning, report.Verdict)
}

func TestScan_EmbeddedExecutableAlsoSuspicious(t *testing.T) {
	doc := newDoc()
	efStream := raw.Dict()
	efStream.Set(raw.NameObj{Val: "Type"}, raw.NameLiteral("EmbeddedFile"))
	put(doc, 3, raw.NewStream(efStream, []byte("MZ\x90\x00executable body")))

	report := scan(t, doc)
	require.Len(t, report.Indicators, 2)
	assert.Equal(t, KindEmbeddedFile, report.Indicators[0].Kind)
	assert.Equal(t, KindSuspiciousStream, report.Indicators[1].Kind)
	assert.Contains(t, report.Indicators[1].Description, "DOS/PE")
}

func TestScan_AutoActionAA(t *testing.T) {
	doc := newDoc()
	field := raw.Dict()
	aa := raw.Dict()
	aa.Set(raw.NameObj{Val: "K"}, raw.Ref(7, 0))
	field.Set(raw.NameObj{Val: "AA"}, aa)
	put(doc, 2, field)
	action := raw.Dict()
	action.Set(raw.NameObj{Val: "S"}, raw.NameLiteral("JavaScript"))
	action.Set(raw.NameObj{Val: "JS"}, raw.Str([]byte("1")))
	put(doc, 7, action)

	report := scan(t, doc)
	require.Len(t, report.Indicators, 2)
	assert.Equal(t, 7, report.Indicators[0].Ref.Num)
	assert.Equal(t, 7, report.Indicators[1].Ref.Num)
}

func TestScan_UnknownFilterSuspicious(t *testing.T) {
	doc := newDoc()
	sd := raw.Dict()
	sd.Set(raw.NameObj{Val: "Filter"}, raw.NameLiteral("MadeUpDecode"))
	put(doc, 2, raw.NewStream(sd, []byte("whatever")))

	report := scan(t, doc)
	require.Len(t, report.Indicators, 1)
	assert.Equal(t, KindSuspiciousStream, report.Indicators[0].Kind)
	assert.Equal(t, SeverityLow, report.Indicators[0].Severity)
	assert.Equal(t, VerdictWarning, report.Verdict)
}

func TestScan_CorruptFlateSuspicious(t *testing.T) {
	doc := newDoc()
	sd := raw.Dict()
	sd.Set(raw.NameObj{Val: "Filter"}, raw.NameLiteral("FlateDecode"))
	put(doc, 2, raw.NewStream(sd, []byte("\x00\x01 not deflate data")))

	report := scan(t, doc)
	require.Len(t, report.Indicators, 1)
	assert.Equal(t, KindSuspiciousStream, report.Indicators[0].Kind)
	assert.Contains(t, report.Indicators[0].Description, "failed to decode")
}

func TestScan_ValidFlateContentStreamClean(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write([]byte("BT /F1 24 Tf (hi) Tj ET"))
	_ = w.Close()

	doc := newDoc()
	sd := raw.Dict()
	sd.Set(raw.NameObj{Val: "Filter"}, raw.NameLiteral("FlateDecode"))
	put(doc, 2, raw.NewStream(sd, buf.Bytes()))

	report := scan(t, doc)
	assert.Equal(t, VerdictClean, report.Verdict)
}

func TestScan_ImageStreamSkipped(t *testing.T) {
	doc := newDoc()
	sd := raw.Dict()
	sd.Set(raw.NameObj{Val: "Filter"}, raw.NameLiteral("DCTDecode"))
	put(doc, 2, raw.NewStream(sd, []byte{0xFF, 0xD8, 0xFF, 0xE0, 'M', 'Z'}))

	report := scan(t, doc)
	assert.Equal(t, VerdictClean, report.Verdict)
}

func TestScan_Deterministic(t *testing.T) {
	doc := newDoc()
	for num := 10; num >= 1; num-- {
		js := raw.Dict()
		js.Set(raw.NameObj{Val: "S"}, raw.NameLiteral("JavaScript"))
		js.Set(raw.NameObj{Val: "JS"}, raw.Str([]byte("1")))
		put(doc, num, js)
	}

	first := scan(t, doc)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, scan(t, doc))
	}
	for i, ind := range first.Indicators {
		assert.Equal(t, i+1, ind.Ref.Num, "indicators must ascend by object number")
	}
}

func TestScan_RuleOverrides(t *testing.T) {
	doc := newDoc()
	js := raw.Dict()
	js.Set(raw.NameObj{Val: "S"}, raw.NameLiteral("JavaScript"))
	js.Set(raw.NameObj{Val: "JS"}, raw.Str([]byte("1")))
	put(doc, 1, js)
	launch := raw.Dict()
	launch.Set(raw.NameObj{Val: "S"}, raw.NameLiteral("Launch"))
	put(doc, 2, launch)

	engine := NewEngine(EngineConfig{Rules: map[Kind]RuleConfig{
		KindLaunchAction:       {Disabled: true},
		KindEmbeddedJavaScript: {Severity: SeverityMedium, SeveritySet: true},
	}})
	report, err := engine.Scan(context.Background(), doc, "doc")
	require.NoError(t, err)
	require.Len(t, report.Indicators, 1)
	assert.Equal(t, SeverityMedium, report.Indicators[0].Severity)
	assert.Equal(t, VerdictWarning, report.Verdict)
}

func TestDeriveVerdict(t *testing.T) {
	assert.Equal(t, VerdictClean, DeriveVerdict(nil))
	assert.Equal(t, VerdictWarning, DeriveVerdict([]Indicator{{Severity: SeverityLow}}))
	assert.Equal(t, VerdictWarning, DeriveVerdict([]Indicator{{Severity: SeverityMedium}}))
	assert.Equal(t, VerdictDangerous, DeriveVerdict([]Indicator{{Severity: SeverityLow}, {Severity: SeverityHigh}}))
}
