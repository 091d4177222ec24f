// Package scripting statically inspects JavaScript payloads found in
// documents. Nothing is ever executed; sources are compiled for syntax
// validation and matched against known hostile API usage.
package scripting

import (
	"context"
	"strings"
)

// Finding names one suspicious construct in a script.
type Finding struct {
	Pattern     string
	Description string
}

// Inspection is the result of statically analyzing one script.
type Inspection struct {
	// Compiles is false when the source is not valid JavaScript. Invalid
	// sources are still pattern-matched: obfuscated payloads often break
	// strict parsing on purpose.
	Compiles     bool
	CompileError string
	Findings     []Finding
}

// Suspicious reports whether the inspection found anything hostile.
func (i Inspection) Suspicious() bool { return len(i.Findings) > 0 }

type Inspector interface {
	Inspect(ctx context.Context, source []byte) (Inspection, error)
}

// hostilePatterns maps substring markers to descriptions. Matching is
// case-sensitive on purpose: these are API identifiers.
var hostilePatterns = []Finding{
	{"eval(", "dynamic code evaluation"},
	{"unescape(", "legacy decoder commonly used to build shellcode strings"},
	{"String.fromCharCode", "character-code string assembly"},
	{"exportDataObject", "writes an embedded file to disk"},
	{"launchURL", "opens an external URL"},
	{"submitForm", "submits document data to a remote endpoint"},
	{"getURL", "fetches a remote resource"},
	{"Collab.collectEmailInfo", "known exploit vector (CVE-2007-5659)"},
	{"util.printf", "known exploit vector (CVE-2008-2992)"},
	{"getAnnots", "known exploit vector (CVE-2009-1492)"},
	{"media.newPlayer", "known exploit vector (CVE-2009-4324)"},
	{"spell.customDictionaryOpen", "known exploit vector (CVE-2009-1493)"},
	{"%u9090", "NOP-sled escape sequence"},
	{"%u0c0c", "heap-spray address pattern"},
}

func matchPatterns(source string) []Finding {
	var findings []Finding
	for _, p := range hostilePatterns {
		if strings.Contains(source, p.Pattern) {
			findings = append(findings, p)
		}
	}
	return findings
}
