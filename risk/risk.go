// Package risk classifies documents by structural indicators of active
// content. The rule set is evaluated over a parsed object graph; no
// embedded logic is ever executed.
package risk

import (
	"sort"

	"pdfguard/ir/raw"
)

// Kind is the closed enumeration of indicator categories.
type Kind int

const (
	KindEmbeddedJavaScript Kind = iota
	KindLaunchAction
	KindEmbeddedFile
	KindAutoAction
	KindSuspiciousStream
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindEmbeddedJavaScript:
		return "EmbeddedJavaScript"
	case KindLaunchAction:
		return "LaunchAction"
	case KindEmbeddedFile:
		return "EmbeddedFile"
	case KindAutoAction:
		return "AutoAction"
	case KindSuspiciousStream:
		return "SuspiciousStream"
	default:
		return "Other"
	}
}

type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "High"
	case SeverityMedium:
		return "Medium"
	default:
		return "Low"
	}
}

// DefaultSeverity returns the built-in severity for a kind.
func DefaultSeverity(k Kind) Severity {
	switch k {
	case KindEmbeddedJavaScript, KindLaunchAction:
		return SeverityHigh
	case KindEmbeddedFile, KindAutoAction:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Indicator records one flagged construct.
type Indicator struct {
	Kind        Kind
	Ref         raw.ObjectRef
	Description string
	Severity    Severity
}

type Verdict int

const (
	VerdictClean Verdict = iota
	VerdictWarning
	VerdictDangerous
)

func (v Verdict) String() string {
	switch v {
	case VerdictDangerous:
		return "Dangerous"
	case VerdictWarning:
		return "Warning"
	default:
		return "Clean"
	}
}

// Report is the primary scan output.
type Report struct {
	DocumentID string
	Indicators []Indicator
	Verdict    Verdict
}

// DeriveVerdict maps indicators to the overall verdict: Clean iff
// empty, Dangerous iff any High, Warning otherwise.
func DeriveVerdict(indicators []Indicator) Verdict {
	if len(indicators) == 0 {
		return VerdictClean
	}
	for _, ind := range indicators {
		if ind.Severity == SeverityHigh {
			return VerdictDangerous
		}
	}
	return VerdictWarning
}

// sortIndicators orders by object number ascending, generation and
// kind breaking ties. Report output depends on this being total.
func sortIndicators(indicators []Indicator) {
	sort.SliceStable(indicators, func(i, j int) bool {
		a, b := indicators[i], indicators[j]
		if a.Ref.Num != b.Ref.Num {
			return a.Ref.Num < b.Ref.Num
		}
		if a.Ref.Gen != b.Ref.Gen {
			return a.Ref.Gen < b.Ref.Gen
		}
		return a.Kind < b.Kind
	})
}
