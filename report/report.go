// Package report renders scan results for consumption by UIs and
// tooling: structured JSON, Markdown, and HTML derived from it.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"pdfguard/risk"
)

// View is the externally visible shape of a scan report.
type View struct {
	DocumentID string          `json:"document_id"`
	Verdict    string          `json:"verdict"`
	Indicators []IndicatorView `json:"indicators"`
}

type IndicatorView struct {
	Kind        string `json:"kind"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

func FromScan(r risk.Report) View {
	v := View{
		DocumentID: r.DocumentID,
		Verdict:    r.Verdict.String(),
		Indicators: make([]IndicatorView, 0, len(r.Indicators)),
	}
	for _, ind := range r.Indicators {
		v.Indicators = append(v.Indicators, IndicatorView{
			Kind:        ind.Kind.String(),
			Location:    ind.Ref.String(),
			Description: ind.Description,
			Severity:    ind.Severity.String(),
		})
	}
	return v
}

func (v View) JSON() ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// Markdown renders a report suitable for terminals and chat surfaces.
func (v View) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Scan report for %s\n\n", v.DocumentID)
	fmt.Fprintf(&b, "**Verdict: %s**\n\n", v.Verdict)
	if len(v.Indicators) == 0 {
		b.WriteString("No risk indicators found.\n")
		return b.String()
	}
	b.WriteString("| Object | Kind | Severity | Description |\n")
	b.WriteString("|--------|------|----------|-------------|\n")
	for _, ind := range v.Indicators {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			ind.Location, ind.Kind, ind.Severity, escapeCell(ind.Description))
	}
	return b.String()
}

// HTML converts the Markdown rendering.
func (v View) HTML() ([]byte, error) {
	var out bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	if err := md.Convert([]byte(v.Markdown()), &out); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return out.Bytes(), nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
