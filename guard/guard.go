// Package guard is the facade over the scan pipeline: size checks,
// parsing, rule evaluation, sanitization, and optional summarization
// behind one entry point.
package guard

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"pdfguard/filters"
	"pdfguard/observability"
	"pdfguard/parser"
	"pdfguard/policy"
	"pdfguard/provider"
	"pdfguard/report"
	"pdfguard/risk"
	"pdfguard/sanitize"
	"pdfguard/security"
)

// ErrUploadTooLarge is returned before any parsing when the input
// exceeds the configured upload limit.
var ErrUploadTooLarge = errors.New("upload exceeds size limit")

type Config struct {
	Policy   policy.Policy
	Logger   observability.Logger
	Provider provider.Generator
}

type Guard struct {
	limits    security.Limits
	parser    *parser.DocumentParser
	engine    *risk.Engine
	sanitizer *sanitize.Sanitizer
	logger    observability.Logger
	generator provider.Generator
}

func New(cfg Config) (*Guard, error) {
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	rules, err := cfg.Policy.RuleConfigs()
	if err != nil {
		return nil, err
	}
	limits := cfg.Policy.SecurityLimits()

	pipeline := filters.NewDefaultPipeline(filters.Limits{
		MaxDecompressedSize: limits.MaxDecompressedSize,
	})
	docParser := parser.New(parser.Config{Limits: limits, Logger: cfg.Logger})
	engine := risk.NewEngine(risk.EngineConfig{
		Pipeline: pipeline,
		Logger:   cfg.Logger,
		Rules:    rules,
	})
	sanitizer := sanitize.New(sanitize.Config{
		Parser: docParser,
		Engine: engine,
		Logger: cfg.Logger,
	})
	return &Guard{
		limits:    limits,
		parser:    docParser,
		engine:    engine,
		sanitizer: sanitizer,
		logger:    cfg.Logger,
		generator: cfg.Provider,
	}, nil
}

// DocumentID derives the stable identifier used in reports: the hex
// SHA-256 of the input bytes.
func DocumentID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Scan checks the upload size, parses the document, and evaluates the
// rule set. A failed scan is always an error, never a Clean report.
func (g *Guard) Scan(ctx context.Context, data []byte) (risk.Report, error) {
	if g.limits.MaxUploadSize > 0 && int64(len(data)) > g.limits.MaxUploadSize {
		return risk.Report{}, fmt.Errorf("%w: %d bytes", ErrUploadTooLarge, len(data))
	}
	if g.limits.MaxScanTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.limits.MaxScanTime)
		defer cancel()
	}

	start := time.Now()
	doc, err := g.parser.Parse(ctx, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return risk.Report{}, err
	}
	rep, err := g.engine.Scan(ctx, doc, DocumentID(data))
	if err != nil {
		return risk.Report{}, err
	}
	g.logger.Info("scan complete",
		observability.String("document", rep.DocumentID),
		observability.Int64(observability.MetricScanTime, time.Since(start).Milliseconds()),
		observability.Int(observability.MetricObjectCount, len(doc.Objects)),
		observability.String("verdict", rep.Verdict.String()))
	return rep, nil
}

// Sanitize produces a neutralized copy. The caller's report must come
// from a prior Scan of the same bytes.
func (g *Guard) Sanitize(ctx context.Context, data []byte, rep risk.Report) ([]byte, error) {
	if g.limits.MaxScanTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.limits.MaxScanTime)
		defer cancel()
	}
	return g.sanitizer.Sanitize(ctx, data, rep)
}

// Summarize asks the configured provider for a plain-language summary
// of a report. Scanning never depends on this path.
func (g *Guard) Summarize(ctx context.Context, rep risk.Report) (string, error) {
	if g.generator == nil {
		return "", errors.New("no provider configured")
	}
	view := report.FromScan(rep)
	resp, err := g.generator.Generate(ctx, provider.Request{
		Prompt: "Summarize this document scan report:\n\n" + view.Markdown(),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
