// Package policy loads scan policies from YAML: per-rule toggles and
// severity overrides plus resource limits.
package policy

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pdfguard/risk"
	"pdfguard/security"
)

type Policy struct {
	Rules  map[string]Rule `yaml:"rules"`
	Limits Limits          `yaml:"limits"`
}

type Rule struct {
	// Enabled defaults to true when omitted.
	Enabled  *bool  `yaml:"enabled"`
	Severity string `yaml:"severity"`
}

type Limits struct {
	MaxUploadBytes       int64 `yaml:"max_upload_bytes"`
	MaxDecompressedBytes int64 `yaml:"max_decompressed_bytes"`
	MaxObjectCount       int   `yaml:"max_object_count"`
	MaxScanSeconds       int   `yaml:"max_scan_seconds"`
}

// Default returns the built-in policy: every rule enabled at its
// default severity, limits from security.DefaultLimits.
func Default() Policy {
	return Policy{}
}

func Parse(data []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parsing policy: %w", err)
	}
	if _, err := p.RuleConfigs(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func Load(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("reading policy file: %w", err)
	}
	return Parse(data)
}

var kindNames = map[string]risk.Kind{
	"embedded_javascript": risk.KindEmbeddedJavaScript,
	"launch_action":       risk.KindLaunchAction,
	"embedded_file":       risk.KindEmbeddedFile,
	"auto_action":         risk.KindAutoAction,
	"suspicious_stream":   risk.KindSuspiciousStream,
}

func parseSeverity(s string) (risk.Severity, error) {
	switch strings.ToLower(s) {
	case "low":
		return risk.SeverityLow, nil
	case "medium":
		return risk.SeverityMedium, nil
	case "high":
		return risk.SeverityHigh, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

// RuleConfigs translates the policy into rule overrides for the engine.
func (p Policy) RuleConfigs() (map[risk.Kind]risk.RuleConfig, error) {
	if len(p.Rules) == 0 {
		return nil, nil
	}
	out := make(map[risk.Kind]risk.RuleConfig, len(p.Rules))
	for name, rule := range p.Rules {
		kind, ok := kindNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown rule %q", name)
		}
		rc := risk.RuleConfig{}
		if rule.Enabled != nil && !*rule.Enabled {
			rc.Disabled = true
		}
		if rule.Severity != "" {
			sev, err := parseSeverity(rule.Severity)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", name, err)
			}
			rc.Severity = sev
			rc.SeveritySet = true
		}
		out[kind] = rc
	}
	return out, nil
}

// SecurityLimits merges the policy's limits over the defaults.
func (p Policy) SecurityLimits() security.Limits {
	limits := security.DefaultLimits()
	if p.Limits.MaxUploadBytes > 0 {
		limits.MaxUploadSize = p.Limits.MaxUploadBytes
	}
	if p.Limits.MaxDecompressedBytes > 0 {
		limits.MaxDecompressedSize = p.Limits.MaxDecompressedBytes
	}
	if p.Limits.MaxObjectCount > 0 {
		limits.MaxObjectCount = p.Limits.MaxObjectCount
	}
	if p.Limits.MaxScanSeconds > 0 {
		limits.MaxScanTime = time.Duration(p.Limits.MaxScanSeconds) * time.Second
	}
	return limits
}
