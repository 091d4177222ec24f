package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfguard/risk"
)

func TestParse_Empty(t *testing.T) {
	p, err := Parse([]byte(""))
	require.NoError(t, err)
	rules, err := p.RuleConfigs()
	require.NoError(t, err)
	assert.Nil(t, rules)
}

func TestParse_Overrides(t *testing.T) {
	p, err := Parse([]byte(`
rules:
  embedded_file:
    enabled: false
  suspicious_stream:
    severity: medium
limits:
  max_upload_bytes: 1048576
  max_scan_seconds: 10
`))
	require.NoError(t, err)

	rules, err := p.RuleConfigs()
	require.NoError(t, err)
	assert.True(t, rules[risk.KindEmbeddedFile].Disabled)
	assert.True(t, rules[risk.KindSuspiciousStream].SeveritySet)
	assert.Equal(t, risk.SeverityMedium, rules[risk.KindSuspiciousStream].Severity)

	limits := p.SecurityLimits()
	assert.Equal(t, int64(1048576), limits.MaxUploadSize)
	assert.Equal(t, 10*time.Second, limits.MaxScanTime)
	// Fields the policy does not set keep their defaults.
	assert.Greater(t, limits.MaxObjectCount, 0)
}

func TestParse_UnknownRule(t *testing.T) {
	_, err := Parse([]byte("rules:\n  no_such_rule: {}\n"))
	assert.Error(t, err)
}

func TestParse_BadSeverity(t *testing.T) {
	_, err := Parse([]byte("rules:\n  launch_action:\n    severity: catastrophic\n"))
	assert.Error(t, err)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("rules: ["))
	assert.Error(t, err)
}

func TestDefaultPolicyKeepsDefaults(t *testing.T) {
	p := Default()
	rules, err := p.RuleConfigs()
	require.NoError(t, err)
	assert.Nil(t, rules)
	limits := p.SecurityLimits()
	assert.Greater(t, limits.MaxUploadSize, int64(0))
}
