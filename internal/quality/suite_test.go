package quality

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSuite_EmbeddedDefault(t *testing.T) {
	assertions, err := LoadSuite("")
	require.NoError(t, err)
	require.NotEmpty(t, assertions)

	relations := make(map[string]bool)
	for _, a := range assertions {
		relations[a.Relation] = true
		assert.NoError(t, a.Validate())
	}
	// Every persisted stage has gate coverage.
	for _, rel := range []string{
		"stg_aptlist", "stg_zori", "stg_fred",
		"dim_location", "dim_economic_series",
		"fact_rent", "mart_rent_trends", "mart_market_rankings",
	} {
		assert.True(t, relations[rel], "missing assertions for %s", rel)
	}
}

func TestLoadSuite_PathOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
suites:
  - relation: stg_custom
    checks:
      - name: custom_not_null
        kind: not_null
        column: k
        severity: error
`), 0o644))

	assertions, err := LoadSuite(path)
	require.NoError(t, err)
	require.Len(t, assertions, 1)
	assert.Equal(t, "stg_custom", assertions[0].Relation)
	assert.Equal(t, KindNotNull, assertions[0].Kind)
}

func TestParseSuite_DefaultSeverityIsWarn(t *testing.T) {
	assertions, err := ParseSuite([]byte(`
suites:
  - relation: rel
    checks:
      - name: soft
        kind: not_null
        column: k
`))
	require.NoError(t, err)
	require.Len(t, assertions, 1)
	assert.Equal(t, SeverityWarn, assertions[0].Severity)
}

func TestParseSuite_RejectsUnknownKind(t *testing.T) {
	_, err := ParseSuite([]byte(`
suites:
  - relation: rel
    checks:
      - name: bogus
        kind: vibes
        severity: error
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestParseSuite_RejectsMissingRelation(t *testing.T) {
	_, err := ParseSuite([]byte(`
suites:
  - checks:
      - name: orphan
        kind: not_null
        column: k
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing relation")
}

func TestAssertionValidate(t *testing.T) {
	tests := []struct {
		name    string
		a       Assertion
		wantErr string
	}{
		{"range without bounds", Assertion{Name: "r", Kind: KindRange, Column: "v", Severity: SeverityWarn}, "min or max"},
		{"unique without column", Assertion{Name: "u", Kind: KindUnique, Severity: SeverityError}, "requires a column"},
		{"accepted without values", Assertion{Name: "a", Kind: KindAcceptedValues, Column: "c", Severity: SeverityWarn}, "values"},
		{"bad severity", Assertion{Name: "s", Kind: KindNotNull, Column: "c", Severity: "fatal"}, "unknown severity"},
		{"missing name", Assertion{Kind: KindNotNull, Column: "c", Severity: SeverityWarn}, "missing name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.a.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
