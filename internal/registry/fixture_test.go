package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/takeoff-cli/internal/model"
)

func writeFixture(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadTermsFromFile_YAML(t *testing.T) {
	path := writeFixture(t, "terms.yaml", `
categories:
  structures:
    - term: BALUSTER
      priority: critical
    - term: Bent Cap
      priority: high
  hardware:
    - term: NAILS
`)

	lib, err := LoadTermsFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, lib.Len())

	info, ok := lib.Lookup("baluster")
	require.True(t, ok)
	assert.Equal(t, "structures", info.Category)
	assert.Equal(t, model.PriorityCritical, info.Priority)

	nails, ok := lib.Lookup("NAILS")
	require.True(t, ok)
	assert.Equal(t, model.PriorityMedium, nails.Priority, "missing priority defaults to medium")
	assert.Equal(t, []string{"hardware", "structures"}, lib.Categories())
}

func TestLoadTermsFromFile_JSON(t *testing.T) {
	path := writeFixture(t, "terms.json", `{"categories": {"formwork": [{"term": "FALSEWORK", "priority": "high"}]}}`)

	lib, err := LoadTermsFromFile(path)
	require.NoError(t, err)
	assert.True(t, lib.IsHighPriority("falsework"))
}

func TestLoadTermsFromFile_UnknownPriority(t *testing.T) {
	path := writeFixture(t, "terms.yaml", `
categories:
  formwork:
    - term: FORMWORK
      priority: urgent
`)

	_, err := LoadTermsFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown priority")
}

func TestLoadTermsFromFile_Malformed(t *testing.T) {
	path := writeFixture(t, "bad.yaml", "categories: [not: a map")
	_, err := LoadTermsFromFile(path)
	require.Error(t, err)
}

func TestLoadPatternsFromFile(t *testing.T) {
	path := writeFixture(t, "patterns.yaml", `
units:
  SQFT:
    - '(?i)\b(\d+)\s*SF\b'
  LF:
    - '(?i)\b(\d+)\s*LF\b'
`)

	lib, err := LoadPatternsFromFile(path)
	require.NoError(t, err)
	require.Len(t, lib.Units(), 2)
	assert.Equal(t, model.UnitSQFT, lib.Units()[0].Unit)
	assert.Equal(t, model.UnitLF, lib.Units()[1].Unit)
	assert.Nil(t, lib.Patterns(model.UnitCY))
}

func TestLoadPatternsFromFile_UnknownUnit(t *testing.T) {
	path := writeFixture(t, "patterns.yaml", `
units:
  FURLONG:
    - '(\d+)\s*FUR'
`)

	_, err := LoadPatternsFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown unit")
}

func TestLoadPatternsFromFile_NoCaptureGroup(t *testing.T) {
	path := writeFixture(t, "patterns.yaml", `
units:
  EA:
    - '\d+\s*EA'
`)

	_, err := LoadPatternsFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no capture group")
}

func TestLoad_FallsBackToDefaults(t *testing.T) {
	libs, err := Load("", filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultTermLibrary().Len(), libs.Terms.Len())
	assert.Len(t, libs.Patterns.Units(), len(model.AllUnits()))
}

func TestLoad_InvalidFileIsError(t *testing.T) {
	path := writeFixture(t, "terms.yaml", "categories: {}")
	_, err := Load(path, "")
	require.Error(t, err)
}
