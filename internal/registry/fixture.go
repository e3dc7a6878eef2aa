package registry

import (
	"errors"
	"io/fs"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/takeoff-cli/internal/model"
)

// vocabularyFile is the on-disk vocabulary layout. JSON files parse too,
// since JSON is a subset of YAML.
//
//	categories:
//	  formwork:
//	    - term: FORMWORK
//	      priority: critical
type vocabularyFile struct {
	Categories map[string][]struct {
		Term     string         `yaml:"term"`
		Priority model.Priority `yaml:"priority"`
	} `yaml:"categories"`
}

// patternFile is the on-disk pattern layout:
//
//	units:
//	  SQFT: ['(?i)\b(\d+)\s*SF\b']
type patternFile struct {
	Units map[model.Unit][]string `yaml:"units"`
}

// LoadTermsFromFile reads a vocabulary file and returns a TermLibrary.
func LoadTermsFromFile(path string) (*TermLibrary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read vocabulary")
	}

	var vf vocabularyFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal vocabulary")
	}
	if len(vf.Categories) == 0 {
		return nil, eris.Errorf("registry: vocabulary %s has no categories", path)
	}

	categories := make([]string, 0, len(vf.Categories))
	for c := range vf.Categories {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var entries []TermInfo
	for _, c := range categories {
		for _, e := range vf.Categories[c] {
			entries = append(entries, TermInfo{Term: e.Term, Category: c, Priority: e.Priority})
		}
	}
	return NewTermLibrary(entries)
}

// LoadPatternsFromFile reads a pattern file and returns a PatternLibrary.
func LoadPatternsFromFile(path string) (*PatternLibrary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read patterns")
	}

	var pf patternFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal patterns")
	}
	if len(pf.Units) == 0 {
		return nil, eris.Errorf("registry: pattern file %s has no units", path)
	}
	return NewPatternLibrary(pf.Units)
}

// Libraries bundles the reference data shared by every analyzer.
type Libraries struct {
	Terms    *TermLibrary
	Patterns *PatternLibrary
}

// Load reads the vocabulary and pattern files. An empty or missing path
// falls back to the built-in defaults; a file that exists but does not
// parse is an error.
func Load(termsPath, patternsPath string) (*Libraries, error) {
	log := zap.L()
	libs := &Libraries{}

	terms, err := loadOrDefault(termsPath, LoadTermsFromFile, DefaultTermLibrary)
	if err != nil {
		return nil, err
	}
	libs.Terms = terms

	patterns, err := loadOrDefault(patternsPath, LoadPatternsFromFile, DefaultPatternLibrary)
	if err != nil {
		return nil, err
	}
	libs.Patterns = patterns

	log.Info("registry: reference data loaded",
		zap.Int("terms", libs.Terms.Len()),
		zap.Int("categories", len(libs.Terms.Categories())),
		zap.Int("units", len(libs.Patterns.Units())),
	)
	return libs, nil
}

// Defaults returns the built-in libraries.
func Defaults() *Libraries {
	return &Libraries{Terms: DefaultTermLibrary(), Patterns: DefaultPatternLibrary()}
}

func loadOrDefault[T any](path string, load func(string) (T, error), def func() T) (T, error) {
	if path == "" {
		return def(), nil
	}
	v, err := load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			zap.L().Warn("registry: reference file not found, using built-in defaults", zap.String("path", path))
			return def(), nil
		}
		var zero T
		return zero, err
	}
	return v, nil
}
