package registry

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/takeoff-cli/internal/model"
)

// TermInfo is one vocabulary entry.
type TermInfo struct {
	Term     string         `yaml:"term" json:"term"`
	Category string         `yaml:"category" json:"category"`
	Priority model.Priority `yaml:"priority" json:"priority"`
}

// TermLibrary is the closed vocabulary of domain terms. It is read-only
// after construction and safe to share between goroutines.
type TermLibrary struct {
	terms      []TermInfo
	byKey      map[string]TermInfo
	categories map[string][]string
}

// NewTermLibrary validates entries and builds an indexed TermLibrary.
// Terms are matched case-insensitively, so two entries that differ only in
// case are rejected as duplicates.
func NewTermLibrary(entries []TermInfo) (*TermLibrary, error) {
	l := &TermLibrary{
		byKey:      make(map[string]TermInfo, len(entries)),
		categories: make(map[string][]string),
	}
	for _, e := range entries {
		e.Term = strings.TrimSpace(e.Term)
		if e.Term == "" {
			return nil, eris.New("registry: empty term")
		}
		if e.Priority == "" {
			e.Priority = model.PriorityMedium
		}
		if !e.Priority.IsValid() {
			return nil, eris.Errorf("registry: term %q has unknown priority %q", e.Term, e.Priority)
		}
		key := termKey(e.Term)
		if _, dup := l.byKey[key]; dup {
			return nil, eris.Errorf("registry: duplicate term %q", e.Term)
		}
		l.byKey[key] = e
		l.terms = append(l.terms, e)
		l.categories[e.Category] = append(l.categories[e.Category], e.Term)
	}
	sort.Slice(l.terms, func(i, j int) bool { return l.terms[i].Term < l.terms[j].Term })
	for c := range l.categories {
		sort.Strings(l.categories[c])
	}
	return l, nil
}

// Terms returns every entry in lexical order.
func (l *TermLibrary) Terms() []TermInfo {
	return l.terms
}

// Len returns the vocabulary size.
func (l *TermLibrary) Len() int {
	return len(l.terms)
}

// Lookup returns the entry for term, ignoring case.
func (l *TermLibrary) Lookup(term string) (TermInfo, bool) {
	info, ok := l.byKey[termKey(term)]
	return info, ok
}

// Contains reports whether term belongs to the vocabulary.
func (l *TermLibrary) Contains(term string) bool {
	_, ok := l.byKey[termKey(term)]
	return ok
}

// IsHighPriority reports whether term is in the critical/high priority set.
func (l *TermLibrary) IsHighPriority(term string) bool {
	info, ok := l.Lookup(term)
	return ok && info.Priority.IsHigh()
}

// HighPriorityTerms returns the critical and high priority terms.
func (l *TermLibrary) HighPriorityTerms() []string {
	var out []string
	for _, t := range l.terms {
		if t.Priority.IsHigh() {
			out = append(out, t.Term)
		}
	}
	return out
}

// Categories returns the category names in lexical order.
func (l *TermLibrary) Categories() []string {
	out := make([]string, 0, len(l.categories))
	for c := range l.categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// TermsInCategory returns the terms of one category.
func (l *TermLibrary) TermsInCategory(category string) []string {
	return l.categories[category]
}

func termKey(term string) string {
	return strings.ToUpper(strings.TrimSpace(term))
}

// DefaultTerms is the built-in vocabulary used when no reference file is
// configured.
func DefaultTerms() []TermInfo {
	type group struct {
		category string
		priority model.Priority
		terms    []string
	}
	groups := []group{
		{"formwork", model.PriorityCritical, []string{"FORMWORK", "FALSEWORK"}},
		{"formwork", model.PriorityHigh, []string{"PLYWOOD", "BLOCKOUT", "FORM TIES", "SHORING"}},
		{"lumber", model.PriorityHigh, []string{"DIMENSIONAL LUMBER", "TIMBER"}},
		{"lumber", model.PriorityMedium, []string{"2X4", "2X6", "2X8", "2X10", "2X12", "4X4", "GLULAM"}},
		{"structures", model.PriorityCritical, []string{"BALUSTER", "BARRIER RAIL"}},
		{"structures", model.PriorityHigh, []string{"BRIDGE DECK", "ABUTMENT", "BENT CAP", "APPROACH SLAB", "WINGWALL"}},
		{"concrete", model.PriorityHigh, []string{"STRUCTURAL CONCRETE", "MINOR CONCRETE"}},
		{"concrete", model.PriorityMedium, []string{"CURING COMPOUND", "EXPANSION JOINT"}},
		{"reinforcement", model.PriorityHigh, []string{"BAR REINFORCING STEEL"}},
		{"reinforcement", model.PriorityMedium, []string{"EPOXY COATED", "WELDED WIRE"}},
		{"hardware", model.PriorityMedium, []string{"ANCHOR BOLTS", "FASTENERS"}},
		{"hardware", model.PriorityLow, []string{"NAILS", "SCREWS", "WASHERS"}},
		{"requirements", model.PriorityHigh, []string{"PREVAILING WAGE", "BID BOND"}},
		{"requirements", model.PriorityMedium, []string{"SUBMITTAL", "SHOP DRAWINGS", "ADDENDUM"}},
		{"requirements", model.PriorityLow, []string{"WARRANTY"}},
	}

	var out []TermInfo
	for _, g := range groups {
		for _, t := range g.terms {
			out = append(out, TermInfo{Term: t, Category: g.category, Priority: g.priority})
		}
	}
	return out
}

// DefaultTermLibrary builds a TermLibrary from DefaultTerms.
func DefaultTermLibrary() *TermLibrary {
	l, err := NewTermLibrary(DefaultTerms())
	if err != nil {
		panic(err) // built-in table is static
	}
	return l
}
