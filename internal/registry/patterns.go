package registry

import (
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/sells-group/takeoff-cli/internal/model"
)

// numberGroup captures a positive number with optional thousands
// separators and decimals ("2,500", "1200", "12.75", ".5").
const numberGroup = `(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?|\.\d+)`

// numberLead keeps a match from starting inside another number or word, so
// ".5" is never read as "5" and "12,500" never as "500".
const numberLead = `(?:^|[^\w.,])`

// unitTail requires the unit label not to run into another word.
const unitTail = `(?:[^A-Za-z]|$)`

// DefaultPatterns are the built-in extraction regexes, one numeric capture
// group each.
func DefaultPatterns() map[model.Unit][]string {
	p := func(label string) string {
		return `(?i)` + numberLead + numberGroup + `\s*(?:` + label + `)` + unitTail
	}
	return map[model.Unit][]string{
		model.UnitSQFT: {p(`SQ\.?\s*FT\.?|SQFT|S\.?F\.?|SQUARE\s+F(?:EE|OO)T`)},
		model.UnitSY:   {p(`SQ\.?\s*YDS?\.?|S\.?Y\.?|SQUARE\s+YARDS?`)},
		model.UnitLF:   {p(`L\.?F\.?|LIN\.?\s*FT\.?|LINEAR\s+F(?:EE|OO)T`)},
		model.UnitCY:   {p(`C\.?Y\.?|CU\.?\s*YDS?\.?|CUBIC\s+YARDS?`)},
		model.UnitGAL:  {p(`GALLONS?|GALS?\.?`)},
		model.UnitEA:   {p(`EACH|EA\.?`)},
		model.UnitLS:   {p(`LUMP\s+SUM|L\.?S\.?`)},
		model.UnitTON:  {p(`TONS?`)},
		model.UnitLB:   {p(`POUNDS?|LBS?\.?`)},
	}
}

// UnitPatterns are the compiled patterns for one unit.
type UnitPatterns struct {
	Unit     model.Unit
	Patterns []*regexp.Regexp
}

// PatternLibrary holds compiled quantity patterns per unit. It is
// read-only after construction.
type PatternLibrary struct {
	units []UnitPatterns
	index map[model.Unit]int
}

// NewPatternLibrary compiles raw patterns. Every pattern must compile and
// expose at least one capture group (the numeric value).
func NewPatternLibrary(raw map[model.Unit][]string) (*PatternLibrary, error) {
	l := &PatternLibrary{index: make(map[model.Unit]int)}
	for u := range raw {
		if !u.IsValid() {
			return nil, eris.Errorf("registry: unknown unit %q", u)
		}
	}
	// Iterate in the closed unit order so extraction output is stable.
	for _, u := range model.AllUnits() {
		exprs, ok := raw[u]
		if !ok || len(exprs) == 0 {
			continue
		}
		up := UnitPatterns{Unit: u}
		for _, expr := range exprs {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, eris.Wrapf(err, "registry: compile %s pattern %q", u, expr)
			}
			if re.NumSubexp() < 1 {
				return nil, eris.Errorf("registry: %s pattern %q has no capture group", u, expr)
			}
			up.Patterns = append(up.Patterns, re)
		}
		l.index[u] = len(l.units)
		l.units = append(l.units, up)
	}
	return l, nil
}

// DefaultPatternLibrary compiles DefaultPatterns.
func DefaultPatternLibrary() *PatternLibrary {
	l, err := NewPatternLibrary(DefaultPatterns())
	if err != nil {
		panic(err) // built-in table is static
	}
	return l
}

// Units returns the compiled pattern sets in unit order.
func (l *PatternLibrary) Units() []UnitPatterns {
	return l.units
}

// Patterns returns the patterns for one unit, or nil.
func (l *PatternLibrary) Patterns(u model.Unit) []*regexp.Regexp {
	i, ok := l.index[u]
	if !ok {
		return nil
	}
	return l.units[i].Patterns
}
