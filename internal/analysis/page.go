package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/takeoff-cli/internal/model"
	"github.com/sells-group/takeoff-cli/internal/registry"
)

// Option configures a PageAnalyzer or DocumentAnalyzer.
type Option func(*options)

type options struct {
	log        *zap.Logger
	similarity Similarity
	associate  AssociationStrategy
}

// WithLogger sets the logger. Defaults to zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithSimilarity swaps the fuzzy term matcher. Defaults to LevenshteinSimilarity.
func WithSimilarity(s Similarity) Option {
	return func(o *options) {
		if s != nil {
			o.similarity = s
		}
	}
}

// WithAssociation swaps the quantity-to-term association rule.
func WithAssociation(a AssociationStrategy) Option {
	return func(o *options) {
		if a != nil {
			o.associate = a
		}
	}
}

func applyOptions(cfg Config, opts []Option) options {
	o := options{
		log:        zap.L(),
		similarity: LevenshteinSimilarity,
		associate:  ProximityAssociation(cfg.AssociationLineWindow),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

type compiledTerm struct {
	info  registry.TermInfo
	re    *regexp.Regexp
	norm  string
	words int
}

// PageAnalyzer extracts quantities and terms from one page of text. It holds
// no per-call state and may be shared between goroutines.
type PageAnalyzer struct {
	cfg      Config
	patterns *registry.PatternLibrary
	terms    []compiledTerm
	opts     options
}

// NewPageAnalyzer compiles the vocabulary of libs for matching.
func NewPageAnalyzer(libs *registry.Libraries, cfg Config, opts ...Option) *PageAnalyzer {
	if libs == nil {
		libs = registry.Defaults()
	}
	cfg = cfg.withDefaults()
	n := newNormalizer()

	pa := &PageAnalyzer{
		cfg:      cfg,
		patterns: libs.Patterns,
		opts:     applyOptions(cfg, opts),
	}
	for _, info := range libs.Terms.Terms() {
		normTerm := n.normalize(strings.Join(tokenTexts(tokenize(info.Term, n)), " "))
		pa.terms = append(pa.terms, compiledTerm{
			info:  info,
			re:    regexp.MustCompile(`(?i)` + regexp.QuoteMeta(info.Term)),
			norm:  normTerm,
			words: len(strings.Fields(normTerm)),
		})
	}
	return pa
}

// Analyze runs quantity extraction, term detection and alerting over one
// page. The result depends only on its inputs.
func (pa *PageAnalyzer) Analyze(pageText string, pageNumber int, docType model.DocumentType) model.SheetAnalysis {
	sheet := model.SheetAnalysis{
		PageNumber: pageNumber,
		DocType:    docType,
		Terms:      []*model.TermMatch{},
		Quantities: []*model.ExtractedQuantity{},
	}
	if isBlank(pageText) {
		sheet.Blank = true
		return sheet
	}

	starts := lineStarts(pageText)
	sheet.LineCount = len(starts)
	sheet.TextExtractionQuality = TextQuality(pageText)
	profile := pa.cfg.Profile(docType)

	quantities, dropped := pa.extractQuantities(pageText, starts, pageNumber, docType, profile)
	sheet.Quantities = quantities
	sheet.DroppedMatches = dropped

	sheet.Terms = pa.detectTerms(pageText, starts, pageNumber, docType, profile)
	for _, t := range sheet.Terms {
		t.AssociatedQuantities = pa.opts.associate(t, sheet.Quantities)
	}

	sheet.Alerts = pa.alerts(&sheet)
	return sheet
}

type quantityHit struct {
	q     *model.ExtractedQuantity
	start int
}

func (pa *PageAnalyzer) extractQuantities(text string, starts []int, page int, docType model.DocumentType, profile DocumentProfile) ([]*model.ExtractedQuantity, int) {
	confidence := clamp01(pa.cfg.QuantityBaseConfidence * profile.QuantityMultiplier)
	var hits []quantityHit
	dropped := 0

	for i, start := range starts {
		line := lineAt(text, starts, i)
		for _, up := range pa.patterns.Units() {
			seen := make(map[int]bool)
			for _, re := range up.Patterns {
				for _, m := range numberMatches(re, line) {
					if m[2] < 0 || seen[m[2]] {
						continue
					}
					seen[m[2]] = true

					raw := line[m[2]:m[3]]
					value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
					if err != nil {
						dropped++
						pa.opts.log.Warn("analysis: dropped unparseable quantity",
							zap.String("doc_type", string(docType)),
							zap.Int("page", page),
							zap.String("unit", string(up.Unit)),
							zap.String("raw", raw),
							zap.Error(err),
						)
						continue
					}
					if value <= 0 {
						dropped++
						pa.opts.log.Warn("analysis: dropped non-positive quantity",
							zap.String("doc_type", string(docType)),
							zap.Int("page", page),
							zap.String("unit", string(up.Unit)),
							zap.Float64("value", value),
						)
						continue
					}

					absStart, absEnd := start+m[2], start+m[1]
					hits = append(hits, quantityHit{
						start: absStart,
						q: &model.ExtractedQuantity{
							Value:          value,
							Unit:           up.Unit,
							Context:        contextWindow(text, absStart, absEnd, pa.cfg.QuantityContextChars),
							PageNumber:     page,
							LineNumber:     i + 1,
							Confidence:     confidence,
							SourceDocument: docType,
						},
					})
				}
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].start < hits[j].start
	})
	out := make([]*model.ExtractedQuantity, len(hits))
	for i, h := range hits {
		out[i] = h.q
	}
	return out, dropped
}

// numberMatches returns the submatch indexes of every quantity in line. The
// patterns consume one character on each side of a match, so scanning resumes
// at the end of the captured number instead of the end of the match, which
// lets "5 CY 10 CY" yield both quantities. A number that begins exactly where
// the previous one ended is part of it and is skipped.
func numberMatches(re *regexp.Regexp, line string) [][]int {
	var out [][]int
	pos := 0
	for pos <= len(line) {
		m := re.FindStringSubmatchIndex(line[pos:])
		if m == nil {
			break
		}
		for k := range m {
			if m[k] >= 0 {
				m[k] += pos
			}
		}
		if m[2] < 0 {
			pos = m[1]
			if m[1] == m[0] {
				pos++
			}
			continue
		}
		if pos > 0 && m[2] == pos {
			pos++
			continue
		}
		out = append(out, m)
		pos = m[3]
	}
	return out
}

func (pa *PageAnalyzer) detectTerms(text string, starts []int, page int, docType model.DocumentType, profile DocumentProfile) []*model.TermMatch {
	var tokens []token
	tokenized := false
	out := []*model.TermMatch{}

	for _, ct := range pa.terms {
		start, end := -1, -1
		kind := model.MatchDirect
		similarity := 1.0

		if loc := ct.re.FindStringIndex(text); loc != nil {
			start, end = loc[0], loc[1]
		} else {
			if !tokenized {
				tokens = tokenize(text, newNormalizer())
				tokenized = true
			}
			s, e, score, ok := pa.fuzzyFind(ct, tokens)
			if !ok {
				continue
			}
			start, end, similarity, kind = s, e, score, model.MatchFuzzy
		}

		confidence := pa.cfg.TermBaseConfidence * profile.TermMultiplier * similarity
		if isFocusTerm(ct.info.Term, profile.FocusTerms) {
			confidence *= pa.cfg.FocusBoost
		}

		tm := &model.TermMatch{
			Term:           ct.info.Term,
			Category:       ct.info.Category,
			Priority:       ct.info.Priority,
			Context:        contextWindow(text, start, end, pa.cfg.TermContextChars),
			PageNumber:     page,
			LineNumber:     lineOf(starts, start),
			Confidence:     clamp01(confidence),
			Match:          kind,
			SourceDocument: docType,
		}
		if kind == model.MatchFuzzy {
			tm.Similarity = similarity
		}
		out = append(out, tm)
	}
	return out
}

// fuzzyFind scans windows of as many tokens as the term has words and
// returns the best window scoring above the threshold.
func (pa *PageAnalyzer) fuzzyFind(ct compiledTerm, tokens []token) (int, int, float64, bool) {
	if ct.words == 0 || len(tokens) < ct.words {
		return 0, 0, 0, false
	}
	threshold := pa.cfg.FuzzyThreshold
	termLen := utf8.RuneCountInString(ct.norm)

	best, bestStart, bestEnd := 0.0, 0, 0
	parts := make([]string, ct.words)
	for i := 0; i+ct.words <= len(tokens); i++ {
		for k := 0; k < ct.words; k++ {
			parts[k] = tokens[i+k].norm
		}
		candidate := strings.Join(parts, " ")
		if lengthBound(termLen, utf8.RuneCountInString(candidate)) <= threshold {
			continue
		}
		score := pa.opts.similarity.Similarity(ct.norm, candidate)
		if score > threshold && score > best {
			best, bestStart, bestEnd = score, tokens[i].start, tokens[i+ct.words-1].end
		}
	}
	if best == 0 {
		return 0, 0, 0, false
	}
	return bestStart, bestEnd, best, true
}

func (pa *PageAnalyzer) alerts(sheet *model.SheetAnalysis) []model.Alert {
	var alerts []model.Alert
	for _, t := range sheet.Terms {
		if !t.Priority.IsHigh() {
			continue
		}
		alerts = append(alerts, model.Alert{
			Level:      model.AlertHigh,
			Message:    fmt.Sprintf("%s priority term %s found", t.Priority, t.Term),
			PageNumber: sheet.PageNumber,
			DocType:    sheet.DocType,
			Term:       t,
		})
	}
	for _, q := range sheet.Quantities {
		limit := pa.cfg.QuantityThresholds[q.Unit]
		if limit <= 0 || q.Value <= limit {
			continue
		}
		alerts = append(alerts, model.Alert{
			Level:      model.AlertWarning,
			Message:    fmt.Sprintf("quantity %s %s exceeds threshold %s", formatValue(q.Value), q.Unit, formatValue(limit)),
			PageNumber: sheet.PageNumber,
			DocType:    sheet.DocType,
			Quantity:   q,
			Details:    map[string]any{"threshold": limit},
		})
	}
	if sheet.TextExtractionQuality == 0 {
		alerts = append(alerts, model.Alert{
			Level:      model.AlertCritical,
			Message:    "page text failed every extraction quality check",
			PageNumber: sheet.PageNumber,
			DocType:    sheet.DocType,
		})
	}
	return alerts
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func isFocusTerm(term string, focus []string) bool {
	lt := strings.ToLower(term)
	for _, f := range focus {
		lf := strings.ToLower(f)
		if lf != "" && (strings.Contains(lt, lf) || strings.Contains(lf, lt)) {
			return true
		}
	}
	return false
}

// lineStarts returns the byte offset of every line in text.
func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' && i+1 < len(text) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func lineAt(text string, starts []int, i int) string {
	end := len(text)
	if i+1 < len(starts) {
		end = starts[i+1] - 1
	}
	return text[starts[i]:end]
}

// lineOf returns the 1-based line containing offset.
func lineOf(starts []int, offset int) int {
	return sort.Search(len(starts), func(i int) bool { return starts[i] > offset })
}

// contextWindow returns text[start-n:end+n], snapped to rune boundaries,
// with whitespace collapsed.
func contextWindow(text string, start, end, n int) string {
	lo, hi := start-n, end+n
	if lo < 0 {
		lo = 0
	}
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	return strings.Join(strings.Fields(text[lo:hi]), " ")
}

func tokenTexts(tokens []token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.text
	}
	return out
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
