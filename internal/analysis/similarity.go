package analysis

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Similarity scores how alike two normalised strings are, in [0, 1].
type Similarity interface {
	Similarity(a, b string) float64
}

// SimilarityFunc adapts a plain function to Similarity.
type SimilarityFunc func(a, b string) float64

// Similarity calls f(a, b).
func (f SimilarityFunc) Similarity(a, b string) float64 {
	return f(a, b)
}

// LevenshteinSimilarity is 1 - editDistance/maxLen.
var LevenshteinSimilarity = SimilarityFunc(func(a, b string) float64 {
	return levenshtein.Similarity(a, b, nil)
})

// token is one word of page text with its byte offset and 1-based line.
type token struct {
	text  string
	norm  string
	start int
	end   int
	line  int
}

// normalizer folds case and compatibility forms so "ＦＯＲＭＷＯＲＫ" and
// "formwork" compare equal. A normalizer must not be shared between
// goroutines.
type normalizer struct {
	fold cases.Caser
}

func newNormalizer() *normalizer {
	return &normalizer{fold: cases.Fold()}
}

func (n *normalizer) normalize(s string) string {
	s = norm.NFKC.String(s)
	s = n.fold.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// tokenize splits text into letter/digit runs, tracking offsets and lines.
func tokenize(text string, n *normalizer) []token {
	var tokens []token
	line := 1
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		raw := text[start:end]
		tokens = append(tokens, token{text: raw, norm: n.normalize(raw), start: start, end: end, line: line})
		start = -1
	}
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
		if r == '\n' {
			line++
		}
	}
	flush(len(text))
	return tokens
}

// lengthBound is the best similarity two strings of these lengths could
// reach under edit distance; windows below the threshold are skipped.
func lengthBound(a, b int) float64 {
	if a == 0 && b == 0 {
		return 1
	}
	longer, diff := a, a-b
	if b > a {
		longer, diff = b, b-a
	}
	return 1 - float64(diff)/float64(longer)
}
