package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxDoubleSpaceRatio = 0.20
	maxHyphenBreakRatio = 0.10
	maxPunctuationRatio = 0.15
	maxGarbledRatio     = 0.05
	qualityPenalty      = 0.25
)

// TextQuality scores how cleanly page text was extracted. Four checks each
// cost 0.25: excess double spacing, lines broken by hyphens, punctuation
// density, and the share of high-bit or replacement characters.
func TextQuality(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	total := utf8.RuneCountInString(text)
	score := 1.0

	if float64(strings.Count(text, "  "))/float64(total) > maxDoubleSpaceRatio {
		score -= qualityPenalty
	}

	lines := strings.Split(text, "\n")
	hyphenBreaks := 0
	nonEmpty := 0
	for _, l := range lines {
		l = strings.TrimRight(l, " \t\r")
		if l == "" {
			continue
		}
		nonEmpty++
		if strings.HasSuffix(l, "-") {
			hyphenBreaks++
		}
	}
	if nonEmpty > 0 && float64(hyphenBreaks)/float64(nonEmpty) > maxHyphenBreakRatio {
		score -= qualityPenalty
	}

	var punct, garbled int
	for _, r := range text {
		if unicode.IsPunct(r) {
			punct++
		}
		if r == utf8.RuneError || (r > unicode.MaxASCII && !unicode.IsLetter(r) && !unicode.IsSpace(r)) {
			garbled++
		}
	}
	if float64(punct)/float64(total) > maxPunctuationRatio {
		score -= qualityPenalty
	}
	if float64(garbled)/float64(total) > maxGarbledRatio {
		score -= qualityPenalty
	}

	return clamp01(score)
}
