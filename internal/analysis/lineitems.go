package analysis

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/takeoff-cli/internal/model"
)

const money = `\$?\s*(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?|\.\d+)`

// bidLineRe matches one bid-form row:
//
//	12  (070012)  STRUCTURE FORMWORK  2,500 SQFT  $12.50  $31,250.00
//
// The CalTrans code and both price columns are optional.
var bidLineRe = regexp.MustCompile(`(?i)^\s*(\d{1,4}[A-Z]?)[.)]?\s+` +
	`(?:\(?(\d{6})\)?\s+)?` +
	`(.+?)\s+` +
	`(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?|\.\d+)\s*` +
	`(SQ\.?\s*FT\.?|SQFT|S\.?F\.?|SQ\.?\s*YDS?\.?|S\.?Y\.?|L\.?F\.?|C\.?Y\.?|GALS?\.?|GALLONS?|EA\.?|EACH|L\.?S\.?|LUMP\s+SUM|TONS?|LBS?\.?)` +
	`(?:\s+` + money + `)?` +
	`(?:\s+` + money + `)?\s*$`)

// ExtractBidLineItems parses bid-form rows from page text and attaches every
// term whose text occurs in a row's description. Rows whose numbers fail to
// parse are dropped with a warning.
func ExtractBidLineItems(pages []string, terms []*model.TermMatch, log *zap.Logger) []model.BidLineItem {
	if log == nil {
		log = zap.L()
	}
	vocab := distinctTerms(terms)

	items := []model.BidLineItem{}
	for p, text := range pages {
		for l, line := range strings.Split(text, "\n") {
			m := bidLineRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
			if m == nil {
				continue
			}
			unit, ok := model.ParseUnit(m[5])
			if !ok {
				log.Warn("analysis: bid line has unknown unit",
					zap.Int("page", p+1), zap.Int("line", l+1), zap.String("unit", m[5]))
				continue
			}
			qty, err := parseNumber(m[4])
			if err != nil || qty <= 0 {
				log.Warn("analysis: dropped bid line quantity",
					zap.Int("page", p+1), zap.Int("line", l+1), zap.String("raw", m[4]), zap.Error(err))
				continue
			}

			item := model.BidLineItem{
				ItemNumber:   m[1],
				CalTransCode: m[2],
				Description:  strings.Join(strings.Fields(m[3]), " "),
				Quantity:     qty,
				Unit:         unit,
				PageNumber:   p + 1,
				LineNumber:   l + 1,
			}
			if m[6] != "" {
				if v, err := parseNumber(m[6]); err == nil {
					item.UnitPrice = v
				}
			}
			if m[7] != "" {
				if v, err := parseNumber(m[7]); err == nil {
					item.TotalPrice = v
				}
			}

			upper := strings.ToUpper(item.Description)
			for _, t := range vocab {
				if strings.Contains(upper, strings.ToUpper(t)) {
					item.Terms = append(item.Terms, t)
				}
			}
			items = append(items, item)
		}
	}
	return items
}

func distinctTerms(terms []*model.TermMatch) []string {
	seen := make(map[string]bool, len(terms))
	var out []string
	for _, t := range terms {
		if !seen[t.Term] {
			seen[t.Term] = true
			out = append(out, t.Term)
		}
	}
	sort.Strings(out)
	return out
}

func parseNumber(raw string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
}
