// ABOUTME: Claim extraction and deterministic checks shared by every judge vote
// ABOUTME: Numbers with units must appear in the supporting chunks; citations must name them
package core

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/harper/wellrag/internal/models"
)

const maxClaims = 15

const (
	claimNumber = `(\d[\d,]*(?:\.\d+)?)`
	claimUnits  = `kg/m³|°C|°F|(?:metres|meters|metre|meter|mm|km|ft|feet|foot|bar|psi|m|TVD|MD)\b`
)

var (
	numericClaimPattern = regexp.MustCompile(`(?:^|[^\w.\-])` + claimNumber + `\s*(` + claimUnits + `)`)

	// "2694-2700 m", "2694 m - 2700 m", "2694 to 2700 m"
	rangeClaimPattern = regexp.MustCompile(`(?:^|[^\w.\-])` + claimNumber + `\s*(?:` + claimUnits + `)?\s*(?:-|\x{2013}|to)\s*` +
		claimNumber + `\s*(` + claimUnits + `)`)

	// any number directly followed by a word or symbol, recognized unit or not
	looseQuantityPattern = regexp.MustCompile(`\d[\d.,]*\s*[A-Za-z°%][A-Za-z°%/³]*`)

	dateClaimPattern = regexp.MustCompile(`(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}|\d{4}-\d{2}-\d{2}`)
	wellClaimPattern = regexp.MustCompile(`[A-Z]{2,10}-GT-\d{2}(?:-S\d+)?`)
	contextNumber    = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// Citation is a parsed "(document, p.N)" reference
type Citation struct {
	Document string
	Page     int
}

func (c Citation) String() string {
	return fmt.Sprintf("(%s, p.%d)", c.Document, c.Page)
}

// ParseCitations returns the citations in an answer, in order
func ParseCitations(text string) []Citation {
	var out []Citation
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		page, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		out = append(out, Citation{Document: strings.TrimSpace(m[1]), Page: page})
	}
	return out
}

// StripCitations removes citations so document names are not read as claims
func StripCitations(text string) string {
	return citationPattern.ReplaceAllString(text, "")
}

// quantity is one number with its unit as written in a draft
type quantity struct {
	at     int
	number string
	unit   string
}

func (q quantity) claim() string {
	return q.number + " " + q.unit
}

// quantities finds numbers with units in text order. Both ends of a range
// such as "2694-2700 m" count, each with the range's unit.
func quantities(text string) []quantity {
	var out []quantity
	taken := make(map[int]bool)
	for _, m := range numericClaimPattern.FindAllStringSubmatchIndex(text, -1) {
		taken[m[2]] = true
		out = append(out, quantity{at: m[2], number: text[m[2]:m[3]], unit: text[m[4]:m[5]]})
	}
	for _, m := range rangeClaimPattern.FindAllStringSubmatchIndex(text, -1) {
		unit := text[m[6]:m[7]]
		for _, span := range [][2]int{{m[2], m[3]}, {m[4], m[5]}} {
			if taken[span[0]] {
				continue
			}
			taken[span[0]] = true
			out = append(out, quantity{at: span[0], number: text[span[0]:span[1]], unit: unit})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].at < out[j].at })
	return out
}

// ExtractClaims finds checkable claims: numbers with units, dates and well names
func ExtractClaims(draft string) []string {
	text := StripCitations(draft)
	var claims []string
	for _, q := range quantities(text) {
		claims = append(claims, q.claim())
	}
	for _, p := range []*regexp.Regexp{dateClaimPattern, wellClaimPattern} {
		claims = append(claims, p.FindAllString(text, -1)...)
	}
	if len(claims) > maxClaims {
		claims = claims[:maxClaims]
	}
	return claims
}

// UncheckedQuantities lists numbers followed by a word or symbol that
// ExtractClaims does not recognize as a unit, so they still reach the judge
func UncheckedQuantities(draft string) []string {
	text := StripCitations(draft)
	var out []string
	for _, m := range looseQuantityPattern.FindAllString(text, -1) {
		out = append(out, strings.TrimSpace(m))
		if len(out) == maxClaims {
			break
		}
	}
	return out
}

// NumericIssues lists numbers with units in the draft that no supporting chunk contains
func NumericIssues(draft string, chunks []models.Chunk) []string {
	known := make(map[string]bool)
	var values []float64
	for _, c := range chunks {
		for _, raw := range contextNumber.FindAllString(c.Text, -1) {
			if v, ok := parseNumber(raw); ok {
				key := strconv.FormatFloat(v, 'f', -1, 64)
				if !known[key] {
					known[key] = true
					values = append(values, v)
				}
			}
		}
	}

	var issues []string
	seen := make(map[string]bool)
	text := StripCitations(draft)
	for _, q := range quantities(text) {
		claim := q.claim()
		v, ok := parseNumber(q.number)
		if !ok || seen[claim] {
			continue
		}
		seen[claim] = true
		if !containsValue(values, v) {
			issues = append(issues, fmt.Sprintf("numeric value %q not found in supporting context", claim))
		}
	}
	return issues
}

// CitationIssues lists citations that name no supporting chunk
func CitationIssues(draft string, chunks []models.Chunk) []string {
	pages := make(map[Citation]bool)
	for _, c := range chunks {
		pages[Citation{Document: strings.ToLower(c.SourceDocument), Page: c.PageNumber}] = true
	}
	var issues []string
	seen := make(map[Citation]bool)
	for _, cit := range ParseCitations(draft) {
		key := Citation{Document: strings.ToLower(cit.Document), Page: cit.Page}
		if seen[key] || pages[key] {
			continue
		}
		seen[key] = true
		issues = append(issues, fmt.Sprintf("citation %s does not match any supporting chunk", cit))
	}
	return issues
}

// parseNumber reads "2,694.5" and "2694.5" alike. A comma not followed by
// exactly three digits is a decimal comma, and so is any comma after a
// leading zero ("0,660").
func parseNumber(raw string) (float64, bool) {
	raw = strings.TrimRight(raw, ",.")
	parts := strings.Split(raw, ",")
	if len(parts) > 1 {
		lead := parts[0]
		thousands := len(lead) >= 1 && len(lead) <= 3 && lead[0] != '0'
		for _, p := range parts[1:] {
			if head, _, _ := strings.Cut(p, "."); len(head) != 3 {
				thousands = false
				break
			}
		}
		if thousands {
			raw = strings.Join(parts, "")
		} else if len(parts) == 2 && !strings.Contains(raw, ".") {
			raw = parts[0] + "." + parts[1]
		} else {
			return 0, false
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil
}

func containsValue(values []float64, v float64) bool {
	for _, known := range values {
		if math.Abs(known-v) <= 1e-9*math.Max(1, math.Abs(v)) {
			return true
		}
	}
	return false
}
