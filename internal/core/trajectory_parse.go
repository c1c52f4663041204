// ABOUTME: Regex tier of trajectory extraction: header tables and inline labelled rows
// ABOUTME: Parsed rows are normalized to metres and validated per table segment
package core

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/harper/wellrag/internal/models"
)

var (
	depthTokenPattern = regexp.MustCompile(`(?i)\b(MD|TVD|measured\s+depth|true\s+vertical\s+depth|depth)\b`)

	tableScorePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(measured\s+depth|\bMD\b|depth\s+\(m\))`),
		regexp.MustCompile(`(?i)(true\s+vertical\s+depth|\bTVD\b)`),
		regexp.MustCompile(`(?i)\b(inclination|azimuth|angle|inner\s+diameter|ID)\b`),
		regexp.MustCompile(`(?i)MD\s*[\|\t ]\s*TVD`),
	}
	numericRowPattern = regexp.MustCompile(`\d{1,5}(?:\.\d+)?\s*[\|\t ]\s*\d{1,5}(?:\.\d+)?`)

	numberUnit = `(\d[\d,]*(?:\.\d+)?)\s*((?:mm|m|ft|inches|inch|in)\b|")?`
	inlineRow  = regexp.MustCompile(`(?i)\bMD\s*[:=]?\s*` + numberUnit + `[\s,;]*TVD\s*[:=]?\s*` + numberUnit +
		`(?:[\s,;]*ID\s*[:=]?\s*` + numberUnit + `)?`)

	cellNumber = regexp.MustCompile(`^(-?\d[\d,]*(?:\.\d+)?)\s*(m|ft|mm|in|inch|inches|")?$`)
	unitToken  = regexp.MustCompile(`(?i)^[\(\[]?\s*(m|metres?|meters?|ft|feet|mm|in|inch|inches)\s*[\)\]]?$`)
	unitInCell = regexp.MustCompile(`(?i)[\(\[]\s*(m|metres?|meters?|ft|feet|mm|in|inch|inches)\s*[\)\]]`)
	multiSpace = regexp.MustCompile(`\t+|\s{2,}`)
)

// rawRow is a parsed row before validation, depths in metres
type rawRow struct {
	md, tvd, id float64
	hasUnit     bool
	page        int
}

// segment is one table or one run of inline rows
type segment struct {
	rows []rawRow
}

// HasDepthTokens reports whether text mentions a depth column or quantity
func HasDepthTokens(text string) bool {
	return depthTokenPattern.MatchString(text)
}

// tableScore ranks how table-like a chunk is
func tableScore(text string) int {
	score := 0
	for _, p := range tableScorePatterns {
		if p.MatchString(text) {
			score++
		}
	}
	if strings.ContainsAny(text, "|\t") {
		score += 2
	}
	score += min(len(numericRowPattern.FindAllString(text, -1)), 5)
	score += min(len(inlineRow.FindAllString(text, -1)), 5)
	return score
}

// rankCandidates keeps chunks with depth tokens, best table score first
func rankCandidates(chunks []models.Chunk) []models.Chunk {
	type scored struct {
		chunk models.Chunk
		score int
	}
	var out []scored
	for _, c := range chunks {
		if HasDepthTokens(c.Text) {
			out = append(out, scored{c, tableScore(c.Text)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].chunk.PageNumber != out[j].chunk.PageNumber {
			return out[i].chunk.PageNumber < out[j].chunk.PageNumber
		}
		return out[i].chunk.ID < out[j].chunk.ID
	})
	ranked := make([]models.Chunk, len(out))
	for i, s := range out {
		ranked[i] = s.chunk
	}
	return ranked
}

// parseChunk finds header tables and inline rows in one chunk
func parseChunk(c models.Chunk) []segment {
	segments := parseTables(c.Text, c.PageNumber)

	var inline segment
	for _, m := range inlineRow.FindAllStringSubmatch(c.Text, -1) {
		md, mdUnit, ok1 := parseValue(m[1], m[2])
		tvd, tvdUnit, ok2 := parseValue(m[3], m[4])
		if !ok1 || !ok2 {
			continue
		}
		unit := firstNonEmpty(mdUnit, tvdUnit)
		row := rawRow{
			md:      toMetres(md, firstNonEmpty(mdUnit, unit)),
			tvd:     toMetres(tvd, firstNonEmpty(tvdUnit, unit)),
			hasUnit: unit != "",
			page:    c.PageNumber,
		}
		if m[5] != "" {
			if id, idUnit, ok := parseValue(m[5], m[6]); ok {
				row.id = toMetres(id, idUnitFor(idUnit, unit))
			}
		}
		inline.rows = append(inline.rows, row)
	}
	if len(inline.rows) > 0 {
		segments = append(segments, inline)
	}
	return segments
}

type columns struct {
	md, tvd, id             int
	mdUnit, tvdUnit, idUnit string
	pipes                   bool
}

// parseTables scans for a header line naming MD and TVD and reads the numeric rows under it
func parseTables(text string, page int) []segment {
	lines := strings.Split(text, "\n")
	var segments []segment
	for i := 0; i < len(lines); i++ {
		cols, ok := parseHeader(lines[i])
		if !ok {
			continue
		}
		var seg segment
		j := i + 1
		for ; j < len(lines); j++ {
			line := strings.TrimSpace(lines[j])
			if line == "" || isSeparator(line) {
				if len(seg.rows) > 0 && line == "" {
					break
				}
				continue
			}
			row, ok := parseTableRow(line, cols, page)
			if !ok {
				break
			}
			seg.rows = append(seg.rows, row)
		}
		if len(seg.rows) > 0 {
			segments = append(segments, seg)
		}
		i = j - 1
	}
	return segments
}

func parseHeader(line string) (columns, bool) {
	if inlineRow.MatchString(line) {
		return columns{}, false
	}
	cols := columns{md: -1, tvd: -1, id: -1, pipes: strings.Contains(line, "|")}
	fields := splitFields(line, cols.pipes)
	if !cols.pipes {
		fields = mergeUnitTokens(fields)
	}
	for i, f := range fields {
		lower := strings.ToLower(f)
		unit := ""
		if m := unitInCell.FindStringSubmatch(f); m != nil {
			unit = normalizeUnit(m[1])
		}
		switch {
		case cols.tvd < 0 && (strings.Contains(lower, "tvd") || strings.Contains(lower, "true vertical")):
			cols.tvd, cols.tvdUnit = i, unit
		case cols.md < 0 && (wordMD.MatchString(f) || strings.Contains(lower, "measured")):
			cols.md, cols.mdUnit = i, unit
		case cols.id < 0 && (wordID.MatchString(f) || strings.Contains(lower, "diameter")):
			cols.id, cols.idUnit = i, unit
		}
	}
	return cols, cols.md >= 0 && cols.tvd >= 0
}

var (
	wordMD = regexp.MustCompile(`(?i)\bMD\b`)
	wordID = regexp.MustCompile(`(?i)\bID\b`)
)

func parseTableRow(line string, cols columns, page int) (rawRow, bool) {
	fields := splitFields(line, cols.pipes)
	if !cols.pipes {
		fields = mergeUnitTokens(fields)
	}
	cell := func(idx int) (float64, string, bool) {
		if idx < 0 || idx >= len(fields) {
			return 0, "", false
		}
		m := cellNumber.FindStringSubmatch(strings.TrimSpace(fields[idx]))
		if m == nil {
			return 0, "", false
		}
		return parseValue(m[1], m[2])
	}

	md, mdCellUnit, ok1 := cell(cols.md)
	tvd, tvdCellUnit, ok2 := cell(cols.tvd)
	if !ok1 || !ok2 {
		return rawRow{}, false
	}
	mdUnit := firstNonEmpty(cols.mdUnit, mdCellUnit)
	tvdUnit := firstNonEmpty(cols.tvdUnit, tvdCellUnit, mdUnit)
	row := rawRow{
		md:      toMetres(md, mdUnit),
		tvd:     toMetres(tvd, tvdUnit),
		hasUnit: mdUnit != "" || tvdUnit != "",
		page:    page,
	}
	if id, idCellUnit, ok := cell(cols.id); ok {
		row.id = toMetres(id, idUnitFor(firstNonEmpty(cols.idUnit, idCellUnit), mdUnit))
	}
	return row, true
}

func splitFields(line string, pipes bool) []string {
	var raw []string
	if pipes {
		raw = strings.Split(strings.Trim(strings.TrimSpace(line), "|"), "|")
	} else if multiSpace.MatchString(line) {
		raw = multiSpace.Split(strings.TrimSpace(line), -1)
	} else {
		raw = strings.Fields(line)
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if f = strings.TrimSpace(f); f != "" || pipes {
			out = append(out, f)
		}
	}
	return out
}

// mergeUnitTokens folds a bare "(m)" or "ft" field into the field before it
func mergeUnitTokens(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(out) > 0 && unitToken.MatchString(f) {
			out[len(out)-1] += " " + f
			continue
		}
		out = append(out, f)
	}
	return out
}

func isSeparator(line string) bool {
	return strings.Trim(line, "|-=+: ") == ""
}

func parseValue(num, unit string) (float64, string, bool) {
	v, ok := parseNumber(num)
	return v, normalizeUnit(unit), ok
}

func normalizeUnit(u string) string {
	switch strings.ToLower(strings.TrimSpace(u)) {
	case "m", "metre", "metres", "meter", "meters":
		return "m"
	case "ft", "feet":
		return "ft"
	case "in", "inch", "inches", `"`:
		return "in"
	case "mm":
		return "mm"
	}
	return ""
}

// toMetres converts a value in unit to metres. No unit means metres.
func toMetres(v float64, unit string) float64 {
	switch unit {
	case "ft":
		return v * 0.3048
	case "in":
		return v * 0.0254
	case "mm":
		return v / 1000
	}
	return v
}

// idUnitFor picks the inner diameter unit when the table gives none.
// Diameters in feet tables are in inches.
func idUnitFor(idUnit, depthUnit string) string {
	if idUnit != "" {
		return idUnit
	}
	if depthUnit == "ft" {
		return "in"
	}
	return depthUnit
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// maxInnerDiameter bounds a plausible casing or hole diameter, in metres
const maxInnerDiameter = 1.5

// validateSegment drops rows whose MD goes backwards or whose TVD exceeds MD.
// An implausible inner diameter is cleared but the depths are kept.
func validateSegment(seg segment) (valid []rawRow, anomalies []string) {
	const eps = 1e-6
	havePrev := false
	var prev rawRow
	for _, r := range seg.rows {
		if r.id > maxInnerDiameter {
			anomalies = append(anomalies, fmt.Sprintf("p.%d: ID %.3f m at MD %.2f m is implausible, dropped", r.page, r.id, r.md))
			r.id = 0
		}
		switch {
		case r.tvd > r.md+eps:
			anomalies = append(anomalies, fmt.Sprintf("p.%d: TVD %.2f m exceeds MD %.2f m", r.page, r.tvd, r.md))
		case havePrev && r.md < prev.md-eps:
			anomalies = append(anomalies, fmt.Sprintf("p.%d: MD %.2f m decreases after %.2f m", r.page, r.md, prev.md))
		default:
			valid = append(valid, r)
			prev, havePrev = r, true
		}
	}
	return valid, anomalies
}
