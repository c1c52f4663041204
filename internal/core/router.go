// ABOUTME: Router decides the query mode and target well for an incoming question
// ABOUTME: Keyword routing over the closed QueryMode set plus well-name detection
package core

import (
	"regexp"
	"strings"
	"sync"

	"github.com/harper/wellrag/internal/models"
)

var (
	wellPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b[A-Z]{2,4}-GT-\d{2}(?:-S\d+)?(?:-\d{2})?\b`),
		regexp.MustCompile(`\b[A-Z]{4,}-GT-\d{2}(?:-S\d+)?\b`),
	}
	spacedWellPattern = regexp.MustCompile(`\b([A-Z]{2,4})\s+GT\s+(\d{2})\b`)
	deicticPattern    = regexp.MustCompile(`(?i)\b(this|that|the same|same)\s+well\b`)
)

var (
	extractionKeywords = []string{"extract", "trajectory"}
	summaryKeywords    = []string{"summary", "summarize", "summarise", "overview"}
)

// Router is the query dispatcher. Safe for concurrent use.
type Router struct {
	mu         sync.RWMutex
	knownWells []string
}

// NewRouter creates a Router that prefers the given well names over pattern matches
func NewRouter(knownWells []string) *Router {
	return &Router{knownWells: append([]string(nil), knownWells...)}
}

// SetKnownWells replaces the list of wells matched by name
func (r *Router) SetKnownWells(wells []string) {
	wells = append([]string(nil), wells...)
	r.mu.Lock()
	r.knownWells = wells
	r.mu.Unlock()
}

func (r *Router) wells() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.knownWells
}

// Route picks the mode by keyword and the well by name. Deictic references
// ("this well") resolve to the last well cited in memory.
func (r *Router) Route(query string, memory *ChatMemory) models.QueryRoute {
	route := models.QueryRoute{Mode: DetectMode(query), WellID: r.DetectWell(query)}
	if route.WellID == "" && memory != nil && deicticPattern.MatchString(query) {
		route.WellID = memory.LastCitedWell()
	}
	return route
}

// DetectMode routes by keyword; anything unrecognized is factual
func DetectMode(query string) models.QueryMode {
	lower := strings.ToLower(query)
	for _, kw := range extractionKeywords {
		if strings.Contains(lower, kw) {
			return models.QueryModeExtraction
		}
	}
	for _, kw := range summaryKeywords {
		if strings.Contains(lower, kw) {
			return models.QueryModeSummary
		}
	}
	return models.QueryModeFactual
}

// DetectWell returns the first well named in the text, or ""
func (r *Router) DetectWell(text string) string {
	lower := strings.ToLower(text)
	best, bestAt := "", -1
	for _, w := range r.wells() {
		if w == "" {
			continue
		}
		if at := strings.Index(lower, strings.ToLower(w)); at >= 0 && (bestAt < 0 || at < bestAt || (at == bestAt && len(w) > len(best))) {
			best, bestAt = w, at
		}
	}
	if best != "" {
		return best
	}
	return DetectWellName(text)
}

// DetectWellName matches well-name patterns without a known-well list
func DetectWellName(text string) string {
	upper := strings.ToUpper(text)
	for _, p := range wellPatterns {
		if m := p.FindString(upper); m != "" {
			return m
		}
	}
	if m := spacedWellPattern.FindStringSubmatch(upper); m != nil {
		return m[1] + "-GT-" + m[2]
	}
	return ""
}

// DetectWellNames returns every distinct well named in the text, in order of appearance
func DetectWellNames(text string) []string {
	upper := strings.ToUpper(text)
	type hit struct {
		at   int
		name string
	}
	var hits []hit
	for _, p := range wellPatterns {
		for _, loc := range p.FindAllStringIndex(upper, -1) {
			hits = append(hits, hit{loc[0], upper[loc[0]:loc[1]]})
		}
	}
	for _, m := range spacedWellPattern.FindAllStringSubmatchIndex(upper, -1) {
		hits = append(hits, hit{m[0], upper[m[2]:m[3]] + "-GT-" + upper[m[4]:m[5]]})
	}
	// earliest first, longer name first at the same offset
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && (hits[j].at < hits[j-1].at || (hits[j].at == hits[j-1].at && len(hits[j].name) > len(hits[j-1].name))); j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	seen := make(map[string]bool)
	var names []string
	covered := -1
	for _, h := range hits {
		if h.at < covered || seen[h.name] {
			continue
		}
		seen[h.name] = true
		names = append(names, h.name)
		covered = h.at + len(h.name)
	}
	return names
}
