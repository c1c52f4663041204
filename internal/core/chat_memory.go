// ABOUTME: ChatMemory keeps a bounded FIFO of recent turns and per-well facts
// ABOUTME: Facts are captured from cited answers so follow-up questions can reuse them
package core

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/models"
)

// WellFact is one remembered value about a well
type WellFact struct {
	Value     string `json:"value"`
	Citation  string `json:"citation,omitempty"`
	TurnIndex int    `json:"turn_index"`
}

// WellFacts maps a fact key (total_depth, md, tvd, temperature) to its latest value
type WellFacts map[string]WellFact

var (
	labelFirstPattern = regexp.MustCompile(`(?i)\b(total depth|TD|MD|TVD)\b[^\n]{0,40}?\b(\d[\d,]*(?:\.\d+)?)\s*m\b`)
	valueFirstPattern = regexp.MustCompile(`\b(\d[\d,]*(?:\.\d+)?)\s*m\s+(MD|TVD)\b`)
	tempFactPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*°\s?C`)
	citationPattern   = regexp.MustCompile(`\(([^()\n]+?),\s*p\.\s*(\d+)\)`)
)

var factKeys = map[string]string{"total depth": "total_depth", "td": "total_depth", "md": "md", "tvd": "tvd"}

// ChatMemory is safe for concurrent use
type ChatMemory struct {
	mu           sync.RWMutex
	maxTurns     int
	captureFacts bool
	turns        []models.ConversationTurn
	nextIndex    int
	facts        map[string]WellFacts
}

// NewChatMemory creates an empty memory
func NewChatMemory(cfg config.MemoryConfig) *ChatMemory {
	maxTurns := cfg.MaxTurns
	if maxTurns < 1 {
		maxTurns = 6
	}
	return &ChatMemory{
		maxTurns:     maxTurns,
		captureFacts: cfg.EnableWellContext,
		facts:        make(map[string]WellFacts),
	}
}

// Append stores a turn, evicting the oldest when full, and returns it with its assigned index
func (m *ChatMemory) Append(turn models.ConversationTurn) models.ConversationTurn {
	m.mu.Lock()
	defer m.mu.Unlock()

	turn.TurnIndex = m.nextIndex
	m.nextIndex++
	turn.CitedWells = append([]string(nil), turn.CitedWells...)

	m.turns = append(m.turns, turn)
	if over := len(m.turns) - m.maxTurns; over > 0 {
		m.turns = append([]models.ConversationTurn(nil), m.turns[over:]...)
	}

	if m.captureFacts {
		m.captureWellFacts(turn)
	}
	return turn
}

// RecentContext returns up to n turns, oldest first. n <= 0 returns every turn held.
func (m *ChatMemory) RecentContext(n int) []models.ConversationTurn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || n > len(m.turns) {
		n = len(m.turns)
	}
	out := make([]models.ConversationTurn, n)
	copy(out, m.turns[len(m.turns)-n:])
	for i := range out {
		out[i].CitedWells = append([]string(nil), out[i].CitedWells...)
	}
	return out
}

// WellContext returns a copy of the facts known about a well
func (m *ChatMemory) WellContext(wellID string) WellFacts {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := WellFacts{}
	for k, v := range m.facts[strings.ToUpper(wellID)] {
		out[k] = v
	}
	return out
}

// LastCitedWell is the most recently cited well, or "" when none
func (m *ChatMemory) LastCitedWell() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.turns) - 1; i >= 0; i-- {
		if w := m.turns[i].CitedWells; len(w) > 0 {
			return w[len(w)-1]
		}
	}
	return ""
}

// Len returns the number of turns held
func (m *ChatMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// Reset clears turns and facts. Turn indexes keep increasing.
func (m *ChatMemory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
	m.facts = make(map[string]WellFacts)
}

// FormatContext renders the last n turns and known well facts for a prompt, capped at maxChars
func (m *ChatMemory) FormatContext(n int, wellID string, maxChars int) string {
	var sb strings.Builder
	for _, t := range m.RecentContext(n) {
		fmt.Fprintf(&sb, "Previous Q: %s\nA: %s\n", truncate(t.Query, 100), truncate(t.Answer, 200))
	}
	if wellID != "" {
		if facts := m.WellContext(wellID); len(facts) > 0 {
			fmt.Fprintf(&sb, "Known facts about %s:", wellID)
			for _, key := range []string{"total_depth", "md", "tvd", "temperature"} {
				if f, ok := facts[key]; ok {
					fmt.Fprintf(&sb, " %s=%s", key, f.Value)
				}
			}
			sb.WriteString("\n")
		}
	}
	return truncate(strings.TrimSpace(sb.String()), maxChars)
}

// captureWellFacts must be called with the write lock held
func (m *ChatMemory) captureWellFacts(turn models.ConversationTurn) {
	if len(turn.CitedWells) == 0 || turn.Answer == "" {
		return
	}
	found := WellFacts{}
	record := func(label, value string, end int) {
		key := factKeys[strings.ToLower(label)]
		if _, ok := found[key]; ok {
			return
		}
		found[key] = WellFact{
			Value:     strings.ReplaceAll(value, ",", "") + " m",
			Citation:  citationAfter(turn.Answer, end),
			TurnIndex: turn.TurnIndex,
		}
	}
	// "2694.5 m MD" is unambiguous, so it wins over "MD ... 2694.5 m"
	for _, match := range valueFirstPattern.FindAllStringSubmatchIndex(turn.Answer, -1) {
		record(turn.Answer[match[4]:match[5]], turn.Answer[match[2]:match[3]], match[1])
	}
	for _, match := range labelFirstPattern.FindAllStringSubmatchIndex(turn.Answer, -1) {
		record(turn.Answer[match[2]:match[3]], turn.Answer[match[4]:match[5]], match[1])
	}
	if match := tempFactPattern.FindStringSubmatchIndex(turn.Answer); match != nil {
		found["temperature"] = WellFact{
			Value:     turn.Answer[match[2]:match[3]] + " °C",
			Citation:  citationAfter(turn.Answer, match[1]),
			TurnIndex: turn.TurnIndex,
		}
	}
	if len(found) == 0 {
		return
	}
	for _, w := range turn.CitedWells {
		key := strings.ToUpper(w)
		if m.facts[key] == nil {
			m.facts[key] = WellFacts{}
		}
		for k, v := range found {
			m.facts[key][k] = v
		}
	}
}

// citationAfter returns the first "(doc, p.N)" that follows offset on the same sentence
func citationAfter(text string, offset int) string {
	rest := text[offset:]
	if end := strings.IndexAny(rest, "\n"); end >= 0 {
		rest = rest[:end]
	}
	if loc := citationPattern.FindStringIndex(rest); loc != nil && loc[0] < 40 {
		return rest[loc[0]:loc[1]]
	}
	return ""
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
