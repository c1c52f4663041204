// ABOUTME: BM25 keyword scoring and the tokenizer shared with the SQLite FTS query builder
// ABOUTME: Scores are computed over the filtered candidate set only
package storage

import (
	"math"
	"strings"
	"unicode"
)

// BM25 parameters (Okapi defaults)
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "for": true, "from": true, "has": true, "have": true, "how": true, "in": true,
	"is": true, "it": true, "its": true, "me": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "this": true, "to": true, "was": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "with": true, "give": true, "tell": true,
	"about": true, "please": true, "there": true,
}

// Tokenize lowercases text and splits it into search terms. Numbers are kept,
// stop words and single letters are dropped.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '-'
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".-")
		if f == "" || stopWords[f] {
			continue
		}
		if len([]rune(f)) < 2 && !unicode.IsDigit([]rune(f)[0]) {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// BM25Scores scores each document against the query terms. The corpus
// statistics come from docs itself.
func BM25Scores(docs []string, terms []string) []float64 {
	scores := make([]float64, len(docs))
	if len(docs) == 0 || len(terms) == 0 {
		return scores
	}

	tokenized := make([]map[string]int, len(docs))
	lengths := make([]int, len(docs))
	df := make(map[string]int)
	total := 0
	for i, d := range docs {
		tf := make(map[string]int)
		toks := Tokenize(d)
		for _, tok := range toks {
			tf[tok]++
		}
		for tok := range tf {
			df[tok]++
		}
		tokenized[i] = tf
		lengths[i] = len(toks)
		total += len(toks)
	}

	avgLen := float64(total) / float64(len(docs))
	if avgLen == 0 {
		return scores
	}
	n := float64(len(docs))

	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true

		freq := df[term]
		if freq == 0 {
			continue
		}
		// Lucene-style idf, always positive
		idf := math.Log(1 + (n-float64(freq)+0.5)/(float64(freq)+0.5))
		for i, tf := range tokenized {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			norm := f * (bm25K1 + 1) / (f + bm25K1*(1-bm25B+bm25B*float64(lengths[i])/avgLen))
			scores[i] += idf * norm
		}
	}
	return scores
}
