package textmatch

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "but": {}, "for": {}, "with": {}, "from": {},
	"are": {}, "was": {}, "been": {}, "being": {}, "have": {}, "has": {},
	"had": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "can": {}, "this": {}, "that": {},
	"these": {}, "those": {}, "you": {}, "she": {}, "they": {}, "what": {},
	"which": {}, "who": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"not": {}, "error": {}, "failed": {},
}

// tokenize splits text into lowercase terms of at least three characters,
// dropping stopwords. Order and duplicates are preserved.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// uniqueTerms returns tokens with duplicates removed, keeping first occurrence.
func uniqueTerms(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// termSaturation dampens repeated terms; tf/(tf+k) approaches 1.
const termSaturation = 1.2

const (
	coverageWeight  = 0.7
	frequencyWeight = 0.3
)

// relevance blends query-term coverage with saturated term frequency.
// The result is in [0, 1]; 0 means no query term occurs in the document.
func relevance(queryTerms, docTokens []string) float64 {
	if len(queryTerms) == 0 || len(docTokens) == 0 {
		return 0
	}

	tf := make(map[string]int, len(docTokens))
	for _, t := range docTokens {
		tf[t]++
	}

	matched := 0
	var saturated float64
	for _, q := range queryTerms {
		n := tf[q]
		if n == 0 {
			continue
		}
		matched++
		saturated += float64(n) / (float64(n) + termSaturation)
	}
	if matched == 0 {
		return 0
	}

	n := float64(len(queryTerms))
	score := coverageWeight*float64(matched)/n + frequencyWeight*saturated/n
	return min(max(score, 0), 1)
}
