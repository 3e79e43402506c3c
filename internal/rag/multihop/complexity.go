// Package multihop expands retrieval context for compound questions by
// walking a relation graph over the knowledge base.
package multihop

import (
	"strings"
	"unicode"
)

type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Hops is how many documents deep the resolver may traverse.
func (c Complexity) Hops() int {
	switch c {
	case ComplexityMedium:
		return 2
	case ComplexityComplex:
		return 3
	default:
		return 1
	}
}

var questionWords = map[string]bool{
	"who": true, "what": true, "when": true, "where": true, "why": true,
	"how": true, "which": true,
	"кто": true, "что": true, "когда": true, "где": true, "почему": true,
	"как": true, "какой": true, "какая": true, "зачем": true, "сколько": true,
}

var logicalConnectors = map[string]bool{
	"because": true, "therefore": true, "then": true, "if": true,
	"unless": true, "after": true,
	"если": true, "потому": true, "поэтому": true, "затем": true,
	"чтобы": true, "после": true,
}

var conjunctions = map[string]bool{
	"and": true, "or": true, "but": true,
	"и": true, "или": true, "но": true, "а": true,
}

// ScoreComplexity weighs the structural markers of a question: each
// question word 1.0, logical connector 1.5, conjunction 0.5, comma
// 0.5, plus a length bucket.
func ScoreComplexity(question string) float64 {
	var score float64
	score += 0.5 * float64(strings.Count(question, ","))

	words := tokenize(question)
	for _, w := range words {
		switch {
		case questionWords[w]:
			score += 1.0
		case logicalConnectors[w]:
			score += 1.5
		case conjunctions[w]:
			score += 0.5
		}
	}

	switch n := len(words); {
	case n >= 25:
		score += 1.5
	case n >= 12:
		score += 1.0
	case n >= 6:
		score += 0.5
	}
	return score
}

func ClassifyComplexity(question string) Complexity {
	switch score := ScoreComplexity(question); {
	case score < 2:
		return ComplexitySimple
	case score < 5:
		return ComplexityMedium
	default:
		return ComplexityComplex
	}
}

func tokenize(s string) []string {
	var out []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
		}
	}
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return out
}
