package cache

import (
	"sort"
	"strings"
	"unicode"
)

// KeyPrefix is the exact-tier key namespace.
const KeyPrefix = "faq_cache:"

// Frozen stop-word lists. These are part of the cache key format:
// changing them invalidates every existing key, so they stay fixed.
var englishStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "can": {}, "could": {}, "do": {}, "does": {},
	"for": {}, "from": {}, "had": {}, "has": {}, "have": {}, "how": {},
	"i": {}, "if": {}, "in": {}, "is": {}, "it": {}, "its": {}, "me": {},
	"my": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {},
	"please": {}, "should": {}, "so": {}, "that": {}, "the": {},
	"their": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "to": {}, "was": {}, "we": {}, "were": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "why": {},
	"will": {}, "with": {}, "would": {}, "you": {}, "your": {},
}

var russianStopWords = map[string]struct{}{
	"а": {}, "бы": {}, "быть": {}, "в": {}, "вас": {}, "вот": {},
	"все": {}, "всё": {}, "вы": {}, "где": {}, "да": {}, "для": {},
	"еще": {}, "ещё": {}, "же": {}, "за": {}, "и": {}, "из": {},
	"или": {}, "их": {}, "как": {}, "когда": {}, "кто": {}, "ли": {},
	"меня": {}, "мне": {}, "мой": {}, "мы": {}, "на": {}, "не": {},
	"нет": {}, "но": {}, "ну": {}, "о": {}, "об": {}, "он": {},
	"она": {}, "они": {}, "от": {}, "по": {}, "пожалуйста": {},
	"при": {}, "с": {}, "со": {}, "так": {}, "то": {}, "ты": {},
	"у": {}, "уже": {}, "что": {}, "чтобы": {}, "эта": {}, "это": {},
	"этот": {}, "я": {},
}

func isStopWord(token string) bool {
	if _, ok := englishStopWords[token]; ok {
		return true
	}
	_, ok := russianStopWords[token]
	return ok
}

// Normalize produces the deterministic bilingual cache key body:
// lower-case, strip non word or space characters, tokenize, drop
// stop-words, sort, rejoin with single spaces.
func Normalize(question string) string {
	var cleaned strings.Builder
	for _, r := range strings.ToLower(question) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			cleaned.WriteRune(r)
		case unicode.IsSpace(r):
			cleaned.WriteRune(' ')
		}
	}

	tokens := strings.Fields(cleaned.String())
	kept := tokens[:0]
	for _, token := range tokens {
		if isStopWord(token) {
			continue
		}
		kept = append(kept, token)
	}
	sort.Strings(kept)
	return strings.TrimSpace(strings.Join(kept, " "))
}

// KeyFor maps a raw question onto its exact-tier store key.
func KeyFor(question string) string {
	return KeyPrefix + Normalize(question)
}

// RelevanceTokens extracts the tokens the semantic-tier relevance
// check compares: length > 3, stop-words dropped.
func RelevanceTokens(question string) []string {
	var cleaned strings.Builder
	for _, r := range strings.ToLower(question) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			cleaned.WriteRune(r)
		} else {
			cleaned.WriteRune(' ')
		}
	}
	var out []string
	for _, token := range strings.Fields(cleaned.String()) {
		if len([]rune(token)) <= 3 || isStopWord(token) {
			continue
		}
		out = append(out, token)
	}
	return out
}

// OverlapRatio is the fraction of query tokens found in the reference
// text. Returns 0 when the query yields no tokens.
func OverlapRatio(queryTokens []string, reference string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	refSet := map[string]struct{}{}
	var cleaned strings.Builder
	for _, r := range strings.ToLower(reference) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			cleaned.WriteRune(r)
		} else {
			cleaned.WriteRune(' ')
		}
	}
	for _, token := range strings.Fields(cleaned.String()) {
		refSet[token] = struct{}{}
	}
	matched := 0
	for _, token := range queryTokens {
		if _, ok := refSet[token]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}
