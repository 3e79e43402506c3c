package transform

import (
	"strings"
	"unicode"
)

// DetectLanguage guesses between ru and en from the script mix plus a
// stop-word vote. Cyrillic input from the other Slavic codes still
// comes back as ru, which is what the translation pair expects.
func DetectLanguage(text string) string {
	var cyrillic, latin int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	if cyrillic == 0 && latin == 0 {
		return "en"
	}
	if cyrillic > latin {
		return "ru"
	}
	if latin > cyrillic {
		return "en"
	}
	// Mixed scripts in equal measure: let the function words decide.
	if voteRussian(text) {
		return "ru"
	}
	return "en"
}

var russianFunctionWords = []string{"как", "что", "не", "на", "это", "мне", "для"}

func voteRussian(text string) bool {
	lowered := strings.ToLower(text)
	for _, w := range russianFunctionWords {
		if strings.Contains(lowered, " "+w+" ") ||
			strings.HasPrefix(lowered, w+" ") ||
			strings.HasSuffix(lowered, " "+w) {
			return true
		}
	}
	return false
}
