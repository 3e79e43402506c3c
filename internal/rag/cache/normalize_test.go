package cache

import "testing"

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"How to reset password?",
		"Как сбросить пароль?",
		"  multiple   spaces\tand\ttabs  ",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestNormalizeEquivalence(t *testing.T) {
	a := Normalize("How to reset password?")
	b := Normalize("Reset password, please")
	c := Normalize("reset PASSWORD")
	if a != b || b != c {
		t.Fatalf("want equal keys, got %q %q %q", a, b, c)
	}
	if a != "password reset" {
		t.Fatalf("normalized form: got=%q", a)
	}
}

func TestNormalizeRussianStopWords(t *testing.T) {
	a := Normalize("Как сбросить пароль?")
	b := Normalize("сбросить пароль, пожалуйста")
	if a != b {
		t.Fatalf("want equal keys, got %q vs %q", a, b)
	}
}

func TestKeyForPrefix(t *testing.T) {
	if got := KeyFor("reset password"); got != "faq_cache:password reset" {
		t.Fatalf("key: got=%q", got)
	}
}

func TestRelevanceTokensDropShortAndStopWords(t *testing.T) {
	got := RelevanceTokens("I forgot my password, help")
	want := map[string]bool{"forgot": true, "password": true, "help": true}
	if len(got) != len(want) {
		t.Fatalf("tokens: got=%v", got)
	}
	for _, token := range got {
		if !want[token] {
			t.Fatalf("unexpected token %q in %v", token, got)
		}
	}
}

func TestOverlapRatio(t *testing.T) {
	tokens := []string{"password", "reset", "account"}
	ratio := OverlapRatio(tokens, "Use settings>security to reset your password")
	if ratio < 0.66 || ratio > 0.67 {
		t.Fatalf("ratio: want=2/3 got=%v", ratio)
	}
	if got := OverlapRatio(nil, "anything"); got != 0 {
		t.Fatalf("empty tokens: want=0 got=%v", got)
	}
}
