package analyzer

import (
	"testing"
)

func TestTokenizer_Tokenize_WithStemming(t *testing.T) {
	tok := NewTokenizer(true)

	tokens := tok.Tokenize("Patients treated with inhibitors")
	want := []string{"patient", "treat", "inhibitor"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %v, got %v", want, tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], tokens[i])
		}
	}
}

func TestTokenizer_Tokenize_WithoutStemming(t *testing.T) {
	tok := NewTokenizer(false)

	tokens := tok.Tokenize("running dogs are playing")
	if len(tokens) != 3 {
		t.Errorf("expected 3 tokens, got %d: %v", len(tokens), tokens)
	}
	if tokens[0] != "running" {
		t.Errorf("expected 'running' to remain unstemmed, got %v", tokens)
	}
}

func TestTokenizer_StopwordAndShortWordRemoval(t *testing.T) {
	tok := NewTokenizer(false)

	tokens := tok.Tokenize("the quick brown fox and a I")
	for _, token := range tokens {
		if token == "the" || token == "and" {
			t.Errorf("stopword should be removed, got %v", tokens)
		}
		if len(token) < 2 {
			t.Errorf("short word should be removed: %s", token)
		}
	}
}

func TestTokenizer_Bag(t *testing.T) {
	tok := NewTokenizer(true)

	bag := tok.Bag("Dose, doses and dosing.")
	if bag["dose"] != 3 {
		t.Errorf("expected dose x3, got %v", bag)
	}
}

func TestTokenizer_EmptyInput(t *testing.T) {
	tok := NewTokenizer(true)

	if tokens := tok.Tokenize(""); len(tokens) != 0 {
		t.Errorf("expected 0 tokens for empty input, got %d", len(tokens))
	}
	if count := tok.CountTokens(""); count != 0 {
		t.Errorf("expected 0 count for empty input, got %d", count)
	}
}

func TestStemmer(t *testing.T) {
	s := NewStemmer()
	cases := map[string]string{
		"caresses":  "caress",
		"ponies":    "poni",
		"cats":      "cat",
		"agreed":    "agre",
		"treated":   "treat",
		"hopping":   "hop",
		"filing":    "file",
		"rated":     "rate",
		"happy":     "happi",
		"sky":       "sky",
		"über":      "über",
		"mg":        "mg",
		"reporting": "report",
	}
	for in, want := range cases {
		if got := s.Stem(in); got != want {
			t.Errorf("Stem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"hello world", 2},
		{"hello-world", 2},
		{"ACE-inhibitors (e.g. lisinopril)", 5},
		{"123numbers456", 1},
		{"", 0},
	}

	for _, tt := range tests {
		words := splitWords(tt.input)
		if len(words) != tt.expected {
			t.Errorf("splitWords(%q) = %d words, want %d: %v", tt.input, len(words), tt.expected, words)
		}
	}
}
