package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer turns prose into comparable terms: lower-cased words with
// stopwords removed and, optionally, inflections stripped.
type Tokenizer struct {
	stemmer   *Stemmer
	stopwords map[string]struct{}
}

func NewTokenizer(useStemming bool) *Tokenizer {
	t := &Tokenizer{stopwords: defaultStopwords()}
	if useStemming {
		t.stemmer = NewStemmer()
	}
	return t
}

// Tokenize returns the terms of text in order of appearance.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		if t.stemmer != nil {
			word = t.stemmer.Stem(word)
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// Bag counts the terms of text.
func (t *Tokenizer) Bag(text string) map[string]int {
	bag := make(map[string]int)
	for _, tok := range t.Tokenize(text) {
		bag[tok]++
	}
	return bag
}

// CountTokens approximates the LLM token count of text (about 1.3 tokens
// per word).
func (t *Tokenizer) CountTokens(text string) int {
	words := splitWords(text)
	if len(words) == 0 {
		return 0
	}
	return int(float64(len(words)) * 1.3)
}

// splitWords splits text on anything that is not a letter or digit.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
		"these", "those", "there", "then", "into", "about", "according",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
