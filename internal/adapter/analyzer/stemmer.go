package analyzer

import "strings"

// Stemmer strips English inflectional suffixes (plurals, -ed, -ing) so that
// "treatments", "treated" and "treating" compare equal to "treat". It runs
// steps 1 and 5a of the Porter algorithm and leaves derivational suffixes
// alone.
type Stemmer struct{}

func NewStemmer() *Stemmer {
	return &Stemmer{}
}

// Stem returns the stem of a lower-case ASCII word. Other words are returned
// unchanged.
func (s *Stemmer) Stem(word string) string {
	if len(word) < 3 || !isASCIILower(word) {
		return word
	}
	word = stripPlural(word)
	word = stripTense(word)
	word = finalY(word)
	return dropFinalE(word)
}

func isASCIILower(word string) bool {
	for i := 0; i < len(word); i++ {
		if word[i] < 'a' || word[i] > 'z' {
			return false
		}
	}
	return true
}

func consonantAt(word string, i int) bool {
	switch word[i] {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	case 'y':
		return i == 0 || !consonantAt(word, i-1)
	}
	return true
}

// syllables counts vowel-consonant sequences (Porter's measure).
func syllables(word string) int {
	m := 0
	prevVowel := false
	for i := 0; i < len(word); i++ {
		c := consonantAt(word, i)
		if c && prevVowel {
			m++
		}
		prevVowel = !c
	}
	return m
}

func containsVowel(word string) bool {
	for i := 0; i < len(word); i++ {
		if !consonantAt(word, i) {
			return true
		}
	}
	return false
}

func stripPlural(word string) string {
	switch {
	case strings.HasSuffix(word, "sses"), strings.HasSuffix(word, "ies"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "ss"):
		return word
	case strings.HasSuffix(word, "s"):
		return word[:len(word)-1]
	}
	return word
}

func stripTense(word string) string {
	if strings.HasSuffix(word, "eed") {
		if syllables(word[:len(word)-3]) > 0 {
			return word[:len(word)-1]
		}
		return word
	}

	var stem string
	switch {
	case strings.HasSuffix(word, "ed"):
		stem = word[:len(word)-2]
	case strings.HasSuffix(word, "ing"):
		stem = word[:len(word)-3]
	default:
		return word
	}
	if !containsVowel(stem) {
		return word
	}

	n := len(stem)
	switch {
	case strings.HasSuffix(stem, "at"), strings.HasSuffix(stem, "bl"), strings.HasSuffix(stem, "iz"):
		return stem + "e"
	case n >= 2 && stem[n-1] == stem[n-2] && consonantAt(stem, n-1) && !strings.ContainsRune("lsz", rune(stem[n-1])):
		return stem[:n-1]
	case syllables(stem) == 1 && endsConsonantVowelConsonant(stem):
		return stem + "e"
	}
	return stem
}

func endsConsonantVowelConsonant(word string) bool {
	n := len(word)
	if n < 3 || !consonantAt(word, n-3) || consonantAt(word, n-2) || !consonantAt(word, n-1) {
		return false
	}
	return !strings.ContainsRune("wxy", rune(word[n-1]))
}

func finalY(word string) string {
	if strings.HasSuffix(word, "y") && containsVowel(word[:len(word)-1]) {
		return word[:len(word)-1] + "i"
	}
	return word
}

func dropFinalE(word string) string {
	if !strings.HasSuffix(word, "e") {
		return word
	}
	stem := word[:len(word)-1]
	m := syllables(stem)
	if m > 1 || (m == 1 && !endsConsonantVowelConsonant(stem)) {
		return stem
	}
	return word
}
