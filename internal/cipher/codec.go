package cipher

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Encode transforms every space-separated word of text. Words without any
// A–Z letters pass through untouched; other characters inside a word are
// dropped. Runs of spaces are kept as empty words, so the word count of the
// output always matches the input.
func Encode(text string) string {
	if text == "" {
		return ""
	}
	words := strings.Split(text, " ")
	upper := cases.Upper(language.Und)
	for i, w := range words {
		clean := cleanWord(upper, w)
		if clean == "" {
			continue
		}
		tokens := wordTokens(clean)
		reverse(tokens)
		words[i] = strings.Join(tokens, "")
	}
	return strings.Join(words, " ")
}

// Decode inverts Encode word by word.
func Decode(text string) string {
	if text == "" {
		return ""
	}
	words := strings.Split(text, " ")
	for i, w := range words {
		words[i] = decodeWord(w)
	}
	return strings.Join(words, " ")
}

// CleanWord reduces a raw word to its uppercase A–Z letters.
func CleanWord(word string) string {
	return cleanWord(cases.Upper(language.Und), word)
}

// WordTokens returns the forward (pre-reversal) token sequence for a raw
// word, or nil when the word has no letters.
func WordTokens(word string) []string {
	clean := CleanWord(word)
	if clean == "" {
		return nil
	}
	return wordTokens(clean)
}

func cleanWord(upper cases.Caser, word string) string {
	if word == "" {
		return ""
	}
	var sb strings.Builder
	for _, r := range upper.String(word) {
		if r >= 'A' && r <= 'Z' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// wordTokens expects a non-empty clean word.
func wordTokens(clean string) []string {
	tokens := make([]string, 0, 2*len(clean)+2)
	if IsVowel(rune(clean[0])) {
		tokens = append(tokens, PrefixVowel)
	} else {
		tokens = append(tokens, PrefixConsonant)
	}
	for _, l := range clean {
		tokens = append(tokens, symbols[l])
		if IsVowel(l) {
			tokens = append(tokens, VowelMarker)
		}
	}
	if len(clean) >= longWord {
		tokens = append(tokens, LengthSuffix)
	}
	return tokens
}

func decodeWord(word string) string {
	tokens := Tokenize(word)
	if len(tokens) == 0 {
		return ""
	}
	reverse(tokens)
	if isPrefixTag(tokens[0]) {
		tokens = tokens[1:]
	}
	if n := len(tokens); n > 0 && tokens[n-1] == LengthSuffix {
		tokens = tokens[:n-1]
	}

	var sb strings.Builder
	for _, tok := range tokens {
		if tok == VowelMarker {
			continue
		}
		if l, ok := letters[tok]; ok {
			sb.WriteRune(l)
			continue
		}
		sb.WriteString(tok)
	}
	return sb.String()
}
