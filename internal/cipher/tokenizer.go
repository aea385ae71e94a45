package cipher

import (
	"strings"
	"unicode/utf8"
)

// Tokenize splits one encoded word into vocabulary tokens, scanning left to
// right and taking the longest vocabulary token that matches at each
// position. A position where nothing matches yields a single-rune literal
// token, so unknown input is carried through instead of rejected.
func Tokenize(word string) []string {
	if word == "" {
		return nil
	}
	tokens := make([]string, 0, utf8.RuneCountInString(word))
	pos := 0
	for pos < len(word) {
		n := longestMatch(word[pos:])
		if n == 0 {
			_, n = utf8.DecodeRuneInString(word[pos:])
		}
		tokens = append(tokens, word[pos:pos+n])
		pos += n
	}
	return tokens
}

// longestMatch returns the byte length of the first vocabulary token that
// prefixes s, or 0.
func longestMatch(s string) int {
	for _, tok := range vocabulary {
		if strings.HasPrefix(s, tok) {
			return len(tok)
		}
	}
	return 0
}

// reverse reverses a token slice in place.
func reverse(tokens []string) {
	for i, j := 0, len(tokens)-1; i < j; i, j = i+1, j-1 {
		tokens[i], tokens[j] = tokens[j], tokens[i]
	}
}
