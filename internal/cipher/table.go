// Package cipher implements the jejetography word transform: a fixed
// letter→symbol substitution wrapped in prefix, vowel and length markers,
// with each word's tokens reversed as whole units.
package cipher

import (
	"sort"
	"unicode/utf8"
)

// Structural tokens.
const (
	PrefixConsonant = "(C)"
	PrefixVowel     = "<V>"
	LengthSuffix    = "#L"
	VowelMarker     = "~"
)

// longWord is the clean-word length at which LengthSuffix is appended.
const longWord = 5

// symbols is the letter→symbol mapping. Several symbols share leading
// characters with others (")" and "()", "9~" and "~"), so matching must be
// longest-first.
var symbols = map[rune]string{
	'A': "4", 'B': "ß", 'C': "₵", 'D': ")", 'E': "3",
	'F': "ƒ", 'G': "6", 'H': "[-]", 'I': "1", 'J': "_/",
	'K': "<", 'L': "£", 'M': "^^", 'N': "()", 'O': "0",
	'P': "₱", 'Q': "9~", 'R': "Я", 'S': "5", 'T': "7",
	'U': "Ü", 'V': "√", 'W': "^/", 'X': "×", 'Y': "¥",
	'Z': "2",
}

var (
	letters    map[string]rune
	vocabulary []string
	legend     []Entry
)

func init() {
	letters = make(map[string]rune, len(symbols))
	for l, s := range symbols {
		if prev, dup := letters[s]; dup {
			panic("cipher: symbol " + s + " mapped by " + string(prev) + " and " + string(l))
		}
		letters[s] = l
	}

	vocabulary = make([]string, 0, len(symbols)+4)
	for s := range letters {
		vocabulary = append(vocabulary, s)
	}
	vocabulary = append(vocabulary, PrefixConsonant, PrefixVowel, LengthSuffix, VowelMarker)
	sort.Slice(vocabulary, func(i, j int) bool {
		a, b := vocabulary[i], vocabulary[j]
		if la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b); la != lb {
			return la > lb
		}
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})

	legend = make([]Entry, 0, len(symbols))
	for l := 'A'; l <= 'Z'; l++ {
		legend = append(legend, Entry{Letter: string(l), Symbol: symbols[l]})
	}
}

// Entry is one row of the reference legend.
type Entry struct {
	Letter string `json:"letter"`
	Symbol string `json:"symbol"`
}

// SymbolOf returns the symbol for an uppercase letter A–Z. Any other rune
// comes back as itself.
func SymbolOf(letter rune) string {
	if s, ok := symbols[letter]; ok {
		return s
	}
	return string(letter)
}

// LetterOf returns the letter a table symbol stands for.
func LetterOf(symbol string) (rune, bool) {
	l, ok := letters[symbol]
	return l, ok
}

// IsVowel reports whether an uppercase letter is A, E, I, O or U.
func IsVowel(letter rune) bool {
	switch letter {
	case 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}

// Vocabulary returns every token the decoder recognizes, longest first.
// The returned slice is a copy.
func Vocabulary() []string {
	out := make([]string, len(vocabulary))
	copy(out, vocabulary)
	return out
}

// Legend returns the letter/symbol pairs in alphabetical order.
func Legend() []Entry {
	out := make([]Entry, len(legend))
	copy(out, legend)
	return out
}

func isPrefixTag(tok string) bool {
	return tok == PrefixConsonant || tok == PrefixVowel
}
