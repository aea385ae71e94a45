package cipher

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolTable_Invertible(t *testing.T) {
	for l := 'A'; l <= 'Z'; l++ {
		sym := SymbolOf(l)
		require.NotEmpty(t, sym, "letter %c", l)
		got, ok := LetterOf(sym)
		require.True(t, ok, "symbol %q", sym)
		assert.Equal(t, l, got)
	}
}

func TestSymbolTable_Injective(t *testing.T) {
	seen := make(map[string]rune)
	for l := 'A'; l <= 'Z'; l++ {
		sym := SymbolOf(l)
		prev, dup := seen[sym]
		assert.False(t, dup, "%c and %c share %q", prev, l, sym)
		seen[sym] = l
	}
	assert.Len(t, seen, 26)
}

func TestSymbolOf_NonLetter(t *testing.T) {
	assert.Equal(t, "a", SymbolOf('a'))
	assert.Equal(t, "!", SymbolOf('!'))
}

func TestLetterOf_Unknown(t *testing.T) {
	_, ok := LetterOf("~")
	assert.False(t, ok)
	_, ok = LetterOf("(C)")
	assert.False(t, ok)
	_, ok = LetterOf("")
	assert.False(t, ok)
}

func TestVocabulary_Contents(t *testing.T) {
	vocab := Vocabulary()
	assert.Len(t, vocab, 30)
	assert.Contains(t, vocab, PrefixConsonant)
	assert.Contains(t, vocab, PrefixVowel)
	assert.Contains(t, vocab, LengthSuffix)
	assert.Contains(t, vocab, VowelMarker)
	for _, tok := range vocab {
		assert.NotEmpty(t, tok)
	}
}

func TestVocabulary_LongestFirst(t *testing.T) {
	vocab := Vocabulary()
	for i := 1; i < len(vocab); i++ {
		assert.GreaterOrEqual(t,
			utf8.RuneCountInString(vocab[i-1]), utf8.RuneCountInString(vocab[i]),
			"%q sorted before %q", vocab[i-1], vocab[i])
	}
	assert.Equal(t, 3, utf8.RuneCountInString(vocab[0]))
	assert.Equal(t, 1, utf8.RuneCountInString(vocab[len(vocab)-1]))
}

func TestVocabulary_ReturnsCopy(t *testing.T) {
	v := Vocabulary()
	v[0] = "mutated"
	assert.NotEqual(t, "mutated", Vocabulary()[0])
}

func TestLegend_Alphabetical(t *testing.T) {
	legend := Legend()
	require.Len(t, legend, 26)
	assert.Equal(t, Entry{Letter: "A", Symbol: "4"}, legend[0])
	assert.Equal(t, Entry{Letter: "H", Symbol: "[-]"}, legend[7])
	assert.Equal(t, Entry{Letter: "Z", Symbol: "2"}, legend[25])
	for i := 1; i < len(legend); i++ {
		assert.Less(t, legend[i-1].Letter, legend[i].Letter)
	}
}

func TestIsVowel(t *testing.T) {
	for _, l := range "AEIOU" {
		assert.True(t, IsVowel(l), string(l))
	}
	for _, l := range "BCDYZa" {
		assert.False(t, IsVowel(l), string(l))
	}
}
