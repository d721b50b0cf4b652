// Package pinyin canonicalizes romanized readings. Every reading that is
// compared or emitted anywhere in the system passes through Normalize
// first, so dictionary entries, rule choose values, and report output all
// agree on one spelling.
package pinyin

import "strings"

// vReplacer canonicalizes the rounded front vowel. Datasets disagree on
// whether to write it as ü or as the typable stand-in v; some also carry
// the IPA script g (U+0261) instead of ASCII g. Toned v forms (v with a
// combining tone mark) collapse to the toned ü once the base letter is
// rewritten, because the combining mark follows the base rune unchanged.
var vReplacer = strings.NewReplacer(
	"ɡ", "g",
	"v", "ü",
	"V", "Ü",
)

// Normalize canonicalizes a single-syllable reading or an already
// space-free multi-syllable reading. Neutral tone carries no diacritic,
// so there is nothing to strip for it. Normalize is idempotent: the
// output contains no v, V, or script g for a second pass to rewrite.
func Normalize(reading string) string {
	return vReplacer.Replace(reading)
}

// NormalizeWord canonicalizes a whole-word reading from the word table,
// where syllables are separated by spaces, into the space-free form used
// in output.
func NormalizeWord(reading string) string {
	return Normalize(strings.ReplaceAll(reading, " ", ""))
}

// Syllables splits a word-table reading into its per-character syllables
// (normalized), for aligning a word reading against its characters.
func Syllables(reading string) []string {
	fields := strings.Fields(reading)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, Normalize(f))
	}
	return out
}

// Equal reports whether two readings are the same after normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
