// Package dict holds the immutable lookup tables: word readings, per
// character candidate readings, the polyphone set, and the context
// probability table used for statistical disambiguation. A Store is
// loaded once and shared read-only across runs.
package dict

import (
	"unicode/utf8"

	"hanpin/internal/pinyin"
	"hanpin/internal/segment"
)

// ContextStat is one row of the context probability table: the best
// reading observed under a POS/NER key, its probability, the runner-up
// probability, and the supporting occurrence count.
type ContextStat struct {
	Best string  `json:"best"`
	P    float64 `json:"p"`
	P2   float64 `json:"p2"`
	N    int     `json:"n"`
}

// CharContexts is the per-character slice of the context table.
// Keys in PerKey are "pos=P|ner=N" or the coarser "pos=P".
type CharContexts struct {
	Default    string                 `json:"default"`
	Candidates []string               `json:"candidates"`
	PerKey     map[string]ContextStat `json:"contexts"`
}

// Thresholds gate whether a statistical pick counts as confident.
type Thresholds struct {
	MinSupport int     `json:"min_support"`
	MinProb    float64 `json:"min_prob"`
	MinMargin  float64 `json:"min_margin"`
}

// DefaultThresholds are applied when the context table carries none.
var DefaultThresholds = Thresholds{MinSupport: 5, MinProb: 0.85, MinMargin: 0.15}

// Store is the loaded dictionary. All maps are read-only after Load.
type Store struct {
	words      map[string]string
	chars      map[string][]string
	polyphones map[string][]string
	contexts   map[string]CharContexts
	thresholds Thresholds
	maxWordLen map[rune]int
}

// LookupWord returns the whole-word reading with inter-syllable spaces
// removed, or false if the word is not in the table.
func (s *Store) LookupWord(word string) (string, bool) {
	raw, ok := s.words[word]
	if !ok {
		return "", false
	}
	return pinyin.NormalizeWord(raw), true
}

// WordSyllables returns the word's reading split per character, or false
// if the word is unknown or its syllable count does not match its
// character count.
func (s *Store) WordSyllables(word string) ([]string, bool) {
	raw, ok := s.words[word]
	if !ok {
		return nil, false
	}
	syl := pinyin.Syllables(raw)
	if len(syl) != utf8.RuneCountInString(word) {
		return nil, false
	}
	return syl, true
}

// LookupChar returns the candidate readings for one character in the
// table's declared order. One candidate means the character is
// unambiguous; more than one marks a polyphone.
func (s *Store) LookupChar(ch rune) []string {
	cands := s.chars[string(ch)]
	if len(cands) == 0 {
		return nil
	}
	out := make([]string, len(cands))
	copy(out, cands)
	return out
}

// IsPolyphone reports whether ch has more than one standard reading.
func (s *Store) IsPolyphone(ch rune) bool {
	if len(s.chars[string(ch)]) > 1 {
		return true
	}
	return len(s.polyphones[string(ch)]) > 1
}

// Contexts returns the context probability entry for ch.
func (s *Store) Contexts(ch rune) (CharContexts, bool) {
	c, ok := s.contexts[string(ch)]
	return c, ok
}

// DisambigThresholds returns the confidence gates loaded with the
// context table.
func (s *Store) DisambigThresholds() Thresholds {
	return s.thresholds
}

// OverrideDisambigThresholds tightens or loosens the confidence gates
// after loading, keeping the loaded value for any zero field. It must
// be called before the store is shared across runs.
func (s *Store) OverrideDisambigThresholds(t Thresholds) {
	if t.MinSupport > 0 {
		s.thresholds.MinSupport = t.MinSupport
	}
	if t.MinProb > 0 {
		s.thresholds.MinProb = t.MinProb
	}
	if t.MinMargin > 0 {
		s.thresholds.MinMargin = t.MinMargin
	}
}

// HasWord reports whether word is in the word table.
func (s *Store) HasWord(word string) bool {
	_, ok := s.words[word]
	return ok
}

// MaxWordLen returns the length in runes of the longest word starting
// with first, at least 1. It bounds the longest-match fallback scan.
func (s *Store) MaxWordLen(first rune) int {
	if n := s.maxWordLen[first]; n > 0 {
		return n
	}
	return 1
}

// SegmentLongestMatch splits a Han span by forward maximum matching
// against the word table, falling back to single characters. It is the
// deterministic segmentation used when the tagging collaborator is
// unavailable or returns an invalid response.
func (s *Store) SegmentLongestMatch(text string) []string {
	runes := []rune(text)
	var out []string
	i := 0
	for i < len(runes) {
		maxLen := s.MaxWordLen(runes[i])
		if rest := len(runes) - i; maxLen > rest {
			maxLen = rest
		}
		matched := 1
		found := false
		for l := maxLen; l >= 1; l-- {
			if s.HasWord(string(runes[i : i+l])) {
				matched = l
				found = true
				break
			}
		}
		if !found {
			matched = 1
		}
		out = append(out, string(runes[i:i+matched]))
		i += matched
	}
	return out
}

func (s *Store) indexWordLengths() {
	s.maxWordLen = make(map[rune]int)
	for w := range s.words {
		first, _ := utf8.DecodeRuneInString(w)
		if first == utf8.RuneError {
			continue
		}
		if n := utf8.RuneCountInString(w); n > s.maxWordLen[first] {
			s.maxWordLen[first] = n
		}
	}
}

func allHan(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if !segment.IsHan(r) {
			return false
		}
	}
	return true
}
