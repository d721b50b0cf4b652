package resolver

import (
	"fmt"

	"hanpin/internal/dict"
)

// defaultOnlyConfidence is reported when only the table default (or the
// bare candidate list) was reachable for a statistical pick.
const defaultOnlyConfidence = 0.3

// StatPick is the statistical disambiguator's answer for one polyphone.
type StatPick struct {
	Reading    string
	Confidence float64
	// Confident is true only when the supporting row clears the
	// configured support, probability, and margin thresholds.
	Confident bool
	// Key is the context key that supplied the answer, for provenance.
	Key string
}

// PickReading chooses a default reading for a polyphone from the
// context probability table. Lookup order: exact "pos=P|ner=N" key,
// then "pos=P", then the table default, then the first dictionary
// candidate. It never fails: an empty table still yields the first
// candidate at minimum confidence.
func PickReading(store *dict.Store, ch rune, candidates []string, upos, ner string) StatPick {
	ctx, ok := store.Contexts(ch)
	if !ok {
		return candidatePick(candidates, "no_context_entry")
	}

	th := store.DisambigThresholds()
	keys := []string{
		fmt.Sprintf("pos=%s|ner=%s", upos, ner),
		fmt.Sprintf("pos=%s", upos),
	}
	for _, key := range keys {
		stat, ok := ctx.PerKey[key]
		if !ok || stat.Best == "" {
			continue
		}
		confident := stat.N >= th.MinSupport &&
			stat.P >= th.MinProb &&
			stat.P-stat.P2 >= th.MinMargin
		return StatPick{Reading: stat.Best, Confidence: stat.P, Confident: confident, Key: key}
	}

	if ctx.Default != "" {
		return StatPick{Reading: ctx.Default, Confidence: defaultOnlyConfidence, Key: "default"}
	}
	if len(ctx.Candidates) > 0 {
		return StatPick{Reading: ctx.Candidates[0], Confidence: defaultOnlyConfidence, Key: "candidates"}
	}
	return candidatePick(candidates, "empty_context_entry")
}

// candidatePick is the deterministic floor: the dictionary's first
// declared candidate, minimum confidence, never confident.
func candidatePick(candidates []string, key string) StatPick {
	if len(candidates) == 0 {
		return StatPick{Key: key}
	}
	return StatPick{Reading: candidates[0], Confidence: 0, Key: key}
}
