package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hanpin/internal/tagger"
)

func tok(text, upos, xpos, ner string) *tagger.Token {
	return &tagger.Token{Text: text, UPOS: upos, XPOS: xpos, NER: ner}
}

func TestMatches_SelfKeys(t *testing.T) {
	bank := tok("银行", "NOUN", "NN", "ORG")

	t.Run("exact text", func(t *testing.T) {
		r := &Rule{Match: Match{Self: &MatchPart{Text: "银行"}}}
		assert.True(t, Matches(r, bank, nil, nil))
		assert.False(t, Matches(r, tok("学校", "NOUN", "NN", "O"), nil, nil))
	})

	t.Run("text_in", func(t *testing.T) {
		r := &Rule{Match: Match{Self: &MatchPart{TextIn: []string{"银行", "钱庄"}}}}
		assert.True(t, Matches(r, bank, nil, nil))
		assert.False(t, Matches(r, tok("学校", "NOUN", "NN", "O"), nil, nil))
	})

	t.Run("regex", func(t *testing.T) {
		r := &Rule{Match: Match{Self: &MatchPart{Regex: "^银.+"}}}
		assert.True(t, Matches(r, bank, nil, nil))
		assert.False(t, Matches(r, tok("学校", "NOUN", "NN", "O"), nil, nil))
	})

	t.Run("invalid regex never matches", func(t *testing.T) {
		r := &Rule{Match: Match{Self: &MatchPart{Regex: "("}}}
		assert.False(t, Matches(r, bank, nil, nil))
	})

	t.Run("contains", func(t *testing.T) {
		r := &Rule{Match: Match{Self: &MatchPart{Contains: []string{"行"}}}}
		assert.True(t, Matches(r, bank, nil, nil))
		r2 := &Rule{Match: Match{Self: &MatchPart{Contains: []string{"行", "猫"}}}}
		assert.False(t, Matches(r2, bank, nil, nil))
	})

	t.Run("tag lists", func(t *testing.T) {
		r := &Rule{Match: Match{Self: &MatchPart{UPOSIn: []string{"NOUN", "PROPN"}, NERIn: []string{"ORG"}}}}
		assert.True(t, Matches(r, bank, nil, nil))
		r.Match.Self.XPOSIn = []string{"VV"}
		assert.False(t, Matches(r, bank, nil, nil))
	})

	t.Run("keys AND together", func(t *testing.T) {
		r := &Rule{Match: Match{Self: &MatchPart{Text: "银行", UPOSIn: []string{"VERB"}}}}
		assert.False(t, Matches(r, bank, nil, nil))
	})
}

func TestMatches_NeighborBlocks(t *testing.T) {
	self := tok("得", "AUX", "VV", "O")
	prev := tok("他", "PRON", "PN", "O")
	next := tok("去", "VERB", "VV", "O")

	t.Run("prev and next constrain together", func(t *testing.T) {
		r := &Rule{Match: Match{
			Self: &MatchPart{Text: "得"},
			Prev: &MatchPart{UPOSIn: []string{"PRON"}},
			Next: &MatchPart{TextIn: []string{"去", "走"}},
		}}
		assert.True(t, Matches(r, self, prev, next))
		assert.False(t, Matches(r, self, tok("银行", "NOUN", "NN", "O"), next))
	})

	t.Run("missing neighbor fails the block by default", func(t *testing.T) {
		r := &Rule{Match: Match{Prev: &MatchPart{Text: "他"}}}
		assert.False(t, Matches(r, self, nil, next))
	})

	t.Run("allow_missing accepts an absent neighbor", func(t *testing.T) {
		r := &Rule{Match: Match{Prev: &MatchPart{Text: "他", AllowMissing: true}}}
		assert.True(t, Matches(r, self, nil, next))
		// A present neighbor must still satisfy the block.
		assert.False(t, Matches(r, self, tok("你", "PRON", "PN", "O"), next))
	})

	t.Run("empty match tree matches anything", func(t *testing.T) {
		r := &Rule{}
		assert.True(t, Matches(r, self, nil, nil))
	})
}
