package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hanpin/internal/tagger"
)

func fixedGenerator(policy LadderPolicy) *Generator {
	g := NewGenerator(policy)
	g.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }
	return g
}

func TestGenerator_MultiCharToken(t *testing.T) {
	g := fixedGenerator(DefaultLadder)
	obs := Observation{
		Token:      tagger.Token{Text: "银行", UPOS: "NOUN", XPOS: "NN", NER: "ORG"},
		Char:       "行",
		CharOffset: 1,
		Choose:     "háng",
	}
	snap := NewSnapshot([]Rule{rule("base", 500, "行", "xíng")}, nil)

	r := g.Generate(obs, snap, nil)

	assert.Equal(t, "override_2026-08-28_0001", r.ID)
	assert.Greater(t, r.Priority, snap.MaxPriority())

	require.NotNil(t, r.Match.Self)
	assert.Equal(t, "银行", r.Match.Self.Text, "multi-char token pins exact text")
	assert.Nil(t, r.Match.Prev)
	assert.Nil(t, r.Match.Next)
	assert.Equal(t, []string{"NOUN"}, r.Match.Self.UPOSIn)
	assert.Equal(t, []string{"ORG"}, r.Match.Self.NERIn)

	assert.Equal(t, "行", r.Target.Char)
	assert.Equal(t, Occurrence(1), r.Target.Occurrence)
	assert.Equal(t, "háng", r.Choose)
}

func TestGenerator_SingleCharTokenBindsNeighbors(t *testing.T) {
	g := fixedGenerator(DefaultLadder)
	obs := Observation{
		Token:      tagger.Token{Text: "得", UPOS: "AUX", XPOS: "VV", NER: "O"},
		Prev:       &tagger.Token{Text: "他", UPOS: "PRON", XPOS: "PN", NER: "O"},
		Next:       &tagger.Token{Text: "去", UPOS: "VERB", XPOS: "VV", NER: "O"},
		Char:       "得",
		CharOffset: 0,
		Choose:     "děi",
	}
	r := g.Generate(obs, NewSnapshot(nil, nil), nil)

	require.NotNil(t, r.Match.Prev)
	require.NotNil(t, r.Match.Next)
	assert.Equal(t, []string{"他"}, r.Match.Prev.TextIn)
	assert.Equal(t, []string{"PRON"}, r.Match.Prev.UPOSIn)
	assert.Equal(t, []string{"去"}, r.Match.Next.TextIn)
	assert.Equal(t, "得", r.Match.Self.Text)
}

func TestGenerator_SerialAllocation(t *testing.T) {
	g := fixedGenerator(DefaultLadder)
	obs := Observation{Token: tagger.Token{Text: "银行"}, Char: "行", CharOffset: 1, Choose: "háng"}
	existing := []string{
		"override_2026-08-28_0003",
		"override_2026-08-27_0009", // other day, ignored
		"not_an_override",
	}
	r := g.Generate(obs, NewSnapshot(nil, nil), existing)
	assert.Equal(t, "override_2026-08-28_0004", r.ID)
}

func TestGenerator_PriorityFloor(t *testing.T) {
	g := fixedGenerator(DefaultLadder)
	obs := Observation{Token: tagger.Token{Text: "银行"}, Char: "行", CharOffset: 1, Choose: "háng"}
	r := g.Generate(obs, NewSnapshot(nil, nil), nil)
	assert.GreaterOrEqual(t, r.Priority, overridePriorityFloor)
}

func TestGenerator_OccurrenceCountsRepeats(t *testing.T) {
	g := fixedGenerator(DefaultLadder)
	obs := Observation{
		Token:      tagger.Token{Text: "行行", UPOS: "NOUN", XPOS: "NN", NER: "O"},
		Char:       "行",
		CharOffset: 1,
		Choose:     "háng",
	}
	r := g.Generate(obs, NewSnapshot(nil, nil), nil)
	assert.Equal(t, Occurrence(2), r.Target.Occurrence)
}

func TestGenerator_UnknownTagsNotAttached(t *testing.T) {
	g := fixedGenerator(DefaultLadder)
	obs := Observation{
		Token:      tagger.Token{Text: "银行", UPOS: tagger.UnknownUPOS, XPOS: tagger.UnknownXPOS, NER: tagger.UnknownNER},
		Char:       "行",
		CharOffset: 1,
		Choose:     "háng",
	}
	r := g.Generate(obs, NewSnapshot(nil, nil), nil)
	assert.Empty(t, r.Match.Self.UPOSIn)
	assert.Empty(t, r.Match.Self.XPOSIn)
	assert.Empty(t, r.Match.Self.NERIn)
}
