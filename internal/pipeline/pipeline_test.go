package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hanpin/internal/dict"
	"hanpin/internal/escalate"
	"hanpin/internal/resolver"
	"hanpin/internal/rules"
	"hanpin/internal/tagger"
)

func newTestStore(t *testing.T) *dict.Store {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		dict.WordFile: `{"word": "细说", "pinyin": "xì shuō"}
{"word": "银行", "pinyin": "yín háng"}
{"word": "行长", "pinyin": "háng zhǎng"}
{"word": "重新", "pinyin": "chóng xīn"}
{"word": "营业", "pinyin": "yíng yè"}
{"word": "得去", "pinyin": "děi qù"}
{"word": "得到", "pinyin": "dé dào"}
{"word": "答案", "pinyin": "dá àn"}`,
		dict.CharFile: `{"char": "细", "pinyin": ["xì"]}
{"char": "说", "pinyin": ["shuō", "shuì"]}
{"char": "银", "pinyin": ["yín"]}
{"char": "行", "pinyin": ["háng", "xíng"]}
{"char": "长", "pinyin": ["zhǎng", "cháng"]}
{"char": "重", "pinyin": ["chóng", "zhòng"]}
{"char": "新", "pinyin": ["xīn"]}
{"char": "营", "pinyin": ["yíng"]}
{"char": "业", "pinyin": ["yè"]}
{"char": "他", "pinyin": ["tā"]}
{"char": "得", "pinyin": ["dé", "děi", "de"]}
{"char": "去", "pinyin": ["qù"]}
{"char": "到", "pinyin": ["dào"]}
{"char": "答", "pinyin": ["dá"]}
{"char": "案", "pinyin": ["àn"]}
{"char": "的", "pinyin": ["de"]}`,
		dict.PolyphoneFile: `[
			{"char": "行", "pinyin": ["háng", "xíng"]},
			{"char": "得", "pinyin": ["dé", "děi", "de"]}
		]`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	store, err := dict.NewLoader(zap.NewNop()).LoadDir(dir)
	require.NoError(t, err)
	return store
}

// newTestPipeline wires a pipeline with no collaborators: token
// ingestion and escalation both take their deterministic paths.
func newTestPipeline(t *testing.T, base []rules.Rule) *Pipeline {
	t.Helper()
	store := newTestStore(t)
	engine := resolver.NewEngine(store, nil)
	return New(
		rules.NewSource(rules.NewSnapshot(base, nil)),
		tagger.NewService(nil, store, nil),
		engine,
		escalate.NewTracker(nil, nil, engine.Threshold(), nil),
		nil,
	)
}

func TestConvert_SingleWord(t *testing.T) {
	p := newTestPipeline(t, nil)
	res := p.Convert(context.Background(), "细说")
	assert.Equal(t, "xìshuō", res.OutputText)
}

func TestConvert_PolyphonesViaWordDict(t *testing.T) {
	p := newTestPipeline(t, nil)
	res := p.Convert(context.Background(), "银行行长重新营业")
	assert.Equal(t, "yínháng hángzhǎng chóngxīn yíngyè", res.OutputText)

	for _, tok := range res.Report.Tokens {
		for _, n := range tok.Chars {
			assert.Equal(t, resolver.SourceWordDict, n.Source, "char %s", n.Char)
		}
	}
	assert.Empty(t, res.Report.NeedsReview)
}

func TestConvert_NeutralToneAndConcatenation(t *testing.T) {
	p := newTestPipeline(t, nil)
	res := p.Convert(context.Background(), "他得去得到答案")
	assert.Equal(t, "tā děiqù dédào dáàn", res.OutputText)
}

func TestConvert_ProtectedSpansAndSpacing(t *testing.T) {
	p := newTestPipeline(t, nil)
	in := "细说OpenAI的API v2.0：https://openai.com"
	res := p.Convert(context.Background(), in)
	assert.Equal(t, "xìshuō OpenAI de API v2.0：https://openai.com", res.OutputText)
	assert.Equal(t, in, res.Report.Input)
}

func TestConvert_WordLikeSpacingDisabled(t *testing.T) {
	p := newTestPipeline(t, nil).WithWordLikeSpacing(false)
	res := p.Convert(context.Background(), "细说OpenAI")
	assert.Equal(t, "xìshuōOpenAI", res.OutputText)
}

func TestConvert_RuleConflictFallsBack(t *testing.T) {
	mk := func(id, choose string) rules.Rule {
		return rules.Rule{ID: id, Priority: 7,
			Target: rules.Target{Char: "行", Occurrence: rules.OccurrenceAll}, Choose: choose}
	}
	p := newTestPipeline(t, []rules.Rule{mk("a", "háng"), mk("b", "xíng")})
	res := p.Convert(context.Background(), "行")

	// No verifier and no chooser: the higher-ranked rule's reading
	// survives with a fallback marker in the report.
	assert.Equal(t, "háng", res.OutputText)
	assert.True(t, res.Report.DoubleCheck.UnresolvedFallback)
	require.Len(t, res.Report.Conflicts, 1)
	require.Len(t, res.Report.NeedsReview, 1)
	assert.Equal(t, resolver.SourceFallback, res.Report.NeedsReview[0].Source)
}

func TestResult_Observation(t *testing.T) {
	p := newTestPipeline(t, nil)
	res := p.Convert(context.Background(), "他得去得到答案")

	// Confirm the 得 of 得到 (token index 2 in the fallback
	// segmentation 他 / 得去 / 得到 / 答案).
	var target tagger.Token
	for _, tok := range res.Resolution.Tokens {
		if tok.Text == "得到" {
			target = tok
		}
	}
	require.NotEmpty(t, target.Text)

	obs := res.Observation(escalate.Confirmed{
		Item: escalate.Item{
			SpanID:     target.SpanID,
			TokenIndex: target.Index,
			Char:       "得",
			CharOffset: 0,
		},
		Choice: "dé",
	})
	assert.Equal(t, "得到", obs.Token.Text)
	require.NotNil(t, obs.Prev)
	assert.Equal(t, "得去", obs.Prev.Text)
	require.NotNil(t, obs.Next)
	assert.Equal(t, "答案", obs.Next.Text)
	assert.Equal(t, "dé", obs.Choose)
}

func TestConvert_ReportShape(t *testing.T) {
	p := newTestPipeline(t, nil)
	res := p.Convert(context.Background(), "银行")

	rep := res.Report
	assert.Equal(t, 1, rep.SchemaVersion)
	assert.Equal(t, "银行", rep.Input)
	assert.Equal(t, rep.Output, res.OutputText)
	require.Len(t, rep.Tokens, 1)
	assert.Equal(t, "yínháng", rep.Tokens[0].Reading)
	require.Len(t, rep.Tokens[0].Chars, 2)
	assert.False(t, rep.Tagging.Used)
}
