package resolver

import (
	"fmt"

	"go.uber.org/zap"

	"hanpin/internal/dict"
	"hanpin/internal/pinyin"
	"hanpin/internal/rules"
	"hanpin/internal/tagger"
)

// DefaultThreshold is the confidence below which a resolved node is
// flagged for escalation.
const DefaultThreshold = 0.85

// TokenKey addresses one token's node group.
type TokenKey struct {
	SpanID string
	Index  int
}

// AppliedRule records one rule application for the report.
type AppliedRule struct {
	RuleID     string `json:"rule_id"`
	SpanID     string `json:"span_id"`
	TokenIndex int    `json:"token_index"`
	TokenText  string `json:"token_text"`
	Char       string `json:"char"`
	Offset     int    `json:"char_offset_in_token"`
	Choose     string `json:"choose"`
}

// Conflict records two rules assigning different readings to the same
// character occurrence. The higher-priority reading stays tentative.
type Conflict struct {
	SpanID          string `json:"span_id"`
	TokenIndex      int    `json:"token_index"`
	TokenText       string `json:"token_text"`
	Char            string `json:"char"`
	Offset          int    `json:"char_offset_in_token"`
	ExistingRuleID  string `json:"existing_rule_id"`
	ExistingReading string `json:"existing_choose"`
	NewRuleID       string `json:"new_rule_id"`
	NewReading      string `json:"new_choose"`
}

// Result is one run's resolution state, kept until the report is built
// and then discarded.
type Result struct {
	Tokens   []tagger.Token
	byToken  map[TokenKey][]*CharNode
	Applied  []AppliedRule
	Conflict []Conflict
	Warnings []string
}

// NodesFor returns the nodes of one token in character order.
func (r *Result) NodesFor(spanID string, tokenIndex int) []*CharNode {
	return r.byToken[TokenKey{SpanID: spanID, Index: tokenIndex}]
}

// TokenReading joins a token's resolved readings into its output form.
func (r *Result) TokenReading(spanID string, tokenIndex int) string {
	var out string
	for _, n := range r.NodesFor(spanID, tokenIndex) {
		out += n.Reading
	}
	return out
}

// AllNodes yields every node in token order.
func (r *Result) AllNodes() []*CharNode {
	var out []*CharNode
	for _, tok := range r.Tokens {
		out = append(out, r.NodesFor(tok.SpanID, tok.Index)...)
	}
	return out
}

// Engine runs the resolution cascade over a frozen rule snapshot and
// the shared dictionary. It holds no per-run state, so one Engine may
// serve concurrent runs.
type Engine struct {
	store     *dict.Store
	log       *zap.Logger
	threshold float64
}

func NewEngine(store *dict.Store, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, log: log, threshold: DefaultThreshold}
}

// WithThreshold overrides the escalation confidence threshold.
func (e *Engine) WithThreshold(t float64) *Engine {
	if t > 0 {
		e.threshold = t
	}
	return e
}

// Threshold returns the escalation confidence gate in effect.
func (e *Engine) Threshold() float64 { return e.threshold }

// Resolve decides a reading for every Han character in tokens.
// The cascade: rule scan in (priority desc, id asc) order over
// polyphonic characters, then whole-word dictionary readings, then the
// single-candidate shortcut, then the statistical disambiguator.
func (e *Engine) Resolve(tokens []tagger.Token, snap *rules.Snapshot) *Result {
	res := &Result{
		Tokens:  tokens,
		byToken: make(map[TokenKey][]*CharNode, len(tokens)),
	}
	spanOrder, bySpan := groupBySpan(tokens)
	for _, tok := range tokens {
		res.byToken[TokenKey{tok.SpanID, tok.Index}] = e.newNodes(tok)
	}

	e.scanRules(res, snap, spanOrder, bySpan)
	e.applyWordDict(res, tokens)
	e.applyCharDict(res, tokens)
	return res
}

func (e *Engine) newNodes(tok tagger.Token) []*CharNode {
	runes := []rune(tok.Text)
	nodes := make([]*CharNode, 0, len(runes))
	for i, r := range runes {
		nodes = append(nodes, &CharNode{
			SpanID:     tok.SpanID,
			TokenIndex: tok.Index,
			Offset:     i,
			Char:       string(r),
			Candidates: e.store.LookupChar(r),
			State:      StateUnresolved,
		})
	}
	return nodes
}

// scanRules applies every snapshot rule in order. Characters with
// exactly one dictionary candidate never enter the matching pass.
func (e *Engine) scanRules(res *Result, snap *rules.Snapshot, spanOrder []string, bySpan map[string][]tagger.Token) {
	if snap == nil {
		return
	}
	for ri := range snap.Rules() {
		rule := &snap.Rules()[ri]
		for _, spanID := range spanOrder {
			spanTokens := bySpan[spanID]
			for i := range spanTokens {
				tok := &spanTokens[i]
				nodes := res.NodesFor(tok.SpanID, tok.Index)
				positions := targetPositions(nodes, rule.Target.Char)
				if len(positions) == 0 {
					continue
				}
				var prev, next *tagger.Token
				if i > 0 {
					prev = &spanTokens[i-1]
				}
				if i+1 < len(spanTokens) {
					next = &spanTokens[i+1]
				}
				if !rules.Matches(rule, tok, prev, next) {
					continue
				}

				switch occ := rule.Target.Occurrence; {
				case occ == rules.OccurrenceAll:
					for _, p := range positions {
						e.applyRule(res, rule, tok, nodes[p])
					}
				case int(occ) <= len(positions):
					e.applyRule(res, rule, tok, nodes[positions[occ-1]])
				}
			}
		}
	}
}

// targetPositions lists node indices holding the target character,
// skipping single-candidate (unambiguous) occurrences.
func targetPositions(nodes []*CharNode, char string) []int {
	var out []int
	for i, n := range nodes {
		if n.Char == char && len(n.Candidates) != 1 {
			out = append(out, i)
		}
	}
	return out
}

func (e *Engine) applyRule(res *Result, rule *rules.Rule, tok *tagger.Token, node *CharNode) {
	choose := pinyin.Normalize(rule.Choose)
	src := SourceBaseRule
	if rule.Origin == rules.OriginOverride {
		src = SourceOverride
	}

	switch {
	case node.State == StateUnresolved:
		conf := rule.Confidence
		if conf <= 0 {
			conf = 1.0
		}
		node.resolve(choose, src, conf)
		node.RuleID = rule.ID
		node.trace("rule:" + rule.ID)
		res.Applied = append(res.Applied, AppliedRule{
			RuleID:     rule.ID,
			SpanID:     tok.SpanID,
			TokenIndex: tok.Index,
			TokenText:  tok.Text,
			Char:       node.Char,
			Offset:     node.Offset,
			Choose:     choose,
		})

	case node.Reading == choose:
		// Agreement: provenance only, no conflict.
		node.trace("rule:" + rule.ID)

	default:
		// A lower-ranked rule disagrees. Keep the first reading.
		node.Conflict = true
		node.NeedsReview = true
		node.trace("conflict:" + rule.ID)
		res.Conflict = append(res.Conflict, Conflict{
			SpanID:          tok.SpanID,
			TokenIndex:      tok.Index,
			TokenText:       tok.Text,
			Char:            node.Char,
			Offset:          node.Offset,
			ExistingRuleID:  node.RuleID,
			ExistingReading: node.Reading,
			NewRuleID:       rule.ID,
			NewReading:      choose,
		})
		e.log.Debug("rule conflict",
			zap.String("char", node.Char),
			zap.String("kept", node.Reading),
			zap.String("rejected", choose),
			zap.String("rule", rule.ID))
	}
}

// applyWordDict resolves still-unresolved characters of tokens that
// have an aligned whole-word reading.
func (e *Engine) applyWordDict(res *Result, tokens []tagger.Token) {
	for _, tok := range tokens {
		syllables, ok := e.store.WordSyllables(tok.Text)
		if !ok {
			if e.store.HasWord(tok.Text) {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("word reading misaligned for %q", tok.Text))
			}
			continue
		}
		for _, n := range res.NodesFor(tok.SpanID, tok.Index) {
			if n.State != StateUnresolved {
				continue
			}
			n.resolve(syllables[n.Offset], SourceWordDict, 1.0)
			n.trace("word_dict:" + tok.Text)
		}
	}
}

// applyCharDict finishes the cascade: the single-candidate shortcut,
// the statistical disambiguator for remaining polyphones, and a
// verbatim passthrough for characters absent from the tables.
func (e *Engine) applyCharDict(res *Result, tokens []tagger.Token) {
	for _, tok := range tokens {
		for _, n := range res.NodesFor(tok.SpanID, tok.Index) {
			if n.State != StateUnresolved {
				continue
			}
			switch len(n.Candidates) {
			case 0:
				n.resolve(n.Char, SourceFallback, 0)
				n.NeedsReview = true
				n.note("char_not_in_dictionary")
				n.trace("fallback:passthrough")

			case 1:
				n.resolve(n.Candidates[0], SourceCharDictSingle, 1.0)
				n.trace("char_dict_single")

			default:
				pick := PickReading(e.store, []rune(n.Char)[0], n.Candidates, tok.UPOS, tok.NER)
				n.resolve(pick.Reading, SourceStatistical, pick.Confidence)
				n.trace("statistical:" + pick.Key)
				if !pick.Confident || pick.Confidence < e.threshold {
					n.NeedsReview = true
					n.note("low_confidence_or_low_support")
				}
			}
		}
	}
}

func groupBySpan(tokens []tagger.Token) ([]string, map[string][]tagger.Token) {
	var order []string
	bySpan := make(map[string][]tagger.Token)
	for _, tok := range tokens {
		if _, ok := bySpan[tok.SpanID]; !ok {
			order = append(order, tok.SpanID)
		}
		bySpan[tok.SpanID] = append(bySpan[tok.SpanID], tok)
	}
	return order, bySpan
}
