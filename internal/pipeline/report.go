package pipeline

import (
	"hanpin/internal/escalate"
	"hanpin/internal/resolver"
	"hanpin/internal/rules"
	"hanpin/internal/segment"
	"hanpin/internal/tagger"
)

// Report is the structured decision record accompanying the output
// text. Everything in it serializes to JSON for the --report flag and
// the run store.
type Report struct {
	SchemaVersion int    `json:"schema_version"`
	Input         string `json:"input"`
	Output        string `json:"output"`

	Spans  []segment.Span `json:"spans"`
	Tokens []TokenReport  `json:"tokens"`

	Tagging     tagger.Meta   `json:"tagging"`
	DoubleCheck escalate.Meta `json:"double_check"`

	AppliedRules []resolver.AppliedRule `json:"applied_rules,omitempty"`
	Conflicts    []resolver.Conflict    `json:"conflicts,omitempty"`
	NeedsReview  []*resolver.CharNode   `json:"needs_review,omitempty"`

	// Overrides generated from user confirmations after this run.
	GeneratedOverrides []rules.Rule `json:"generated_overrides,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// TokenReport is one token with its per-character decisions.
type TokenReport struct {
	SpanID  string               `json:"span_id"`
	Index   int                  `json:"index"`
	Text    string               `json:"text"`
	UPOS    string               `json:"upos"`
	XPOS    string               `json:"xpos"`
	NER     string               `json:"ner"`
	Reading string               `json:"reading"`
	Chars   []*resolver.CharNode `json:"chars"`
}

func buildReport(input, output string, spans []segment.Span, res *resolver.Result, tagMeta tagger.Meta, escMeta escalate.Meta) Report {
	rep := Report{
		SchemaVersion: 1,
		Input:         input,
		Output:        output,
		Spans:         spans,
		Tagging:       tagMeta,
		DoubleCheck:   escMeta,
		AppliedRules:  res.Applied,
		Conflicts:     res.Conflict,
		Warnings:      append(res.Warnings, tagMeta.Warnings...),
	}
	rep.Warnings = append(rep.Warnings, escMeta.Warnings...)

	for _, tok := range res.Tokens {
		nodes := res.NodesFor(tok.SpanID, tok.Index)
		rep.Tokens = append(rep.Tokens, TokenReport{
			SpanID:  tok.SpanID,
			Index:   tok.Index,
			Text:    tok.Text,
			UPOS:    tok.UPOS,
			XPOS:    tok.XPOS,
			NER:     tok.NER,
			Reading: res.TokenReading(tok.SpanID, tok.Index),
			Chars:   nodes,
		})
		for _, n := range nodes {
			if n.NeedsReview {
				rep.NeedsReview = append(rep.NeedsReview, n)
			}
		}
	}
	return rep
}

// Observation turns a user confirmation from this run into the input
// the override generator needs: the token with its in-span neighbors.
func (r *Result) Observation(c escalate.Confirmed) rules.Observation {
	obs := rules.Observation{
		Char:        c.Item.Char,
		CharOffset:  c.Item.CharOffset,
		Choose:      c.Choice,
		ContextText: c.Item.ContextText,
	}

	var spanTokens []tagger.Token
	for _, tok := range r.Resolution.Tokens {
		if tok.SpanID == c.Item.SpanID {
			spanTokens = append(spanTokens, tok)
		}
	}
	for i, tok := range spanTokens {
		if tok.Index != c.Item.TokenIndex {
			continue
		}
		obs.Token = tok
		if i > 0 {
			prev := spanTokens[i-1]
			obs.Prev = &prev
		}
		if i+1 < len(spanTokens) {
			next := spanTokens[i+1]
			obs.Next = &next
		}
		break
	}
	return obs
}
