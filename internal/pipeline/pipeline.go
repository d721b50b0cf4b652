// Package pipeline sequences one conversion run: span splitting, token
// ingestion, per-character resolution, escalation, and output assembly.
package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"hanpin/internal/escalate"
	"hanpin/internal/resolver"
	"hanpin/internal/rules"
	"hanpin/internal/segment"
	"hanpin/internal/tagger"
)

// Pipeline wires the stages together. It holds no per-run state; the
// dictionary store and the rule source are shared read-only, so one
// Pipeline may serve concurrent runs.
type Pipeline struct {
	rules           *rules.Source
	tagger          *tagger.Service
	engine          *resolver.Engine
	tracker         *escalate.Tracker
	log             *zap.Logger
	wordLikeSpacing bool
}

func New(src *rules.Source, tag *tagger.Service, engine *resolver.Engine, tracker *escalate.Tracker, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		rules:           src,
		tagger:          tag,
		engine:          engine,
		tracker:         tracker,
		log:             log,
		wordLikeSpacing: true,
	}
}

// WithWordLikeSpacing toggles the forced space between a reading and an
// adjacent word-like protected span.
func (p *Pipeline) WithWordLikeSpacing(on bool) *Pipeline {
	p.wordLikeSpacing = on
	return p
}

// Result is one finished run.
type Result struct {
	OutputText string
	Report     Report

	// Resolution and Confirmed feed interactive override generation
	// after the run; they are not part of the serialized report.
	Resolution *resolver.Result
	Confirmed  []escalate.Confirmed
}

// Convert runs the full pass over text. It always returns a complete
// result: collaborator failures degrade to the deterministic fallbacks
// and are recorded in the report instead of aborting the run.
func (p *Pipeline) Convert(ctx context.Context, text string) *Result {
	spans := segment.Split(text)
	snap := p.rules.Current()

	tokens, tagMeta := p.tagger.Tokenize(ctx, spans)
	res := p.engine.Resolve(tokens, snap)
	escMeta := p.tracker.Process(ctx, text, spans, res)

	out := p.assemble(text, spans, res)
	p.log.Debug("conversion complete",
		zap.Int("spans", len(spans)),
		zap.Int("tokens", len(tokens)),
		zap.Bool("tagger_used", tagMeta.Used),
		zap.Bool("double_check_used", escMeta.Used))

	return &Result{
		OutputText: out,
		Report:     buildReport(text, out, spans, res, tagMeta, escMeta),
		Resolution: res,
		Confirmed:  escMeta.Confirmed,
	}
}

// assemble renders the output text: han tokens become their readings
// joined by single spaces, protected spans are reproduced byte for
// byte, and a space separates a reading from an adjacent word-like
// span when none exists.
func (p *Pipeline) assemble(text string, spans []segment.Span, res *resolver.Result) string {
	tokensBySpan := make(map[string][]tagger.Token)
	for _, tok := range res.Tokens {
		tokensBySpan[tok.SpanID] = append(tokensBySpan[tok.SpanID], tok)
	}

	var b strings.Builder
	for i, sp := range spans {
		if sp.Type == segment.SpanHan {
			readings := make([]string, 0, len(tokensBySpan[sp.ID]))
			for _, tok := range tokensBySpan[sp.ID] {
				readings = append(readings, res.TokenReading(sp.ID, tok.Index))
			}
			if p.wordLikeSpacing && i > 0 && spans[i-1].WordLike() && !endsWithSpace(b.String()) {
				b.WriteString(" ")
			}
			b.WriteString(strings.Join(readings, " "))
			continue
		}
		if p.wordLikeSpacing && sp.WordLike() && i > 0 && spans[i-1].Type == segment.SpanHan {
			b.WriteString(" ")
		}
		b.WriteString(sp.Text)
	}
	return b.String()
}

func endsWithSpace(s string) bool {
	return s != "" && (strings.HasSuffix(s, " ") || strings.HasSuffix(s, "\t") || strings.HasSuffix(s, "\n"))
}
