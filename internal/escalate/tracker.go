package escalate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hanpin/internal/pinyin"
	"hanpin/internal/resolver"
	"hanpin/internal/segment"
)

// Adopted confidences. A user decision is final; a double-check verdict
// is strong but still machine-made.
const (
	userConfidence        = 1.0
	doubleCheckConfidence = 0.9
)

// contextWindow is how many runes of surrounding input are attached to
// an escalated item.
const contextWindow = 12

// Confirmed is a user decision the override generator can learn from.
type Confirmed struct {
	Item   Item
	Choice string
}

// Meta summarizes the escalation stage for the report.
type Meta struct {
	Used               bool          `json:"used"`
	Error              string        `json:"error,omitempty"`
	Applied            []VerdictItem `json:"applied,omitempty"`
	NeedsUser          []Item        `json:"needs_user,omitempty"`
	Confirmed          []Confirmed   `json:"-"`
	Warnings           []string      `json:"warnings,omitempty"`
	UnresolvedFallback bool          `json:"unresolved_fallback"`
}

// Tracker runs the escalation stage. Verifier and Chooser are both
// optional; with neither, every escalated node takes the deterministic
// fallback and the run still completes.
type Tracker struct {
	verifier  Verifier
	chooser   Chooser
	log       *zap.Logger
	threshold float64
	timeout   time.Duration
}

// DefaultTimeout bounds one verifier attempt.
const DefaultTimeout = 60 * time.Second

func NewTracker(verifier Verifier, chooser Chooser, threshold float64, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = resolver.DefaultThreshold
	}
	return &Tracker{
		verifier:  verifier,
		chooser:   chooser,
		log:       log,
		threshold: threshold,
		timeout:   DefaultTimeout,
	}
}

// WithTimeout overrides the per-attempt verifier timeout.
func (t *Tracker) WithTimeout(d time.Duration) *Tracker {
	if d > 0 {
		t.timeout = d
	}
	return t
}

// Collect selects the nodes that cannot be finalized as they stand:
// conflicts, explicit review flags, and confidences under the
// threshold.
func (t *Tracker) Collect(text string, res *resolver.Result) []Item {
	var items []Item
	for _, tok := range res.Tokens {
		for _, n := range res.NodesFor(tok.SpanID, tok.Index) {
			if !n.Conflict && !n.NeedsReview && n.Confidence >= t.threshold {
				continue
			}
			items = append(items, Item{
				SpanID:      n.SpanID,
				TokenIndex:  n.TokenIndex,
				TokenText:   tok.Text,
				CharOffset:  n.Offset,
				Char:        n.Char,
				Candidates:  n.Candidates,
				Current:     n.Reading,
				Confidence:  n.Confidence,
				Conflict:    n.Conflict,
				ContextText: contextAround(text, tok.Start, tok.End),
			})
		}
	}
	return items
}

// Process escalates the collected items and finalizes every node.
func (t *Tracker) Process(ctx context.Context, text string, spans []segment.Span, res *resolver.Result) Meta {
	items := t.Collect(text, res)
	if len(items) == 0 {
		return Meta{}
	}

	meta := Meta{}
	pendingUser := items

	if t.verifier != nil {
		meta.Used = true
		verdict, err := t.call(ctx, text, spans, res, items)
		if err != nil {
			meta.Error = err.Error()
			t.log.Warn("double-check unavailable", zap.Error(err))
		} else {
			pendingUser = t.applyVerdict(verdict, items, res, &meta)
		}
	}

	if t.chooser != nil {
		for _, item := range pendingUser {
			choice, ok := t.chooser.Choose(item)
			if !ok {
				t.fallbackNode(res, item, &meta)
				continue
			}
			choice = pinyin.Normalize(choice)
			if n := nodeFor(res, item); n != nil {
				n.Reading = choice
				n.Source = resolver.SourceUser
				n.Confidence = userConfidence
				n.NeedsReview = false
				n.Provenance = append(n.Provenance, "user")
			}
			meta.Confirmed = append(meta.Confirmed, Confirmed{Item: item, Choice: choice})
		}
		return meta
	}

	// No interactive collaborator: deterministic fallback, never block.
	for _, item := range pendingUser {
		t.fallbackNode(res, item, &meta)
	}
	return meta
}

// call runs one verifier attempt with a timeout, retrying exactly once
// on failure.
func (t *Tracker) call(ctx context.Context, text string, spans []segment.Span, res *resolver.Result, items []Item) (*Verdict, error) {
	req := VerifyRequest{
		SchemaVersion: 1,
		Task:          "double_check",
		Text:          text,
		Items:         items,
	}
	tokensBySpan := make(map[string][]TokenTags)
	for _, tok := range res.Tokens {
		tokensBySpan[tok.SpanID] = append(tokensBySpan[tok.SpanID], TokenTags{
			Text: tok.Text, UPOS: tok.UPOS, XPOS: tok.XPOS, NER: tok.NER,
		})
	}
	for _, sp := range spans {
		if sp.Type != segment.SpanHan {
			continue
		}
		req.Spans = append(req.Spans, SpanContext{
			SpanID: sp.ID,
			Text:   sp.Text,
			Tokens: tokensBySpan[sp.ID],
		})
	}

	attempt := func() (*Verdict, error) {
		cctx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()
		raw, err := t.verifier.DoubleCheck(cctx, req)
		if err != nil {
			return nil, err
		}
		return DecodeVerdict(raw)
	}

	verdict, err := attempt()
	if err == nil {
		return verdict, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	t.log.Debug("retrying double-check", zap.Error(err))
	return attempt()
}

// applyVerdict adopts recommendations and returns the items the
// collaborator bounced to a human.
func (t *Tracker) applyVerdict(verdict *Verdict, items []Item, res *resolver.Result, meta *Meta) []Item {
	itemAt := make(map[resolver.TokenKey]map[int]Item, len(items))
	for _, it := range items {
		key := resolver.TokenKey{SpanID: it.SpanID, Index: it.TokenIndex}
		if itemAt[key] == nil {
			itemAt[key] = make(map[int]Item)
		}
		itemAt[key][it.CharOffset] = it
	}

	var pendingUser []Item
	for _, vi := range verdict.Items {
		item, ok := itemAt[resolver.TokenKey{SpanID: vi.SpanID, Index: vi.TokenIndex}][vi.CharOffset]
		if !ok {
			meta.Warnings = append(meta.Warnings,
				fmt.Sprintf("verdict for unknown item %s:%d:%d", vi.SpanID, vi.TokenIndex, vi.CharOffset))
			continue
		}
		n := nodeFor(res, item)
		if n == nil {
			continue
		}
		if vi.Char != "" && vi.Char != n.Char {
			meta.Warnings = append(meta.Warnings,
				fmt.Sprintf("verdict char mismatch at %s:%d:%d: expected %s got %s",
					vi.SpanID, vi.TokenIndex, vi.CharOffset, n.Char, vi.Char))
		}

		if vi.NeedsUser {
			n.NeedsReview = true
			n.Notes = append(n.Notes, "double_check_needs_user")
			pendingUser = append(pendingUser, item)
			meta.NeedsUser = append(meta.NeedsUser, item)
			continue
		}
		if vi.Recommended == "" {
			pendingUser = append(pendingUser, item)
			continue
		}
		n.Reading = pinyin.Normalize(vi.Recommended)
		n.Source = resolver.SourceDoubleCheck
		n.Confidence = doubleCheckConfidence
		n.NeedsReview = false
		n.Conflict = false
		n.Provenance = append(n.Provenance, "double_check")
		if vi.Reason != "" {
			n.Notes = append(n.Notes, "double_check:"+vi.Reason)
		}
		meta.Applied = append(meta.Applied, vi)
	}

	// Items the verdict never mentioned stay pending.
	answered := make(map[string]bool, len(verdict.Items))
	for _, vi := range verdict.Items {
		answered[fmt.Sprintf("%s:%d:%d", vi.SpanID, vi.TokenIndex, vi.CharOffset)] = true
	}
	for _, it := range items {
		if !answered[fmt.Sprintf("%s:%d:%d", it.SpanID, it.TokenIndex, it.CharOffset)] {
			pendingUser = append(pendingUser, it)
		}
	}
	return pendingUser
}

// fallbackNode finalizes a node deterministically: the tentative
// reading stays (it is already the rule/statistics default), or the
// first dictionary candidate when there is none.
func (t *Tracker) fallbackNode(res *resolver.Result, item Item, meta *Meta) {
	n := nodeFor(res, item)
	if n == nil {
		return
	}
	if n.Reading == "" && len(n.Candidates) > 0 {
		n.Reading = n.Candidates[0]
	}
	n.Source = resolver.SourceFallback
	n.Provenance = append(n.Provenance, "fallback:no_confirmation")
	meta.UnresolvedFallback = true
}

func nodeFor(res *resolver.Result, item Item) *resolver.CharNode {
	nodes := res.NodesFor(item.SpanID, item.TokenIndex)
	for _, n := range nodes {
		if n.Offset == item.CharOffset {
			return n
		}
	}
	return nil
}

// contextAround returns a rune-safe excerpt of text around [start,end).
func contextAround(text string, start, end int) string {
	left := start
	for i := 0; i < contextWindow && left > 0; i++ {
		left--
		for left > 0 && !isRuneStart(text[left]) {
			left--
		}
	}
	right := end
	for i := 0; i < contextWindow && right < len(text); i++ {
		right++
		for right < len(text) && !isRuneStart(text[right]) {
			right++
		}
	}
	return text[left:right]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
