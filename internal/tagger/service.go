package tagger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"hanpin/internal/dict"
	"hanpin/internal/segment"
)

// Collaborator performs segmentation plus POS/NER labeling. It returns
// the raw response so the service can hold it to the wire contract
// before trusting any of it.
type Collaborator interface {
	SegmentAndTag(ctx context.Context, req Request) (json.RawMessage, error)
}

// Meta records, for the run report, whether the collaborator was used
// and where the deterministic fallback had to step in.
type Meta struct {
	Used          bool     `json:"used"`
	Error         string   `json:"error,omitempty"`
	InvalidSpans  []string `json:"invalid_spans,omitempty"`
	FallbackSpans []string `json:"fallback_spans,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Service turns han spans into tokens, preferring the collaborator and
// guaranteeing a deterministic result without it. Collaborator calls are
// bounded by a timeout and at most one retry.
type Service struct {
	collab  Collaborator
	store   *dict.Store
	log     *zap.Logger
	timeout time.Duration
}

// DefaultTimeout bounds one collaborator attempt.
const DefaultTimeout = 60 * time.Second

func NewService(collab Collaborator, store *dict.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{collab: collab, store: store, log: log, timeout: DefaultTimeout}
}

// WithTimeout overrides the per-attempt timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Tokenize produces tokens for every han span in spans. Spans the
// collaborator mishandles fall back individually; a contract breach or
// transport failure falls back for all of them. Tokenize never fails.
func (s *Service) Tokenize(ctx context.Context, spans []segment.Span) ([]Token, Meta) {
	var hanSpans []segment.Span
	for _, sp := range spans {
		if sp.Type == segment.SpanHan {
			hanSpans = append(hanSpans, sp)
		}
	}
	if len(hanSpans) == 0 {
		return nil, Meta{}
	}
	if s.collab == nil {
		return s.fallbackAll(hanSpans, Meta{})
	}

	req := Request{
		SchemaVersion: 1,
		Task:          "segment_and_tag",
		Tagset:        DefaultTagset,
	}
	for _, sp := range hanSpans {
		req.Spans = append(req.Spans, SpanText{SpanID: sp.ID, Text: sp.Text})
	}
	meta := Meta{Used: true}

	resp, err := s.call(ctx, req)
	if err != nil {
		meta.Error = err.Error()
		var se *SchemaError
		if errors.As(err, &se) {
			s.log.Warn("tagging response rejected", zap.String("reason", se.Reason))
		} else {
			s.log.Warn("tagging collaborator unavailable", zap.Error(err))
		}
		return s.fallbackAll(hanSpans, meta)
	}

	bySpan := make(map[string][]Tagged, len(resp.Spans))
	for _, st := range resp.Spans {
		bySpan[st.SpanID] = st.Tokens
	}
	meta.Warnings = resp.Warnings

	var tokens []Token
	for _, sp := range hanSpans {
		tagged := bySpan[sp.ID]
		if len(tagged) == 0 {
			meta.InvalidSpans = append(meta.InvalidSpans, sp.ID)
			tokens = append(tokens, s.fallbackSpan(sp, &meta)...)
			continue
		}
		if err := validateSpan(SpanText{SpanID: sp.ID, Text: sp.Text}, tagged); err != nil {
			s.log.Warn("span tokens rejected", zap.String("span", sp.ID), zap.Error(err))
			meta.InvalidSpans = append(meta.InvalidSpans, sp.ID)
			tokens = append(tokens, s.fallbackSpan(sp, &meta)...)
			continue
		}
		cursor := sp.Start
		for i, tg := range tagged {
			end := cursor + len(tg.Text)
			tokens = append(tokens, Token{
				SpanID: sp.ID,
				Index:  i,
				Start:  cursor,
				End:    end,
				Text:   tg.Text,
				UPOS:   tg.UPOS,
				XPOS:   tg.XPOS,
				NER:    tg.NER,
			})
			cursor = end
		}
	}
	return tokens, meta
}

// call runs one collaborator attempt with a timeout, retrying exactly
// once on transport failure. A SchemaError is not retried: the
// collaborator already answered, it just answered wrongly.
func (s *Service) call(ctx context.Context, req Request) (*Response, error) {
	attempt := func() (*Response, error) {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		raw, err := s.collab.SegmentAndTag(cctx, req)
		if err != nil {
			return nil, err
		}
		return DecodeResponse(raw)
	}

	resp, err := attempt()
	if err == nil {
		return resp, nil
	}
	var se *SchemaError
	if errors.As(err, &se) || ctx.Err() != nil {
		return nil, err
	}
	s.log.Debug("retrying tagging collaborator", zap.Error(err))
	return attempt()
}

func (s *Service) fallbackAll(hanSpans []segment.Span, meta Meta) ([]Token, Meta) {
	var tokens []Token
	for _, sp := range hanSpans {
		tokens = append(tokens, s.fallbackSpan(sp, &meta)...)
	}
	return tokens, meta
}

// fallbackSpan segments one span by longest word match against the
// dictionary, single characters for the remainder, all tags unknown.
func (s *Service) fallbackSpan(sp segment.Span, meta *Meta) []Token {
	meta.FallbackSpans = append(meta.FallbackSpans, sp.ID)
	var pieces []string
	if s.store != nil {
		pieces = s.store.SegmentLongestMatch(sp.Text)
	} else {
		for _, r := range sp.Text {
			pieces = append(pieces, string(r))
		}
	}
	tokens := make([]Token, 0, len(pieces))
	cursor := sp.Start
	for i, p := range pieces {
		end := cursor + len(p)
		tokens = append(tokens, Token{
			SpanID: sp.ID,
			Index:  i,
			Start:  cursor,
			End:    end,
			Text:   p,
			UPOS:   UnknownUPOS,
			XPOS:   UnknownXPOS,
			NER:    UnknownNER,
		})
		cursor = end
	}
	return tokens
}
